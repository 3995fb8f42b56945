package refreshtokens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/paymentapi/internal/common"
	"github.com/dmitrijs2005/paymentapi/internal/server/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// maxWriteRetries bounds the optimistic retry loop of unconditional writes.
// MarkUsed never retries: a lost race is reported to the caller.
const maxWriteRetries = 4

const (
	fieldID        = "id"
	fieldUserID    = "user_id"
	fieldToken     = "token"
	fieldPrevious  = "previous_token"
	fieldJwtID     = "jwt_id"
	fieldIsUsed    = "is_used"
	fieldIsRevoked = "is_revoked"
	fieldAdded     = "added_date"
	fieldExpiry    = "expiry_date"
	fieldVersion   = "version"
)

// RedisRepository implements Repository on Redis. Each record is a hash
// keyed by user id, plus a string key mapping the opaque token back to
// its user. Mutations run as WATCH/MULTI transactions on the user key.
type RedisRepository struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisRepository constructs a repository storing keys under prefix.
func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "paymentapi"
	}
	return &RedisRepository{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisRepository) userKey(userID string) string {
	return r.prefix + ":rt:user:" + userID
}

func (r *RedisRepository) tokenKey(token string) string {
	return r.prefix + ":rt:token:" + token
}

func (r *RedisRepository) FindByUser(ctx context.Context, userID string) (*models.RefreshToken, error) {
	fields, err := r.client.HGetAll(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return decodeRecord(fields)
}

func (r *RedisRepository) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	userID, err := r.client.Get(ctx, r.tokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}

	rec, err := r.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	// the index may outlive an overwrite that raced with this read
	view, ok := rec.ViewFor(token)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return view, nil
}

func (r *RedisRepository) Upsert(ctx context.Context, rec *models.RefreshToken) error {
	key := r.userKey(rec.UserID)

	for i := 0; i < maxWriteRetries; i++ {
		var id, previous string
		var version int64

		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}

			id, version, previous = uuid.NewString(), 1, ""
			dropped := ""
			if len(cur) > 0 {
				existing, err := decodeRecord(cur)
				if err != nil {
					return err
				}
				id, version = existing.ID, existing.Version+1
				previous, dropped = existing.Token, existing.PreviousToken
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if dropped != "" && dropped != rec.Token {
					pipe.Del(ctx, r.tokenKey(dropped))
				}
				pipe.HSet(ctx, key,
					fieldID, id,
					fieldUserID, rec.UserID,
					fieldToken, rec.Token,
					fieldPrevious, previous,
					fieldJwtID, rec.JwtID,
					fieldIsUsed, strconv.FormatBool(false),
					fieldIsRevoked, strconv.FormatBool(false),
					fieldAdded, formatTime(rec.AddedDate),
					fieldExpiry, formatTime(rec.ExpiryDate),
					fieldVersion, strconv.FormatInt(version, 10),
				)
				pipe.Set(ctx, r.tokenKey(rec.Token), rec.UserID, 0)
				if rec.ExpiryDate.After(r.now()) {
					pipe.PExpireAt(ctx, key, rec.ExpiryDate)
					pipe.PExpireAt(ctx, r.tokenKey(rec.Token), rec.ExpiryDate)
					if previous != "" {
						pipe.PExpireAt(ctx, r.tokenKey(previous), rec.ExpiryDate)
					}
				}
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis error: %w", err)
		}

		rec.ID = id
		rec.Version = version
		rec.PreviousToken = previous
		rec.IsUsed = false
		rec.IsRevoked = false
		return nil
	}

	return common.ErrVersionConflict
}

func (r *RedisRepository) MarkUsed(ctx context.Context, rec *models.RefreshToken) error {
	key := r.userKey(rec.UserID)
	var version int64

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(cur) == 0 {
			return common.ErrVersionConflict
		}
		existing, err := decodeRecord(cur)
		if err != nil {
			return err
		}
		if existing.ID != rec.ID || existing.Version != rec.Version || existing.IsUsed {
			return common.ErrVersionConflict
		}

		version = existing.Version + 1
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldIsUsed, strconv.FormatBool(true),
				fieldVersion, strconv.FormatInt(version, 10),
			)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
	case errors.Is(err, redis.TxFailedErr), errors.Is(err, common.ErrVersionConflict):
		return common.ErrVersionConflict
	default:
		return fmt.Errorf("redis error: %w", err)
	}

	rec.IsUsed = true
	rec.Version = version
	return nil
}

func (r *RedisRepository) MarkRevoked(ctx context.Context, rec *models.RefreshToken) error {
	key := r.userKey(rec.UserID)

	for i := 0; i < maxWriteRetries; i++ {
		var version int64

		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			if len(cur) == 0 || cur[fieldID] != rec.ID {
				return common.ErrorNotFound
			}
			existing, err := decodeRecord(cur)
			if err != nil {
				return err
			}

			version = existing.Version + 1
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key,
					fieldIsRevoked, strconv.FormatBool(true),
					fieldVersion, strconv.FormatInt(version, 10),
				)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if err != nil {
			return fmt.Errorf("redis error: %w", err)
		}

		rec.IsRevoked = true
		rec.Version = version
		return nil
	}

	return common.ErrVersionConflict
}

func (r *RedisRepository) Delete(ctx context.Context, rec *models.RefreshToken) error {
	return r.deleteIf(ctx, rec.UserID, func(cur map[string]string) bool {
		return cur[fieldID] == rec.ID
	})
}

func (r *RedisRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var removed int64

	iter := r.client.Scan(ctx, 0, r.userKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		userID, err := r.client.HGet(ctx, iter.Val(), fieldUserID).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("redis error: %w", err)
		}

		err = r.deleteIf(ctx, userID, func(cur map[string]string) bool {
			expiry, err := parseTime(cur[fieldExpiry])
			return err == nil && !expiry.After(now)
		})
		switch {
		case err == nil:
			removed++
		case errors.Is(err, common.ErrorNotFound):
		default:
			return removed, err
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis error: %w", err)
	}

	return removed, nil
}

// deleteIf removes the user's record and its token index when match
// accepts the current hash. It yields common.ErrorNotFound otherwise.
func (r *RedisRepository) deleteIf(ctx context.Context, userID string, match func(map[string]string) bool) error {
	key := r.userKey(userID)

	for i := 0; i < maxWriteRetries; i++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			if len(cur) == 0 || !match(cur) {
				return common.ErrorNotFound
			}

			keys := []string{key, r.tokenKey(cur[fieldToken])}
			if p := cur[fieldPrevious]; p != "" {
				keys = append(keys, r.tokenKey(p))
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, keys...)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if err != nil {
			return fmt.Errorf("redis error: %w", err)
		}
		return nil
	}

	return common.ErrVersionConflict
}

func decodeRecord(fields map[string]string) (*models.RefreshToken, error) {
	if len(fields) == 0 {
		return nil, common.ErrorNotFound
	}

	rec := &models.RefreshToken{
		ID:            fields[fieldID],
		UserID:        fields[fieldUserID],
		Token:         fields[fieldToken],
		PreviousToken: fields[fieldPrevious],
		JwtID:         fields[fieldJwtID],
	}

	var err error
	if rec.IsUsed, err = strconv.ParseBool(fields[fieldIsUsed]); err != nil {
		return nil, fmt.Errorf("corrupt record %s: %w", fieldIsUsed, err)
	}
	if rec.IsRevoked, err = strconv.ParseBool(fields[fieldIsRevoked]); err != nil {
		return nil, fmt.Errorf("corrupt record %s: %w", fieldIsRevoked, err)
	}
	if rec.AddedDate, err = parseTime(fields[fieldAdded]); err != nil {
		return nil, fmt.Errorf("corrupt record %s: %w", fieldAdded, err)
	}
	if rec.ExpiryDate, err = parseTime(fields[fieldExpiry]); err != nil {
		return nil, fmt.Errorf("corrupt record %s: %w", fieldExpiry, err)
	}
	if rec.Version, err = strconv.ParseInt(fields[fieldVersion], 10, 64); err != nil {
		return nil, fmt.Errorf("corrupt record %s: %w", fieldVersion, err)
	}

	return rec, nil
}

func formatTime(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseTime(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}
