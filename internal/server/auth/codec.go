// Package auth issues and verifies the credentials handed out by the payment
// API: signed access tokens (Codec) and access/refresh pairs (Issuer).
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/paymentapi/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification failures. All of them match common.ErrInvalidToken.
var (
	ErrMalformed        = fmt.Errorf("%w: malformed", common.ErrInvalidToken)
	ErrInvalidSignature = fmt.Errorf("%w: bad signature", common.ErrInvalidToken)
	ErrInvalidAlgorithm = fmt.Errorf("%w: unexpected signing algorithm", common.ErrInvalidToken)
	ErrInvalidClaims    = fmt.Errorf("%w: invalid claims", common.ErrInvalidToken)
)

// Claims is the access-token payload. Subject carries the email and ID the jti.
type Claims struct {
	UserID string `json:"Id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Status is the time-based outcome of a successful signature check.
type Status int

const (
	StatusValid Status = iota
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Issued describes a freshly signed access token.
type Issued struct {
	Token     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Verification is the result of Codec.Verify. Claims are populated for both
// statuses; Algorithm is the alg header the token was signed with.
type Verification struct {
	Claims    *Claims
	Algorithm string
	Status    Status
}

// Codec signs and verifies HMAC access tokens with one symmetric secret.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// CodecOption customises a Codec.
type CodecOption func(*Codec)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a codec for the given secret and HMAC algorithm name
// (HS256, HS384 or HS512, case-insensitive).
func NewCodec(secret []byte, algorithm string, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty signing secret")
	}
	method, ok := jwt.GetSigningMethod(strings.ToUpper(algorithm)).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	c := &Codec{secret: secret, method: method, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Algorithm returns the configured alg name, e.g. "HS256".
func (c *Codec) Algorithm() string {
	return c.method.Alg()
}

// Now returns the codec's notion of the current time.
func (c *Codec) Now() time.Time {
	return c.now()
}

// Issue signs a token for subjectID/email valid for ttl from now.
func (c *Codec) Issue(subjectID, email string, ttl time.Duration) (*Issued, error) {
	now := c.now()
	jti := uuid.NewString()
	exp := now.Add(ttl)

	token := jwt.NewWithClaims(c.method, Claims{
		UserID: subjectID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &Issued{Token: signed, ID: jti, IssuedAt: now, ExpiresAt: exp}, nil
}

// Verify checks the signature of tokenString. A correctly signed token whose
// exp has passed is reported as StatusExpired rather than as an error.
//
// Any HMAC algorithm is accepted at this stage so callers can compare
// Verification.Algorithm against their own policy; non-HMAC tokens fail with
// ErrInvalidAlgorithm.
func (c *Codec) Verify(tokenString string) (*Verification, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidAlgorithm
		}
		return c.secret, nil
	})

	status := StatusValid
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidAlgorithm), errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, ErrInvalidAlgorithm
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		status = StatusExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}

	alg, _ := token.Header["alg"].(string)
	return &Verification{Claims: claims, Algorithm: alg, Status: status}, nil
}

// ParseAccess is Verify for request authentication: the token must be
// unexpired and signed with the configured algorithm.
func (c *Codec) ParseAccess(tokenString string) (*Claims, error) {
	v, err := c.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(v.Algorithm, c.Algorithm()) {
		return nil, ErrInvalidAlgorithm
	}
	if v.Status == StatusExpired {
		return nil, common.ErrTokenExpired
	}
	return v.Claims, nil
}
