package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/paymentapi/internal/common"
	"github.com/dmitrijs2005/paymentapi/internal/logging"
	"github.com/dmitrijs2005/paymentapi/internal/server/auth"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// AccessTokenParser validates bearer tokens. *auth.Codec satisfies it.
type AccessTokenParser interface {
	ParseAccess(token string) (*auth.Claims, error)
}

// AuthMiddleware authenticates requests carrying "Authorization: Bearer <jwt>".
type AuthMiddleware struct {
	parser AccessTokenParser
	log    logging.Logger
}

func NewAuthMiddleware(parser AccessTokenParser, log logging.Logger) *AuthMiddleware {
	return &AuthMiddleware{parser: parser, log: log.With("module", "auth_middleware")}
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			writeFailure(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		claims, err := m.parser.ParseAccess(strings.TrimSpace(token))
		if err != nil {
			m.log.Debug(r.Context(), "access token rejected", "error", err)
			writeFailure(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the id of the authenticated caller.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// RequestLogger logs one line per request through log.
func RequestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Info(r.Context(), "http request",
				"request_id", chimiddleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
