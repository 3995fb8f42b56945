package rest

import (
	"net/http"

	"github.com/dmitrijs2005/paymentapi/internal/logging"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// BasePath prefixes every auth endpoint.
const BasePath = "/api/AuthManagement"

func NewRouter(handler *Handler, authMiddleware *AuthMiddleware, allowedOrigins []string, log logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(RequestLogger(log.With("module", "http")))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	r.Route(BasePath, func(r chi.Router) {
		r.Post("/Register", handler.Register)
		r.Post("/Login", handler.Login)
		r.Post("/RefreshToken", handler.RefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Delete("/Logout/{id}", handler.Logout)
			r.Post("/Revoke/{id}", handler.Revoke)
		})
	})

	return r
}
