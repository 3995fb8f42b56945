package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/paymentapi/internal/logging"
	"github.com/dmitrijs2005/paymentapi/internal/server/auth"
	"github.com/dmitrijs2005/paymentapi/internal/server/models"
	"github.com/dmitrijs2005/paymentapi/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// UserService is the subset of services.UserService used by the handlers.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	RefreshToken(ctx context.Context, accessToken, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	Revoke(ctx context.Context, userID string) error
}

type Handler struct {
	users UserService
	log   logging.Logger
}

func NewHandler(users UserService, log logging.Logger) *Handler {
	return &Handler{users: users, log: log.With("module", "http_handler")}
}

// AuthResult is the response body of every auth endpoint.
type AuthResult struct {
	Token        string   `json:"token,omitempty"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	Success      bool     `json:"success"`
	Errors       []string `json:"errors,omitempty"`
	Messages     string   `json:"messages,omitempty"`
	UserID       string   `json:"userId,omitempty"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenRequest struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, AuthResult{Success: false, Errors: []string{message}})
}

// fail logs err and writes its public mapping.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(ctx, op+" failed", "error", err)
	} else {
		h.log.Debug(ctx, op+" rejected", "error", err)
	}
	writeFailure(w, status, message)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decode(r, &req); err != nil || req.Email == "" || req.Username == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	if _, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		h.fail(r.Context(), w, "register", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResult{Success: true, Messages: msgRegisterSuccess})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(r, &req); err != nil || req.Email == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	res, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(r.Context(), w, "login", err)
		return
	}

	msg := msgLoginSuccess
	if res.ReLogin {
		msg = msgReLoginSuccess
	}
	writeJSON(w, http.StatusOK, AuthResult{
		Token:        res.Pair.AccessToken,
		RefreshToken: res.Pair.RefreshToken,
		Success:      true,
		Messages:     msg,
		UserID:       res.Pair.UserID,
	})
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decode(r, &req); err != nil || req.Token == "" || req.RefreshToken == "" {
		writeFailure(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	pair, err := h.users.RefreshToken(r.Context(), req.Token, req.RefreshToken)
	if err != nil {
		h.fail(r.Context(), w, "refresh", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResult{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Success:      true,
		Messages:     msgRefreshSuccess,
		UserID:       pair.UserID,
	})
}

// ownerOnly resolves the {id} path parameter and insists it is the caller.
func (h *Handler) ownerOnly(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := UserIDFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, msgUnauthorized)
		return "", false
	}
	id := chi.URLParam(r, "id")
	if id != caller {
		writeFailure(w, http.StatusForbidden, msgForbidden)
		return "", false
	}
	return id, true
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownerOnly(w, r)
	if !ok {
		return
	}

	if err := h.users.Logout(r.Context(), id); err != nil {
		h.fail(r.Context(), w, "logout", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResult{Success: true, Messages: msgLogoutSuccess})
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownerOnly(w, r)
	if !ok {
		return
	}

	if err := h.users.Revoke(r.Context(), id); err != nil {
		h.fail(r.Context(), w, "revoke", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResult{Success: true, Messages: msgRevokeSuccess})
}
