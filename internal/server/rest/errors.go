package rest

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/paymentapi/internal/common"
)

// Response messages. Clients match on these strings.
const (
	msgRegisterSuccess   = "Register Success"
	msgLoginSuccess      = "Successfully Login"
	msgReLoginSuccess    = "Successfully Re-Login"
	msgLogoutSuccess     = "Successfully Logout"
	msgRevokeSuccess     = "Successfully Revoked"
	msgRefreshSuccess    = "Successfully Refreshed"
	msgInvalidPayload    = "Invalid payload"
	msgInvalidLogin      = "Invalid login request"
	msgEmailInUse        = "Email already in use"
	msgInvalidTokens     = "Invalid tokens"
	msgNotFound          = "Not Found"
	msgUnauthorized      = "Unauthorized"
	msgForbidden         = "Forbidden"
	msgSomethingWrong    = "Something went wrong."
	msgTokenNotExpired   = "Token has not yet expired"
	msgTokenNotExist     = "Token does not exist"
	msgTokenUsed         = "Token has been used"
	msgTokenRevoked      = "Token has been revoked"
	msgTokenMismatch     = "Token doesn't match"
	msgRefreshExpired    = "Refresh token has expired"
	msgValidationFailure = "Invalid registration data"
)

type errorMapping struct {
	target  error
	status  int
	message string
}

// errorTable is checked in order; the first errors.Is match wins.
var errorTable = []errorMapping{
	{common.ErrTokenNotYetExpired, http.StatusBadRequest, msgTokenNotExpired},
	{common.ErrTokenNotFound, http.StatusBadRequest, msgTokenNotExist},
	{common.ErrTokenAlreadyUsed, http.StatusBadRequest, msgTokenUsed},
	{common.ErrTokenRevoked, http.StatusBadRequest, msgTokenRevoked},
	{common.ErrTokenMismatch, http.StatusBadRequest, msgTokenMismatch},
	{common.ErrRefreshTokenExpired, http.StatusBadRequest, msgRefreshExpired},
	{common.ErrInvalidToken, http.StatusBadRequest, msgInvalidTokens},
	{common.ErrInvalidCredentials, http.StatusBadRequest, msgInvalidLogin},
	{common.ErrorAlreadyExists, http.StatusBadRequest, msgEmailInUse},
	{common.ErrorValidation, http.StatusBadRequest, msgValidationFailure},
	{common.ErrorNotFound, http.StatusNotFound, msgNotFound},
	{common.ErrorForbidden, http.StatusForbidden, msgForbidden},
	{common.ErrorUnauthorized, http.StatusUnauthorized, msgUnauthorized},
}

// classify maps a service error to an HTTP status and a fixed message.
// Unknown errors become a 500 with a generic message.
func classify(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, msgSomethingWrong
}
