// Package handler provides the HTTP adapters for the Meridian Bank API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prn-tf/meridian-bank/internal/auth"
	"github.com/prn-tf/meridian-bank/internal/domain"
	"github.com/prn-tf/meridian-bank/internal/service"
)

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// writeJSON writes the envelope with the given status code.
func writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeData answers a successful request carrying a payload.
func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, APIResponse{Success: true, Data: data})
}

// writeMessage answers a successful request without a payload.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIResponse{Success: true, Message: message})
}

// WriteError maps a typed error onto an HTTP status and the envelope. It is
// also handed to the auth middleware so authentication failures render the
// same way as everything else.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Infrastructure details stay in the logs.
		message = "internal server error"
	}
	writeJSON(w, status, APIResponse{Success: false, Message: message})
}

// statusFor classifies an error into an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrOwnerNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrUserAlreadyExists),
		errors.Is(err, domain.ErrAccountAlreadyExists):
		return http.StatusConflict

	case errors.Is(err, auth.ErrMissingAuthHeader),
		errors.Is(err, auth.ErrInvalidAuthHeader),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUserInactive):
		return http.StatusUnauthorized

	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, domain.ErrAccountNotAccessible),
		errors.Is(err, domain.ErrAccountInactive),
		errors.Is(err, domain.ErrAccountAlreadyInactive),
		errors.Is(err, domain.ErrAccountValidation),
		errors.Is(err, domain.ErrAccountNoChange),
		errors.Is(err, domain.ErrBalanceNotUpdatable),
		errors.Is(err, domain.ErrIBANNotValid),
		errors.Is(err, domain.ErrAmountNotValid),
		errors.Is(err, domain.ErrTypeNotValid),
		errors.Is(err, domain.ErrSameAccount),
		errors.Is(err, domain.ErrSavingsTransfer),
		errors.Is(err, domain.ErrExceededTransactionLimit),
		errors.Is(err, domain.ErrExceededDailyLimit),
		errors.Is(err, domain.ErrExceededAbsoluteLimit),
		errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, errMalformedBody):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// errMalformedBody is returned when a request body fails to parse.
var errMalformedBody = errors.New("malformed request body")

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errMalformedBody
	}
	return nil
}
