// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrDuplicate    = errors.New("duplicate entry")
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusFor maps a domain error onto an HTTP status and problem title.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid Input"
	case errors.Is(err, shared.ErrInsufficientStock):
		return http.StatusConflict, "Insufficient Stock"
	case errors.Is(err, shared.ErrEmptyCart):
		return http.StatusUnprocessableEntity, "Empty Cart"
	case errors.Is(err, shared.ErrOverPayment):
		return http.StatusConflict, "Over Payment"
	case errors.Is(err, shared.ErrIdempotencyConflict), errors.Is(err, ErrDuplicate):
		return http.StatusConflict, "Duplicate"
	case errors.Is(err, shared.ErrLocked):
		return http.StatusConflict, "Busy"
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, shared.ErrRemoteFailure):
		return http.StatusBadGateway, "Remote Failure"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Internal errors never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	status, title := StatusFor(err)
	detail := ""
	if status != http.StatusInternalServerError {
		detail = err.Error()
	}
	Problem(w, status, title, detail)
}
