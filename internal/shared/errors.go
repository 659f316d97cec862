package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a non-numeric or out-of-range value supplied by the caller.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientStock indicates the requested quantity exceeds on-hand stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrEmptyCart is returned when committing a cart without lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrOverPayment is returned when a payment exceeds the remaining debt.
	ErrOverPayment = errors.New("payment exceeds remaining amount")
	// ErrRemoteFailure wraps lower level store or collaborator failures.
	ErrRemoteFailure = errors.New("remote failure")
	// ErrForbidden indicates the current role may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
