package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the closed set of failure kinds the inbox exposes.
// Services wrap these with fmt.Errorf("%w: ...") so callers can match with
// errors.Is while still getting a human-readable message.
var (
	ErrValidation             = errors.New("validation error")
	ErrUserNotFound           = errors.New("user not found")
	ErrRecipientNotFound      = errors.New("recipient not found")
	ErrListingNotFound        = errors.New("listing not found")
	ErrConversationNotFound   = errors.New("conversation not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrDB                     = errors.New("database error")
	ErrInvalidToken           = errors.New("invalid token")
	ErrTokenExpired           = errors.New("token expired")
	ErrRegistrationIncomplete = errors.New("registration incomplete")
)

// Validation returns a VALIDATION_ERROR with a caller-facing message.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Internal normalizes an unexpected storage failure to a generic DB_ERROR,
// keeping the cause in the chain for logs but never exposing it to clients.
func Internal(err error) error {
	return fmt.Errorf("%w: %v", ErrDB, err)
}

// Code maps an error to its machine-readable kind for API responses.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrUserNotFound):
		return "USER_NOT_FOUND"
	case errors.Is(err, ErrRecipientNotFound):
		return "RECIPIENT_NOT_FOUND"
	case errors.Is(err, ErrListingNotFound):
		return "LISTING_NOT_FOUND"
	case errors.Is(err, ErrConversationNotFound):
		return "CONVERSATION_NOT_FOUND"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrRegistrationIncomplete):
		return "REGISTRATION_INCOMPLETE"
	default:
		return "DB_ERROR"
	}
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

func HTTPStatusFromError(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrRecipientNotFound),
		errors.Is(err, ErrListingNotFound),
		errors.Is(err, ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrRegistrationIncomplete):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
