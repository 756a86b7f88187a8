package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationWrapsSentinel(t *testing.T) {
	err := Validation("Message is too short.")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "Message is too short.")
}

func TestInternalKeepsCauseInChainOnly(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause)
	assert.ErrorIs(t, err, ErrDB)
	// The cause is flattened into the message, not wrapped; clients must
	// not be able to match on storage internals.
	assert.NotErrorIs(t, err, cause)
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{Validation("nope"), "VALIDATION_ERROR"},
		{fmt.Errorf("%w: who", ErrRecipientNotFound), "RECIPIENT_NOT_FOUND"},
		{fmt.Errorf("%w: what", ErrListingNotFound), "LISTING_NOT_FOUND"},
		{fmt.Errorf("%w: where", ErrConversationNotFound), "CONVERSATION_NOT_FOUND"},
		{ErrUserNotFound, "USER_NOT_FOUND"},
		{ErrUnauthorized, "UNAUTHORIZED"},
		{ErrInvalidToken, "UNAUTHORIZED"},
		{ErrTokenExpired, "UNAUTHORIZED"},
		{ErrRegistrationIncomplete, "REGISTRATION_INCOMPLETE"},
		{Internal(errors.New("boom")), "DB_ERROR"},
		{errors.New("anything else"), "DB_ERROR"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, Code(tt.err), "error: %v", tt.err)
	}
}

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{Validation("nope"), http.StatusBadRequest},
		{ErrRecipientNotFound, http.StatusNotFound},
		{ErrListingNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: gone", ErrConversationNotFound), http.StatusNotFound},
		{ErrUnauthorized, http.StatusForbidden},
		{ErrInvalidToken, http.StatusUnauthorized},
		{ErrTokenExpired, http.StatusUnauthorized},
		{ErrRegistrationIncomplete, http.StatusUnauthorized},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, HTTPStatusFromError(tt.err), "error: %v", tt.err)
	}
}
