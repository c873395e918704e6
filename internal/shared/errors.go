package shared

import (
	"context"
	"errors"
)

var (
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserMessager is implemented by errors that carry text safe to display.
type UserMessager interface {
	UserMessage() string
}

const genericUserMessage = "Something went wrong. Please try again."

// UserSafeMessage returns text suitable for end users, never raw internals.
func UserSafeMessage(err error) string {
	var um UserMessager
	switch {
	case err == nil:
		return ""
	case errors.As(err, &um):
		return um.UserMessage()
	case errors.Is(err, context.DeadlineExceeded):
		return "The request took too long. Please try again."
	case errors.Is(err, ErrCSRFTokenMissing), errors.Is(err, ErrCSRFTokenMismatch):
		return "Your form expired. Please reload the page and try again."
	}
	return genericUserMessage
}
