package inventory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates the item does not exist (anymore).
	ErrNotFound = errors.New("inventory item not found")
	// ErrValidation indicates the store rejected the submitted fields.
	ErrValidation = errors.New("inventory item invalid")
	// ErrDuplicateSubmission indicates a create with an already used token.
	ErrDuplicateSubmission = errors.New("inventory item already submitted")
	// ErrScreenClosed is returned by every operation after Screen.Close.
	ErrScreenClosed = errors.New("inventory screen closed")
	// ErrModalClosed is returned when submitting without an open form.
	ErrModalClosed = errors.New("inventory form is not open")
	// ErrModalOpen is returned for table actions while the form is open.
	ErrModalOpen = errors.New("inventory form is open")
)

// FieldErrors maps a form field to its message. It satisfies
// errors.Is(err, ErrValidation).
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + f[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is reports ErrValidation as the matching sentinel.
func (f FieldErrors) Is(target error) bool {
	return target == ErrValidation
}

// ErrorKind classifies store failures for the user interface.
type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindInternal   ErrorKind = "internal"
)

// StoreError is a classified failure of a Store call.
type StoreError struct {
	Op     string
	ID     string
	Kind   ErrorKind
	Fields FieldErrors
	Err    error
}

func (e *StoreError) Error() string {
	target := e.Op
	if e.ID != "" {
		target += " " + e.ID
	}
	if e.Err == nil {
		return fmt.Sprintf("inventory %s: %s", target, e.Kind)
	}
	return fmt.Sprintf("inventory %s: %s: %v", target, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is matches the sentinel belonging to the error kind.
func (e *StoreError) Is(target error) bool {
	switch e.Kind {
	case KindNotFound:
		return target == ErrNotFound
	case KindValidation:
		return target == ErrValidation
	case KindConflict:
		return target == ErrDuplicateSubmission
	}
	return false
}

// UserMessage is the text shown to the user for this failure.
func (e *StoreError) UserMessage() string {
	switch e.Kind {
	case KindNetwork:
		return "The inventory service could not be reached. Please try again."
	case KindValidation:
		if msg, ok := e.Fields["general"]; ok {
			return msg
		}
		return "The inventory service rejected the item. Please check the fields."
	case KindNotFound:
		return "The item no longer exists. The list has been refreshed."
	case KindConflict:
		return "This item was already saved."
	default:
		return "Something went wrong while talking to the inventory service."
	}
}

// HTTPStatus maps the kind to the status used by the JSON API.
func (e *StoreError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FieldMessages exposes field errors for problem responses.
func (e *StoreError) FieldMessages() map[string]string {
	return e.Fields
}

// Classify wraps err into a StoreError for operation op on item id.
func Classify(op, id string, err error) *StoreError {
	if err == nil {
		return nil
	}
	var serr *StoreError
	if errors.As(err, &serr) {
		out := *serr
		if out.Op == "" {
			out.Op = op
		}
		if out.ID == "" {
			out.ID = id
		}
		return &out
	}
	out := &StoreError{Op: op, ID: id, Kind: KindInternal, Err: err}
	var fields FieldErrors
	var netErr net.Error
	switch {
	case errors.As(err, &fields):
		out.Kind = KindValidation
		out.Fields = fields
	case errors.Is(err, ErrValidation):
		out.Kind = KindValidation
	case errors.Is(err, ErrNotFound):
		out.Kind = KindNotFound
	case errors.Is(err, ErrDuplicateSubmission):
		out.Kind = KindConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.As(err, &netErr):
		out.Kind = KindNetwork
	}
	return out
}
