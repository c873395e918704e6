// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the transport layer.
var (
	ErrBadRequest   = errors.New("malformed request")
	ErrUnauthorized = errors.New("unauthorized")
)

type statusCoder interface {
	HTTPStatus() int
}

type userMessager interface {
	UserMessage() string
}

type fieldMessager interface {
	FieldMessages() map[string]string
}

// RespondError maps err to an RFC7807 response. Errors may describe
// themselves through HTTPStatus, UserMessage and FieldMessages methods.
// Internal details are never echoed for 5xx responses.
func RespondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var sc statusCoder
	switch {
	case errors.As(err, &sc):
		status = sc.HTTPStatus()
	case errors.Is(err, ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusUnauthorized
	}

	detail := ""
	var um userMessager
	if errors.As(err, &um) {
		detail = um.UserMessage()
	} else if status < http.StatusInternalServerError {
		detail = err.Error()
	}

	problem := ProblemDetail{Title: http.StatusText(status), Status: status, Detail: detail}
	var fm fieldMessager
	if errors.As(err, &fm) {
		problem.Errors = fm.FieldMessages()
	}
	JSON(w, status, problem)
}
