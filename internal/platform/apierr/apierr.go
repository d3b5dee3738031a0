package apierr

import (
	"fmt"
	"net/http"

	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
)

// Error is a non-2xx answer from a backend collaborator.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatusCode lets httpx classify the error as retryable.
func (e *Error) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.Status
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromStatus builds an Error whose cause is the taxonomy sentinel for status.
func FromStatus(status int, body string) *Error {
	var cause error
	switch {
	case status == http.StatusNotFound:
		cause = nberrors.ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		cause = nberrors.ErrUnauthorized
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		cause = nberrors.ErrInvalidArgument
	default:
		cause = nberrors.ErrNetwork
	}
	return &Error{
		Status: status,
		Code:   http.StatusText(status),
		Err:    fmt.Errorf("backend http %d: %s: %w", status, truncate(body, 256), cause),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
