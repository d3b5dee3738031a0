package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing courses, hierarchies or sections.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures reported by the backend.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNetwork wraps any transport failure talking to a collaborator.
	ErrNetwork = errors.New("network error")

	// ErrExtractionDegraded marks a transcript that could not be fetched.
	// Pipelines treat it as a branch, never as a failure.
	ErrExtractionDegraded = errors.New("transcript extraction degraded")
	// ErrDirectSaveFailed means the generation call did not persist its output.
	ErrDirectSaveFailed = errors.New("direct save failed")
	// ErrParse marks stored content that could not be decoded.
	ErrParse = errors.New("parse error")
	// ErrEmptyGeneration means a generation call succeeded but returned no text.
	ErrEmptyGeneration = errors.New("generation returned no content")
)

// Surfaced reports whether err belongs to the classes a user is shown:
// network, auth and not-found failures.
func Surfaced(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrExtractionDegraded) || errors.Is(err, ErrDirectSaveFailed) || errors.Is(err, ErrParse) {
		return false
	}
	return true
}

// Code maps err onto a short machine-readable notice code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrEmptyGeneration):
		return "empty_generation"
	default:
		return "internal"
	}
}
