package httpx

import (
	"errors"
	"net/http"
)

// Error kinds understood by RespondError. Domain packages classify their errors
// into one of these before responding.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrConflict    = errors.New("conflict")
	ErrValidation  = errors.New("validation failed")
	ErrUnavailable = errors.New("service unavailable")
)

// Kinded attaches an error kind to err while keeping err's message.
func Kinded(kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string   { return e.err.Error() }
func (e *kindError) Unwrap() []error { return []error{e.kind, e.err} }

// RespondError maps error kinds to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	RespondErrorWith(w, err, nil)
}

// RespondErrorWith is RespondError with extension members added to the problem.
func RespondErrorWith(w http.ResponseWriter, err error, ext map[string]any) {
	switch {
	case errors.Is(err, ErrNotFound):
		ProblemWith(w, http.StatusNotFound, "Not Found", err.Error(), ext)
	case errors.Is(err, ErrConflict):
		ProblemWith(w, http.StatusConflict, "Conflict", err.Error(), ext)
	case errors.Is(err, ErrValidation):
		ProblemWith(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error(), ext)
	case errors.Is(err, ErrUnavailable):
		ProblemWith(w, http.StatusServiceUnavailable, "Service Unavailable", "", ext)
	default:
		ProblemWith(w, http.StatusInternalServerError, "Internal Error", "", ext)
	}
}
