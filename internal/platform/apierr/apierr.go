package apierr

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/aquaforge/pondops-backend/internal/pkg/errors"
)

// Error carries an HTTP status and a machine-readable code alongside the
// wrapped cause.
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

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(code string, err error) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: code, Err: err}
}

func Conflict(code string, err error) *Error {
	return &Error{Status: http.StatusConflict, Code: code, Err: err}
}

func NotFound(code string, err error) *Error {
	return &Error{Status: http.StatusNotFound, Code: code, Err: err}
}

// From maps an arbitrary service error onto an API error. Known *Error
// values pass through untouched; sentinel-tagged errors pick up their
// canonical status.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		return &Error{Status: http.StatusNotFound, Code: "not_found", Err: err}
	case errors.Is(err, pkgerrors.ErrConflict):
		return &Error{Status: http.StatusConflict, Code: "conflict", Err: err}
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return &Error{Status: http.StatusUnprocessableEntity, Code: "invalid_argument", Err: err}
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		return &Error{Status: http.StatusUnauthorized, Code: "unauthorized", Err: err}
	}
	return &Error{Status: http.StatusInternalServerError, Code: "internal", Err: err}
}
