package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// Kind classifies a dedupe failure.
type Kind string

const (
	KindInvalidInput          Kind = "invalid_input"
	KindNotFound              Kind = "not_found"
	KindTransientStoreFailure Kind = "transient_store_failure"
)

var (
	ErrInvalidInput          = &DedupeError{Kind: KindInvalidInput, Message: "invalid input"}
	ErrNotFound              = &DedupeError{Kind: KindNotFound, Message: "not found"}
	ErrTransientStoreFailure = &DedupeError{Kind: KindTransientStoreFailure, Message: "transient store failure"}
)

type DedupeError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *DedupeError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DedupeError) Unwrap() error {
	return e.Err
}

// Is matches any DedupeError of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *DedupeError) Is(target error) bool {
	t, ok := target.(*DedupeError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func (e *DedupeError) StatusCode() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

func (e *DedupeError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(e.StatusCode(), e.Error()).AddMetaValue("kind", string(e.Kind))
}

func InvalidInput(format string, args ...any) *DedupeError {
	return &DedupeError{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *DedupeError {
	return &DedupeError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Transient(err error, format string, args ...any) *DedupeError {
	return &DedupeError{Kind: KindTransientStoreFailure, Message: fmt.Sprintf(format, args...), Err: err}
}

// Classify converts err into a DedupeError. Repository errors carry an
// httperror status code; 400 and 404 map to InvalidInput and NotFound and
// everything else is treated as a transient store failure.
func Classify(err error) *DedupeError {
	if err == nil {
		return nil
	}

	var de *DedupeError
	if errors.As(err, &de) {
		return de
	}

	if httperror.IsHTTPError(err) {
		switch httperror.GetStatusCode(err) {
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return &DedupeError{Kind: KindInvalidInput, Message: err.Error(), Err: err}
		case http.StatusNotFound:
			return &DedupeError{Kind: KindNotFound, Message: err.Error(), Err: err}
		}
	}

	return &DedupeError{Kind: KindTransientStoreFailure, Message: err.Error(), Err: err}
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

func IsDedupeError(err error) bool {
	var de *DedupeError
	return errors.As(err, &de)
}
