package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for errors.Is matching across layers
var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrTemplateNotFound  = errors.New("template not found")
)

// DomainError is a typed error carrying an HTTP-appropriate status code.
// Coordinators guarantee every error leaving them is one of these.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Cause   error
	// Metadata carries structured context (operation, ids) for logging
	Metadata map[string]any
}

// ErrorKind classifies domain failures
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation_error"
	KindInvalidState ErrorKind = "invalid_state"
	KindNotFound     ErrorKind = "not_found"
	KindGeneration   ErrorKind = "generation_error"
	KindResponse     ErrorKind = "response_error"
)

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error kind to a response status code
func (e *DomainError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidState:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindResponse:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError reports malformed input or an invariant violation
func NewValidationError(format string, args ...any) *DomainError {
	return &DomainError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidStateError reports an illegal lifecycle transition
func NewInvalidStateError(format string, args ...any) *DomainError {
	return &DomainError{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError reports a missing entity
func NewNotFoundError(format string, args ...any) *DomainError {
	return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// WrapGenerationError boxes a failure in the generation workflow
func WrapGenerationError(msg string, cause error) *DomainError {
	return &DomainError{Kind: KindGeneration, Message: msg, Cause: cause}
}

// WrapResponseError boxes a failure in the submission workflow
func WrapResponseError(msg string, cause error) *DomainError {
	return &DomainError{Kind: KindResponse, Message: msg, Cause: cause}
}

// IsKind reports whether err is a DomainError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// AsDomainError extracts a DomainError from err, or nil
func AsDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return nil
}
