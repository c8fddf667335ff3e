package common

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure classes every caller of the resolver handles.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindUnresolved          Kind = "unresolved"
	KindCatalogUnavailable  Kind = "catalog_unavailable"
	KindFallbackUnavailable Kind = "fallback_unavailable"
	KindInvalidCredential   Kind = "invalid_credential"
	KindInternal            Kind = "internal"
)

// Error is the typed failure returned across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches sentinel errors by kind, so errors.Is(err, ErrUnresolved) works
// for any *Error of that kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && t.Message == ""
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
	ErrUnresolved          = &Error{Kind: KindUnresolved}
	ErrCatalogUnavailable  = &Error{Kind: KindCatalogUnavailable}
	ErrFallbackUnavailable = &Error{Kind: KindFallbackUnavailable}
	ErrInvalidCredential   = &Error{Kind: KindInvalidCredential}
	ErrInternal            = &Error{Kind: KindInternal}
)

// NoValidItems is the message shown when an utterance yields nothing printable.
const NoValidItems = "no valid items found"

func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func InvalidInput(message string) error { return NewError(KindInvalidInput, message, nil) }

func Unresolved(message string) error { return NewError(KindUnresolved, message, nil) }

func CatalogUnavailable(cause error) error {
	return NewError(KindCatalogUnavailable, "catalog unavailable", cause)
}

func FallbackUnavailable(message string, cause error) error {
	return NewError(KindFallbackUnavailable, message, cause)
}

func InvalidCredential(message string, cause error) error {
	return NewError(KindInvalidCredential, message, cause)
}

func Internal(message string, cause error) error {
	return NewError(KindInternal, message, cause)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
