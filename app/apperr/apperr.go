package apperr

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

type Kind string

const (
	KindValidation           Kind = "ValidationError"
	KindInvalidSessionFormat Kind = "InvalidSessionFormat"
	KindIllegalTransition    Kind = "IllegalTransition"
	KindForbidden            Kind = "Forbidden"
	KindNotFound             Kind = "NotFound"
	KindStore                Kind = "StoreError"
)

// Error is the error type returned by the workflow, session and query packages.
// Detail is only shown to clients outside production.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Cause() error { return e.Err }

// StatusCode maps the error kind to the HTTP status it is surfaced as.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation, KindInvalidSessionFormat, KindIllegalTransition:
		return fiber.StatusBadRequest
	case KindForbidden:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func InvalidSessionFormat(label, reason string) error {
	return &Error{
		Kind:    KindInvalidSessionFormat,
		Message: fmt.Sprintf("invalid session %q, expected format YYYY-YY or YY-YY", label),
		Detail:  reason,
	}
}

func IllegalTransition(required, current string) error {
	return &Error{
		Kind:    KindIllegalTransition,
		Message: fmt.Sprintf("application must be %s, current status is %s", required, current),
	}
}

func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Store wraps a persistence failure, keeping the stack for the server log.
func Store(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindStore, Message: msg, Detail: err.Error(), Err: errors.WithStack(err)}
}

// KindOf reports the kind of err, or KindStore for errors that did not originate here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

// As finds the first *Error in err's chain.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
