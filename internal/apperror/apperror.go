// Package apperror defines the error kinds surfaced by the order pipeline.
// Every rejection carries a machine-readable Kind and a human message.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation                Kind = "validation_error"
	KindNotFound                  Kind = "not_found"
	KindNotAvailable              Kind = "not_available"
	KindInsufficientStock         Kind = "insufficient_stock"
	KindPaymentVerificationFailed Kind = "payment_verification_failed"
	KindDuplicateRequest          Kind = "duplicate_request" // success alias for an idempotent replay
	KindInvalidTransition         Kind = "invalid_transition"
	KindGatewayUnavailable        Kind = "gateway_unavailable"
	KindTransactionDegraded       Kind = "transaction_degraded"
	KindForbidden                 Kind = "forbidden"
	KindConflict                  Kind = "conflict"
)

type Error struct {
	Kind    Kind
	Message string

	// set for KindInsufficientStock
	AvailableStock *int
	// set for KindInvalidTransition
	AllowedTargets []string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, apperror.New(KindNotFound, ""))
// works as a kind test.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func NotAvailable(format string, args ...any) *Error {
	return New(KindNotAvailable, format, args...)
}

func InsufficientStock(productID string, available int) *Error {
	return &Error{
		Kind:           KindInsufficientStock,
		Message:        fmt.Sprintf("insufficient stock for product %s", productID),
		AvailableStock: &available,
	}
}

func PaymentVerification(format string, args ...any) *Error {
	return New(KindPaymentVerificationFailed, format, args...)
}

func InvalidTransition(from, to string, allowed []string) *Error {
	return &Error{
		Kind:           KindInvalidTransition,
		Message:        fmt.Sprintf("cannot move order from %s to %s", from, to),
		AllowedTargets: allowed,
	}
}

func GatewayUnavailable(err error) *Error {
	return Wrap(err, KindGatewayUnavailable, "payment gateway unavailable")
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

// KindOf reports the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
