package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport-layer mapping.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindPreconditionFailed  Kind = "precondition_failed"
	KindConflict            Kind = "conflict"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindBadRequest          Kind = "bad_request"
	KindTransactionFailed   Kind = "transaction_failed"
	KindExpired             Kind = "expired"
	KindReconciliationDrift Kind = "reconciliation_drift"
	KindNetwork             Kind = "network_error"
	KindInternal            Kind = "internal"
)

// Error carries a classification alongside the underlying cause.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error.
func E(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Ef builds a classified error with a formatted detail.
func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a classification to an underlying error.
func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the classification of err, or KindInternal when it carries
// none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
