package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies failures that cross the core boundary.
type Kind string

const (
	KindUnauthorizedTenant  Kind = "unauthorized_tenant"
	KindNotConnected        Kind = "not_connected"
	KindMalformedState      Kind = "malformed_state"
	KindTokenExchangeFailed Kind = "token_exchange_failed"
	KindSheetSetupFailed    Kind = "sheet_setup_failed"
	KindDeliveryFailed      Kind = "delivery_failed"
)

func (k Kind) String() string { return string(k) }

// Error carries a kind, a human readable detail and the provider error (if any).
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorizedTenant  = &Error{Kind: KindUnauthorizedTenant}
	ErrNotConnected        = &Error{Kind: KindNotConnected}
	ErrMalformedState      = &Error{Kind: KindMalformedState}
	ErrTokenExchangeFailed = &Error{Kind: KindTokenExchangeFailed}
	ErrSheetSetupFailed    = &Error{Kind: KindSheetSetupFailed}
	ErrDeliveryFailed      = &Error{Kind: KindDeliveryFailed}
)

// New builds an *Error of the given kind.
func New(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
