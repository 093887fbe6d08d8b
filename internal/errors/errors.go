// Package errors defines the domain error kinds shared by services and
// mapped to HTTP statuses by the handlers.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a DomainError.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuthorization     Kind = "authorization"
	KindNotFound          Kind = "not_found"
	KindInvalidState      Kind = "invalid_state"
	KindDuplicateAction   Kind = "duplicate_action"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindExecutionFailed   Kind = "execution_failed"
	KindPersistence       Kind = "persistence"
	KindExpiredNonce      Kind = "expired_nonce"
	KindInvalidSignature  Kind = "invalid_signature"
)

type DomainError struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is matches any DomainError of the same kind, so errors.Is(err, ErrNotFound)
// holds for every not-found error whatever its message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation        = &DomainError{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: "validation failed"}
	ErrAuthorization     = &DomainError{Kind: KindAuthorization, Code: "FORBIDDEN", Message: "not authorized"}
	ErrNotFound          = &DomainError{Kind: KindNotFound, Code: "NOT_FOUND", Message: "not found"}
	ErrInvalidState      = &DomainError{Kind: KindInvalidState, Code: "INVALID_STATE", Message: "invalid state"}
	ErrDuplicateAction   = &DomainError{Kind: KindDuplicateAction, Code: "DUPLICATE_ACTION", Message: "action already recorded"}
	ErrInsufficientFunds = &DomainError{Kind: KindInsufficientFunds, Code: "INSUFFICIENT_BALANCE", Message: "insufficient wallet balance"}
	ErrExecutionFailed   = &DomainError{Kind: KindExecutionFailed, Code: "EXECUTION_FAILED", Message: "execution failed"}
	ErrPersistence       = &DomainError{Kind: KindPersistence, Code: "PERSISTENCE_ERROR", Message: "storage failure"}
	ErrExpiredNonce      = &DomainError{Kind: KindExpiredNonce, Code: "NONCE_EXPIRED", Message: "nonce expired or not found"}
	ErrInvalidSignature  = &DomainError{Kind: KindInvalidSignature, Code: "INVALID_SIGNATURE", Message: "invalid signature"}
)

func newError(base *DomainError, format string, args ...interface{}) *DomainError {
	msg := base.Message
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return &DomainError{Kind: base.Kind, Code: base.Code, Message: msg}
}

func Validation(format string, args ...interface{}) *DomainError {
	return newError(ErrValidation, format, args...)
}

// Authorization names the denied action.
func Authorization(action string) *DomainError {
	return newError(ErrAuthorization, "not authorized to %s", action)
}

func NotFound(what string) *DomainError {
	return newError(ErrNotFound, "%s not found", what)
}

func InvalidState(format string, args ...interface{}) *DomainError {
	return newError(ErrInvalidState, format, args...)
}

func DuplicateAction(format string, args ...interface{}) *DomainError {
	return newError(ErrDuplicateAction, format, args...)
}

func InsufficientFunds(format string, args ...interface{}) *DomainError {
	return newError(ErrInsufficientFunds, format, args...)
}

func ExecutionFailed(cause error) *DomainError {
	e := newError(ErrExecutionFailed, "")
	e.Err = cause
	return e
}

func Persistence(op string, cause error) *DomainError {
	e := newError(ErrPersistence, "failed to %s", op)
	e.Err = cause
	return e
}

func ExpiredNonce() *DomainError {
	return newError(ErrExpiredNonce, "")
}

func InvalidSignature() *DomainError {
	return newError(ErrInvalidSignature, "")
}

// KindOf returns the kind of the first DomainError in err's chain.
func KindOf(err error) (Kind, bool) {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// Wrap returns err unchanged when it already is a DomainError and a
// persistence error otherwise.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if stderrors.As(err, &de) {
		return err
	}
	return Persistence(op, err)
}
