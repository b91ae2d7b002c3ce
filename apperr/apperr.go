package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// Kind classifies an error for the HTTP boundary
type Kind string

const (
	KindValidation          Kind = "VALIDATION_ERROR"
	KindUnauthenticated     Kind = "UNAUTHENTICATED"
	KindForbidden           Kind = "FORBIDDEN"
	KindNotFound            Kind = "NOT_FOUND"
	KindConflict            Kind = "CONFLICT"
	KindInsufficientBalance Kind = "INSUFFICIENT_BALANCE"
	KindLimitExceeded       Kind = "LIMIT_EXCEEDED"
	KindExpired             Kind = "EXPIRED"
	KindUpstream            Kind = "UPSTREAM_ERROR"
	KindRateLimited         Kind = "RATE_LIMITED"
	KindUnavailable         Kind = "SERVICE_UNAVAILABLE"
	KindInternal            Kind = "INTERNAL_ERROR"
)

type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails attaches client-visible context such as field errors or valid next states
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *Error          { return New(KindValidation, msg) }
func Unauthenticated(msg string) *Error     { return New(KindUnauthenticated, msg) }
func Forbidden(msg string) *Error           { return New(KindForbidden, msg) }
func NotFound(msg string) *Error            { return New(KindNotFound, msg) }
func Conflict(msg string) *Error            { return New(KindConflict, msg) }
func InsufficientBalance(msg string) *Error { return New(KindInsufficientBalance, msg) }
func LimitExceeded(msg string) *Error       { return New(KindLimitExceeded, msg) }
func Expired(msg string) *Error             { return New(KindExpired, msg) }
func RateLimited(msg string) *Error         { return New(KindRateLimited, msg) }
func Unavailable(msg string) *Error         { return New(KindUnavailable, msg) }

func Upstream(msg string, err error) *Error { return Wrap(KindUpstream, msg, err) }
func Internal(msg string, err error) *Error { return Wrap(KindInternal, msg, err) }

// KindOf returns the kind of err; anything unclassified is internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindInsufficientBalance, KindLimitExceeded, KindExpired:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstream:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromDB classifies a storage error. Missing rows become NotFound with the
// given message, unique violations become Conflict, the rest are Upstream.
func FromDB(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(notFoundMsg)
	}
	if IsUniqueViolation(err) {
		return Wrap(KindConflict, "resource already exists", err)
	}
	return Upstream("database error", err)
}

// IsUniqueViolation matches both gorm's translated error and raw driver messages
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
