// Package apperrors defines the surface-level error taxonomy shared across
// the ingestion and digest pipelines (spec.md §7), and maps it to HTTP status.
package apperrors

import (
	"errors"
	"net/http"
)

// Kind identifies a surface-level error category. Kind values are compared
// with errors.Is against the sentinels below, not by string.
type Kind int

const (
	KindProjectNotFound Kind = iota
	KindDuplicateEventID
	KindNotFound
	KindSerialization
	KindCompression
	KindDecompression
	KindInvalidRequest
	KindConnectionPool
	KindDatabase
	KindMaxRetriesExceeded // reserved; not emitted by the core pipeline
)

// Error wraps an underlying cause with a taxonomy Kind.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error of the given kind wrapping cause.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

func (k Kind) Is(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

var (
	ErrProjectNotFound   = New(KindProjectNotFound, errors.New("project not found"))
	ErrDuplicateEventID  = New(KindDuplicateEventID, errors.New("duplicate event id"))
	ErrNotFound          = New(KindNotFound, errors.New("not found"))
	ErrSerialization     = New(KindSerialization, errors.New("unparseable payload"))
	ErrCompression       = New(KindCompression, errors.New("compression failed"))
	ErrDecompression     = New(KindDecompression, errors.New("decompression failed"))
	ErrInvalidRequest    = New(KindInvalidRequest, errors.New("invalid request"))
	ErrConnectionPool    = New(KindConnectionPool, errors.New("connection pool exhausted"))
	ErrDatabase          = New(KindDatabase, errors.New("database error"))
	ErrMaxRetriesExceeded = New(KindMaxRetriesExceeded, errors.New("max retries exceeded"))
)

// Of returns (Kind, true) for an error carrying a Kind, or (0, false) when
// err carries none; HTTPStatus maps that case to 500.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// HTTPStatus maps an error to its HTTP status per spec.md §7's central function.
func HTTPStatus(err error) int {
	kind, ok := Of(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case KindProjectNotFound:
		return http.StatusNotFound
	case KindDuplicateEventID:
		return http.StatusConflict
	case KindSerialization, KindCompression, KindDecompression:
		return http.StatusUnprocessableEntity
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindConnectionPool, KindDatabase:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
