// Package errorbank carries the failure kinds of the booking service to every
// transport: the HTTP envelope, gRPC status codes and CLI output.
package errorbank

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind names a booking failure category. The value is rendered as error.kind.
type Kind string

const (
	// KindBadRequest marks rejected input: missing booking fields, unknown status or view.
	KindBadRequest Kind = "bad_request"
	// KindConflict marks an exhausted tracking-id space or an idempotency key still in flight.
	KindConflict Kind = "conflict"
	// KindNotFound marks a booking that is missing or has already moved to the archive.
	KindNotFound Kind = "not_found"
	// KindArchiveFailed marks an archive move that was rolled back.
	KindArchiveFailed Kind = "archive_failed"
	// KindInternal marks a storage fault.
	KindInternal Kind = "internal"
)

type mapping struct {
	status int
	code   codes.Code
}

var mappings = map[Kind]mapping{
	KindBadRequest:    {http.StatusBadRequest, codes.InvalidArgument},
	KindConflict:      {http.StatusConflict, codes.AlreadyExists},
	KindNotFound:      {http.StatusNotFound, codes.NotFound},
	KindArchiveFailed: {http.StatusInternalServerError, codes.Aborted},
	KindInternal:      {http.StatusInternalServerError, codes.Internal},
}

// AppError is a booking failure with a customer-safe message, optional details
// (the offending id, the allowed statuses) and the underlying cause.
type AppError struct {
	kind    Kind
	message string
	details map[string]any
	cause   error
}

// Option configures an AppError.
type Option func(*AppError)

// WithCause keeps the driver or cache error behind the failure.
func WithCause(err error) Option {
	return func(appErr *AppError) {
		appErr.cause = err
	}
}

// WithDetail adds one entry to error.details.
func WithDetail(key string, value any) Option {
	return func(appErr *AppError) {
		if appErr.details == nil {
			appErr.details = make(map[string]any)
		}
		appErr.details[key] = value
	}
}

// WithDetails merges entries into error.details.
func WithDetails(details map[string]any) Option {
	return func(appErr *AppError) {
		for k, v := range details {
			WithDetail(k, v)(appErr)
		}
	}
}

// New builds an AppError. An empty message falls back to the kind name.
func New(kind Kind, message string, opts ...Option) *AppError {
	if message == "" {
		message = string(kind)
	}
	appErr := &AppError{kind: kind, message: message}
	for _, opt := range opts {
		opt(appErr)
	}
	return appErr
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	default:
		return e.message
	}
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Kind returns the category, KindInternal for a nil error.
func (e *AppError) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

func (e *AppError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *AppError) Details() map[string]any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *AppError) mapping() mapping {
	if m, ok := mappings[e.Kind()]; ok {
		return m
	}
	return mappings[KindInternal]
}

// StatusCode is the HTTP status the envelope is sent with.
func (e *AppError) StatusCode() int {
	return e.mapping().status
}

// GRPCCode is the status code returned by the gRPC interceptors.
func (e *AppError) GRPCCode() codes.Code {
	return e.mapping().code
}

// BadRequest rejects booking input.
func BadRequest(message string, opts ...Option) *AppError {
	return New(KindBadRequest, message, opts...)
}

// Conflict reports a tracking-id or idempotency clash.
func Conflict(message string, opts ...Option) *AppError {
	return New(KindConflict, message, opts...)
}

// NotFound reports a booking that is not active.
func NotFound(message string, opts ...Option) *AppError {
	return New(KindNotFound, message, opts...)
}

// ArchiveFailed reports an archive move that was rolled back.
func ArchiveFailed(message string, opts ...Option) *AppError {
	return New(KindArchiveFailed, message, opts...)
}

// Internal reports a storage fault.
func Internal(message string, opts ...Option) *AppError {
	return New(KindInternal, message, opts...)
}

// Is reports whether err wraps an AppError of kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.kind == kind
}

// From returns the AppError inside err, wrapping anything else as internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", WithCause(err))
}
