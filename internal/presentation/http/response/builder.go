// Package response renders every booking endpoint in one envelope:
// {"success", "data", "error": {"kind", "message", "details"}, "meta"}.
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/infinitetech/repairdesk/pkg/errorbank"
)

type errorBody struct {
	Kind    errorbank.Kind `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *errorBody     `json:"error,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Builder collects the payload of one booking response.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

// New starts a 200 response for ctx.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the status. For errors it only applies to 4xx and 5xx codes.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData sets the booking, listing or acknowledgement returned as data.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError turns the response into a failure envelope.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta adds a meta entry such as a listing count.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// WithMessage sets meta.message, e.g. "Booking confirmed successfully".
func (b *Builder) WithMessage(message string) *Builder {
	if message == "" {
		return b
	}
	return b.WithMeta("message", message)
}

// Build writes the envelope.
func (b *Builder) Build() error {
	body := envelope{Success: b.err == nil, Meta: b.meta}
	status := b.status

	if b.err == nil {
		body.Data = b.data
		return b.ctx.JSON(status, body)
	}

	appErr := errorbank.From(b.err)
	if status < http.StatusBadRequest {
		status = appErr.StatusCode()
	}
	body.Error = &errorBody{
		Kind:    appErr.Kind(),
		Message: appErr.Message(),
		Details: appErr.Details(),
	}
	return b.ctx.JSON(status, body)
}
