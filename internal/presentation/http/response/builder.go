// Package response renders the JSON envelope every orders endpoint answers with:
// {"success":true,"data":...} on success and {"success":false,"error":{...}} on failure.
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/delivery/pkg/errorbank"
)

type envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *errorBody     `json:"error,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

type errorBody struct {
	Kind    errorbank.Kind `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// newErrorBody exposes kind and message; details are dropped for internal
// failures, whose details carry driver and transport state.
func newErrorBody(appErr *errorbank.AppError) *errorBody {
	body := &errorBody{Kind: appErr.Kind(), Message: appErr.Message()}
	if appErr.Kind() != errorbank.KindInternal {
		body.Details = appErr.Details()
	}
	return body
}

// Builder accumulates an envelope for a single request.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx}
}

// WithStatus sets the status code. On errors it only applies when it is itself
// an error status; otherwise the error kind decides.
func (b *Builder) WithStatus(status int) *Builder {
	b.status = status
	return b
}

func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta adds a meta entry. Empty keys are ignored.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key != "" {
		if b.meta == nil {
			b.meta = map[string]any{}
		}
		b.meta[key] = value
	}
	return b
}

// Build writes the envelope.
func (b *Builder) Build() error {
	status, body := b.envelope()
	return b.ctx.JSON(status, body)
}

func (b *Builder) envelope() (int, envelope) {
	if b.err == nil {
		status := b.status
		if status <= 0 {
			status = http.StatusOK
		}
		return status, envelope{Success: true, Data: b.data, Meta: b.meta}
	}

	appErr := errorbank.From(b.err)
	status := appErr.StatusCode()
	if b.status >= http.StatusBadRequest {
		status = b.status
	}
	return status, envelope{Error: newErrorBody(appErr), Meta: b.meta}
}
