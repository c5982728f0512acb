package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err      *AppError
		httpCode int
		grpcCode codes.Code
	}{
		{BadRequest("bad"), http.StatusBadRequest, codes.InvalidArgument},
		{Conflict("dup"), http.StatusConflict, codes.AlreadyExists},
		{NotFound("missing"), http.StatusNotFound, codes.NotFound},
		{Unprocessable("nope"), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{Upstream("down"), http.StatusBadGateway, codes.Unavailable},
		{Internal("boom"), http.StatusInternalServerError, codes.Internal},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Kind()), func(t *testing.T) {
			assert.Equal(t, tt.httpCode, tt.err.StatusCode())
			assert.Equal(t, tt.grpcCode, tt.err.GRPCCode())
		})
	}
}

func TestCauseAndDetails(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("customer lookup failed",
		WithCause(cause),
		WithDetail("customer_id", "42"),
		WithDetails(map[string]any{"status": 503}),
	)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "customer lookup failed: connection refused", err.Error())
	assert.Equal(t, "customer lookup failed", err.Message())
	assert.Equal(t, map[string]any{"customer_id": "42", "status": 503}, err.Details())
}

func TestFromAndIs(t *testing.T) {
	assert.Nil(t, From(nil))

	plain := errors.New("plain")
	wrapped := From(plain)
	assert.Equal(t, KindInternal, wrapped.Kind())
	assert.ErrorIs(t, wrapped, plain)

	nf := NotFound("order not found")
	outer := fmt.Errorf("handler: %w", nf)
	assert.Same(t, nf, From(outer))
	assert.True(t, Is(outer, KindNotFound))
	assert.False(t, Is(outer, KindInternal))
	assert.False(t, Is(plain, KindInternal))
}

func TestNilAppError(t *testing.T) {
	var err *AppError
	assert.Equal(t, "<nil>", err.Error())
	assert.Equal(t, KindInternal, err.Kind())
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode())
}

func TestUnknownKindIsInternal(t *testing.T) {
	err := New(Kind("teapot"), "")
	assert.Equal(t, "teapot", err.Message())
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode())
	assert.Equal(t, codes.Internal, err.GRPCCode())
}
