package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/delivery/pkg/errorbank"
)

func render(t *testing.T, build func(c echo.Context) error) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, build(c))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestBuildSuccess(t *testing.T) {
	code, body := render(t, func(c echo.Context) error {
		return New(c).WithStatus(http.StatusCreated).WithData(map[string]string{"dish": "Locro"}).WithMeta("count", 1).WithMeta("", 2).Build()
	})

	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"dish": "Locro"}, body["data"])
	assert.Equal(t, map[string]any{"count": float64(1)}, body["meta"])
}

func TestBuildEmptyListKeepsData(t *testing.T) {
	_, body := render(t, func(c echo.Context) error {
		return New(c).WithData([]string{}).Build()
	})
	assert.Equal(t, []any{}, body["data"])
}

func TestBuildAppError(t *testing.T) {
	code, body := render(t, func(c echo.Context) error {
		return New(c).WithError(errorbank.Unprocessable("customer 42 does not exist", errorbank.WithDetail("customer_id", "42"))).Build()
	})

	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, false, body["success"])
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "unprocessable_entity", errBody["kind"])
	assert.Equal(t, "customer 42 does not exist", errBody["message"])
	assert.Equal(t, map[string]any{"customer_id": "42"}, errBody["details"])
}

func TestBuildPlainErrorIsInternal(t *testing.T) {
	code, body := render(t, func(c echo.Context) error {
		return New(c).WithError(errorbank.Internal("failed to load order",
			errorbank.WithCause(errors.New("pq: password authentication failed")),
			errorbank.WithDetail("dsn", "secret"),
		)).Build()
	})

	assert.Equal(t, http.StatusInternalServerError, code)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "internal", errBody["kind"])
	assert.Equal(t, "failed to load order", errBody["message"])
	assert.NotContains(t, errBody, "details")
}

func TestBuildErrorStatusOverride(t *testing.T) {
	notFound := errorbank.NotFound("order not found")

	code, body := render(t, func(c echo.Context) error {
		return New(c).WithStatus(http.StatusCreated).WithError(notFound).Build()
	})
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotContains(t, body, "data")

	code, _ = render(t, func(c echo.Context) error {
		return New(c).WithStatus(http.StatusGone).WithError(notFound).Build()
	})
	assert.Equal(t, http.StatusGone, code)
}
