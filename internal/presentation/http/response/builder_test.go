package response_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinitetech/repairdesk/internal/presentation/http/response"
	"github.com/infinitetech/repairdesk/pkg/errorbank"
)

func render(t *testing.T, build func(c echo.Context) error) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, build(c))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestSuccessEnvelope(t *testing.T) {
	code, body := render(t, func(c echo.Context) error {
		return response.New(c).WithData(map[string]string{"trackingId": "TR-1234"}).WithMessage("ok").Build()
	})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"trackingId": "TR-1234"}, body["data"])
	assert.Equal(t, map[string]any{"message": "ok"}, body["meta"])
}

func TestErrorEnvelope(t *testing.T) {
	code, body := render(t, func(c echo.Context) error {
		return response.New(c).WithError(errorbank.NotFound("Booking ID not found", errorbank.WithDetail("id", 9))).Build()
	})

	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, map[string]any{
		"kind":    "not_found",
		"message": "Booking ID not found",
		"details": map[string]any{"id": float64(9)},
	}, body["error"])

	code, body = render(t, func(c echo.Context) error {
		return response.New(c).WithError(errors.New("driver exploded")).Build()
	})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal error", body["error"].(map[string]any)["message"])

	code, _ = render(t, func(c echo.Context) error {
		return response.New(c).WithStatus(http.StatusServiceUnavailable).WithError(errorbank.Internal("down")).Build()
	})
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
