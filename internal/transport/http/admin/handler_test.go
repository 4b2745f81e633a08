package admin_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/infinitetech/repairdesk/internal/cache"
	"github.com/infinitetech/repairdesk/internal/config"
	"github.com/infinitetech/repairdesk/internal/database/dbtest"
	"github.com/infinitetech/repairdesk/internal/entity"
	"github.com/infinitetech/repairdesk/internal/messaging"
	archiverepo "github.com/infinitetech/repairdesk/internal/repository/archive"
	bookingrepo "github.com/infinitetech/repairdesk/internal/repository/booking"
	service "github.com/infinitetech/repairdesk/internal/service/booking"
	"github.com/infinitetech/repairdesk/internal/transport/http/admin"
	"github.com/infinitetech/repairdesk/internal/transport/http/route"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Kind    string         `json:"kind"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	Meta map[string]any `json:"meta"`
}

type row struct {
	ID           int64      `json:"id"`
	TrackingID   string     `json:"tracking_id"`
	CustomerName string     `json:"customer_name"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ArchivedAt   *time.Time `json:"archived_at"`
}

type harness struct {
	e   *echo.Echo
	svc *service.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	conns := dbtest.New(t)
	svc := service.NewService(service.Params{
		Connections: conns,
		Bookings:    bookingrepo.NewRepository(conns),
		Archive:     archiverepo.NewRepository(conns),
		Cache:       cache.NoopStore{},
		Config:      config.Config{Booking: config.Booking{TrackingAttempts: 8}},
		Logger:      zap.NewNop(),
		Publisher:   messaging.NoopClient{},
	})

	e := echo.New()
	h := admin.NewHandler(svc)
	route.Mount(e, func(g *echo.Group) { admin.Register(g, h) })
	return &harness{e: e, svc: svc}
}

func (h *harness) seed(t *testing.T, name string) *entity.Booking {
	t.Helper()
	b, err := h.svc.Create(context.Background(), service.CreateInput{
		CustomerName: name,
		Email:        strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		DeviceType:   "Laptop",
	})
	require.NoError(t, err)
	return b
}

func (h *harness) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func rows(t *testing.T, env envelope) []row {
	t.Helper()
	var out []row
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestUpdateStatus(t *testing.T) {
	h := newHarness(t)
	b := h.seed(t, "Jane Doe")

	code, env := h.do(t, http.MethodPatch, fmt.Sprintf("/api/admin/bookings/%d/status", b.ID), `{"status":"Repairing"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Status updated successfully", env.Meta["message"])

	var updated row
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "Repairing", updated.Status)
	assert.True(t, updated.UpdatedAt.After(b.UpdatedAt))

	code, env = h.do(t, http.MethodPatch, fmt.Sprintf("/admin/bookings/%d/status", b.ID), `{"status":"Shipped"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid status", env.Error.Message)
	assert.Len(t, env.Error.Details["allowed"], 5)

	code, _ = h.do(t, http.MethodPatch, "/admin/bookings/9999/status", `{"status":"Ready"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(t, http.MethodPatch, "/admin/bookings/abc/status", `{"status":"Ready"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestArchiveAndListArchived(t *testing.T) {
	h := newHarness(t)
	b := h.seed(t, "Jane Doe")
	h.seed(t, "John Smith")

	code, env := h.do(t, http.MethodPost, fmt.Sprintf("/admin/bookings/%d/archive", b.ID), "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Booking archived successfully", env.Meta["message"])

	var archived row
	require.NoError(t, json.Unmarshal(env.Data, &archived))
	assert.Equal(t, b.ID, archived.ID)
	require.NotNil(t, archived.ArchivedAt)

	code, env = h.do(t, http.MethodPost, fmt.Sprintf("/admin/bookings/%d/archive", b.ID), "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Booking not found or already archived", env.Error.Message)

	code, env = h.do(t, http.MethodGet, "/api/admin/archived-bookings", "")
	require.Equal(t, http.StatusOK, code)
	list := rows(t, env)
	require.Len(t, list, 1)
	assert.Equal(t, b.TrackingID, list[0].TrackingID)

	code, env = h.do(t, http.MethodGet, "/admin/bookings", "")
	require.Equal(t, http.StatusOK, code)
	list = rows(t, env)
	require.Len(t, list, 1)
	assert.Equal(t, "John Smith", list[0].CustomerName)
	assert.Nil(t, list[0].ArchivedAt)

	code, env = h.do(t, http.MethodGet, fmt.Sprintf("/admin/archived-bookings/%d", b.ID), "")
	require.Equal(t, http.StatusOK, code)
	var back row
	require.NoError(t, json.Unmarshal(env.Data, &back))
	assert.Equal(t, b.TrackingID, back.TrackingID)
}

func TestSearchSpansBothTables(t *testing.T) {
	h := newHarness(t)
	first := h.seed(t, "John Smith")
	h.seed(t, "Mary Jones")
	h.seed(t, "Anna Smithson")

	_, err := h.svc.Archive(context.Background(), first.ID)
	require.NoError(t, err)

	code, env := h.do(t, http.MethodGet, "/admin/bookings?q=smith", "")
	require.Equal(t, http.StatusOK, code)
	list := rows(t, env)
	require.Len(t, list, 2)
	assert.Equal(t, "Anna Smithson", list[0].CustomerName)
	assert.Nil(t, list[0].ArchivedAt)
	assert.Equal(t, "John Smith", list[1].CustomerName)
	assert.NotNil(t, list[1].ArchivedAt)
	assert.EqualValues(t, 2, env.Meta["count"])

	code, env = h.do(t, http.MethodGet, "/admin/bookings?view=archived", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, rows(t, env), 1)

	code, _ = h.do(t, http.MethodGet, "/admin/bookings?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(t, http.MethodGet, "/admin/bookings?view=deleted", "")
	assert.Equal(t, http.StatusBadRequest, code)
}
