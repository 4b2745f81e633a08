package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/infinitetech/repairdesk/internal/config"
	"github.com/infinitetech/repairdesk/internal/database/dbtest"
	server "github.com/infinitetech/repairdesk/internal/server/http"
)

func TestHealth(t *testing.T) {
	conns := dbtest.New(t)
	cfg := config.Config{HTTP: config.HTTP{CORSOrigins: []string{"*"}}}
	e := server.NewEcho(cfg, nil, conns, zap.NewNop())

	for _, path := range []string{"/health", "/api/health"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)

		var body struct {
			Success bool           `json:"success"`
			Data    map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, "ok", body.Data["status"])
	}

	require.NoError(t, conns.Writer.Close())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	conns := dbtest.New(t)
	cfg := config.Config{HTTP: config.HTTP{CORSOrigins: []string{"https://shop.example.com"}}}
	e := server.NewEcho(cfg, nil, conns, zap.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
