package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func TestReadyHealthy(t *testing.T) {
	h := NewHandler("marketplace-api")
	h.Register("postgres", NewPingChecker("postgres", ok))
	h.Register("redis", NewPingChecker("redis", ok))

	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "marketplace-api", resp.Service)
	assert.Len(t, resp.Checks, 2)
}

func TestReadyUnhealthy(t *testing.T) {
	h := NewHandler("marketplace-api")
	h.Register("postgres", NewPingChecker("postgres", ok))
	h.Register("redis", NewPingChecker("redis", func(context.Context) error {
		return errors.New("connection refused")
	}))

	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["redis"].Message)
	assert.Equal(t, StatusHealthy, resp.Checks["postgres"].Status)
}

func TestPingCheckerGetsDeadline(t *testing.T) {
	h := NewHandler("svc")
	h.Register("db", NewPingChecker("db", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	}))
	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLive(t *testing.T) {
	w := httptest.NewRecorder()
	Live(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
