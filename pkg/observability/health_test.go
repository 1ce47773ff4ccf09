package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func failing(context.Context) error { return errors.New("down") }

func TestHealthChecker_Check(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(h *HealthChecker)
		status string
	}{
		{
			name:   "no checks",
			setup:  func(h *HealthChecker) {},
			status: StatusHealthy,
		},
		{
			name: "all passing",
			setup: func(h *HealthChecker) {
				h.Register("snapshot", true, ok)
				h.Register("cache", false, ok)
			},
			status: StatusHealthy,
		},
		{
			name: "optional failing",
			setup: func(h *HealthChecker) {
				h.Register("snapshot", true, ok)
				h.Register("cache", false, failing)
			},
			status: StatusDegraded,
		},
		{
			name: "critical failing",
			setup: func(h *HealthChecker) {
				h.Register("snapshot", true, failing)
				h.Register("cache", false, failing)
			},
			status: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker("test")
			tt.setup(h)

			status := h.Check(context.Background())
			assert.Equal(t, tt.status, status.Status)
			assert.Equal(t, "test", status.Version)
		})
	}
}

func TestHealthChecker_DependencyMessage(t *testing.T) {
	h := NewHealthChecker("")
	h.Register("cache", false, failing)

	status := h.Check(context.Background())
	require.Contains(t, status.Dependencies, "cache")
	assert.Equal(t, StatusDegraded, status.Dependencies["cache"].Status)
	assert.Equal(t, "down", status.Dependencies["cache"].Message)
}

func TestHealthChecker_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	h := NewHealthChecker("")
	h.Register("redis", false, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	assert.Equal(t, StatusHealthy, h.Check(context.Background()).Status)

	mr.Close()
	assert.Equal(t, StatusDegraded, h.Check(context.Background()).Status)
}

func TestHealthChecker_Handlers(t *testing.T) {
	h := NewHealthChecker("v1")

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	h.Register("snapshot", true, failing)
	rec = httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, "v1", status.Version)
}
