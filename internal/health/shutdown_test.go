package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumberlens/backend-lumber/internal/health"
)

type healthyChecker struct{}

func (healthyChecker) PingDB(context.Context, time.Duration) error    { return nil }
func (healthyChecker) PingRedis(context.Context, time.Duration) error { return nil }

// Draining flips the readiness gate so the load balancer stops routing to
// this instance before connections are closed.
func TestReadinessGateDuringDrain(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	health.SetReady(true)

	h := health.Handler{Checker: healthyChecker{}}
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)

	resp := httptest.NewRecorder()
	h.Ready(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	health.SetReady(false)
	resp = httptest.NewRecorder()
	h.Ready(resp, req)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
