package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/family-console-api/internal/models"
	"github.com/noah-isme/family-console-api/internal/service"
)

func newRecorder(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func newMetricsRouter(h *MetricsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", h.Prometheus)
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/system/metrics", h.Snapshot)
	return r
}

func TestMetricsHandlerPrometheusAndSnapshot(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/families", http.StatusOK, 10*time.Millisecond)
	metrics.RecordViolation("GENDER_MISMATCH")
	r := newMetricsRouter(NewMetricsHandler(metrics))

	w := newRecorder(r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "family_console_assignment_violations_total")

	w = newRecorder(r, http.MethodGet, "/system/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"GENDER_MISMATCH":1`)
}

func TestMetricsHandlerReady(t *testing.T) {
	healthy := ReadinessCheck{Name: "postgres", Ping: func(ctx context.Context) error { return nil }}
	r := newMetricsRouter(NewMetricsHandler(nil, healthy))

	w := newRecorder(r, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"postgres":"ok"`)

	failing := ReadinessCheck{Name: "redis", Ping: func(ctx context.Context) error { return errors.New("connection refused") }}
	r = newMetricsRouter(NewMetricsHandler(nil, healthy, failing))
	w = newRecorder(r, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	w = newRecorder(r, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	h := NewAuthHandler(nil)

	c, w := newTestContext(http.MethodGet, "/auth/me", "")
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newTestContext(http.MethodGet, "/auth/me", "")
	c.Set("currentUser", &models.JWTClaims{UserID: "u1", Email: "ops@example.org", Role: models.RoleAdmin})
	h.Me(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"ops@example.org"`)
}
