package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/families", http.StatusBadRequest, 20*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/families", http.StatusOK, 10*time.Millisecond)
	m.ObserveDBQuery("families_list", 4*time.Millisecond)
	m.RecordViolation("BATCH_MISMATCH")
	m.RecordViolation("BATCH_MISMATCH")
	m.RecordViolation("PARENT_MISSING")

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 15.0, snap.AverageRequestDurationMs, 0.01)
	assert.Equal(t, uint64(1), snap.DBQueryCount)
	assert.Equal(t, map[string]uint64{"BATCH_MISMATCH": 2, "PARENT_MISSING": 1}, snap.Violations)
}

func TestMetricsServiceExposition(t *testing.T) {
	m := NewMetricsService()
	m.RecordJobRejection("limit")
	m.RecordAutoAssignRun(AutoAssignFinished)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `family_console_jobs_rejections_total{reason="limit"} 1`)
	assert.Contains(t, w.Body.String(), `family_console_auto_assign_runs_total{status="finished"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordViolation("X")
	m.RecordJobRejection("limit")
	m.ObserveDBQuery("q", time.Millisecond)
	assert.NotNil(t, m.Snapshot().Violations)
}
