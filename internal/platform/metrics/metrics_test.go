package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCountsRequests(t *testing.T) {
	c := New()
	c.Record(http.MethodGet, "/api/v1/employees", http.StatusOK, 20*time.Millisecond)
	c.Record(http.MethodGet, "/api/v1/employees", http.StatusOK, 10*time.Millisecond)
	c.Record(http.MethodPost, "", http.StatusTooManyRequests, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", "/api/v1/employees", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("POST", "unmatched", "429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rateLimited))
}

func TestLeaveOutcomesAndJobs(t *testing.T) {
	c := New()
	c.ObserveLeaveApplication("applied")
	c.ObserveLeaveApplication("applied")
	c.ObserveLeaveApplication("insufficient_balance")
	c.ObserveJobRun("balance_normalize", "completed")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.leaveApplications.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.leaveApplications.WithLabelValues("insufficient_balance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobRuns.WithLabelValues("balance_normalize", "completed")))
}

func TestCollectorsAreIsolated(t *testing.T) {
	a, b := New(), New()
	a.ObserveLeaveApplication("applied")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.leaveApplications.WithLabelValues("applied")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.ObserveLeaveApplication("overlap")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `hrcopilot_leave_applications_total{outcome="overlap"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
