package audithandler_test

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrcopilot/internal/domain/audit"
	"hrcopilot/internal/domain/auth"
	audithandler "hrcopilot/internal/transport/http/handlers/audit"
	"hrcopilot/internal/transport/http/middleware"
)

func TestListEventsWithoutDatabase(t *testing.T) {
	r := chi.NewRouter()
	audithandler.NewHandler(audit.New(nil), "").RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit-events", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-Total-Count"))
	assert.JSONEq(t, `{"success":true,"data":[]}`, rec.Body.String())
}

func TestListEventsRequiresToken(t *testing.T) {
	r := chi.NewRouter()
	r.Use(middleware.Auth("s3cret"))
	audithandler.NewHandler(audit.New(nil), "s3cret").RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit-events", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := auth.GenerateToken("s3cret", "auditor", auth.RoleHR, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/audit-events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExportEventsCSV(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	at := time.Date(2025, 9, 10, 8, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_events WHERE 1=1 AND action = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3")).
		WithArgs(audit.ActionLeaveApply, 10000, 0).
		WillReturnRows(mock.NewRows([]string{"id", "actor", "action", "entity_type", "entity_id", "request_id", "ip", "created_at"}).
			AddRow("evt-1", "hr-portal", audit.ActionLeaveApply, "leave", "rec-1", "req-1", "10.0.0.2", at))

	r := chi.NewRouter()
	audithandler.NewHandler(audit.New(mock), "").RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit-events/export?action=leave.apply", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "evt-1,hr-portal,leave.apply,leave,rec-1,req-1,10.0.0.2,2025-09-10T08:30:00Z", lines[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}
