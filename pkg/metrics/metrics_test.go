package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestRecordClaim(t *testing.T) {
	m := New(DefaultConfig("task-engine"))

	m.RecordClaim("WH-1", "claimed", 5*time.Millisecond)
	m.RecordClaim("WH-1", "claimed", 7*time.Millisecond)
	m.RecordClaim("WH-1", "empty", time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `wms_task_claims_total{outcome="claimed",service="task-engine",warehouse="WH-1"} 2`)
	assert.Contains(t, body, `wms_task_claims_total{outcome="empty",service="task-engine",warehouse="WH-1"} 1`)
	assert.Contains(t, body, "wms_task_claim_duration_seconds_bucket")
}

func TestDispatcherCounters(t *testing.T) {
	m := New(DefaultConfig("task-engine"))

	m.RecordClaimConflict("WH-1", "A")
	m.RecordReassignment("heartbeat_timeout")
	m.RecordTasksCreated("PICK", "WAVE", 6)
	m.SetActiveSessions(3)

	body := scrape(t, m)
	assert.Contains(t, body, `wms_task_claim_conflicts_total{service="task-engine",warehouse="WH-1",zone="A"} 1`)
	assert.Contains(t, body, `wms_task_reassignments_total{cause="heartbeat_timeout",service="task-engine"} 1`)
	assert.Contains(t, body, `wms_tasks_created_total{service="task-engine",source_type="WAVE",task_type="PICK"} 6`)
	assert.Contains(t, body, `wms_worker_sessions_active{service="task-engine"} 3`)
}
