package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newPickTask(t *testing.T, qty int) *WarehouseTask {
	t.Helper()
	source, err := NewTaskSource(SourceWave, "wave-1")
	require.NoError(t, err)
	task, err := NewTask(NewTaskParams{
		WarehouseID: "WH-1",
		TaskType:    TaskTypePick,
		Source:      source,
		SourceBin:   "A-01-R01-L02",
		ProductID:   "SKU-1",
		Quantity:    qty,
	}, t0)
	require.NoError(t, err)
	return task
}

func TestNewTaskSource(t *testing.T) {
	s, err := NewTaskSource("grn", "GRN-9")
	require.NoError(t, err)
	assert.Equal(t, SourceGRN, s.Type)

	_, err = NewTaskSource("ORDER", "x")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = NewTaskSource(SourceWave, " ")
	assert.ErrorAs(t, err, &verr)
}

func TestNewTask_Validation(t *testing.T) {
	source, _ := NewTaskSource(SourceWave, "wave-1")
	base := NewTaskParams{WarehouseID: "WH-1", TaskType: TaskTypePick, Source: source, SourceBin: "A-01-R01-L01", Quantity: 1}

	task, err := NewTask(base, t0)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Equal(t, PriorityNormal, task.Priority)
	assert.Equal(t, "A", task.Zone)
	require.Len(t, task.PullEvents(), 1)

	bad := base
	bad.Quantity = 0
	_, err = NewTask(bad, t0)
	assert.Error(t, err)

	bad = base
	bad.Source = TaskSource{}
	_, err = NewTask(bad, t0)
	assert.Error(t, err)

	bad = base
	bad.TaskType = "MOVE"
	_, err = NewTask(bad, t0)
	assert.Error(t, err)
}

func TestTask_ClaimStartComplete(t *testing.T) {
	task := newPickTask(t, 4)
	require.NoError(t, task.Claim("w-1", t0.Add(time.Minute)))
	assert.Equal(t, int64(1), task.ClaimVersion)
	assert.ErrorIs(t, task.Claim("w-2", t0), ErrClaimConflict)

	require.NoError(t, task.Start("w-1", t0.Add(2*time.Minute)))
	assert.Equal(t, int64(60), task.TravelSeconds)

	require.NoError(t, task.Complete("w-1", 4, 0, "", t0.Add(5*time.Minute)))
	assert.Equal(t, TaskStatusCompleted, task.Status)
	assert.Equal(t, int64(180), task.ExecutionSeconds)
	assert.Equal(t, int64(240), task.TotalSeconds)
}

func TestTask_CompleteWithShortfall(t *testing.T) {
	task := newPickTask(t, 10)
	require.NoError(t, task.Claim("w-1", t0))

	err := task.Complete("w-1", 7, 3, "", t0)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reason", verr.Field)

	require.NoError(t, task.Complete("w-1", 7, 3, "damaged", t0))
	assert.Equal(t, TaskStatusException, task.Status)
	assert.Equal(t, 7, task.QuantityCompleted)
	assert.Equal(t, 3, task.QuantityException)
	assert.Equal(t, "damaged", task.ExceptionReason)
	assert.LessOrEqual(t, task.QuantityCompleted+task.QuantityException, task.QuantityRequired)
}

func TestTask_CompleteRejectsBadQuantities(t *testing.T) {
	task := newPickTask(t, 5)
	require.NoError(t, task.Claim("w-1", t0))

	assert.Error(t, task.Complete("w-1", 0, 0, "", t0))
	assert.Error(t, task.Complete("w-1", -1, 0, "", t0))
	assert.Error(t, task.Complete("w-1", 4, 2, "damaged", t0))
	assert.Error(t, task.Complete("w-2", 5, 0, "", t0))
	assert.Equal(t, TaskStatusAssigned, task.Status)
	assert.Zero(t, task.QuantityCompleted)
}

func TestTask_SkipKeepsAge(t *testing.T) {
	due := t0.Add(time.Hour)
	task := newPickTask(t, 1)
	task.DueAt = &due
	require.NoError(t, task.Claim("w-1", t0))
	require.NoError(t, task.Skip("w-1", "blocked aisle", t0.Add(time.Minute)))

	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Empty(t, task.AssignedTo)
	assert.Equal(t, 1, task.SkipCount)
	assert.Equal(t, "w-1", task.LastSkippedBy)
	assert.Equal(t, t0, task.CreatedAt)
	assert.Equal(t, due, *task.DueAt)
}

func TestTask_Cancel(t *testing.T) {
	task := newPickTask(t, 1)
	require.NoError(t, task.Claim("w-1", t0))
	require.NoError(t, task.Start("w-1", t0))

	err := task.Cancel("wave cancelled", t0)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Same(t, task, verr.State)

	other := newPickTask(t, 1)
	require.NoError(t, other.Cancel("no longer needed", t0))
	assert.Equal(t, TaskStatusCancelled, other.Status)

	var serr *InvalidStateError
	require.ErrorAs(t, other.Cancel("again", t0), &serr)
	assert.Equal(t, string(TaskStatusCancelled), serr.Status)
	assert.Equal(t, "cancel", serr.Action)

	done := newPickTask(t, 1)
	require.NoError(t, done.Claim("w-1", t0))
	require.NoError(t, done.Start("w-1", t0))
	require.NoError(t, done.Complete("w-1", 1, 0, "", t0))
	assert.ErrorAs(t, done.Cancel("late", t0), &serr)
}

func TestTask_ReleaseAndResolve(t *testing.T) {
	task := newPickTask(t, 2)
	assert.True(t, errors.Is(task.Release("timeout", t0), ErrClaimConflict))

	require.NoError(t, task.Claim("w-1", t0))
	task.PullEvents()
	require.NoError(t, task.Release("heartbeat_timeout", t0))
	events := task.PullEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "wms.task.reassigned", events[0].EventType())
	assert.Zero(t, task.SkipCount)

	require.NoError(t, task.Claim("w-2", t0))
	require.NoError(t, task.Complete("w-2", 1, 0, "short pick", t0))
	require.NoError(t, task.ResolveException("supervisor-1", t0))
	assert.Equal(t, "supervisor-1", task.ExceptionHandledBy)

	var serr *InvalidStateError
	assert.ErrorAs(t, task.ResolveException("supervisor-2", t0), &serr)
}
