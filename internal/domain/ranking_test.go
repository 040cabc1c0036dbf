package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankTask(id, bin string, taskType TaskType, priority Priority, created time.Time) *WarehouseTask {
	return &WarehouseTask{
		ID:        id,
		TaskType:  taskType,
		Status:    TaskStatusPending,
		Priority:  priority,
		SourceBin: bin,
		Zone:      ZoneOf(bin),
		CreatedAt: created,
	}
}

func TestSLAUrgency(t *testing.T) {
	horizon := time.Hour
	now := t0
	at := func(d time.Duration) *time.Time { v := now.Add(d); return &v }

	assert.Equal(t, 0.0, SLAUrgency(nil, now, horizon))
	assert.Equal(t, 0.0, SLAUrgency(at(2*time.Hour), now, horizon))
	assert.InDelta(t, 0.5, SLAUrgency(at(30*time.Minute), now, horizon), 1e-9)
	assert.InDelta(t, 1.0, SLAUrgency(at(0), now, horizon), 1e-9)
	assert.InDelta(t, 1.5, SLAUrgency(at(-30*time.Minute), now, horizon), 1e-9)
	assert.InDelta(t, 2.0, SLAUrgency(at(-5*time.Hour), now, horizon), 1e-9)
}

func TestTypeAffinity(t *testing.T) {
	worker := WorkerContext{WorkerID: "w-1", LastTaskType: TaskTypePick, LastTaskBin: "A-01-R01-L01"}

	assert.Equal(t, 1.0, TypeAffinity(rankTask("1", "A-01-R09-L01", TaskTypePutaway, PriorityNormal, t0), worker))
	assert.Equal(t, 0.5, TypeAffinity(rankTask("2", "A-01-R09-L01", TaskTypePick, PriorityNormal, t0), worker))
	assert.Equal(t, 0.5, TypeAffinity(rankTask("3", "A-07-R01-L01", TaskTypePutaway, PriorityNormal, t0), worker))
	assert.Equal(t, 0.0, TypeAffinity(rankTask("4", "B-01-R01-L01", TaskTypePutaway, PriorityNormal, t0), worker))
	assert.Equal(t, 0.0, TypeAffinity(rankTask("5", "A-01-R01-L01", TaskTypePutaway, PriorityNormal, t0), WorkerContext{}))
}

func TestZoneQueues_RankOrder(t *testing.T) {
	ranker := Ranker{
		Weights: DefaultRankingWeights(),
		Horizon: time.Hour,
		Now:     t0,
		Worker:  WorkerContext{WorkerID: "w-1", CurrentBin: "A-01-R01-L01"},
	}

	near := rankTask("near", "A-01-R02-L01", TaskTypePick, PriorityNormal, t0)
	far := rankTask("far", "A-09-R02-L01", TaskTypePick, PriorityNormal, t0)
	urgent := rankTask("urgent", "B-01-R01-L01", TaskTypePick, PriorityUrgent, t0)
	due := t0.Add(-time.Hour)
	urgent.DueAt = &due
	skipped := rankTask("skipped", "A-01-R01-L01", TaskTypePick, PriorityUrgent, t0)
	skipped.LastSkippedBy = "w-1"

	zq := NewZoneQueues(ranker, []*WarehouseTask{far, skipped, near, urgent})
	assert.Equal(t, []string{"A", "B"}, zq.Zones())
	require.Equal(t, 4, zq.Len())

	var order []string
	for {
		rt, ok := zq.Pop()
		if !ok {
			break
		}
		order = append(order, rt.Task.ID)
	}
	assert.Equal(t, []string{"near", "urgent", "far", "skipped"}, order)
}

func TestZoneQueues_TieBreaks(t *testing.T) {
	ranker := Ranker{Weights: DefaultRankingWeights(), Horizon: time.Hour, Now: t0}
	older := rankTask("b", "A-01-R01-L01", TaskTypePick, PriorityNormal, t0.Add(-time.Minute))
	newerA := rankTask("a", "A-01-R01-L01", TaskTypePick, PriorityNormal, t0)
	newerC := rankTask("c", "A-01-R01-L01", TaskTypePick, PriorityNormal, t0)

	zq := NewZoneQueues(ranker, []*WarehouseTask{newerC, newerA, older})
	first, _ := zq.Pop()
	second, _ := zq.Pop()
	third, _ := zq.Pop()
	assert.Equal(t, "b", first.Task.ID)
	assert.Equal(t, "a", second.Task.ID)
	assert.Equal(t, "c", third.Task.ID)

	_, ok := zq.Peek()
	assert.False(t, ok)
}

func TestZoneQueues_DropZone(t *testing.T) {
	ranker := Ranker{Weights: DefaultRankingWeights(), Horizon: time.Hour, Now: t0}
	zq := NewZoneQueues(ranker, []*WarehouseTask{
		rankTask("a1", "A-01-R01-L01", TaskTypePick, PriorityUrgent, t0),
		rankTask("b1", "B-01-R01-L01", TaskTypePick, PriorityLow, t0),
	})
	zq.DropZone("A")
	rt, ok := zq.Pop()
	require.True(t, ok)
	assert.Equal(t, "b1", rt.Task.ID)
}
