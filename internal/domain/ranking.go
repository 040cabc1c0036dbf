package domain

import (
	"container/heap"
	"sort"
	"time"
)

// RankingWeights are the coefficients of the dispatch score
type RankingWeights struct {
	SLA      float64 `yaml:"sla" json:"sla"`
	Priority float64 `yaml:"priority" json:"priority"`
	Travel   float64 `yaml:"travel" json:"travel"`
	Affinity float64 `yaml:"affinity" json:"affinity"`
}

// DefaultRankingWeights keep one priority band worth about one aisle of travel
func DefaultRankingWeights() RankingWeights {
	return RankingWeights{SLA: 10, Priority: 5, Travel: 0.5, Affinity: 3}
}

// SLAUrgency is 0 without a due date, rises linearly to 1 across the
// horizon before due and keeps rising after due, capped at 2.
func SLAUrgency(dueAt *time.Time, now time.Time, horizon time.Duration) float64 {
	if dueAt == nil || horizon <= 0 {
		return 0
	}
	remaining := dueAt.Sub(now)
	if remaining >= 0 {
		return clamp(1-float64(remaining)/float64(horizon), 0, 1)
	}
	return clamp(1+float64(-remaining)/float64(horizon), 1, 2)
}

// TypeAffinity rewards interleaving: a different task type in the aisle
// of the last task scores 1, anything else in the same zone 0.5.
func TypeAffinity(t *WarehouseTask, w WorkerContext) float64 {
	if w.LastTaskBin == "" {
		return 0
	}
	bin := t.WorkBin()
	if t.TaskType != w.LastTaskType && SameAisle(bin, w.LastTaskBin) {
		return 1
	}
	if ZoneOf(bin) == ZoneOf(w.LastTaskBin) {
		return 0.5
	}
	return 0
}

// Ranker scores tasks for one claiming worker at one instant
type Ranker struct {
	Weights RankingWeights
	Horizon time.Duration
	Now     time.Time
	Worker  WorkerContext
}

// Score computes w1·slaUrgency + w2·priority − w3·travel + w4·typeAffinity
func (r Ranker) Score(t *WarehouseTask) float64 {
	priority := float64(t.Priority.Rank()) + t.SLABoost
	travel := BinDistance(r.Worker.CurrentBin, t.WorkBin())
	return r.Weights.SLA*SLAUrgency(t.DueAt, r.Now, r.Horizon) +
		r.Weights.Priority*priority -
		r.Weights.Travel*travel +
		r.Weights.Affinity*TypeAffinity(t, r.Worker)
}

// RankedTask is a heap entry
type RankedTask struct {
	Task  *WarehouseTask
	Score float64
	Sunk  bool
}

// outranks orders entries: skipped-by-this-worker last, then score desc,
// oldest createdAt, then id.
func outranks(a, b RankedTask) bool {
	if a.Sunk != b.Sunk {
		return !a.Sunk
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.Task.CreatedAt.Equal(b.Task.CreatedAt) {
		return a.Task.CreatedAt.Before(b.Task.CreatedAt)
	}
	return a.Task.ID < b.Task.ID
}

type taskHeap []RankedTask

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return outranks(h[i], h[j]) }
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)        { *h = append(*h, x.(RankedTask)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ZoneQueues holds one priority queue per zone, rebuilt for every claim
type ZoneQueues struct {
	ranker Ranker
	queues map[string]*taskHeap
	zones  []string
}

// NewZoneQueues ranks tasks into per-zone heaps
func NewZoneQueues(ranker Ranker, tasks []*WarehouseTask) *ZoneQueues {
	zq := &ZoneQueues{ranker: ranker, queues: make(map[string]*taskHeap)}
	for _, t := range tasks {
		zq.Push(t)
	}
	return zq
}

// Push ranks and enqueues a task under its zone
func (zq *ZoneQueues) Push(t *WarehouseTask) {
	q, ok := zq.queues[t.Zone]
	if !ok {
		q = &taskHeap{}
		zq.queues[t.Zone] = q
		zq.zones = append(zq.zones, t.Zone)
		sort.Strings(zq.zones)
	}
	heap.Push(q, RankedTask{
		Task:  t,
		Score: zq.ranker.Score(t),
		Sunk:  zq.ranker.Worker.WorkerID != "" && t.LastSkippedBy == zq.ranker.Worker.WorkerID,
	})
}

// Len is the number of queued tasks across zones
func (zq *ZoneQueues) Len() int {
	n := 0
	for _, q := range zq.queues {
		n += q.Len()
	}
	return n
}

// Zones lists the zones with a queue, sorted
func (zq *ZoneQueues) Zones() []string {
	return zq.zones
}

// Peek returns the best head across zones without removing it
func (zq *ZoneQueues) Peek() (RankedTask, bool) {
	zone, ok := zq.bestZone()
	if !ok {
		return RankedTask{}, false
	}
	return (*zq.queues[zone])[0], true
}

// Pop removes and returns the best-ranked task across all zones
func (zq *ZoneQueues) Pop() (RankedTask, bool) {
	zone, ok := zq.bestZone()
	if !ok {
		return RankedTask{}, false
	}
	return heap.Pop(zq.queues[zone]).(RankedTask), true
}

// PopZone removes the head of one zone's queue
func (zq *ZoneQueues) PopZone(zone string) (RankedTask, bool) {
	q, ok := zq.queues[zone]
	if !ok || q.Len() == 0 {
		return RankedTask{}, false
	}
	return heap.Pop(q).(RankedTask), true
}

// DropZone discards a zone's queue
func (zq *ZoneQueues) DropZone(zone string) {
	if q, ok := zq.queues[zone]; ok {
		*q = (*q)[:0]
	}
}

func (zq *ZoneQueues) bestZone() (string, bool) {
	best := ""
	found := false
	for _, zone := range zq.zones {
		q := zq.queues[zone]
		if q.Len() == 0 {
			continue
		}
		if !found || outranks((*q)[0], (*zq.queues[best])[0]) {
			best = zone
			found = true
		}
	}
	return best, found
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
