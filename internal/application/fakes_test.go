package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

func testLogger() *logging.Logger {
	cfg := logging.DefaultConfig("task-engine-test")
	cfg.Level = logging.LevelError
	return logging.New(cfg)
}

func testMetrics() *metrics.Metrics {
	return metrics.New(metrics.DefaultConfig("test"))
}

type fakeTx struct{}

func (fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []domain.DomainEvent
}

func (f *fakeEvents) Publish(_ context.Context, events ...domain.DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeEvents) count(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

func cloneTask(t *domain.WarehouseTask) *domain.WarehouseTask {
	c := *t
	c.PullEvents()
	return &c
}

type fakeTasks struct {
	mu    sync.Mutex
	tasks map[string]*domain.WarehouseTask
}

func newFakeTasks(tasks ...*domain.WarehouseTask) *fakeTasks {
	f := &fakeTasks{tasks: map[string]*domain.WarehouseTask{}}
	for _, t := range tasks {
		f.tasks[t.ID] = cloneTask(t)
	}
	return f
}

func (f *fakeTasks) get(id string) *domain.WarehouseTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneTask(f.tasks[id])
}

func (f *fakeTasks) all() []*domain.WarehouseTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.WarehouseTask, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (f *fakeTasks) filter(keep func(*domain.WarehouseTask) bool) []*domain.WarehouseTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.WarehouseTask
	for _, t := range f.tasks {
		if keep(t) {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeTasks) SaveAll(_ context.Context, tasks []*domain.WarehouseTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tasks {
		f.tasks[t.ID] = cloneTask(t)
	}
	return nil
}

func (f *fakeTasks) FindByID(_ context.Context, id string) (*domain.WarehouseTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, domain.NewNotFound("task", id)
	}
	return cloneTask(t), nil
}

func (f *fakeTasks) FindPending(_ context.Context, warehouseID, zone string) ([]*domain.WarehouseTask, error) {
	return f.filter(func(t *domain.WarehouseTask) bool {
		return t.Status == domain.TaskStatusPending && t.WarehouseID == warehouseID && (zone == "" || t.Zone == zone)
	}), nil
}

func (f *fakeTasks) FindOpenByWorker(_ context.Context, workerID string) (*domain.WarehouseTask, error) {
	open := f.filter(func(t *domain.WarehouseTask) bool {
		return t.Status.IsClaimed() && t.AssignedTo == workerID
	})
	if len(open) == 0 {
		return nil, domain.NewNotFound("task", workerID)
	}
	return open[0], nil
}

func (f *fakeTasks) FindBySource(_ context.Context, source domain.TaskSource) ([]*domain.WarehouseTask, error) {
	return f.filter(func(t *domain.WarehouseTask) bool { return t.Source == source }), nil
}

func (f *fakeTasks) CountNonTerminalBySource(_ context.Context, source domain.TaskSource) (int64, error) {
	return int64(len(f.filter(func(t *domain.WarehouseTask) bool {
		return t.Source == source && !t.Status.IsTerminal()
	}))), nil
}

func (f *fakeTasks) FindExceptions(_ context.Context, warehouseID string) ([]*domain.WarehouseTask, error) {
	return f.filter(func(t *domain.WarehouseTask) bool {
		return t.Status == domain.TaskStatusException && t.WarehouseID == warehouseID && t.ExceptionHandledBy == ""
	}), nil
}

func (f *fakeTasks) FindCompletedPicks(_ context.Context, warehouseID string, period domain.Period) ([]*domain.WarehouseTask, error) {
	return f.filter(func(t *domain.WarehouseTask) bool {
		return t.TaskType == domain.TaskTypePick && t.WarehouseID == warehouseID && t.CompletedAt != nil &&
			(t.Status == domain.TaskStatusCompleted || t.Status == domain.TaskStatusException) &&
			!t.CompletedAt.Before(period.From) && t.CompletedAt.Before(period.To)
	}), nil
}

func (f *fakeTasks) ClaimPending(_ context.Context, taskID, workerID string, at time.Time) (*domain.WarehouseTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok || t.Status != domain.TaskStatusPending {
		return nil, domain.ErrClaimConflict
	}
	t.Status = domain.TaskStatusAssigned
	t.AssignedTo = workerID
	t.AssignedAt = &at
	t.ClaimVersion++
	t.UpdatedAt = at
	return cloneTask(t), nil
}

func (f *fakeTasks) UpdateClaimed(_ context.Context, task *domain.WarehouseTask, holder string, claimVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[task.ID]
	if !ok || !t.Status.IsClaimed() || t.AssignedTo != holder || t.ClaimVersion != claimVersion {
		return domain.ErrClaimConflict
	}
	f.tasks[task.ID] = cloneTask(task)
	return nil
}

func (f *fakeTasks) ReleaseClaim(_ context.Context, taskID, holder string, claimVersion int64, at time.Time) (*domain.WarehouseTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok || !t.Status.IsClaimed() || t.AssignedTo != holder || t.ClaimVersion != claimVersion {
		return nil, domain.ErrClaimConflict
	}
	if err := t.Release("", at); err != nil {
		return nil, err
	}
	t.PullEvents()
	return cloneTask(t), nil
}

func (f *fakeTasks) UpdateIfStatus(_ context.Context, task *domain.WarehouseTask, from ...domain.TaskStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[task.ID]
	if !ok {
		return domain.ErrClaimConflict
	}
	for _, s := range from {
		if t.Status == s {
			f.tasks[task.ID] = cloneTask(task)
			return nil
		}
	}
	return domain.ErrClaimConflict
}

func (f *fakeTasks) SetSuggestion(_ context.Context, taskID, suggestedTaskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tasks[taskID]; ok {
		t.SuggestedNextTaskID = suggestedTaskID
	}
	return nil
}

type fakeLocations struct {
	mu   sync.Mutex
	rows map[string]*domain.WorkerLocation
}

func newFakeLocations(rows ...*domain.WorkerLocation) *fakeLocations {
	f := &fakeLocations{rows: map[string]*domain.WorkerLocation{}}
	for _, r := range rows {
		c := *r
		f.rows[r.WorkerID] = &c
	}
	return f
}

func (f *fakeLocations) FindByWorker(_ context.Context, workerID string) (*domain.WorkerLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[workerID]
	if !ok {
		return nil, domain.NewNotFound("worker", workerID)
	}
	c := *r
	return &c, nil
}

func (f *fakeLocations) FindBySession(_ context.Context, sessionID string) (*domain.WorkerLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.SessionID == sessionID {
			c := *r
			return &c, nil
		}
	}
	return nil, domain.NewNotFound("session", sessionID)
}

func (f *fakeLocations) ListByZone(_ context.Context, warehouseID, zone string) ([]*domain.WorkerLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.WorkerLocation
	for _, r := range f.rows {
		if r.WarehouseID == warehouseID && r.CurrentZone == zone {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeLocations) row(loc *domain.WorkerLocation) *domain.WorkerLocation {
	r, ok := f.rows[loc.WorkerID]
	if !ok {
		c := *loc
		f.rows[loc.WorkerID] = &c
		return nil
	}
	return r
}

func (f *fakeLocations) SavePosition(_ context.Context, loc *domain.WorkerLocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.row(loc)
	if r == nil {
		return nil
	}
	r.WarehouseID = loc.WarehouseID
	r.CurrentZone, r.CurrentBin, r.CurrentTaskID = loc.CurrentZone, loc.CurrentBin, loc.CurrentTaskID
	r.LastTaskType, r.LastTaskBin = loc.LastTaskType, loc.LastTaskBin
	r.PinnedZone, r.IsOnBreak = loc.PinnedZone, loc.IsOnBreak
	r.UpdatedAt = loc.UpdatedAt
	return nil
}

func (f *fakeLocations) SaveSession(_ context.Context, loc *domain.WorkerLocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.row(loc)
	if r == nil {
		return nil
	}
	r.WarehouseID = loc.WarehouseID
	r.SessionID, r.DeviceID, r.SessionStatus = loc.SessionID, loc.DeviceID, loc.SessionStatus
	r.SessionStartedAt, r.LastHeartbeatAt = loc.SessionStartedAt, loc.LastHeartbeatAt
	r.ShiftStart, r.ShiftEnd = loc.ShiftStart, loc.ShiftEnd
	r.UpdatedAt = loc.UpdatedAt
	return nil
}

func (f *fakeLocations) TransitionSession(_ context.Context, sessionID string, from, to domain.SessionStatus, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.SessionID == sessionID && r.SessionStatus == from {
			r.SessionStatus = to
			r.UpdatedAt = at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLocations) FindStaleSessions(_ context.Context, before time.Time) ([]*domain.WorkerLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.WorkerLocation
	for _, r := range f.rows {
		if r.SessionStatus == domain.SessionActive && r.LastHeartbeatAt != nil && r.LastHeartbeatAt.Before(before) {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeLocations) CountActiveInZone(_ context.Context, warehouseID, zone string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.SessionStatus == domain.SessionActive && r.WarehouseID == warehouseID && r.CurrentZone == zone {
			n++
		}
	}
	return n, nil
}

func (f *fakeLocations) CountActiveSessions(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.SessionStatus == domain.SessionActive {
			n++
		}
	}
	return n, nil
}

type fakeWaves struct {
	mu    sync.Mutex
	waves map[string]*domain.PickWave
}

func newFakeWaves() *fakeWaves {
	return &fakeWaves{waves: map[string]*domain.PickWave{}}
}

func cloneWave(w *domain.PickWave) *domain.PickWave {
	c := *w
	c.PullEvents()
	return &c
}

func (f *fakeWaves) Save(_ context.Context, wave *domain.PickWave) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.waves[wave.ID]
	if wave.Version == 0 && ok {
		return domain.ErrVersionConflict
	}
	if wave.Version > 0 && (!ok || stored.Version != wave.Version) {
		return domain.ErrVersionConflict
	}
	wave.Version++
	f.waves[wave.ID] = cloneWave(wave)
	return nil
}

func (f *fakeWaves) FindByID(_ context.Context, waveID string) (*domain.PickWave, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.waves[waveID]
	if !ok {
		return nil, domain.NewNotFound("wave", waveID)
	}
	return cloneWave(w), nil
}

func (f *fakeWaves) FindByStatus(_ context.Context, warehouseID string, status domain.WaveStatus) ([]*domain.PickWave, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.PickWave
	for _, w := range f.waves {
		if w.WarehouseID == warehouseID && (status == "" || w.Status == status) {
			out = append(out, cloneWave(w))
		}
	}
	return out, nil
}

func (f *fakeWaves) AddProgress(_ context.Context, waveID string, picked, completed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.waves[waveID]
	if !ok {
		return domain.NewNotFound("wave", waveID)
	}
	w.Counters.PickedQuantity += picked
	w.Counters.CompletedPicklists += completed
	w.Version++
	return nil
}

type fakeWavePicklists struct {
	mu   sync.Mutex
	rows []*domain.WavePicklist
}

func (f *fakeWavePicklists) Attach(_ context.Context, wp *domain.WavePicklist) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Open && r.PicklistID == wp.PicklistID {
			return domain.ErrDuplicate
		}
	}
	c := *wp
	f.rows = append(f.rows, &c)
	return nil
}

func (f *fakeWavePicklists) FindByWave(_ context.Context, waveID string) ([]*domain.WavePicklist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.WavePicklist
	for _, r := range f.rows {
		if r.WaveID == waveID {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeWavePicklists) OpenPicklistIDs(_ context.Context, ids []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]bool{}
	for _, id := range ids {
		for _, r := range f.rows {
			if r.Open && r.PicklistID == id {
				out[id] = true
			}
		}
	}
	return out, nil
}

func (f *fakeWavePicklists) MarkCompleted(_ context.Context, waveID, picklistID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.WaveID == waveID && r.PicklistID == picklistID && !r.Completed {
			r.Completed = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWavePicklists) CloseByWave(_ context.Context, waveID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.WaveID == waveID {
			r.Open = false
		}
	}
	return nil
}

type fakeUpstream struct {
	mu        sync.Mutex
	picklists []domain.Picklist
	notified  []string
}

func (f *fakeUpstream) FetchEligible(_ context.Context, warehouseID string) ([]domain.Picklist, error) {
	var out []domain.Picklist
	for _, p := range f.picklists {
		if p.WarehouseID == warehouseID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeUpstream) NotifyWaveAssigned(_ context.Context, orderID, picklistID string, _ *domain.PickWave) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, orderID+"/"+picklistID)
	return nil
}

type fakeInventory struct {
	mu    sync.Mutex
	bins  []domain.BinStock
	empty map[string][]string
	moves []domain.StockMove
}

func (f *fakeInventory) ListBins(_ context.Context, _ string) ([]domain.BinStock, error) {
	return f.bins, nil
}

func (f *fakeInventory) EmptyBins(_ context.Context, _ string, zone string) ([]string, error) {
	return append([]string(nil), f.empty[zone]...), nil
}

func (f *fakeInventory) Move(_ context.Context, move domain.StockMove) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, move)
	return nil
}

type fakeSlotScores struct {
	mu     sync.Mutex
	scores map[string]*domain.SlotScore
}

func newFakeSlotScores() *fakeSlotScores {
	return &fakeSlotScores{scores: map[string]*domain.SlotScore{}}
}

func (f *fakeSlotScores) Upsert(_ context.Context, scores []*domain.SlotScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range scores {
		c := *s
		f.scores[s.WarehouseID+"/"+s.ProductID] = &c
	}
	return nil
}

func (f *fakeSlotScores) FindByWarehouse(_ context.Context, warehouseID string) ([]*domain.SlotScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.SlotScore
	for _, s := range f.scores {
		if s.WarehouseID == warehouseID {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (f *fakeSlotScores) FindByProduct(_ context.Context, warehouseID, productID string) (*domain.SlotScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.scores[warehouseID+"/"+productID]
	if !ok {
		return nil, domain.NewNotFound("slot score", productID)
	}
	c := *s
	return &c, nil
}

func (f *fakeSlotScores) FindRelocations(ctx context.Context, warehouseID string, limit int) ([]*domain.SlotScore, error) {
	all, _ := f.FindByWarehouse(ctx, warehouseID)
	var out []*domain.SlotScore
	for _, s := range all {
		if s.RelocationRank > 0 {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelocationRank < out[j].RelocationRank })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeCrossDocks struct {
	mu   sync.Mutex
	rows map[string]*domain.CrossDock
}

func newFakeCrossDocks() *fakeCrossDocks {
	return &fakeCrossDocks{rows: map[string]*domain.CrossDock{}}
}

func cloneCrossDock(cd *domain.CrossDock) *domain.CrossDock {
	c := *cd
	c.PullEvents()
	c.Items = map[string]int{}
	for k, v := range cd.Items {
		c.Items[k] = v
	}
	c.Received = map[string]int{}
	for k, v := range cd.Received {
		c.Received[k] = v
	}
	c.Outbound = append([]domain.OutboundDemand(nil), cd.Outbound...)
	c.Allocations = append([]domain.Allocation(nil), cd.Allocations...)
	return &c
}

func (f *fakeCrossDocks) Save(_ context.Context, cd *domain.CrossDock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.rows[cd.ID]
	if (cd.Version == 0 && ok) || (cd.Version > 0 && (!ok || stored.Version != cd.Version)) {
		return domain.ErrVersionConflict
	}
	cd.Version++
	f.rows[cd.ID] = cloneCrossDock(cd)
	return nil
}

func (f *fakeCrossDocks) FindByID(_ context.Context, id string) (*domain.CrossDock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cd, ok := f.rows[id]
	if !ok {
		return nil, domain.NewNotFound("cross-dock", id)
	}
	return cloneCrossDock(cd), nil
}

func (f *fakeCrossDocks) FindOpenByInbound(_ context.Context, inboundID string) (*domain.CrossDock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cd := range f.rows {
		if cd.InboundRef.ID == inboundID && !cd.Status.IsTerminal() {
			return cloneCrossDock(cd), nil
		}
	}
	return nil, domain.NewNotFound("cross-dock", inboundID)
}

type fakeSessionCache struct {
	mu      sync.Mutex
	entries map[string]string
	putErr  error
}

func newFakeSessionCache() *fakeSessionCache {
	return &fakeSessionCache{entries: map[string]string{}}
}

func (f *fakeSessionCache) Put(_ context.Context, sessionID, workerID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.entries[sessionID] = workerID
	return nil
}

func (f *fakeSessionCache) Get(_ context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.entries[sessionID]
	if !ok {
		return "", domain.NewNotFound("session", sessionID)
	}
	return w, nil
}

func (f *fakeSessionCache) Touch(_ context.Context, sessionID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[sessionID]; !ok {
		return domain.NewNotFound("session", sessionID)
	}
	return nil
}

func (f *fakeSessionCache) Delete(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, sessionID)
	return nil
}
