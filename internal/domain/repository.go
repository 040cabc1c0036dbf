package domain

import (
	"context"
	"time"
)

// Transactor runs fn atomically. Repositories called with the context
// handed to fn take part in the same transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher stages domain events for delivery. Called inside a
// transaction the events commit or roll back with it.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// WaveRepository persists PickWave aggregates
type WaveRepository interface {
	// Save inserts a new wave (Version 0) or replaces it when the stored
	// version matches, returning ErrVersionConflict otherwise.
	Save(ctx context.Context, wave *PickWave) error
	FindByID(ctx context.Context, waveID string) (*PickWave, error)
	// FindByStatus lists waves of a warehouse; an empty status lists all.
	FindByStatus(ctx context.Context, warehouseID string, status WaveStatus) ([]*PickWave, error)
	// AddProgress atomically adds to pickedQuantity and completedPicklists
	// and bumps the version.
	AddProgress(ctx context.Context, waveID string, pickedQuantity, completedPicklists int) error
}

// WavePicklistRepository persists wave to picklist associations
type WavePicklistRepository interface {
	// Attach inserts an open association, returning ErrDuplicate when the
	// picklist already belongs to an open wave.
	Attach(ctx context.Context, wp *WavePicklist) error
	FindByWave(ctx context.Context, waveID string) ([]*WavePicklist, error)
	// OpenPicklistIDs returns which of ids are attached to an open wave.
	OpenPicklistIDs(ctx context.Context, ids []string) (map[string]bool, error)
	// MarkCompleted flips completed once; it reports whether this call did.
	MarkCompleted(ctx context.Context, waveID, picklistID string) (bool, error)
	CloseByWave(ctx context.Context, waveID string) error
}

// TaskRepository persists tasks. Status changes go through the conditional
// methods, which are the single serialisation point of task state.
type TaskRepository interface {
	SaveAll(ctx context.Context, tasks []*WarehouseTask) error
	FindByID(ctx context.Context, taskID string) (*WarehouseTask, error)
	// FindPending lists PENDING tasks of a warehouse, optionally one zone.
	FindPending(ctx context.Context, warehouseID, zone string) ([]*WarehouseTask, error)
	// FindOpenByWorker returns the ASSIGNED or IN_PROGRESS task of a worker.
	FindOpenByWorker(ctx context.Context, workerID string) (*WarehouseTask, error)
	FindBySource(ctx context.Context, source TaskSource) ([]*WarehouseTask, error)
	CountNonTerminalBySource(ctx context.Context, source TaskSource) (int64, error)
	FindExceptions(ctx context.Context, warehouseID string) ([]*WarehouseTask, error)
	FindCompletedPicks(ctx context.Context, warehouseID string, period Period) ([]*WarehouseTask, error)

	// ClaimPending moves a PENDING task to ASSIGNED for workerID, bumping
	// claimVersion. ErrClaimConflict when the task is no longer PENDING.
	ClaimPending(ctx context.Context, taskID, workerID string, at time.Time) (*WarehouseTask, error)
	// UpdateClaimed replaces a task whose stored holder and claimVersion
	// still match; ErrClaimConflict otherwise.
	UpdateClaimed(ctx context.Context, task *WarehouseTask, holder string, claimVersion int64) error
	// ReleaseClaim returns a claimed task to PENDING when holder and
	// claimVersion still match; ErrClaimConflict otherwise.
	ReleaseClaim(ctx context.Context, taskID, holder string, claimVersion int64, at time.Time) (*WarehouseTask, error)
	// UpdateIfStatus replaces a task whose stored status is one of from;
	// ErrClaimConflict otherwise.
	UpdateIfStatus(ctx context.Context, task *WarehouseTask, from ...TaskStatus) error
	SetSuggestion(ctx context.Context, taskID, suggestedTaskID string) error
}

// SlotScoreRepository persists optimizer output
type SlotScoreRepository interface {
	// Upsert writes one row per (tenant, product, warehouse) in place.
	Upsert(ctx context.Context, scores []*SlotScore) error
	FindByWarehouse(ctx context.Context, warehouseID string) ([]*SlotScore, error)
	FindByProduct(ctx context.Context, warehouseID, productID string) (*SlotScore, error)
	FindRelocations(ctx context.Context, warehouseID string, limit int) ([]*SlotScore, error)
}

// CrossDockRepository persists CrossDock aggregates
type CrossDockRepository interface {
	// Save inserts (Version 0) or replaces on matching version.
	Save(ctx context.Context, cd *CrossDock) error
	FindByID(ctx context.Context, id string) (*CrossDock, error)
	// FindOpenByInbound returns the non-terminal record fed by inbound id.
	FindOpenByInbound(ctx context.Context, inboundID string) (*CrossDock, error)
}

// WorkerLocationRepository persists one row per worker
type WorkerLocationRepository interface {
	FindByWorker(ctx context.Context, workerID string) (*WorkerLocation, error)
	FindBySession(ctx context.Context, sessionID string) (*WorkerLocation, error)
	ListByZone(ctx context.Context, warehouseID, zone string) ([]*WorkerLocation, error)
	// SavePosition upserts the tracker-owned fields only.
	SavePosition(ctx context.Context, loc *WorkerLocation) error
	// SaveSession upserts the session fields only.
	SaveSession(ctx context.Context, loc *WorkerLocation) error
	// TransitionSession moves sessionID from one status to another; it
	// reports whether this call made the change.
	TransitionSession(ctx context.Context, sessionID string, from, to SessionStatus, at time.Time) (bool, error)
	FindStaleSessions(ctx context.Context, heartbeatBefore time.Time) ([]*WorkerLocation, error)
	CountActiveInZone(ctx context.Context, warehouseID, zone string) (int64, error)
	CountActiveSessions(ctx context.Context) (int64, error)
}

// ZoneLock serialises claim decisions per warehouse zone across replicas
type ZoneLock interface {
	Acquire(ctx context.Context, warehouseID, zone string) (release func(), err error)
}

// WorkerLock serialises one worker's claims across replicas
type WorkerLock interface {
	AcquireWorker(ctx context.Context, workerID string) (release func(), err error)
}

// JobLock elects a single replica for a periodic job
type JobLock interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (release func(), acquired bool, err error)
}

// SessionCache maps session ids to workers with a TTL
type SessionCache interface {
	Put(ctx context.Context, sessionID, workerID string, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (string, error)
	Touch(ctx context.Context, sessionID string, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}

// PicklistService is the upstream order/picklist collaborator
type PicklistService interface {
	FetchEligible(ctx context.Context, warehouseID string) ([]Picklist, error)
	NotifyWaveAssigned(ctx context.Context, orderID, picklistID string, wave *PickWave) error
}

// BinStock is one product's stock in one bin
type BinStock struct {
	Bin        string  `json:"bin"`
	Zone       string  `json:"zone"`
	ProductID  string  `json:"productId"`
	Quantity   int     `json:"quantity"`
	UnitWeight float64 `json:"unitWeight"`
}

// StockMove is the inventory effect of a completed task
type StockMove struct {
	TaskID      string   `json:"taskId"`
	TaskType    TaskType `json:"taskType"`
	WarehouseID string   `json:"warehouseId"`
	ProductID   string   `json:"productId"`
	FromBin     string   `json:"fromBin,omitempty"`
	ToBin       string   `json:"toBin,omitempty"`
	Quantity    int      `json:"quantity"`
}

// InventoryService is the upstream inventory collaborator
type InventoryService interface {
	ListBins(ctx context.Context, warehouseID string) ([]BinStock, error)
	EmptyBins(ctx context.Context, warehouseID, zone string) ([]string, error)
	Move(ctx context.Context, move StockMove) error
}
