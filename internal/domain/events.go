package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
	AggregateType() string
	AggregateID() string
}

// Aggregate types, also the outbox routing key
const (
	AggregateWave      = "wave"
	AggregateTask      = "task"
	AggregateCrossDock = "crossdock"
	AggregateSlotting  = "slotting"
)

// WaveCreatedEvent is published when a DRAFT wave is created
type WaveCreatedEvent struct {
	WaveID      string    `json:"waveId"`
	WaveNumber  string    `json:"waveNumber"`
	WaveType    string    `json:"waveType"`
	WarehouseID string    `json:"warehouseId"`
	At          time.Time `json:"createdAt"`
}

func (e *WaveCreatedEvent) EventType() string     { return "wms.wave.created" }
func (e *WaveCreatedEvent) OccurredAt() time.Time { return e.At }
func (e *WaveCreatedEvent) AggregateType() string { return AggregateWave }
func (e *WaveCreatedEvent) AggregateID() string   { return e.WaveID }

// WaveReleasedEvent is published when a wave's tasks are generated
type WaveReleasedEvent struct {
	WaveID         string    `json:"waveId"`
	WaveNumber     string    `json:"waveNumber"`
	WarehouseID    string    `json:"warehouseId"`
	TotalPicklists int       `json:"totalPicklists"`
	TotalTasks     int       `json:"totalTasks"`
	TotalItems     int       `json:"totalItems"`
	At             time.Time `json:"releasedAt"`
}

func (e *WaveReleasedEvent) EventType() string     { return "wms.wave.released" }
func (e *WaveReleasedEvent) OccurredAt() time.Time { return e.At }
func (e *WaveReleasedEvent) AggregateType() string { return AggregateWave }
func (e *WaveReleasedEvent) AggregateID() string   { return e.WaveID }

// WaveCancelledEvent is published when a wave is cancelled
type WaveCancelledEvent struct {
	WaveID     string    `json:"waveId"`
	WaveNumber string    `json:"waveNumber"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"cancelledAt"`
}

func (e *WaveCancelledEvent) EventType() string     { return "wms.wave.cancelled" }
func (e *WaveCancelledEvent) OccurredAt() time.Time { return e.At }
func (e *WaveCancelledEvent) AggregateType() string { return AggregateWave }
func (e *WaveCancelledEvent) AggregateID() string   { return e.WaveID }

// WaveCompletedEvent is published when every child task is terminal
type WaveCompletedEvent struct {
	WaveID             string    `json:"waveId"`
	WaveNumber         string    `json:"waveNumber"`
	CompletedPicklists int       `json:"completedPicklists"`
	PickedQuantity     int       `json:"pickedQuantity"`
	At                 time.Time `json:"completedAt"`
}

func (e *WaveCompletedEvent) EventType() string     { return "wms.wave.completed" }
func (e *WaveCompletedEvent) OccurredAt() time.Time { return e.At }
func (e *WaveCompletedEvent) AggregateType() string { return AggregateWave }
func (e *WaveCompletedEvent) AggregateID() string   { return e.WaveID }

// TaskCreatedEvent is published for every new task
type TaskCreatedEvent struct {
	TaskID      string    `json:"taskId"`
	TaskType    string    `json:"taskType"`
	WarehouseID string    `json:"warehouseId"`
	Zone        string    `json:"zone"`
	SourceType  string    `json:"sourceType"`
	SourceID    string    `json:"sourceId"`
	Quantity    int       `json:"quantity"`
	At          time.Time `json:"createdAt"`
}

func (e *TaskCreatedEvent) EventType() string     { return "wms.task.created" }
func (e *TaskCreatedEvent) OccurredAt() time.Time { return e.At }
func (e *TaskCreatedEvent) AggregateType() string { return AggregateTask }
func (e *TaskCreatedEvent) AggregateID() string   { return e.TaskID }

// TaskAssignedEvent is published when a claim succeeds
type TaskAssignedEvent struct {
	TaskID       string    `json:"taskId"`
	WorkerID     string    `json:"workerId"`
	WarehouseID  string    `json:"warehouseId"`
	Zone         string    `json:"zone"`
	ClaimVersion int64     `json:"claimVersion"`
	At           time.Time `json:"assignedAt"`
}

func (e *TaskAssignedEvent) EventType() string     { return "wms.task.assigned" }
func (e *TaskAssignedEvent) OccurredAt() time.Time { return e.At }
func (e *TaskAssignedEvent) AggregateType() string { return AggregateTask }
func (e *TaskAssignedEvent) AggregateID() string   { return e.TaskID }

// TaskStartedEvent is published when the holder starts work
type TaskStartedEvent struct {
	TaskID   string    `json:"taskId"`
	WorkerID string    `json:"workerId"`
	At       time.Time `json:"startedAt"`
}

func (e *TaskStartedEvent) EventType() string     { return "wms.task.started" }
func (e *TaskStartedEvent) OccurredAt() time.Time { return e.At }
func (e *TaskStartedEvent) AggregateType() string { return AggregateTask }
func (e *TaskStartedEvent) AggregateID() string   { return e.TaskID }

// TaskCompletedEvent is published when the full quantity is done
type TaskCompletedEvent struct {
	TaskID     string    `json:"taskId"`
	WorkerID   string    `json:"workerId"`
	TaskType   string    `json:"taskType"`
	Quantity   int       `json:"quantity"`
	SourceType string    `json:"sourceType"`
	SourceID   string    `json:"sourceId"`
	At         time.Time `json:"completedAt"`
}

func (e *TaskCompletedEvent) EventType() string     { return "wms.task.completed" }
func (e *TaskCompletedEvent) OccurredAt() time.Time { return e.At }
func (e *TaskCompletedEvent) AggregateType() string { return AggregateTask }
func (e *TaskCompletedEvent) AggregateID() string   { return e.TaskID }

// TaskExceptionEvent is published when a task ends short
type TaskExceptionEvent struct {
	TaskID            string    `json:"taskId"`
	WorkerID          string    `json:"workerId"`
	QuantityCompleted int       `json:"quantityCompleted"`
	QuantityException int       `json:"quantityException"`
	Reason            string    `json:"reason"`
	At                time.Time `json:"occurredAt"`
}

func (e *TaskExceptionEvent) EventType() string     { return "wms.task.exception" }
func (e *TaskExceptionEvent) OccurredAt() time.Time { return e.At }
func (e *TaskExceptionEvent) AggregateType() string { return AggregateTask }
func (e *TaskExceptionEvent) AggregateID() string   { return e.TaskID }

// TaskSkippedEvent is published when the holder hands a task back
type TaskSkippedEvent struct {
	TaskID    string    `json:"taskId"`
	WorkerID  string    `json:"workerId"`
	Reason    string    `json:"reason"`
	SkipCount int       `json:"skipCount"`
	At        time.Time `json:"skippedAt"`
}

func (e *TaskSkippedEvent) EventType() string     { return "wms.task.skipped" }
func (e *TaskSkippedEvent) OccurredAt() time.Time { return e.At }
func (e *TaskSkippedEvent) AggregateType() string { return AggregateTask }
func (e *TaskSkippedEvent) AggregateID() string   { return e.TaskID }

// TaskCancelledEvent is published when a task is cancelled
type TaskCancelledEvent struct {
	TaskID           string    `json:"taskId"`
	PreviousWorkerID string    `json:"previousWorkerId,omitempty"`
	Reason           string    `json:"reason"`
	At               time.Time `json:"cancelledAt"`
}

func (e *TaskCancelledEvent) EventType() string     { return "wms.task.cancelled" }
func (e *TaskCancelledEvent) OccurredAt() time.Time { return e.At }
func (e *TaskCancelledEvent) AggregateType() string { return AggregateTask }
func (e *TaskCancelledEvent) AggregateID() string   { return e.TaskID }

// TaskReassignedEvent is published by the single winner of a claim release
type TaskReassignedEvent struct {
	TaskID           string    `json:"taskId"`
	PreviousWorkerID string    `json:"previousWorkerId"`
	Cause            string    `json:"cause"`
	ClaimVersion     int64     `json:"claimVersion"`
	At               time.Time `json:"reassignedAt"`
}

func (e *TaskReassignedEvent) EventType() string     { return "wms.task.reassigned" }
func (e *TaskReassignedEvent) OccurredAt() time.Time { return e.At }
func (e *TaskReassignedEvent) AggregateType() string { return AggregateTask }
func (e *TaskReassignedEvent) AggregateID() string   { return e.TaskID }

// Cross-dock event types
const (
	EventCrossDockCreated   = "wms.crossdock.created"
	EventCrossDockReceived  = "wms.crossdock.received"
	EventCrossDockStaged    = "wms.crossdock.staged"
	EventCrossDockAllocated = "wms.crossdock.allocated"
	EventCrossDockDeparted  = "wms.crossdock.departed"
	EventCrossDockCancelled = "wms.crossdock.cancelled"
)

// CrossDockEvent covers every cross-dock transition
type CrossDockEvent struct {
	Type        string    `json:"-"`
	CrossDockID string    `json:"crossDockId"`
	Status      string    `json:"status"`
	ProductID   string    `json:"productId,omitempty"`
	OrderID     string    `json:"orderId,omitempty"`
	TaskID      string    `json:"taskId,omitempty"`
	Quantity    int       `json:"quantity,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"occurredAt"`
}

func (e *CrossDockEvent) EventType() string     { return e.Type }
func (e *CrossDockEvent) OccurredAt() time.Time { return e.At }
func (e *CrossDockEvent) AggregateType() string { return AggregateCrossDock }
func (e *CrossDockEvent) AggregateID() string   { return e.CrossDockID }

// SlottingRecomputedEvent is published after a warehouse recompute
type SlottingRecomputedEvent struct {
	WarehouseID string    `json:"warehouseId"`
	PeriodFrom  time.Time `json:"periodFrom"`
	PeriodTo    time.Time `json:"periodTo"`
	Products    int       `json:"products"`
	Relocations int       `json:"relocations"`
	At          time.Time `json:"computedAt"`
}

func (e *SlottingRecomputedEvent) EventType() string     { return "wms.slotting.recomputed" }
func (e *SlottingRecomputedEvent) OccurredAt() time.Time { return e.At }
func (e *SlottingRecomputedEvent) AggregateType() string { return AggregateSlotting }
func (e *SlottingRecomputedEvent) AggregateID() string   { return e.WarehouseID }
