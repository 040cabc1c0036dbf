package application

import (
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
)

// CreateWaveCommand defines a DRAFT wave
type CreateWaveCommand struct {
	WarehouseID string
	Type        string
	Filters     domain.WaveFilters
	Options     domain.WaveOptions
}

// CancelWaveCommand cancels a wave and cascades to its pending tasks
type CancelWaveCommand struct {
	WaveID string
	Reason string
}

// ClaimTaskCommand asks for the next task for a worker
type ClaimTaskCommand struct {
	WorkerID string
	ZoneHint string
}

// StartTaskCommand marks the worker at the task's location
type StartTaskCommand struct {
	TaskID   string
	WorkerID string
}

// CompleteTaskCommand reports the outcome of a task
type CompleteTaskCommand struct {
	TaskID       string
	WorkerID     string
	Quantity     int
	ExceptionQty int
	Reason       string
}

// SkipTaskCommand returns a claimed task to the pool
type SkipTaskCommand struct {
	TaskID   string
	WorkerID string
	Reason   string
}

// CancelTaskCommand cancels a PENDING or ASSIGNED task
type CancelTaskCommand struct {
	TaskID string
	Reason string
}

// CreateTaskCommand creates a standalone PUTAWAY, REPLENISH or COUNT task
type CreateTaskCommand struct {
	WarehouseID    string
	TaskType       string
	Priority       string
	DueAt          *time.Time
	SourceType     string
	SourceID       string
	SourceBin      string
	DestinationBin string
	ProductID      string
	SKU            string
	UnitWeight     float64
	Quantity       int
}

// ResolveExceptionCommand stamps who handled an exception task
type ResolveExceptionCommand struct {
	TaskID    string
	HandledBy string
}

// StartSessionCommand signs a worker in on a device
type StartSessionCommand struct {
	WorkerID    string
	WarehouseID string
	DeviceID    string
	ShiftStart  *time.Time
	ShiftEnd    *time.Time
}

// UpdateLocationCommand records a worker position
type UpdateLocationCommand struct {
	WorkerID   string
	Zone       string
	Bin        string
	IsOnBreak  *bool
	PinnedZone *string
}

// RecomputeSlottingCommand runs the optimizer for one warehouse
type RecomputeSlottingCommand struct {
	WarehouseID string
	From        time.Time
	To          time.Time
}

// CreateCrossDockCommand opens a cross-dock record
type CreateCrossDockCommand struct {
	WarehouseID string
	Type        string
	InboundType string
	InboundID   string
	StagingBin  string
	Items       map[string]int
	Outbound    []domain.OutboundDemand
}

// RecordInboundCommand books received quantity on a cross-dock
type RecordInboundCommand struct {
	CrossDockID string
	ProductID   string
	Quantity    int
}

// CancelCrossDockCommand halts a cross-dock
type CancelCrossDockCommand struct {
	CrossDockID string
	Reason      string
}

// ReceiptCommand is an inbound receipt line from the receiving service
type ReceiptCommand struct {
	ReceiptID   string
	ShipmentID  string
	WarehouseID string
	ProductID   string
	SKU         string
	Quantity    int
	UnitWeight  float64
	DockBin     string
}
