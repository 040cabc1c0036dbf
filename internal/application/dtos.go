package application

import "time"

// TaskDTO is the API view of a task
type TaskDTO struct {
	ID                  string     `json:"id"`
	WarehouseID         string     `json:"warehouseId"`
	TaskType            string     `json:"taskType"`
	Status              string     `json:"status"`
	Priority            string     `json:"priority"`
	DueAt               *time.Time `json:"dueAt,omitempty"`
	SourceType          string     `json:"sourceType"`
	SourceID            string     `json:"sourceId"`
	OrderID             string     `json:"orderId,omitempty"`
	PicklistID          string     `json:"picklistId,omitempty"`
	Zone                string     `json:"zone"`
	SourceBin           string     `json:"sourceBin,omitempty"`
	DestinationBin      string     `json:"destinationBin,omitempty"`
	ProductID           string     `json:"productId"`
	SKU                 string     `json:"sku,omitempty"`
	TripNumber          int        `json:"tripNumber,omitempty"`
	Sequence            int        `json:"sequence,omitempty"`
	QuantityRequired    int        `json:"quantityRequired"`
	QuantityCompleted   int        `json:"quantityCompleted"`
	QuantityException   int        `json:"quantityException"`
	ExceptionReason     string     `json:"exceptionReason,omitempty"`
	ExceptionHandledBy  string     `json:"exceptionHandledBy,omitempty"`
	AssignedTo          string     `json:"assignedTo,omitempty"`
	AssignedAt          *time.Time `json:"assignedAt,omitempty"`
	ClaimVersion        int64      `json:"claimVersion"`
	SuggestedNextTaskID string     `json:"suggestedNextTaskId,omitempty"`
	SkipCount           int        `json:"skipCount"`
	StartedAt           *time.Time `json:"startedAt,omitempty"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
	TravelSeconds       int64      `json:"travelSeconds"`
	ExecutionSeconds    int64      `json:"executionSeconds"`
	TotalSeconds        int64      `json:"totalSeconds"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// WaveDTO is the API view of a wave
type WaveDTO struct {
	ID                 string         `json:"id"`
	WaveNumber         string         `json:"waveNumber"`
	WarehouseID        string         `json:"warehouseId"`
	Type               string         `json:"type"`
	Status             string         `json:"status"`
	Filters            map[string]any `json:"filters"`
	OptimizeRoute      bool           `json:"optimizeRoute"`
	GroupByZone        bool           `json:"groupByZone"`
	MaxPicksPerTrip    int            `json:"maxPicksPerTrip,omitempty"`
	MaxWeightPerTrip   float64        `json:"maxWeightPerTrip,omitempty"`
	TotalOrders        int            `json:"totalOrders"`
	TotalPicklists     int            `json:"totalPicklists"`
	TotalItems         int            `json:"totalItems"`
	TotalTasks         int            `json:"totalTasks"`
	CompletedPicklists int            `json:"completedPicklists"`
	PickedQuantity     int            `json:"pickedQuantity"`
	Progress           float64        `json:"progress"`
	ReleasedAt         *time.Time     `json:"releasedAt,omitempty"`
	StartedAt          *time.Time     `json:"startedAt,omitempty"`
	CompletedAt        *time.Time     `json:"completedAt,omitempty"`
	CancelledAt        *time.Time     `json:"cancelledAt,omitempty"`
	CancelReason       string         `json:"cancelReason,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// WavePreviewDTO shows what a release would pick up right now
type WavePreviewDTO struct {
	WaveID      string   `json:"waveId"`
	Picklists   int      `json:"picklists"`
	Orders      int      `json:"orders"`
	Items       int      `json:"items"`
	Lines       int      `json:"lines"`
	PicklistIDs []string `json:"picklistIds"`
}

// ReleaseResultDTO reports a successful release
type ReleaseResultDTO struct {
	Wave         *WaveDTO `json:"wave"`
	TasksCreated int      `json:"tasksCreated"`
}

// SessionDTO is the API view of a worker session
type SessionDTO struct {
	SessionID               string     `json:"sessionId"`
	WorkerID                string     `json:"workerId"`
	WarehouseID             string     `json:"warehouseId"`
	DeviceID                string     `json:"deviceId,omitempty"`
	Status                  string     `json:"status"`
	StartedAt               *time.Time `json:"startedAt,omitempty"`
	LastHeartbeatAt         *time.Time `json:"lastHeartbeatAt,omitempty"`
	HeartbeatTimeoutSeconds int        `json:"heartbeatTimeoutSeconds"`
}

// WorkerLocationDTO is the last known position of a worker
type WorkerLocationDTO struct {
	WorkerID      string    `json:"workerId"`
	WarehouseID   string    `json:"warehouseId"`
	Zone          string    `json:"zone,omitempty"`
	Bin           string    `json:"bin,omitempty"`
	CurrentTaskID string    `json:"currentTaskId,omitempty"`
	LastTaskType  string    `json:"lastTaskType,omitempty"`
	PinnedZone    string    `json:"pinnedZone,omitempty"`
	IsOnBreak     bool      `json:"isOnBreak"`
	SessionStatus string    `json:"sessionStatus,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SlotScoreDTO is one optimizer row
type SlotScoreDTO struct {
	ProductID          string    `json:"productId"`
	VelocityClass      string    `json:"velocityClass"`
	VelocityScore      float64   `json:"velocityScore"`
	AffinityScore      float64   `json:"affinityScore"`
	ErgonomicScore     float64   `json:"ergonomicScore"`
	SeasonalityScore   float64   `json:"seasonalityScore"`
	TotalScore         float64   `json:"totalScore"`
	CurrentBin         string    `json:"currentBin"`
	RecommendedBin     string    `json:"recommendedBin"`
	RecommendedZone    string    `json:"recommendedZone"`
	RelocationPriority float64   `json:"relocationPriority"`
	RelocationRank     int       `json:"relocationRank"`
	PickCount          int       `json:"pickCount"`
	PickQuantity       int       `json:"pickQuantity"`
	ComputedAt         time.Time `json:"computedAt"`
}

// SlottingRunDTO summarises one recompute
type SlottingRunDTO struct {
	WarehouseID string         `json:"warehouseId"`
	PeriodFrom  time.Time      `json:"periodFrom"`
	PeriodTo    time.Time      `json:"periodTo"`
	Products    int            `json:"products"`
	Relocations int            `json:"relocations"`
	Scores      []SlotScoreDTO `json:"scores"`
}

// CrossDockDTO is the API view of a cross-dock record
type CrossDockDTO struct {
	ID                string          `json:"id"`
	WarehouseID       string          `json:"warehouseId"`
	Type              string          `json:"type"`
	Status            string          `json:"status"`
	InboundType       string          `json:"inboundType"`
	InboundID         string          `json:"inboundId"`
	StagingBin        string          `json:"stagingBin"`
	Items             map[string]int  `json:"items"`
	Received          map[string]int  `json:"received"`
	Outbound          []OutboundDTO   `json:"outbound"`
	Allocations       []AllocationDTO `json:"allocations"`
	TotalQuantity     int             `json:"totalQuantity"`
	ReceivedQuantity  int             `json:"receivedQuantity"`
	ProcessedQuantity int             `json:"processedQuantity"`
	CancelReason      string          `json:"cancelReason,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// OutboundDTO is one outbound demand line
type OutboundDTO struct {
	OrderID            string    `json:"orderId"`
	ShipmentID         string    `json:"shipmentId,omitempty"`
	ProductID          string    `json:"productId"`
	Quantity           int       `json:"quantity"`
	Allocated          int       `json:"allocated"`
	ScheduledDeparture time.Time `json:"scheduledDeparture"`
	DockBin            string    `json:"dockBin"`
}

// AllocationDTO is one booked allocation
type AllocationDTO struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	TaskID    string `json:"taskId"`
}

// MatchResultDTO reports one Match run
type MatchResultDTO struct {
	CrossDock    *CrossDockDTO   `json:"crossDock"`
	Allocations  []AllocationDTO `json:"allocations"`
	TasksCreated int             `json:"tasksCreated"`
	Unfulfilled  int             `json:"unfulfilled"`
}
