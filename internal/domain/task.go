package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskType is the kind of work a task represents
type TaskType string

const (
	TaskTypePick      TaskType = "PICK"
	TaskTypePutaway   TaskType = "PUTAWAY"
	TaskTypeReplenish TaskType = "REPLENISH"
	TaskTypeCrossDock TaskType = "CROSS_DOCK"
	TaskTypeCount     TaskType = "COUNT"
)

// IsValid reports whether t is a known task type
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypePick, TaskTypePutaway, TaskTypeReplenish, TaskTypeCrossDock, TaskTypeCount:
		return true
	}
	return false
}

// TaskStatus is the dispatch state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusAssigned   TaskStatus = "ASSIGNED"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusException  TaskStatus = "EXCEPTION"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is possible
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusException || s == TaskStatusCancelled
}

// IsClaimed reports whether a worker holds the task
func (s TaskStatus) IsClaimed() bool {
	return s == TaskStatusAssigned || s == TaskStatusInProgress
}

// WarehouseTask is the atomic unit of dispatch
type WarehouseTask struct {
	ID          string     `bson:"_id" json:"id"`
	TenantID    string     `bson:"tenantId" json:"tenantId"`
	FacilityID  string     `bson:"facilityId" json:"facilityId"`
	WarehouseID string     `bson:"warehouseId" json:"warehouseId"`
	TaskType    TaskType   `bson:"taskType" json:"taskType"`
	Status      TaskStatus `bson:"status" json:"status"`
	Priority    Priority   `bson:"priority" json:"priority"`
	SLABoost    float64    `bson:"slaBoost" json:"slaBoost"`
	DueAt       *time.Time `bson:"dueAt,omitempty" json:"dueAt,omitempty"`

	Source    TaskSource `bson:"source" json:"source"`
	DemandRef *DemandRef `bson:"demandRef,omitempty" json:"demandRef,omitempty"`

	SourceBin      string  `bson:"sourceBin,omitempty" json:"sourceBin,omitempty"`
	DestinationBin string  `bson:"destinationBin,omitempty" json:"destinationBin,omitempty"`
	Zone           string  `bson:"zone" json:"zone"`
	ProductID      string  `bson:"productId" json:"productId"`
	SKU            string  `bson:"sku,omitempty" json:"sku,omitempty"`
	UnitWeight     float64 `bson:"unitWeight" json:"unitWeight"`
	TripNumber     int     `bson:"tripNumber,omitempty" json:"tripNumber,omitempty"`
	Sequence       int     `bson:"sequence,omitempty" json:"sequence,omitempty"`

	QuantityRequired   int        `bson:"quantityRequired" json:"quantityRequired"`
	QuantityCompleted  int        `bson:"quantityCompleted" json:"quantityCompleted"`
	QuantityException  int        `bson:"quantityException" json:"quantityException"`
	ExceptionReason    string     `bson:"exceptionReason,omitempty" json:"exceptionReason,omitempty"`
	ExceptionHandledBy string     `bson:"exceptionHandledBy,omitempty" json:"exceptionHandledBy,omitempty"`
	ExceptionHandledAt *time.Time `bson:"exceptionHandledAt,omitempty" json:"exceptionHandledAt,omitempty"`
	CancelReason       string     `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`

	AssignedTo          string     `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	AssignedAt          *time.Time `bson:"assignedAt,omitempty" json:"assignedAt,omitempty"`
	ClaimVersion        int64      `bson:"claimVersion" json:"claimVersion"`
	SuggestedNextTaskID string     `bson:"suggestedNextTaskId,omitempty" json:"suggestedNextTaskId,omitempty"`

	SkipCount      int    `bson:"skipCount" json:"skipCount"`
	LastSkippedBy  string `bson:"lastSkippedBy,omitempty" json:"lastSkippedBy,omitempty"`
	LastSkipReason string `bson:"lastSkipReason,omitempty" json:"lastSkipReason,omitempty"`

	StartedAt        *time.Time `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt      *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	TravelSeconds    int64      `bson:"travelSeconds" json:"travelSeconds"`
	ExecutionSeconds int64      `bson:"executionSeconds" json:"executionSeconds"`
	TotalSeconds     int64      `bson:"totalSeconds" json:"totalSeconds"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	events []DomainEvent
}

// NewTaskParams holds everything needed to create a PENDING task
type NewTaskParams struct {
	TenantID       string
	FacilityID     string
	WarehouseID    string
	TaskType       TaskType
	Priority       Priority
	SLABoost       float64
	DueAt          *time.Time
	Source         TaskSource
	DemandRef      *DemandRef
	SourceBin      string
	DestinationBin string
	Zone           string
	ProductID      string
	SKU            string
	UnitWeight     float64
	Quantity       int
	TripNumber     int
	Sequence       int
}

// NewTask validates params and creates a PENDING task
func NewTask(p NewTaskParams, now time.Time) (*WarehouseTask, error) {
	if !p.TaskType.IsValid() {
		return nil, NewValidationError("taskType", "must be one of PICK, PUTAWAY, REPLENISH, CROSS_DOCK, COUNT")
	}
	if !p.Source.Type.IsValid() || p.Source.ID == "" {
		return nil, NewValidationError("source", "a tagged source is required")
	}
	if p.WarehouseID == "" {
		return nil, NewValidationError("warehouseId", "is required")
	}
	if p.Quantity <= 0 {
		return nil, NewValidationError("quantity", "must be greater than 0")
	}
	if p.SourceBin == "" && p.DestinationBin == "" {
		return nil, NewValidationError("sourceBin", "a source or destination bin is required")
	}
	if p.SLABoost < 0 {
		return nil, NewValidationError("slaBoost", "must not be negative")
	}
	priority := p.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.IsValid() {
		return nil, NewValidationError("priority", "must be one of LOW, NORMAL, HIGH, URGENT")
	}

	zone := strings.ToUpper(p.Zone)
	if zone == "" {
		bin := p.SourceBin
		if bin == "" {
			bin = p.DestinationBin
		}
		zone = ZoneOf(bin)
	}

	task := &WarehouseTask{
		ID:               uuid.NewString(),
		TenantID:         p.TenantID,
		FacilityID:       p.FacilityID,
		WarehouseID:      p.WarehouseID,
		TaskType:         p.TaskType,
		Status:           TaskStatusPending,
		Priority:         priority,
		SLABoost:         p.SLABoost,
		DueAt:            p.DueAt,
		Source:           p.Source,
		DemandRef:        p.DemandRef,
		SourceBin:        p.SourceBin,
		DestinationBin:   p.DestinationBin,
		Zone:             zone,
		ProductID:        p.ProductID,
		SKU:              p.SKU,
		UnitWeight:       p.UnitWeight,
		TripNumber:       p.TripNumber,
		Sequence:         p.Sequence,
		QuantityRequired: p.Quantity,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	task.record(&TaskCreatedEvent{
		TaskID: task.ID, TaskType: string(task.TaskType), WarehouseID: task.WarehouseID, Zone: task.Zone,
		SourceType: string(task.Source.Type), SourceID: task.Source.ID, Quantity: task.QuantityRequired, At: now,
	})
	return task, nil
}

// WorkBin is the bin the worker travels to first
func (t *WarehouseTask) WorkBin() string {
	if t.SourceBin != "" {
		return t.SourceBin
	}
	return t.DestinationBin
}

// FinalBin is where the worker stands once the task is done
func (t *WarehouseTask) FinalBin() string {
	if t.DestinationBin != "" {
		return t.DestinationBin
	}
	return t.SourceBin
}

// HeldBy reports whether workerID holds the task
func (t *WarehouseTask) HeldBy(workerID string) bool {
	return t.Status.IsClaimed() && t.AssignedTo == workerID
}

func (t *WarehouseTask) notHolder(workerID, action string) error {
	if !t.Status.IsClaimed() {
		return t.invalidState(action)
	}
	return &ValidationError{Field: "workerId", Message: "task is held by another worker", State: t}
}

func (t *WarehouseTask) invalidState(action string) *InvalidStateError {
	return &InvalidStateError{Resource: "task", ID: t.ID, Status: string(t.Status), Action: action, State: t}
}

// Claim moves a PENDING task to ASSIGNED and bumps the claim version
func (t *WarehouseTask) Claim(workerID string, now time.Time) error {
	if t.Status != TaskStatusPending {
		return ErrClaimConflict
	}
	t.Status = TaskStatusAssigned
	t.AssignedTo = workerID
	t.AssignedAt = &now
	t.ClaimVersion++
	t.UpdatedAt = now
	t.RecordAssigned(now)
	return nil
}

// RecordAssigned records the assignment event after a store-side claim
func (t *WarehouseTask) RecordAssigned(now time.Time) {
	t.record(&TaskAssignedEvent{
		TaskID: t.ID, WorkerID: t.AssignedTo, WarehouseID: t.WarehouseID, Zone: t.Zone,
		ClaimVersion: t.ClaimVersion, At: now,
	})
}

// Start moves an ASSIGNED task to IN_PROGRESS
func (t *WarehouseTask) Start(workerID string, now time.Time) error {
	if !t.HeldBy(workerID) {
		return t.notHolder(workerID, "start")
	}
	if t.Status != TaskStatusAssigned {
		return t.invalidState("start")
	}
	t.Status = TaskStatusInProgress
	t.StartedAt = &now
	if t.AssignedAt != nil {
		t.TravelSeconds = int64(now.Sub(*t.AssignedAt).Seconds())
	}
	t.UpdatedAt = now
	t.record(&TaskStartedEvent{TaskID: t.ID, WorkerID: workerID, At: now})
	return nil
}

// Complete records the outcome of the holder's work. A result short of
// the required quantity ends in EXCEPTION with the remainder as exception
// quantity and a mandatory reason.
func (t *WarehouseTask) Complete(workerID string, quantity, exceptionQty int, reason string, now time.Time) error {
	if !t.HeldBy(workerID) {
		return t.notHolder(workerID, "complete")
	}
	if quantity < 0 {
		return NewValidationError("quantity", "must not be negative")
	}
	if exceptionQty < 0 {
		return NewValidationError("exceptionQty", "must not be negative")
	}
	if quantity == 0 && exceptionQty == 0 {
		return NewValidationError("quantity", "quantity or exceptionQty must be positive")
	}
	completed := t.QuantityCompleted + quantity
	exception := t.QuantityException + exceptionQty
	if completed+exception > t.QuantityRequired {
		return &ValidationError{Field: "quantity", Message: "completed plus exception quantity exceeds the required quantity", State: t}
	}
	reason = strings.TrimSpace(reason)
	if completed < t.QuantityRequired && reason == "" {
		return NewValidationError("reason", "is required when the task is not fully completed")
	}

	t.QuantityCompleted = completed
	if completed == t.QuantityRequired {
		t.Status = TaskStatusCompleted
	} else {
		t.QuantityException = t.QuantityRequired - completed
		t.ExceptionReason = reason
		t.Status = TaskStatusException
	}
	t.stampCompletion(now)

	if t.Status == TaskStatusCompleted {
		t.record(&TaskCompletedEvent{
			TaskID: t.ID, WorkerID: workerID, TaskType: string(t.TaskType), Quantity: t.QuantityCompleted,
			SourceType: string(t.Source.Type), SourceID: t.Source.ID, At: now,
		})
	} else {
		t.record(&TaskExceptionEvent{
			TaskID: t.ID, WorkerID: workerID, QuantityCompleted: t.QuantityCompleted,
			QuantityException: t.QuantityException, Reason: t.ExceptionReason, At: now,
		})
	}
	return nil
}

func (t *WarehouseTask) stampCompletion(now time.Time) {
	t.CompletedAt = &now
	if t.StartedAt == nil {
		t.StartedAt = &now
		if t.AssignedAt != nil {
			t.TravelSeconds = int64(now.Sub(*t.AssignedAt).Seconds())
		}
	}
	t.ExecutionSeconds = int64(now.Sub(*t.StartedAt).Seconds())
	if t.AssignedAt != nil {
		t.TotalSeconds = int64(now.Sub(*t.AssignedAt).Seconds())
	}
	t.UpdatedAt = now
}

// Skip returns the holder's task to the pool. createdAt and dueAt stay put.
func (t *WarehouseTask) Skip(workerID, reason string, now time.Time) error {
	if !t.HeldBy(workerID) {
		return t.notHolder(workerID, "skip")
	}
	t.clearClaim()
	t.SkipCount++
	t.LastSkippedBy = workerID
	t.LastSkipReason = reason
	t.UpdatedAt = now
	t.record(&TaskSkippedEvent{TaskID: t.ID, WorkerID: workerID, Reason: reason, SkipCount: t.SkipCount, At: now})
	return nil
}

// Release returns a claimed task to PENDING without counting a skip
func (t *WarehouseTask) Release(cause string, now time.Time) error {
	if !t.Status.IsClaimed() {
		return ErrClaimConflict
	}
	previous := t.AssignedTo
	t.clearClaim()
	t.UpdatedAt = now
	t.record(&TaskReassignedEvent{TaskID: t.ID, PreviousWorkerID: previous, Cause: cause, ClaimVersion: t.ClaimVersion, At: now})
	return nil
}

func (t *WarehouseTask) clearClaim() {
	t.Status = TaskStatusPending
	t.AssignedTo = ""
	t.AssignedAt = nil
	t.StartedAt = nil
	t.TravelSeconds = 0
}

// Cancel is allowed from PENDING and ASSIGNED; IN_PROGRESS work finishes
func (t *WarehouseTask) Cancel(reason string, now time.Time) error {
	if t.Status.IsTerminal() {
		return t.invalidState("cancel")
	}
	if t.Status != TaskStatusPending && t.Status != TaskStatusAssigned {
		return &ValidationError{Field: "status", Message: "only PENDING or ASSIGNED tasks can be cancelled", State: t}
	}
	previous := t.AssignedTo
	t.Status = TaskStatusCancelled
	t.CancelReason = reason
	t.AssignedTo = ""
	t.AssignedAt = nil
	t.UpdatedAt = now
	t.record(&TaskCancelledEvent{TaskID: t.ID, PreviousWorkerID: previous, Reason: reason, At: now})
	return nil
}

// ResolveException stamps who handled an EXCEPTION entry
func (t *WarehouseTask) ResolveException(handledBy string, now time.Time) error {
	if t.Status != TaskStatusException {
		return t.invalidState("resolve exception for")
	}
	if t.ExceptionHandledBy != "" {
		return t.invalidState("resolve already handled exception for")
	}
	if strings.TrimSpace(handledBy) == "" {
		return NewValidationError("handledBy", "is required")
	}
	t.ExceptionHandledBy = handledBy
	t.ExceptionHandledAt = &now
	t.UpdatedAt = now
	return nil
}

func (t *WarehouseTask) record(e DomainEvent) {
	t.events = append(t.events, e)
}

// PullEvents returns and clears the pending domain events
func (t *WarehouseTask) PullEvents() []DomainEvent {
	events := t.events
	t.events = nil
	return events
}
