package domain

import "time"

// SessionStatus is the state of a worker's device session
type SessionStatus string

const (
	SessionActive  SessionStatus = "ACTIVE"
	SessionEnded   SessionStatus = "ENDED"
	SessionExpired SessionStatus = "EXPIRED"
)

// WorkerLocation is the last known position and session of a worker.
// The tracker writes position fields; the assignment coordinator owns the
// session fields.
type WorkerLocation struct {
	ID          string `bson:"_id" json:"id"`
	TenantID    string `bson:"tenantId" json:"tenantId"`
	FacilityID  string `bson:"facilityId" json:"facilityId"`
	WarehouseID string `bson:"warehouseId" json:"warehouseId"`
	WorkerID    string `bson:"workerId" json:"workerId"`

	CurrentZone   string     `bson:"currentZone,omitempty" json:"currentZone,omitempty"`
	CurrentBin    string     `bson:"currentBin,omitempty" json:"currentBin,omitempty"`
	CurrentTaskID string     `bson:"currentTaskId,omitempty" json:"currentTaskId,omitempty"`
	LastTaskType  TaskType   `bson:"lastTaskType,omitempty" json:"lastTaskType,omitempty"`
	LastTaskBin   string     `bson:"lastTaskBin,omitempty" json:"lastTaskBin,omitempty"`
	PinnedZone    string     `bson:"pinnedZone,omitempty" json:"pinnedZone,omitempty"`
	ShiftStart    *time.Time `bson:"shiftStart,omitempty" json:"shiftStart,omitempty"`
	ShiftEnd      *time.Time `bson:"shiftEnd,omitempty" json:"shiftEnd,omitempty"`
	IsOnBreak     bool       `bson:"isOnBreak" json:"isOnBreak"`

	SessionID        string        `bson:"sessionId,omitempty" json:"sessionId,omitempty"`
	DeviceID         string        `bson:"deviceId,omitempty" json:"deviceId,omitempty"`
	SessionStatus    SessionStatus `bson:"sessionStatus,omitempty" json:"sessionStatus,omitempty"`
	SessionStartedAt *time.Time    `bson:"sessionStartedAt,omitempty" json:"sessionStartedAt,omitempty"`
	LastHeartbeatAt  *time.Time    `bson:"lastHeartbeatAt,omitempty" json:"lastHeartbeatAt,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasActiveSession reports whether the worker is signed in
func (w *WorkerLocation) HasActiveSession() bool {
	return w != nil && w.SessionID != "" && w.SessionStatus == SessionActive
}

// WorkerContext is what the ranking needs to know about the claiming worker
type WorkerContext struct {
	WorkerID     string
	CurrentBin   string
	LastTaskType TaskType
	LastTaskBin  string
}

// RankingContext derives the ranking view of a location row
func (w *WorkerLocation) RankingContext() WorkerContext {
	if w == nil {
		return WorkerContext{}
	}
	return WorkerContext{
		WorkerID:     w.WorkerID,
		CurrentBin:   w.CurrentBin,
		LastTaskType: w.LastTaskType,
		LastTaskBin:  w.LastTaskBin,
	}
}
