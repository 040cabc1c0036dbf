package cloudevents

import (
	"time"
)

// Event types published by the task engine
const (
	WaveCreated   = "wms.wave.created"
	WaveReleased  = "wms.wave.released"
	WaveCancelled = "wms.wave.cancelled"
	WaveCompleted = "wms.wave.completed"

	TaskCreated    = "wms.task.created"
	TaskAssigned   = "wms.task.assigned"
	TaskStarted    = "wms.task.started"
	TaskCompleted  = "wms.task.completed"
	TaskException  = "wms.task.exception"
	TaskSkipped    = "wms.task.skipped"
	TaskCancelled  = "wms.task.cancelled"
	TaskReassigned = "wms.task.reassigned"

	CrossDockCreated   = "wms.crossdock.created"
	CrossDockReceived  = "wms.crossdock.received"
	CrossDockStaged    = "wms.crossdock.staged"
	CrossDockAllocated = "wms.crossdock.allocated"
	CrossDockDeparted  = "wms.crossdock.departed"
	CrossDockCancelled = "wms.crossdock.cancelled"

	SlottingRecomputed = "wms.slotting.recomputed"
)

// Event types consumed from other services
const (
	ReceivingItemReceived = "receiving.item.received"
)

// Event sources
const (
	SourceTaskEngine = "/wms/task-engine"
	SourceReceiving  = "/wms/receiving-service"
)

// WMSCloudEvent is a CloudEvents v1.0 envelope with the platform's
// extension attributes flattened into the JSON body.
type WMSCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	CorrelationID string `json:"wmscorrelationid,omitempty"`
	WaveNumber    string `json:"wmswavenumber,omitempty"`
	WorkflowID    string `json:"wmsworkflowid,omitempty"`

	TenantID    string `json:"wmstenantid,omitempty"`
	FacilityID  string `json:"wmsfacilityid,omitempty"`
	WarehouseID string `json:"wmswarehouseid,omitempty"`
}
