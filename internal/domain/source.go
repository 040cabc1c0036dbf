package domain

import "strings"

// SourceType names the single owner of a task
type SourceType string

const (
	SourceWave      SourceType = "WAVE"
	SourcePicklist  SourceType = "PICKLIST"
	SourceCrossDock SourceType = "CROSS_DOCK"
	SourceGRN       SourceType = "GRN"
)

// IsValid reports whether s is a known source type
func (s SourceType) IsValid() bool {
	switch s {
	case SourceWave, SourcePicklist, SourceCrossDock, SourceGRN:
		return true
	}
	return false
}

// TaskSource identifies the aggregate that produced a task
type TaskSource struct {
	Type SourceType `bson:"sourceType" json:"sourceType"`
	ID   string     `bson:"sourceId" json:"sourceId"`
}

// NewTaskSource validates the tagged source once, at construction
func NewTaskSource(sourceType SourceType, id string) (TaskSource, error) {
	sourceType = SourceType(strings.ToUpper(string(sourceType)))
	if !sourceType.IsValid() {
		return TaskSource{}, NewValidationError("sourceType", "must be one of WAVE, PICKLIST, CROSS_DOCK, GRN")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return TaskSource{}, NewValidationError("sourceId", "is required")
	}
	return TaskSource{Type: sourceType, ID: id}, nil
}

func (s TaskSource) String() string {
	return string(s.Type) + "/" + s.ID
}

// DemandRef is descriptive metadata about the demand a task serves
type DemandRef struct {
	OrderID    string `bson:"orderId,omitempty" json:"orderId,omitempty"`
	PicklistID string `bson:"picklistId,omitempty" json:"picklistId,omitempty"`
}
