package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WaveType is the grouping criterion of a wave
type WaveType string

const (
	WaveTypeCarrierCutoff WaveType = "CARRIER_CUTOFF"
	WaveTypeZone          WaveType = "ZONE"
	WaveTypePriority      WaveType = "PRIORITY"
	WaveTypeChannel       WaveType = "CHANNEL"
)

// IsValid reports whether t is a known wave type
func (t WaveType) IsValid() bool {
	switch t {
	case WaveTypeCarrierCutoff, WaveTypeZone, WaveTypePriority, WaveTypeChannel:
		return true
	}
	return false
}

// WaveStatus is the lifecycle state of a wave
type WaveStatus string

const (
	WaveStatusDraft      WaveStatus = "DRAFT"
	WaveStatusReleased   WaveStatus = "RELEASED"
	WaveStatusInProgress WaveStatus = "IN_PROGRESS"
	WaveStatusCompleted  WaveStatus = "COMPLETED"
	WaveStatusCancelled  WaveStatus = "CANCELLED"
)

// IsTerminal reports whether the wave is closed
func (s WaveStatus) IsTerminal() bool {
	return s == WaveStatusCompleted || s == WaveStatusCancelled
}

// PriorityBand bounds picklist priority, inclusive on both ends
type PriorityBand struct {
	Min Priority `bson:"min,omitempty" json:"min,omitempty"`
	Max Priority `bson:"max,omitempty" json:"max,omitempty"`
}

// IsZero reports whether no band is set
func (b PriorityBand) IsZero() bool {
	return b.Min == "" && b.Max == ""
}

// Contains reports whether p falls inside the band
func (b PriorityBand) Contains(p Priority) bool {
	if b.Min != "" && p.Rank() < b.Min.Rank() {
		return false
	}
	if b.Max != "" && p.Rank() > b.Max.Rank() {
		return false
	}
	return true
}

// WaveFilters select eligible picklists. Immutable once released.
type WaveFilters struct {
	Carrier       string       `bson:"carrier,omitempty" json:"carrier,omitempty"`
	CutoffAt      *time.Time   `bson:"cutoffAt,omitempty" json:"cutoffAt,omitempty"`
	Zones         []string     `bson:"zones,omitempty" json:"zones,omitempty"`
	Channels      []string     `bson:"channels,omitempty" json:"channels,omitempty"`
	CustomerTypes []string     `bson:"customerTypes,omitempty" json:"customerTypes,omitempty"`
	PriorityBand  PriorityBand `bson:"priorityBand" json:"priorityBand"`
}

// Normalize upper-cases, sorts and deduplicates the filter sets
func (f *WaveFilters) Normalize() {
	f.Carrier = strings.TrimSpace(f.Carrier)
	f.Zones = NormalizeSet(f.Zones)
	f.Channels = NormalizeSet(f.Channels)
	f.CustomerTypes = NormalizeSet(f.CustomerTypes)
}

// NormalizeSet upper-cases, sorts and deduplicates values, dropping blanks
func NormalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Matches reports whether a picklist satisfies every configured filter
func (f WaveFilters) Matches(p Picklist) bool {
	if f.Carrier != "" && !strings.EqualFold(f.Carrier, p.Carrier) {
		return false
	}
	if f.CutoffAt != nil && (p.CutoffAt == nil || p.CutoffAt.After(*f.CutoffAt)) {
		return false
	}
	if len(f.Zones) > 0 && !slices.Contains(f.Zones, strings.ToUpper(p.Zone)) {
		return false
	}
	if len(f.Channels) > 0 && !slices.Contains(f.Channels, strings.ToUpper(p.Channel)) {
		return false
	}
	if len(f.CustomerTypes) > 0 && !slices.Contains(f.CustomerTypes, strings.ToUpper(p.CustomerType)) {
		return false
	}
	return f.PriorityBand.Contains(p.Priority)
}

// WaveOptions shape task generation at release. Zero limits are unbounded.
type WaveOptions struct {
	OptimizeRoute    bool    `bson:"optimizeRoute" json:"optimizeRoute"`
	GroupByZone      bool    `bson:"groupByZone" json:"groupByZone"`
	MaxPicksPerTrip  int     `bson:"maxPicksPerTrip" json:"maxPicksPerTrip"`
	MaxWeightPerTrip float64 `bson:"maxWeightPerTrip" json:"maxWeightPerTrip"`
}

// WaveCounters track progress of a released wave
type WaveCounters struct {
	TotalOrders        int `bson:"totalOrders" json:"totalOrders"`
	TotalPicklists     int `bson:"totalPicklists" json:"totalPicklists"`
	TotalItems         int `bson:"totalItems" json:"totalItems"`
	TotalTasks         int `bson:"totalTasks" json:"totalTasks"`
	CompletedPicklists int `bson:"completedPicklists" json:"completedPicklists"`
	PickedQuantity     int `bson:"pickedQuantity" json:"pickedQuantity"`
}

// PickWave is a time-boxed batch of picklists released together
type PickWave struct {
	ID           string       `bson:"_id" json:"id"`
	WaveNumber   string       `bson:"waveNumber" json:"waveNumber"`
	TenantID     string       `bson:"tenantId" json:"tenantId"`
	FacilityID   string       `bson:"facilityId" json:"facilityId"`
	WarehouseID  string       `bson:"warehouseId" json:"warehouseId"`
	Type         WaveType     `bson:"type" json:"type"`
	Status       WaveStatus   `bson:"status" json:"status"`
	Filters      WaveFilters  `bson:"filters" json:"filters"`
	Options      WaveOptions  `bson:"options" json:"options"`
	Counters     WaveCounters `bson:"counters" json:"counters"`
	ReleasedAt   *time.Time   `bson:"releasedAt,omitempty" json:"releasedAt,omitempty"`
	StartedAt    *time.Time   `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt  *time.Time   `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CancelledAt  *time.Time   `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CancelReason string       `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	Version      int64        `bson:"version" json:"version"`
	CreatedAt    time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time    `bson:"updatedAt" json:"updatedAt"`

	events []DomainEvent
}

// NewWaveNumber formats WV-YYYYMMDD-XXXXXXXX
func NewWaveNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("WV-%s-%s", now.UTC().Format("20060102"), suffix)
}

// NewPickWaveParams is the validated input of NewPickWave
type NewPickWaveParams struct {
	TenantID    string
	FacilityID  string
	WarehouseID string
	Type        WaveType
	Filters     WaveFilters
	Options     WaveOptions
}

// NewPickWave validates the wave definition and creates a DRAFT wave
func NewPickWave(p NewPickWaveParams, now time.Time) (*PickWave, error) {
	p.Type = WaveType(strings.ToUpper(string(p.Type)))
	p.Filters.Normalize()
	if err := validateWaveDefinition(p); err != nil {
		return nil, err
	}

	wave := &PickWave{
		ID:          uuid.NewString(),
		WaveNumber:  NewWaveNumber(now),
		TenantID:    p.TenantID,
		FacilityID:  p.FacilityID,
		WarehouseID: p.WarehouseID,
		Type:        p.Type,
		Status:      WaveStatusDraft,
		Filters:     p.Filters,
		Options:     p.Options,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	wave.record(&WaveCreatedEvent{WaveID: wave.ID, WaveNumber: wave.WaveNumber, WaveType: string(wave.Type), WarehouseID: wave.WarehouseID, At: now})
	return wave, nil
}

func validateWaveDefinition(p NewPickWaveParams) error {
	if p.WarehouseID == "" {
		return NewValidationError("warehouseId", "is required")
	}
	if !p.Type.IsValid() {
		return NewValidationError("type", "must be one of CARRIER_CUTOFF, ZONE, PRIORITY, CHANNEL")
	}
	switch p.Type {
	case WaveTypeCarrierCutoff:
		if p.Filters.Carrier == "" {
			return NewValidationError("filters.carrier", "is required for CARRIER_CUTOFF waves")
		}
		if p.Filters.CutoffAt == nil {
			return NewValidationError("filters.cutoffAt", "is required for CARRIER_CUTOFF waves")
		}
	case WaveTypeZone:
		if len(p.Filters.Zones) == 0 {
			return NewValidationError("filters.zones", "at least one zone is required for ZONE waves")
		}
	case WaveTypeChannel:
		if len(p.Filters.Channels) == 0 {
			return NewValidationError("filters.channels", "at least one channel is required for CHANNEL waves")
		}
	case WaveTypePriority:
		band := p.Filters.PriorityBand
		if band.IsZero() {
			return NewValidationError("filters.priorityBand", "is required for PRIORITY waves")
		}
	}
	band := p.Filters.PriorityBand
	if (band.Min != "" && !band.Min.IsValid()) || (band.Max != "" && !band.Max.IsValid()) {
		return NewValidationError("filters.priorityBand", "bounds must be LOW, NORMAL, HIGH or URGENT")
	}
	if band.Min != "" && band.Max != "" && band.Min.Rank() > band.Max.Rank() {
		return NewValidationError("filters.priorityBand", "min must not exceed max")
	}
	if p.Options.MaxPicksPerTrip < 0 {
		return NewValidationError("options.maxPicksPerTrip", "must not be negative")
	}
	if p.Options.MaxWeightPerTrip < 0 {
		return NewValidationError("options.maxWeightPerTrip", "must not be negative")
	}
	return nil
}

// Release moves a DRAFT wave to RELEASED with its initial counters
func (w *PickWave) Release(counters WaveCounters, now time.Time) error {
	if w.Status != WaveStatusDraft {
		return &AlreadyReleasedError{WaveID: w.ID, Status: w.Status, State: w}
	}
	if counters.TotalPicklists == 0 || counters.TotalTasks == 0 {
		return &EmptyWaveError{WaveID: w.ID}
	}
	w.Status = WaveStatusReleased
	w.Counters = counters
	w.ReleasedAt = &now
	w.UpdatedAt = now
	w.record(&WaveReleasedEvent{
		WaveID: w.ID, WaveNumber: w.WaveNumber, WarehouseID: w.WarehouseID,
		TotalPicklists: counters.TotalPicklists, TotalTasks: counters.TotalTasks, TotalItems: counters.TotalItems, At: now,
	})
	return nil
}

// MarkStarted moves a RELEASED wave to IN_PROGRESS on its first claim
func (w *PickWave) MarkStarted(now time.Time) bool {
	if w.Status != WaveStatusReleased {
		return false
	}
	w.Status = WaveStatusInProgress
	w.StartedAt = &now
	w.UpdatedAt = now
	return true
}

// Cancel closes a non-terminal wave
func (w *PickWave) Cancel(reason string, now time.Time) error {
	if w.Status.IsTerminal() {
		return &InvalidStateError{Resource: "wave", ID: w.ID, Status: string(w.Status), Action: "cancel", State: w}
	}
	w.Status = WaveStatusCancelled
	w.CancelledAt = &now
	w.CancelReason = reason
	w.UpdatedAt = now
	w.record(&WaveCancelledEvent{WaveID: w.ID, WaveNumber: w.WaveNumber, Reason: reason, At: now})
	return nil
}

// Complete closes a released wave once every child task is terminal
func (w *PickWave) Complete(now time.Time) bool {
	if w.Status != WaveStatusReleased && w.Status != WaveStatusInProgress {
		return false
	}
	w.Status = WaveStatusCompleted
	w.CompletedAt = &now
	w.UpdatedAt = now
	w.record(&WaveCompletedEvent{
		WaveID: w.ID, WaveNumber: w.WaveNumber, CompletedPicklists: w.Counters.CompletedPicklists,
		PickedQuantity: w.Counters.PickedQuantity, At: now,
	})
	return true
}

func (w *PickWave) record(e DomainEvent) {
	w.events = append(w.events, e)
}

// PullEvents returns and clears the pending domain events
func (w *PickWave) PullEvents() []DomainEvent {
	events := w.events
	w.events = nil
	return events
}

// WavePicklist associates a picklist with a wave. Open is true while the
// wave is not terminal; a picklist belongs to at most one open wave.
type WavePicklist struct {
	ID          string    `bson:"_id" json:"id"`
	TenantID    string    `bson:"tenantId" json:"tenantId"`
	FacilityID  string    `bson:"facilityId" json:"facilityId"`
	WarehouseID string    `bson:"warehouseId" json:"warehouseId"`
	WaveID      string    `bson:"waveId" json:"waveId"`
	PicklistID  string    `bson:"picklistId" json:"picklistId"`
	OrderID     string    `bson:"orderId" json:"orderId"`
	Zone        string    `bson:"zone" json:"zone"`
	ItemCount   int       `bson:"itemCount" json:"itemCount"`
	TaskCount   int       `bson:"taskCount" json:"taskCount"`
	Completed   bool      `bson:"completed" json:"completed"`
	Open        bool      `bson:"open" json:"open"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}
