package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
)

// Clock returns the current time; tests pin it
type Clock func() time.Time

// SystemClock is UTC wall time at BSON precision
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// DispatchConfig tunes the dispatcher
type DispatchConfig struct {
	Weights          domain.RankingWeights
	SLAHorizon       time.Duration
	MaxClaimAttempts int
}

// DefaultDispatchConfig returns the dispatcher defaults
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		Weights:          domain.DefaultRankingWeights(),
		SLAHorizon:       2 * time.Hour,
		MaxClaimAttempts: 5,
	}
}

// AssignmentConfig tunes sessions and zone capacity
type AssignmentConfig struct {
	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration
	// ZoneCaps maps "warehouse/zone" or a bare zone to its active-worker cap
	ZoneCaps map[string]int
}

// DefaultAssignmentConfig returns the session defaults
func DefaultAssignmentConfig() AssignmentConfig {
	return AssignmentConfig{
		HeartbeatTimeout: 90 * time.Second,
		SweepInterval:    15 * time.Second,
		ZoneCaps:         map[string]int{},
	}
}

// CapFor returns the cap of a zone, 0 when uncapped
func (c AssignmentConfig) CapFor(warehouseID, zone string) int {
	if limit, ok := c.ZoneCaps[warehouseID+"/"+zone]; ok {
		return limit
	}
	return c.ZoneCaps[zone]
}

// SlottingWeights weigh the four slot score components
type SlottingWeights struct {
	Velocity    float64 `yaml:"velocity" json:"velocity"`
	Affinity    float64 `yaml:"affinity" json:"affinity"`
	Ergonomic   float64 `yaml:"ergonomic" json:"ergonomic"`
	Seasonality float64 `yaml:"seasonality" json:"seasonality"`
}

// DefaultSlottingWeights are 0.40/0.25/0.20/0.15
func DefaultSlottingWeights() SlottingWeights {
	return SlottingWeights{Velocity: 0.40, Affinity: 0.25, Ergonomic: 0.20, Seasonality: 0.15}
}

// Validate requires non-negative weights summing to 1
func (w SlottingWeights) Validate() error {
	if w.Velocity < 0 || w.Affinity < 0 || w.Ergonomic < 0 || w.Seasonality < 0 {
		return fmt.Errorf("slotting weights must not be negative")
	}
	sum := w.Velocity + w.Affinity + w.Ergonomic + w.Seasonality
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("slotting weights must sum to 1, got %.3f", sum)
	}
	return nil
}

// ZoneMapping names the forward and reserve zones of a warehouse
type ZoneMapping struct {
	Forward string `yaml:"forward" json:"forward"`
	Reserve string `yaml:"reserve" json:"reserve"`
}

// WarehouseRef scopes a scheduled recompute to one tenant warehouse
type WarehouseRef struct {
	TenantID    string `yaml:"tenantId"`
	FacilityID  string `yaml:"facilityId"`
	WarehouseID string `yaml:"warehouseId"`
}

// SlottingConfig tunes the slotting optimizer and its scheduler
type SlottingConfig struct {
	ClassA        float64
	ClassB        float64
	Weights       SlottingWeights
	TenantWeights map[string]SlottingWeights
	Zones         map[string]ZoneMapping
	Warehouses    []WarehouseRef
	Concurrency   int
	Interval      time.Duration
	Period        time.Duration
	LockTTL       time.Duration
}

// DefaultSlottingConfig returns the optimizer defaults
func DefaultSlottingConfig() SlottingConfig {
	return SlottingConfig{
		ClassA:        0.80,
		ClassB:        0.15,
		Weights:       DefaultSlottingWeights(),
		TenantWeights: map[string]SlottingWeights{},
		Zones:         map[string]ZoneMapping{},
		Concurrency:   4,
		Interval:      6 * time.Hour,
		Period:        7 * 24 * time.Hour,
		LockTTL:       30 * time.Minute,
	}
}

// WeightsFor returns the tenant's weights or the defaults
func (c SlottingConfig) WeightsFor(tenantID string) SlottingWeights {
	if w, ok := c.TenantWeights[tenantID]; ok {
		return w
	}
	return c.Weights
}

// ZonesFor returns the zone mapping of a warehouse
func (c SlottingConfig) ZonesFor(warehouseID string) ZoneMapping {
	m := c.Zones[warehouseID]
	m.Forward = strings.ToUpper(m.Forward)
	m.Reserve = strings.ToUpper(m.Reserve)
	return m
}
