package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/internal/domain"
)

// EnvEngineConfigFile names the optional engine tuning file
const EnvEngineConfigFile = "ENGINE_CONFIG_FILE"

// Engine is the tuning of the dispatcher, sessions and slotting
type Engine struct {
	Dispatch   application.DispatchConfig
	Assignment application.AssignmentConfig
	Slotting   application.SlottingConfig
}

// Default returns the built-in tuning
func Default() *Engine {
	return &Engine{
		Dispatch:   application.DefaultDispatchConfig(),
		Assignment: application.DefaultAssignmentConfig(),
		Slotting:   application.DefaultSlottingConfig(),
	}
}

// engineFile mirrors the YAML layout; zero values leave defaults in place
type engineFile struct {
	Dispatch struct {
		Weights          *domain.RankingWeights `yaml:"weights"`
		SLAHorizon       time.Duration          `yaml:"slaHorizon"`
		MaxClaimAttempts int                    `yaml:"maxClaimAttempts"`
	} `yaml:"dispatch"`

	Sessions struct {
		HeartbeatTimeout time.Duration  `yaml:"heartbeatTimeout"`
		SweepInterval    time.Duration  `yaml:"sweepInterval"`
		ZoneCaps         map[string]int `yaml:"zoneCaps"`
	} `yaml:"sessions"`

	Slotting struct {
		ClassA        float64                                `yaml:"classA"`
		ClassB        float64                                `yaml:"classB"`
		Weights       *application.SlottingWeights           `yaml:"weights"`
		TenantWeights map[string]application.SlottingWeights `yaml:"tenantWeights"`
		Zones         map[string]application.ZoneMapping     `yaml:"zones"`
		Warehouses    []application.WarehouseRef             `yaml:"warehouses"`
		Concurrency   int                                    `yaml:"concurrency"`
		Interval      time.Duration                          `yaml:"interval"`
		Period        time.Duration                          `yaml:"period"`
		LockTTL       time.Duration                          `yaml:"lockTtl"`
	} `yaml:"slotting"`
}

// LoadFromEnv reads ENGINE_CONFIG_FILE when set, otherwise returns defaults
func LoadFromEnv() (*Engine, error) {
	path := os.Getenv(EnvEngineConfigFile)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads and validates an engine file
func LoadFile(path string) (*Engine, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse overlays YAML onto the defaults
func Parse(raw []byte) (*Engine, error) {
	var file engineFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse engine config: %w", err)
	}

	cfg := Default()
	d := file.Dispatch
	if d.Weights != nil {
		cfg.Dispatch.Weights = *d.Weights
	}
	if d.SLAHorizon > 0 {
		cfg.Dispatch.SLAHorizon = d.SLAHorizon
	}
	if d.MaxClaimAttempts > 0 {
		cfg.Dispatch.MaxClaimAttempts = d.MaxClaimAttempts
	}

	s := file.Sessions
	if s.HeartbeatTimeout > 0 {
		cfg.Assignment.HeartbeatTimeout = s.HeartbeatTimeout
	}
	if s.SweepInterval > 0 {
		cfg.Assignment.SweepInterval = s.SweepInterval
	}
	for key, limit := range s.ZoneCaps {
		cfg.Assignment.ZoneCaps[zoneCapKey(key)] = limit
	}

	sl := file.Slotting
	if sl.ClassA > 0 {
		cfg.Slotting.ClassA = sl.ClassA
	}
	if sl.ClassB > 0 {
		cfg.Slotting.ClassB = sl.ClassB
	}
	if sl.Weights != nil {
		cfg.Slotting.Weights = *sl.Weights
	}
	for tenantID, w := range sl.TenantWeights {
		cfg.Slotting.TenantWeights[tenantID] = w
	}
	for warehouseID, m := range sl.Zones {
		cfg.Slotting.Zones[warehouseID] = m
	}
	cfg.Slotting.Warehouses = append(cfg.Slotting.Warehouses, sl.Warehouses...)
	if sl.Concurrency > 0 {
		cfg.Slotting.Concurrency = sl.Concurrency
	}
	if sl.Interval > 0 {
		cfg.Slotting.Interval = sl.Interval
	}
	if sl.Period > 0 {
		cfg.Slotting.Period = sl.Period
	}
	if sl.LockTTL > 0 {
		cfg.Slotting.LockTTL = sl.LockTTL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// zoneCapKey upper-cases the zone of "warehouse/zone" or a bare zone
func zoneCapKey(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[:i+1] + strings.ToUpper(key[i+1:])
	}
	return strings.ToUpper(key)
}

// Validate rejects tuning the engine cannot run with
func (e *Engine) Validate() error {
	w := e.Dispatch.Weights
	if w.SLA < 0 || w.Priority < 0 || w.Travel < 0 || w.Affinity < 0 {
		return fmt.Errorf("dispatch weights must not be negative")
	}
	for key, limit := range e.Assignment.ZoneCaps {
		if limit < 0 {
			return fmt.Errorf("zone cap %s must not be negative", key)
		}
	}
	if e.Slotting.ClassA <= 0 || e.Slotting.ClassB < 0 || e.Slotting.ClassA+e.Slotting.ClassB > 1 {
		return fmt.Errorf("velocity thresholds must satisfy 0 < classA and classA+classB <= 1")
	}
	if err := e.Slotting.Weights.Validate(); err != nil {
		return fmt.Errorf("slotting: %w", err)
	}
	for tenantID, tw := range e.Slotting.TenantWeights {
		if err := tw.Validate(); err != nil {
			return fmt.Errorf("slotting tenant %s: %w", tenantID, err)
		}
	}
	for i, ref := range e.Slotting.Warehouses {
		if ref.WarehouseID == "" {
			return fmt.Errorf("slotting warehouse %d: warehouseId is required", i)
		}
	}
	return nil
}
