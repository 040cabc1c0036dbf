package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/internal/application"
)

const sampleEngine = `
dispatch:
  weights: {sla: 12, priority: 5, travel: 0.25, affinity: 3}
  slaHorizon: 90m
sessions:
  heartbeatTimeout: 2m
  zoneCaps:
    a: 6
    WH-1/b: 2
slotting:
  classA: 0.7
  classB: 0.2
  tenantWeights:
    acme: {velocity: 0.5, affinity: 0.2, ergonomic: 0.2, seasonality: 0.1}
  zones:
    WH-1: {forward: a, reserve: c}
  warehouses:
    - {tenantId: acme, facilityId: F1, warehouseId: WH-1}
  interval: 3h
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleEngine))
	require.NoError(t, err)

	assert.Equal(t, 12.0, cfg.Dispatch.Weights.SLA)
	assert.Equal(t, 0.25, cfg.Dispatch.Weights.Travel)
	assert.Equal(t, 90*time.Minute, cfg.Dispatch.SLAHorizon)
	assert.Equal(t, application.DefaultDispatchConfig().MaxClaimAttempts, cfg.Dispatch.MaxClaimAttempts)

	assert.Equal(t, 2*time.Minute, cfg.Assignment.HeartbeatTimeout)
	assert.Equal(t, application.DefaultAssignmentConfig().SweepInterval, cfg.Assignment.SweepInterval)
	assert.Equal(t, 6, cfg.Assignment.CapFor("WH-9", "A"))
	assert.Equal(t, 2, cfg.Assignment.CapFor("WH-1", "B"))
	assert.Equal(t, 0, cfg.Assignment.CapFor("WH-1", "C"))

	assert.Equal(t, 0.7, cfg.Slotting.ClassA)
	assert.Equal(t, 0.5, cfg.Slotting.WeightsFor("acme").Velocity)
	assert.Equal(t, application.DefaultSlottingWeights(), cfg.Slotting.WeightsFor("other"))
	assert.Equal(t, application.ZoneMapping{Forward: "A", Reserve: "C"}, cfg.Slotting.ZonesFor("WH-1"))
	require.Len(t, cfg.Slotting.Warehouses, 1)
	assert.Equal(t, "acme", cfg.Slotting.Warehouses[0].TenantID)
	assert.Equal(t, 3*time.Hour, cfg.Slotting.Interval)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"weights not summing to one", "slotting:\n  weights: {velocity: 0.5, affinity: 0.5, ergonomic: 0.5, seasonality: 0}\n"},
		{"bad tenant weights", "slotting:\n  tenantWeights:\n    acme: {velocity: 1.2, affinity: -0.2}\n"},
		{"thresholds over one", "slotting:\n  classA: 0.9\n  classB: 0.2\n"},
		{"negative dispatch weight", "dispatch:\n  weights: {sla: -1, priority: 5}\n"},
		{"negative zone cap", "sessions:\n  zoneCaps: {A: -1}\n"},
		{"warehouse without id", "slotting:\n  warehouses:\n    - {tenantId: acme}\n"},
		{"malformed yaml", "dispatch: [\n"},
		{"bad duration", "dispatch:\n  slaHorizon: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		t.Setenv(EnvEngineConfigFile, "")
		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("reads the named file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "engine.yaml")
		require.NoError(t, os.WriteFile(path, []byte(sampleEngine), 0o600))
		t.Setenv(EnvEngineConfigFile, path)

		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		assert.Equal(t, 90*time.Minute, cfg.Dispatch.SLAHorizon)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		t.Setenv(EnvEngineConfigFile, filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := LoadFromEnv()
		assert.Error(t, err)
	})
}
