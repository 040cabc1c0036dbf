package application

import (
	"context"

	"github.com/wms-platform/task-engine/pkg/logging"
)

// HeartbeatMonitor periodically expires lapsed sessions
type HeartbeatMonitor struct {
	*loop
	coordinator *AssignmentCoordinator
}

// NewHeartbeatMonitor creates a monitor sweeping every config.SweepInterval
func NewHeartbeatMonitor(coordinator *AssignmentCoordinator, config AssignmentConfig, logger *logging.Logger) *HeartbeatMonitor {
	m := &HeartbeatMonitor{coordinator: coordinator}
	m.loop = newLoop("heartbeat-monitor", config.SweepInterval, m.Sweep, logger.WithComponent("heartbeat-monitor"))
	return m
}

// Sweep runs one expiry pass
func (m *HeartbeatMonitor) Sweep(ctx context.Context) error {
	expired, err := m.coordinator.ExpireStale(ctx)
	if expired > 0 {
		m.logger.Info("Expired stale sessions", "expired", expired)
	}
	return err
}
