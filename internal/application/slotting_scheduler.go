package application

import (
	"context"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/logging"
)

const slottingJobName = "slotting-recompute"

// SlottingScheduler recomputes every configured warehouse on an interval.
// A job lock keeps replicas from running the same pass.
type SlottingScheduler struct {
	*loop
	optimizer *SlottingOptimizer
	lock      domain.JobLock
	config    SlottingConfig
	clock     Clock
}

// NewSlottingScheduler creates a scheduler; lock may be nil for a single replica
func NewSlottingScheduler(optimizer *SlottingOptimizer, lock domain.JobLock, config SlottingConfig, clock Clock, logger *logging.Logger) *SlottingScheduler {
	if clock == nil {
		clock = SystemClock
	}
	s := &SlottingScheduler{optimizer: optimizer, lock: lock, config: config, clock: clock}
	s.loop = newLoop("slotting-scheduler", config.Interval, s.RunOnce, logger.WithComponent("slotting-scheduler"))
	return s
}

// RunOnce recomputes the trailing period if this replica wins the lock
func (s *SlottingScheduler) RunOnce(ctx context.Context) error {
	if s.lock != nil {
		release, acquired, err := s.lock.TryAcquire(ctx, slottingJobName, s.config.LockTTL)
		if err != nil {
			return err
		}
		if !acquired {
			s.logger.Debug("Slotting pass held by another replica")
			return nil
		}
		defer release()
	}

	to := s.clock().Truncate(time.Hour)
	period := domain.Period{From: to.Add(-s.config.Period), To: to}
	results, err := s.optimizer.RecomputeAll(ctx, period)
	s.logger.Info("Slotting pass finished", "warehouses", len(results), "periodFrom", period.From, "periodTo", period.To)
	return err
}
