package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
	"github.com/wms-platform/task-engine/pkg/tenant"
)

// Reassignment causes
const (
	CauseHeartbeatTimeout = "heartbeat_timeout"
	CauseSessionEnded     = "session_ended"
)

// AssignmentCoordinator gates claims behind worker sessions, the
// one-open-task rule and zone capacity
type AssignmentCoordinator struct {
	dispatcher *Dispatcher
	tasks      domain.TaskRepository
	locations  domain.WorkerLocationRepository
	sessions   domain.SessionCache
	workers    *WorkerLocks
	config     AssignmentConfig
	clock      Clock
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// NewAssignmentCoordinator creates an AssignmentCoordinator; sessions may be nil
func NewAssignmentCoordinator(
	dispatcher *Dispatcher,
	tasks domain.TaskRepository,
	locations domain.WorkerLocationRepository,
	sessions domain.SessionCache,
	config AssignmentConfig,
	clock Clock,
	logger *logging.Logger,
	m *metrics.Metrics,
) *AssignmentCoordinator {
	if clock == nil {
		clock = SystemClock
	}
	return &AssignmentCoordinator{
		dispatcher: dispatcher,
		tasks:      tasks,
		locations:  locations,
		sessions:   sessions,
		workers:    NewWorkerLocks(nil),
		config:     config,
		clock:      clock,
		logger:     logger.WithComponent("assignment"),
		metrics:    m,
	}
}

// SetWorkerLock orders one worker's claims across replicas
func (a *AssignmentCoordinator) SetWorkerLock(lock domain.WorkerLock) {
	a.workers = NewWorkerLocks(lock)
}

// StartSession signs a worker in, replacing any previous session
func (a *AssignmentCoordinator) StartSession(ctx context.Context, cmd StartSessionCommand) (*SessionDTO, error) {
	if strings.TrimSpace(cmd.WorkerID) == "" {
		return nil, domain.NewValidationError("workerId", "is required")
	}
	now := a.clock()

	loc, err := a.locations.FindByWorker(ctx, cmd.WorkerID)
	if err != nil && !domain.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load worker: %w", err)
	}
	if loc == nil {
		tc := tenant.FromContextOptional(ctx)
		loc = &domain.WorkerLocation{
			ID:          cmd.WorkerID,
			TenantID:    tc.TenantID,
			FacilityID:  tc.FacilityID,
			WarehouseID: tc.WarehouseID,
			WorkerID:    cmd.WorkerID,
			CreatedAt:   now,
		}
	}
	if cmd.WarehouseID != "" {
		loc.WarehouseID = cmd.WarehouseID
	}

	if loc.HasActiveSession() {
		previous := loc.SessionID
		if _, err := a.locations.TransitionSession(ctx, previous, domain.SessionActive, domain.SessionEnded, now); err != nil {
			return nil, fmt.Errorf("failed to end previous session: %w", err)
		}
		a.forgetSession(ctx, previous)
		a.logger.Info("Replaced worker session", "workerId", cmd.WorkerID, "previousSessionId", previous)
	}

	loc.SessionID = uuid.NewString()
	loc.DeviceID = cmd.DeviceID
	loc.SessionStatus = domain.SessionActive
	loc.SessionStartedAt = &now
	loc.LastHeartbeatAt = &now
	loc.ShiftStart = cmd.ShiftStart
	loc.ShiftEnd = cmd.ShiftEnd
	loc.UpdatedAt = now
	if err := a.locations.SaveSession(ctx, loc); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if a.sessions != nil {
		if err := a.sessions.Put(ctx, loc.SessionID, loc.WorkerID, a.config.HeartbeatTimeout); err != nil {
			a.logger.WithError(err).Warn("Failed to cache session", "sessionId", loc.SessionID)
		}
	}

	a.logger.Info("Started worker session", "workerId", loc.WorkerID, "sessionId", loc.SessionID, "deviceId", loc.DeviceID)
	return ToSessionDTO(loc, a.config), nil
}

// sessionOwner resolves an ACTIVE session to its location row
func (a *AssignmentCoordinator) sessionOwner(ctx context.Context, sessionID string) (*domain.WorkerLocation, error) {
	if a.sessions != nil {
		if workerID, err := a.sessions.Get(ctx, sessionID); err == nil && workerID != "" {
			loc, err := a.locations.FindByWorker(ctx, workerID)
			if err == nil && loc.SessionID == sessionID {
				return a.activeOnly(loc, sessionID)
			}
		}
	}
	loc, err := a.locations.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return a.activeOnly(loc, sessionID)
}

func (a *AssignmentCoordinator) activeOnly(loc *domain.WorkerLocation, sessionID string) (*domain.WorkerLocation, error) {
	if loc.SessionStatus != domain.SessionActive {
		return nil, domain.NewNotFound("session", sessionID)
	}
	return loc, nil
}

// Heartbeat keeps a session alive
func (a *AssignmentCoordinator) Heartbeat(ctx context.Context, sessionID string) (*SessionDTO, error) {
	loc, err := a.sessionOwner(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := a.clock()
	loc.LastHeartbeatAt = &now
	loc.UpdatedAt = now
	if err := a.locations.SaveSession(ctx, loc); err != nil {
		return nil, fmt.Errorf("failed to record heartbeat: %w", err)
	}
	if a.sessions != nil {
		if err := a.sessions.Touch(ctx, sessionID, a.config.HeartbeatTimeout); err != nil {
			if err := a.sessions.Put(ctx, sessionID, loc.WorkerID, a.config.HeartbeatTimeout); err != nil {
				a.logger.WithError(err).Warn("Failed to refresh cached session", "sessionId", sessionID)
			}
		}
	}
	return ToSessionDTO(loc, a.config), nil
}

// EndSession signs a worker out and releases their open task
func (a *AssignmentCoordinator) EndSession(ctx context.Context, sessionID string) error {
	loc, err := a.sessionOwner(ctx, sessionID)
	if err != nil {
		return err
	}
	won, err := a.locations.TransitionSession(ctx, sessionID, domain.SessionActive, domain.SessionEnded, a.clock())
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	a.forgetSession(ctx, sessionID)
	if !won {
		return nil
	}
	a.logger.Info("Ended worker session", "workerId", loc.WorkerID, "sessionId", sessionID)
	return a.releaseOpenTask(ctx, loc.WorkerID, CauseSessionEnded)
}

func (a *AssignmentCoordinator) forgetSession(ctx context.Context, sessionID string) {
	if a.sessions == nil {
		return
	}
	if err := a.sessions.Delete(ctx, sessionID); err != nil {
		a.logger.WithError(err).Warn("Failed to drop cached session", "sessionId", sessionID)
	}
}

// releaseOpenTask returns the worker's open task to the pool
func (a *AssignmentCoordinator) releaseOpenTask(ctx context.Context, workerID, cause string) error {
	task, err := a.tasks.FindOpenByWorker(ctx, workerID)
	if domain.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load open task: %w", err)
	}
	_, err = a.dispatcher.ReleaseClaim(ctx, task, cause)
	return err
}

// Claim hands out the next task to a signed-in worker without an open
// task. Zones at their active-worker cap are skipped; nil means nothing
// is claimable right now.
func (a *AssignmentCoordinator) Claim(ctx context.Context, cmd ClaimTaskCommand) (*TaskDTO, error) {
	loc, err := a.locations.FindByWorker(ctx, cmd.WorkerID)
	if domain.IsNotFound(err) {
		return nil, domain.ErrSessionInactive
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load worker: %w", err)
	}
	if !loc.HasActiveSession() {
		return nil, domain.ErrSessionInactive
	}
	if loc.IsOnBreak {
		return nil, nil
	}

	// the open-task check and the claim run under the worker's lock
	release, err := a.workers.Acquire(ctx, cmd.WorkerID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock worker: %w", err)
	}
	defer release()

	open, err := a.tasks.FindOpenByWorker(ctx, cmd.WorkerID)
	if err == nil {
		return nil, &domain.ConcurrentTaskError{WorkerID: cmd.WorkerID, ExistingTaskID: open.ID}
	}
	if !domain.IsNotFound(err) {
		return nil, fmt.Errorf("failed to check open task: %w", err)
	}

	task, err := a.dispatcher.ClaimNextAdmitting(ctx, cmd.WorkerID, cmd.ZoneHint, a.admission(loc))
	if err != nil || task == nil {
		return nil, err
	}
	return ToTaskDTO(task), nil
}

// admission admits a worker into a zone when it is uncapped, when the
// worker is already counted there, or while it is below its cap
func (a *AssignmentCoordinator) admission(loc *domain.WorkerLocation) ZoneAdmission {
	return func(ctx context.Context, warehouseID, zone string) bool {
		limit := a.config.CapFor(warehouseID, zone)
		if limit <= 0 || loc.CurrentZone == zone {
			return true
		}
		active, err := a.locations.CountActiveInZone(ctx, warehouseID, zone)
		if err != nil {
			a.logger.WithError(err).Warn("Failed to count zone workers", "zone", zone)
			return false
		}
		if active < int64(limit) {
			return true
		}
		capErr := &domain.CapacityError{Zone: zone, Active: int(active), Max: limit}
		a.metrics.RecordCapacityDeferral(warehouseID, zone)
		a.logger.Info("Deferred claim on zone capacity", "workerId", loc.WorkerID, "reason", capErr.Error())
		return false
	}
}

// ExpireStale expires sessions whose heartbeat is older than the timeout
// and releases their tasks. It returns how many sessions this call expired.
func (a *AssignmentCoordinator) ExpireStale(ctx context.Context) (int, error) {
	now := a.clock()
	stale, err := a.locations.FindStaleSessions(ctx, now.Add(-a.config.HeartbeatTimeout))
	if err != nil {
		return 0, fmt.Errorf("failed to find stale sessions: %w", err)
	}

	expired := 0
	var errs []error
	for _, loc := range stale {
		sctx := tenant.ToContext(ctx, &tenant.Context{TenantID: loc.TenantID, FacilityID: loc.FacilityID, WarehouseID: loc.WarehouseID})
		won, err := a.locations.TransitionSession(sctx, loc.SessionID, domain.SessionActive, domain.SessionExpired, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !won {
			continue
		}
		expired++
		a.forgetSession(sctx, loc.SessionID)
		a.logger.Warn("Worker session expired", "workerId", loc.WorkerID, "sessionId", loc.SessionID,
			"lastHeartbeatAt", loc.LastHeartbeatAt)
		if err := a.releaseOpenTask(sctx, loc.WorkerID, CauseHeartbeatTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	if count, err := a.locations.CountActiveSessions(ctx); err == nil {
		a.metrics.SetActiveSessions(int(count))
	}
	return expired, errors.Join(errs...)
}

// HeartbeatTimeout is the configured session lapse
func (a *AssignmentCoordinator) HeartbeatTimeout() time.Duration {
	return a.config.HeartbeatTimeout
}
