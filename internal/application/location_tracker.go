package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/tenant"
)

// LocationTracker keeps the last known position of every worker
type LocationTracker struct {
	locations domain.WorkerLocationRepository
	clock     Clock
	logger    *logging.Logger
}

// NewLocationTracker creates a LocationTracker
func NewLocationTracker(locations domain.WorkerLocationRepository, clock Clock, logger *logging.Logger) *LocationTracker {
	if clock == nil {
		clock = SystemClock
	}
	return &LocationTracker{locations: locations, clock: clock, logger: logger}
}

// load returns the worker's row or a fresh one scoped to the request tenant
func (t *LocationTracker) load(ctx context.Context, workerID string) (*domain.WorkerLocation, error) {
	loc, err := t.locations.FindByWorker(ctx, workerID)
	if err == nil {
		return loc, nil
	}
	if !domain.IsNotFound(err) {
		return nil, err
	}
	tc := tenant.FromContextOptional(ctx)
	now := t.clock()
	return &domain.WorkerLocation{
		ID:          workerID,
		TenantID:    tc.TenantID,
		FacilityID:  tc.FacilityID,
		WarehouseID: tc.WarehouseID,
		WorkerID:    workerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Update records a worker scan. The zone is derived from the bin when
// omitted; a bin outside the given zone is rejected.
func (t *LocationTracker) Update(ctx context.Context, cmd UpdateLocationCommand) (*WorkerLocationDTO, error) {
	if strings.TrimSpace(cmd.WorkerID) == "" {
		return nil, domain.NewValidationError("workerId", "is required")
	}
	zone := strings.ToUpper(strings.TrimSpace(cmd.Zone))
	bin := strings.ToUpper(strings.TrimSpace(cmd.Bin))
	if bin != "" {
		binZone := domain.ZoneOf(bin)
		if binZone == "" {
			return nil, domain.NewValidationError("bin", "is not a recognisable bin code")
		}
		if zone != "" && zone != binZone {
			return nil, domain.NewValidationError("zone", fmt.Sprintf("bin %s is not in zone %s", bin, zone))
		}
		zone = binZone
	}

	loc, err := t.load(ctx, cmd.WorkerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load worker location: %w", err)
	}
	if zone != "" {
		loc.CurrentZone = zone
	}
	if bin != "" {
		loc.CurrentBin = bin
	}
	if cmd.IsOnBreak != nil {
		loc.IsOnBreak = *cmd.IsOnBreak
	}
	if cmd.PinnedZone != nil {
		loc.PinnedZone = strings.ToUpper(strings.TrimSpace(*cmd.PinnedZone))
	}
	loc.UpdatedAt = t.clock()

	if err := t.locations.SavePosition(ctx, loc); err != nil {
		return nil, fmt.Errorf("failed to save worker location: %w", err)
	}
	return ToWorkerLocationDTO(loc), nil
}

// SetBreak flags a worker as on or off break; dispatch skips workers on break
func (t *LocationTracker) SetBreak(ctx context.Context, workerID string, onBreak bool) (*WorkerLocationDTO, error) {
	return t.Update(ctx, UpdateLocationCommand{WorkerID: workerID, IsOnBreak: &onBreak})
}

// SetPinnedZone restricts a worker to one zone; an empty zone unpins
func (t *LocationTracker) SetPinnedZone(ctx context.Context, workerID, zone string) (*WorkerLocationDTO, error) {
	return t.Update(ctx, UpdateLocationCommand{WorkerID: workerID, PinnedZone: &zone})
}

// Get returns the last known position of a worker
func (t *LocationTracker) Get(ctx context.Context, workerID string) (*WorkerLocationDTO, error) {
	loc, err := t.locations.FindByWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	return ToWorkerLocationDTO(loc), nil
}

// ListByZone lists the workers last seen in a zone
func (t *LocationTracker) ListByZone(ctx context.Context, warehouseID, zone string) ([]WorkerLocationDTO, error) {
	locs, err := t.locations.ListByZone(ctx, warehouseID, strings.ToUpper(zone))
	if err != nil {
		return nil, err
	}
	dtos := make([]WorkerLocationDTO, 0, len(locs))
	for _, loc := range locs {
		dtos = append(dtos, *ToWorkerLocationDTO(loc))
	}
	return dtos, nil
}

// recordClaim points the worker at a freshly claimed task
func (t *LocationTracker) recordClaim(ctx context.Context, workerID string, task *domain.WarehouseTask) error {
	loc, err := t.load(ctx, workerID)
	if err != nil {
		return err
	}
	if loc.WarehouseID == "" {
		loc.WarehouseID = task.WarehouseID
	}
	loc.CurrentTaskID = task.ID
	loc.UpdatedAt = t.clock()
	return t.locations.SavePosition(ctx, loc)
}

// recordCompletion moves the worker to the bin where the task ended
func (t *LocationTracker) recordCompletion(ctx context.Context, workerID string, task *domain.WarehouseTask) error {
	loc, err := t.load(ctx, workerID)
	if err != nil {
		return err
	}
	bin := task.FinalBin()
	if bin != "" {
		loc.CurrentBin = bin
		loc.CurrentZone = domain.ZoneOf(bin)
		loc.LastTaskBin = bin
	}
	loc.LastTaskType = task.TaskType
	loc.CurrentTaskID = task.ID
	loc.UpdatedAt = t.clock()
	return t.locations.SavePosition(ctx, loc)
}
