package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
	"github.com/wms-platform/task-engine/pkg/tenant"
)

// CrossDockCoordinator moves received goods straight to outbound docks
type CrossDockCoordinator struct {
	crossDocks domain.CrossDockRepository
	tasks      domain.TaskRepository
	tx         domain.Transactor
	events     domain.EventPublisher
	canceller  TaskCanceller
	clock      Clock
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// NewCrossDockCoordinator creates a CrossDockCoordinator
func NewCrossDockCoordinator(
	crossDocks domain.CrossDockRepository,
	tasks domain.TaskRepository,
	tx domain.Transactor,
	events domain.EventPublisher,
	canceller TaskCanceller,
	clock Clock,
	logger *logging.Logger,
	m *metrics.Metrics,
) *CrossDockCoordinator {
	if clock == nil {
		clock = SystemClock
	}
	return &CrossDockCoordinator{
		crossDocks: crossDocks,
		tasks:      tasks,
		tx:         tx,
		events:     events,
		canceller:  canceller,
		clock:      clock,
		logger:     logger.WithComponent("cross-dock"),
		metrics:    m,
	}
}

// save writes the record and its events together
func (c *CrossDockCoordinator) save(ctx context.Context, cd *domain.CrossDock, tasks []*domain.WarehouseTask) error {
	return c.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		events := []domain.DomainEvent{}
		if len(tasks) > 0 {
			if err := c.tasks.SaveAll(txCtx, tasks); err != nil {
				return err
			}
			for _, t := range tasks {
				events = append(events, t.PullEvents()...)
			}
		}
		if err := c.crossDocks.Save(txCtx, cd); err != nil {
			return err
		}
		return c.events.Publish(txCtx, append(cd.PullEvents(), events...)...)
	})
}

// mutate reloads, applies fn and saves, retrying on version conflicts
func (c *CrossDockCoordinator) mutate(ctx context.Context, id string, fn func(cd *domain.CrossDock) ([]*domain.WarehouseTask, error)) (*domain.CrossDock, error) {
	for attempt := 0; attempt < maxWaveWriteAttempts; attempt++ {
		cd, err := c.crossDocks.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		tasks, err := fn(cd)
		if err != nil {
			return nil, err
		}
		err = c.save(ctx, cd, tasks)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return cd, nil
	}
	return nil, domain.ErrVersionConflict
}

// Create opens a PENDING cross-dock record
func (c *CrossDockCoordinator) Create(ctx context.Context, cmd CreateCrossDockCommand) (*CrossDockDTO, error) {
	tc := tenant.FromContextOptional(ctx)
	warehouseID := cmd.WarehouseID
	if warehouseID == "" {
		warehouseID = tc.WarehouseID
	}
	cd, err := domain.NewCrossDock(domain.NewCrossDockParams{
		TenantID:    tc.TenantID,
		FacilityID:  tc.FacilityID,
		WarehouseID: warehouseID,
		Type:        domain.CrossDockType(strings.ToUpper(cmd.Type)),
		InboundRef:  domain.InboundRef{Type: cmd.InboundType, ID: cmd.InboundID},
		Outbound:    cmd.Outbound,
		Items:       cmd.Items,
		StagingBin:  strings.ToUpper(cmd.StagingBin),
	}, c.clock())
	if err != nil {
		return nil, err
	}
	if err := c.save(ctx, cd, nil); err != nil {
		return nil, fmt.Errorf("failed to create cross-dock: %w", err)
	}
	c.logger.Info("Created cross-dock", "crossDockId", cd.ID, "inbound", cd.InboundRef.ID, "totalQuantity", cd.TotalQuantity)
	return ToCrossDockDTO(cd), nil
}

// Get returns one cross-dock record
func (c *CrossDockCoordinator) Get(ctx context.Context, id string) (*CrossDockDTO, error) {
	cd, err := c.crossDocks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToCrossDockDTO(cd), nil
}

// RecordInbound books a received quantity
func (c *CrossDockCoordinator) RecordInbound(ctx context.Context, cmd RecordInboundCommand) (*CrossDockDTO, error) {
	cd, err := c.mutate(ctx, cmd.CrossDockID, func(cd *domain.CrossDock) ([]*domain.WarehouseTask, error) {
		return nil, cd.RecordInbound(cmd.ProductID, cmd.Quantity, c.clock())
	})
	if err != nil {
		return nil, err
	}
	if cd.Status != domain.CrossDockAllocated {
		return ToCrossDockDTO(cd), nil
	}

	// a receipt on an allocated record feeds its shortfall straight away
	result, err := c.Match(ctx, cd.ID)
	if err != nil {
		return ToCrossDockDTO(cd), fmt.Errorf("receipt booked but re-match failed: %w", err)
	}
	return result.CrossDock, nil
}

// Match allocates received stock to outbound demand in departure order
// and creates one CROSS_DOCK task per allocation
func (c *CrossDockCoordinator) Match(ctx context.Context, id string) (*MatchResultDTO, error) {
	var created []domain.Allocation
	cd, err := c.mutate(ctx, id, func(cd *domain.CrossDock) ([]*domain.WarehouseTask, error) {
		created = nil
		plan, err := cd.PlanMatch()
		if err != nil {
			return nil, err
		}
		source, err := domain.NewTaskSource(domain.SourceCrossDock, cd.ID)
		if err != nil {
			return nil, err
		}
		now := c.clock()
		tasks := make([]*domain.WarehouseTask, 0, len(plan))
		for _, pa := range plan {
			departure := pa.Demand.ScheduledDeparture
			task, err := domain.NewTask(domain.NewTaskParams{
				TenantID:       cd.TenantID,
				FacilityID:     cd.FacilityID,
				WarehouseID:    cd.WarehouseID,
				TaskType:       domain.TaskTypeCrossDock,
				Priority:       domain.PriorityHigh,
				DueAt:          &departure,
				Source:         source,
				DemandRef:      &domain.DemandRef{OrderID: pa.Demand.OrderID},
				SourceBin:      cd.StagingBin,
				DestinationBin: strings.ToUpper(pa.Demand.DockBin),
				ProductID:      pa.Demand.ProductID,
				Quantity:       pa.Quantity,
			}, now)
			if err != nil {
				return nil, err
			}
			if err := cd.ApplyAllocation(pa, task.ID, now); err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
			created = append(created, cd.Allocations[len(cd.Allocations)-1])
		}
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}

	unfulfilled := 0
	for _, d := range cd.Outbound {
		unfulfilled += d.Remaining()
	}
	if len(created) > 0 {
		c.metrics.RecordTasksCreated(string(domain.TaskTypeCrossDock), string(domain.SourceCrossDock), len(created))
	}
	c.logger.Info("Matched cross-dock", "crossDockId", cd.ID, "allocations", len(created), "unfulfilled", unfulfilled)
	return &MatchResultDTO{
		CrossDock:    ToCrossDockDTO(cd),
		Allocations:  ToAllocationDTOs(created),
		TasksCreated: len(created),
		Unfulfilled:  unfulfilled,
	}, nil
}

// Depart closes an ALLOCATED record once all its tasks are terminal
func (c *CrossDockCoordinator) Depart(ctx context.Context, id string) (*CrossDockDTO, error) {
	source, err := domain.NewTaskSource(domain.SourceCrossDock, id)
	if err != nil {
		return nil, err
	}
	open, err := c.tasks.CountNonTerminalBySource(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to count cross-dock tasks: %w", err)
	}
	cd, err := c.mutate(ctx, id, func(cd *domain.CrossDock) ([]*domain.WarehouseTask, error) {
		if open > 0 {
			return nil, &domain.ValidationError{
				Field:   "status",
				Message: fmt.Sprintf("%d cross-dock tasks are still open", open),
				State:   cd,
			}
		}
		return nil, cd.Depart(c.clock())
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("Cross-dock departed", "crossDockId", cd.ID, "processedQuantity", cd.ProcessedQuantity)
	return ToCrossDockDTO(cd), nil
}

// Cancel halts the record and cancels its unstarted tasks
func (c *CrossDockCoordinator) Cancel(ctx context.Context, cmd CancelCrossDockCommand) (*CrossDockDTO, error) {
	cd, err := c.mutate(ctx, cmd.CrossDockID, func(cd *domain.CrossDock) ([]*domain.WarehouseTask, error) {
		return nil, cd.Cancel(cmd.Reason, c.clock())
	})
	if err != nil {
		return nil, err
	}
	if c.canceller != nil && len(cd.Allocations) > 0 {
		source, _ := domain.NewTaskSource(domain.SourceCrossDock, cd.ID)
		if _, err := c.canceller.CancelBySource(ctx, source, "cross-dock cancelled: "+cmd.Reason); err != nil {
			return ToCrossDockDTO(cd), fmt.Errorf("cross-dock cancelled but task cancellation failed: %w", err)
		}
	}
	c.logger.Info("Cancelled cross-dock", "crossDockId", cd.ID, "reason", cmd.Reason)
	return ToCrossDockDTO(cd), nil
}

// ReceiveForInbound books a receipt against the open cross-dock of an
// inbound shipment. It reports false when no cross-dock is waiting for it.
func (c *CrossDockCoordinator) ReceiveForInbound(ctx context.Context, inboundID, productID string, qty int) (bool, error) {
	cd, err := c.crossDocks.FindOpenByInbound(ctx, inboundID)
	if domain.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, ok := cd.Items[productID]; !ok {
		return false, nil
	}
	switch cd.Status {
	case domain.CrossDockPending, domain.CrossDockReceiving:
	case domain.CrossDockStaged, domain.CrossDockAllocated:
		if qty > cd.Shortfall(productID) {
			return false, nil
		}
	default:
		return false, nil
	}
	_, err = c.RecordInbound(ctx, RecordInboundCommand{CrossDockID: cd.ID, ProductID: productID, Quantity: qty})
	return err == nil, err
}
