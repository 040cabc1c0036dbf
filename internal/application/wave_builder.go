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

const maxWaveWriteAttempts = 3

// TaskCanceller cancels the open tasks of a source
type TaskCanceller interface {
	CancelBySource(ctx context.Context, source domain.TaskSource, reason string) (int, error)
}

// WaveBuilderDeps are the collaborators of a WaveBuilder
type WaveBuilderDeps struct {
	Waves      domain.WaveRepository
	Picklists  domain.WavePicklistRepository
	Tasks      domain.TaskRepository
	Transactor domain.Transactor
	Events     domain.EventPublisher
	Upstream   domain.PicklistService
	Canceller  TaskCanceller
	Clock      Clock
}

// WaveBuilder groups picklists into waves and releases them as tasks
type WaveBuilder struct {
	waves     domain.WaveRepository
	picklists domain.WavePicklistRepository
	tasks     domain.TaskRepository
	tx        domain.Transactor
	events    domain.EventPublisher
	upstream  domain.PicklistService
	canceller TaskCanceller
	clock     Clock
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// NewWaveBuilder creates a WaveBuilder
func NewWaveBuilder(deps WaveBuilderDeps, logger *logging.Logger, m *metrics.Metrics) *WaveBuilder {
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	return &WaveBuilder{
		waves:     deps.Waves,
		picklists: deps.Picklists,
		tasks:     deps.Tasks,
		tx:        deps.Transactor,
		events:    deps.Events,
		upstream:  deps.Upstream,
		canceller: deps.Canceller,
		clock:     deps.Clock,
		logger:    logger.WithComponent("wave-builder"),
		metrics:   m,
	}
}

// CreateWave stores a DRAFT wave definition
func (b *WaveBuilder) CreateWave(ctx context.Context, cmd CreateWaveCommand) (*WaveDTO, error) {
	tc := tenant.FromContextOptional(ctx)
	warehouseID := cmd.WarehouseID
	if warehouseID == "" {
		warehouseID = tc.WarehouseID
	}
	wave, err := domain.NewPickWave(domain.NewPickWaveParams{
		TenantID:    tc.TenantID,
		FacilityID:  tc.FacilityID,
		WarehouseID: warehouseID,
		Type:        domain.WaveType(cmd.Type),
		Filters:     cmd.Filters,
		Options:     cmd.Options,
	}, b.clock())
	if err != nil {
		return nil, err
	}

	err = b.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := b.waves.Save(txCtx, wave); err != nil {
			return err
		}
		return b.events.Publish(txCtx, wave.PullEvents()...)
	})
	if err != nil {
		b.logger.WithError(err).Error("Failed to create wave", "waveId", wave.ID)
		return nil, fmt.Errorf("failed to create wave: %w", err)
	}

	b.logger.Info("Created wave", "waveId", wave.ID, "waveNumber", wave.WaveNumber, "waveType", wave.Type)
	return ToWaveDTO(wave), nil
}

// GetWave returns one wave
func (b *WaveBuilder) GetWave(ctx context.Context, waveID string) (*WaveDTO, error) {
	wave, err := b.waves.FindByID(ctx, waveID)
	if err != nil {
		return nil, err
	}
	return ToWaveDTO(wave), nil
}

// ListWaves lists the waves of a warehouse, optionally by status
func (b *WaveBuilder) ListWaves(ctx context.Context, warehouseID, status string) ([]WaveDTO, error) {
	waves, err := b.waves.FindByStatus(ctx, warehouseID, domain.WaveStatus(strings.ToUpper(status)))
	if err != nil {
		return nil, fmt.Errorf("failed to list waves: %w", err)
	}
	return ToWaveDTOs(waves), nil
}

// eligible fetches upstream picklists matching the wave filters
func (b *WaveBuilder) eligible(ctx context.Context, wave *domain.PickWave) ([]domain.Picklist, error) {
	all, err := b.upstream.FetchEligible(ctx, wave.WarehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch eligible picklists: %w", err)
	}
	matched := make([]domain.Picklist, 0, len(all))
	for _, p := range all {
		if wave.Filters.Matches(p) {
			matched = append(matched, p)
		}
	}
	return sortPicklistsForWave(matched), nil
}

// withoutAttached drops picklists already held by an open wave
func (b *WaveBuilder) withoutAttached(ctx context.Context, picklists []domain.Picklist) ([]domain.Picklist, error) {
	if len(picklists) == 0 {
		return picklists, nil
	}
	ids := make([]string, 0, len(picklists))
	for _, p := range picklists {
		ids = append(ids, p.ID)
	}
	attached, err := b.picklists.OpenPicklistIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	free := make([]domain.Picklist, 0, len(picklists))
	for _, p := range picklists {
		if !attached[p.ID] {
			free = append(free, p)
		}
	}
	return free, nil
}

// PreviewWave reports what a release would pick up now, without writing
func (b *WaveBuilder) PreviewWave(ctx context.Context, waveID string) (*WavePreviewDTO, error) {
	wave, err := b.waves.FindByID(ctx, waveID)
	if err != nil {
		return nil, err
	}
	candidates, err := b.eligible(ctx, wave)
	if err != nil {
		return nil, err
	}
	free, err := b.withoutAttached(ctx, candidates)
	if err != nil {
		return nil, err
	}

	preview := &WavePreviewDTO{WaveID: wave.ID, PicklistIDs: []string{}}
	orders := map[string]bool{}
	for _, p := range free {
		preview.PicklistIDs = append(preview.PicklistIDs, p.ID)
		orders[p.OrderID] = true
		for _, item := range p.Items {
			if item.Quantity > 0 {
				preview.Lines++
				preview.Items += item.Quantity
			}
		}
	}
	preview.Picklists = len(free)
	preview.Orders = len(orders)
	return preview, nil
}

// ReleaseWave attaches every eligible free picklist to the wave and
// creates its PICK tasks in one transaction. A picklist lost to a
// concurrent release is dropped and the release retried.
func (b *WaveBuilder) ReleaseWave(ctx context.Context, waveID string) (*ReleaseResultDTO, error) {
	var (
		wave *domain.PickWave
		plan *wavePlan
	)
	for attempt := 1; ; attempt++ {
		var err error
		wave, err = b.waves.FindByID(ctx, waveID)
		if err != nil {
			return nil, err
		}
		if wave.Status != domain.WaveStatusDraft {
			return nil, &domain.AlreadyReleasedError{WaveID: wave.ID, Status: wave.Status, State: wave}
		}
		candidates, err := b.eligible(ctx, wave)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, &domain.EmptyWaveError{WaveID: wave.ID}
		}

		plan, err = b.releaseOnce(ctx, wave, candidates)
		if err == nil {
			break
		}
		retryable := errors.Is(err, domain.ErrDuplicate) || errors.Is(err, domain.ErrVersionConflict)
		if !retryable || attempt >= maxWaveWriteAttempts {
			return nil, err
		}
		b.logger.Warn("Retrying wave release after concurrent write", "waveId", waveID, "attempt", attempt, "error", err.Error())
	}

	b.metrics.RecordWaveReleased(string(wave.Type))
	b.metrics.RecordTasksCreated(string(domain.TaskTypePick), string(domain.SourceWave), len(plan.Tasks))
	b.logger.Info("Released wave",
		"waveId", wave.ID,
		"picklists", wave.Counters.TotalPicklists,
		"orders", wave.Counters.TotalOrders,
		"tasks", wave.Counters.TotalTasks,
		"items", wave.Counters.TotalItems,
	)

	b.notifyAssigned(ctx, wave, plan.Picklists)
	return &ReleaseResultDTO{Wave: ToWaveDTO(wave), TasksCreated: len(plan.Tasks)}, nil
}

func (b *WaveBuilder) releaseOnce(ctx context.Context, wave *domain.PickWave, candidates []domain.Picklist) (*wavePlan, error) {
	var plan *wavePlan
	err := b.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		free, err := b.withoutAttached(txCtx, candidates)
		if err != nil {
			return err
		}
		now := b.clock()
		plan, err = planWaveTasks(wave, free, now)
		if err != nil {
			return err
		}
		if len(plan.Tasks) == 0 {
			return &domain.EmptyWaveError{WaveID: wave.ID}
		}

		for _, wp := range plan.Picklists {
			if err := b.picklists.Attach(txCtx, wp); err != nil {
				return err
			}
		}
		if err := b.tasks.SaveAll(txCtx, plan.Tasks); err != nil {
			return err
		}
		if err := wave.Release(plan.Counters, now); err != nil {
			return err
		}
		if err := b.waves.Save(txCtx, wave); err != nil {
			return err
		}

		events := wave.PullEvents()
		for _, t := range plan.Tasks {
			events = append(events, t.PullEvents()...)
		}
		return b.events.Publish(txCtx, events...)
	})
	return plan, err
}

// notifyAssigned signals each order's workflow; failures are logged only
func (b *WaveBuilder) notifyAssigned(ctx context.Context, wave *domain.PickWave, picklists []*domain.WavePicklist) {
	if b.upstream == nil {
		return
	}
	for _, wp := range picklists {
		if err := b.upstream.NotifyWaveAssigned(ctx, wp.OrderID, wp.PicklistID, wave); err != nil {
			b.logger.WithError(err).Warn("Failed to notify wave assignment",
				"waveId", wave.ID, "orderId", wp.OrderID, "picklistId", wp.PicklistID)
		}
	}
}

// CancelWave closes a wave and cancels its PENDING and ASSIGNED tasks
func (b *WaveBuilder) CancelWave(ctx context.Context, cmd CancelWaveCommand) (*WaveDTO, error) {
	wave, err := b.waves.FindByID(ctx, cmd.WaveID)
	if err != nil {
		return nil, err
	}
	released := wave.Status != domain.WaveStatusDraft
	if err := wave.Cancel(cmd.Reason, b.clock()); err != nil {
		return nil, err
	}

	err = b.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := b.waves.Save(txCtx, wave); err != nil {
			return err
		}
		if err := b.picklists.CloseByWave(txCtx, wave.ID); err != nil {
			return err
		}
		return b.events.Publish(txCtx, wave.PullEvents()...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel wave: %w", err)
	}
	b.logger.Info("Cancelled wave", "waveId", wave.ID, "reason", cmd.Reason)

	if released && b.canceller != nil {
		source, _ := domain.NewTaskSource(domain.SourceWave, wave.ID)
		if _, err := b.canceller.CancelBySource(ctx, source, "wave cancelled: "+cmd.Reason); err != nil {
			b.logger.WithError(err).Error("Failed to cancel wave tasks", "waveId", wave.ID)
			return ToWaveDTO(wave), fmt.Errorf("wave cancelled but task cancellation failed: %w", err)
		}
	}
	return ToWaveDTO(wave), nil
}

// OnTaskClaimed moves a RELEASED wave to IN_PROGRESS on its first claim
func (b *WaveBuilder) OnTaskClaimed(ctx context.Context, task *domain.WarehouseTask) {
	if task.Source.Type != domain.SourceWave {
		return
	}
	for attempt := 0; attempt < maxWaveWriteAttempts; attempt++ {
		wave, err := b.waves.FindByID(ctx, task.Source.ID)
		if err != nil {
			b.logger.WithError(err).Warn("Failed to load wave for claim", "waveId", task.Source.ID)
			return
		}
		if !wave.MarkStarted(b.clock()) {
			return
		}
		err = b.waves.Save(ctx, wave)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			b.logger.WithError(err).Warn("Failed to start wave", "waveId", wave.ID)
		}
		return
	}
}

// OnTaskTerminal rolls a finished task into its wave's progress and
// completes the wave once no child task is left open
func (b *WaveBuilder) OnTaskTerminal(ctx context.Context, task *domain.WarehouseTask) {
	if task.Source.Type != domain.SourceWave {
		return
	}
	waveID := task.Source.ID

	picked := 0
	if task.Status == domain.TaskStatusCompleted || task.Status == domain.TaskStatusException {
		picked = task.QuantityCompleted
	}
	completedPicklists := 0
	if task.DemandRef != nil && task.DemandRef.PicklistID != "" {
		done, err := b.picklistDone(ctx, task.Source, task.DemandRef.PicklistID)
		if err != nil {
			b.logger.WithError(err).Warn("Failed to check picklist progress", "waveId", waveID)
		} else if done {
			first, err := b.picklists.MarkCompleted(ctx, waveID, task.DemandRef.PicklistID)
			if err != nil {
				b.logger.WithError(err).Warn("Failed to mark picklist completed", "waveId", waveID)
			} else if first {
				completedPicklists = 1
			}
		}
	}
	if picked > 0 || completedPicklists > 0 {
		if err := b.waves.AddProgress(ctx, waveID, picked, completedPicklists); err != nil {
			b.logger.WithError(err).Warn("Failed to record wave progress", "waveId", waveID)
		}
	}

	if err := b.tryComplete(ctx, task.Source); err != nil {
		b.logger.WithError(err).Warn("Failed to complete wave", "waveId", waveID)
	}
}

func (b *WaveBuilder) picklistDone(ctx context.Context, source domain.TaskSource, picklistID string) (bool, error) {
	tasks, err := b.tasks.FindBySource(ctx, source)
	if err != nil {
		return false, err
	}
	for _, t := range tasks {
		if t.DemandRef != nil && t.DemandRef.PicklistID == picklistID && !t.Status.IsTerminal() {
			return false, nil
		}
	}
	return true, nil
}

func (b *WaveBuilder) tryComplete(ctx context.Context, source domain.TaskSource) error {
	open, err := b.tasks.CountNonTerminalBySource(ctx, source)
	if err != nil || open > 0 {
		return err
	}
	for attempt := 0; attempt < maxWaveWriteAttempts; attempt++ {
		wave, err := b.waves.FindByID(ctx, source.ID)
		if err != nil {
			return err
		}
		if !wave.Complete(b.clock()) {
			return nil
		}
		err = b.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := b.waves.Save(txCtx, wave); err != nil {
				return err
			}
			if err := b.picklists.CloseByWave(txCtx, wave.ID); err != nil {
				return err
			}
			return b.events.Publish(txCtx, wave.PullEvents()...)
		})
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err == nil {
			b.logger.Info("Completed wave", "waveId", wave.ID,
				"pickedQuantity", wave.Counters.PickedQuantity, "completedPicklists", wave.Counters.CompletedPicklists)
		}
		return err
	}
	return domain.ErrVersionConflict
}
