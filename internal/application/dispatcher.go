package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
	"github.com/wms-platform/task-engine/pkg/tenant"
)

// Claim outcomes reported to metrics
const (
	claimOutcomeClaimed  = "claimed"
	claimOutcomeEmpty    = "empty"
	claimOutcomeDeferred = "deferred"
)

// TaskObserver reacts to task lifecycle changes after they commit
type TaskObserver interface {
	OnTaskClaimed(ctx context.Context, task *domain.WarehouseTask)
	OnTaskTerminal(ctx context.Context, task *domain.WarehouseTask)
}

// PutawayAdvisor suggests where a received product should be stored
type PutawayAdvisor interface {
	SuggestPutaway(ctx context.Context, warehouseID, productID string) (string, error)
}

// ZoneAdmission decides whether a worker may take work in a zone
type ZoneAdmission func(ctx context.Context, warehouseID, zone string) bool

// DispatcherDeps are the collaborators of a Dispatcher
type DispatcherDeps struct {
	Tasks      domain.TaskRepository
	Locations  domain.WorkerLocationRepository
	Transactor domain.Transactor
	Events     domain.EventPublisher
	Inventory  domain.InventoryService
	Locks      *ZoneLocks
	Tracker    *LocationTracker
	Clock      Clock
}

// Dispatcher owns the task lifecycle and hands out work
type Dispatcher struct {
	tasks     domain.TaskRepository
	locations domain.WorkerLocationRepository
	tx        domain.Transactor
	events    domain.EventPublisher
	inventory domain.InventoryService
	locks     *ZoneLocks
	tracker   *LocationTracker
	advisor   PutawayAdvisor
	observers []TaskObserver
	config    DispatchConfig
	clock     Clock
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(deps DispatcherDeps, config DispatchConfig, logger *logging.Logger, m *metrics.Metrics) *Dispatcher {
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	if deps.Locks == nil {
		deps.Locks = NewZoneLocks(nil)
	}
	if deps.Tracker == nil {
		deps.Tracker = NewLocationTracker(deps.Locations, deps.Clock, logger)
	}
	if config.MaxClaimAttempts <= 0 {
		config.MaxClaimAttempts = DefaultDispatchConfig().MaxClaimAttempts
	}
	return &Dispatcher{
		tasks:     deps.Tasks,
		locations: deps.Locations,
		tx:        deps.Transactor,
		events:    deps.Events,
		inventory: deps.Inventory,
		locks:     deps.Locks,
		tracker:   deps.Tracker,
		config:    config,
		clock:     deps.Clock,
		logger:    logger.WithComponent("dispatcher"),
		metrics:   m,
	}
}

// AddObserver registers a lifecycle observer
func (d *Dispatcher) AddObserver(o TaskObserver) {
	d.observers = append(d.observers, o)
}

// SetPutawayAdvisor wires the slotting hint used for PUTAWAY tasks
func (d *Dispatcher) SetPutawayAdvisor(a PutawayAdvisor) {
	d.advisor = a
}

// commit writes and publishes in one transaction
func (d *Dispatcher) commit(ctx context.Context, write func(ctx context.Context) error, events []domain.DomainEvent) error {
	return d.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := write(txCtx); err != nil {
			return err
		}
		return d.events.Publish(txCtx, events...)
	})
}

// ClaimNext hands the best-ranked visible task to a worker, or nil when
// nothing is claimable
func (d *Dispatcher) ClaimNext(ctx context.Context, cmd ClaimTaskCommand) (*TaskDTO, error) {
	task, err := d.ClaimNextAdmitting(ctx, cmd.WorkerID, cmd.ZoneHint, nil)
	if err != nil || task == nil {
		return nil, err
	}
	return ToTaskDTO(task), nil
}

// ClaimNextAdmitting is ClaimNext with a per-zone admission check
func (d *Dispatcher) ClaimNextAdmitting(ctx context.Context, workerID, zoneHint string, admit ZoneAdmission) (*domain.WarehouseTask, error) {
	start := time.Now()
	if strings.TrimSpace(workerID) == "" {
		return nil, domain.NewValidationError("workerId", "is required")
	}

	loc, err := d.locations.FindByWorker(ctx, workerID)
	if err != nil && !domain.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load worker location: %w", err)
	}
	warehouseID := tenant.GetWarehouseID(ctx)
	if warehouseID == "" && loc != nil {
		warehouseID = loc.WarehouseID
	}
	if warehouseID == "" {
		warehouseID = tenant.DefaultWarehouseID
	}
	zone := strings.ToUpper(strings.TrimSpace(zoneHint))
	if zone == "" && loc != nil {
		zone = loc.PinnedZone
	}
	visible := func(t *domain.WarehouseTask) bool {
		return zone == "" || t.Zone == zone
	}

	if task, ok, err := d.claimHint(ctx, workerID, warehouseID, loc, visible, admit); err != nil {
		return nil, err
	} else if ok {
		d.afterClaim(ctx, workerID, task, 0, start)
		return task, nil
	}

	pending, err := d.tasks.FindPending(ctx, warehouseID, zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending tasks: %w", err)
	}
	worker := loc.RankingContext()
	worker.WorkerID = workerID
	queues := domain.NewZoneQueues(domain.Ranker{
		Weights: d.config.Weights,
		Horizon: d.config.SLAHorizon,
		Now:     d.clock(),
		Worker:  worker,
	}, pending)

	conflicts := 0
	deferred := false
	for conflicts < d.config.MaxClaimAttempts {
		head, ok := queues.Pop()
		if !ok {
			break
		}
		candidate := head.Task
		if admit != nil && !admit(ctx, warehouseID, candidate.Zone) {
			queues.DropZone(candidate.Zone)
			deferred = true
			continue
		}
		task, err := d.tryClaim(ctx, warehouseID, candidate.Zone, candidate.ID, workerID)
		if errors.Is(err, domain.ErrClaimConflict) {
			conflicts++
			d.metrics.RecordClaimConflict(warehouseID, candidate.Zone)
			continue
		}
		if err != nil {
			return nil, err
		}
		d.afterClaim(ctx, workerID, task, conflicts, start)
		return task, nil
	}

	outcome := claimOutcomeEmpty
	if deferred {
		outcome = claimOutcomeDeferred
	}
	d.metrics.RecordClaim(warehouseID, outcome, time.Since(start))
	d.logger.ClaimOutcome(ctx, workerID, zone, "", conflicts, time.Since(start))
	return nil, nil
}

// claimHint claims the suggestion left on the worker's last task when it
// is still pending, visible and not skipped by this worker
func (d *Dispatcher) claimHint(
	ctx context.Context,
	workerID, warehouseID string,
	loc *domain.WorkerLocation,
	visible func(*domain.WarehouseTask) bool,
	admit ZoneAdmission,
) (*domain.WarehouseTask, bool, error) {
	if loc == nil || loc.CurrentTaskID == "" {
		return nil, false, nil
	}
	last, err := d.tasks.FindByID(ctx, loc.CurrentTaskID)
	if domain.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !last.Status.IsTerminal() || last.SuggestedNextTaskID == "" {
		return nil, false, nil
	}

	candidate, err := d.tasks.FindByID(ctx, last.SuggestedNextTaskID)
	if domain.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if candidate.Status != domain.TaskStatusPending ||
		candidate.WarehouseID != warehouseID ||
		!visible(candidate) ||
		candidate.LastSkippedBy == workerID {
		return nil, false, nil
	}
	if admit != nil && !admit(ctx, warehouseID, candidate.Zone) {
		return nil, false, nil
	}

	task, err := d.tryClaim(ctx, warehouseID, candidate.Zone, candidate.ID, workerID)
	if errors.Is(err, domain.ErrClaimConflict) {
		d.metrics.RecordClaimConflict(warehouseID, candidate.Zone)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return task, true, nil
}

// tryClaim runs the compare-and-set under the zone lock
func (d *Dispatcher) tryClaim(ctx context.Context, warehouseID, zone, taskID, workerID string) (*domain.WarehouseTask, error) {
	release, err := d.locks.Acquire(ctx, warehouseID, zone)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire zone lock: %w", err)
	}
	defer release()

	var claimed *domain.WarehouseTask
	err = d.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		now := d.clock()
		task, err := d.tasks.ClaimPending(txCtx, taskID, workerID, now)
		if err != nil {
			return err
		}
		task.RecordAssigned(now)
		if err := d.events.Publish(txCtx, task.PullEvents()...); err != nil {
			return err
		}
		claimed = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (d *Dispatcher) afterClaim(ctx context.Context, workerID string, task *domain.WarehouseTask, conflicts int, start time.Time) {
	if err := d.tracker.recordClaim(ctx, workerID, task); err != nil {
		d.logger.WithError(err).Warn("Failed to record claim on worker location", "workerId", workerID, "taskId", task.ID)
	}
	d.metrics.RecordClaim(task.WarehouseID, claimOutcomeClaimed, time.Since(start))
	d.metrics.RecordTaskTransition(string(task.TaskType), string(domain.TaskStatusAssigned))
	d.logger.TaskTransition(ctx, task.ID, string(domain.TaskStatusPending), string(domain.TaskStatusAssigned), workerID)
	d.logger.ClaimOutcome(ctx, workerID, task.Zone, task.ID, conflicts, time.Since(start))
	for _, o := range d.observers {
		o.OnTaskClaimed(ctx, task)
	}
}

// staleClaim reports a lost race on a claimed task with its current state
func (d *Dispatcher) staleClaim(ctx context.Context, taskID, action string) error {
	current, err := d.tasks.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	return &domain.InvalidStateError{Resource: "task", ID: taskID, Status: string(current.Status), Action: action, State: current}
}

// GetTask returns one task
func (d *Dispatcher) GetTask(ctx context.Context, taskID string) (*TaskDTO, error) {
	task, err := d.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return ToTaskDTO(task), nil
}

// StartTask marks the holder at the task's location
func (d *Dispatcher) StartTask(ctx context.Context, cmd StartTaskCommand) (*TaskDTO, error) {
	task, err := d.tasks.FindByID(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	holder, version := task.AssignedTo, task.ClaimVersion
	if err := task.Start(cmd.WorkerID, d.clock()); err != nil {
		return nil, err
	}

	err = d.commit(ctx, func(txCtx context.Context) error {
		return d.tasks.UpdateClaimed(txCtx, task, holder, version)
	}, task.PullEvents())
	if errors.Is(err, domain.ErrClaimConflict) {
		return nil, d.staleClaim(ctx, task.ID, "start")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start task: %w", err)
	}

	d.metrics.RecordTaskTransition(string(task.TaskType), string(task.Status))
	d.logger.TaskTransition(ctx, task.ID, string(domain.TaskStatusAssigned), string(task.Status), cmd.WorkerID)
	return ToTaskDTO(task), nil
}

// CompleteTask records the holder's outcome, leaves a next-task hint and
// moves the worker to the task's final bin
func (d *Dispatcher) CompleteTask(ctx context.Context, cmd CompleteTaskCommand) (*TaskDTO, error) {
	task, err := d.tasks.FindByID(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	holder, version, from := task.AssignedTo, task.ClaimVersion, task.Status
	if err := task.Complete(cmd.WorkerID, cmd.Quantity, cmd.ExceptionQty, cmd.Reason, d.clock()); err != nil {
		return nil, err
	}
	task.SuggestedNextTaskID = d.suggestNext(ctx, task, cmd.WorkerID)

	err = d.commit(ctx, func(txCtx context.Context) error {
		return d.tasks.UpdateClaimed(txCtx, task, holder, version)
	}, task.PullEvents())
	if errors.Is(err, domain.ErrClaimConflict) {
		return nil, d.staleClaim(ctx, task.ID, "complete")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}

	d.metrics.RecordTaskTransition(string(task.TaskType), string(task.Status))
	d.logger.TaskTransition(ctx, task.ID, string(from), string(task.Status), cmd.WorkerID)

	if err := d.tracker.recordCompletion(ctx, cmd.WorkerID, task); err != nil {
		d.logger.WithError(err).Warn("Failed to move worker to final bin", "workerId", cmd.WorkerID, "taskId", task.ID)
	}
	d.moveStock(ctx, task)
	d.notifyTerminal(ctx, task)
	return ToTaskDTO(task), nil
}

// suggestNext ranks pending work from where the worker will stand
func (d *Dispatcher) suggestNext(ctx context.Context, done *domain.WarehouseTask, workerID string) string {
	pending, err := d.tasks.FindPending(ctx, done.WarehouseID, "")
	if err != nil {
		d.logger.WithError(err).Warn("Failed to compute next-task suggestion", "taskId", done.ID)
		return ""
	}
	bin := done.FinalBin()
	queues := domain.NewZoneQueues(domain.Ranker{
		Weights: d.config.Weights,
		Horizon: d.config.SLAHorizon,
		Now:     d.clock(),
		Worker:  domain.WorkerContext{WorkerID: workerID, CurrentBin: bin, LastTaskType: done.TaskType, LastTaskBin: bin},
	}, pending)
	head, ok := queues.Peek()
	if !ok || head.Sunk {
		return ""
	}
	return head.Task.ID
}

// moveStock reports the inventory effect of a finished task
func (d *Dispatcher) moveStock(ctx context.Context, task *domain.WarehouseTask) {
	if d.inventory == nil || task.QuantityCompleted == 0 || task.TaskType == domain.TaskTypeCount {
		return
	}
	move := domain.StockMove{
		TaskID:      task.ID,
		TaskType:    task.TaskType,
		WarehouseID: task.WarehouseID,
		ProductID:   task.ProductID,
		FromBin:     task.SourceBin,
		ToBin:       task.DestinationBin,
		Quantity:    task.QuantityCompleted,
	}
	if err := d.inventory.Move(ctx, move); err != nil {
		d.logger.WithError(err).Error("Failed to issue stock move", "taskId", task.ID, "productId", task.ProductID)
	}
}

func (d *Dispatcher) notifyTerminal(ctx context.Context, task *domain.WarehouseTask) {
	for _, o := range d.observers {
		o.OnTaskTerminal(ctx, task)
	}
}

// SkipTask returns the holder's task to the pool
func (d *Dispatcher) SkipTask(ctx context.Context, cmd SkipTaskCommand) (*TaskDTO, error) {
	task, err := d.tasks.FindByID(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	holder, version, from := task.AssignedTo, task.ClaimVersion, task.Status
	if err := task.Skip(cmd.WorkerID, cmd.Reason, d.clock()); err != nil {
		return nil, err
	}

	err = d.commit(ctx, func(txCtx context.Context) error {
		return d.tasks.UpdateClaimed(txCtx, task, holder, version)
	}, task.PullEvents())
	if errors.Is(err, domain.ErrClaimConflict) {
		return nil, d.staleClaim(ctx, task.ID, "skip")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to skip task: %w", err)
	}

	d.metrics.RecordTaskTransition(string(task.TaskType), string(task.Status))
	d.logger.TaskTransition(ctx, task.ID, string(from), string(task.Status), cmd.WorkerID)
	return ToTaskDTO(task), nil
}

// CancelTask cancels a PENDING or ASSIGNED task
func (d *Dispatcher) CancelTask(ctx context.Context, cmd CancelTaskCommand) (*TaskDTO, error) {
	task, err := d.cancel(ctx, cmd.TaskID, cmd.Reason)
	if err != nil {
		return nil, err
	}
	return ToTaskDTO(task), nil
}

func (d *Dispatcher) cancel(ctx context.Context, taskID, reason string) (*domain.WarehouseTask, error) {
	for attempt := 0; attempt < 3; attempt++ {
		task, err := d.tasks.FindByID(ctx, taskID)
		if err != nil {
			return nil, err
		}
		from, holder := task.Status, task.AssignedTo
		if err := task.Cancel(reason, d.clock()); err != nil {
			return nil, err
		}

		err = d.commit(ctx, func(txCtx context.Context) error {
			return d.tasks.UpdateIfStatus(txCtx, task, domain.TaskStatusPending, domain.TaskStatusAssigned)
		}, task.PullEvents())
		if errors.Is(err, domain.ErrClaimConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to cancel task: %w", err)
		}

		d.metrics.RecordTaskTransition(string(task.TaskType), string(task.Status))
		d.logger.TaskTransition(ctx, task.ID, string(from), string(task.Status), holder)
		d.notifyTerminal(ctx, task)
		return task, nil
	}
	return nil, domain.ErrClaimConflict
}

// CancelBySource cancels every PENDING or ASSIGNED task of a source.
// IN_PROGRESS tasks are left to finish.
func (d *Dispatcher) CancelBySource(ctx context.Context, source domain.TaskSource, reason string) (int, error) {
	tasks, err := d.tasks.FindBySource(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("failed to load tasks of %s: %w", source, err)
	}
	cancelled := 0
	for _, t := range tasks {
		if t.Status != domain.TaskStatusPending && t.Status != domain.TaskStatusAssigned {
			continue
		}
		_, err := d.cancel(ctx, t.ID, reason)
		var validation *domain.ValidationError
		var invalid *domain.InvalidStateError
		if errors.As(err, &validation) || errors.As(err, &invalid) {
			continue
		}
		if err != nil {
			return cancelled, err
		}
		cancelled++
	}
	d.logger.Info("Cancelled tasks by source", "source", source.String(), "cancelled", cancelled)
	return cancelled, nil
}

// ReleaseClaim returns a claimed task to PENDING on behalf of the system.
// Only the caller whose compare-and-set wins logs and publishes the
// reassignment; it reports whether that was this call.
func (d *Dispatcher) ReleaseClaim(ctx context.Context, task *domain.WarehouseTask, cause string) (bool, error) {
	holder, version := task.AssignedTo, task.ClaimVersion
	now := d.clock()
	err := d.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := d.tasks.ReleaseClaim(txCtx, task.ID, holder, version, now); err != nil {
			return err
		}
		return d.events.Publish(txCtx, &domain.TaskReassignedEvent{
			TaskID: task.ID, PreviousWorkerID: holder, Cause: cause, ClaimVersion: version, At: now,
		})
	})
	if errors.Is(err, domain.ErrClaimConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to release claim: %w", err)
	}

	d.metrics.RecordReassignment(cause)
	d.metrics.RecordTaskTransition(string(task.TaskType), string(domain.TaskStatusPending))
	d.logger.Reassignment(ctx, task.ID, holder, cause)
	return true, nil
}

// CreateTask creates a standalone PUTAWAY, REPLENISH or COUNT task
func (d *Dispatcher) CreateTask(ctx context.Context, cmd CreateTaskCommand) (*TaskDTO, error) {
	taskType := domain.TaskType(strings.ToUpper(cmd.TaskType))
	switch taskType {
	case domain.TaskTypePutaway, domain.TaskTypeReplenish, domain.TaskTypeCount:
	default:
		return nil, domain.NewValidationError("taskType", "must be one of PUTAWAY, REPLENISH, COUNT")
	}
	source, err := domain.NewTaskSource(domain.SourceType(cmd.SourceType), cmd.SourceID)
	if err != nil {
		return nil, err
	}
	if source.Type != domain.SourceGRN && source.Type != domain.SourcePicklist {
		return nil, domain.NewValidationError("sourceType", "must be GRN or PICKLIST")
	}
	priority, err := domain.ParsePriority(cmd.Priority)
	if err != nil {
		return nil, err
	}

	tc := tenant.FromContextOptional(ctx)
	warehouseID := cmd.WarehouseID
	if warehouseID == "" {
		warehouseID = tc.WarehouseID
	}
	destination := strings.ToUpper(strings.TrimSpace(cmd.DestinationBin))
	if taskType == domain.TaskTypePutaway && destination == "" && d.advisor != nil {
		hint, err := d.advisor.SuggestPutaway(ctx, warehouseID, cmd.ProductID)
		if err != nil {
			d.logger.WithError(err).Warn("Failed to fetch putaway suggestion", "productId", cmd.ProductID)
		}
		destination = hint
	}

	task, err := domain.NewTask(domain.NewTaskParams{
		TenantID:       tc.TenantID,
		FacilityID:     tc.FacilityID,
		WarehouseID:    warehouseID,
		TaskType:       taskType,
		Priority:       priority,
		DueAt:          cmd.DueAt,
		Source:         source,
		SourceBin:      strings.ToUpper(strings.TrimSpace(cmd.SourceBin)),
		DestinationBin: destination,
		ProductID:      cmd.ProductID,
		SKU:            cmd.SKU,
		UnitWeight:     cmd.UnitWeight,
		Quantity:       cmd.Quantity,
	}, d.clock())
	if err != nil {
		return nil, err
	}

	err = d.commit(ctx, func(txCtx context.Context) error {
		return d.tasks.SaveAll(txCtx, []*domain.WarehouseTask{task})
	}, task.PullEvents())
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	d.metrics.RecordTasksCreated(string(task.TaskType), string(source.Type), 1)
	d.logger.Info("Created task", "taskId", task.ID, "taskType", task.TaskType, "source", source.String())
	return ToTaskDTO(task), nil
}

// ListExceptions lists EXCEPTION tasks awaiting a supervisor
func (d *Dispatcher) ListExceptions(ctx context.Context, warehouseID string) ([]TaskDTO, error) {
	tasks, err := d.tasks.FindExceptions(ctx, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exceptions: %w", err)
	}
	return ToTaskDTOs(tasks), nil
}

// ResolveException stamps who handled an exception task
func (d *Dispatcher) ResolveException(ctx context.Context, cmd ResolveExceptionCommand) (*TaskDTO, error) {
	task, err := d.tasks.FindByID(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	if err := task.ResolveException(cmd.HandledBy, d.clock()); err != nil {
		return nil, err
	}
	err = d.commit(ctx, func(txCtx context.Context) error {
		return d.tasks.UpdateIfStatus(txCtx, task, domain.TaskStatusException)
	}, task.PullEvents())
	if errors.Is(err, domain.ErrClaimConflict) {
		return nil, d.staleClaim(ctx, task.ID, "resolve exception for")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve exception: %w", err)
	}

	d.logger.Audit(ctx, "resolve_exception", "task", task.ID, cmd.HandledBy, map[string]any{
		"quantityException": task.QuantityException,
		"reason":            task.ExceptionReason,
	})
	return ToTaskDTO(task), nil
}
