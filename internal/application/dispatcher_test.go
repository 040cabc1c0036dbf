package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/tenant"
)

func whContext() context.Context {
	return tenant.ToContext(context.Background(), &tenant.Context{TenantID: "acme", FacilityID: "F1", WarehouseID: "WH-1"})
}

type taskSpec struct {
	id       string
	taskType domain.TaskType
	priority domain.Priority
	bin      string
	qty      int
	source   domain.TaskSource
	picklist string
}

func pendingTask(t *testing.T, spec taskSpec) *domain.WarehouseTask {
	t.Helper()
	if spec.taskType == "" {
		spec.taskType = domain.TaskTypePick
	}
	if spec.qty == 0 {
		spec.qty = 1
	}
	if spec.source.ID == "" {
		spec.source = domain.TaskSource{Type: domain.SourcePicklist, ID: "PL-" + spec.id}
	}
	params := domain.NewTaskParams{
		TenantID:    "acme",
		FacilityID:  "F1",
		WarehouseID: "WH-1",
		TaskType:    spec.taskType,
		Priority:    spec.priority,
		Source:      spec.source,
		ProductID:   "P-" + spec.id,
		UnitWeight:  1,
		Quantity:    spec.qty,
	}
	if spec.picklist != "" {
		params.DemandRef = &domain.DemandRef{OrderID: "ORD-" + spec.picklist, PicklistID: spec.picklist}
	}
	if spec.taskType == domain.TaskTypePutaway {
		params.DestinationBin = spec.bin
	} else {
		params.SourceBin = spec.bin
	}
	task, err := domain.NewTask(params, t0.Add(-time.Hour))
	require.NoError(t, err)
	task.ID = spec.id
	task.PullEvents()
	return task
}

type recordingObserver struct {
	mu       sync.Mutex
	claimed  []string
	terminal []string
}

func (o *recordingObserver) OnTaskClaimed(_ context.Context, task *domain.WarehouseTask) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.claimed = append(o.claimed, task.ID)
}

func (o *recordingObserver) OnTaskTerminal(_ context.Context, task *domain.WarehouseTask) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.terminal = append(o.terminal, task.ID+":"+string(task.Status))
}

type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) ListBins(ctx context.Context, warehouseID string) ([]domain.BinStock, error) {
	args := m.Called(ctx, warehouseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BinStock), args.Error(1)
}

func (m *MockInventoryService) EmptyBins(ctx context.Context, warehouseID, zone string) ([]string, error) {
	args := m.Called(ctx, warehouseID, zone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockInventoryService) Move(ctx context.Context, move domain.StockMove) error {
	args := m.Called(ctx, move)
	return args.Error(0)
}

type MockPutawayAdvisor struct {
	mock.Mock
}

func (m *MockPutawayAdvisor) SuggestPutaway(ctx context.Context, warehouseID, productID string) (string, error) {
	args := m.Called(ctx, warehouseID, productID)
	return args.String(0), args.Error(1)
}

type dispatchHarness struct {
	dispatcher *Dispatcher
	tasks      *fakeTasks
	locations  *fakeLocations
	events     *fakeEvents
	inventory  *MockInventoryService
	observer   *recordingObserver
}

func newDispatchHarness(t *testing.T, tasks ...*domain.WarehouseTask) *dispatchHarness {
	t.Helper()
	h := &dispatchHarness{
		tasks:     newFakeTasks(tasks...),
		locations: newFakeLocations(),
		events:    &fakeEvents{},
		inventory: new(MockInventoryService),
		observer:  &recordingObserver{},
	}
	h.dispatcher = NewDispatcher(DispatcherDeps{
		Tasks:      h.tasks,
		Locations:  h.locations,
		Transactor: fakeTx{},
		Events:     h.events,
		Inventory:  h.inventory,
		Clock:      fixedClock(t0),
	}, DefaultDispatchConfig(), testLogger(), testMetrics())
	h.dispatcher.AddObserver(h.observer)
	return h
}

func TestClaimNext_PicksBestRanked(t *testing.T) {
	h := newDispatchHarness(t,
		pendingTask(t, taskSpec{id: "t-normal", priority: domain.PriorityNormal, bin: "A-01-R01-L01"}),
		pendingTask(t, taskSpec{id: "t-urgent", priority: domain.PriorityUrgent, bin: "A-05-R01-L01"}),
	)

	dto, err := h.dispatcher.ClaimNext(whContext(), ClaimTaskCommand{WorkerID: "w-1"})
	require.NoError(t, err)
	require.NotNil(t, dto)

	assert.Equal(t, "t-urgent", dto.ID)
	assert.Equal(t, string(domain.TaskStatusAssigned), dto.Status)
	assert.Equal(t, "w-1", dto.AssignedTo)

	stored := h.tasks.get("t-urgent")
	assert.Equal(t, int64(1), stored.ClaimVersion)
	assert.Equal(t, 1, h.events.count("wms.task.assigned"))
	assert.Equal(t, []string{"t-urgent"}, h.observer.claimed)

	loc, err := h.locations.FindByWorker(context.Background(), "w-1")
	require.NoError(t, err)
	assert.Equal(t, "t-urgent", loc.CurrentTaskID)
}

func TestClaimNext_NothingClaimable(t *testing.T) {
	h := newDispatchHarness(t)

	dto, err := h.dispatcher.ClaimNext(whContext(), ClaimTaskCommand{WorkerID: "w-1"})

	assert.NoError(t, err)
	assert.Nil(t, dto)
}

func TestClaimNext_RequiresWorker(t *testing.T) {
	h := newDispatchHarness(t)

	_, err := h.dispatcher.ClaimNext(whContext(), ClaimTaskCommand{})

	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestClaimNext_ZoneHintRestrictsVisibility(t *testing.T) {
	h := newDispatchHarness(t,
		pendingTask(t, taskSpec{id: "t-a", priority: domain.PriorityUrgent, bin: "A-01-R01-L01"}),
		pendingTask(t, taskSpec{id: "t-b", priority: domain.PriorityLow, bin: "B-01-R01-L01"}),
	)

	dto, err := h.dispatcher.ClaimNext(whContext(), ClaimTaskCommand{WorkerID: "w-1", ZoneHint: "b"})
	require.NoError(t, err)
	require.NotNil(t, dto)
	assert.Equal(t, "t-b", dto.ID)
}

func TestClaimNext_ConcurrentWorkersGetOneWinner(t *testing.T) {
	h := newDispatchHarness(t, pendingTask(t, taskSpec{id: "t-1", bin: "A-01-R01-L01"}))

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID string) {
			defer wg.Done()
			dto, err := h.dispatcher.ClaimNext(whContext(), ClaimTaskCommand{WorkerID: workerID})
			if err == nil && dto != nil {
				results <- workerID
			}
		}(fmt.Sprintf("w-%d", i))
	}
	wg.Wait()
	close(results)

	var winners []string
	for w := range results {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)
	assert.Equal(t, winners[0], h.tasks.get("t-1").AssignedTo)
	assert.Equal(t, int64(1), h.tasks.get("t-1").ClaimVersion)
	assert.Equal(t, 1, h.events.count("wms.task.assigned"))
}

func TestClaimNext_AdmissionDropsZone(t *testing.T) {
	h := newDispatchHarness(t,
		pendingTask(t, taskSpec{id: "t-a", priority: domain.PriorityUrgent, bin: "A-01-R01-L01"}),
		pendingTask(t, taskSpec{id: "t-b", priority: domain.PriorityLow, bin: "B-01-R01-L01"}),
	)
	noA := func(_ context.Context, _ string, zone string) bool { return zone != "A" }

	task, err := h.dispatcher.ClaimNextAdmitting(whContext(), "w-1", "", noA)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "t-b", task.ID)

	none := func(context.Context, string, string) bool { return false }
	task, err = h.dispatcher.ClaimNextAdmitting(whContext(), "w-2", "", none)
	assert.NoError(t, err)
	assert.Nil(t, task)
}

func TestTaskLifecycle_StartAndComplete(t *testing.T) {
	h := newDispatchHarness(t, pendingTask(t, taskSpec{id: "t-1", bin: "A-01-R01-L01", qty: 4}))
	h.inventory.On("Move", mock.Anything, mock.MatchedBy(func(m domain.StockMove) bool {
		return m.TaskID == "t-1" && m.Quantity == 4 && m.FromBin == "A-01-R01-L01"
	})).Return(nil).Once()
	ctx := whContext()

	_, err := h.dispatcher.ClaimNext(ctx, ClaimTaskCommand{WorkerID: "w-1"})
	require.NoError(t, err)

	started, err := h.dispatcher.StartTask(ctx, StartTaskCommand{TaskID: "t-1", WorkerID: "w-1"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.TaskStatusInProgress), started.Status)

	done, err := h.dispatcher.CompleteTask(ctx, CompleteTaskCommand{TaskID: "t-1", WorkerID: "w-1", Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, string(domain.TaskStatusCompleted), done.Status)
	assert.Equal(t, []string{"t-1:COMPLETED"}, h.observer.terminal)
	h.inventory.AssertExpectations(t)

	loc, err := h.locations.FindByWorker(ctx, "w-1")
	require.NoError(t, err)
	assert.Equal(t, "A-01-R01-L01", loc.CurrentBin)
	assert.Equal(t, domain.TaskTypePick, loc.LastTaskType)
}

func TestCompleteTask_ShortPickEndsInException(t *testing.T) {
	h := newDispatchHarness(t, pendingTask(t, taskSpec{id: "t-1", bin: "A-01-R01-L01", qty: 10}))
	h.inventory.On("Move", mock.Anything, mock.Anything).Return(nil)
	ctx := whContext()

	_, err := h.dispatcher.ClaimNext(ctx, ClaimTaskCommand{WorkerID: "w-1"})
	require.NoError(t, err)

	dto, err := h.dispatcher.CompleteTask(ctx, CompleteTaskCommand{
		TaskID: "t-1", WorkerID: "w-1", Quantity: 7, ExceptionQty: 3, Reason: "damaged",
	})
	require.NoError(t, err)

	assert.Equal(t, string(domain.TaskStatusException), dto.Status)
	assert.Equal(t, 7, dto.QuantityCompleted)
	assert.Equal(t, 3, dto.QuantityException)
	assert.Equal(t, 1, h.events.count("wms.task.exception"))

	exceptions, err := h.dispatcher.ListExceptions(ctx, "WH-1")
	require.NoError(t, err)
	require.Len(t, exceptions, 1)

	resolved, err := h.dispatcher.ResolveException(ctx, ResolveExceptionCommand{TaskID: "t-1", HandledBy: "sup-1"})
	require.NoError(t, err)
	assert.Equal(t, "sup-1", resolved.ExceptionHandledBy)

	exceptions, err = h.dispatcher.ListExceptions(ctx, "WH-1")
	require.NoError(t, err)
	assert.Empty(t, exceptions)
}

func TestCompleteTask_OnlyHolder(t *testing.T) {
	h := newDispatchHarness(t, pendingTask(t, taskSpec{id: "t-1", bin: "A-01-R01-L01"}))
	ctx := whContext()
	_, err := h.dispatcher.ClaimNext(ctx, ClaimTaskCommand{WorkerID: "w-1"})
	require.NoError(t, err)

	_, err = h.dispatcher.CompleteTask(ctx, CompleteTaskCommand{TaskID: "t-1", WorkerID: "w-2", Quantity: 1})

	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "workerId", validation.Field)
	assert.Equal(t, domain.TaskStatusAssigned, h.tasks.get("t-1").Status)
}

func TestCompleteTask_StaleHolderSeesCurrentState(t *testing.T) {
	h := newDispatchHarness(t, pendingTask(t, taskSpec{id: "t-1", bin: "A-01-R01-L01"}))
	ctx := whContext()
	_, err := h.dispatcher.ClaimNext(ctx, ClaimTaskCommand{WorkerID: "w-1"})
	require.NoError(t, err)

	snapshot := h.tasks.get("t-1")
	won, err := h.dispatcher.ReleaseClaim(ctx, snapshot, CauseHeartbeatTimeout)
	require.NoError(t, err)
	require.True(t, won)

	_, err = h.dispatcher.CompleteTask(ctx, CompleteTaskCommand{TaskID: "t-1", WorkerID: "w-1", Quantity: 1})

	var invalid *domain.InvalidStateError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, string(domain.TaskStatusPending), invalid.Status)
}

func TestCompleteTask_SuggestionIsClaimedNext(t *testing.T) {
	h := newDispatchHarness(t,
		pendingTask(t, taskSpec{id: "t-1", priority: domain.PriorityUrgent, bin: "A-01-R01-L01"}),
		pendingTask(t, taskSpec{id: "t-near", bin: "A-01-R02-L01"}),
		pendingTask(t, taskSpec{id: "t-far", bin: "B-09-R09-L01"}),
	)
	h.inventory.On("Move", mock.Anything, mock.Anything).Return(nil)
	ctx := whContext()

	first, err := h.dispatcher.ClaimNext(ctx, ClaimTaskCommand{WorkerID: "w-1"})
	require.NoError(t, err)
	require.Equal(t, "t-1", first.ID)

	done, err := h.dispatcher.CompleteTask(ctx, CompleteTaskCommand{TaskID: "t-1", WorkerID: "w-1", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, "t-near", done.SuggestedNextTaskID)

	next, err := h.dispatcher.ClaimNext(ctx, ClaimTaskCommand{WorkerID: "w-1"})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "t-near", next.ID)
}

func TestSkipTask_SinksForSkipper(t *testing.T) {
	h := newDispatchHarness(t,
		pendingTask(t, taskSpec{id: "t-hot", priority: domain.PriorityUrgent, bin: "A-01-R01-L01"}),
		pendingTask(t, taskSpec{id: "t-cold", priority: domain.PriorityLow, bin: "A-01-R01-L01"}),
	)
	ctx := whContext()

	claimed, err := h.dispatcher.ClaimNext(ctx, ClaimTaskCommand{WorkerID: "w-1"})
	require.NoError(t, err)
	require.Equal(t, "t-hot", claimed.ID)

	skipped, err := h.dispatcher.SkipTask(ctx, SkipTaskCommand{TaskID: "t-hot", WorkerID: "w-1", Reason: "blocked aisle"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.TaskStatusPending), skipped.Status)
	assert.Equal(t, 1, skipped.SkipCount)

	again, err := h.dispatcher.ClaimNext(ctx, ClaimTaskCommand{WorkerID: "w-1"})
	require.NoError(t, err)
	assert.Equal(t, "t-cold", again.ID)

	other, err := h.dispatcher.ClaimNext(ctx, ClaimTaskCommand{WorkerID: "w-2"})
	require.NoError(t, err)
	assert.Equal(t, "t-hot", other.ID)
}

func TestCancelTask(t *testing.T) {
	t.Run("pending task is cancelled", func(t *testing.T) {
		h := newDispatchHarness(t, pendingTask(t, taskSpec{id: "t-1", bin: "A-01-R01-L01"}))

		dto, err := h.dispatcher.CancelTask(whContext(), CancelTaskCommand{TaskID: "t-1", Reason: "order cancelled"})
		require.NoError(t, err)
		assert.Equal(t, string(domain.TaskStatusCancelled), dto.Status)
		assert.Equal(t, []string{"t-1:CANCELLED"}, h.observer.terminal)
	})

	t.Run("in-progress task is rejected with its state", func(t *testing.T) {
		h := newDispatchHarness(t, pendingTask(t, taskSpec{id: "t-1", bin: "A-01-R01-L01"}))
		ctx := whContext()
		_, err := h.dispatcher.ClaimNext(ctx, ClaimTaskCommand{WorkerID: "w-1"})
		require.NoError(t, err)
		_, err = h.dispatcher.StartTask(ctx, StartTaskCommand{TaskID: "t-1", WorkerID: "w-1"})
		require.NoError(t, err)

		_, err = h.dispatcher.CancelTask(ctx, CancelTaskCommand{TaskID: "t-1", Reason: "nope"})

		var validation *domain.ValidationError
		require.ErrorAs(t, err, &validation)
		state, ok := validation.State.(*domain.WarehouseTask)
		require.True(t, ok)
		assert.Equal(t, domain.TaskStatusInProgress, state.Status)
		assert.Equal(t, domain.TaskStatusInProgress, h.tasks.get("t-1").Status)
	})

	t.Run("terminal task is an invalid state", func(t *testing.T) {
		h := newDispatchHarness(t, pendingTask(t, taskSpec{id: "t-1", bin: "A-01-R01-L01"}))
		ctx := whContext()
		_, err := h.dispatcher.CancelTask(ctx, CancelTaskCommand{TaskID: "t-1", Reason: "order cancelled"})
		require.NoError(t, err)

		_, err = h.dispatcher.CancelTask(ctx, CancelTaskCommand{TaskID: "t-1", Reason: "twice"})

		var invalid *domain.InvalidStateError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "cancel", invalid.Action)
		assert.Equal(t, string(domain.TaskStatusCancelled), invalid.Status)
	})
}

func TestCancelBySource_LeavesInProgressWork(t *testing.T) {
	source := domain.TaskSource{Type: domain.SourceWave, ID: "wave-1"}
	h := newDispatchHarness(t,
		pendingTask(t, taskSpec{id: "t-1", bin: "A-01-R01-L01", source: source}),
		pendingTask(t, taskSpec{id: "t-2", bin: "A-01-R02-L01", source: source}),
		pendingTask(t, taskSpec{id: "t-3", bin: "A-01-R03-L01", source: source}),
	)
	ctx := whContext()
	_, err := h.dispatcher.ClaimNext(ctx, ClaimTaskCommand{WorkerID: "w-1", ZoneHint: "A"})
	require.NoError(t, err)
	held, err := h.tasks.FindOpenByWorker(ctx, "w-1")
	require.NoError(t, err)
	_, err = h.dispatcher.StartTask(ctx, StartTaskCommand{TaskID: held.ID, WorkerID: "w-1"})
	require.NoError(t, err)

	cancelled, err := h.dispatcher.CancelBySource(ctx, source, "wave cancelled")
	require.NoError(t, err)

	assert.Equal(t, 2, cancelled)
	assert.Equal(t, domain.TaskStatusInProgress, h.tasks.get(held.ID).Status)
}

func TestReleaseClaim_OnlyOneCallerWins(t *testing.T) {
	h := newDispatchHarness(t, pendingTask(t, taskSpec{id: "t-1", bin: "A-01-R01-L01"}))
	ctx := whContext()
	_, err := h.dispatcher.ClaimNext(ctx, ClaimTaskCommand{WorkerID: "w-1"})
	require.NoError(t, err)
	snapshot := h.tasks.get("t-1")

	first, err := h.dispatcher.ReleaseClaim(ctx, snapshot, CauseHeartbeatTimeout)
	require.NoError(t, err)
	second, err := h.dispatcher.ReleaseClaim(ctx, snapshot, CauseSessionEnded)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, 1, h.events.count("wms.task.reassigned"))
	stored := h.tasks.get("t-1")
	assert.Equal(t, domain.TaskStatusPending, stored.Status)
	assert.Empty(t, stored.AssignedTo)
	assert.Zero(t, stored.SkipCount)
}

func TestCreateTask(t *testing.T) {
	t.Run("putaway without destination asks the advisor", func(t *testing.T) {
		h := newDispatchHarness(t)
		advisor := new(MockPutawayAdvisor)
		advisor.On("SuggestPutaway", mock.Anything, "WH-1", "P-9").Return("B-02-R03-L02", nil)
		h.dispatcher.SetPutawayAdvisor(advisor)

		dto, err := h.dispatcher.CreateTask(whContext(), CreateTaskCommand{
			TaskType: "putaway", SourceType: "GRN", SourceID: "GRN-1", ProductID: "P-9", Quantity: 5,
		})
		require.NoError(t, err)

		assert.Equal(t, "B-02-R03-L02", dto.DestinationBin)
		assert.Equal(t, "B", dto.Zone)
		assert.Equal(t, string(domain.TaskStatusPending), dto.Status)
		advisor.AssertExpectations(t)
	})

	t.Run("pick tasks only come from waves", func(t *testing.T) {
		h := newDispatchHarness(t)

		_, err := h.dispatcher.CreateTask(whContext(), CreateTaskCommand{
			TaskType: "PICK", SourceType: "GRN", SourceID: "GRN-1", SourceBin: "A-01-R01-L01", Quantity: 1,
		})

		var validation *domain.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "taskType", validation.Field)
	})

	t.Run("cross-dock source is rejected", func(t *testing.T) {
		h := newDispatchHarness(t)

		_, err := h.dispatcher.CreateTask(whContext(), CreateTaskCommand{
			TaskType: "REPLENISH", SourceType: "CROSS_DOCK", SourceID: "cd-1", SourceBin: "R-01-R01-L01", Quantity: 1,
		})

		var validation *domain.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "sourceType", validation.Field)
	})
}
