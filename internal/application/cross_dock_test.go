package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/internal/domain"
)

type crossDockHarness struct {
	*dispatchHarness
	crossDocks  *fakeCrossDocks
	coordinator *CrossDockCoordinator
	receiving   *ReceivingHandler
}

func newCrossDockHarness(t *testing.T) *crossDockHarness {
	t.Helper()
	dh := newDispatchHarness(t)
	h := &crossDockHarness{dispatchHarness: dh, crossDocks: newFakeCrossDocks()}
	h.coordinator = NewCrossDockCoordinator(h.crossDocks, dh.tasks, fakeTx{}, dh.events, dh.dispatcher, fixedClock(t0), testLogger(), testMetrics())
	h.receiving = NewReceivingHandler(h.coordinator, dh.dispatcher, testLogger())
	return h
}

// openCrossDock expects P1 x10 and P2 x4 against three outbound lines
// whose departures are out of order
func (h *crossDockHarness) openCrossDock(t *testing.T) *CrossDockDTO {
	t.Helper()
	dto, err := h.coordinator.Create(whContext(), CreateCrossDockCommand{
		InboundType: "shipment",
		InboundID:   "SHP-1",
		StagingBin:  "x-01-r01-l01",
		Items:       map[string]int{"P1": 10, "P2": 4},
		Outbound: []domain.OutboundDemand{
			{OrderID: "O-2", ProductID: "P1", Quantity: 6, ScheduledDeparture: t0.Add(4 * time.Hour), DockBin: "D-01-R01-L01"},
			{OrderID: "O-1", ProductID: "P1", Quantity: 6, ScheduledDeparture: t0.Add(2 * time.Hour), DockBin: "D-02-R01-L01"},
			{OrderID: "O-3", ProductID: "P2", Quantity: 4, ScheduledDeparture: t0.Add(3 * time.Hour), DockBin: "D-03-R01-L01"},
		},
	})
	require.NoError(t, err)
	return dto
}

func (h *crossDockHarness) receiveAll(t *testing.T, id string) {
	t.Helper()
	_, err := h.coordinator.RecordInbound(whContext(), RecordInboundCommand{CrossDockID: id, ProductID: "P1", Quantity: 10})
	require.NoError(t, err)
	_, err = h.coordinator.RecordInbound(whContext(), RecordInboundCommand{CrossDockID: id, ProductID: "P2", Quantity: 4})
	require.NoError(t, err)
}

func TestCrossDock_Create(t *testing.T) {
	h := newCrossDockHarness(t)
	dto := h.openCrossDock(t)

	assert.Equal(t, string(domain.CrossDockPending), dto.Status)
	assert.Equal(t, string(domain.CrossDockFlowThrough), dto.Type)
	assert.Equal(t, "SHIPMENT", dto.InboundType)
	assert.Equal(t, "WH-1", dto.WarehouseID)
	assert.Equal(t, "X-01-R01-L01", dto.StagingBin)
	assert.Equal(t, 14, dto.TotalQuantity)
	assert.Equal(t, 1, h.events.count("wms.crossdock.created"))

	_, err := h.coordinator.Create(whContext(), CreateCrossDockCommand{InboundType: "EMAIL", InboundID: "x", StagingBin: "X-01-R01-L01", Items: map[string]int{"P1": 1}})
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "inboundRef.type", validation.Field)
}

func TestCrossDock_RecordInbound(t *testing.T) {
	h := newCrossDockHarness(t)
	id := h.openCrossDock(t).ID

	dto, err := h.coordinator.RecordInbound(whContext(), RecordInboundCommand{CrossDockID: id, ProductID: "P1", Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, string(domain.CrossDockReceiving), dto.Status)
	assert.Equal(t, 10, dto.ReceivedQuantity)

	t.Run("over-receipt is rejected", func(t *testing.T) {
		_, err := h.coordinator.RecordInbound(whContext(), RecordInboundCommand{CrossDockID: id, ProductID: "P1", Quantity: 1})
		var validation *domain.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "quantity", validation.Field)
	})

	t.Run("unexpected product is rejected", func(t *testing.T) {
		_, err := h.coordinator.RecordInbound(whContext(), RecordInboundCommand{CrossDockID: id, ProductID: "P9", Quantity: 1})
		var validation *domain.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "productId", validation.Field)
	})

	t.Run("match waits for staging", func(t *testing.T) {
		_, err := h.coordinator.Match(whContext(), id)
		var invalid *domain.InvalidStateError
		require.ErrorAs(t, err, &invalid)
	})

	dto, err = h.coordinator.RecordInbound(whContext(), RecordInboundCommand{CrossDockID: id, ProductID: "P2", Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, string(domain.CrossDockStaged), dto.Status)
	assert.Equal(t, 2, h.events.count("wms.crossdock.received"))
	assert.Equal(t, 1, h.events.count("wms.crossdock.staged"))

	stored, err := h.crossDocks.FindByID(whContext(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Version)
}

func TestCrossDock_MatchAllocatesByDeparture(t *testing.T) {
	h := newCrossDockHarness(t)
	id := h.openCrossDock(t).ID
	h.receiveAll(t, id)

	result, err := h.coordinator.Match(whContext(), id)
	require.NoError(t, err)

	assert.Equal(t, string(domain.CrossDockAllocated), result.CrossDock.Status)
	assert.Equal(t, 3, result.TasksCreated)
	assert.Equal(t, 2, result.Unfulfilled)
	assert.Equal(t, 14, result.CrossDock.ProcessedQuantity)

	require.Len(t, result.Allocations, 3)
	assert.Equal(t, "O-1", result.Allocations[0].OrderID)
	assert.Equal(t, 6, result.Allocations[0].Quantity)
	assert.Equal(t, "O-3", result.Allocations[1].OrderID)
	assert.Equal(t, 4, result.Allocations[1].Quantity)
	assert.Equal(t, "O-2", result.Allocations[2].OrderID)
	assert.Equal(t, 4, result.Allocations[2].Quantity)

	source, err := domain.NewTaskSource(domain.SourceCrossDock, id)
	require.NoError(t, err)
	tasks, err := h.tasks.FindBySource(whContext(), source)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	for _, task := range tasks {
		assert.Equal(t, domain.TaskTypeCrossDock, task.TaskType)
		assert.Equal(t, domain.TaskStatusPending, task.Status)
		assert.Equal(t, domain.PriorityHigh, task.Priority)
		assert.Equal(t, "X-01-R01-L01", task.SourceBin)
		require.NotNil(t, task.DueAt)
	}
	assert.Equal(t, 3, h.events.count("wms.task.created"))
	assert.Equal(t, 3, h.events.count("wms.crossdock.allocated"))

	t.Run("nothing left to allocate", func(t *testing.T) {
		again, err := h.coordinator.Match(whContext(), id)
		require.NoError(t, err)
		assert.Zero(t, again.TasksCreated)
		assert.Equal(t, 2, again.Unfulfilled)
	})
}

func TestCrossDock_DepartWaitsForTasks(t *testing.T) {
	h := newCrossDockHarness(t)
	id := h.openCrossDock(t).ID
	h.receiveAll(t, id)
	result, err := h.coordinator.Match(whContext(), id)
	require.NoError(t, err)

	_, err = h.coordinator.Depart(whContext(), id)
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "status", validation.Field)

	for _, a := range result.Allocations {
		_, err := h.dispatcher.CancelTask(whContext(), CancelTaskCommand{TaskID: a.TaskID, Reason: "loaded manually"})
		require.NoError(t, err)
	}

	dto, err := h.coordinator.Depart(whContext(), id)
	require.NoError(t, err)
	assert.Equal(t, string(domain.CrossDockDeparted), dto.Status)
	assert.Equal(t, 1, h.events.count("wms.crossdock.departed"))

	_, err = h.coordinator.Depart(whContext(), id)
	var invalid *domain.InvalidStateError
	require.ErrorAs(t, err, &invalid)
}

func TestCrossDock_CancelCascades(t *testing.T) {
	h := newCrossDockHarness(t)
	id := h.openCrossDock(t).ID
	h.receiveAll(t, id)
	_, err := h.coordinator.Match(whContext(), id)
	require.NoError(t, err)

	dto, err := h.coordinator.Cancel(whContext(), CancelCrossDockCommand{CrossDockID: id, Reason: "truck missed"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.CrossDockCancelled), dto.Status)
	assert.Equal(t, "truck missed", dto.CancelReason)
	assert.Equal(t, 14, dto.ProcessedQuantity)

	cancelled := h.tasks.filter(func(t *domain.WarehouseTask) bool { return t.Status == domain.TaskStatusCancelled })
	assert.Len(t, cancelled, 3)

	_, err = h.coordinator.Cancel(whContext(), CancelCrossDockCommand{CrossDockID: id, Reason: "again"})
	var invalid *domain.InvalidStateError
	require.ErrorAs(t, err, &invalid)
}

func TestCrossDock_LaterReceiptFeedsShortfall(t *testing.T) {
	h := newCrossDockHarness(t)
	id := h.openCrossDock(t).ID
	h.receiveAll(t, id)
	first, err := h.coordinator.Match(whContext(), id)
	require.NoError(t, err)
	require.Equal(t, 2, first.Unfulfilled)

	t.Run("receipt beyond the shortfall is rejected", func(t *testing.T) {
		_, err := h.coordinator.RecordInbound(whContext(), RecordInboundCommand{CrossDockID: id, ProductID: "P1", Quantity: 3})
		var validation *domain.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "quantity", validation.Field)
	})

	booked, err := h.coordinator.ReceiveForInbound(whContext(), "SHP-1", "P1", 2)
	require.NoError(t, err)
	assert.True(t, booked)

	stored, err := h.coordinator.Get(whContext(), id)
	require.NoError(t, err)
	assert.Equal(t, string(domain.CrossDockAllocated), stored.Status)
	assert.Equal(t, 16, stored.ProcessedQuantity)
	assert.Equal(t, 16, stored.TotalQuantity)

	source, err := domain.NewTaskSource(domain.SourceCrossDock, id)
	require.NoError(t, err)
	tasks, err := h.tasks.FindBySource(whContext(), source)
	require.NoError(t, err)
	assert.Len(t, tasks, 4)

	again, err := h.coordinator.Match(whContext(), id)
	require.NoError(t, err)
	assert.Zero(t, again.Unfulfilled)
	assert.Zero(t, again.TasksCreated)

	booked, err = h.coordinator.ReceiveForInbound(whContext(), "SHP-1", "P1", 1)
	require.NoError(t, err)
	assert.False(t, booked, "no demand is left for further stock")
}

func TestCrossDock_CancelWhileStagedHaltsMatching(t *testing.T) {
	h := newCrossDockHarness(t)
	id := h.openCrossDock(t).ID
	h.receiveAll(t, id)

	dto, err := h.coordinator.Cancel(whContext(), CancelCrossDockCommand{CrossDockID: id, Reason: "dock closed"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.CrossDockCancelled), dto.Status)
	assert.Zero(t, dto.ProcessedQuantity)

	_, err = h.coordinator.Match(whContext(), id)
	var invalid *domain.InvalidStateError
	require.ErrorAs(t, err, &invalid)

	source, err := domain.NewTaskSource(domain.SourceCrossDock, id)
	require.NoError(t, err)
	tasks, err := h.tasks.FindBySource(whContext(), source)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Zero(t, h.events.count("wms.crossdock.allocated"))

	booked, err := h.coordinator.ReceiveForInbound(whContext(), "SHP-1", "P1", 1)
	require.NoError(t, err)
	assert.False(t, booked)
}

func TestReceivingHandler(t *testing.T) {
	h := newCrossDockHarness(t)
	id := h.openCrossDock(t).ID

	t.Run("receipt for a waiting cross-dock is booked on it", func(t *testing.T) {
		err := h.receiving.HandleReceipt(whContext(), ReceiptCommand{
			ReceiptID: "GRN-1", ShipmentID: "SHP-1", ProductID: "P2", Quantity: 4, DockBin: "R-01-R01-L01",
		})
		require.NoError(t, err)

		stored, err := h.crossDocks.FindByID(whContext(), id)
		require.NoError(t, err)
		assert.Equal(t, 4, stored.Received["P2"])
		assert.Empty(t, h.tasks.all())
	})

	t.Run("other receipts become putaway tasks", func(t *testing.T) {
		err := h.receiving.HandleReceipt(whContext(), ReceiptCommand{
			ReceiptID: "GRN-2", ShipmentID: "SHP-1", ProductID: "P7", Quantity: 12, DockBin: "R-01-R01-L01",
		})
		require.NoError(t, err)

		tasks := h.tasks.all()
		require.Len(t, tasks, 1)
		assert.Equal(t, domain.TaskTypePutaway, tasks[0].TaskType)
		assert.Equal(t, domain.SourceGRN, tasks[0].Source.Type)
		assert.Equal(t, "GRN-2", tasks[0].Source.ID)
		assert.Equal(t, 12, tasks[0].QuantityRequired)
	})

	t.Run("empty receipt is rejected", func(t *testing.T) {
		err := h.receiving.HandleReceipt(whContext(), ReceiptCommand{ReceiptID: "GRN-3", ProductID: "P1"})
		var validation *domain.ValidationError
		require.ErrorAs(t, err, &validation)
	})
}
