package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/contracts/asyncapi"
)

func contractValidator(t *testing.T) *asyncapi.EventValidator {
	t.Helper()
	v, err := asyncapi.NewEventValidatorFromBytes(Contract)
	require.NoError(t, err)
	return v
}

func TestContract_CoversEveryPublishedType(t *testing.T) {
	v := contractValidator(t)
	for _, eventType := range []string{
		cloudevents.WaveCreated, cloudevents.WaveReleased, cloudevents.WaveCancelled, cloudevents.WaveCompleted,
		cloudevents.TaskCreated, cloudevents.TaskAssigned, cloudevents.TaskStarted, cloudevents.TaskCompleted,
		cloudevents.TaskException, cloudevents.TaskSkipped, cloudevents.TaskCancelled, cloudevents.TaskReassigned,
		cloudevents.CrossDockCreated, cloudevents.CrossDockReceived, cloudevents.CrossDockStaged,
		cloudevents.CrossDockAllocated, cloudevents.CrossDockDeparted, cloudevents.CrossDockCancelled,
		cloudevents.SlottingRecomputed, cloudevents.ReceivingItemReceived,
	} {
		assert.True(t, v.HasSchema(eventType), eventType)
	}
}

func TestContract_DomainEventsConform(t *testing.T) {
	v := contractValidator(t)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	events := []domain.DomainEvent{
		&domain.WaveCreatedEvent{WaveID: "wv-1", WaveNumber: "WV-20260302-ABCDEF12", WaveType: "ZONE", WarehouseID: "WH-1", At: at},
		&domain.WaveReleasedEvent{WaveID: "wv-1", WaveNumber: "WV-20260302-ABCDEF12", WarehouseID: "WH-1", TotalPicklists: 3, TotalTasks: 9, TotalItems: 40, At: at},
		&domain.WaveCancelledEvent{WaveID: "wv-1", WaveNumber: "WV-20260302-ABCDEF12", Reason: "carrier missed", At: at},
		&domain.WaveCompletedEvent{WaveID: "wv-1", WaveNumber: "WV-20260302-ABCDEF12", CompletedPicklists: 3, PickedQuantity: 38, At: at},
		&domain.TaskCreatedEvent{TaskID: "t-1", TaskType: "PICK", WarehouseID: "WH-1", Zone: "A", SourceType: "PICKLIST", SourceID: "pl-1", Quantity: 4, At: at},
		&domain.TaskAssignedEvent{TaskID: "t-1", WorkerID: "w-1", WarehouseID: "WH-1", Zone: "A", ClaimVersion: 1, At: at},
		&domain.TaskStartedEvent{TaskID: "t-1", WorkerID: "w-1", At: at},
		&domain.TaskCompletedEvent{TaskID: "t-1", WorkerID: "w-1", TaskType: "PICK", Quantity: 4, SourceType: "PICKLIST", SourceID: "pl-1", At: at},
		&domain.TaskExceptionEvent{TaskID: "t-2", WorkerID: "w-1", QuantityCompleted: 7, QuantityException: 3, Reason: "damaged", At: at},
		&domain.TaskSkippedEvent{TaskID: "t-3", WorkerID: "w-1", Reason: "blocked aisle", SkipCount: 1, At: at},
		&domain.TaskCancelledEvent{TaskID: "t-4", Reason: "wave cancelled", At: at},
		&domain.TaskReassignedEvent{TaskID: "t-5", PreviousWorkerID: "w-2", Cause: "heartbeat_timeout", ClaimVersion: 2, At: at},
		&domain.CrossDockEvent{Type: domain.EventCrossDockAllocated, CrossDockID: "cd-1", Status: "ALLOCATED", OrderID: "O-1", TaskID: "t-9", Quantity: 6, At: at},
		&domain.SlottingRecomputedEvent{WarehouseID: "WH-1", PeriodFrom: at.AddDate(0, 0, -7), PeriodTo: at, Products: 120, Relocations: 14, At: at},
	}

	for _, event := range events {
		t.Run(event.EventType(), func(t *testing.T) {
			assert.NoError(t, v.Validate(event.EventType(), event))
		})
	}
}

func TestEventPublisher_RejectsContractViolations(t *testing.T) {
	store := &memoryOutbox{}
	publisher := NewEventPublisher(store, cloudevents.NewEventFactory(cloudevents.SourceTaskEngine))
	publisher.SetValidator(contractValidator(t))
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	err := publisher.Publish(context.Background(),
		&domain.TaskStartedEvent{TaskID: "t-1", WorkerID: "w-1", At: at},
		&domain.TaskAssignedEvent{TaskID: "t-2", WorkerID: "w-1", ClaimVersion: 0, At: at},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wms.task.assigned")
	assert.Empty(t, store.saved, "nothing is staged when any event in the batch is rejected")

	require.NoError(t, publisher.Publish(context.Background(), &domain.TaskStartedEvent{TaskID: "t-1", WorkerID: "w-1", At: at}))
	assert.Len(t, store.saved, 1)
}
