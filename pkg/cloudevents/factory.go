package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/tenant"
)

// EventFactory creates CloudEvents for a single source
type EventFactory struct {
	source string
	now    func() time.Time
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source, now: time.Now}
}

// Source returns the factory's event source
func (f *EventFactory) Source() string {
	return f.source
}

// CreateEvent builds an event and copies the tenant and correlation
// context found on ctx onto it.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data interface{}) *WMSCloudEvent {
	event := &WMSCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            f.now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}

	if tc, err := tenant.FromContext(ctx); err == nil {
		event.SetTenantContext(tc)
	}
	if correlationID, ok := ctx.Value(logging.CorrelationIDKey).(string); ok {
		event.CorrelationID = correlationID
	}
	return event
}

// CreateEventAt is CreateEvent with an explicit event time, used when the
// event time must match the aggregate timestamp that produced it.
func (f *EventFactory) CreateEventAt(ctx context.Context, eventType, subject string, data interface{}, at time.Time) *WMSCloudEvent {
	event := f.CreateEvent(ctx, eventType, subject, data)
	event.Time = at.UTC()
	return event
}
