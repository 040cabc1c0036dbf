package kafka

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/kafka"
	"github.com/wms-platform/task-engine/pkg/outbox"
)

// OutboxStore is where staged events wait for the relay
type OutboxStore interface {
	SaveAll(ctx context.Context, events []*outbox.OutboxEvent) error
}

// Contract is the AsyncAPI document of the engine's events
//
//go:embed asyncapi.yaml
var Contract []byte

// PayloadValidator checks an event payload against its published contract
type PayloadValidator interface {
	Validate(eventType string, data any) error
}

// TopicFor routes an aggregate type to its topic
func TopicFor(aggregateType string) string {
	switch aggregateType {
	case domain.AggregateWave:
		return kafka.Topics.WavesEvents
	case domain.AggregateCrossDock:
		return kafka.Topics.CrossDockEvents
	case domain.AggregateSlotting:
		return kafka.Topics.SlottingEvents
	default:
		return kafka.Topics.TasksEvents
	}
}

// EventPublisher implements domain.EventPublisher on top of the outbox.
// Events are written to the outbox collection, so when ctx carries a
// session they commit or roll back with the surrounding transaction.
type EventPublisher struct {
	store        OutboxStore
	eventFactory *cloudevents.EventFactory
	validator    PayloadValidator
}

// NewEventPublisher creates a new outbox-backed event publisher
func NewEventPublisher(store OutboxStore, eventFactory *cloudevents.EventFactory) *EventPublisher {
	return &EventPublisher{
		store:        store,
		eventFactory: eventFactory,
	}
}

// SetValidator rejects events whose payload breaks the contract before
// they are staged. A nil validator disables the check.
func (p *EventPublisher) SetValidator(v PayloadValidator) {
	p.validator = v
}

// Publish converts events to CloudEvents and stages them in the outbox
func (p *EventPublisher) Publish(ctx context.Context, events ...domain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	staged := make([]*outbox.OutboxEvent, 0, len(events))
	for _, event := range events {
		if p.validator != nil {
			if err := p.validator.Validate(event.EventType(), event); err != nil {
				return fmt.Errorf("event %s breaks its contract: %w", event.EventType(), err)
			}
		}
		ce := p.eventFactory.CreateEventAt(ctx, event.EventType(), event.AggregateType()+"/"+event.AggregateID(), event, event.OccurredAt())
		switch e := event.(type) {
		case *domain.WaveCreatedEvent:
			ce.WaveNumber = e.WaveNumber
		case *domain.WaveReleasedEvent:
			ce.WaveNumber = e.WaveNumber
		case *domain.WaveCancelledEvent:
			ce.WaveNumber = e.WaveNumber
		case *domain.WaveCompletedEvent:
			ce.WaveNumber = e.WaveNumber
		}

		oe, err := outbox.NewOutboxEventFromCloudEvent(event.AggregateID(), event.AggregateType(), TopicFor(event.AggregateType()), ce)
		if err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}
		staged = append(staged, oe)
	}

	if err := p.store.SaveAll(ctx, staged); err != nil {
		return fmt.Errorf("failed to stage events: %w", err)
	}
	return nil
}
