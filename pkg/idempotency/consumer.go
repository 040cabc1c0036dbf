package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/wms-platform/task-engine/pkg/cloudevents"
)

// EventHandler mirrors kafka.EventHandler
type EventHandler func(ctx context.Context, event *cloudevents.WMSCloudEvent) error

// ConsumerConfig configures message deduplication for one topic
type ConsumerConfig struct {
	Topic           string
	ConsumerGroup   string
	Store           MessageStore
	RetentionPeriod time.Duration
	Metrics         *Metrics
	Logger          *slog.Logger
}

// DeduplicatingHandler skips events whose id was already handled by this
// consumer group. The mark is dropped again when the handler fails so the
// redelivered message is processed.
func DeduplicatingHandler(config *ConsumerConfig, handler EventHandler) EventHandler {
	return func(ctx context.Context, event *cloudevents.WMSCloudEvent) error {
		first, err := config.Store.MarkProcessed(ctx, config.ConsumerGroup+":"+event.ID, config.RetentionPeriod)
		if err != nil {
			config.Metrics.deduplicated(config.Topic, event.Type, "error")
			return err
		}
		if !first {
			config.Logger.Info("Duplicate message skipped", "messageId", event.ID, "topic", config.Topic, "eventType", event.Type)
			config.Metrics.deduplicated(config.Topic, event.Type, "duplicate")
			return nil
		}
		config.Metrics.deduplicated(config.Topic, event.Type, "new")
		if err := handler(ctx, event); err != nil {
			if forgetErr := config.Store.Forget(ctx, config.ConsumerGroup+":"+event.ID); forgetErr != nil {
				config.Logger.Error("Failed to unmark message", "messageId", event.ID, "error", forgetErr)
			}
			return err
		}
		return nil
	}
}
