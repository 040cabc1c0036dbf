package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/tenant"
	"github.com/wms-platform/task-engine/pkg/tracing"
)

// EventHandler handles a decoded CloudEvent
type EventHandler func(ctx context.Context, event *cloudevents.WMSCloudEvent) error

// Consumer reads subscribed topics in one consumer group and routes events
// to handlers by type. A handler error leaves the offset uncommitted so the
// message is redelivered.
type Consumer struct {
	config   *Config
	mu       sync.Mutex
	readers  map[string]*kafka.Reader
	handlers map[string]map[string]EventHandler
	logger   *slog.Logger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config *Config, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		config:   config,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]map[string]EventHandler),
		logger:   logger,
	}
}

// Subscribe registers handler for eventType on topic; "*" matches any type
func (c *Consumer) Subscribe(topic, eventType string, handler EventHandler) {
	if _, ok := c.handlers[topic]; !ok {
		c.handlers[topic] = make(map[string]EventHandler)
	}
	c.handlers[topic][eventType] = handler
}

func (c *Consumer) reader(topic string) *kafka.Reader {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.readers[topic]; ok {
		return r
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.config.Brokers,
		GroupID:        c.config.ConsumerGroup,
		Topic:          topic,
		MinBytes:       c.config.MinBytes,
		MaxBytes:       c.config.MaxBytes,
		MaxWait:        c.config.MaxWait,
		CommitInterval: c.config.CommitInterval,
	})
	c.readers[topic] = r
	return r
}

// Start consumes every subscribed topic until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	for topic := range c.handlers {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			c.consumeTopic(ctx, topic)
		}(topic)
	}
	wg.Wait()
	return ctx.Err()
}

func (c *Consumer) consumeTopic(ctx context.Context, topic string) {
	reader := c.reader(topic)
	c.logger.Info("Starting consumer for topic", "topic", topic, "group", c.config.ConsumerGroup)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Stopping consumer for topic", "topic", topic)
				return
			}
			c.logger.Error("Error fetching message", "topic", topic, "error", err)
			continue
		}

		event, msgCtx, err := ParseMessage(ctx, msg)
		if err != nil {
			c.logger.Error("Dropping undecodable message", "topic", topic, "offset", msg.Offset, "error", err)
			c.commit(ctx, reader, msg)
			continue
		}

		if err := c.dispatch(msgCtx, topic, event); err != nil {
			c.logger.Error("Error handling event",
				"topic", topic,
				"eventType", event.Type,
				"eventId", event.ID,
				"error", err,
			)
			continue
		}
		c.commit(ctx, reader, msg)
	}
}

func (c *Consumer) commit(ctx context.Context, reader *kafka.Reader, msg kafka.Message) {
	if err := reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Error committing message", "topic", msg.Topic, "error", err)
	}
}

func (c *Consumer) dispatch(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	handlers, ok := c.handlers[topic]
	if !ok {
		return fmt.Errorf("no handlers registered for topic %s", topic)
	}
	if h, ok := handlers[event.Type]; ok {
		return h(ctx, event)
	}
	if h, ok := handlers["*"]; ok {
		return h(ctx, event)
	}
	c.logger.Debug("No handler for event type", "topic", topic, "eventType", event.Type)
	return nil
}

// Close closes all readers
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for topic, r := range c.readers {
		if err := r.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close reader for topic %s: %w", topic, err)
		}
	}
	return lastErr
}

// ParseMessage decodes msg and returns a context carrying its trace parent,
// tenant and correlation id.
func ParseMessage(ctx context.Context, msg kafka.Message) (*cloudevents.WMSCloudEvent, context.Context, error) {
	var event cloudevents.WMSCloudEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, ctx, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	carrier := tracing.MapCarrier{}
	for _, h := range msg.Headers {
		switch h.Key {
		case "ce-type":
			if event.Type == "" {
				event.Type = string(h.Value)
			}
		case "ce-" + cloudevents.ExtCorrelationID:
			event.CorrelationID = string(h.Value)
		case "ce-" + cloudevents.ExtTenantID:
			event.TenantID = string(h.Value)
		case "ce-" + cloudevents.ExtFacilityID:
			event.FacilityID = string(h.Value)
		case "ce-" + cloudevents.ExtWarehouseID:
			event.WarehouseID = string(h.Value)
		case "ce-" + cloudevents.ExtWaveNumber:
			event.WaveNumber = string(h.Value)
		default:
			if !strings.HasPrefix(h.Key, "ce-") {
				carrier[h.Key] = string(h.Value)
			}
		}
	}

	ctx = tracing.ExtractTraceContext(ctx, carrier)
	if event.CorrelationID != "" {
		ctx = logging.ContextWithCorrelationID(ctx, event.CorrelationID)
	}
	if event.TenantID != "" {
		ctx = tenant.ToContext(ctx, event.GetTenantContext())
	}
	return &event, ctx, nil
}
