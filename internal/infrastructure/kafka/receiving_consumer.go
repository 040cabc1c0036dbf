package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/idempotency"
	"github.com/wms-platform/task-engine/pkg/kafka"
	"github.com/wms-platform/task-engine/pkg/logging"
)

// ReceiptHandler books inbound receipts
type ReceiptHandler interface {
	HandleReceipt(ctx context.Context, cmd application.ReceiptCommand) error
}

// Subscriber registers event handlers on a topic
type Subscriber interface {
	Subscribe(topic, eventType string, handler kafka.EventHandler)
}

// itemReceivedData is the payload of receiving.item.received
type itemReceivedData struct {
	ReceiptID   string  `json:"receiptId"`
	ShipmentID  string  `json:"shipmentId"`
	WarehouseID string  `json:"warehouseId"`
	ProductID   string  `json:"productId"`
	SKU         string  `json:"sku"`
	Quantity    int     `json:"quantity"`
	UnitWeight  float64 `json:"unitWeight"`
	DockBin     string  `json:"dockBin"`
}

// ReceivingConsumer feeds receiving-service events into the engine
type ReceivingConsumer struct {
	handler ReceiptHandler
	logger  *logging.Logger
}

// NewReceivingConsumer creates a ReceivingConsumer
func NewReceivingConsumer(handler ReceiptHandler, logger *logging.Logger) *ReceivingConsumer {
	return &ReceivingConsumer{handler: handler, logger: logger.WithComponent("receiving-consumer")}
}

// Register subscribes to item receipts, deduplicated by event id
func (c *ReceivingConsumer) Register(sub Subscriber, store idempotency.MessageStore, consumerGroup string, m *idempotency.Metrics) {
	dedupe := &idempotency.ConsumerConfig{
		Topic:           kafka.Topics.ReceivingEvents,
		ConsumerGroup:   consumerGroup,
		Store:           store,
		RetentionPeriod: 24 * time.Hour,
		Metrics:         m,
		Logger:          c.logger.Logger,
	}
	handler := idempotency.DeduplicatingHandler(dedupe, c.Handle)
	sub.Subscribe(kafka.Topics.ReceivingEvents, cloudevents.ReceivingItemReceived, kafka.EventHandler(handler))
}

// Handle processes one receipt. Malformed or rejected receipts are logged
// and acknowledged; other failures are returned so Kafka redelivers.
func (c *ReceivingConsumer) Handle(ctx context.Context, event *cloudevents.WMSCloudEvent) error {
	var data itemReceivedData
	if err := decodeData(event.Data, &data); err != nil {
		c.logger.WithError(err).Error("Dropping malformed receipt event", "eventId", event.ID)
		return nil
	}
	if data.WarehouseID == "" {
		data.WarehouseID = event.WarehouseID
	}

	err := c.handler.HandleReceipt(ctx, application.ReceiptCommand{
		ReceiptID:   data.ReceiptID,
		ShipmentID:  data.ShipmentID,
		WarehouseID: data.WarehouseID,
		ProductID:   data.ProductID,
		SKU:         data.SKU,
		Quantity:    data.Quantity,
		UnitWeight:  data.UnitWeight,
		DockBin:     data.DockBin,
	})
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		c.logger.Warn("Receipt rejected", "eventId", event.ID, "receiptId", data.ReceiptID, "field", validation.Field, "reason", validation.Message)
		return nil
	}
	return err
}

// decodeData re-reads the generic event payload into out
func decodeData(data any, out any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
