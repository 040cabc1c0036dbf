package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/logging"
)

// ReceivingHandler turns inbound receipts into cross-dock bookings or
// PUTAWAY tasks
type ReceivingHandler struct {
	crossDocks *CrossDockCoordinator
	dispatcher *Dispatcher
	logger     *logging.Logger
}

// NewReceivingHandler creates a ReceivingHandler
func NewReceivingHandler(crossDocks *CrossDockCoordinator, dispatcher *Dispatcher, logger *logging.Logger) *ReceivingHandler {
	return &ReceivingHandler{crossDocks: crossDocks, dispatcher: dispatcher, logger: logger.WithComponent("receiving")}
}

// HandleReceipt books the receipt on a waiting cross-dock, else creates a
// GRN PUTAWAY task from the receiving dock
func (h *ReceivingHandler) HandleReceipt(ctx context.Context, cmd ReceiptCommand) error {
	if cmd.Quantity <= 0 || cmd.ProductID == "" {
		return domain.NewValidationError("quantity", "receipt needs a product and a positive quantity")
	}
	if cmd.ShipmentID != "" {
		booked, err := h.crossDocks.ReceiveForInbound(ctx, cmd.ShipmentID, cmd.ProductID, cmd.Quantity)
		if err != nil {
			return fmt.Errorf("failed to book cross-dock receipt: %w", err)
		}
		if booked {
			h.logger.Info("Receipt booked on cross-dock", "shipmentId", cmd.ShipmentID, "productId", cmd.ProductID, "quantity", cmd.Quantity)
			return nil
		}
	}

	task, err := h.dispatcher.CreateTask(ctx, CreateTaskCommand{
		WarehouseID: cmd.WarehouseID,
		TaskType:    string(domain.TaskTypePutaway),
		SourceType:  string(domain.SourceGRN),
		SourceID:    cmd.ReceiptID,
		SourceBin:   cmd.DockBin,
		ProductID:   cmd.ProductID,
		SKU:         cmd.SKU,
		UnitWeight:  cmd.UnitWeight,
		Quantity:    cmd.Quantity,
	})
	if err != nil {
		return fmt.Errorf("failed to create putaway task: %w", err)
	}
	h.logger.Info("Receipt queued for putaway", "receiptId", cmd.ReceiptID, "taskId", task.ID, "destinationBin", task.DestinationBin)
	return nil
}
