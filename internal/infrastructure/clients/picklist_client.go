package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/temporal"
)

// WorkflowSignaler is the Temporal surface the picklist client needs
type WorkflowSignaler interface {
	SignalWorkflow(ctx context.Context, workflowID, signalName string, arg interface{}) error
}

// eligiblePicklistsResponse is the order service's picklist page
type eligiblePicklistsResponse struct {
	Data       []domain.Picklist `json:"data"`
	TotalItems int               `json:"totalItems"`
}

// WaveAssignedSignal is sent to an order's fulfillment workflow once its
// picklist is released in a wave
type WaveAssignedSignal struct {
	WaveID         string     `json:"waveId"`
	WaveNumber     string     `json:"waveNumber"`
	PicklistID     string     `json:"picklistId"`
	ScheduledStart *time.Time `json:"scheduledStart,omitempty"`
}

// PicklistClient implements domain.PicklistService against the order
// service and the orchestrator's workflows
type PicklistClient struct {
	upstream *upstream
	signaler WorkflowSignaler
	logger   *logging.Logger
}

// NewPicklistClient creates a PicklistClient; signaler may be nil when
// Temporal is not configured
func NewPicklistClient(config Config, signaler WorkflowSignaler, logger *logging.Logger) *PicklistClient {
	logger = logger.WithComponent("picklist-client")
	return &PicklistClient{
		upstream: newUpstream(config, logger.Logger),
		signaler: signaler,
		logger:   logger,
	}
}

// FetchEligible lists picklists not yet in a wave for the warehouse
func (c *PicklistClient) FetchEligible(ctx context.Context, warehouseID string) ([]domain.Picklist, error) {
	var resp eligiblePicklistsResponse
	err := c.upstream.do(ctx, http.MethodGet, "/api/v1/picklists/eligible", map[string]string{"warehouseId": warehouseID}, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch eligible picklists: %w", err)
	}
	for i := range resp.Data {
		if resp.Data[i].WarehouseID == "" {
			resp.Data[i].WarehouseID = warehouseID
		}
	}
	return resp.Data, nil
}

// NotifyWaveAssigned signals order-fulfillment-<orderId>
func (c *PicklistClient) NotifyWaveAssigned(ctx context.Context, orderID, picklistID string, wave *domain.PickWave) error {
	if c.signaler == nil {
		c.logger.Debug("Temporal not configured, skipping wave assignment signal", "orderId", orderID, "waveId", wave.ID)
		return nil
	}

	workflowID := temporal.OrderFulfillmentWorkflowID(orderID)
	signal := WaveAssignedSignal{
		WaveID:         wave.ID,
		WaveNumber:     wave.WaveNumber,
		PicklistID:     picklistID,
		ScheduledStart: wave.ReleasedAt,
	}
	if err := c.signaler.SignalWorkflow(ctx, workflowID, temporal.SignalWaveAssigned, signal); err != nil {
		return fmt.Errorf("failed to signal workflow %s: %w", workflowID, err)
	}
	return nil
}
