package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/logging"
)

type binStockResponse struct {
	Data []domain.BinStock `json:"data"`
}

type emptyBinsResponse struct {
	Bins []string `json:"bins"`
}

// InventoryClient implements domain.InventoryService over HTTP
type InventoryClient struct {
	upstream *upstream
}

// NewInventoryClient creates an InventoryClient
func NewInventoryClient(config Config, logger *logging.Logger) *InventoryClient {
	return &InventoryClient{upstream: newUpstream(config, logger.WithComponent("inventory-client").Logger)}
}

// ListBins returns bin-level stock with product unit weights
func (c *InventoryClient) ListBins(ctx context.Context, warehouseID string) ([]domain.BinStock, error) {
	var resp binStockResponse
	if err := c.upstream.do(ctx, http.MethodGet, "/api/v1/inventory/bins", map[string]string{"warehouseId": warehouseID}, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list bins: %w", err)
	}
	return resp.Data, nil
}

// EmptyBins returns the free bins of a zone
func (c *InventoryClient) EmptyBins(ctx context.Context, warehouseID, zone string) ([]string, error) {
	var resp emptyBinsResponse
	query := map[string]string{"warehouseId": warehouseID, "zone": zone}
	if err := c.upstream.do(ctx, http.MethodGet, "/api/v1/inventory/bins/empty", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list empty bins: %w", err)
	}
	return resp.Bins, nil
}

// Move books the stock effect of a completed task
func (c *InventoryClient) Move(ctx context.Context, move domain.StockMove) error {
	if err := c.upstream.do(ctx, http.MethodPost, "/api/v1/inventory/moves", nil, move, nil); err != nil {
		return fmt.Errorf("failed to record stock move for task %s: %w", move.TaskID, err)
	}
	return nil
}
