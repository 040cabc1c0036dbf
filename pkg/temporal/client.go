package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"
)

// Config holds Temporal client configuration
type Config struct {
	HostPort  string
	Namespace string
	Identity  string
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HostPort:  "localhost:7233",
		Namespace: "default",
		Identity:  "task-engine",
	}
}

// Signal names sent by the engine to platform workflows
const (
	SignalWaveAssigned = "waveAssigned"
)

// OrderFulfillmentWorkflowID is the id of the orchestrator's per-order
// fulfillment workflow.
func OrderFulfillmentWorkflowID(orderID string) string {
	return "order-fulfillment-" + orderID
}

// Client wraps the Temporal client. The engine only signals workflows owned
// by the orchestrator; it registers no workers of its own.
type Client struct {
	client client.Client
	config *Config
}

// NewClient dials the Temporal frontend
func NewClient(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	options := client.Options{
		HostPort:  config.HostPort,
		Namespace: config.Namespace,
		Identity:  config.Identity,
	}
	if logger != nil {
		options.Logger = sdklog.NewStructuredLogger(logger)
	}

	c, err := client.DialContext(ctx, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create Temporal client: %w", err)
	}
	return &Client{client: c, config: config}, nil
}

// SignalWorkflow signals the latest run of workflowID
func (c *Client) SignalWorkflow(ctx context.Context, workflowID, signalName string, arg interface{}) error {
	return c.client.SignalWorkflow(ctx, workflowID, "", signalName, arg)
}

// HealthCheck asks the frontend for its health
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.client.CheckHealth(ctx, &client.CheckHealthRequest{})
	return err
}

func (c *Client) Close() {
	c.client.Close()
}
