package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wms-platform/task-engine/pkg/middleware"
	"github.com/wms-platform/task-engine/pkg/resilience"
	"github.com/wms-platform/task-engine/pkg/tenant"
)

// Config is shared by the upstream HTTP clients
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retry   *resilience.RetryConfig
	Breaker *resilience.CircuitBreakerConfig
}

// DefaultConfig returns client defaults for the named upstream
func DefaultConfig(name, baseURL string) Config {
	retry := resilience.DefaultRetryConfig()
	retry.RetryableErrors = isTransient
	return Config{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
		Retry:   retry,
		Breaker: resilience.DefaultCircuitBreakerConfig(name),
	}
}

// StatusError is a non-2xx upstream response
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.URL, e.Status)
}

// isTransient retries network failures and 5xx responses
func isTransient(err error) bool {
	var status *StatusError
	if errors.As(err, &status) {
		return status.Status >= http.StatusInternalServerError || status.Status == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, resilience.ErrCircuitOpen)
}

// upstream runs JSON requests through a retry loop behind a circuit breaker
type upstream struct {
	baseURL    string
	httpClient *http.Client
	retry      *resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
}

func newUpstream(config Config, logger *slog.Logger) *upstream {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Retry == nil {
		config.Retry = resilience.DefaultRetryConfig()
		config.Retry.RetryableErrors = isTransient
	}
	if config.Breaker == nil {
		config.Breaker = resilience.DefaultCircuitBreakerConfig(config.BaseURL)
	}
	return &upstream{
		baseURL:    config.BaseURL,
		httpClient: &http.Client{Timeout: config.Timeout},
		retry:      config.Retry,
		breaker:    resilience.NewCircuitBreaker(config.Breaker, logger),
	}
}

func (u *upstream) do(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	_, err := u.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, resilience.Retry(ctx, u.retry, func() error {
			return u.once(ctx, method, path, query, body, out)
		})
	})
	return err
}

func (u *upstream) once(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	q := req.URL.Query()
	for k, v := range query {
		if v != "" {
			q.Set(k, v)
		}
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tc := tenant.FromContextOptional(ctx)
	req.Header.Set(middleware.HeaderWMSTenantID, tc.TenantID)
	req.Header.Set(middleware.HeaderWMSFacilityID, tc.FacilityID)
	if tc.WarehouseID != "" {
		req.Header.Set(middleware.HeaderWMSWarehouseID, tc.WarehouseID)
	}
	for header, value := range middleware.PropagationHeaders(ctx) {
		req.Header.Set(header, value)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, URL: path, Status: resp.StatusCode, Body: string(snippet)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
