package tenant

import (
	"context"
	"errors"
)

type contextKey string

const (
	tenantIDKey    contextKey = "tenantId"
	facilityIDKey  contextKey = "facilityId"
	warehouseIDKey contextKey = "warehouseId"
)

var (
	ErrMissingTenantContext = errors.New("tenant context is required")
	ErrUnauthorizedAccess   = errors.New("unauthorized access to tenant resource")
	ErrMissingTenantID      = errors.New("tenantId is required")
	ErrMissingWarehouseID   = errors.New("warehouseId is required")
)

// Defaults applied to requests and documents that carry no tenant headers.
const (
	DefaultTenantID    = "DEFAULT_TENANT"
	DefaultFacilityID  = "DEFAULT_FACILITY"
	DefaultWarehouseID = "DEFAULT_WAREHOUSE"
)

// Context scopes every query and write of the engine. A task engine
// instance serves many tenants; warehouses are independent scheduling
// partitions inside a tenant.
type Context struct {
	TenantID    string `json:"tenantId"`
	FacilityID  string `json:"facilityId"`
	WarehouseID string `json:"warehouseId"`
}

// Default returns the context used when no headers were supplied
func Default() *Context {
	return &Context{
		TenantID:    DefaultTenantID,
		FacilityID:  DefaultFacilityID,
		WarehouseID: DefaultWarehouseID,
	}
}

// FromContext extracts the tenant context, failing when no tenant is set.
func FromContext(ctx context.Context) (*Context, error) {
	tc := &Context{
		TenantID:    stringValue(ctx, tenantIDKey),
		FacilityID:  stringValue(ctx, facilityIDKey),
		WarehouseID: stringValue(ctx, warehouseIDKey),
	}
	if tc.TenantID == "" {
		return nil, ErrMissingTenantContext
	}
	return tc, nil
}

// FromContextOptional returns the tenant context with defaults filled in
func FromContextOptional(ctx context.Context) *Context {
	tc := &Context{
		TenantID:    stringValue(ctx, tenantIDKey),
		FacilityID:  stringValue(ctx, facilityIDKey),
		WarehouseID: stringValue(ctx, warehouseIDKey),
	}
	if tc.TenantID == "" {
		tc.TenantID = DefaultTenantID
	}
	if tc.FacilityID == "" {
		tc.FacilityID = DefaultFacilityID
	}
	if tc.WarehouseID == "" {
		tc.WarehouseID = DefaultWarehouseID
	}
	return tc
}

// ToContext stores the non-empty tenant fields on ctx
func ToContext(ctx context.Context, tc *Context) context.Context {
	if tc == nil {
		return ctx
	}
	if tc.TenantID != "" {
		ctx = context.WithValue(ctx, tenantIDKey, tc.TenantID)
	}
	if tc.FacilityID != "" {
		ctx = context.WithValue(ctx, facilityIDKey, tc.FacilityID)
	}
	if tc.WarehouseID != "" {
		ctx = context.WithValue(ctx, warehouseIDKey, tc.WarehouseID)
	}
	return ctx
}

// WithTenantID returns a new context with the tenant ID set
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// WithWarehouseID returns a new context with the warehouse ID set
func WithWarehouseID(ctx context.Context, warehouseID string) context.Context {
	return context.WithValue(ctx, warehouseIDKey, warehouseID)
}

// GetTenantID extracts tenant ID from context
func GetTenantID(ctx context.Context) string {
	return stringValue(ctx, tenantIDKey)
}

// GetWarehouseID extracts warehouse ID from context
func GetWarehouseID(ctx context.Context) string {
	return stringValue(ctx, warehouseIDKey)
}

// Validate checks that the fields needed for scheduling are present
func (tc *Context) Validate() error {
	if tc.TenantID == "" {
		return ErrMissingTenantID
	}
	if tc.WarehouseID == "" {
		return ErrMissingWarehouseID
	}
	return nil
}

// ValidateOwnership rejects resources owned by another tenant
func (tc *Context) ValidateOwnership(resourceTenantID string) error {
	if tc.TenantID != "" && resourceTenantID != "" && tc.TenantID != resourceTenantID {
		return ErrUnauthorizedAccess
	}
	return nil
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
