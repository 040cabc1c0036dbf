package tenant

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// RepositoryHelper applies tenant scoping to MongoDB filters and documents
type RepositoryHelper struct {
	EnforceTenant bool
}

// NewRepositoryHelper creates a new RepositoryHelper
func NewRepositoryHelper(enforceTenant bool) *RepositoryHelper {
	return &RepositoryHelper{EnforceTenant: enforceTenant}
}

// WithTenantFilter copies filter and adds the tenantId condition. When the
// helper enforces tenancy a missing tenant context is an error.
func (h *RepositoryHelper) WithTenantFilter(ctx context.Context, filter bson.M) (bson.M, error) {
	tc, err := FromContext(ctx)
	if err != nil {
		if h.EnforceTenant {
			return nil, err
		}
		tc = FromContextOptional(ctx)
	}
	return scoped(filter, tc.TenantID), nil
}

// WithTenantFilterOptional adds tenantId, falling back to the default tenant
func (h *RepositoryHelper) WithTenantFilterOptional(ctx context.Context, filter bson.M) bson.M {
	return scoped(filter, FromContextOptional(ctx).TenantID)
}

// ExtractTenantFields returns the values to stamp on new documents
func (h *RepositoryHelper) ExtractTenantFields(ctx context.Context) (tenantID, facilityID, warehouseID string) {
	tc := FromContextOptional(ctx)
	return tc.TenantID, tc.FacilityID, tc.WarehouseID
}

// TenantIndexes returns index keys every tenant-scoped collection carries
func TenantIndexes() []bson.D {
	return []bson.D{
		{{Key: "tenantId", Value: 1}, {Key: "warehouseId", Value: 1}},
		{{Key: "tenantId", Value: 1}, {Key: "facilityId", Value: 1}, {Key: "warehouseId", Value: 1}},
	}
}

func scoped(filter bson.M, tenantID string) bson.M {
	out := make(bson.M, len(filter)+1)
	for k, v := range filter {
		out[k] = v
	}
	out["tenantId"] = tenantID
	return out
}
