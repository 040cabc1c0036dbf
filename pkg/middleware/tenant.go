package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/tenant"
)

// Tenant and identity headers set by the platform gateway
const (
	HeaderWMSTenantID    = "X-WMS-Tenant-ID"
	HeaderWMSFacilityID  = "X-WMS-Facility-ID"
	HeaderWMSWarehouseID = "X-WMS-Warehouse-ID"
	HeaderWorkerID       = "X-Worker-ID"
)

// TenantConfig controls how missing tenant headers are handled
type TenantConfig struct {
	Required bool
}

// TenantContext copies the gateway's tenant headers into the request
// context. Without Required, missing headers fall back to the defaults.
func TenantContext(config TenantConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc := &tenant.Context{
			TenantID:    c.GetHeader(HeaderWMSTenantID),
			FacilityID:  c.GetHeader(HeaderWMSFacilityID),
			WarehouseID: c.GetHeader(HeaderWMSWarehouseID),
		}

		if tc.TenantID == "" {
			if config.Required {
				AbortWithAppError(c, errors.NewAppError("MISSING_TENANT_CONTEXT", "Tenant context is required", http.StatusUnauthorized))
				return
			}
			def := tenant.Default()
			tc.TenantID = def.TenantID
			if tc.FacilityID == "" {
				tc.FacilityID = def.FacilityID
			}
		}

		ctx := tenant.ToContext(c.Request.Context(), tc)
		if workerID := c.GetHeader(HeaderWorkerID); workerID != "" {
			c.Set(ContextKeyWorkerID, workerID)
			ctx = logging.ContextWithWorkerID(ctx, workerID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
