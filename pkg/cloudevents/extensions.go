package cloudevents

import (
	"github.com/wms-platform/task-engine/pkg/tenant"
)

// Kafka header names carrying the tenant extension attributes
const (
	ExtTenantID      = "wmstenantid"
	ExtFacilityID    = "wmsfacilityid"
	ExtWarehouseID   = "wmswarehouseid"
	ExtCorrelationID = "wmscorrelationid"
	ExtWaveNumber    = "wmswavenumber"
)

// SetTenantContext copies tc onto the event
func (e *WMSCloudEvent) SetTenantContext(tc *tenant.Context) {
	if tc == nil {
		return
	}
	e.TenantID = tc.TenantID
	e.FacilityID = tc.FacilityID
	e.WarehouseID = tc.WarehouseID
}

// GetTenantContext extracts the tenant context of the event
func (e *WMSCloudEvent) GetTenantContext() *tenant.Context {
	return &tenant.Context{
		TenantID:    e.TenantID,
		FacilityID:  e.FacilityID,
		WarehouseID: e.WarehouseID,
	}
}

// WithTenant sets the tenant fields and returns the event
func (e *WMSCloudEvent) WithTenant(tenantID, facilityID, warehouseID string) *WMSCloudEvent {
	e.TenantID = tenantID
	e.FacilityID = facilityID
	e.WarehouseID = warehouseID
	return e
}

// Extensions returns the non-empty extension attributes, keyed by their
// CloudEvents attribute names, for use as message headers.
func (e *WMSCloudEvent) Extensions() map[string]string {
	ext := make(map[string]string, 5)
	for k, v := range map[string]string{
		ExtTenantID:      e.TenantID,
		ExtFacilityID:    e.FacilityID,
		ExtWarehouseID:   e.WarehouseID,
		ExtCorrelationID: e.CorrelationID,
		ExtWaveNumber:    e.WaveNumber,
	} {
		if v != "" {
			ext[k] = v
		}
	}
	return ext
}
