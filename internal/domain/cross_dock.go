package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CrossDockType distinguishes single-inbound from consolidated flows
type CrossDockType string

const (
	CrossDockFlowThrough  CrossDockType = "FLOW_THROUGH"
	CrossDockConsolidated CrossDockType = "CONSOLIDATED"
)

// CrossDockStatus is the lifecycle of an inbound-to-outbound match
type CrossDockStatus string

const (
	CrossDockPending   CrossDockStatus = "PENDING"
	CrossDockReceiving CrossDockStatus = "RECEIVING"
	CrossDockStaged    CrossDockStatus = "STAGED"
	CrossDockAllocated CrossDockStatus = "ALLOCATED"
	CrossDockDeparted  CrossDockStatus = "DEPARTED"
	CrossDockCancelled CrossDockStatus = "CANCELLED"
)

// IsTerminal reports whether the record is closed
func (s CrossDockStatus) IsTerminal() bool {
	return s == CrossDockDeparted || s == CrossDockCancelled
}

// InboundRef points at the receipt feeding the cross-dock
type InboundRef struct {
	Type string `bson:"type" json:"type"`
	ID   string `bson:"id" json:"id"`
}

// OutboundDemand is one outbound line waiting for stock
type OutboundDemand struct {
	OrderID            string    `bson:"orderId" json:"orderId"`
	ShipmentID         string    `bson:"shipmentId" json:"shipmentId"`
	ProductID          string    `bson:"productId" json:"productId"`
	Quantity           int       `bson:"quantity" json:"quantity"`
	Allocated          int       `bson:"allocated" json:"allocated"`
	ScheduledDeparture time.Time `bson:"scheduledDeparture" json:"scheduledDeparture"`
	DockBin            string    `bson:"dockBin" json:"dockBin"`
}

// Remaining is the quantity still unallocated
func (d OutboundDemand) Remaining() int {
	return d.Quantity - d.Allocated
}

// Allocation ties received stock to an outbound demand via its task
type Allocation struct {
	OrderID   string `bson:"orderId" json:"orderId"`
	ProductID string `bson:"productId" json:"productId"`
	Quantity  int    `bson:"quantity" json:"quantity"`
	TaskID    string `bson:"taskId" json:"taskId"`
}

// CrossDock matches inbound receipts directly to outbound demand
type CrossDock struct {
	ID                string           `bson:"_id" json:"id"`
	TenantID          string           `bson:"tenantId" json:"tenantId"`
	FacilityID        string           `bson:"facilityId" json:"facilityId"`
	WarehouseID       string           `bson:"warehouseId" json:"warehouseId"`
	Type              CrossDockType    `bson:"type" json:"type"`
	Status            CrossDockStatus  `bson:"status" json:"status"`
	InboundRef        InboundRef       `bson:"inboundRef" json:"inboundRef"`
	Outbound          []OutboundDemand `bson:"outbound" json:"outbound"`
	Items             map[string]int   `bson:"items" json:"items"`
	Received          map[string]int   `bson:"received" json:"received"`
	Allocations       []Allocation     `bson:"allocations" json:"allocations"`
	TotalQuantity     int              `bson:"totalQuantity" json:"totalQuantity"`
	ReceivedQuantity  int              `bson:"receivedQuantity" json:"receivedQuantity"`
	ProcessedQuantity int              `bson:"processedQuantity" json:"processedQuantity"`
	StagingBin        string           `bson:"stagingBin" json:"stagingBin"`
	CancelReason      string           `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	Version           int64            `bson:"version" json:"version"`
	CreatedAt         time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time        `bson:"updatedAt" json:"updatedAt"`

	events []DomainEvent
}

// NewCrossDockParams is the input of NewCrossDock
type NewCrossDockParams struct {
	TenantID    string
	FacilityID  string
	WarehouseID string
	Type        CrossDockType
	InboundRef  InboundRef
	Outbound    []OutboundDemand
	Items       map[string]int
	StagingBin  string
}

// NewCrossDock validates and creates a PENDING cross-dock
func NewCrossDock(p NewCrossDockParams, now time.Time) (*CrossDock, error) {
	if p.WarehouseID == "" {
		return nil, NewValidationError("warehouseId", "is required")
	}
	if p.Type == "" {
		p.Type = CrossDockFlowThrough
	}
	if p.Type != CrossDockFlowThrough && p.Type != CrossDockConsolidated {
		return nil, NewValidationError("type", "must be FLOW_THROUGH or CONSOLIDATED")
	}
	switch strings.ToUpper(p.InboundRef.Type) {
	case "GRN", "PO", "SHIPMENT":
		p.InboundRef.Type = strings.ToUpper(p.InboundRef.Type)
	default:
		return nil, NewValidationError("inboundRef.type", "must be GRN, PO or SHIPMENT")
	}
	if p.InboundRef.ID == "" {
		return nil, NewValidationError("inboundRef.id", "is required")
	}
	if p.StagingBin == "" {
		return nil, NewValidationError("stagingBin", "is required")
	}
	if len(p.Items) == 0 {
		return nil, NewValidationError("items", "at least one expected product is required")
	}
	total := 0
	for product, qty := range p.Items {
		if qty <= 0 {
			return nil, NewValidationError("items."+product, "must be greater than 0")
		}
		total += qty
	}
	for i, d := range p.Outbound {
		if d.Quantity <= 0 || d.ProductID == "" || d.OrderID == "" || d.DockBin == "" {
			return nil, NewValidationError("outbound", "every demand needs orderId, productId, dockBin and a positive quantity")
		}
		p.Outbound[i].Allocated = 0
	}

	cd := &CrossDock{
		ID:            uuid.NewString(),
		TenantID:      p.TenantID,
		FacilityID:    p.FacilityID,
		WarehouseID:   p.WarehouseID,
		Type:          p.Type,
		Status:        CrossDockPending,
		InboundRef:    p.InboundRef,
		Outbound:      p.Outbound,
		Items:         p.Items,
		Received:      make(map[string]int, len(p.Items)),
		Allocations:   []Allocation{},
		TotalQuantity: total,
		StagingBin:    p.StagingBin,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	cd.record(&CrossDockEvent{Type: EventCrossDockCreated, CrossDockID: cd.ID, Status: string(cd.Status), At: now})
	return cd, nil
}

func (c *CrossDock) invalidState(action string) *InvalidStateError {
	return &InvalidStateError{Resource: "cross-dock", ID: c.ID, Status: string(c.Status), Action: action, State: c}
}

// RecordInbound books a received quantity. The first scan moves PENDING to
// RECEIVING; the record is STAGED once every product is fully received.
// A STAGED or ALLOCATED record takes further receipts only up to its
// shortfall, the outbound demand its received stock cannot cover.
func (c *CrossDock) RecordInbound(productID string, qty int, now time.Time) error {
	topUp := false
	switch c.Status {
	case CrossDockPending, CrossDockReceiving:
	case CrossDockStaged, CrossDockAllocated:
		topUp = true
	default:
		return c.invalidState("receive into")
	}
	if qty <= 0 {
		return NewValidationError("quantity", "must be greater than 0")
	}
	expected, ok := c.Items[productID]
	if !ok {
		return NewValidationError("productId", "product is not expected on this cross-dock")
	}
	if topUp {
		if qty > c.Shortfall(productID) {
			return &ValidationError{Field: "quantity", Message: "over-receipt: quantity exceeds the unmatched outbound demand", State: c}
		}
	} else if c.Received[productID]+qty > expected {
		return &ValidationError{Field: "quantity", Message: "over-receipt: received quantity would exceed the expected quantity", State: c}
	}

	if c.Received == nil {
		c.Received = make(map[string]int)
	}
	c.Received[productID] += qty
	c.ReceivedQuantity += qty
	c.UpdatedAt = now
	if topUp {
		c.TotalQuantity += qty
		c.record(&CrossDockEvent{Type: EventCrossDockReceived, CrossDockID: c.ID, ProductID: productID, Quantity: qty, Status: string(c.Status), At: now})
		return nil
	}
	c.Status = CrossDockReceiving
	c.record(&CrossDockEvent{Type: EventCrossDockReceived, CrossDockID: c.ID, ProductID: productID, Quantity: qty, Status: string(c.Status), At: now})

	if c.fullyReceived() {
		c.Status = CrossDockStaged
		c.record(&CrossDockEvent{Type: EventCrossDockStaged, CrossDockID: c.ID, Status: string(c.Status), At: now})
	}
	return nil
}

// Shortfall is the outbound demand for a product that neither allocations
// nor unallocated received stock cover
func (c *CrossDock) Shortfall(productID string) int {
	demand := 0
	for _, d := range c.Outbound {
		if d.ProductID == productID {
			demand += d.Remaining()
		}
	}
	return max(demand-c.available(productID), 0)
}

func (c *CrossDock) fullyReceived() bool {
	for product, expected := range c.Items {
		if c.Received[product] < expected {
			return false
		}
	}
	return true
}

// available is received stock of a product not yet allocated
func (c *CrossDock) available(productID string) int {
	allocated := 0
	for _, a := range c.Allocations {
		if a.ProductID == productID {
			allocated += a.Quantity
		}
	}
	return c.Received[productID] - allocated
}

// PlannedAllocation is one allocation Match intends to make
type PlannedAllocation struct {
	DemandIndex int
	Demand      OutboundDemand
	Quantity    int
}

// PlanMatch computes greedy FIFO allocations by (scheduledDeparture,
// orderId, productId) without mutating the record.
func (c *CrossDock) PlanMatch() ([]PlannedAllocation, error) {
	if c.Status != CrossDockStaged && c.Status != CrossDockAllocated {
		return nil, c.invalidState("match")
	}

	order := make([]int, len(c.Outbound))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		da, db := c.Outbound[a], c.Outbound[b]
		if !da.ScheduledDeparture.Equal(db.ScheduledDeparture) {
			return da.ScheduledDeparture.Compare(db.ScheduledDeparture)
		}
		if da.OrderID != db.OrderID {
			return strings.Compare(da.OrderID, db.OrderID)
		}
		return strings.Compare(da.ProductID, db.ProductID)
	})

	available := make(map[string]int)
	for product := range c.Received {
		available[product] = c.available(product)
	}
	budget := c.TotalQuantity - c.ProcessedQuantity

	var plan []PlannedAllocation
	for _, idx := range order {
		d := c.Outbound[idx]
		qty := min(available[d.ProductID], d.Remaining(), budget)
		if qty <= 0 {
			continue
		}
		available[d.ProductID] -= qty
		budget -= qty
		plan = append(plan, PlannedAllocation{DemandIndex: idx, Demand: d, Quantity: qty})
	}
	return plan, nil
}

// ApplyAllocation books a planned allocation against its task
func (c *CrossDock) ApplyAllocation(pa PlannedAllocation, taskID string, now time.Time) error {
	if pa.Quantity > c.available(pa.Demand.ProductID) || c.ProcessedQuantity+pa.Quantity > c.TotalQuantity {
		return &ValidationError{Field: "quantity", Message: "allocation exceeds received stock", State: c}
	}
	c.Outbound[pa.DemandIndex].Allocated += pa.Quantity
	c.Allocations = append(c.Allocations, Allocation{
		OrderID: pa.Demand.OrderID, ProductID: pa.Demand.ProductID, Quantity: pa.Quantity, TaskID: taskID,
	})
	c.ProcessedQuantity += pa.Quantity
	c.Status = CrossDockAllocated
	c.UpdatedAt = now
	c.record(&CrossDockEvent{
		Type: EventCrossDockAllocated, CrossDockID: c.ID, ProductID: pa.Demand.ProductID, OrderID: pa.Demand.OrderID,
		TaskID: taskID, Quantity: pa.Quantity, Status: string(c.Status), At: now,
	})
	return nil
}

// TaskIDs lists the CROSS_DOCK tasks created by allocations
func (c *CrossDock) TaskIDs() []string {
	ids := make([]string, 0, len(c.Allocations))
	for _, a := range c.Allocations {
		ids = append(ids, a.TaskID)
	}
	return ids
}

// Depart closes an ALLOCATED record; the caller checks its tasks are terminal
func (c *CrossDock) Depart(now time.Time) error {
	if c.Status != CrossDockAllocated {
		return c.invalidState("depart")
	}
	c.Status = CrossDockDeparted
	c.UpdatedAt = now
	c.record(&CrossDockEvent{Type: EventCrossDockDeparted, CrossDockID: c.ID, Status: string(c.Status), At: now})
	return nil
}

// Cancel halts matching; allocations and processed quantity are kept
func (c *CrossDock) Cancel(reason string, now time.Time) error {
	if c.Status.IsTerminal() {
		return c.invalidState("cancel")
	}
	c.Status = CrossDockCancelled
	c.CancelReason = reason
	c.UpdatedAt = now
	c.record(&CrossDockEvent{Type: EventCrossDockCancelled, CrossDockID: c.ID, Reason: reason, Status: string(c.Status), At: now})
	return nil
}

func (c *CrossDock) record(e DomainEvent) {
	c.events = append(c.events, e)
}

// PullEvents returns and clears the pending domain events
func (c *CrossDock) PullEvents() []DomainEvent {
	events := c.events
	c.events = nil
	return events
}
