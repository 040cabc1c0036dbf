package domain

import "time"

// Picklist is the upstream unit of order demand, read from the picklist service
type Picklist struct {
	ID           string         `json:"id"`
	OrderID      string         `json:"orderId"`
	WarehouseID  string         `json:"warehouse"`
	Zone         string         `json:"zone"`
	Priority     Priority       `json:"priority"`
	Channel      string         `json:"channel"`
	CustomerType string         `json:"customerType"`
	Carrier      string         `json:"carrier"`
	CutoffAt     *time.Time     `json:"cutoffAt,omitempty"`
	DueAt        *time.Time     `json:"dueAt,omitempty"`
	Items        []PicklistItem `json:"items"`
}

// PicklistItem is one pick line
type PicklistItem struct {
	LineID     string  `json:"lineId"`
	ProductID  string  `json:"productId"`
	SKU        string  `json:"sku"`
	Bin        string  `json:"bin"`
	Quantity   int     `json:"quantity"`
	UnitWeight float64 `json:"unitWeight"`
}

// TotalQuantity sums the line quantities
func (p Picklist) TotalQuantity() int {
	total := 0
	for _, item := range p.Items {
		total += item.Quantity
	}
	return total
}
