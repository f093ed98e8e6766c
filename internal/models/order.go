package models

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"
)

// OrderType represents how the order is served
type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
)

// Valid reports whether t is a known order type
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery:
		return true
	}
	return false
}

// OrderStatus represents the possible states of a persisted order
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusHeld      OrderStatus = "held"
	OrderStatusFinalized OrderStatus = "finalized"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Closed reports a finalized or cancelled order, whose record never changes again
func (s OrderStatus) Closed() bool {
	return s == OrderStatusFinalized || s == OrderStatusCancelled
}

// LineItem is one row of an order
type LineItem struct {
	ID          string          `json:"id"`
	MenuItemID  string          `json:"menu_item_id"`
	VariationID string          `json:"variation_id,omitempty"`
	AddonIDs    []string        `json:"addon_ids,omitempty"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Notes       string          `json:"notes,omitempty"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// LineItems is stored as a JSON text column
type LineItems []LineItem

// Value converts the line items to JSON for storage
func (l LineItems) Value() (driver.Value, error) {
	return jsonValue(l, len(l))
}

// Scan converts the database value back to line items
func (l *LineItems) Scan(value interface{}) error {
	return scanJSON(value, l, func() { *l = LineItems{} })
}

// Clone returns a deep copy of the line items
func (l LineItems) Clone() LineItems {
	if l == nil {
		return nil
	}
	out := make(LineItems, len(l))
	for i, line := range l {
		if line.AddonIDs != nil {
			line.AddonIDs = append([]string(nil), line.AddonIDs...)
		}
		out[i] = line
	}
	return out
}

// Order is an in-progress order held in memory while it is being composed
type Order struct {
	ID           string          `json:"id"`
	OutletID     string          `json:"outlet_id"`
	Sequence     int64           `json:"sequence"`
	Type         OrderType       `json:"type"`
	TableID      string          `json:"table_id,omitempty"`
	Lines        LineItems       `json:"lines"`
	Discount     decimal.Decimal `json:"discount"`
	OtherCharges decimal.Decimal `json:"other_charges"`
	Held         bool            `json:"held"`
	CreatedBy    string          `json:"created_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Clone returns a deep copy of the order
func (o *Order) Clone() *Order {
	out := *o
	out.Lines = o.Lines.Clone()
	return &out
}

// Totals are the monetary figures derived from an order
type Totals struct {
	Subtotal           decimal.Decimal `json:"subtotal"`
	Discount           decimal.Decimal `json:"discount"`
	Taxable            decimal.Decimal `json:"taxable"`
	Tax                decimal.Decimal `json:"tax"`
	OtherCharges       decimal.Decimal `json:"other_charges"`
	RoundingAdjustment decimal.Decimal `json:"rounding_adjustment"`
	GrandTotal         decimal.Decimal `json:"grand_total"`
}

// OrderRecord is the persisted snapshot of an order
type OrderRecord struct {
	ID                 string          `gorm:"primary_key" json:"id"`
	OutletID           string          `gorm:"index;not null" json:"outlet_id"`
	Sequence           int64           `gorm:"index" json:"sequence"`
	Type               OrderType       `json:"type"`
	TableID            string          `gorm:"index" json:"table_id,omitempty"`
	Status             OrderStatus     `gorm:"index;not null" json:"status"`
	Lines              LineItems       `gorm:"type:text" json:"lines"`
	Subtotal           decimal.Decimal `gorm:"type:decimal(12,4)" json:"subtotal"`
	Discount           decimal.Decimal `gorm:"type:decimal(12,4)" json:"discount"`
	Tax                decimal.Decimal `gorm:"type:decimal(12,4)" json:"tax"`
	OtherCharges       decimal.Decimal `gorm:"type:decimal(12,4)" json:"other_charges"`
	RoundingAdjustment decimal.Decimal `gorm:"type:decimal(12,4)" json:"rounding_adjustment"`
	GrandTotal         decimal.Decimal `gorm:"type:decimal(12,4)" json:"grand_total"`
	TaxRate            decimal.Decimal `gorm:"type:decimal(6,3)" json:"tax_rate"`
	PaymentMethod      string          `json:"payment_method,omitempty"`
	CreatedBy          string          `json:"created_by,omitempty"`
	CreatedByName      string          `json:"created_by_name,omitempty"`
	CreatedAt          time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	ClosedAt           *time.Time      `json:"closed_at,omitempty"`
}

// TableName keeps the persisted snapshots in the orders collection
func (OrderRecord) TableName() string {
	return "orders"
}

// NewOrderRecord builds a persisted snapshot from an order and its totals
func NewOrderRecord(o *Order, totals Totals, status OrderStatus) *OrderRecord {
	return &OrderRecord{
		ID:                 o.ID,
		OutletID:           o.OutletID,
		Sequence:           o.Sequence,
		Type:               o.Type,
		TableID:            o.TableID,
		Status:             status,
		Lines:              o.Lines.Clone(),
		Subtotal:           totals.Subtotal,
		Discount:           totals.Discount,
		Tax:                totals.Tax,
		OtherCharges:       totals.OtherCharges,
		RoundingAdjustment: totals.RoundingAdjustment,
		GrandTotal:         totals.GrandTotal,
		CreatedBy:          o.CreatedBy,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

// ToOrder rebuilds an in-progress order from an open or held snapshot
func (r *OrderRecord) ToOrder() *Order {
	return &Order{
		ID:           r.ID,
		OutletID:     r.OutletID,
		Sequence:     r.Sequence,
		Type:         r.Type,
		TableID:      r.TableID,
		Lines:        r.Lines.Clone(),
		Discount:     r.Discount,
		OtherCharges: r.OtherCharges,
		Held:         r.Status == OrderStatusHeld,
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
