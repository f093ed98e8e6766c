package models

import "time"

// TableStatus represents the seating state of a table
type TableStatus string

const (
	TableVacant   TableStatus = "vacant"
	TableOccupied TableStatus = "occupied"
	TableBilling  TableStatus = "billing"
)

// Table is a dine-in table of an outlet
type Table struct {
	ID             string      `gorm:"primary_key" json:"id"`
	OutletID       string      `gorm:"index;not null" json:"outlet_id"`
	Name           string      `gorm:"not null" json:"name"`
	Capacity       int         `json:"capacity"`
	Status         TableStatus `gorm:"not null;default:'vacant'" json:"status"`
	CurrentOrderID string      `json:"current_order_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
