package models

import "time"

// Ingredient is a stock-tracked raw material of an outlet
type Ingredient struct {
	ID        string    `gorm:"primary_key" json:"id"`
	OutletID  string    `gorm:"index;not null" json:"outlet_id"`
	Name      string    `gorm:"not null" json:"name"`
	Unit      Unit      `json:"unit"`
	Stock     float64   `gorm:"not null;default:0" json:"stock"`
	MinStock  float64   `gorm:"not null;default:0" json:"min_stock"`
	CostPrice float64   `json:"cost_price,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsLowStock reports whether the stock has fallen below the minimum threshold
func (i *Ingredient) IsLowStock() bool {
	return i.Stock < i.MinStock
}

// Unit is the unit of measure of an ingredient
type Unit string

const (
	// Weight units
	UnitGram     Unit = "g"
	UnitKilogram Unit = "kg"

	// Volume units
	UnitMilliliter Unit = "ml"
	UnitLiter      Unit = "l"

	// Count units
	UnitPiece Unit = "pc"
	UnitBox   Unit = "box"
)

// MovementKind classifies a stock movement
type MovementKind string

const (
	MovementSale       MovementKind = "sale"
	MovementWastage    MovementKind = "wastage"
	MovementRestock    MovementKind = "restock"
	MovementAdjustment MovementKind = "adjustment"
)

// StockMovement records one change to an ingredient's stock
type StockMovement struct {
	ID           uint         `gorm:"primary_key" json:"id"`
	OutletID     string       `gorm:"index;not null" json:"outlet_id"`
	IngredientID string       `gorm:"index;not null" json:"ingredient_id"`
	Kind         MovementKind `gorm:"index;not null" json:"kind"`
	Delta        float64      `json:"delta"`
	PreviousQty  float64      `json:"previous_qty"`
	NewQty       float64      `json:"new_qty"`
	Reference    string       `gorm:"index" json:"reference,omitempty"`
	CreatedBy    string       `json:"created_by,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	CreatedAt    time.Time    `gorm:"index" json:"created_at"`
}
