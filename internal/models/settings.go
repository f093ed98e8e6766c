package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TaxTiming selects whether tax is computed before or after the discount
type TaxTiming string

const (
	// TaxPostDiscount taxes the discounted amount ("backward" tax)
	TaxPostDiscount TaxTiming = "post_discount"
	// TaxPreDiscount taxes the full subtotal ("forward" tax)
	TaxPreDiscount TaxTiming = "pre_discount"
)

// RoundingMode selects how the grand total is rounded
type RoundingMode string

const (
	RoundingNone    RoundingMode = "none"
	RoundingUp      RoundingMode = "up"
	RoundingDown    RoundingMode = "down"
	RoundingNearest RoundingMode = "nearest"
)

// Settings are the per-outlet POS settings consumed by pricing
type Settings struct {
	OutletID          string          `gorm:"primary_key" json:"outlet_id"`
	TaxRate           decimal.Decimal `gorm:"type:decimal(6,3)" json:"tax_rate"`
	TaxTiming         TaxTiming       `json:"tax_timing"`
	RoundingMode      RoundingMode    `json:"rounding_mode"`
	RoundingIncrement decimal.Decimal `gorm:"type:decimal(6,3)" json:"rounding_increment"`
	Precision         int32           `json:"precision"`
	Currency          string          `json:"currency,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

var allowedIncrements = []decimal.Decimal{
	decimal.NewFromInt(1),
	decimal.RequireFromString("0.5"),
	decimal.RequireFromString("0.25"),
}

// Validate checks the settings for supported values
func (s *Settings) Validate() error {
	if s.TaxRate.IsNegative() || s.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("tax rate must be between 0 and 100")
	}
	switch s.TaxTiming {
	case TaxPostDiscount, TaxPreDiscount:
	default:
		return fmt.Errorf("unknown tax timing %q", s.TaxTiming)
	}
	switch s.RoundingMode {
	case RoundingNone:
	case RoundingUp, RoundingDown, RoundingNearest:
		ok := false
		for _, inc := range allowedIncrements {
			if s.RoundingIncrement.Equal(inc) {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("rounding increment must be 1, 0.5 or 0.25")
		}
	default:
		return fmt.Errorf("unknown rounding mode %q", s.RoundingMode)
	}
	if s.Precision < 0 || s.Precision > 2 {
		return fmt.Errorf("precision must be 0, 1 or 2")
	}
	return nil
}

// OrderCounter is the per-outlet sequence document
type OrderCounter struct {
	OutletID  string    `gorm:"primary_key" json:"outlet_id"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Outlet is a single cafe location that owns its menu, tables and stock
type Outlet struct {
	ID        string    `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
