// Package pricing derives the monetary figures of an order from its line
// items, discount and the outlet's tax and rounding settings. Every function
// in this package is pure.
package pricing

import (
	"github.com/shopspring/decimal"

	"cafepos/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Config holds the tax and rounding inputs of the calculator
type Config struct {
	TaxRate           decimal.Decimal
	TaxTiming         models.TaxTiming
	RoundingMode      models.RoundingMode
	RoundingIncrement decimal.Decimal
	Precision         int32
}

// FromSettings builds a calculator config from outlet settings
func FromSettings(s models.Settings) Config {
	return Config{
		TaxRate:           s.TaxRate,
		TaxTiming:         s.TaxTiming,
		RoundingMode:      s.RoundingMode,
		RoundingIncrement: s.RoundingIncrement,
		Precision:         s.Precision,
	}
}

// UnitPrice is the base price plus the variation modifier plus every addon price
func UnitPrice(item *models.MenuItem, variation *models.Variation, addons []models.Addon) decimal.Decimal {
	price := item.BasePrice
	if variation != nil {
		price = price.Add(variation.PriceModifier)
	}
	for _, a := range addons {
		price = price.Add(a.Price)
	}
	return price
}

// LineTotal is unit price times quantity
func LineTotal(line models.LineItem) decimal.Decimal {
	return line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
}

// Subtotal sums the line totals, recomputed from unit price and quantity
func Subtotal(lines []models.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(LineTotal(line))
	}
	return sum
}

// Calculate derives subtotal, tax, discount and grand total.
//
// The applied discount is clamped to [0, subtotal]. Tax is computed on the
// discounted amount for post_discount timing and on the subtotal for
// pre_discount timing, then rounded half-up to the configured precision.
// The rounding mode only ever touches the grand total.
func Calculate(lines []models.LineItem, discount, otherCharges decimal.Decimal, cfg Config) models.Totals {
	subtotal := Subtotal(lines)

	applied := discount
	if applied.IsNegative() {
		applied = decimal.Zero
	}
	if applied.GreaterThan(subtotal) {
		applied = subtotal
	}

	taxable := subtotal.Sub(applied)
	if cfg.TaxTiming == models.TaxPreDiscount {
		taxable = subtotal
	}
	tax := taxable.Mul(cfg.TaxRate).Div(hundred).Round(cfg.Precision)

	raw := subtotal.Sub(applied).Add(tax).Add(otherCharges)
	grand := RoundTotal(raw, cfg)

	return models.Totals{
		Subtotal:           subtotal,
		Discount:           applied,
		Taxable:            taxable,
		Tax:                tax,
		OtherCharges:       otherCharges,
		RoundingAdjustment: grand.Sub(raw),
		GrandTotal:         grand,
	}
}

// RoundTotal applies the rounding mode and increment, then the precision
func RoundTotal(amount decimal.Decimal, cfg Config) decimal.Decimal {
	inc := cfg.RoundingIncrement
	if inc.IsZero() || inc.IsNegative() {
		inc = decimal.NewFromInt(1)
	}

	switch cfg.RoundingMode {
	case models.RoundingUp:
		amount = amount.Div(inc).Ceil().Mul(inc)
	case models.RoundingDown:
		amount = amount.Div(inc).Floor().Mul(inc)
	case models.RoundingNearest:
		amount = amount.Div(inc).Round(0).Mul(inc)
	}
	return amount.Round(cfg.Precision)
}
