// Package report builds spreadsheet exports of sales and inventory
package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"cafepos/internal/models"
)

const (
	SalesSheet     = "Sales"
	InventorySheet = "Inventory"
)

var salesHeader = []string{
	"Order #", "Date", "Type", "Table", "Status", "Items",
	"Subtotal", "Discount", "Tax", "Other Charges", "Rounding", "Grand Total",
	"Payment", "Cashier",
}

var inventoryHeader = []string{
	"Ingredient", "Unit", "Stock", "Min Stock", "Cost Price", "Stock Value", "Status",
}

func newWorkbook(sheet string, header []string) (*excelize.File, int, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, 0, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, 0, err
	}
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, 0, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return nil, 0, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetColWidth(sheet, "A", lastCol, 14); err != nil {
		return nil, 0, err
	}
	return f, bold, nil
}

func setRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	return f.SetSheetRow(sheet, cell, &values)
}

func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

// SalesWorkbook lists order records and totals the finalized ones
func SalesWorkbook(records []models.OrderRecord) (*excelize.File, error) {
	f, bold, err := newWorkbook(SalesSheet, salesHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create sales workbook: %w", err)
	}

	var subtotal, discount, tax, charges, rounding, grand decimal.Decimal
	finalized := 0
	row := 2
	for _, r := range records {
		items := 0
		for _, l := range r.Lines {
			items += l.Quantity
		}
		err := setRow(f, SalesSheet, row,
			r.Sequence, r.CreatedAt.Format(time.DateTime), string(r.Type), r.TableID, string(r.Status), items,
			money(r.Subtotal), money(r.Discount), money(r.Tax), money(r.OtherCharges), money(r.RoundingAdjustment), money(r.GrandTotal),
			r.PaymentMethod, r.CreatedByName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to write order %d: %w", r.Sequence, err)
		}
		row++

		if r.Status != models.OrderStatusFinalized {
			continue
		}
		finalized++
		subtotal = subtotal.Add(r.Subtotal)
		discount = discount.Add(r.Discount)
		tax = tax.Add(r.Tax)
		charges = charges.Add(r.OtherCharges)
		rounding = rounding.Add(r.RoundingAdjustment)
		grand = grand.Add(r.GrandTotal)
	}

	err = setRow(f, SalesSheet, row,
		"Total", fmt.Sprintf("%d finalized", finalized), "", "", "", "",
		money(subtotal), money(discount), money(tax), money(charges), money(rounding), money(grand),
	)
	if err != nil {
		return nil, err
	}
	start, _ := excelize.CoordinatesToCellName(1, row)
	end, _ := excelize.CoordinatesToCellName(len(salesHeader), row)
	if err := f.SetCellStyle(SalesSheet, start, end, bold); err != nil {
		return nil, err
	}
	return f, nil
}

// InventoryWorkbook lists ingredients and marks the ones below minimum stock
func InventoryWorkbook(ingredients []models.Ingredient) (*excelize.File, error) {
	f, _, err := newWorkbook(InventorySheet, inventoryHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create inventory workbook: %w", err)
	}
	low, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "9C0006"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	row := 2
	for _, ing := range ingredients {
		value := decimal.NewFromFloat(ing.CostPrice).Mul(decimal.NewFromFloat(ing.Stock)).Round(2)
		total = total.Add(value)
		status := "OK"
		if ing.IsLowStock() {
			status = "LOW"
		}
		err := setRow(f, InventorySheet, row,
			ing.Name, string(ing.Unit), ing.Stock, ing.MinStock, ing.CostPrice, money(value), status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to write ingredient %s: %w", ing.Name, err)
		}
		if ing.IsLowStock() {
			start, _ := excelize.CoordinatesToCellName(1, row)
			end, _ := excelize.CoordinatesToCellName(len(inventoryHeader), row)
			if err := f.SetCellStyle(InventorySheet, start, end, low); err != nil {
				return nil, err
			}
		}
		row++
	}

	if err := setRow(f, InventorySheet, row, "Total", "", "", "", "", money(total), ""); err != nil {
		return nil, err
	}
	return f, nil
}
