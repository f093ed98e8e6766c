// Package stock turns sold line items into ingredient usage and applies the
// resulting deductions to ingredient stock.
package stock

import (
	"context"
	"fmt"

	"cafepos/internal/models"
)

// Missing reference kinds
const (
	KindMenuItem   = "menu_item"
	KindIngredient = "ingredient"
)

// MenuLookup resolves menu items of an outlet
type MenuLookup interface {
	MenuItem(ctx context.Context, outletID, itemID string) (*models.MenuItem, bool, error)
}

// Usage is the total quantity consumed per ingredient id
type Usage map[string]float64

// MissingReference is a recipe reference whose target no longer exists
type MissingReference struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	LineID string `json:"line_id,omitempty"`
}

// ResolveLine returns the per-unit recipe of one line item.
//
// A selected variation in replace mode supplies the recipe instead of the
// base item; otherwise the base recipe applies. Addon recipes are always
// added on top.
func ResolveLine(item *models.MenuItem, line models.LineItem) models.Recipe {
	var out models.Recipe

	base := item.Recipe
	if line.VariationID != "" {
		if v, ok := item.FindVariation(line.VariationID); ok && v.EffectiveRecipeMode() == models.RecipeModeReplace {
			base = v.Recipe
		}
	}
	out = append(out, base...)

	for _, id := range line.AddonIDs {
		if a, ok := item.FindAddon(id); ok {
			out = append(out, a.Recipe...)
		}
	}
	return out
}

// Aggregate sums the ingredient usage of every line before anything is written.
// Lines whose menu item no longer exists are reported and skipped.
func Aggregate(ctx context.Context, outletID string, lines []models.LineItem, menu MenuLookup) (Usage, []MissingReference, error) {
	usage := make(Usage)
	var missing []MissingReference

	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		item, ok, err := menu.MenuItem(ctx, outletID, line.MenuItemID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to look up menu item %s: %w", line.MenuItemID, err)
		}
		if !ok {
			missing = append(missing, MissingReference{Kind: KindMenuItem, ID: line.MenuItemID, LineID: line.ID})
			continue
		}
		for _, r := range ResolveLine(item, line) {
			usage[r.IngredientID] += r.Quantity * float64(line.Quantity)
		}
	}
	return usage, missing, nil
}
