package database

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"cafepos/internal/models"
)

// SeedID is the id of a demo record of an outlet
func SeedID(outletID, name string) string {
	return outletID + "-" + name
}

// Seed creates a demo outlet with a small cafe menu, stock and tables.
// It does nothing when the outlet already has menu items.
func Seed(ctx context.Context, s *Store, outletID string, settings models.Settings) error {
	existing, err := s.ListMenuItems(ctx, outletID)
	if err != nil {
		return fmt.Errorf("failed to check existing menu: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	if err := s.SaveOutlet(ctx, &models.Outlet{ID: outletID, Name: "Demo Cafe"}); err != nil {
		return fmt.Errorf("failed to seed outlet: %w", err)
	}

	settings.OutletID = outletID
	if err := s.SaveSettings(ctx, &settings); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}

	ingredients := []models.Ingredient{
		{ID: SeedID(outletID, "beans"), Name: "Coffee Beans", Unit: models.UnitGram, Stock: 5000, MinStock: 500},
		{ID: SeedID(outletID, "milk"), Name: "Milk", Unit: models.UnitMilliliter, Stock: 20000, MinStock: 2000},
		{ID: SeedID(outletID, "syrup"), Name: "Vanilla Syrup", Unit: models.UnitMilliliter, Stock: 1000, MinStock: 100},
		{ID: SeedID(outletID, "cups-s"), Name: "Cup (Regular)", Unit: models.UnitPiece, Stock: 300, MinStock: 50},
		{ID: SeedID(outletID, "cups-l"), Name: "Cup (Large)", Unit: models.UnitPiece, Stock: 200, MinStock: 50},
	}
	for i := range ingredients {
		ingredients[i].OutletID = outletID
		if err := s.CreateIngredient(ctx, &ingredients[i]); err != nil {
			return fmt.Errorf("failed to seed ingredient %s: %w", ingredients[i].Name, err)
		}
	}

	coffee := models.MenuCategory{ID: SeedID(outletID, "coffee"), OutletID: outletID, Name: "Coffee", SortOrder: 1}
	if err := s.SaveCategory(ctx, &coffee); err != nil {
		return fmt.Errorf("failed to seed category: %w", err)
	}

	items := []models.MenuItem{
		{
			ID:         SeedID(outletID, "cappuccino"),
			Name:       "Cappuccino",
			BasePrice:  decimal.NewFromInt(150),
			CategoryID: coffee.ID,
			Tags:       models.StringSlice{"hot", "milk"},
			Available:  true,
			Recipe: models.Recipe{
				{IngredientID: SeedID(outletID, "beans"), Quantity: 18},
				{IngredientID: SeedID(outletID, "milk"), Quantity: 150},
				{IngredientID: SeedID(outletID, "cups-s"), Quantity: 1},
			},
			Variations: models.Variations{
				{
					ID:            "large",
					Name:          "Large",
					PriceModifier: decimal.NewFromInt(40),
					RecipeMode:    models.RecipeModeReplace,
					Recipe: models.Recipe{
						{IngredientID: SeedID(outletID, "beans"), Quantity: 27},
						{IngredientID: SeedID(outletID, "milk"), Quantity: 240},
						{IngredientID: SeedID(outletID, "cups-l"), Quantity: 1},
					},
				},
			},
			Addons: models.Addons{
				{ID: "vanilla", Name: "Vanilla Syrup", Price: decimal.NewFromInt(30), Recipe: models.Recipe{{IngredientID: SeedID(outletID, "syrup"), Quantity: 15}}},
				{ID: "extra-shot", Name: "Extra Shot", Price: decimal.NewFromInt(40), Recipe: models.Recipe{{IngredientID: SeedID(outletID, "beans"), Quantity: 9}}},
			},
		},
		{
			ID:         SeedID(outletID, "espresso"),
			Name:       "Espresso",
			BasePrice:  decimal.NewFromInt(120),
			CategoryID: coffee.ID,
			Available:  true,
			Recipe: models.Recipe{
				{IngredientID: SeedID(outletID, "beans"), Quantity: 18},
				{IngredientID: SeedID(outletID, "cups-s"), Quantity: 1},
			},
		},
	}
	for i := range items {
		items[i].OutletID = outletID
		if err := s.SaveMenuItem(ctx, &items[i]); err != nil {
			return fmt.Errorf("failed to seed menu item %s: %w", items[i].Name, err)
		}
	}

	for i := 1; i <= 6; i++ {
		t := models.Table{
			ID:       SeedID(outletID, fmt.Sprintf("t%d", i)),
			OutletID: outletID,
			Name:     fmt.Sprintf("T%d", i),
			Capacity: 4,
			Status:   models.TableVacant,
		}
		if err := s.SaveTable(ctx, &t); err != nil {
			return fmt.Errorf("failed to seed table %s: %w", t.Name, err)
		}
	}
	return nil
}
