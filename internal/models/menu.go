package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MenuItem represents a sellable item on an outlet's menu
type MenuItem struct {
	ID         string          `gorm:"primary_key" json:"id"`
	OutletID   string          `gorm:"index;not null" json:"outlet_id"`
	Name       string          `gorm:"not null" json:"name"`
	BasePrice  decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"base_price"`
	CategoryID string          `gorm:"index" json:"category_id,omitempty"`
	Variations Variations      `gorm:"type:text" json:"variations,omitempty"`
	Addons     Addons          `gorm:"type:text" json:"addons,omitempty"`
	Recipe     Recipe          `gorm:"type:text" json:"recipe,omitempty"`
	Tags       StringSlice     `gorm:"type:text" json:"tags,omitempty"`
	Available  bool            `json:"available"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Variation is a named pricing and recipe alternative for a menu item (e.g. size)
type Variation struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
	RecipeMode    RecipeMode      `json:"recipe_mode,omitempty"`
	Recipe        Recipe          `json:"recipe,omitempty"`
}

// EffectiveRecipeMode resolves the mode used when stock is deducted. Only a
// variation carrying ingredients replaces the base recipe; an empty recipe
// keeps the base whatever mode was stored.
func (v Variation) EffectiveRecipeMode() RecipeMode {
	if len(v.Recipe) == 0 || v.RecipeMode == RecipeModeNone {
		return RecipeModeNone
	}
	return RecipeModeReplace
}

// Addon is an optional paid extra attached to a line item
type Addon struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Recipe Recipe          `json:"recipe,omitempty"`
}

// Variations is stored as a JSON text column
type Variations []Variation

// Value converts the variations to JSON for storage
func (v Variations) Value() (driver.Value, error) {
	return jsonValue(v, len(v))
}

// Scan converts the database value back to variations
func (v *Variations) Scan(value interface{}) error {
	return scanJSON(value, v, func() { *v = Variations{} })
}

// Addons is stored as a JSON text column
type Addons []Addon

// Value converts the addons to JSON for storage
func (a Addons) Value() (driver.Value, error) {
	return jsonValue(a, len(a))
}

// Scan converts the database value back to addons
func (a *Addons) Scan(value interface{}) error {
	return scanJSON(value, a, func() { *a = Addons{} })
}

// MenuCategory groups menu items for display
type MenuCategory struct {
	ID        string    `gorm:"primary_key" json:"id"`
	OutletID  string    `gorm:"index;not null" json:"outlet_id"`
	Name      string    `gorm:"not null" json:"name"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FindVariation returns the variation with the given id
func (mi *MenuItem) FindVariation(id string) (Variation, bool) {
	for _, v := range mi.Variations {
		if v.ID == id {
			return v, true
		}
	}
	return Variation{}, false
}

// FindAddon returns the addon with the given id
func (mi *MenuItem) FindAddon(id string) (Addon, bool) {
	for _, a := range mi.Addons {
		if a.ID == id {
			return a, true
		}
	}
	return Addon{}, false
}

// Clone returns a deep copy of the menu item
func (mi *MenuItem) Clone() *MenuItem {
	out := *mi
	out.Recipe = mi.Recipe.Clone()
	if mi.Tags != nil {
		out.Tags = append(StringSlice(nil), mi.Tags...)
	}
	if mi.Variations != nil {
		out.Variations = make(Variations, len(mi.Variations))
		for i, v := range mi.Variations {
			v.Recipe = v.Recipe.Clone()
			out.Variations[i] = v
		}
	}
	if mi.Addons != nil {
		out.Addons = make(Addons, len(mi.Addons))
		for i, a := range mi.Addons {
			a.Recipe = a.Recipe.Clone()
			out.Addons[i] = a
		}
	}
	return &out
}

// ValidateMenuItem validates a menu item
func ValidateMenuItem(item *MenuItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("menu item name is required")
	}
	if item.BasePrice.IsNegative() {
		return fmt.Errorf("menu item price cannot be negative")
	}
	seen := make(map[string]bool)
	for _, v := range item.Variations {
		if v.ID == "" || v.Name == "" {
			return fmt.Errorf("variation id and name are required")
		}
		if seen["v:"+v.ID] {
			return fmt.Errorf("duplicate variation id %q", v.ID)
		}
		seen["v:"+v.ID] = true
		if item.BasePrice.Add(v.PriceModifier).IsNegative() {
			return fmt.Errorf("variation %q makes the price negative", v.Name)
		}
		if v.RecipeMode == RecipeModeReplace && len(v.Recipe) == 0 {
			return fmt.Errorf("variation %q replaces the recipe but lists no ingredients", v.Name)
		}
		if err := validateRecipe(v.Recipe); err != nil {
			return fmt.Errorf("variation %q: %w", v.Name, err)
		}
	}
	for _, a := range item.Addons {
		if a.ID == "" || a.Name == "" {
			return fmt.Errorf("addon id and name are required")
		}
		if seen["a:"+a.ID] {
			return fmt.Errorf("duplicate addon id %q", a.ID)
		}
		seen["a:"+a.ID] = true
		if a.Price.IsNegative() {
			return fmt.Errorf("addon %q price cannot be negative", a.Name)
		}
		if err := validateRecipe(a.Recipe); err != nil {
			return fmt.Errorf("addon %q: %w", a.Name, err)
		}
	}
	return validateRecipe(item.Recipe)
}

func validateRecipe(r Recipe) error {
	for _, line := range r {
		if line.IngredientID == "" {
			return fmt.Errorf("recipe ingredient is required")
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("recipe quantity must be greater than 0")
		}
	}
	return nil
}
