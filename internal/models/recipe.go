package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringSlice represents a slice of strings that can be stored in the database,
// such as the tags of a menu item
type StringSlice []string

// Value converts the slice to a JSON string for storage
func (s StringSlice) Value() (driver.Value, error) {
	return jsonValue(s, len(s))
}

// Scan converts the database value back to a slice
func (s *StringSlice) Scan(value interface{}) error {
	return scanJSON(value, s, func() { *s = StringSlice{} })
}

// RecipeLine is the quantity of one ingredient consumed when one unit is sold.
type RecipeLine struct {
	IngredientID string  `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
}

// Recipe is the list of ingredients consumed per unit of a menu item,
// variation or addon.
type Recipe []RecipeLine

// Value converts the recipe to a JSON string for storage
func (r Recipe) Value() (driver.Value, error) {
	return jsonValue(r, len(r))
}

// Scan converts the database value back to a recipe
func (r *Recipe) Scan(value interface{}) error {
	return scanJSON(value, r, func() { *r = Recipe{} })
}

// Clone returns an independent copy of the recipe.
func (r Recipe) Clone() Recipe {
	if r == nil {
		return nil
	}
	out := make(Recipe, len(r))
	copy(out, r)
	return out
}

// RecipeMode states how a variation's recipe relates to the base recipe.
type RecipeMode string

const (
	// RecipeModeReplace uses the variation's recipe instead of the base recipe
	// as long as the variation lists ingredients.
	RecipeModeReplace RecipeMode = "replace"
	// RecipeModeNone leaves the base recipe in effect.
	RecipeModeNone RecipeMode = "none"
)

// jsonValue encodes a slice column as JSON text. Empty slices store "[]".
func jsonValue(v interface{}, n int) (driver.Value, error) {
	if n == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// scanJSON decodes a JSON text column into dst. empty is called for NULL.
func scanJSON(value interface{}, dst interface{}, empty func()) error {
	if value == nil {
		empty()
		return nil
	}

	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			empty()
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			empty()
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported type for JSON column")
	}
}
