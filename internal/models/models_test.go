package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() Settings {
	return Settings{
		TaxRate:           decimal.NewFromInt(5),
		TaxTiming:         TaxPostDiscount,
		RoundingMode:      RoundingNearest,
		RoundingIncrement: decimal.RequireFromString("0.5"),
		Precision:         2,
	}
}

func TestSettings_Validate(t *testing.T) {
	s := validSettings()
	require.NoError(t, s.Validate())

	cases := map[string]func(*Settings){
		"negative tax":      func(s *Settings) { s.TaxRate = decimal.NewFromInt(-1) },
		"tax over 100":      func(s *Settings) { s.TaxRate = decimal.NewFromInt(101) },
		"unknown timing":    func(s *Settings) { s.TaxTiming = "sideways" },
		"unknown rounding":  func(s *Settings) { s.RoundingMode = "banker" },
		"odd increment":     func(s *Settings) { s.RoundingIncrement = decimal.RequireFromString("0.1") },
		"precision too big": func(s *Settings) { s.Precision = 3 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := validSettings()
			mutate(&s)
			assert.Error(t, s.Validate())
		})
	}

	s = validSettings()
	s.RoundingMode = RoundingNone
	s.RoundingIncrement = decimal.Zero
	assert.NoError(t, s.Validate(), "the increment is ignored without rounding")
}

func TestValidateMenuItem(t *testing.T) {
	item := MenuItem{
		Name:       "Cappuccino",
		BasePrice:  decimal.NewFromInt(150),
		Variations: Variations{{ID: "large", Name: "Large", PriceModifier: decimal.NewFromInt(40)}},
		Addons:     Addons{{ID: "large", Name: "Large Cup", Price: decimal.NewFromInt(10)}},
		Recipe:     Recipe{{IngredientID: "beans", Quantity: 18}},
	}
	require.NoError(t, ValidateMenuItem(&item), "variations and addons have separate id spaces")

	bad := item
	bad.Variations = Variations{{ID: "small", Name: "Small", PriceModifier: decimal.NewFromInt(-200)}}
	assert.ErrorContains(t, ValidateMenuItem(&bad), "negative")

	bad = item
	bad.Variations = append(Variations{}, item.Variations[0], item.Variations[0])
	assert.ErrorContains(t, ValidateMenuItem(&bad), "duplicate variation")

	bad = item
	bad.Variations = Variations{{ID: "decaf", Name: "Decaf", RecipeMode: RecipeModeReplace}}
	assert.ErrorContains(t, ValidateMenuItem(&bad), "lists no ingredients")

	bad = item
	bad.Recipe = Recipe{{IngredientID: "beans", Quantity: 0}}
	assert.ErrorContains(t, ValidateMenuItem(&bad), "quantity")
}

func TestVariation_EffectiveRecipeMode(t *testing.T) {
	assert.Equal(t, RecipeModeNone, Variation{}.EffectiveRecipeMode())
	assert.Equal(t, RecipeModeReplace, Variation{Recipe: Recipe{{IngredientID: "milk", Quantity: 1}}}.EffectiveRecipeMode())
	assert.Equal(t, RecipeModeNone, Variation{RecipeMode: RecipeModeNone, Recipe: Recipe{{IngredientID: "milk", Quantity: 1}}}.EffectiveRecipeMode())
	assert.Equal(t, RecipeModeNone, Variation{RecipeMode: RecipeModeReplace}.EffectiveRecipeMode(), "empty replace keeps the base recipe")
}

func TestMenuItem_CloneIsDeep(t *testing.T) {
	item := &MenuItem{
		Recipe:     Recipe{{IngredientID: "beans", Quantity: 18}},
		Variations: Variations{{ID: "large", Recipe: Recipe{{IngredientID: "beans", Quantity: 27}}}},
		Tags:       StringSlice{"hot"},
	}
	c := item.Clone()
	c.Recipe[0].Quantity = 1
	c.Variations[0].Recipe[0].Quantity = 1
	c.Tags[0] = "iced"

	assert.Equal(t, 18.0, item.Recipe[0].Quantity)
	assert.Equal(t, 27.0, item.Variations[0].Recipe[0].Quantity)
	assert.Equal(t, "hot", item.Tags[0])
}

func TestJSONColumns(t *testing.T) {
	v, err := StringSlice(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var tags StringSlice
	require.NoError(t, tags.Scan([]byte(`["hot","milk"]`)))
	assert.Equal(t, StringSlice{"hot", "milk"}, tags)

	var lines LineItems
	require.NoError(t, lines.Scan(nil))
	assert.NotNil(t, lines)
	assert.Empty(t, lines)

	assert.Error(t, lines.Scan(42))
}

func TestIdentity_Access(t *testing.T) {
	cashier := Identity{UserID: "u1", Role: RoleCashier, Outlets: []string{"o1"}}
	assert.True(t, cashier.CanAccess("o1"))
	assert.False(t, cashier.CanAccess("o2"))
	assert.False(t, cashier.HasRole(RoleAdmin, RoleManager))

	root := Identity{UserID: "u0", Role: RoleSuperAdmin}
	assert.True(t, root.CanAccess("anything"))
	assert.True(t, root.HasRole(RoleManager))
}

func TestOrder_CloneIsDeep(t *testing.T) {
	o := &Order{Lines: LineItems{{ID: "l1", AddonIDs: []string{"vanilla"}, Quantity: 1}}}
	c := o.Clone()
	c.Lines[0].Quantity = 5
	c.Lines[0].AddonIDs[0] = "caramel"

	assert.Equal(t, 1, o.Lines[0].Quantity)
	assert.Equal(t, "vanilla", o.Lines[0].AddonIDs[0])
	assert.True(t, (&Ingredient{Stock: 1, MinStock: 2}).IsLowStock())
}
