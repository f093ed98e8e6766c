package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/models"
	"cafepos/internal/monitoring"
)

type fakeMenu map[string]*models.MenuItem

func (f fakeMenu) MenuItem(_ context.Context, _ string, id string) (*models.MenuItem, bool, error) {
	item, ok := f[id]
	return item, ok, nil
}

const outlet = "outlet-1"

func latte() *models.MenuItem {
	return &models.MenuItem{
		ID:        "latte",
		Name:      "Latte",
		BasePrice: decimal.NewFromInt(160),
		Recipe:    models.Recipe{{IngredientID: "A", Quantity: 10}},
		Variations: models.Variations{
			{ID: "iced", Name: "Iced", RecipeMode: models.RecipeModeReplace, Recipe: models.Recipe{{IngredientID: "B", Quantity: 5}}},
			{ID: "small", Name: "Small", RecipeMode: models.RecipeModeNone, Recipe: models.Recipe{{IngredientID: "B", Quantity: 1}}},
			{ID: "large", Name: "Large", PriceModifier: decimal.NewFromInt(40)},
			{ID: "oat", Name: "Oat", Recipe: models.Recipe{{IngredientID: "D", Quantity: 7}}},
			{ID: "decaf", Name: "Decaf", RecipeMode: models.RecipeModeReplace},
		},
		Addons: models.Addons{
			{ID: "syrup", Name: "Syrup", Price: decimal.NewFromInt(20), Recipe: models.Recipe{{IngredientID: "C", Quantity: 3}}},
			{ID: "straw", Name: "Straw"},
		},
	}
}

func TestResolveLine(t *testing.T) {
	item := latte()

	tests := []struct {
		name string
		line models.LineItem
		want models.Recipe
	}{
		{"base recipe", models.LineItem{}, models.Recipe{{IngredientID: "A", Quantity: 10}}},
		{"replace variation", models.LineItem{VariationID: "iced"}, models.Recipe{{IngredientID: "B", Quantity: 5}}},
		{"none mode keeps base", models.LineItem{VariationID: "small"}, models.Recipe{{IngredientID: "A", Quantity: 10}}},
		{"variation without recipe keeps base", models.LineItem{VariationID: "large"}, models.Recipe{{IngredientID: "A", Quantity: 10}}},
		{"replace mode with empty recipe keeps base", models.LineItem{VariationID: "decaf"}, models.Recipe{{IngredientID: "A", Quantity: 10}}},
		{"unset mode with recipe replaces", models.LineItem{VariationID: "oat"}, models.Recipe{{IngredientID: "D", Quantity: 7}}},
		{"addon is additive", models.LineItem{AddonIDs: []string{"syrup"}}, models.Recipe{{IngredientID: "A", Quantity: 10}, {IngredientID: "C", Quantity: 3}}},
		{"addon on replaced variation", models.LineItem{VariationID: "iced", AddonIDs: []string{"syrup", "straw"}}, models.Recipe{{IngredientID: "B", Quantity: 5}, {IngredientID: "C", Quantity: 3}}},
		{"deleted variation keeps base", models.LineItem{VariationID: "gone"}, models.Recipe{{IngredientID: "A", Quantity: 10}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveLine(item, tt.line))
		})
	}
}

func TestResolveLine_NoRecipe(t *testing.T) {
	item := &models.MenuItem{ID: "water", Name: "Water"}
	assert.Empty(t, ResolveLine(item, models.LineItem{Quantity: 1}))
}

func TestAggregate_GroupsByIngredient(t *testing.T) {
	menu := fakeMenu{"latte": latte()}
	lines := []models.LineItem{
		{ID: "l1", MenuItemID: "latte", Quantity: 2},
		{ID: "l2", MenuItemID: "latte", AddonIDs: []string{"syrup"}, Quantity: 1},
		{ID: "l3", MenuItemID: "latte", VariationID: "iced", AddonIDs: []string{"syrup"}, Quantity: 3},
		{ID: "l4", MenuItemID: "deleted", Quantity: 1},
	}

	usage, missing, err := Aggregate(context.Background(), outlet, lines, menu)
	require.NoError(t, err)

	assert.Equal(t, Usage{"A": 30, "B": 15, "C": 12}, usage)
	require.Len(t, missing, 1)
	assert.Equal(t, MissingReference{Kind: KindMenuItem, ID: "deleted", LineID: "l4"}, missing[0])
}

func seededStore() *MemoryStore {
	s := NewMemoryStore()
	s.Put(models.Ingredient{ID: "A", OutletID: outlet, Name: "Milk", Stock: 100, MinStock: 20})
	s.Put(models.Ingredient{ID: "B", OutletID: outlet, Name: "Ice", Stock: 50, MinStock: 10})
	s.Put(models.Ingredient{ID: "C", OutletID: outlet, Name: "Syrup", Stock: 4, MinStock: 2})
	return s
}

func TestDeductOrder_VariationOverride(t *testing.T) {
	store := seededStore()
	d := NewDeductor(store, fakeMenu{"latte": latte()}, nil, nil)

	order := &models.Order{ID: "o1", OutletID: outlet, Lines: models.LineItems{
		{ID: "l1", MenuItemID: "latte", VariationID: "iced", Quantity: 1},
	}}
	report, err := d.DeductOrder(context.Background(), order, "u1")
	require.NoError(t, err)

	a, _ := store.Get(outlet, "A")
	b, _ := store.Get(outlet, "B")
	assert.Equal(t, 100.0, a.Stock, "base recipe must not be deducted")
	assert.Equal(t, 45.0, b.Stock)
	require.Len(t, report.Deductions, 1)
	assert.Equal(t, "B", report.Deductions[0].IngredientID)
}

func TestDeductOrder_AddonAdditivity(t *testing.T) {
	store := seededStore()
	d := NewDeductor(store, fakeMenu{"latte": latte()}, nil, nil)

	order := &models.Order{ID: "o1", OutletID: outlet, Lines: models.LineItems{
		{ID: "l1", MenuItemID: "latte", AddonIDs: []string{"syrup"}, Quantity: 1},
	}}
	_, err := d.DeductOrder(context.Background(), order, "u1")
	require.NoError(t, err)

	a, _ := store.Get(outlet, "A")
	c, _ := store.Get(outlet, "C")
	assert.Equal(t, 90.0, a.Stock)
	assert.Equal(t, 1.0, c.Stock)
}

func TestApply_NeverNegative(t *testing.T) {
	store := seededStore()
	d := NewDeductor(store, fakeMenu{}, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d.Apply(ctx, outlet, Usage{"A": 37, "C": 3}, "o", "u1")
	}

	a, _ := store.Get(outlet, "A")
	c, _ := store.Get(outlet, "C")
	assert.Equal(t, 0.0, a.Stock)
	assert.Equal(t, 0.0, c.Stock)
	for _, mv := range store.Movements() {
		assert.GreaterOrEqual(t, mv.NewQty, 0.0)
	}
}

func TestApply_ReportsClampAndLowStock(t *testing.T) {
	store := seededStore()
	d := NewDeductor(store, fakeMenu{}, nil, nil)

	report := d.Apply(context.Background(), outlet, Usage{"A": 85, "C": 10}, "o1", "u1")

	require.Len(t, report.Deductions, 2)
	milk := report.Deductions[0]
	assert.Equal(t, "A", milk.IngredientID)
	assert.Equal(t, 15.0, milk.New)
	assert.True(t, milk.BecameLow)
	assert.False(t, milk.Clamped)

	syrup := report.Deductions[1]
	assert.Equal(t, 0.0, syrup.New)
	assert.True(t, syrup.Clamped)

	assert.Len(t, report.LowStock, 2)
}

func TestApply_SkipsMissingIngredient(t *testing.T) {
	store := seededStore()
	metrics := monitoring.NewMetrics()
	d := NewDeductor(store, fakeMenu{}, metrics, nil)

	report := d.Apply(context.Background(), outlet, Usage{"A": 10, "ghost": 5}, "o1", "u1")

	require.Len(t, report.Deductions, 1)
	require.Len(t, report.Missing, 1)
	assert.Equal(t, MissingReference{Kind: KindIngredient, ID: "ghost"}, report.Missing[0])

	a, _ := store.Get(outlet, "A")
	assert.Equal(t, 90.0, a.Stock)
}

type flakyStore struct {
	*MemoryStore
	failOn string
}

func (f flakyStore) Adjust(ctx context.Context, mv Movement) (Result, error) {
	if mv.IngredientID == f.failOn {
		return Result{}, errors.New("write timeout")
	}
	return f.MemoryStore.Adjust(ctx, mv)
}

func TestApply_FailureDoesNotAbort(t *testing.T) {
	mem := seededStore()
	d := NewDeductor(flakyStore{MemoryStore: mem, failOn: "A"}, fakeMenu{}, nil, nil)

	report := d.Apply(context.Background(), outlet, Usage{"A": 10, "B": 5}, "o1", "u1")

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "A", report.Failures[0].IngredientID)
	require.Len(t, report.Deductions, 1)

	b, _ := mem.Get(outlet, "B")
	assert.Equal(t, 45.0, b.Stock)
}

func TestApply_RecordsMovements(t *testing.T) {
	store := seededStore()
	d := NewDeductor(store, fakeMenu{}, nil, nil)

	d.Apply(context.Background(), outlet, Usage{"B": 5}, "order-9", "u7")

	mvs := store.Movements()
	require.Len(t, mvs, 1)
	assert.Equal(t, models.MovementSale, mvs[0].Kind)
	assert.Equal(t, -5.0, mvs[0].Delta)
	assert.Equal(t, 50.0, mvs[0].PreviousQty)
	assert.Equal(t, 45.0, mvs[0].NewQty)
	assert.Equal(t, "order-9", mvs[0].Reference)
	assert.Equal(t, "u7", mvs[0].CreatedBy)
}

func TestRestockAndWastage(t *testing.T) {
	store := seededStore()
	ctx := context.Background()

	res, err := Restock(ctx, store, outlet, "C", 20, "u1", "PO-12")
	require.NoError(t, err)
	assert.Equal(t, 24.0, res.Ingredient.Stock)

	res, err = RecordWastage(ctx, store, outlet, "C", 30, "spilled", "u1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Ingredient.Stock)
	assert.True(t, res.Clamped)

	_, err = Restock(ctx, store, outlet, "C", 0, "u1", "")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = RecordWastage(ctx, store, outlet, "C", 1, " ", "u1")
	assert.ErrorIs(t, err, ErrReasonRequired)
	_, err = Restock(ctx, store, outlet, "ghost", 1, "u1", "")
	assert.ErrorIs(t, err, ErrIngredientNotFound)

	kinds := []models.MovementKind{}
	for _, mv := range store.Movements() {
		kinds = append(kinds, mv.Kind)
	}
	assert.Equal(t, []models.MovementKind{models.MovementRestock, models.MovementWastage}, kinds)
}

func TestLowStock(t *testing.T) {
	got := LowStock([]models.Ingredient{
		{ID: "1", Name: "Sugar", Stock: 1, MinStock: 5},
		{ID: "2", Name: "Milk", Stock: 10, MinStock: 5},
		{ID: "3", Name: "Beans", Stock: 4.9, MinStock: 5},
		{ID: "4", Name: "Cups", Stock: 5, MinStock: 5},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "Beans", got[0].Name)
	assert.Equal(t, "Sugar", got[1].Name)
}
