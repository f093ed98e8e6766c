package pos

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"cafepos/internal/cart"
	"cafepos/internal/database"
	"cafepos/internal/models"
)

type posTestContext struct {
	t *testing.T

	f           *fixture
	orderID     string
	ingredients map[string]string
	items       map[string]string
	opened      []string
	result      FinalizeResult
	err         error
}

func (c *posTestContext) reset() {
	c.f = nil
	c.orderID = ""
	c.ingredients = make(map[string]string)
	c.items = make(map[string]string)
	c.opened = nil
	c.result = FinalizeResult{}
	c.err = nil
}

func (c *posTestContext) ingredientID(name string) string {
	if id, ok := c.ingredients[name]; ok {
		return id
	}
	return database.SeedID(outlet, name)
}

func (c *posTestContext) itemID(name string) string {
	if id, ok := c.items[name]; ok {
		return id
	}
	return database.SeedID(outlet, name)
}

func (c *posTestContext) view() (OrderView, error) {
	return c.f.svc.View(c.orderID)
}

func sameAmount(want string, got decimal.Decimal) error {
	w, err := decimal.NewFromString(want)
	if err != nil {
		return err
	}
	if !w.Equal(got) {
		return fmt.Errorf("expected %s, got %s", want, got)
	}
	return nil
}

func (c *posTestContext) aSeededOutlet(rate int) error {
	c.f = newFixture(c.t)
	if rate != 5 {
		st := c.f.svc.Settings()
		st.TaxRate = decimal.NewFromInt(int64(rate))
		if _, err := c.f.svc.UpdateSettings(context.Background(), st); err != nil {
			return err
		}
	}
	c.orderID = c.f.svc.Active()[0].ID
	return nil
}

func (c *posTestContext) anIngredientWithStock(name string, qty float64) error {
	ing, err := c.f.svc.CreateIngredient(context.Background(), models.Ingredient{Name: name, Unit: models.UnitGram, Stock: qty})
	if err != nil {
		return err
	}
	c.ingredients[name] = ing.ID
	return nil
}

func (c *posTestContext) saveItem(item models.MenuItem) error {
	item.BasePrice = decimal.NewFromInt(100)
	item.Available = true
	saved, err := c.f.svc.SaveMenuItem(context.Background(), item)
	if err != nil {
		return err
	}
	c.items[item.Name] = saved.ID
	return nil
}

func (c *posTestContext) aMenuItemUsing(name string, qty float64, ingredient string) error {
	return c.saveItem(models.MenuItem{
		Name:   name,
		Recipe: models.Recipe{{IngredientID: c.ingredientID(ingredient), Quantity: qty}},
	})
}

func (c *posTestContext) aMenuItemWithVariation(name string, qty float64, ingredient, variation string, vqty float64, vingredient string) error {
	return c.saveItem(models.MenuItem{
		Name:   name,
		Recipe: models.Recipe{{IngredientID: c.ingredientID(ingredient), Quantity: qty}},
		Variations: models.Variations{{
			ID:         variation,
			Name:       variation,
			RecipeMode: models.RecipeModeReplace,
			Recipe:     models.Recipe{{IngredientID: c.ingredientID(vingredient), Quantity: vqty}},
		}},
	})
}

func (c *posTestContext) aMenuItemWithAddon(name string, qty float64, ingredient, addon string, aqty float64, aingredient string) error {
	return c.saveItem(models.MenuItem{
		Name:   name,
		Recipe: models.Recipe{{IngredientID: c.ingredientID(ingredient), Quantity: qty}},
		Addons: models.Addons{{
			ID:     addon,
			Name:   addon,
			Price:  decimal.NewFromInt(20),
			Recipe: models.Recipe{{IngredientID: c.ingredientID(aingredient), Quantity: aqty}},
		}},
	})
}

func (c *posTestContext) add(req cart.AddItem) error {
	_, err := c.f.svc.AddItem(context.Background(), c.orderID, req)
	return err
}

func (c *posTestContext) iAdd(qty int, name string) error {
	return c.add(cart.AddItem{MenuItemID: c.itemID(name), Quantity: qty})
}

func (c *posTestContext) iAddIn(qty int, name, variation string) error {
	return c.add(cart.AddItem{MenuItemID: c.itemID(name), VariationID: variation, Quantity: qty})
}

func (c *posTestContext) iAddWithAddons(qty int, name, addons string) error {
	return c.add(cart.AddItem{MenuItemID: c.itemID(name), AddonIDs: strings.Split(addons, ","), Quantity: qty})
}

func (c *posTestContext) iSetADiscountOf(amount int) error {
	_, err := c.f.svc.SetDiscount(context.Background(), c.orderID, decimal.NewFromInt(int64(amount)))
	return err
}

func (c *posTestContext) iSetTheQuantityOfTheFirstLineTo(qty int) error {
	v, err := c.view()
	if err != nil {
		return err
	}
	if len(v.Lines) == 0 {
		return fmt.Errorf("order has no lines")
	}
	_, err = c.f.svc.UpdateQuantity(context.Background(), c.orderID, v.Lines[0].ID, qty)
	return err
}

func (c *posTestContext) totalIs(field func(models.Totals) decimal.Decimal) func(string) error {
	return func(want string) error {
		v, err := c.view()
		if err != nil {
			return err
		}
		return sameAmount(want, field(v.Totals))
	}
}

func (c *posTestContext) iSettleTheOrderPaying(method string) error {
	res, err := c.f.svc.Finalize(context.Background(), c.orderID, Payment{Method: method}, cashier)
	if err != nil {
		return err
	}
	c.result = res
	return nil
}

func (c *posTestContext) theRecordedGrandTotalIs(want string) error {
	return sameAmount(want, c.result.Order.GrandTotal)
}

func (c *posTestContext) theStockOfIs(name string, want float64) error {
	ing, err := c.f.store.GetIngredient(context.Background(), outlet, c.ingredientID(name))
	if err != nil {
		return err
	}
	if ing.Stock != want {
		return fmt.Errorf("expected %s stock %v, got %v", name, want, ing.Stock)
	}
	return nil
}

func (c *posTestContext) theOrderHasLineWithQuantity(lines, qty int) error {
	v, err := c.view()
	if err != nil {
		return err
	}
	if len(v.Lines) != lines {
		return fmt.Errorf("expected %d lines, got %d", lines, len(v.Lines))
	}
	if v.Lines[0].Quantity != qty {
		return fmt.Errorf("expected quantity %d, got %d", qty, v.Lines[0].Quantity)
	}
	return nil
}

func (c *posTestContext) theOrderHasNoLines() error {
	v, err := c.view()
	if err != nil {
		return err
	}
	if len(v.Lines) != 0 {
		return fmt.Errorf("expected no lines, got %d", len(v.Lines))
	}
	return nil
}

func (c *posTestContext) iOpenTable(name string) error {
	v, _, err := c.f.svc.StartTableOrder(context.Background(), c.itemID(name), cashier)
	if err != nil {
		return err
	}
	c.orderID = v.ID
	c.opened = append(c.opened, v.ID)
	return nil
}

func (c *posTestContext) bothOpeningsReturnedTheSameOrder() error {
	if len(c.opened) != 2 || c.opened[0] != c.opened[1] {
		return fmt.Errorf("expected one order, got %v", c.opened)
	}
	return c.f.svc.checkSeating()
}

func (c *posTestContext) tableIs(name, status string) error {
	t, err := c.f.svc.Table(c.itemID(name))
	if err != nil {
		return err
	}
	if string(t.Status) != status {
		return fmt.Errorf("expected table %s %s, got %s", name, status, t.Status)
	}
	return c.f.svc.checkSeating()
}

func (c *posTestContext) iCancelTheOrder() error {
	_, err := c.f.svc.Cancel(context.Background(), c.orderID, cashier)
	return err
}

func (c *posTestContext) noStockMovementsWereRecorded() error {
	mvs, err := c.f.svc.Movements(context.Background(), database.MovementFilter{})
	if err != nil {
		return err
	}
	if len(mvs) != 0 {
		return fmt.Errorf("expected no movements, got %d", len(mvs))
	}
	return nil
}

func (c *posTestContext) iBillTable(name string) error {
	_, err := c.f.svc.GenerateBill(context.Background(), c.itemID(name))
	return err
}

func (c *posTestContext) iPayTableWith(name, method string) error {
	res, err := c.f.svc.MarkPaid(context.Background(), c.itemID(name), Payment{Method: method}, cashier)
	if err != nil {
		return err
	}
	c.result = res
	return nil
}

func initializeScenario(t *testing.T) func(*godog.ScenarioContext) {
	return func(ctx *godog.ScenarioContext) {
		tc := &posTestContext{t: t}

		ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
			tc.reset()
			return ctx, nil
		})

		ctx.Step(`^a seeded outlet with (\d+)% tax after discount$`, tc.aSeededOutlet)
		ctx.Step(`^an ingredient "([^"]*)" with stock (\d+)$`, tc.anIngredientWithStock)
		ctx.Step(`^a menu item "([^"]*)" using (\d+) "([^"]*)"$`, tc.aMenuItemUsing)
		ctx.Step(`^a menu item "([^"]*)" using (\d+) "([^"]*)" with a variation "([^"]*)" using (\d+) "([^"]*)"$`, tc.aMenuItemWithVariation)
		ctx.Step(`^a menu item "([^"]*)" using (\d+) "([^"]*)" with an addon "([^"]*)" using (\d+) "([^"]*)"$`, tc.aMenuItemWithAddon)

		ctx.Step(`^I add (\d+) "([^"]*)"$`, tc.iAdd)
		ctx.Step(`^I add (\d+) "([^"]*)" in "([^"]*)"$`, tc.iAddIn)
		ctx.Step(`^I add (\d+) "([^"]*)" with addons "([^"]*)"$`, tc.iAddWithAddons)
		ctx.Step(`^I set a discount of (\d+)$`, tc.iSetADiscountOf)
		ctx.Step(`^I set the quantity of the first line to (-?\d+)$`, tc.iSetTheQuantityOfTheFirstLineTo)
		ctx.Step(`^I settle the order paying "([^"]*)"$`, tc.iSettleTheOrderPaying)
		ctx.Step(`^I open table "([^"]*)"(?: again)?$`, tc.iOpenTable)
		ctx.Step(`^I cancel the order$`, tc.iCancelTheOrder)
		ctx.Step(`^I bill table "([^"]*)"$`, tc.iBillTable)
		ctx.Step(`^I pay table "([^"]*)" with "([^"]*)"$`, tc.iPayTableWith)

		ctx.Step(`^the subtotal is ([\d.]+)$`, tc.totalIs(func(t models.Totals) decimal.Decimal { return t.Subtotal }))
		ctx.Step(`^the tax is ([\d.]+)$`, tc.totalIs(func(t models.Totals) decimal.Decimal { return t.Tax }))
		ctx.Step(`^the grand total is ([\d.]+)$`, tc.totalIs(func(t models.Totals) decimal.Decimal { return t.GrandTotal }))
		ctx.Step(`^the recorded grand total is ([\d.]+)$`, tc.theRecordedGrandTotalIs)
		ctx.Step(`^the stock of "([^"]*)" is ([\d.]+)$`, tc.theStockOfIs)
		ctx.Step(`^the order has (\d+) line with quantity (\d+)$`, tc.theOrderHasLineWithQuantity)
		ctx.Step(`^the order has no lines$`, tc.theOrderHasNoLines)
		ctx.Step(`^both openings returned the same order$`, tc.bothOpeningsReturnedTheSameOrder)
		ctx.Step(`^table "([^"]*)" is "([^"]*)"$`, tc.tableIs)
		ctx.Step(`^no stock movements were recorded$`, tc.noStockMovementsWereRecorded)
	}
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario(t),
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/pos.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
