package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"cafepos/internal/models"
	"cafepos/internal/monitoring"
)

var (
	ErrIngredientNotFound = errors.New("ingredient not found")
	ErrInvalidQuantity    = errors.New("quantity must be greater than 0")
	ErrReasonRequired     = errors.New("wastage reason is required")
)

// Movement is a single stock delta to apply
type Movement struct {
	OutletID     string
	IngredientID string
	Kind         models.MovementKind
	Delta        float64
	Reference    string
	CreatedBy    string
	Notes        string
}

// Result is the outcome of an applied movement
type Result struct {
	Ingredient models.Ingredient `json:"ingredient"`
	Previous   float64           `json:"previous"`
	Clamped    bool              `json:"clamped"`
}

// BecameLow reports whether the movement pushed the ingredient below its minimum
func (r Result) BecameLow() bool {
	return r.Previous >= r.Ingredient.MinStock && r.Ingredient.IsLowStock()
}

// Store applies stock deltas atomically. The new stock is clamped at zero
// and a models.StockMovement is recorded for every applied delta.
// Adjust returns ErrIngredientNotFound when the ingredient does not exist.
type Store interface {
	Adjust(ctx context.Context, mv Movement) (Result, error)
}

// Deduction is one applied ingredient deduction
type Deduction struct {
	IngredientID string  `json:"ingredient_id"`
	Name         string  `json:"name"`
	Requested    float64 `json:"requested"`
	Previous     float64 `json:"previous"`
	New          float64 `json:"new"`
	MinStock     float64 `json:"min_stock"`
	Clamped      bool    `json:"clamped"`
	BecameLow    bool    `json:"became_low"`
}

// Failure is an ingredient whose deduction could not be written
type Failure struct {
	IngredientID string `json:"ingredient_id"`
	Error        string `json:"error"`
}

// Report summarizes the deductions of one order
type Report struct {
	Reference  string              `json:"reference"`
	Deductions []Deduction         `json:"deductions"`
	Missing    []MissingReference  `json:"missing,omitempty"`
	Failures   []Failure           `json:"failures,omitempty"`
	LowStock   []models.Ingredient `json:"low_stock,omitempty"`
}

// Deductor converts sold orders into stock movements
type Deductor struct {
	store   Store
	menu    MenuLookup
	metrics *monitoring.Metrics
	log     *logrus.Entry
}

// NewDeductor creates a deductor over the given store and menu
func NewDeductor(store Store, menu MenuLookup, metrics *monitoring.Metrics, log *logrus.Entry) *Deductor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Deductor{
		store:   store,
		menu:    menu,
		metrics: metrics,
		log:     log.WithField("component", "stock"),
	}
}

// DeductOrder aggregates the usage of an order's lines and applies it
func (d *Deductor) DeductOrder(ctx context.Context, order *models.Order, createdBy string) (Report, error) {
	usage, missing, err := Aggregate(ctx, order.OutletID, order.Lines, d.menu)
	if err != nil {
		return Report{Reference: order.ID}, err
	}
	for _, m := range missing {
		d.log.WithFields(logrus.Fields{
			"outlet_id":    order.OutletID,
			"order_id":     order.ID,
			"menu_item_id": m.ID,
		}).Warn("Menu item no longer exists, skipping its recipe")
		d.metrics.MissingReference(m.Kind)
	}

	report := d.Apply(ctx, order.OutletID, usage, order.ID, createdBy)
	report.Missing = append(missing, report.Missing...)
	return report, nil
}

// Apply writes each aggregated ingredient once. Missing ingredients are
// skipped and write failures are recorded without aborting the rest.
func (d *Deductor) Apply(ctx context.Context, outletID string, usage Usage, reference, createdBy string) Report {
	report := Report{Reference: reference}

	ids := make([]string, 0, len(usage))
	for id := range usage {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		qty := usage[id]
		if qty <= 0 {
			continue
		}
		entry := d.log.WithFields(logrus.Fields{
			"outlet_id":     outletID,
			"order_id":      reference,
			"ingredient_id": id,
		})

		res, err := d.store.Adjust(ctx, Movement{
			OutletID:     outletID,
			IngredientID: id,
			Kind:         models.MovementSale,
			Delta:        -qty,
			Reference:    reference,
			CreatedBy:    createdBy,
		})
		if errors.Is(err, ErrIngredientNotFound) {
			entry.Warn("Ingredient no longer exists, skipping deduction")
			d.metrics.MissingReference(KindIngredient)
			report.Missing = append(report.Missing, MissingReference{Kind: KindIngredient, ID: id})
			continue
		}
		if err != nil {
			entry.WithError(err).Error("Failed to deduct stock")
			d.metrics.PersistenceFailed("ingredients")
			report.Failures = append(report.Failures, Failure{IngredientID: id, Error: err.Error()})
			continue
		}

		report.Deductions = append(report.Deductions, Deduction{
			IngredientID: id,
			Name:         res.Ingredient.Name,
			Requested:    qty,
			Previous:     res.Previous,
			New:          res.Ingredient.Stock,
			MinStock:     res.Ingredient.MinStock,
			Clamped:      res.Clamped,
			BecameLow:    res.BecameLow(),
		})
		if res.Clamped {
			entry.WithField("requested", qty).Info("Deduction exceeded stock, clamped at zero")
		}
		if res.Ingredient.IsLowStock() {
			report.LowStock = append(report.LowStock, res.Ingredient)
		}
	}

	d.metrics.StockDeducted(outletID, len(report.Deductions))
	return report
}

// Restock adds received stock to an ingredient
func Restock(ctx context.Context, store Store, outletID, ingredientID string, qty float64, createdBy, notes string) (Result, error) {
	if qty <= 0 {
		return Result{}, ErrInvalidQuantity
	}
	res, err := store.Adjust(ctx, Movement{
		OutletID:     outletID,
		IngredientID: ingredientID,
		Kind:         models.MovementRestock,
		Delta:        qty,
		CreatedBy:    createdBy,
		Notes:        notes,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to restock %s: %w", ingredientID, err)
	}
	return res, nil
}

// RecordWastage removes spoiled or spilled stock from an ingredient
func RecordWastage(ctx context.Context, store Store, outletID, ingredientID string, qty float64, reason, createdBy string) (Result, error) {
	if qty <= 0 {
		return Result{}, ErrInvalidQuantity
	}
	if strings.TrimSpace(reason) == "" {
		return Result{}, ErrReasonRequired
	}
	res, err := store.Adjust(ctx, Movement{
		OutletID:     outletID,
		IngredientID: ingredientID,
		Kind:         models.MovementWastage,
		Delta:        -qty,
		CreatedBy:    createdBy,
		Notes:        reason,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to record wastage for %s: %w", ingredientID, err)
	}
	return res, nil
}

// LowStock returns the ingredients below their minimum, sorted by name
func LowStock(ingredients []models.Ingredient) []models.Ingredient {
	out := make([]models.Ingredient, 0)
	for _, ing := range ingredients {
		if ing.IsLowStock() {
			out = append(out, ing)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// Clamp applies delta to current and never returns a negative stock
func Clamp(current, delta float64) (float64, bool) {
	next := current + delta
	if next < 0 {
		return 0, true
	}
	return next, false
}
