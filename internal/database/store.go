package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"

	"cafepos/internal/models"
	"cafepos/internal/stock"
)

// ErrNotFound is returned when a record does not exist in its collection
var ErrNotFound = errors.New("record not found")

// ErrOrderClosed is returned when an open snapshot would overwrite a closed order
var ErrOrderClosed = errors.New("order is already closed")

// Store implements the per-outlet collections on top of gorm
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open database
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func notFound(err error) error {
	if gorm.IsRecordNotFoundError(err) {
		return ErrNotFound
	}
	return err
}

// Outlets

// SaveOutlet creates or updates an outlet
func (s *Store) SaveOutlet(_ context.Context, o *models.Outlet) error {
	return s.db.Save(o).Error
}

// ListOutlets returns every outlet
func (s *Store) ListOutlets(_ context.Context) ([]models.Outlet, error) {
	var out []models.Outlet
	err := s.db.Order("name").Find(&out).Error
	return out, err
}

// Menu

// ListMenuItems returns the menu items of an outlet
func (s *Store) ListMenuItems(_ context.Context, outletID string) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := s.db.Where("outlet_id = ?", outletID).Order("name").Find(&items).Error
	return items, err
}

// GetMenuItem returns one menu item
func (s *Store) GetMenuItem(_ context.Context, outletID, id string) (*models.MenuItem, error) {
	var item models.MenuItem
	if err := s.db.Where("outlet_id = ? AND id = ?", outletID, id).First(&item).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// SaveMenuItem creates or updates a menu item
func (s *Store) SaveMenuItem(_ context.Context, item *models.MenuItem) error {
	return s.db.Save(item).Error
}

// DeleteMenuItem removes a menu item
func (s *Store) DeleteMenuItem(_ context.Context, outletID, id string) error {
	res := s.db.Where("outlet_id = ? AND id = ?", outletID, id).Delete(&models.MenuItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCategories returns the menu categories of an outlet
func (s *Store) ListCategories(_ context.Context, outletID string) ([]models.MenuCategory, error) {
	var cats []models.MenuCategory
	err := s.db.Where("outlet_id = ?", outletID).Order("sort_order").Order("name").Find(&cats).Error
	return cats, err
}

// SaveCategory creates or updates a menu category
func (s *Store) SaveCategory(_ context.Context, cat *models.MenuCategory) error {
	return s.db.Save(cat).Error
}

// Tables

// ListTables returns the tables of an outlet
func (s *Store) ListTables(_ context.Context, outletID string) ([]models.Table, error) {
	var tables []models.Table
	err := s.db.Where("outlet_id = ?", outletID).Order("name").Find(&tables).Error
	return tables, err
}

// SaveTable creates or updates a table
func (s *Store) SaveTable(_ context.Context, t *models.Table) error {
	return s.db.Save(t).Error
}

// DeleteTable removes a table
func (s *Store) DeleteTable(_ context.Context, outletID, id string) error {
	return s.db.Where("outlet_id = ? AND id = ?", outletID, id).Delete(&models.Table{}).Error
}

// Ingredients

// ListIngredients returns the ingredients of an outlet
func (s *Store) ListIngredients(_ context.Context, outletID string) ([]models.Ingredient, error) {
	var ings []models.Ingredient
	err := s.db.Where("outlet_id = ?", outletID).Order("name").Find(&ings).Error
	return ings, err
}

// GetIngredient returns one ingredient
func (s *Store) GetIngredient(_ context.Context, outletID, id string) (*models.Ingredient, error) {
	var ing models.Ingredient
	if err := s.db.Where("outlet_id = ? AND id = ?", outletID, id).First(&ing).Error; err != nil {
		return nil, notFound(err)
	}
	return &ing, nil
}

// CreateIngredient inserts a new ingredient with its opening stock
func (s *Store) CreateIngredient(_ context.Context, ing *models.Ingredient) error {
	return s.db.Create(ing).Error
}

// UpdateIngredient changes the descriptive fields of an ingredient.
// Stock only ever changes through Adjust.
func (s *Store) UpdateIngredient(ctx context.Context, ing *models.Ingredient) error {
	res := s.db.Model(&models.Ingredient{}).
		Where("outlet_id = ? AND id = ?", ing.OutletID, ing.ID).
		Updates(map[string]interface{}{
			"name":       ing.Name,
			"unit":       ing.Unit,
			"min_stock":  ing.MinStock,
			"cost_price": ing.CostPrice,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	updated, err := s.GetIngredient(ctx, ing.OutletID, ing.ID)
	if err != nil {
		return err
	}
	*ing = *updated
	return nil
}

// Adjust applies a stock delta clamped at zero inside a transaction and
// records the movement. The update is a single SQL expression so concurrent
// finalizations never lose each other's deductions.
func (s *Store) Adjust(ctx context.Context, mv stock.Movement) (stock.Result, error) {
	tx := s.db.BeginTx(ctx, nil)
	if tx.Error != nil {
		return stock.Result{}, tx.Error
	}

	query := tx
	if s.db.Dialect().GetName() == "postgres" {
		query = tx.Set("gorm:query_option", "FOR UPDATE")
	}

	var before models.Ingredient
	err := query.Where("outlet_id = ? AND id = ?", mv.OutletID, mv.IngredientID).First(&before).Error
	if err != nil {
		tx.Rollback()
		if gorm.IsRecordNotFoundError(err) {
			return stock.Result{}, stock.ErrIngredientNotFound
		}
		return stock.Result{}, fmt.Errorf("failed to read ingredient: %w", err)
	}

	now := time.Now()
	err = tx.Model(&models.Ingredient{}).
		Where("outlet_id = ? AND id = ?", mv.OutletID, mv.IngredientID).
		UpdateColumns(map[string]interface{}{
			"stock":      gorm.Expr("CASE WHEN stock + ? < 0 THEN 0 ELSE stock + ? END", mv.Delta, mv.Delta),
			"updated_at": now,
		}).Error
	if err != nil {
		tx.Rollback()
		return stock.Result{}, fmt.Errorf("failed to update stock: %w", err)
	}

	var after models.Ingredient
	if err := tx.Where("outlet_id = ? AND id = ?", mv.OutletID, mv.IngredientID).First(&after).Error; err != nil {
		tx.Rollback()
		return stock.Result{}, fmt.Errorf("failed to re-read ingredient: %w", err)
	}

	movement := models.StockMovement{
		OutletID:     mv.OutletID,
		IngredientID: mv.IngredientID,
		Kind:         mv.Kind,
		Delta:        after.Stock - before.Stock,
		PreviousQty:  before.Stock,
		NewQty:       after.Stock,
		Reference:    mv.Reference,
		CreatedBy:    mv.CreatedBy,
		Notes:        mv.Notes,
		CreatedAt:    now,
	}
	if err := tx.Create(&movement).Error; err != nil {
		tx.Rollback()
		return stock.Result{}, fmt.Errorf("failed to record movement: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return stock.Result{}, fmt.Errorf("failed to commit stock adjustment: %w", err)
	}

	return stock.Result{
		Ingredient: after,
		Previous:   before.Stock,
		Clamped:    before.Stock+mv.Delta < 0,
	}, nil
}

// MovementFilter narrows the movement listing
type MovementFilter struct {
	OutletID     string
	IngredientID string
	Kind         models.MovementKind
	Limit        int
}

// ListMovements returns stock movements, newest first
func (s *Store) ListMovements(_ context.Context, f MovementFilter) ([]models.StockMovement, error) {
	q := s.db.Where("outlet_id = ?", f.OutletID)
	if f.IngredientID != "" {
		q = q.Where("ingredient_id = ?", f.IngredientID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	var out []models.StockMovement
	err := q.Order("created_at desc").Order("id desc").Limit(limit).Find(&out).Error
	return out, err
}

// Orders

// SaveOrder creates or replaces an order snapshot. Once a finalized or
// cancelled record is stored, open and held snapshots are refused.
func (s *Store) SaveOrder(ctx context.Context, rec *models.OrderRecord) error {
	if rec.Status.Closed() {
		return s.db.Save(rec).Error
	}

	tx := s.db.BeginTx(ctx, nil)
	if tx.Error != nil {
		return tx.Error
	}
	var current models.OrderRecord
	err := tx.Select("status").Where("outlet_id = ? AND id = ?", rec.OutletID, rec.ID).First(&current).Error
	switch {
	case err == nil && current.Status.Closed():
		tx.Rollback()
		return fmt.Errorf("order %s is %s: %w", rec.ID, current.Status, ErrOrderClosed)
	case err != nil && !gorm.IsRecordNotFoundError(err):
		tx.Rollback()
		return fmt.Errorf("failed to read order: %w", err)
	}
	if err := tx.Save(rec).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// GetOrder returns one order snapshot
func (s *Store) GetOrder(_ context.Context, outletID, id string) (*models.OrderRecord, error) {
	var rec models.OrderRecord
	if err := s.db.Where("outlet_id = ? AND id = ?", outletID, id).First(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// OrderFilter narrows the order listing with equality and range filters
type OrderFilter struct {
	OutletID string
	Statuses []models.OrderStatus
	TableID  string
	From     time.Time
	To       time.Time
	Limit    int
}

// ListOrders returns order snapshots, newest first
func (s *Store) ListOrders(_ context.Context, f OrderFilter) ([]models.OrderRecord, error) {
	q := s.db.Where("outlet_id = ?", f.OutletID)
	if len(f.Statuses) > 0 {
		q = q.Where("status IN (?)", f.Statuses)
	}
	if f.TableID != "" {
		q = q.Where("table_id = ?", f.TableID)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("created_at < ?", f.To)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []models.OrderRecord
	err := q.Order("created_at desc").Find(&out).Error
	return out, err
}

// Settings

// GetSettings returns the saved settings of an outlet
func (s *Store) GetSettings(_ context.Context, outletID string) (*models.Settings, error) {
	var st models.Settings
	if err := s.db.Where("outlet_id = ?", outletID).First(&st).Error; err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

// SaveSettings creates or replaces the settings of an outlet
func (s *Store) SaveSettings(_ context.Context, st *models.Settings) error {
	return s.db.Save(st).Error
}

// Next increments the outlet's counter document and returns the new value
func (s *Store) Next(ctx context.Context, outletID string) (int64, error) {
	tx := s.db.BeginTx(ctx, nil)
	if tx.Error != nil {
		return 0, tx.Error
	}

	now := time.Now()
	err := tx.Exec(
		"INSERT INTO order_counters (outlet_id, value, updated_at) VALUES (?, 0, ?) ON CONFLICT (outlet_id) DO NOTHING",
		outletID, now,
	).Error
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to create counter: %w", err)
	}

	err = tx.Model(&models.OrderCounter{}).
		Where("outlet_id = ?", outletID).
		UpdateColumns(map[string]interface{}{
			"value":      gorm.Expr("value + 1"),
			"updated_at": now,
		}).Error
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	var counter models.OrderCounter
	if err := tx.Where("outlet_id = ?", outletID).First(&counter).Error; err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	if err := tx.Commit().Error; err != nil {
		return 0, fmt.Errorf("failed to commit counter: %w", err)
	}
	return counter.Value, nil
}
