package pos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"cafepos/internal/database"
	"cafepos/internal/events"
	"cafepos/internal/models"
	"cafepos/internal/realtime"
	"cafepos/internal/stock"
)

// Ingredients lists the outlet's ingredients
func (s *Service) Ingredients(ctx context.Context) ([]models.Ingredient, error) {
	return s.repo.ListIngredients(ctx, s.outletID)
}

// CreateIngredient adds an ingredient with its opening stock
func (s *Service) CreateIngredient(ctx context.Context, ing models.Ingredient) (models.Ingredient, error) {
	ing.Name = strings.TrimSpace(ing.Name)
	if ing.Name == "" {
		return models.Ingredient{}, invalid(errors.New("ingredient name is required"))
	}
	if ing.Stock < 0 || ing.MinStock < 0 || ing.CostPrice < 0 {
		return models.Ingredient{}, invalid(errors.New("stock, minimum stock and cost cannot be negative"))
	}
	if ing.ID == "" {
		ing.ID = uuid.NewString()
	} else if _, err := s.repo.GetIngredient(ctx, s.outletID, ing.ID); err == nil {
		return models.Ingredient{}, fmt.Errorf("%w: %s", ErrIngredientExists, ing.ID)
	}
	ing.OutletID = s.outletID

	if err := s.repo.CreateIngredient(ctx, &ing); err != nil {
		return models.Ingredient{}, fmt.Errorf("failed to create ingredient: %w", err)
	}
	s.publish(CollectionIngredients, realtime.OpUpsert, ing.ID, ing)
	s.refreshLowStock(ctx)
	return ing, nil
}

// UpdateIngredient changes an ingredient's name, unit, minimum and cost.
// Stock changes go through Restock and RecordWastage.
func (s *Service) UpdateIngredient(ctx context.Context, ing models.Ingredient) (models.Ingredient, error) {
	ing.Name = strings.TrimSpace(ing.Name)
	if ing.Name == "" {
		return models.Ingredient{}, invalid(errors.New("ingredient name is required"))
	}
	if ing.MinStock < 0 || ing.CostPrice < 0 {
		return models.Ingredient{}, invalid(errors.New("minimum stock and cost cannot be negative"))
	}
	ing.OutletID = s.outletID
	if err := s.repo.UpdateIngredient(ctx, &ing); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.Ingredient{}, stock.ErrIngredientNotFound
		}
		return models.Ingredient{}, fmt.Errorf("failed to update ingredient: %w", err)
	}
	s.publish(CollectionIngredients, realtime.OpUpsert, ing.ID, ing)
	s.refreshLowStock(ctx)
	return ing, nil
}

// Restock records received stock
func (s *Service) Restock(ctx context.Context, ingredientID string, qty float64, notes string, by models.Identity) (stock.Result, error) {
	res, err := stock.Restock(ctx, s.repo, s.outletID, ingredientID, qty, by.UserID, notes)
	if err != nil {
		return stock.Result{}, classify(err)
	}
	s.publish(CollectionIngredients, realtime.OpUpsert, ingredientID, res.Ingredient)
	s.refreshLowStock(ctx)
	return res, nil
}

// RecordWastage records spoiled or spilled stock
func (s *Service) RecordWastage(ctx context.Context, ingredientID string, qty float64, reason string, by models.Identity) (stock.Result, error) {
	res, err := stock.RecordWastage(ctx, s.repo, s.outletID, ingredientID, qty, reason, by.UserID)
	if err != nil {
		return stock.Result{}, classify(err)
	}
	s.publish(CollectionIngredients, realtime.OpUpsert, ingredientID, res.Ingredient)
	if res.BecameLow() {
		s.events.Publish(ctx, events.Event{
			Type:     events.TypeStockLow,
			OutletID: s.outletID,
			Payload: events.StockLow{
				IngredientID: res.Ingredient.ID,
				Name:         res.Ingredient.Name,
				Stock:        res.Ingredient.Stock,
				MinStock:     res.Ingredient.MinStock,
			},
		})
	}
	s.refreshLowStock(ctx)
	return res, nil
}

// LowStock lists the ingredients below their minimum
func (s *Service) LowStock(ctx context.Context) ([]models.Ingredient, error) {
	ings, err := s.repo.ListIngredients(ctx, s.outletID)
	if err != nil {
		return nil, err
	}
	low := stock.LowStock(ings)
	s.metrics.SetLowStock(s.outletID, len(low))
	return low, nil
}

// Movements lists the stock movements of the outlet, newest first
func (s *Service) Movements(ctx context.Context, f database.MovementFilter) ([]models.StockMovement, error) {
	f.OutletID = s.outletID
	return s.repo.ListMovements(ctx, f)
}
