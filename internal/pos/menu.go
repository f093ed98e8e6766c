package pos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"cafepos/internal/cart"
	"cafepos/internal/database"
	"cafepos/internal/models"
	"cafepos/internal/realtime"
)

// Menu lists the outlet's menu items
func (s *Service) Menu(ctx context.Context) ([]*models.MenuItem, error) {
	return s.menu.Items(ctx, s.outletID)
}

// SaveMenuItem creates or replaces a menu item. Open orders keep the prices
// they were rung up with.
func (s *Service) SaveMenuItem(ctx context.Context, item models.MenuItem) (models.MenuItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.OutletID = s.outletID
	if err := models.ValidateMenuItem(&item); err != nil {
		return models.MenuItem{}, invalid(err)
	}
	if item.CategoryID != "" {
		if err := s.checkCategory(ctx, item.CategoryID); err != nil {
			return models.MenuItem{}, err
		}
	}
	if existing, err := s.repo.GetMenuItem(ctx, s.outletID, item.ID); err == nil {
		item.CreatedAt = existing.CreatedAt
	}

	if err := s.repo.SaveMenuItem(ctx, &item); err != nil {
		return models.MenuItem{}, fmt.Errorf("failed to save menu item: %w", err)
	}
	s.menu.Invalidate(s.outletID)
	s.publish(CollectionMenuItems, realtime.OpUpsert, item.ID, item)
	return item, nil
}

// DeleteMenuItem removes a menu item. Sold lines referencing it are skipped
// by stock deduction.
func (s *Service) DeleteMenuItem(ctx context.Context, id string) error {
	if err := s.repo.DeleteMenuItem(ctx, s.outletID, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return cart.ErrMenuItemNotFound
		}
		return fmt.Errorf("failed to delete menu item: %w", err)
	}
	s.menu.Invalidate(s.outletID)
	s.publish(CollectionMenuItems, realtime.OpDelete, id, nil)
	return nil
}

func (s *Service) checkCategory(ctx context.Context, id string) error {
	cats, err := s.repo.ListCategories(ctx, s.outletID)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	for _, c := range cats {
		if c.ID == id {
			return nil
		}
	}
	return invalid(fmt.Errorf("unknown category %q", id))
}

// Categories lists the menu categories
func (s *Service) Categories(ctx context.Context) ([]models.MenuCategory, error) {
	return s.repo.ListCategories(ctx, s.outletID)
}

// SaveCategory creates or renames a menu category
func (s *Service) SaveCategory(ctx context.Context, cat models.MenuCategory) (models.MenuCategory, error) {
	cat.Name = strings.TrimSpace(cat.Name)
	if cat.Name == "" {
		return models.MenuCategory{}, invalid(errors.New("category name is required"))
	}
	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	cat.OutletID = s.outletID
	if err := s.repo.SaveCategory(ctx, &cat); err != nil {
		return models.MenuCategory{}, fmt.Errorf("failed to save category: %w", err)
	}
	s.publish(CollectionCategories, realtime.OpUpsert, cat.ID, cat)
	return cat, nil
}
