package stock

import (
	"context"
	"sort"
	"sync"
	"time"

	"cafepos/internal/models"
)

// MemoryStore is an in-process Store keyed by outlet and ingredient id
type MemoryStore struct {
	mu          sync.Mutex
	ingredients map[string]map[string]*models.Ingredient
	movements   []models.StockMovement
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ingredients: make(map[string]map[string]*models.Ingredient),
	}
}

// Put inserts or replaces an ingredient
func (s *MemoryStore) Put(ing models.Ingredient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outlet, ok := s.ingredients[ing.OutletID]
	if !ok {
		outlet = make(map[string]*models.Ingredient)
		s.ingredients[ing.OutletID] = outlet
	}
	outlet[ing.ID] = &ing
}

// Delete removes an ingredient
func (s *MemoryStore) Delete(outletID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ingredients[outletID], id)
}

// Get returns a copy of an ingredient
func (s *MemoryStore) Get(outletID, id string) (models.Ingredient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ing, ok := s.ingredients[outletID][id]
	if !ok {
		return models.Ingredient{}, false
	}
	return *ing, true
}

// List returns the ingredients of an outlet sorted by name
func (s *MemoryStore) List(outletID string) []models.Ingredient {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Ingredient, 0, len(s.ingredients[outletID]))
	for _, ing := range s.ingredients[outletID] {
		out = append(out, *ing)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// Movements returns every recorded movement in order
func (s *MemoryStore) Movements() []models.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.StockMovement(nil), s.movements...)
}

// Adjust applies a clamped delta under the store lock
func (s *MemoryStore) Adjust(_ context.Context, mv Movement) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ing, ok := s.ingredients[mv.OutletID][mv.IngredientID]
	if !ok {
		return Result{}, ErrIngredientNotFound
	}

	prev := ing.Stock
	next, clamped := Clamp(prev, mv.Delta)
	ing.Stock = next
	ing.UpdatedAt = time.Now()

	s.movements = append(s.movements, models.StockMovement{
		ID:           uint(len(s.movements) + 1),
		OutletID:     mv.OutletID,
		IngredientID: mv.IngredientID,
		Kind:         mv.Kind,
		Delta:        next - prev,
		PreviousQty:  prev,
		NewQty:       next,
		Reference:    mv.Reference,
		CreatedBy:    mv.CreatedBy,
		Notes:        mv.Notes,
		CreatedAt:    ing.UpdatedAt,
	})

	return Result{Ingredient: *ing, Previous: prev, Clamped: clamped}, nil
}
