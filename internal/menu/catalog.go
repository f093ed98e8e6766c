// Package menu caches the menu of each outlet in front of the database.
package menu

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"cafepos/internal/models"
)

// Source loads the menu items of an outlet
type Source interface {
	ListMenuItems(ctx context.Context, outletID string) ([]models.MenuItem, error)
}

type entry struct {
	items   map[string]*models.MenuItem
	ordered []string
	expires time.Time
}

// Catalog is a per-outlet TTL cache of menu items
type Catalog struct {
	source Source
	ttl    time.Duration
	log    *logrus.Entry
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
	loadMu  sync.Mutex
	loads   int
}

// NewCatalog creates a catalog over the given source
func NewCatalog(source Source, ttl time.Duration, log *logrus.Entry) *Catalog {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Catalog{
		source:  source,
		ttl:     ttl,
		log:     log.WithField("component", "menu"),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

func (c *Catalog) cached(outletID string) (*entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[outletID]
	if !ok || c.now().After(e.expires) {
		return nil, false
	}
	return e, true
}

func (c *Catalog) load(ctx context.Context, outletID string) (*entry, error) {
	if e, ok := c.cached(outletID); ok {
		return e, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	// another goroutine may have loaded it while we waited
	if e, ok := c.cached(outletID); ok {
		return e, nil
	}

	items, err := c.source.ListMenuItems(ctx, outletID)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu for outlet %s: %w", outletID, err)
	}
	c.loads++

	e := &entry{
		items:   make(map[string]*models.MenuItem, len(items)),
		ordered: make([]string, 0, len(items)),
		expires: c.now().Add(c.ttl),
	}
	for i := range items {
		item := items[i]
		e.items[item.ID] = &item
		e.ordered = append(e.ordered, item.ID)
	}

	c.mu.Lock()
	c.entries[outletID] = e
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"outlet_id": outletID, "items": len(items)}).Debug("Menu loaded")
	return e, nil
}

// MenuItem returns a copy of one menu item
func (c *Catalog) MenuItem(ctx context.Context, outletID, itemID string) (*models.MenuItem, bool, error) {
	e, err := c.load(ctx, outletID)
	if err != nil {
		return nil, false, err
	}
	item, ok := e.items[itemID]
	if !ok {
		return nil, false, nil
	}
	return item.Clone(), true, nil
}

// Items returns copies of every menu item of an outlet in source order
func (c *Catalog) Items(ctx context.Context, outletID string) ([]*models.MenuItem, error) {
	e, err := c.load(ctx, outletID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.MenuItem, 0, len(e.ordered))
	for _, id := range e.ordered {
		out = append(out, e.items[id].Clone())
	}
	return out, nil
}

// Invalidate drops the cached menu of an outlet
func (c *Catalog) Invalidate(outletID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, outletID)
}

// Loads reports how many times the source has been queried
func (c *Catalog) Loads() int {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	return c.loads
}
