// Package tables tracks table status in step with the order lifecycle.
package tables

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cafepos/internal/models"
)

var (
	ErrTableNotFound     = errors.New("table not found")
	ErrInvalidTransition = errors.New("invalid table transition")
	ErrNameRequired      = errors.New("table name is required")
	ErrTableExists       = errors.New("table already exists")
	ErrOrderRequired     = errors.New("an order id is required to occupy a table")
)

// transitions lists the allowed status changes.
// occupied/billing -> vacant through Release covers cancel and delete.
var transitions = map[models.TableStatus][]models.TableStatus{
	models.TableVacant:   {models.TableOccupied},
	models.TableOccupied: {models.TableBilling, models.TableVacant},
	models.TableBilling:  {models.TableVacant},
}

// CanTransition reports whether a table may move from one status to another
func CanTransition(from, to models.TableStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Board holds the tables of one outlet. It is safe for concurrent use.
type Board struct {
	mu       sync.RWMutex
	outletID string
	tables   map[string]*models.Table
	log      *logrus.Entry
	now      func() time.Time
}

// NewBoard creates an empty board for an outlet
func NewBoard(outletID string, log *logrus.Entry) *Board {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Board{
		outletID: outletID,
		tables:   make(map[string]*models.Table),
		log:      log.WithFields(logrus.Fields{"component": "tables", "outlet_id": outletID}),
		now:      time.Now,
	}
}

// Load replaces the board's tables with the given set. Tables violating the
// status/order invariant are repaired to vacant.
func (b *Board) Load(tables []models.Table) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tables = make(map[string]*models.Table, len(tables))
	for i := range tables {
		t := tables[i]
		busy := t.Status == models.TableOccupied || t.Status == models.TableBilling
		if busy != (t.CurrentOrderID != "") || (t.Status != models.TableVacant && !busy) {
			b.log.WithFields(logrus.Fields{
				"table_id": t.ID,
				"status":   t.Status,
				"order_id": t.CurrentOrderID,
			}).Warn("Table state inconsistent, resetting to vacant")
			t.Status = models.TableVacant
			t.CurrentOrderID = ""
		}
		b.tables[t.ID] = &t
	}
}

// Add registers a new vacant table
func (b *Board) Add(t models.Table) (models.Table, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return models.Table{}, ErrNameRequired
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.OutletID = b.outletID
	t.Status = models.TableVacant
	t.CurrentOrderID = ""
	t.CreatedAt = b.now()
	t.UpdatedAt = t.CreatedAt

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.tables[t.ID]; ok {
		return models.Table{}, fmt.Errorf("%w: %s", ErrTableExists, t.ID)
	}
	b.tables[t.ID] = &t
	return t, nil
}

// Update changes a table's name and capacity. Status is not touched.
func (b *Board) Update(id, name string, capacity int) (models.Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Table{}, ErrNameRequired
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tables[id]
	if !ok {
		return models.Table{}, ErrTableNotFound
	}
	t.Name = name
	t.Capacity = capacity
	t.UpdatedAt = b.now()
	return *t, nil
}

// Get returns a table by id
func (b *Board) Get(id string) (models.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.tables[id]
	if !ok {
		return models.Table{}, ErrTableNotFound
	}
	return *t, nil
}

// List returns every table sorted by name
func (b *Board) List() []models.Table {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.Table, 0, len(b.tables))
	for _, t := range b.tables {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// Occupy moves a vacant table to occupied and points it at the order
func (b *Board) Occupy(tableID, orderID string) (models.Table, error) {
	if orderID == "" {
		return models.Table{}, ErrOrderRequired
	}
	return b.transition(tableID, models.TableOccupied, func(t *models.Table) {
		t.CurrentOrderID = orderID
	})
}

// Bill moves an occupied table to billing
func (b *Board) Bill(tableID string) (models.Table, error) {
	return b.transition(tableID, models.TableBilling, nil)
}

// Pay settles a table in billing and returns the order it referenced
func (b *Board) Pay(tableID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tables[tableID]
	if !ok {
		return "", ErrTableNotFound
	}
	if t.Status != models.TableBilling {
		return "", fmt.Errorf("%w: cannot pay a %s table", ErrInvalidTransition, t.Status)
	}
	orderID := t.CurrentOrderID
	b.vacateLocked(t)
	return orderID, nil
}

// Release returns an occupied or billing table to vacant without payment,
// used when its order is cancelled. It returns the order it referenced.
func (b *Board) Release(tableID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tables[tableID]
	if !ok {
		return "", ErrTableNotFound
	}
	if !CanTransition(t.Status, models.TableVacant) {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, models.TableVacant)
	}
	orderID := t.CurrentOrderID
	b.vacateLocked(t)
	return orderID, nil
}

// Remove deletes a table in any state and returns the order it referenced
func (b *Board) Remove(tableID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tables[tableID]
	if !ok {
		return "", ErrTableNotFound
	}
	delete(b.tables, tableID)
	return t.CurrentOrderID, nil
}

func (b *Board) vacateLocked(t *models.Table) {
	t.Status = models.TableVacant
	t.CurrentOrderID = ""
	t.UpdatedAt = b.now()
}

func (b *Board) transition(tableID string, to models.TableStatus, apply func(t *models.Table)) (models.Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tables[tableID]
	if !ok {
		return models.Table{}, ErrTableNotFound
	}
	if !CanTransition(t.Status, to) {
		return models.Table{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	if apply != nil {
		apply(t)
	}
	t.UpdatedAt = b.now()
	b.log.WithFields(logrus.Fields{"table_id": t.ID, "status": to}).Debug("Table transitioned")
	return *t, nil
}
