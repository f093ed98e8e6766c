// Package cart holds the in-progress orders of one outlet and applies the
// cart commands to them.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"cafepos/internal/models"
	"cafepos/internal/pricing"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrLineItemNotFound    = errors.New("line item not found")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrMenuItemUnavailable = errors.New("menu item is not available")
	ErrVariationNotFound   = errors.New("variation not found")
	ErrAddonNotFound       = errors.New("addon not found")
	ErrInvalidQuantity     = errors.New("quantity must be a positive integer")
	ErrInvalidAmount       = errors.New("amount cannot be negative")
	ErrInvalidOrderType    = errors.New("unknown order type")
	ErrOrderHeld           = errors.New("order is on hold")
)

// MenuLookup resolves menu items of an outlet
type MenuLookup interface {
	MenuItem(ctx context.Context, outletID, itemID string) (*models.MenuItem, bool, error)
}

// SequenceAllocator hands out human-readable order numbers per outlet
type SequenceAllocator interface {
	Next(ctx context.Context, outletID string) (int64, error)
}

// AddItem describes a line to add to an order
type AddItem struct {
	MenuItemID  string   `json:"menu_item_id" binding:"required"`
	VariationID string   `json:"variation_id,omitempty"`
	AddonIDs    []string `json:"addon_ids,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Quantity    int      `json:"quantity,omitempty"`
}

// Manager manages the open orders of one outlet. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	outletID string
	menu     MenuLookup
	seq      SequenceAllocator
	log      *logrus.Entry
	now      func() time.Time

	orders  map[string]*models.Order
	lastSeq int64
}

// NewManager creates a cart manager for the given outlet
func NewManager(outletID string, menu MenuLookup, seq SequenceAllocator, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		outletID: outletID,
		menu:     menu,
		seq:      seq,
		log:      log.WithFields(logrus.Fields{"component": "cart", "outlet_id": outletID}),
		now:      time.Now,
		orders:   make(map[string]*models.Order),
	}
}

// CreateOrder allocates a new empty takeaway order with a fresh sequence number
func (m *Manager) CreateOrder(ctx context.Context, createdBy string) *models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.newOrderLocked(ctx, createdBy).Clone()
}

func (m *Manager) newOrderLocked(ctx context.Context, createdBy string) *models.Order {
	now := m.now()
	o := &models.Order{
		ID:           uuid.NewString(),
		OutletID:     m.outletID,
		Sequence:     m.nextSequenceLocked(ctx),
		Type:         models.OrderTypeTakeaway,
		Lines:        models.LineItems{},
		Discount:     decimal.Zero,
		OtherCharges: decimal.Zero,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.orders[o.ID] = o
	return o
}

func (m *Manager) nextSequenceLocked(ctx context.Context) int64 {
	if m.seq != nil {
		n, err := m.seq.Next(ctx, m.outletID)
		if err == nil && n > m.lastSeq {
			m.lastSeq = n
			return n
		}
		if err != nil {
			m.log.WithError(err).Warn("Sequence allocator failed, using local counter")
		} else {
			m.log.WithField("allocated", n).Warn("Sequence allocator went backwards, using local counter")
		}
	}
	m.lastSeq++
	return m.lastSeq
}

// Restore puts a previously persisted open order back under management
func (m *Manager) Restore(o *models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orders[o.ID] = o.Clone()
	if o.Sequence > m.lastSeq {
		m.lastSeq = o.Sequence
	}
}

// AddLineItem resolves the menu item and appends it to the order, or bumps the
// quantity of an identical line (same item, variation and addon set).
func (m *Manager) AddLineItem(ctx context.Context, orderID string, req AddItem) (*models.Order, error) {
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	line, err := m.resolveLine(ctx, req)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	o, err := m.mutableLocked(orderID)
	if err != nil {
		return nil, err
	}

	key := lineKey(line.MenuItemID, line.VariationID, line.AddonIDs)
	for i := range o.Lines {
		existing := &o.Lines[i]
		if lineKey(existing.MenuItemID, existing.VariationID, existing.AddonIDs) == key {
			existing.Quantity += line.Quantity
			existing.Notes = mergeNotes(existing.Notes, line.Notes)
			existing.LineTotal = pricing.LineTotal(*existing)
			o.UpdatedAt = m.now()
			return o.Clone(), nil
		}
	}

	line.ID = uuid.NewString()
	line.LineTotal = pricing.LineTotal(line)
	o.Lines = append(o.Lines, line)
	o.UpdatedAt = m.now()
	return o.Clone(), nil
}

// mergeNotes appends notes from a merged line unless they are blank or already present
func mergeNotes(current, added string) string {
	added = strings.TrimSpace(added)
	if added == "" {
		return current
	}
	for _, n := range strings.Split(current, "; ") {
		if n == added {
			return current
		}
	}
	if current == "" {
		return added
	}
	return current + "; " + added
}

func (m *Manager) resolveLine(ctx context.Context, req AddItem) (models.LineItem, error) {
	item, ok, err := m.menu.MenuItem(ctx, m.outletID, req.MenuItemID)
	if err != nil {
		return models.LineItem{}, fmt.Errorf("failed to look up menu item: %w", err)
	}
	if !ok {
		return models.LineItem{}, fmt.Errorf("%w: %s", ErrMenuItemNotFound, req.MenuItemID)
	}
	if !item.Available {
		return models.LineItem{}, fmt.Errorf("%w: %s", ErrMenuItemUnavailable, item.Name)
	}

	var variation *models.Variation
	name := item.Name
	if req.VariationID != "" {
		v, ok := item.FindVariation(req.VariationID)
		if !ok {
			return models.LineItem{}, fmt.Errorf("%w: %s", ErrVariationNotFound, req.VariationID)
		}
		variation = &v
		name = fmt.Sprintf("%s (%s)", item.Name, v.Name)
	}

	addonIDs := normalizeAddons(req.AddonIDs)
	addons := make([]models.Addon, 0, len(addonIDs))
	for _, id := range addonIDs {
		a, ok := item.FindAddon(id)
		if !ok {
			return models.LineItem{}, fmt.Errorf("%w: %s", ErrAddonNotFound, id)
		}
		addons = append(addons, a)
	}

	return models.LineItem{
		MenuItemID:  item.ID,
		VariationID: req.VariationID,
		AddonIDs:    addonIDs,
		Name:        name,
		UnitPrice:   pricing.UnitPrice(item, variation, addons),
		Quantity:    req.Quantity,
		Notes:       strings.TrimSpace(req.Notes),
	}, nil
}

// normalizeAddons returns the addon ids sorted with duplicates dropped
func normalizeAddons(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func lineKey(menuItemID, variationID string, addonIDs []string) string {
	return menuItemID + "|" + variationID + "|" + strings.Join(addonIDs, ",")
}

// UpdateQuantity sets a line's quantity. A quantity below 1 removes the line.
func (m *Manager) UpdateQuantity(orderID, lineID string, quantity int) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, err := m.mutableLocked(orderID)
	if err != nil {
		return nil, err
	}
	idx := findLine(o, lineID)
	if idx < 0 {
		return nil, ErrLineItemNotFound
	}

	if quantity < 1 {
		o.Lines = append(o.Lines[:idx], o.Lines[idx+1:]...)
	} else {
		o.Lines[idx].Quantity = quantity
		o.Lines[idx].LineTotal = pricing.LineTotal(o.Lines[idx])
	}
	o.UpdatedAt = m.now()
	return o.Clone(), nil
}

// RemoveLineItem deletes a line from the order
func (m *Manager) RemoveLineItem(orderID, lineID string) (*models.Order, error) {
	return m.UpdateQuantity(orderID, lineID, 0)
}

func findLine(o *models.Order, lineID string) int {
	for i, line := range o.Lines {
		if line.ID == lineID {
			return i
		}
	}
	return -1
}

// SetDiscount sets the absolute discount amount of an order
func (m *Manager) SetDiscount(orderID string, amount decimal.Decimal) (*models.Order, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	return m.update(orderID, func(o *models.Order) error {
		o.Discount = amount
		return nil
	})
}

// SetOtherCharges sets the additional charges (delivery, packaging) of an order
func (m *Manager) SetOtherCharges(orderID string, amount decimal.Decimal) (*models.Order, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	return m.update(orderID, func(o *models.Order) error {
		o.OtherCharges = amount
		return nil
	})
}

// SetTable associates the order with a table. An empty id detaches it.
func (m *Manager) SetTable(orderID, tableID string) (*models.Order, error) {
	return m.update(orderID, func(o *models.Order) error {
		o.TableID = tableID
		if tableID != "" {
			o.Type = models.OrderTypeDineIn
		}
		return nil
	})
}

// SetType changes how the order is served
func (m *Manager) SetType(orderID string, t models.OrderType) (*models.Order, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOrderType, t)
	}
	return m.update(orderID, func(o *models.Order) error {
		o.Type = t
		return nil
	})
}

func (m *Manager) update(orderID string, fn func(o *models.Order) error) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, err := m.mutableLocked(orderID)
	if err != nil {
		return nil, err
	}
	if err := fn(o); err != nil {
		return nil, err
	}
	o.UpdatedAt = m.now()
	return o.Clone(), nil
}

func (m *Manager) mutableLocked(orderID string) (*models.Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if o.Held {
		return nil, ErrOrderHeld
	}
	return o, nil
}

// Hold parks an order outside the active set. Holding the last active order
// leaves a fresh empty one behind.
func (m *Manager) Hold(ctx context.Context, orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	o.Held = true
	o.UpdatedAt = m.now()
	m.ensureActiveLocked(ctx, o.CreatedBy)
	return o.Clone(), nil
}

// Resume moves a held order back into the active set
func (m *Manager) Resume(orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if o.Held {
		o.Held = false
		o.UpdatedAt = m.now()
	}
	return o.Clone(), nil
}

// Remove takes an order out of the open set (finalize or cancel) and returns
// it. Removing the last active order leaves a fresh empty one behind.
func (m *Manager) Remove(ctx context.Context, orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	delete(m.orders, orderID)
	m.ensureActiveLocked(ctx, o.CreatedBy)
	return o, nil
}

func (m *Manager) ensureActiveLocked(ctx context.Context, createdBy string) {
	for _, o := range m.orders {
		if !o.Held {
			return
		}
	}
	fresh := m.newOrderLocked(ctx, createdBy)
	m.log.WithField("order_id", fresh.ID).Debug("Opened fresh order")
}

// Get returns a copy of the order
func (m *Manager) Get(orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o.Clone(), nil
}

// Active lists the orders not on hold, oldest first
func (m *Manager) Active() []*models.Order {
	return m.list(false)
}

// Held lists the orders on hold, oldest first
func (m *Manager) Held() []*models.Order {
	return m.list(true)
}

func (m *Manager) list(held bool) []*models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if o.Held == held {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Sequence < out[j].Sequence
	})
	return out
}

// FindByTable returns the open order associated with a table
func (m *Manager) FindByTable(tableID string) (*models.Order, bool) {
	if tableID == "" {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.TableID == tableID {
			return o.Clone(), true
		}
	}
	return nil, false
}
