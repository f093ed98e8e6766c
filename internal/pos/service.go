// Package pos runs the point of sale of each outlet: open orders, tables,
// pricing, stock deduction and the writes that follow them.
package pos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"cafepos/internal/cart"
	"cafepos/internal/database"
	"cafepos/internal/events"
	"cafepos/internal/models"
	"cafepos/internal/monitoring"
	"cafepos/internal/outbox"
	"cafepos/internal/pricing"
	"cafepos/internal/realtime"
	"cafepos/internal/stock"
	"cafepos/internal/tables"
)

// Collections shared with live subscribers and the sync tracker
const (
	CollectionOrders      = "orders"
	CollectionTables      = "tables"
	CollectionIngredients = "ingredients"
	CollectionMenuItems   = "menu_items"
	CollectionCategories  = "menu_categories"
	CollectionSettings    = "settings"
	CollectionSync        = "sync"
)

// Repository is the persistence the service works against
type Repository interface {
	stock.Store
	cart.SequenceAllocator

	ListTables(ctx context.Context, outletID string) ([]models.Table, error)
	SaveTable(ctx context.Context, t *models.Table) error
	DeleteTable(ctx context.Context, outletID, id string) error

	SaveOrder(ctx context.Context, rec *models.OrderRecord) error
	GetOrder(ctx context.Context, outletID, id string) (*models.OrderRecord, error)
	ListOrders(ctx context.Context, f database.OrderFilter) ([]models.OrderRecord, error)

	ListIngredients(ctx context.Context, outletID string) ([]models.Ingredient, error)
	GetIngredient(ctx context.Context, outletID, id string) (*models.Ingredient, error)
	CreateIngredient(ctx context.Context, ing *models.Ingredient) error
	UpdateIngredient(ctx context.Context, ing *models.Ingredient) error
	ListMovements(ctx context.Context, f database.MovementFilter) ([]models.StockMovement, error)

	ListMenuItems(ctx context.Context, outletID string) ([]models.MenuItem, error)
	GetMenuItem(ctx context.Context, outletID, id string) (*models.MenuItem, error)
	SaveMenuItem(ctx context.Context, item *models.MenuItem) error
	DeleteMenuItem(ctx context.Context, outletID, id string) error
	ListCategories(ctx context.Context, outletID string) ([]models.MenuCategory, error)
	SaveCategory(ctx context.Context, cat *models.MenuCategory) error

	GetSettings(ctx context.Context, outletID string) (*models.Settings, error)
	SaveSettings(ctx context.Context, st *models.Settings) error
}

// MenuLookup resolves menu items and forgets an outlet's menu after edits
type MenuLookup interface {
	MenuItem(ctx context.Context, outletID, itemID string) (*models.MenuItem, bool, error)
	Items(ctx context.Context, outletID string) ([]*models.MenuItem, error)
	Invalidate(outletID string)
}

// OrderView is an order with its derived totals
type OrderView struct {
	*models.Order
	Totals models.Totals `json:"totals"`
}

// Service is the point of sale of one outlet
type Service struct {
	mu       sync.Mutex
	outletID string

	cart     *cart.Manager
	board    *tables.Board
	deductor *stock.Deductor
	repo     Repository
	menu     MenuLookup
	tracker  *outbox.Tracker
	events   events.Publisher
	hub      *realtime.Hub
	metrics  *monitoring.Metrics
	monitor  *monitoring.Monitor
	log      *logrus.Entry
	now      func() time.Time

	settingsMu sync.RWMutex
	settings   models.Settings
}

func newService(outletID string, settings models.Settings, deps Dependencies) *Service {
	log := deps.Log.WithFields(logrus.Fields{"component": "pos", "outlet_id": outletID})
	return &Service{
		outletID: outletID,
		cart:     cart.NewManager(outletID, deps.Menu, deps.Repo, deps.Log),
		board:    tables.NewBoard(outletID, deps.Log),
		deductor: stock.NewDeductor(deps.Repo, deps.Menu, deps.Metrics, deps.Log),
		repo:     deps.Repo,
		menu:     deps.Menu,
		tracker:  deps.Tracker,
		events:   deps.Events,
		hub:      deps.Hub,
		metrics:  deps.Metrics,
		monitor:  deps.Monitor,
		log:      log,
		now:      time.Now,
		settings: settings,
	}
}

// OutletID is the outlet this service runs
func (s *Service) OutletID() string {
	return s.outletID
}

// load restores tables and open orders from the repository
func (s *Service) load(ctx context.Context) error {
	ts, err := s.repo.ListTables(ctx, s.outletID)
	if err != nil {
		return fmt.Errorf("failed to load tables: %w", err)
	}
	s.board.Load(ts)

	open, err := s.repo.ListOrders(ctx, database.OrderFilter{
		OutletID: s.outletID,
		Statuses: []models.OrderStatus{models.OrderStatusOpen, models.OrderStatusHeld},
	})
	if err != nil {
		return fmt.Errorf("failed to load open orders: %w", err)
	}
	for i := range open {
		s.cart.Restore(open[i].ToOrder())
	}

	// a table pointing at an order that is no longer open is released
	for _, t := range s.board.List() {
		if t.CurrentOrderID == "" {
			continue
		}
		if _, err := s.cart.Get(t.CurrentOrderID); err == nil {
			continue
		}
		if _, err := s.board.Release(t.ID); err == nil {
			s.log.WithFields(logrus.Fields{"table_id": t.ID, "order_id": t.CurrentOrderID}).
				Warn("Table referenced a closed order, released")
			s.persistTable(t.ID)
		}
	}

	if len(s.cart.Active()) == 0 {
		s.cart.CreateOrder(ctx, "")
	}
	s.snapshot()

	s.log.WithFields(logrus.Fields{"tables": len(ts), "open_orders": len(open)}).Info("Outlet loaded")
	return nil
}

// Settings returns the pricing settings in effect
func (s *Service) Settings() models.Settings {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.settings
}

func (s *Service) pricing() pricing.Config {
	return pricing.FromSettings(s.Settings())
}

// UpdateSettings validates and applies new settings
func (s *Service) UpdateSettings(ctx context.Context, st models.Settings) (models.Settings, error) {
	st.OutletID = s.outletID
	if err := st.Validate(); err != nil {
		return models.Settings{}, invalid(err)
	}
	st.UpdatedAt = s.now()

	s.settingsMu.Lock()
	s.settings = st
	s.settingsMu.Unlock()

	saved := st
	s.enqueue(CollectionSettings, s.outletID, "save settings", func(ctx context.Context) error {
		return s.repo.SaveSettings(ctx, &saved)
	})
	s.publish(CollectionSettings, realtime.OpUpsert, s.outletID, st)
	return st, nil
}

func (s *Service) view(o *models.Order) OrderView {
	return OrderView{Order: o, Totals: pricing.Calculate(o.Lines, o.Discount, o.OtherCharges, s.pricing())}
}

func (s *Service) views(orders []*models.Order) []OrderView {
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, s.view(o))
	}
	return out
}

// enqueue hands a write of one document to the sync tracker and returns its id
func (s *Service) enqueue(collection, documentID, description string, write func(ctx context.Context) error) string {
	return s.tracker.Enqueue(outbox.Op{
		OutletID:    s.outletID,
		Collection:  collection,
		DocumentID:  documentID,
		Description: description,
		Write:       write,
	})
}

func (s *Service) publish(collection string, op realtime.Op, id string, data interface{}) {
	s.hub.Publish(realtime.Change{
		Outlet:     s.outletID,
		Collection: collection,
		Op:         op,
		ID:         id,
		Data:       data,
	})
}

// persistOpen writes the snapshot of an order that is still open or held
func (s *Service) persistOpen(o *models.Order) string {
	status := models.OrderStatusOpen
	if o.Held {
		status = models.OrderStatusHeld
	}
	v := s.view(o)
	rec := models.NewOrderRecord(o, v.Totals, status)
	id := s.enqueue(CollectionOrders, o.ID, fmt.Sprintf("save order #%d", o.Sequence), func(ctx context.Context) error {
		return s.repo.SaveOrder(ctx, rec)
	})
	s.publish(CollectionOrders, realtime.OpUpsert, o.ID, v)
	return id
}

// persistClosed writes the immutable record of a finalized or cancelled order
func (s *Service) persistClosed(rec *models.OrderRecord) string {
	saved := *rec
	saved.Lines = rec.Lines.Clone()
	id := s.enqueue(CollectionOrders, rec.ID, fmt.Sprintf("%s order #%d", rec.Status, rec.Sequence), func(ctx context.Context) error {
		return s.repo.SaveOrder(ctx, &saved)
	})
	s.publish(CollectionOrders, realtime.OpDelete, rec.ID, rec)
	return id
}

func (s *Service) persistTable(tableID string) string {
	t, err := s.board.Get(tableID)
	if err != nil {
		return ""
	}
	id := s.enqueue(CollectionTables, t.ID, "save table "+t.Name, func(ctx context.Context) error {
		return s.repo.SaveTable(ctx, &t)
	})
	s.publish(CollectionTables, realtime.OpUpsert, t.ID, t)
	return id
}

// persistFresh writes orders the cart opened on its own, such as the empty
// order left behind when the last active one closes
func (s *Service) persistFresh(known map[string]bool) {
	for _, o := range s.cart.Active() {
		if !known[o.ID] {
			s.persistOpen(o)
		}
	}
}

func (s *Service) openIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, o := range s.cart.Active() {
		ids[o.ID] = true
	}
	for _, o := range s.cart.Held() {
		ids[o.ID] = true
	}
	return ids
}

// snapshot refreshes the outlet figures on the status endpoint
func (s *Service) snapshot() {
	occupied := 0
	for _, t := range s.board.List() {
		if t.Status != models.TableVacant {
			occupied++
		}
	}
	s.monitor.RecordOutlet(s.outletID, map[string]interface{}{
		"active_orders":   len(s.cart.Active()),
		"held_orders":     len(s.cart.Held()),
		"occupied_tables": occupied,
		"pending_writes":  len(s.pendingSync()),
	})
}

func (s *Service) pendingSync() []outbox.Entry {
	var out []outbox.Entry
	for _, e := range s.tracker.Snapshot(s.outletID) {
		if e.Status == outbox.StatusPending || e.Status == outbox.StatusFailed {
			out = append(out, e)
		}
	}
	return out
}

// Sync lists the tracked writes of the outlet
func (s *Service) Sync() []outbox.Entry {
	return s.tracker.Snapshot(s.outletID)
}

// RetrySync re-queues failed writes, one when id is set or all of them
func (s *Service) RetrySync(id string) (int, error) {
	if id == "" {
		return s.tracker.RetryFailed(s.outletID), nil
	}
	e, ok := s.tracker.Get(id)
	if !ok || e.OutletID != s.outletID {
		return 0, outbox.ErrEntryNotFound
	}
	if err := s.tracker.Retry(id); err != nil {
		return 0, err
	}
	return 1, nil
}
