package pos

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"cafepos/internal/database"
	"cafepos/internal/events"
	"cafepos/internal/models"
	"cafepos/internal/monitoring"
	"cafepos/internal/outbox"
	"cafepos/internal/realtime"
)

// ErrOutletRequired is returned when no outlet was selected
var ErrOutletRequired = errors.New("outlet is required")

// Dependencies are shared by the services of every outlet
type Dependencies struct {
	Repo     Repository
	Menu     MenuLookup
	Tracker  *outbox.Tracker
	Events   events.Publisher
	Hub      *realtime.Hub
	Metrics  *monitoring.Metrics
	Monitor  *monitoring.Monitor
	Defaults func(outletID string) (models.Settings, error)
	Log      *logrus.Entry
}

// Registry lazily starts one service per outlet
type Registry struct {
	deps Dependencies

	mu       sync.Mutex
	services map[string]*Service
}

// NewRegistry fills in the optional dependencies and routes sync tracker
// changes to live subscribers
func NewRegistry(deps Dependencies) *Registry {
	if deps.Log == nil {
		deps.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	if deps.Monitor == nil {
		deps.Monitor = monitoring.NewMonitor()
	}
	if deps.Tracker == nil {
		deps.Tracker = outbox.NewTracker(outbox.Options{}, deps.Metrics, deps.Log)
	}
	if deps.Defaults == nil {
		deps.Defaults = func(outletID string) (models.Settings, error) {
			return models.Settings{
				OutletID:     outletID,
				TaxTiming:    models.TaxPostDiscount,
				RoundingMode: models.RoundingNone,
			}, nil
		}
	}

	hub := deps.Hub
	deps.Tracker.OnChange(func(e outbox.Entry) {
		hub.Publish(realtime.Change{
			Outlet:     e.OutletID,
			Collection: CollectionSync,
			Op:         realtime.OpUpsert,
			ID:         e.ID,
			Data:       e,
		})
	})

	return &Registry{
		deps:     deps,
		services: make(map[string]*Service),
	}
}

// Service returns the running service of an outlet, loading it on first use
func (r *Registry) Service(ctx context.Context, outletID string) (*Service, error) {
	outletID = strings.TrimSpace(outletID)
	if outletID == "" {
		return nil, invalid(ErrOutletRequired)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if svc, ok := r.services[outletID]; ok {
		return svc, nil
	}

	settings, err := r.settings(ctx, outletID)
	if err != nil {
		return nil, err
	}
	svc := newService(outletID, settings, r.deps)
	if err := svc.load(ctx); err != nil {
		return nil, fmt.Errorf("failed to start outlet %s: %w", outletID, err)
	}
	r.services[outletID] = svc
	return svc, nil
}

func (r *Registry) settings(ctx context.Context, outletID string) (models.Settings, error) {
	st, err := r.deps.Repo.GetSettings(ctx, outletID)
	if err == nil {
		return *st, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return models.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	def, err := r.deps.Defaults(outletID)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to build default settings: %w", err)
	}
	def.OutletID = outletID
	return def, nil
}

// Outlets lists the outlets with a running service
func (r *Registry) Outlets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.services))
	for id := range r.services {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Tracker is the shared sync tracker
func (r *Registry) Tracker() *outbox.Tracker {
	return r.deps.Tracker
}

// Monitor holds the per-outlet status figures
func (r *Registry) Monitor() *monitoring.Monitor {
	return r.deps.Monitor
}
