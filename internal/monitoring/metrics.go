package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the POS in a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ordersFinalized     *prometheus.CounterVec
	ordersCancelled     *prometheus.CounterVec
	orderGrandTotal     *prometheus.HistogramVec
	stockDeductions     *prometheus.CounterVec
	lowStockIngredients *prometheus.GaugeVec
	persistenceFailures *prometheus.CounterVec
	missingReferences   *prometheus.CounterVec
}

// NewMetrics creates and registers the POS collectors
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ordersFinalized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cafepos_orders_finalized_total",
				Help: "Orders finalized, by outlet and order type",
			},
			[]string{"outlet", "type"},
		),
		ordersCancelled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cafepos_orders_cancelled_total",
				Help: "Orders cancelled without stock deduction",
			},
			[]string{"outlet"},
		),
		orderGrandTotal: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cafepos_order_grand_total",
				Help:    "Grand total of finalized orders",
				Buckets: prometheus.ExponentialBuckets(50, 2, 10),
			},
			[]string{"outlet"},
		),
		stockDeductions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cafepos_stock_deductions_total",
				Help: "Ingredient stock deductions applied",
			},
			[]string{"outlet"},
		),
		lowStockIngredients: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cafepos_low_stock_ingredients",
				Help: "Ingredients currently below their minimum stock",
			},
			[]string{"outlet"},
		),
		persistenceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cafepos_persistence_failures_total",
				Help: "Failed writes to the persistence layer, by collection",
			},
			[]string{"collection"},
		),
		missingReferences: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cafepos_missing_references_total",
				Help: "Recipe references skipped because the target no longer exists",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.ordersFinalized,
		m.ordersCancelled,
		m.orderGrandTotal,
		m.stockDeductions,
		m.lowStockIngredients,
		m.persistenceFailures,
		m.missingReferences,
	)
	return m
}

// Registry exposes the private registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OrderFinalized records a finalized order and its grand total
func (m *Metrics) OrderFinalized(outlet, orderType string, grandTotal float64) {
	if m == nil {
		return
	}
	m.ordersFinalized.WithLabelValues(outlet, orderType).Inc()
	m.orderGrandTotal.WithLabelValues(outlet).Observe(grandTotal)
}

// OrderCancelled records a cancelled order
func (m *Metrics) OrderCancelled(outlet string) {
	if m == nil {
		return
	}
	m.ordersCancelled.WithLabelValues(outlet).Inc()
}

// StockDeducted records n ingredient deductions
func (m *Metrics) StockDeducted(outlet string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.stockDeductions.WithLabelValues(outlet).Add(float64(n))
}

// SetLowStock sets the number of low-stock ingredients of an outlet
func (m *Metrics) SetLowStock(outlet string, n int) {
	if m == nil {
		return
	}
	m.lowStockIngredients.WithLabelValues(outlet).Set(float64(n))
}

// PersistenceFailed records a failed write to a collection
func (m *Metrics) PersistenceFailed(collection string) {
	if m == nil {
		return
	}
	m.persistenceFailures.WithLabelValues(collection).Inc()
}

// MissingReference records a skipped menu item or ingredient reference
func (m *Metrics) MissingReference(kind string) {
	if m == nil {
		return
	}
	m.missingReferences.WithLabelValues(kind).Inc()
}
