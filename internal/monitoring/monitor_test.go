package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_Snapshot(t *testing.T) {
	m := NewMonitor()
	m.Set("open_orders", 42)

	snap := m.Snapshot()

	value, exists := snap["open_orders"]
	require.True(t, exists)
	assert.Equal(t, 42, value)
	assert.Contains(t, snap, "uptime_seconds")
}

func TestMonitor_Increment(t *testing.T) {
	m := NewMonitor()
	m.Increment("orders_finalized")
	m.Increment("orders_finalized")

	assert.Equal(t, int64(2), m.Count("orders_finalized"))
	assert.Equal(t, int64(2), m.Snapshot()["orders_finalized"])
	assert.Zero(t, m.Count("orders_cancelled"))
}

func TestMonitor_RecordOutletReplacesFigures(t *testing.T) {
	m := NewMonitor()
	figures := map[string]interface{}{"open_orders": 3, "low_stock": 1}
	m.RecordOutlet("outlet-1", figures)
	figures["open_orders"] = 99

	snap := m.Snapshot()
	assert.Equal(t, 3, snap["outlet-1_open_orders"])
	assert.Equal(t, 1, snap["outlet-1_low_stock"])
	assert.Contains(t, snap, "outlet-1_updated_at")

	m.RecordOutlet("outlet-1", map[string]interface{}{"open_orders": 0})
	snap = m.Snapshot()
	assert.Equal(t, 0, snap["outlet-1_open_orders"])
	assert.NotContains(t, snap, "outlet-1_low_stock")
}

func TestMonitor_NilIsSafe(t *testing.T) {
	var m *Monitor
	m.Set("x", 1)
	m.Increment("x")
	m.RecordOutlet("o", map[string]interface{}{"x": 1})
}

func TestMetrics_Collectors(t *testing.T) {
	m := NewMetrics()

	m.OrderFinalized("outlet-1", "dine_in", 472.5)
	m.OrderFinalized("outlet-1", "dine_in", 120)
	m.OrderCancelled("outlet-1")
	m.StockDeducted("outlet-1", 3)
	m.SetLowStock("outlet-1", 2)
	m.PersistenceFailed("orders")
	m.MissingReference("ingredient")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersFinalized.WithLabelValues("outlet-1", "dine_in")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersCancelled.WithLabelValues("outlet-1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.stockDeductions.WithLabelValues("outlet-1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.lowStockIngredients.WithLabelValues("outlet-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistenceFailures.WithLabelValues("orders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.missingReferences.WithLabelValues("ingredient")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.OrderCancelled("outlet-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	m.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "cafepos_orders_cancelled_total"))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.OrderFinalized("o", "takeaway", 1)
	m.OrderCancelled("o")
	m.StockDeducted("o", 1)
	m.SetLowStock("o", 1)
	m.PersistenceFailed("orders")
	m.MissingReference("menu_item")
}
