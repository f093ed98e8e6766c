package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"cafepos/internal/auth"
	"cafepos/internal/database"
	"cafepos/internal/menu"
	"cafepos/internal/menuimport"
	"cafepos/internal/models"
	"cafepos/internal/monitoring"
	"cafepos/internal/outbox"
	"cafepos/internal/pos"
	"cafepos/internal/realtime"
	"cafepos/internal/report"
)

const (
	secret = "api-test-secret-0123456789"
	outlet = "outlet-1"
)

var (
	cashier = models.Identity{UserID: "u-1", Name: "Ana", Role: models.RoleCashier, Outlets: []string{outlet}}
	manager = models.Identity{UserID: "u-2", Name: "Ben", Role: models.RoleManager, Outlets: []string{outlet}}
)

type testServer struct {
	server  *Server
	store   *database.Store
	tracker *outbox.Tracker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Options{Dialect: "sqlite3", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := database.NewStore(db)

	settings := models.Settings{
		TaxRate:           decimal.NewFromInt(5),
		TaxTiming:         models.TaxPostDiscount,
		RoundingMode:      models.RoundingNone,
		RoundingIncrement: decimal.NewFromInt(1),
		Precision:         2,
	}
	require.NoError(t, database.Seed(context.Background(), store, outlet, settings))

	metrics := monitoring.NewMetrics()
	hub := realtime.NewHub(64)
	tracker := outbox.NewTracker(outbox.Options{}, metrics, nil)
	registry := pos.NewRegistry(pos.Dependencies{
		Repo:    store,
		Menu:    menu.NewCatalog(store, time.Minute, nil),
		Tracker: tracker,
		Hub:     hub,
		Metrics: metrics,
	})

	return &testServer{
		server: NewServer(Options{
			Registry:  registry,
			Importer:  menuimport.NewImporter(nil, nil),
			Hub:       hub,
			JWTSecret: secret,
		}),
		store:   store,
		tracker: tracker,
	}
}

func (ts *testServer) do(t *testing.T, id *models.Identity, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if id != nil {
		token, err := auth.Issue(secret, *id, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type orderResponse struct {
	ID     string            `json:"id"`
	Lines  []models.LineItem `json:"lines"`
	Totals models.Totals     `json:"totals"`
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, nil, http.MethodGet, "/api/v1/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	stranger := models.Identity{UserID: "u-9", Role: models.RoleCashier, Outlets: []string{"outlet-2"}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	token, err := auth.Issue(secret, stranger, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(auth.OutletHeader, outlet)
	rec := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	w = ts.do(t, &cashier, http.MethodPut, "/api/v1/settings", models.Settings{})
	assert.Equal(t, http.StatusForbidden, w.Code, "cashiers cannot change settings")
}

func TestCounterOrderFlow(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, &cashier, http.MethodGet, "/api/v1/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active []orderResponse
	decode(t, w, &active)
	require.Len(t, active, 1)
	base := "/api/v1/orders/" + active[0].ID

	w = ts.do(t, &cashier, http.MethodPost, base+"/items", gin.H{
		"menu_item_id": database.SeedID(outlet, "cappuccino"),
		"variation_id": "large",
		"quantity":     2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = ts.do(t, &cashier, http.MethodPost, base+"/items", gin.H{"menu_item_id": database.SeedID(outlet, "espresso")})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, &cashier, http.MethodPut, base+"/discount", gin.H{"amount": 50})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var order orderResponse
	decode(t, w, &order)
	assert.Equal(t, "472.5", order.Totals.GrandTotal.String())
	require.Len(t, order.Lines, 2)

	w = ts.do(t, &cashier, http.MethodPatch, base+"/items/"+order.Lines[1].ID, gin.H{"quantity": 0})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &order)
	assert.Len(t, order.Lines, 1)

	w = ts.do(t, &cashier, http.MethodPost, base+"/finalize", gin.H{"method": "cash"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res pos.FinalizeResult
	decode(t, w, &res)
	assert.Equal(t, models.OrderStatusFinalized, res.Order.Status)
	assert.Equal(t, "Ana", res.Order.CreatedByName)

	w = ts.do(t, &cashier, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, 0, ts.tracker.Flush(context.Background()))
	w = ts.do(t, &cashier, http.MethodGet, "/api/v1/orders/history?status=finalized", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.OrderRecord
	decode(t, w, &history)
	require.Len(t, history, 1)
	assert.Equal(t, res.Order.ID, history[0].ID)

	w = ts.do(t, &cashier, http.MethodGet, "/api/v1/orders/history?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderErrors(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, &cashier, http.MethodPost, "/api/v1/orders", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var order orderResponse
	decode(t, w, &order)
	base := "/api/v1/orders/" + order.ID

	w = ts.do(t, &cashier, http.MethodPost, base+"/finalize", gin.H{"method": "cash"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty order")

	w = ts.do(t, &cashier, http.MethodPost, base+"/items", gin.H{"menu_item_id": "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, &cashier, http.MethodPost, base+"/items", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, &cashier, http.MethodPut, base+"/type", gin.H{"type": "drive_through"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, &cashier, http.MethodPut, base+"/table", gin.H{"table_id": database.SeedID(outlet, "t1")})
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, &cashier, http.MethodPost, base+"/items", gin.H{"menu_item_id": database.SeedID(outlet, "espresso")})
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, &cashier, http.MethodPost, base+"/finalize", gin.H{"method": "cash"})
	assert.Equal(t, http.StatusConflict, w.Code, "seated orders settle through billing")

	w = ts.do(t, &cashier, http.MethodPost, base+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, &cashier, http.MethodPost, base+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTableFlow(t *testing.T) {
	ts := newTestServer(t)
	table := "/api/v1/tables/" + database.SeedID(outlet, "t2")

	w := ts.do(t, &cashier, http.MethodPost, table+"/open", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var order orderResponse
	decode(t, w, &order)

	w = ts.do(t, &cashier, http.MethodPost, table+"/open", nil)
	require.Equal(t, http.StatusOK, w.Code, "an occupied table returns its order")
	var again orderResponse
	decode(t, w, &again)
	assert.Equal(t, order.ID, again.ID)

	w = ts.do(t, &cashier, http.MethodPost, "/api/v1/orders/"+order.ID+"/items", gin.H{"menu_item_id": database.SeedID(outlet, "espresso")})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, &cashier, http.MethodPost, table+"/pay", gin.H{"method": "card"})
	assert.Equal(t, http.StatusConflict, w.Code, "not billed yet")

	w = ts.do(t, &cashier, http.MethodPost, table+"/bill", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, &cashier, http.MethodPost, table+"/pay", gin.H{"method": "card"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res pos.FinalizeResult
	decode(t, w, &res)
	require.NotNil(t, res.Table)
	assert.Equal(t, models.TableVacant, res.Table.Status)
	assert.Equal(t, "126", res.Order.GrandTotal.String())

	w = ts.do(t, &cashier, http.MethodPost, "/api/v1/tables", gin.H{"name": "Patio"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = ts.do(t, &manager, http.MethodPost, "/api/v1/tables", gin.H{"name": "Patio", "capacity": 2})
	require.Equal(t, http.StatusCreated, w.Code)
	var patio models.Table
	decode(t, w, &patio)

	w = ts.do(t, &manager, http.MethodDelete, "/api/v1/tables/"+patio.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, &cashier, http.MethodGet, "/api/v1/tables", nil)
	var tables []models.Table
	decode(t, w, &tables)
	assert.Len(t, tables, 6)
}

func TestInventoryEndpoints(t *testing.T) {
	ts := newTestServer(t)
	syrup := "/api/v1/inventory/" + database.SeedID(outlet, "syrup")

	w := ts.do(t, &cashier, http.MethodPost, syrup+"/wastage", gin.H{"quantity": 950})
	assert.Equal(t, http.StatusBadRequest, w.Code, "reason is required")

	w = ts.do(t, &cashier, http.MethodPost, syrup+"/wastage", gin.H{"quantity": 950, "reason": "expired"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, &cashier, http.MethodGet, "/api/v1/inventory/low-stock", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var low []models.Ingredient
	decode(t, w, &low)
	require.Len(t, low, 1)
	assert.Equal(t, 50.0, low[0].Stock)

	w = ts.do(t, &cashier, http.MethodPost, "/api/v1/inventory/missing/restock", gin.H{"quantity": 10})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, &cashier, http.MethodPost, syrup+"/restock", gin.H{"quantity": 500, "notes": "po-17"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, &cashier, http.MethodGet, "/api/v1/inventory/movements?ingredient="+database.SeedID(outlet, "syrup"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mvs []models.StockMovement
	decode(t, w, &mvs)
	require.Len(t, mvs, 2)

	w = ts.do(t, &manager, http.MethodPost, "/api/v1/inventory", gin.H{"name": "Oat Milk", "unit": "ml", "stock": 2000, "min_stock": 500})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, &cashier, http.MethodGet, "/api/v1/inventory", nil)
	var all []models.Ingredient
	decode(t, w, &all)
	assert.Len(t, all, 6)
}

func TestMenuEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, &manager, http.MethodPost, "/api/v1/menu/items", gin.H{"name": "", "base_price": "10"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, &manager, http.MethodPost, "/api/v1/menu/items", gin.H{"name": "Flat White", "base_price": "160", "available": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var item models.MenuItem
	decode(t, w, &item)

	w = ts.do(t, &cashier, http.MethodGet, "/api/v1/menu", nil)
	var items []models.MenuItem
	decode(t, w, &items)
	assert.Len(t, items, 3)

	w = ts.do(t, &manager, http.MethodDelete, "/api/v1/menu/items/"+item.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, &manager, http.MethodPost, "/api/v1/menu/import", gin.H{"text": "Latte 150"})
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestSettingsAndSync(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, &manager, http.MethodPut, "/api/v1/settings", gin.H{
		"tax_rate":           "5",
		"tax_timing":         "sideways",
		"rounding_mode":      "none",
		"rounding_increment": "1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, &manager, http.MethodPut, "/api/v1/settings", gin.H{
		"tax_rate":           "12",
		"tax_timing":         "pre_discount",
		"rounding_mode":      "nearest",
		"rounding_increment": "0.5",
		"precision":          2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, &cashier, http.MethodGet, "/api/v1/settings", nil)
	var st models.Settings
	decode(t, w, &st)
	assert.Equal(t, "12", st.TaxRate.String())

	w = ts.do(t, &cashier, http.MethodGet, "/api/v1/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []outbox.Entry
	decode(t, w, &entries)
	assert.NotEmpty(t, entries)

	w = ts.do(t, &cashier, http.MethodPost, "/api/v1/sync/retry", gin.H{"id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, &cashier, http.MethodPost, "/api/v1/sync/retry", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = ts.do(t, &cashier, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	decode(t, w, &status)
	assert.Equal(t, outlet, status["outlet_id"])
	assert.Contains(t, status["metrics"], outlet+"_active_orders")
}

func TestReports(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, &cashier, http.MethodGet, "/api/v1/reports/inventory.xlsx", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, &manager, http.MethodGet, "/api/v1/reports/inventory.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "inventory-outlet-1-")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.InventorySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 7, "header, five ingredients and the total")

	w = ts.do(t, &manager, http.MethodGet, "/api/v1/reports/sales.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sales, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer sales.Close()
}
