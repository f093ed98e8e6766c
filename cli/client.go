package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ApiClient talks to the cafepos API on behalf of one outlet
type ApiClient struct {
	httpClient *http.Client
	BaseURL    string
	Token      string
	OutletID   string
}

// NewApiClient creates a client from CAFEPOS_API_URL, CAFEPOS_TOKEN and CAFEPOS_OUTLET
func NewApiClient() *ApiClient {
	baseURL := os.Getenv("CAFEPOS_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &ApiClient{
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
		BaseURL:  baseURL,
		Token:    os.Getenv("CAFEPOS_TOKEN"),
		OutletID: os.Getenv("CAFEPOS_OUTLET"),
	}
}

// CheckHealth checks if the API is up and running
func (c *ApiClient) CheckHealth() error {
	resp, err := c.httpClient.Get(c.BaseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API health check failed with status code: %d", resp.StatusCode)
	}
	return nil
}

// Table is a seat on the floor
type Table struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Capacity       int    `json:"capacity"`
	Status         string `json:"status"`
	CurrentOrderID string `json:"current_order_id"`
}

// Line is one row of an order
type Line struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

// Totals are the money figures of an order. Amounts arrive as decimal strings.
type Totals struct {
	Subtotal   string `json:"subtotal"`
	Discount   string `json:"discount"`
	Tax        string `json:"tax"`
	GrandTotal string `json:"grand_total"`
}

// Order is an open order with its computed totals
type Order struct {
	ID       string `json:"id"`
	Sequence int64  `json:"sequence"`
	Type     string `json:"type"`
	TableID  string `json:"table_id"`
	Lines    []Line `json:"lines"`
	Held     bool   `json:"held"`
	Totals   Totals `json:"totals"`
}

// MenuItem is the part of a menu item the terminal needs
type MenuItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BasePrice string `json:"base_price"`
	Available bool   `json:"available"`
}

// Ingredient is a stocked ingredient
type Ingredient struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	Stock    float64 `json:"stock"`
	MinStock float64 `json:"min_stock"`
}

// SyncEntry is one tracked write
type SyncEntry struct {
	ID          string `json:"id"`
	Collection  string `json:"collection"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Error       string `json:"error"`
	Attempts    int    `json:"attempts"`
}

// Settlement is the result of finalizing or paying
type Settlement struct {
	Order struct {
		ID         string `json:"id"`
		GrandTotal string `json:"grand_total"`
	} `json:"order"`
	Errors []string `json:"errors"`
}

type apiError struct {
	Error string `json:"error"`
}

func (c *ApiClient) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+"/api/v1"+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.OutletID != "" {
		req.Header.Set("X-Outlet-ID", c.OutletID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var e apiError
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s (%d)", e.Error, resp.StatusCode)
		}
		return fmt.Errorf("API returned status code %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// GetTables lists the floor
func (c *ApiClient) GetTables() ([]Table, error) {
	var tables []Table
	err := c.do(http.MethodGet, "/tables", nil, &tables)
	return tables, err
}

// OpenTable seats a new order at the table or returns the one already there
func (c *ApiClient) OpenTable(id string) (*Order, error) {
	var order Order
	if err := c.do(http.MethodPost, "/tables/"+id+"/open", nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// BillTable moves the table to billing
func (c *ApiClient) BillTable(id string) (*Order, error) {
	var order Order
	if err := c.do(http.MethodPost, "/tables/"+id+"/bill", nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// PayTable settles the billed order of the table
func (c *ApiClient) PayTable(id, method string) (*Settlement, error) {
	var res Settlement
	if err := c.do(http.MethodPost, "/tables/"+id+"/pay", map[string]string{"method": method}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetOrders lists the open orders
func (c *ApiClient) GetOrders() ([]Order, error) {
	var orders []Order
	err := c.do(http.MethodGet, "/orders", nil, &orders)
	return orders, err
}

// GetOrder retrieves an open order
func (c *ApiClient) GetOrder(id string) (*Order, error) {
	var order Order
	if err := c.do(http.MethodGet, "/orders/"+id, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrder opens a new takeaway order
func (c *ApiClient) CreateOrder() (*Order, error) {
	var order Order
	if err := c.do(http.MethodPost, "/orders", nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// AddItem adds a menu item to an order
func (c *ApiClient) AddItem(orderID, menuItemID string, quantity int) (*Order, error) {
	var order Order
	body := map[string]interface{}{"menu_item_id": menuItemID, "quantity": quantity}
	if err := c.do(http.MethodPost, "/orders/"+orderID+"/items", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// FinalizeOrder settles a counter order
func (c *ApiClient) FinalizeOrder(id, method string) (*Settlement, error) {
	var res Settlement
	if err := c.do(http.MethodPost, "/orders/"+id+"/finalize", map[string]string{"method": method}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CancelOrder cancels an order
func (c *ApiClient) CancelOrder(id string) error {
	return c.do(http.MethodPost, "/orders/"+id+"/cancel", nil, nil)
}

// GetMenu lists the menu
func (c *ApiClient) GetMenu() ([]MenuItem, error) {
	var items []MenuItem
	err := c.do(http.MethodGet, "/menu", nil, &items)
	return items, err
}

// GetInventory lists the ingredients
func (c *ApiClient) GetInventory() ([]Ingredient, error) {
	var ings []Ingredient
	err := c.do(http.MethodGet, "/inventory", nil, &ings)
	return ings, err
}

// GetSync lists the tracked writes
func (c *ApiClient) GetSync() ([]SyncEntry, error) {
	var entries []SyncEntry
	err := c.do(http.MethodGet, "/sync", nil, &entries)
	return entries, err
}

// RetrySync re-queues every failed write
func (c *ApiClient) RetrySync() error {
	return c.do(http.MethodPost, "/sync/retry", nil, nil)
}
