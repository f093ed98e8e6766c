package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styling
var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#0a84ff")).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#30d158")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#ff453a")).
			Padding(0, 1)
)

// Model defines the application state
type Model struct {
	mainMenu    list.Model
	floor       table.Model
	inventory   table.Model
	syncView    table.Model
	orderList   list.Model
	orderDetail Order
	menu        []MenuItem
	tables      []Table
	spinner     spinner.Model
	textInput   textinput.Model
	client      *ApiClient
	loading     bool
	currentView string
	error       string
	notice      string
}

// item represents a list item
type item struct {
	title, desc string
}

// FilterValue implements list.Item interface
func (i item) FilterValue() string { return i.title }

// Title implements list.Item interface
func (i item) Title() string { return i.title }

// Description implements list.Item interface
func (i item) Description() string { return i.desc }

func initialModel() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	items := []list.Item{
		item{title: "Floor", desc: "Open, bill and settle tables"},
		item{title: "Orders", desc: "Counter orders and open tickets"},
		item{title: "Inventory", desc: "Stock levels and low stock"},
		item{title: "Sync", desc: "Writes waiting for the database"},
		item{title: "Exit", desc: "Exit the application"},
	}
	mainMenu := list.New(items, list.NewDefaultDelegate(), 0, 0)
	mainMenu.Title = "cafepos"

	floor := table.New(
		table.WithColumns([]table.Column{
			{Title: "Table", Width: 12},
			{Title: "Seats", Width: 6},
			{Title: "Status", Width: 10},
			{Title: "Order", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	inventory := table.New(
		table.WithColumns([]table.Column{
			{Title: "Ingredient", Width: 20},
			{Title: "Stock", Width: 10},
			{Title: "Min", Width: 10},
			{Title: "Unit", Width: 6},
			{Title: "", Width: 5},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	syncView := table.New(
		table.WithColumns([]table.Column{
			{Title: "Collection", Width: 14},
			{Title: "Write", Width: 28},
			{Title: "Status", Width: 10},
			{Title: "Tries", Width: 6},
			{Title: "Error", Width: 30},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	orderList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	orderList.Title = "Open Orders"

	ti := textinput.New()
	ti.Placeholder = "<menu item> [quantity]"
	ti.CharLimit = 64
	ti.Width = 32

	return Model{
		mainMenu:    mainMenu,
		floor:       floor,
		inventory:   inventory,
		syncView:    syncView,
		orderList:   orderList,
		spinner:     s,
		textInput:   ti,
		client:      NewApiClient(),
		currentView: "main",
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.EnterAltScreen, fetchMenu(m.client))
}

// Update handles UI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.mainMenu.SetSize(msg.Width-h, msg.Height-v)
		m.orderList.SetSize(msg.Width-h, msg.Height-v-4)
		return m, nil
	case tea.KeyMsg:
		if m.currentView == "add_item" {
			return m.updateAddItem(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			m.error, m.notice = "", ""
			if m.currentView == "order_detail" {
				m.currentView = "orders"
				return m, fetchOrders(m.client)
			}
			m.currentView = "main"
			return m, nil
		case "enter":
			switch m.currentView {
			case "main":
				return m.selectMenu()
			case "orders":
				if selected, ok := m.orderList.SelectedItem().(orderItem); ok {
					m.currentView = "order_detail"
					return m, fetchOrderDetails(m.client, selected.id)
				}
			}
		case "r":
			return m, m.refresh()
		}
		if cmd, ok := m.handleActionKey(msg.String()); ok {
			m.loading = true
			return m, cmd
		}
	case menuMsg:
		m.menu = msg.items
		return m, nil
	case tablesMsg:
		m.loading = false
		m.tables = msg.tables
		m.floor.SetRows(tableRows(msg.tables))
		return m, nil
	case ordersMsg:
		m.loading = false
		m.orderList.SetItems(convertOrdersToItems(msg.orders))
		return m, nil
	case orderDetailMsg:
		m.loading = false
		m.orderDetail = msg.order
		return m, nil
	case orderOpenedMsg:
		m.loading = false
		m.orderDetail = msg.order
		m.currentView = "order_detail"
		m.error, m.notice = "", msg.message
		return m, nil
	case inventoryMsg:
		m.loading = false
		m.inventory.SetRows(inventoryRows(msg.ingredients))
		return m, nil
	case syncMsg:
		m.loading = false
		m.syncView.SetRows(syncRows(msg.entries))
		return m, nil
	case errorMsg:
		m.loading = false
		m.error, m.notice = msg.err, ""
		return m, nil
	case confirmMsg:
		m.loading = false
		m.error, m.notice = "", msg.message
		if msg.next != "" {
			m.currentView = msg.next
		}
		return m, m.refresh()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.currentView {
	case "main":
		m.mainMenu, cmd = m.mainMenu.Update(msg)
	case "floor":
		m.floor, cmd = m.floor.Update(msg)
	case "orders":
		m.orderList, cmd = m.orderList.Update(msg)
	case "inventory":
		m.inventory, cmd = m.inventory.Update(msg)
	case "sync":
		m.syncView, cmd = m.syncView.Update(msg)
	}
	return m, cmd
}

func (m Model) selectMenu() (tea.Model, tea.Cmd) {
	selected, ok := m.mainMenu.SelectedItem().(item)
	if !ok {
		return m, nil
	}
	switch selected.title {
	case "Exit":
		return m, tea.Quit
	case "Floor":
		m.currentView = "floor"
	case "Orders":
		m.currentView = "orders"
	case "Inventory":
		m.currentView = "inventory"
	case "Sync":
		m.currentView = "sync"
	}
	m.loading = true
	return m, m.refresh()
}

// handleActionKey maps the single-key commands of each view
func (m *Model) handleActionKey(key string) (tea.Cmd, bool) {
	switch m.currentView {
	case "floor":
		t, ok := m.selectedTable()
		if !ok {
			return nil, false
		}
		switch key {
		case "o":
			return openTable(m.client, t), true
		case "b":
			return billTable(m.client, t), true
		case "p":
			return payTable(m.client, t, "cash"), true
		case "P":
			return payTable(m.client, t, "card"), true
		}
	case "orders":
		if key == "n" {
			return createOrder(m.client), true
		}
	case "order_detail":
		switch key {
		case "a":
			m.currentView = "add_item"
			m.textInput.SetValue("")
			m.textInput.Focus()
			return nil, false
		case "f":
			return finalizeOrder(m.client, m.orderDetail.ID, "cash"), true
		case "F":
			return finalizeOrder(m.client, m.orderDetail.ID, "card"), true
		case "c":
			return cancelOrder(m.client, m.orderDetail.ID), true
		}
	case "sync":
		if key == "R" {
			return retrySync(m.client), true
		}
	}
	return nil, false
}

func (m Model) updateAddItem(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.textInput.Blur()
		m.currentView = "order_detail"
		return m, nil
	case "enter":
		m.textInput.Blur()
		m.currentView = "order_detail"
		menuItem, qty, err := parseItemInput(m.textInput.Value(), m.menu)
		if err != nil {
			m.error = err.Error()
			return m, nil
		}
		return m, addItem(m.client, m.orderDetail.ID, menuItem, qty)
	}
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m Model) selectedTable() (Table, bool) {
	row := m.floor.SelectedRow()
	if row == nil {
		return Table{}, false
	}
	for _, t := range m.tables {
		if t.Name == row[0] {
			return t, true
		}
	}
	return Table{}, false
}

func (m Model) refresh() tea.Cmd {
	switch m.currentView {
	case "floor":
		return fetchTables(m.client)
	case "orders":
		return fetchOrders(m.client)
	case "order_detail":
		return fetchOrderDetails(m.client, m.orderDetail.ID)
	case "inventory":
		return fetchInventory(m.client)
	case "sync":
		return fetchSync(m.client)
	}
	return nil
}

// View renders the UI
func (m Model) View() string {
	var body, help string
	switch m.currentView {
	case "main":
		return docStyle.Render(m.mainMenu.View())
	case "floor":
		body = titleStyle.Render("Floor") + "\n\n" + m.floor.View()
		help = "o open  b bill  p pay cash  P pay card  r refresh  esc back"
	case "orders":
		body = m.orderList.View()
		help = "n new order  enter details  r refresh  esc back"
	case "order_detail":
		body = orderDetailView(m.orderDetail)
		help = "a add item  f finalize cash  F finalize card  c cancel  esc back"
	case "add_item":
		body = orderDetailView(m.orderDetail) + "\n" + m.textInput.View()
		help = "enter add  esc cancel"
	case "inventory":
		body = titleStyle.Render("Inventory") + "\n\n" + m.inventory.View()
		help = "r refresh  esc back"
	case "sync":
		body = titleStyle.Render("Sync") + "\n\n" + m.syncView.View()
		help = "R retry failed  r refresh  esc back"
	default:
		return "Loading..."
	}

	view := body + "\n\n" + infoStyle.Render(help) + "\n"
	if m.loading {
		view += m.spinner.View() + " working\n"
	}
	if m.error != "" {
		view += errorStyle.Render(m.error) + "\n"
	}
	if m.notice != "" {
		view += successStyle.Render(m.notice) + "\n"
	}
	return docStyle.Render(view)
}

// Custom message types for the tea.Model
type menuMsg struct {
	items []MenuItem
}

type tablesMsg struct {
	tables []Table
}

type ordersMsg struct {
	orders []Order
}

type orderDetailMsg struct {
	order Order
}

// orderOpenedMsg jumps to an order an action just produced
type orderOpenedMsg struct {
	order   Order
	message string
}

type inventoryMsg struct {
	ingredients []Ingredient
}

type syncMsg struct {
	entries []SyncEntry
}

type errorMsg struct {
	err string
}

// confirmMsg reports a completed action; next switches the view when set
type confirmMsg struct {
	message string
	next    string
}

// orderItem represents an order in the list
type orderItem struct {
	id    string
	title string
	desc  string
}

func (i orderItem) Title() string       { return i.title }
func (i orderItem) Description() string { return i.desc }
func (i orderItem) FilterValue() string { return i.title }

func fetchMenu(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		items, err := client.GetMenu()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching menu: %v", err)}
		}
		return menuMsg{items: items}
	}
}

func fetchTables(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		tables, err := client.GetTables()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching tables: %v", err)}
		}
		return tablesMsg{tables: tables}
	}
}

func fetchOrders(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		orders, err := client.GetOrders()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching orders: %v", err)}
		}
		return ordersMsg{orders: orders}
	}
}

func fetchOrderDetails(client *ApiClient, id string) tea.Cmd {
	return func() tea.Msg {
		order, err := client.GetOrder(id)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching order details: %v", err)}
		}
		return orderDetailMsg{order: *order}
	}
}

func fetchInventory(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		ings, err := client.GetInventory()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching inventory: %v", err)}
		}
		return inventoryMsg{ingredients: ings}
	}
}

func fetchSync(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		entries, err := client.GetSync()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error fetching sync status: %v", err)}
		}
		return syncMsg{entries: entries}
	}
}

func openTable(client *ApiClient, t Table) tea.Cmd {
	return func() tea.Msg {
		order, err := client.OpenTable(t.ID)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error opening %s: %v", t.Name, err)}
		}
		return orderOpenedMsg{order: *order, message: fmt.Sprintf("%s is open", t.Name)}
	}
}

func billTable(client *ApiClient, t Table) tea.Cmd {
	return func() tea.Msg {
		order, err := client.BillTable(t.ID)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error billing %s: %v", t.Name, err)}
		}
		return confirmMsg{message: fmt.Sprintf("%s billed: %s", t.Name, order.Totals.GrandTotal)}
	}
}

func payTable(client *ApiClient, t Table, method string) tea.Cmd {
	return func() tea.Msg {
		res, err := client.PayTable(t.ID, method)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error settling %s: %v", t.Name, err)}
		}
		return settledMsg(res, t.Name+" paid", "")
	}
}

func createOrder(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		order, err := client.CreateOrder()
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error creating order: %v", err)}
		}
		return orderOpenedMsg{order: *order, message: fmt.Sprintf("Order #%d created", order.Sequence)}
	}
}

func addItem(client *ApiClient, orderID string, menuItem MenuItem, qty int) tea.Cmd {
	return func() tea.Msg {
		order, err := client.AddItem(orderID, menuItem.ID, qty)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error adding %s: %v", menuItem.Name, err)}
		}
		return orderDetailMsg{order: *order}
	}
}

func finalizeOrder(client *ApiClient, id, method string) tea.Cmd {
	return func() tea.Msg {
		res, err := client.FinalizeOrder(id, method)
		if err != nil {
			return errorMsg{err: fmt.Sprintf("Error finalizing order: %v", err)}
		}
		return settledMsg(res, "Order settled", "orders")
	}
}

func settledMsg(res *Settlement, what, next string) tea.Msg {
	if len(res.Errors) > 0 {
		return confirmMsg{
			message: fmt.Sprintf("%s (%s), %d writes pending retry", what, res.Order.GrandTotal, len(res.Errors)),
			next:    next,
		}
	}
	return confirmMsg{message: fmt.Sprintf("%s: %s", what, res.Order.GrandTotal), next: next}
}

func cancelOrder(client *ApiClient, id string) tea.Cmd {
	return func() tea.Msg {
		if err := client.CancelOrder(id); err != nil {
			return errorMsg{err: fmt.Sprintf("Error canceling order: %v", err)}
		}
		return confirmMsg{message: "Order canceled", next: "orders"}
	}
}

func retrySync(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		if err := client.RetrySync(); err != nil {
			return errorMsg{err: fmt.Sprintf("Error retrying writes: %v", err)}
		}
		return confirmMsg{message: "Failed writes queued again"}
	}
}

// parseItemInput resolves "<name> [qty]" against the menu, matching names case-insensitively
func parseItemInput(input string, menu []MenuItem) (MenuItem, int, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return MenuItem{}, 0, fmt.Errorf("enter a menu item")
	}
	qty := 1
	if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil && len(fields) > 1 {
		qty = n
		fields = fields[:len(fields)-1]
	}
	name := strings.ToLower(strings.Join(fields, " "))
	for _, it := range menu {
		if strings.ToLower(it.Name) == name {
			return it, qty, nil
		}
	}
	for _, it := range menu {
		if strings.HasPrefix(strings.ToLower(it.Name), name) {
			return it, qty, nil
		}
	}
	return MenuItem{}, 0, fmt.Errorf("no menu item matches %q", input)
}

func tableRows(tables []Table) []table.Row {
	rows := make([]table.Row, len(tables))
	for i, t := range tables {
		order := "-"
		if t.CurrentOrderID != "" {
			order = t.CurrentOrderID[:min(8, len(t.CurrentOrderID))]
		}
		rows[i] = table.Row{t.Name, strconv.Itoa(t.Capacity), t.Status, order}
	}
	return rows
}

func inventoryRows(ings []Ingredient) []table.Row {
	rows := make([]table.Row, len(ings))
	for i, ing := range ings {
		flag := ""
		if ing.Stock < ing.MinStock {
			flag = "LOW"
		}
		rows[i] = table.Row{
			ing.Name,
			strconv.FormatFloat(ing.Stock, 'f', -1, 64),
			strconv.FormatFloat(ing.MinStock, 'f', -1, 64),
			ing.Unit,
			flag,
		}
	}
	return rows
}

func syncRows(entries []SyncEntry) []table.Row {
	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		rows[i] = table.Row{e.Collection, e.Description, e.Status, strconv.Itoa(e.Attempts), e.Error}
	}
	return rows
}

func convertOrdersToItems(orders []Order) []list.Item {
	items := make([]list.Item, len(orders))
	for i, order := range orders {
		where := order.Type
		if order.TableID != "" {
			where = "table"
		}
		items[i] = orderItem{
			id:    order.ID,
			title: fmt.Sprintf("Order #%d (%s)", order.Sequence, where),
			desc:  fmt.Sprintf("%d lines - Total %s", len(order.Lines), order.Totals.GrandTotal),
		}
	}
	return items
}

func orderDetailView(order Order) string {
	view := titleStyle.Render(fmt.Sprintf("Order #%d", order.Sequence)) + "\n\n"
	view += fmt.Sprintf("Type: %s\n", order.Type)
	if order.Held {
		view += "On hold\n"
	}

	view += "\nItems:\n"
	if len(order.Lines) == 0 {
		view += "No items added yet\n"
	}
	for i, line := range order.Lines {
		view += fmt.Sprintf("%d. %s (x%d)  %s\n", i+1, line.Name, line.Quantity, line.LineTotal)
	}

	view += fmt.Sprintf("\nSubtotal: %s\n", order.Totals.Subtotal)
	view += fmt.Sprintf("Discount: %s\n", order.Totals.Discount)
	view += fmt.Sprintf("Tax:      %s\n", order.Totals.Tax)
	view += fmt.Sprintf("Total:    %s\n", order.Totals.GrandTotal)
	return view
}

func main() {
	client := NewApiClient()
	if err := client.CheckHealth(); err != nil {
		fmt.Printf("Warning: API server at %s is not available: %v\n", client.BaseURL, err)
	}
	if client.Token == "" {
		fmt.Println("CAFEPOS_TOKEN is not set; mint one with: cafepos -mint-token user:cashier:<outlet>")
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v", err)
		os.Exit(1)
	}
}
