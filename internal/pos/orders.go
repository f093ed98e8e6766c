package pos

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"cafepos/internal/cart"
	"cafepos/internal/database"
	"cafepos/internal/events"
	"cafepos/internal/models"
	"cafepos/internal/realtime"
	"cafepos/internal/stock"
)

// Payment settles an order
type Payment struct {
	Method string `json:"method"`
}

// FinalizeResult is what happened when an order was settled. Write failures
// show up in Errors and in the sync tracker; local state is never rolled back.
type FinalizeResult struct {
	Order   models.OrderRecord `json:"order"`
	Stock   stock.Report       `json:"stock"`
	Table   *models.Table      `json:"table,omitempty"`
	SyncIDs []string           `json:"sync_ids"`
	Errors  []string           `json:"errors,omitempty"`
}

// Active lists the open orders not on hold
func (s *Service) Active() []OrderView {
	return s.views(s.cart.Active())
}

// Held lists the orders on hold
func (s *Service) Held() []OrderView {
	return s.views(s.cart.Held())
}

// View returns an open order with its totals
func (s *Service) View(orderID string) (OrderView, error) {
	o, err := s.cart.Get(orderID)
	if err != nil {
		return OrderView{}, err
	}
	return s.view(o), nil
}

// NewOrder opens an empty takeaway order
func (s *Service) NewOrder(ctx context.Context, by models.Identity) OrderView {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := s.cart.CreateOrder(ctx, by.UserID)
	s.persistOpen(o)
	s.snapshot()
	return s.view(o)
}

// StartTableOrder opens a dine-in order on a vacant table. An occupied table
// returns the order it already has.
func (s *Service) StartTableOrder(ctx context.Context, tableID string, by models.Identity) (OrderView, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.board.Get(tableID)
	if err != nil {
		return OrderView{}, false, err
	}
	if t.Status != models.TableVacant {
		o, err := s.cart.Get(t.CurrentOrderID)
		if err != nil {
			return OrderView{}, false, fmt.Errorf("table %s references a missing order: %w", t.Name, err)
		}
		return s.view(o), false, nil
	}

	o := s.cart.CreateOrder(ctx, by.UserID)
	o, err = s.cart.SetTable(o.ID, tableID)
	if err != nil {
		return OrderView{}, false, err
	}
	if _, err := s.board.Occupy(tableID, o.ID); err != nil {
		s.cart.Remove(ctx, o.ID)
		return OrderView{}, false, err
	}

	s.persistOpen(o)
	s.persistTable(tableID)
	s.snapshot()
	s.log.WithFields(logrus.Fields{"table_id": tableID, "order_id": o.ID}).Info("Table opened")
	return s.view(o), true, nil
}

func (s *Service) mutate(fn func() (*models.Order, error)) (OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := fn()
	if err != nil {
		return OrderView{}, classify(err)
	}
	s.persistOpen(o)
	return s.view(o), nil
}

// AddItem adds a menu item to an order, merging identical lines
func (s *Service) AddItem(ctx context.Context, orderID string, req cart.AddItem) (OrderView, error) {
	return s.mutate(func() (*models.Order, error) {
		return s.cart.AddLineItem(ctx, orderID, req)
	})
}

// UpdateQuantity sets a line's quantity; below 1 removes it
func (s *Service) UpdateQuantity(_ context.Context, orderID, lineID string, quantity int) (OrderView, error) {
	return s.mutate(func() (*models.Order, error) {
		return s.cart.UpdateQuantity(orderID, lineID, quantity)
	})
}

// RemoveItem deletes a line from an order
func (s *Service) RemoveItem(_ context.Context, orderID, lineID string) (OrderView, error) {
	return s.mutate(func() (*models.Order, error) {
		return s.cart.RemoveLineItem(orderID, lineID)
	})
}

// SetDiscount sets the absolute discount of an order
func (s *Service) SetDiscount(_ context.Context, orderID string, amount decimal.Decimal) (OrderView, error) {
	return s.mutate(func() (*models.Order, error) {
		return s.cart.SetDiscount(orderID, amount)
	})
}

// SetOtherCharges sets the extra charges of an order
func (s *Service) SetOtherCharges(_ context.Context, orderID string, amount decimal.Decimal) (OrderView, error) {
	return s.mutate(func() (*models.Order, error) {
		return s.cart.SetOtherCharges(orderID, amount)
	})
}

// SetType changes how an order is served. A seated order stays dine-in.
func (s *Service) SetType(_ context.Context, orderID string, t models.OrderType) (OrderView, error) {
	return s.mutate(func() (*models.Order, error) {
		o, err := s.cart.Get(orderID)
		if err != nil {
			return nil, err
		}
		if o.TableID != "" && t != models.OrderTypeDineIn {
			return nil, ErrSeated
		}
		return s.cart.SetType(orderID, t)
	})
}

// SetTable moves an order to a vacant table, or off its table when tableID is empty
func (s *Service) SetTable(_ context.Context, orderID, tableID string) (OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.cart.Get(orderID)
	if err != nil {
		return OrderView{}, err
	}
	if o.Held {
		return OrderView{}, cart.ErrOrderHeld
	}
	if o.TableID == tableID {
		return s.view(o), nil
	}

	if tableID != "" {
		if _, err := s.board.Occupy(tableID, orderID); err != nil {
			return OrderView{}, classify(err)
		}
		s.persistTable(tableID)
	}
	if o.TableID != "" {
		if _, err := s.board.Release(o.TableID); err == nil {
			s.persistTable(o.TableID)
		}
	}

	o, err = s.cart.SetTable(orderID, tableID)
	if err != nil {
		return OrderView{}, err
	}
	s.persistOpen(o)
	s.snapshot()
	return s.view(o), nil
}

// Hold parks an order
func (s *Service) Hold(ctx context.Context, orderID string) (OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := s.openIDs()
	o, err := s.cart.Hold(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	s.persistOpen(o)
	s.persistFresh(known)
	s.snapshot()
	return s.view(o), nil
}

// Resume brings a held order back
func (s *Service) Resume(_ context.Context, orderID string) (OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.cart.Resume(orderID)
	if err != nil {
		return OrderView{}, err
	}
	s.persistOpen(o)
	s.snapshot()
	return s.view(o), nil
}

// GenerateBill moves a table to billing and returns its order
func (s *Service) GenerateBill(_ context.Context, tableID string) (OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.board.Get(tableID)
	if err != nil {
		return OrderView{}, err
	}
	if t.Status == models.TableOccupied {
		o, err := s.cart.Get(t.CurrentOrderID)
		if err != nil {
			return OrderView{}, err
		}
		if len(o.Lines) == 0 {
			return OrderView{}, invalid(ErrEmptyOrder)
		}
	}
	t, err = s.board.Bill(tableID)
	if err != nil {
		return OrderView{}, err
	}
	s.persistTable(tableID)
	s.snapshot()

	o, err := s.cart.Get(t.CurrentOrderID)
	if err != nil {
		return OrderView{}, err
	}
	return s.view(o), nil
}

// MarkPaid settles the order of a table in billing and frees the table
func (s *Service) MarkPaid(ctx context.Context, tableID string, p Payment, by models.Identity) (FinalizeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.board.Get(tableID)
	if err != nil {
		return FinalizeResult{}, err
	}
	if t.Status != models.TableBilling {
		return FinalizeResult{}, fmt.Errorf("%w: table %s is %s", ErrNotBilling, t.Name, t.Status)
	}
	o, err := s.cart.Get(t.CurrentOrderID)
	if err != nil {
		return FinalizeResult{}, err
	}
	if err := checkPayment(o, p); err != nil {
		return FinalizeResult{}, err
	}

	res := s.finalizeLocked(ctx, o, p, by)

	if _, err := s.board.Pay(tableID); err != nil {
		res.Errors = append(res.Errors, err.Error())
	} else if id := s.persistTable(tableID); id != "" {
		res.SyncIDs = append(res.SyncIDs, id)
		freed, _ := s.board.Get(tableID)
		res.Table = &freed
	}
	s.snapshot()
	return res, nil
}

// Finalize settles an order that is not seated at a table
func (s *Service) Finalize(ctx context.Context, orderID string, p Payment, by models.Identity) (FinalizeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.cart.Get(orderID)
	if err != nil {
		return FinalizeResult{}, err
	}
	if o.TableID != "" {
		return FinalizeResult{}, ErrTableOrder
	}
	if o.Held {
		return FinalizeResult{}, cart.ErrOrderHeld
	}
	if err := checkPayment(o, p); err != nil {
		return FinalizeResult{}, err
	}

	res := s.finalizeLocked(ctx, o, p, by)
	s.snapshot()
	return res, nil
}

func checkPayment(o *models.Order, p Payment) error {
	if len(o.Lines) == 0 {
		return invalid(ErrEmptyOrder)
	}
	if strings.TrimSpace(p.Method) == "" {
		return invalid(ErrPaymentRequired)
	}
	return nil
}

// finalizeLocked computes totals, records the order, deducts stock and takes
// the order out of the open set
func (s *Service) finalizeLocked(ctx context.Context, o *models.Order, p Payment, by models.Identity) FinalizeResult {
	settings := s.Settings()
	v := s.view(o)
	closedAt := s.now()

	rec := models.NewOrderRecord(o, v.Totals, models.OrderStatusFinalized)
	rec.TaxRate = settings.TaxRate
	rec.PaymentMethod = strings.TrimSpace(p.Method)
	rec.CreatedByName = by.Name
	if rec.CreatedBy == "" {
		rec.CreatedBy = by.UserID
	}
	rec.UpdatedAt = closedAt
	rec.ClosedAt = &closedAt

	res := FinalizeResult{Order: *rec}
	res.SyncIDs = append(res.SyncIDs, s.persistClosed(rec))

	entry := s.log.WithFields(logrus.Fields{"order_id": o.ID, "sequence": o.Sequence})
	report, err := s.deductor.DeductOrder(ctx, o, by.UserID)
	if err != nil {
		entry.WithError(err).Error("Stock deduction failed")
		s.metrics.PersistenceFailed(CollectionIngredients)
		res.Errors = append(res.Errors, err.Error())
	}
	res.Stock = report
	for _, f := range report.Failures {
		res.Errors = append(res.Errors, fmt.Sprintf("ingredient %s: %s", f.IngredientID, f.Error))
	}

	known := s.openIDs()
	if _, err := s.cart.Remove(ctx, o.ID); err != nil {
		res.Errors = append(res.Errors, err.Error())
	}
	delete(known, o.ID)
	s.persistFresh(known)

	s.announceStock(ctx, report)
	s.events.Publish(ctx, events.Event{
		Type:     events.TypeOrderFinalized,
		OutletID: s.outletID,
		Payload: events.OrderFinalized{
			OrderID:       rec.ID,
			Sequence:      rec.Sequence,
			Type:          string(rec.Type),
			TableID:       rec.TableID,
			Lines:         len(rec.Lines),
			GrandTotal:    rec.GrandTotal,
			PaymentMethod: rec.PaymentMethod,
		},
	})
	s.metrics.OrderFinalized(s.outletID, string(rec.Type), rec.GrandTotal.InexactFloat64())
	s.monitor.Increment(s.outletID + "_orders_finalized")

	entry.WithFields(logrus.Fields{
		"grand_total": rec.GrandTotal.String(),
		"deductions":  len(report.Deductions),
	}).Info("Order finalized")
	return res
}

// announceStock publishes changed ingredients and low-stock events
func (s *Service) announceStock(ctx context.Context, report stock.Report) {
	var low []events.Event
	for _, d := range report.Deductions {
		s.publish(CollectionIngredients, realtime.OpUpsert, d.IngredientID, d)
		if d.BecameLow {
			low = append(low, events.Event{
				Type:     events.TypeStockLow,
				OutletID: s.outletID,
				Payload:  events.StockLow{IngredientID: d.IngredientID, Name: d.Name, Stock: d.New, MinStock: d.MinStock},
			})
		}
	}
	if len(low) > 0 {
		s.events.Publish(ctx, low...)
	}
	s.refreshLowStock(ctx)
}

func (s *Service) refreshLowStock(ctx context.Context) {
	ings, err := s.repo.ListIngredients(ctx, s.outletID)
	if err != nil {
		s.log.WithError(err).Warn("Failed to refresh low stock figures")
		return
	}
	s.metrics.SetLowStock(s.outletID, len(stock.LowStock(ings)))
}

// Cancel drops an order without deducting stock and frees its table
func (s *Service) Cancel(ctx context.Context, orderID string, by models.Identity) (models.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.cancelLocked(ctx, orderID, by)
	if err != nil {
		return models.OrderRecord{}, err
	}
	s.snapshot()
	return rec, nil
}

func (s *Service) cancelLocked(ctx context.Context, orderID string, by models.Identity) (models.OrderRecord, error) {
	o, err := s.cart.Get(orderID)
	if err != nil {
		return models.OrderRecord{}, err
	}

	if o.TableID != "" {
		if t, err := s.board.Get(o.TableID); err == nil && t.CurrentOrderID == o.ID {
			if _, err := s.board.Release(o.TableID); err == nil {
				s.persistTable(o.TableID)
			}
		}
	}

	known := s.openIDs()
	if _, err := s.cart.Remove(ctx, orderID); err != nil {
		return models.OrderRecord{}, err
	}
	delete(known, orderID)
	s.persistFresh(known)

	closedAt := s.now()
	rec := models.NewOrderRecord(o, s.view(o).Totals, models.OrderStatusCancelled)
	rec.CreatedByName = by.Name
	rec.UpdatedAt = closedAt
	rec.ClosedAt = &closedAt
	s.persistClosed(rec)

	s.events.Publish(ctx, events.Event{
		Type:     events.TypeOrderCancelled,
		OutletID: s.outletID,
		Payload:  events.OrderCancelled{OrderID: o.ID, Sequence: o.Sequence, TableID: o.TableID},
	})
	s.metrics.OrderCancelled(s.outletID)
	s.log.WithFields(logrus.Fields{"order_id": o.ID, "table_id": o.TableID}).Info("Order cancelled")
	return *rec, nil
}

// History lists persisted orders of the outlet
func (s *Service) History(ctx context.Context, f database.OrderFilter) ([]models.OrderRecord, error) {
	f.OutletID = s.outletID
	return s.repo.ListOrders(ctx, f)
}
