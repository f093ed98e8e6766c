package pos

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"cafepos/internal/models"
	"cafepos/internal/realtime"
)

// Tables lists the outlet's tables
func (s *Service) Tables() []models.Table {
	return s.board.List()
}

// Table returns one table
func (s *Service) Table(id string) (models.Table, error) {
	return s.board.Get(id)
}

// AddTable registers a new vacant table
func (s *Service) AddTable(_ context.Context, t models.Table) (models.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added, err := s.board.Add(t)
	if err != nil {
		return models.Table{}, classify(err)
	}
	s.persistTable(added.ID)
	s.snapshot()
	return added, nil
}

// UpdateTable renames a table or changes its capacity
func (s *Service) UpdateTable(_ context.Context, id, name string, capacity int) (models.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.board.Update(id, name, capacity)
	if err != nil {
		return models.Table{}, classify(err)
	}
	s.persistTable(id)
	return t, nil
}

// DeleteTable removes a table in any state. Its open order is cancelled.
func (s *Service) DeleteTable(ctx context.Context, tableID string, by models.Identity) (*models.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orderID, err := s.board.Remove(tableID)
	if err != nil {
		return nil, err
	}
	s.enqueue(CollectionTables, tableID, "delete table "+tableID, func(ctx context.Context) error {
		return s.repo.DeleteTable(ctx, s.outletID, tableID)
	})
	s.publish(CollectionTables, realtime.OpDelete, tableID, nil)

	var cancelled *models.OrderRecord
	if orderID != "" {
		rec, err := s.cancelLocked(ctx, orderID, by)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"table_id": tableID, "order_id": orderID}).
				Warn("Deleted table referenced an order that could not be cancelled")
		} else {
			cancelled = &rec
		}
	}
	s.snapshot()
	return cancelled, nil
}

// checkSeating verifies every occupied table points at an open order and
// every seated order sits at a table pointing back at it
func (s *Service) checkSeating() error {
	seated := make(map[string]string)
	for _, t := range s.board.List() {
		if t.Status == models.TableVacant {
			if t.CurrentOrderID != "" {
				return fmt.Errorf("vacant table %s references order %s", t.Name, t.CurrentOrderID)
			}
			continue
		}
		o, err := s.cart.Get(t.CurrentOrderID)
		if err != nil {
			return fmt.Errorf("table %s references missing order %s", t.Name, t.CurrentOrderID)
		}
		if o.TableID != t.ID {
			return fmt.Errorf("table %s references order %s seated at %q", t.Name, o.ID, o.TableID)
		}
		if other, ok := seated[o.ID]; ok {
			return fmt.Errorf("order %s referenced by tables %s and %s", o.ID, other, t.ID)
		}
		seated[o.ID] = t.ID
	}
	return nil
}
