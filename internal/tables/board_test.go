package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/models"
)

func newBoardWithTable(t *testing.T) (*Board, models.Table) {
	b := NewBoard("outlet-1", nil)
	table, err := b.Add(models.Table{ID: "t1", Name: "T1", Capacity: 4})
	require.NoError(t, err)
	return b, table
}

func TestAdd(t *testing.T) {
	b, table := newBoardWithTable(t)

	assert.Equal(t, models.TableVacant, table.Status)
	assert.Equal(t, "outlet-1", table.OutletID)

	_, err := b.Add(models.Table{ID: "t1", Name: "Again"})
	assert.ErrorIs(t, err, ErrTableExists)

	_, err = b.Add(models.Table{Name: "  "})
	assert.ErrorIs(t, err, ErrNameRequired)

	generated, err := b.Add(models.Table{Name: "Patio"})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)
	assert.Len(t, b.List(), 2)
}

func TestLifecycle(t *testing.T) {
	b, _ := newBoardWithTable(t)

	table, err := b.Occupy("t1", "o1")
	require.NoError(t, err)
	assert.Equal(t, models.TableOccupied, table.Status)
	assert.Equal(t, "o1", table.CurrentOrderID)

	table, err = b.Bill("t1")
	require.NoError(t, err)
	assert.Equal(t, models.TableBilling, table.Status)
	assert.Equal(t, "o1", table.CurrentOrderID)

	orderID, err := b.Pay("t1")
	require.NoError(t, err)
	assert.Equal(t, "o1", orderID)

	table, err = b.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, models.TableVacant, table.Status)
	assert.Empty(t, table.CurrentOrderID)
}

func TestInvalidTransitions(t *testing.T) {
	b, _ := newBoardWithTable(t)

	_, err := b.Bill("t1")
	assert.ErrorIs(t, err, ErrInvalidTransition, "vacant -> billing")

	_, err = b.Pay("t1")
	assert.ErrorIs(t, err, ErrInvalidTransition, "pay a vacant table")

	_, err = b.Release("t1")
	assert.ErrorIs(t, err, ErrInvalidTransition, "release a vacant table")

	_, err = b.Occupy("t1", "o1")
	require.NoError(t, err)

	_, err = b.Occupy("t1", "o2")
	assert.ErrorIs(t, err, ErrInvalidTransition, "occupied tables keep a single order")

	_, err = b.Pay("t1")
	assert.ErrorIs(t, err, ErrInvalidTransition, "pay skips billing")

	table, err := b.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "o1", table.CurrentOrderID)

	_, err = b.Occupy("t1", "")
	assert.ErrorIs(t, err, ErrOrderRequired)

	_, err = b.Occupy("missing", "o3")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestRelease(t *testing.T) {
	for _, bill := range []bool{false, true} {
		b, _ := newBoardWithTable(t)
		_, err := b.Occupy("t1", "o1")
		require.NoError(t, err)
		if bill {
			_, err = b.Bill("t1")
			require.NoError(t, err)
		}

		orderID, err := b.Release("t1")
		require.NoError(t, err)
		assert.Equal(t, "o1", orderID)

		table, _ := b.Get("t1")
		assert.Equal(t, models.TableVacant, table.Status)
		assert.Empty(t, table.CurrentOrderID)
	}
}

func TestRemove(t *testing.T) {
	b, _ := newBoardWithTable(t)
	_, err := b.Occupy("t1", "o1")
	require.NoError(t, err)

	orderID, err := b.Remove("t1")
	require.NoError(t, err)
	assert.Equal(t, "o1", orderID)

	_, err = b.Get("t1")
	assert.ErrorIs(t, err, ErrTableNotFound)
	_, err = b.Remove("t1")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestUpdate(t *testing.T) {
	b, _ := newBoardWithTable(t)
	_, err := b.Occupy("t1", "o1")
	require.NoError(t, err)

	table, err := b.Update("t1", "Window", 2)
	require.NoError(t, err)
	assert.Equal(t, "Window", table.Name)
	assert.Equal(t, 2, table.Capacity)
	assert.Equal(t, models.TableOccupied, table.Status)

	_, err = b.Update("t1", "", 2)
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestLoad_RepairsInconsistentTables(t *testing.T) {
	b := NewBoard("outlet-1", nil)
	b.Load([]models.Table{
		{ID: "a", Name: "A", Status: models.TableOccupied, CurrentOrderID: "o1"},
		{ID: "b", Name: "B", Status: models.TableOccupied},
		{ID: "c", Name: "C", Status: models.TableVacant, CurrentOrderID: "o2"},
		{ID: "d", Name: "D", Status: "broken"},
	})

	list := b.List()
	require.Len(t, list, 4)
	assert.Equal(t, models.TableOccupied, list[0].Status)
	for _, table := range list[1:] {
		assert.Equal(t, models.TableVacant, table.Status, table.Name)
		assert.Empty(t, table.CurrentOrderID)
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.TableVacant, models.TableOccupied))
	assert.True(t, CanTransition(models.TableOccupied, models.TableBilling))
	assert.True(t, CanTransition(models.TableBilling, models.TableVacant))
	assert.True(t, CanTransition(models.TableOccupied, models.TableVacant))
	assert.False(t, CanTransition(models.TableVacant, models.TableBilling))
	assert.False(t, CanTransition(models.TableBilling, models.TableOccupied))
}
