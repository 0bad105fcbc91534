package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-ops-api/internal/model"
	"restaurant-ops-api/internal/repository"
)

func createInventoryManager(t *testing.T) (*InventoryManager, *fakeClock) {
	t.Helper()
	clock := newFakeClock(time.Date(2024, 5, 10, 11, 0, 0, 0, time.Local))
	st := createTestStore(t, repository.NewMemoryKV(), clock)

	m, err := NewInventoryManager(context.Background(), st, discardLogger(), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, clock
}

func addTestItem(t *testing.T, m *InventoryManager, name string, stock, min float64) model.InventoryItem {
	t.Helper()
	item, err := m.AddItem(context.Background(), model.InventoryItem{
		Name:         name,
		MenuItemID:   "menu-" + name,
		CurrentStock: stock,
		MinStock:     min,
		MaxStock:     100,
		Unit:         "kg",
		Cost:         decimal.RequireFromString("40.50"),
	})
	require.NoError(t, err)
	return item
}

func TestInventory_AddItem(t *testing.T) {
	m, clock := createInventoryManager(t)

	item := addTestItem(t, m, "rice", 20, 5)
	assert.NotEmpty(t, item.ID)
	assert.True(t, item.CreatedAt.Equal(clock.Now()))

	got, err := m.Item(item.ID)
	require.NoError(t, err)
	assert.Equal(t, "rice", got.Name)
	assert.Equal(t, 20.0, got.CurrentStock)

	_, err = m.AddItem(context.Background(), model.InventoryItem{Name: "oil", CurrentStock: -1})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	_, err = m.AddItem(context.Background(), model.InventoryItem{})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestInventory_LowStockBoundaryAndRestock(t *testing.T) {
	ctx := context.Background()
	m, clock := createInventoryManager(t)

	item := addTestItem(t, m, "paneer", 5, 5)
	addTestItem(t, m, "flour", 50, 5)

	low := m.LowStockItems()
	require.Len(t, low, 1)
	assert.Equal(t, item.ID, low[0].ID)

	newCost := decimal.RequireFromString("42.00")
	restocked, err := m.RestockItem(ctx, item.ID, 10, &newCost)
	require.NoError(t, err)
	assert.Equal(t, 15.0, restocked.CurrentStock)
	require.NotNil(t, restocked.LastRestocked)
	assert.True(t, restocked.LastRestocked.Equal(clock.Now()))
	assert.True(t, restocked.Cost.Equal(newCost))

	assert.Empty(t, m.LowStockItems())

	moves := m.Movements(item.ID)
	require.Len(t, moves, 1)
	assert.Equal(t, model.MovementIn, moves[0].Kind)
	assert.Equal(t, 10.0, moves[0].Quantity)
	assert.Equal(t, ReasonRestocked, moves[0].Reason)
}

func TestInventory_ConsumeIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m, _ := createInventoryManager(t)
	item := addTestItem(t, m, "butter", 3, 1)

	_, err := m.ConsumeStock(ctx, item.ID, 5, "dinner service")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	var stockErr *model.StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 3.0, stockErr.Available)
	assert.Equal(t, 5.0, stockErr.Requested)

	got, err := m.Item(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.CurrentStock)
	assert.Empty(t, m.Movements(item.ID))

	consumed, err := m.ConsumeStock(ctx, item.ID, 3, "dinner service")
	require.NoError(t, err)
	assert.Equal(t, 0.0, consumed.CurrentStock)

	moves := m.Movements(item.ID)
	require.Len(t, moves, 1)
	assert.Equal(t, model.MovementOut, moves[0].Kind)
	assert.Equal(t, -3.0, moves[0].Quantity)
}

func TestInventory_AdjustClampsAtZero(t *testing.T) {
	ctx := context.Background()
	m, _ := createInventoryManager(t)
	item := addTestItem(t, m, "cream", 4, 1)

	adjusted, err := m.AdjustStock(ctx, item.ID, -10, "spoilage")
	require.NoError(t, err)
	assert.Equal(t, 0.0, adjusted.CurrentStock)

	moves := m.Movements(item.ID)
	require.Len(t, moves, 1)
	assert.Equal(t, model.MovementAdjustment, moves[0].Kind)
	assert.Equal(t, -10.0, moves[0].Quantity)
}

func TestInventory_MovementsTrackNetChange(t *testing.T) {
	ctx := context.Background()
	m, _ := createInventoryManager(t)
	item := addTestItem(t, m, "onion", 10, 2)

	_, err := m.RestockItem(ctx, item.ID, 5, nil)
	require.NoError(t, err)
	_, err = m.ConsumeStock(ctx, item.ID, 7, "prep")
	require.NoError(t, err)
	_, err = m.AdjustStock(ctx, item.ID, 2, "recount")
	require.NoError(t, err)
	_, err = m.ConsumeStock(ctx, item.ID, 100, "too much")
	require.ErrorIs(t, err, model.ErrInsufficientStock)

	got, err := m.Item(item.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.CurrentStock, 0.0)

	var sum float64
	for _, mv := range m.Movements(item.ID) {
		sum += mv.Quantity
	}
	assert.Equal(t, got.CurrentStock-item.CurrentStock, sum)
	assert.Len(t, m.Movements(""), 3)
}

func TestInventory_NotFound(t *testing.T) {
	ctx := context.Background()
	m, _ := createInventoryManager(t)

	_, err := m.AdjustStock(ctx, "ghost", 1, "x")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = m.RestockItem(ctx, "ghost", 1, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = m.ConsumeStock(ctx, "ghost", 1, "x")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = m.Item("ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.NoError(t, m.DeleteItem(ctx, "ghost"))
	assert.Empty(t, m.Movements(""))
}

func TestInventory_ExpiringItemsInclusive(t *testing.T) {
	ctx := context.Background()
	m, clock := createInventoryManager(t)

	edge := clock.Now().Add(3 * 24 * time.Hour)
	later := clock.Now().Add(4 * 24 * time.Hour)

	milk := addTestItem(t, m, "milk", 10, 1)
	curd := addTestItem(t, m, "curd", 10, 1)
	addTestItem(t, m, "salt", 10, 1)

	_, err := m.UpdateItem(ctx, milk.ID, InventoryPatch{ExpiryDate: &edge})
	require.NoError(t, err)
	_, err = m.UpdateItem(ctx, curd.ID, InventoryPatch{ExpiryDate: &later})
	require.NoError(t, err)

	expiring := m.ExpiringItems(3)
	require.Len(t, expiring, 1)
	assert.Equal(t, milk.ID, expiring[0].ID)
	assert.Len(t, m.ExpiringItems(4), 2)
}

func TestInventory_ExpiringItemsFarHorizon(t *testing.T) {
	ctx := context.Background()
	m, clock := createInventoryManager(t)

	tomorrow := clock.Now().Add(24 * time.Hour)
	milk := addTestItem(t, m, "milk", 10, 1)
	_, err := m.UpdateItem(ctx, milk.ID, InventoryPatch{ExpiryDate: &tomorrow})
	require.NoError(t, err)

	assert.Len(t, m.ExpiringItems(7), 1)
	assert.Len(t, m.ExpiringItems(200000), 1)
	assert.Empty(t, m.ExpiringItems(0))
}

func TestInventory_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	m, _ := createInventoryManager(t)
	item := addTestItem(t, m, "ghee", 8, 2)

	name := "desi ghee"
	min := 3.0
	updated, err := m.UpdateItem(ctx, item.ID, InventoryPatch{Name: &name, MinStock: &min})
	require.NoError(t, err)
	assert.Equal(t, "desi ghee", updated.Name)
	assert.Equal(t, 3.0, updated.MinStock)
	assert.Equal(t, 8.0, updated.CurrentStock)

	negative := -1.0
	_, err = m.UpdateItem(ctx, item.ID, InventoryPatch{MinStock: &negative})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	require.NoError(t, m.DeleteItem(ctx, item.ID))
	assert.Empty(t, m.Items())
}

func TestInventory_SnapshotFollowsDirectStoreWrites(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Now())
	st := createTestStore(t, repository.NewMemoryKV(), clock)
	m, err := NewInventoryManager(ctx, st, discardLogger(), WithClock(clock.Now))
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, st.Set(ctx, model.TableInventory, []model.Record{
		{"id": "x1", "name": "saffron", "current_stock": 1, "min_stock": 2, "cost": "300"},
	}))

	low := m.LowStockItems()
	require.Len(t, low, 1)
	assert.Equal(t, "saffron", low[0].Name)
}

func TestInventory_ReplacedTableDropsOldItems(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Now())
	st := createTestStore(t, repository.NewMemoryKV(), clock)
	m, err := NewInventoryManager(ctx, st, discardLogger(), WithClock(clock.Now))
	require.NoError(t, err)
	defer m.Close()

	milk := addTestItem(t, m, "milk", 10, 1)

	require.NoError(t, st.Set(ctx, model.TableInventory, []model.Record{
		{"id": "x", "current_stock": "lots"},
		{"id": "y", "name": "jaggery", "current_stock": 4, "min_stock": 1, "cost": "60"},
	}))

	items := m.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "jaggery", items[0].Name)

	_, err = m.Item(milk.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, m.LowStockItems())
}

func TestInventory_Stats(t *testing.T) {
	ctx := context.Background()
	m, _ := createInventoryManager(t)
	a := addTestItem(t, m, "a", 2, 1)
	addTestItem(t, m, "b", 1, 1)
	_, err := m.ConsumeStock(ctx, a.ID, 2, "used")
	require.NoError(t, err)

	stats := m.Stats()
	assert.Equal(t, 2, stats.TotalItems)
	assert.Equal(t, 2, stats.LowStockItems)
	assert.Equal(t, 1, stats.OutOfStockItems)
	assert.True(t, stats.StockValue.Equal(decimal.RequireFromString("40.50")), stats.StockValue.String())
}

func TestInventory_StoreFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Now())
	kv := newFlakyKV()
	st := createTestStore(t, kv, clock)
	m, err := NewInventoryManager(ctx, st, discardLogger(), WithClock(clock.Now))
	require.NoError(t, err)
	defer m.Close()

	item := addTestItem(t, m, "tea", 5, 1)
	kv.setFailing(true)

	_, err = m.RestockItem(ctx, item.ID, 5, nil)
	assert.ErrorIs(t, err, model.ErrStoreWrite)
	assert.Empty(t, m.Movements(item.ID))

	got, err := m.Item(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.CurrentStock)
}
