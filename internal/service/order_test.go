package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-ops-api/internal/model"
	"restaurant-ops-api/internal/repository"
	"restaurant-ops-api/internal/store"
)

func createOrderManager(t *testing.T, kv repository.KVStore) (*OrderManager, *store.Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock(time.Date(2024, 5, 10, 12, 0, 0, 0, time.Local))
	st := createTestStore(t, kv, clock)

	m, err := NewOrderManager(context.Background(), st, discardLogger(), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, st, clock
}

func dineIn(table int, items ...model.OrderItem) NewOrder {
	return NewOrder{OrderType: model.OrderDineIn, TableNumber: &table, Items: items}
}

func item(name, price string, qty int) model.OrderItem {
	return model.OrderItem{ID: name, Name: name, Price: decimal.RequireFromString(price), Quantity: qty}
}

func TestOrders_AddOrderDefaultsAndTotals(t *testing.T) {
	m, _, clock := createOrderManager(t, repository.NewMemoryKV())

	in := dineIn(4, item("naan", "40", 3), item("paneer", "260.50", 1))
	in.Discount = decimal.RequireFromString("10")

	order, err := m.AddOrder(context.Background(), in)
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "D-001", order.TokenNumber)
	assert.Equal(t, model.StatusSaved, order.Status)
	assert.Equal(t, model.PriorityNormal, order.Priority)
	assert.Equal(t, DefaultEstimatedTime, order.EstimatedTime)
	assert.True(t, order.Timestamp.Equal(clock.Now()))

	assert.Equal(t, "380.5", order.Subtotal.String())
	assert.Equal(t, "68.49", order.Tax.String())
	assert.Equal(t, "438.99", order.Total.String())

	active := m.ActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, order.ID, active[0].ID)
	assert.True(t, active[0].Total.Equal(order.Total))
}

func TestOrders_TaxRoundsHalfAwayFromZero(t *testing.T) {
	m, _, _ := createOrderManager(t, repository.NewMemoryKV())

	order, err := m.AddOrder(context.Background(), dineIn(1, item("papad", "0.25", 1)))
	require.NoError(t, err)

	assert.Equal(t, "0.05", order.Tax.String(), "0.045 rounds up")
	assert.Equal(t, "0.3", order.Total.String())
}

func TestOrders_RejectsUnknownType(t *testing.T) {
	m, _, _ := createOrderManager(t, repository.NewMemoryKV())

	_, err := m.AddOrder(context.Background(), NewOrder{OrderType: "drive-thru"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestOrders_TokensIncreasePerTypeAndResetDaily(t *testing.T) {
	ctx := context.Background()
	m, _, clock := createOrderManager(t, repository.NewMemoryKV())

	var tokens []string
	for _, typ := range []model.OrderType{model.OrderDineIn, model.OrderTakeout, model.OrderDineIn, model.OrderDelivery, model.OrderDineIn} {
		o, err := m.AddOrder(ctx, NewOrder{OrderType: typ})
		require.NoError(t, err)
		tokens = append(tokens, o.TokenNumber)
	}
	assert.Equal(t, []string{"D-001", "T-001", "D-002", "DEL-001", "D-003"}, tokens)

	next, err := m.NextToken(model.OrderDineIn)
	require.NoError(t, err)
	assert.Equal(t, "D-004", next)

	// Completing an order does not free its token.
	_, err = m.UpdateOrderStatus(ctx, m.ActiveOrders()[4].ID, model.StatusCompleted)
	require.NoError(t, err)
	o, err := m.AddOrder(ctx, NewOrder{OrderType: model.OrderDineIn})
	require.NoError(t, err)
	assert.Equal(t, "D-004", o.TokenNumber)

	clock.Set(time.Date(2024, 5, 11, 0, 0, 1, 0, time.Local))

	next, err = m.NextToken(model.OrderDineIn)
	require.NoError(t, err)
	assert.Equal(t, "D-001", next)

	o, err = m.AddOrder(ctx, NewOrder{OrderType: model.OrderDineIn})
	require.NoError(t, err)
	assert.Equal(t, "D-001", o.TokenNumber)
	o, err = m.AddOrder(ctx, NewOrder{OrderType: model.OrderTakeout})
	require.NoError(t, err)
	assert.Equal(t, "T-001", o.TokenNumber)
}

func TestOrders_TokensConvergeOnExternalWrites(t *testing.T) {
	ctx := context.Background()
	m, st, clock := createOrderManager(t, repository.NewMemoryKV())

	external, err := model.ToRecord(model.SavedOrder{
		ID:          "imported",
		TokenNumber: "T-041",
		OrderType:   model.OrderTakeout,
		Status:      model.StatusSaved,
		Timestamp:   clock.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, model.TableOrders, []model.Record{external}))

	next, err := m.NextToken(model.OrderTakeout)
	require.NoError(t, err)
	assert.Equal(t, "T-042", next)

	o, err := m.AddOrder(ctx, NewOrder{OrderType: model.OrderTakeout})
	require.NoError(t, err)
	assert.Equal(t, "T-042", o.TokenNumber)
}

func TestOrders_ReplacedTableDropsOldOrders(t *testing.T) {
	ctx := context.Background()
	m, st, clock := createOrderManager(t, repository.NewMemoryKV())

	old, err := m.AddOrder(ctx, dineIn(2, item("chai", "20", 2)))
	require.NoError(t, err)

	kept, err := model.ToRecord(model.SavedOrder{
		ID:          "restored",
		TokenNumber: "T-007",
		OrderType:   model.OrderTakeout,
		Status:      model.StatusSaved,
		Timestamp:   clock.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, model.TableOrders, []model.Record{
		{"id": "broken", "items": "not a list"},
		kept,
	}))

	active := m.ActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, "restored", active[0].ID)

	_, err = m.Order(old.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestOrders_StatusMovesBetweenPartitionsOnce(t *testing.T) {
	ctx := context.Background()
	m, st, _ := createOrderManager(t, repository.NewMemoryKV())

	order, err := m.AddOrder(ctx, dineIn(2, item("tea", "20", 2)))
	require.NoError(t, err)

	var seenInBoth bool
	check := func([]model.Record) {
		active, _ := st.Get(ctx, model.TableOrders)
		done, _ := st.Get(ctx, model.TableCompletedOrders)
		if indexOf(active, order.ID) >= 0 && indexOf(done, order.ID) >= 0 {
			seenInBoth = true
		}
	}
	st.Subscribe(model.TableOrders, check)
	st.Subscribe(model.TableCompletedOrders, check)

	// Any jump is accepted.
	updated, err := m.UpdateOrderStatus(ctx, order.ID, model.StatusReady)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, updated.Status)
	require.NotNil(t, updated.UpdatedAt)
	assert.Len(t, m.ActiveOrders(), 1)

	_, err = m.UpdateOrderStatus(ctx, order.ID, model.StatusCompleted)
	require.NoError(t, err)

	assert.Empty(t, m.ActiveOrders())
	completed := m.CompletedOrders()
	require.Len(t, completed, 1)
	assert.Equal(t, order.ID, completed[0].ID)
	assert.Equal(t, model.StatusCompleted, completed[0].Status)
	assert.False(t, seenInBoth)

	// Completing again stays in place.
	_, err = m.UpdateOrderStatus(ctx, order.ID, model.StatusCompleted)
	require.NoError(t, err)
	assert.Len(t, m.CompletedOrders(), 1)
	assert.Empty(t, m.ActiveOrders())

	got, err := m.Order(order.ID)
	require.NoError(t, err)
	assert.Equal(t, "D-001", got.TokenNumber)
}

func TestOrders_CancelFromActive(t *testing.T) {
	ctx := context.Background()
	m, _, _ := createOrderManager(t, repository.NewMemoryKV())

	order, err := m.AddOrder(ctx, NewOrder{OrderType: model.OrderDelivery})
	require.NoError(t, err)

	_, err = m.UpdateOrderStatus(ctx, order.ID, model.StatusCancelled)
	require.NoError(t, err)
	assert.Empty(t, m.ActiveOrders())
	require.Len(t, m.CompletedOrders(), 1)
	assert.Equal(t, model.StatusCancelled, m.CompletedOrders()[0].Status)
}

func TestOrders_UpdateRecomputesTotals(t *testing.T) {
	ctx := context.Background()
	m, _, _ := createOrderManager(t, repository.NewMemoryKV())

	order, err := m.AddOrder(ctx, dineIn(1, item("lassi", "50", 1)))
	require.NoError(t, err)

	waiter := "Asha"
	discount := decimal.RequireFromString("9")
	updated, err := m.UpdateOrder(ctx, order.ID, OrderPatch{
		Items:      []model.OrderItem{item("lassi", "50", 2)},
		Discount:   &discount,
		WaiterName: &waiter,
	})
	require.NoError(t, err)
	assert.Equal(t, "100", updated.Subtotal.String())
	assert.Equal(t, "18", updated.Tax.String())
	assert.Equal(t, "109", updated.Total.String())
	assert.Equal(t, "Asha", *updated.WaiterName)
	assert.Equal(t, order.TokenNumber, updated.TokenNumber)
}

func TestOrders_UnknownIDs(t *testing.T) {
	ctx := context.Background()
	m, _, _ := createOrderManager(t, repository.NewMemoryKV())

	_, err := m.UpdateOrderStatus(ctx, "ghost", model.StatusReady)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = m.Order("ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, m.DeleteOrder(ctx, "ghost"))

	order, err := m.AddOrder(ctx, NewOrder{OrderType: model.OrderTakeout})
	require.NoError(t, err)
	_, err = m.UpdateOrderStatus(ctx, order.ID, model.OrderStatus("lost"))
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestOrders_DeleteFromEitherPartition(t *testing.T) {
	ctx := context.Background()
	m, _, _ := createOrderManager(t, repository.NewMemoryKV())

	a, err := m.AddOrder(ctx, NewOrder{OrderType: model.OrderTakeout})
	require.NoError(t, err)
	b, err := m.AddOrder(ctx, NewOrder{OrderType: model.OrderTakeout})
	require.NoError(t, err)
	_, err = m.UpdateOrderStatus(ctx, b.ID, model.StatusCompleted)
	require.NoError(t, err)

	require.NoError(t, m.DeleteOrder(ctx, a.ID))
	require.NoError(t, m.DeleteOrder(ctx, b.ID))
	assert.Empty(t, m.ActiveOrders())
	assert.Empty(t, m.CompletedOrders())
}

func TestOrders_OrdersForTable(t *testing.T) {
	ctx := context.Background()
	m, _, _ := createOrderManager(t, repository.NewMemoryKV())

	_, err := m.AddOrder(ctx, dineIn(3))
	require.NoError(t, err)
	_, err = m.AddOrder(ctx, dineIn(5))
	require.NoError(t, err)
	_, err = m.AddOrder(ctx, dineIn(3))
	require.NoError(t, err)

	assert.Len(t, m.OrdersForTable(3), 2)
	assert.Len(t, m.OrdersForTable(5), 1)
	assert.Empty(t, m.OrdersForTable(9))
}

func TestOrders_TodayStats(t *testing.T) {
	ctx := context.Background()
	m, _, clock := createOrderManager(t, repository.NewMemoryKV())

	yesterday := clock.Now()
	_, err := m.AddOrder(ctx, dineIn(1, item("chai", "10", 1)))
	require.NoError(t, err)

	clock.Set(yesterday.Add(24 * time.Hour))
	done, err := m.AddOrder(ctx, dineIn(1, item("thali", "200", 1)))
	require.NoError(t, err)
	cancelled, err := m.AddOrder(ctx, NewOrder{OrderType: model.OrderTakeout})
	require.NoError(t, err)
	_, err = m.AddOrder(ctx, NewOrder{OrderType: model.OrderDelivery})
	require.NoError(t, err)

	_, err = m.UpdateOrderStatus(ctx, done.ID, model.StatusCompleted)
	require.NoError(t, err)
	_, err = m.UpdateOrderStatus(ctx, cancelled.ID, model.StatusCancelled)
	require.NoError(t, err)

	stats := m.TodayStats()
	assert.Equal(t, clock.Now().Format(time.DateOnly), stats.Date)
	assert.Equal(t, 3, stats.TotalOrders)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Cancelled)
	assert.Equal(t, 1, stats.ByType[model.OrderDineIn])
	assert.Equal(t, "236", stats.Revenue.String())
}

func TestOrders_StoreFailureOnAdd(t *testing.T) {
	kv := newFlakyKV()
	m, _, _ := createOrderManager(t, kv)
	kv.setFailing(true)

	_, err := m.AddOrder(context.Background(), NewOrder{OrderType: model.OrderDineIn})
	assert.ErrorIs(t, err, model.ErrStoreWrite)
	assert.Empty(t, m.ActiveOrders())
}

func TestOrders_FailedMoveKeepsOrderActive(t *testing.T) {
	ctx := context.Background()
	kv := newFlakyKV()
	m, _, _ := createOrderManager(t, kv)

	order, err := m.AddOrder(ctx, NewOrder{OrderType: model.OrderDineIn})
	require.NoError(t, err)

	kv.failKeysEndingIn("table:" + model.TableCompletedOrders)
	_, err = m.UpdateOrderStatus(ctx, order.ID, model.StatusCompleted)
	require.ErrorIs(t, err, model.ErrStoreWrite)

	active := m.ActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, order.ID, active[0].ID)
	assert.Equal(t, model.StatusSaved, active[0].Status)
	assert.Empty(t, m.CompletedOrders())
}

func TestTokenNumberParsing(t *testing.T) {
	assert.Equal(t, 7, tokenNumber("DEL-007"))
	assert.Equal(t, 12, tokenNumber("D-12"))
	assert.Equal(t, 0, tokenNumber("T-"))
	assert.Equal(t, 1000, tokenNumber(FormatToken(model.OrderDineIn, 1000)))
	assert.Equal(t, "T-009", FormatToken(model.OrderTakeout, 9))
}
