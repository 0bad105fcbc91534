package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"restaurant-ops-api/internal/model"
	"restaurant-ops-api/internal/store"
)

// Order defaults.
const (
	DefaultEstimatedTime = 15 // minutes
)

// TaxRate applied to every order subtotal.
var TaxRate = decimal.NewFromFloat(0.18)

// NewOrder is the caller-supplied part of an order.
type NewOrder struct {
	OrderType           model.OrderType   `json:"order_type"`
	TableNumber         *int              `json:"table_number,omitempty"`
	Items               []model.OrderItem `json:"items"`
	Discount            decimal.Decimal   `json:"discount"`
	WaiterName          *string           `json:"waiter_name,omitempty"`
	CustomerName        *string           `json:"customer_name,omitempty"`
	CustomerPhone       *string           `json:"customer_phone,omitempty"`
	DeliveryAddress     *string           `json:"delivery_address,omitempty"`
	SpecialInstructions *string           `json:"special_instructions,omitempty"`
	Priority            model.Priority    `json:"priority,omitempty"`
	EstimatedTime       int               `json:"estimated_time,omitempty"`
	PaymentMethod       *string           `json:"payment_method,omitempty"`
}

// OrderPatch lists the order fields a caller may change. Nil fields are left alone.
type OrderPatch struct {
	Status              *model.OrderStatus `json:"status,omitempty"`
	TableNumber         *int               `json:"table_number,omitempty"`
	Items               []model.OrderItem  `json:"items,omitempty"`
	Discount            *decimal.Decimal   `json:"discount,omitempty"`
	WaiterName          *string            `json:"waiter_name,omitempty"`
	CustomerName        *string            `json:"customer_name,omitempty"`
	CustomerPhone       *string            `json:"customer_phone,omitempty"`
	DeliveryAddress     *string            `json:"delivery_address,omitempty"`
	SpecialInstructions *string            `json:"special_instructions,omitempty"`
	Priority            *model.Priority    `json:"priority,omitempty"`
	EstimatedTime       *int               `json:"estimated_time,omitempty"`
	PaymentMethod       *string            `json:"payment_method,omitempty"`
	PaymentStatus       *string            `json:"payment_status,omitempty"`
	PaidAt              *time.Time         `json:"paid_at,omitempty"`
}

// OrderManager owns the order lifecycle. Active orders live in the orders table,
// completed and cancelled ones in completed_orders; an order is never in both.
type OrderManager struct {
	store *store.Store
	log   logrus.FieldLogger
	now   func() time.Time
	newID func() string

	writeMu sync.Mutex // serializes order writes that span both partitions

	mu         sync.RWMutex
	active     []model.SavedOrder
	completed  []model.SavedOrder
	counters   map[model.OrderType]int
	counterDay time.Time

	unsubscribe []func()
}

// NewOrderManager loads both partitions and follows them through store subscriptions.
func NewOrderManager(ctx context.Context, st *store.Store, log logrus.FieldLogger, opts ...Option) (*OrderManager, error) {
	o := buildOptions(opts)
	m := &OrderManager{
		store: st,
		log:   log.WithField("component", "orders"),
		now:   o.now,
		newID: o.newID,
	}

	m.unsubscribe = append(m.unsubscribe,
		st.Subscribe(model.TableOrders, func(records []model.Record) { m.refresh(model.TableOrders, records) }),
		st.Subscribe(model.TableCompletedOrders, func(records []model.Record) { m.refresh(model.TableCompletedOrders, records) }),
	)

	for _, table := range []string{model.TableOrders, model.TableCompletedOrders} {
		records, err := st.Get(ctx, table)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.refresh(table, records)
	}
	return m, nil
}

// Close stops following the order tables.
func (m *OrderManager) Close() {
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
}

func (m *OrderManager) refresh(table string, records []model.Record) {
	orders := decodeSnapshot[model.SavedOrder](m.log, table, records)

	m.mu.Lock()
	defer m.mu.Unlock()

	if table == model.TableOrders {
		m.active = orders
	} else {
		m.completed = orders
	}
	m.recount()
}

// recount recomputes the token counters. Caller holds mu.
func (m *OrderManager) recount() {
	now := m.now()
	all := make([]model.SavedOrder, 0, len(m.active)+len(m.completed))
	all = append(all, m.active...)
	all = append(all, m.completed...)
	m.counters = tokenCounters(all, now)
	m.counterDay = now
}

// AddOrder creates a saved order with today's next token for its type.
func (m *OrderManager) AddOrder(ctx context.Context, in NewOrder) (model.SavedOrder, error) {
	if !in.OrderType.Valid() {
		return model.SavedOrder{}, model.InvalidInputError("unknown order type %q", in.OrderType)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	now := m.now()
	order := model.SavedOrder{
		ID:                  m.newID(),
		OrderType:           in.OrderType,
		TableNumber:         in.TableNumber,
		Items:               in.Items,
		Discount:            in.Discount,
		Status:              model.StatusSaved,
		Timestamp:           now,
		WaiterName:          in.WaiterName,
		CustomerName:        in.CustomerName,
		CustomerPhone:       in.CustomerPhone,
		DeliveryAddress:     in.DeliveryAddress,
		SpecialInstructions: in.SpecialInstructions,
		Priority:            in.Priority,
		EstimatedTime:       in.EstimatedTime,
		PaymentMethod:       in.PaymentMethod,
	}
	if order.Items == nil {
		order.Items = []model.OrderItem{}
	}
	if order.Priority == "" {
		order.Priority = model.PriorityNormal
	}
	if order.EstimatedTime == 0 {
		order.EstimatedTime = DefaultEstimatedTime
	}
	computeTotals(&order)

	completed, err := m.store.Get(ctx, model.TableCompletedOrders)
	if err != nil {
		return model.SavedOrder{}, err
	}

	err = m.store.Mutate(ctx, model.TableOrders, model.AuditCreate, func(records []model.Record) ([]model.Record, error) {
		existing, err := model.FromRecords[model.SavedOrder](append(records[:len(records):len(records)], completed...))
		if err != nil {
			return nil, err
		}
		order.TokenNumber = FormatToken(order.OrderType, tokenCounters(existing, now)[order.OrderType])

		rec, err := model.ToRecord(order)
		if err != nil {
			return nil, err
		}
		return append(records, rec), nil
	})
	if err != nil {
		return model.SavedOrder{}, err
	}

	m.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"token":    order.TokenNumber,
		"type":     order.OrderType,
		"total":    order.Total.String(),
	}).Info("order saved")
	return order, nil
}

// UpdateOrderStatus overwrites the order status, moving it between partitions when
// the status crosses the terminal boundary. Any status may follow any other.
func (m *OrderManager) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (model.SavedOrder, error) {
	return m.UpdateOrder(ctx, orderID, OrderPatch{Status: &status})
}

// UpdateOrder merges patch into the order. Totals are recomputed when items or
// discount change.
func (m *OrderManager) UpdateOrder(ctx context.Context, orderID string, patch OrderPatch) (model.SavedOrder, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return model.SavedOrder{}, model.InvalidInputError("unknown order status %q", *patch.Status)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	source, err := m.locate(ctx, orderID)
	if err != nil {
		return model.SavedOrder{}, err
	}

	var (
		updated  model.SavedOrder
		original model.Record
		moved    model.Record
	)
	apply := func(rec model.Record) (model.Record, error) {
		var order model.SavedOrder
		if err := model.FromRecord(rec, &order); err != nil {
			return nil, err
		}
		applyPatch(&order, patch)
		now := m.now()
		order.UpdatedAt = &now

		next, err := model.ToRecord(order)
		if err != nil {
			return nil, err
		}
		rec.Merge(next)
		updated = order
		return rec, nil
	}

	err = m.store.Mutate(ctx, source, model.AuditUpdate, func(records []model.Record) ([]model.Record, error) {
		idx := indexOf(records, orderID)
		if idx < 0 {
			return nil, model.NotFoundError("order", orderID)
		}
		original = records[idx].Clone()
		rec, err := apply(records[idx])
		if err != nil {
			return nil, err
		}
		if partitionFor(updated.Status) == source {
			records[idx] = rec
			return records, nil
		}
		moved = rec
		return append(records[:idx], records[idx+1:]...), nil
	})
	if err != nil {
		return model.SavedOrder{}, err
	}
	if moved == nil {
		return updated, nil
	}

	target := partitionFor(updated.Status)
	err = m.store.Mutate(ctx, target, model.AuditCreate, func(records []model.Record) ([]model.Record, error) {
		return append(records, moved), nil
	})
	if err != nil {
		m.compensate(ctx, source, original, err)
		return model.SavedOrder{}, err
	}

	m.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   updated.Status,
		"from":     source,
		"to":       target,
	}).Info("order moved")
	return updated, nil
}

// compensate puts an order back into its source partition after a failed move.
func (m *OrderManager) compensate(ctx context.Context, source string, original model.Record, cause error) {
	err := m.store.Mutate(ctx, source, model.AuditCreate, func(records []model.Record) ([]model.Record, error) {
		return append(records, original), nil
	})
	if err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{
			"order_id": original.ID(),
			"cause":    cause.Error(),
		}).Error("failed to restore order after interrupted move")
	}
}

// DeleteOrder removes the order from whichever partition holds it. A missing id is a no-op.
func (m *OrderManager) DeleteOrder(ctx context.Context, orderID string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	for _, table := range []string{model.TableOrders, model.TableCompletedOrders} {
		if err := m.store.DeleteItem(ctx, table, orderID); err != nil {
			return err
		}
	}
	return nil
}

// locate returns the table holding orderID.
func (m *OrderManager) locate(ctx context.Context, orderID string) (string, error) {
	for _, table := range []string{model.TableOrders, model.TableCompletedOrders} {
		records, err := m.store.Get(ctx, table)
		if err != nil {
			return "", err
		}
		if indexOf(records, orderID) >= 0 {
			return table, nil
		}
	}
	return "", model.NotFoundError("order", orderID)
}

// Order returns one order from either partition.
func (m *OrderManager) Order(orderID string) (model.SavedOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, list := range [][]model.SavedOrder{m.active, m.completed} {
		for _, o := range list {
			if o.ID == orderID {
				return o, nil
			}
		}
	}
	return model.SavedOrder{}, model.NotFoundError("order", orderID)
}

// ActiveOrders returns the orders that are not yet completed or cancelled, oldest first.
func (m *OrderManager) ActiveOrders() []model.SavedOrder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedByTime(m.active)
}

// CompletedOrders returns the completed and cancelled orders, oldest first.
func (m *OrderManager) CompletedOrders() []model.SavedOrder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedByTime(m.completed)
}

// OrdersForTable returns the active dine-in orders seated at table.
func (m *OrderManager) OrdersForTable(table int) []model.SavedOrder {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []model.SavedOrder{}
	for _, o := range m.active {
		if o.TableNumber != nil && *o.TableNumber == table {
			out = append(out, o)
		}
	}
	return sortedByTime(out)
}

// NextToken previews the token the next order of type t would receive.
func (m *OrderManager) NextToken(t model.OrderType) (string, error) {
	if !t.Valid() {
		return "", model.InvalidInputError("unknown order type %q", t)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !sameDay(m.counterDay, m.now()) {
		m.recount()
	}
	return FormatToken(t, m.counters[t]), nil
}

// TodayStats summarizes the orders placed today.
func (m *OrderManager) TodayStats() model.OrderStats {
	now := m.now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := model.OrderStats{
		Date:    now.Format(time.DateOnly),
		ByType:  make(map[model.OrderType]int, len(model.OrderTypes)),
		Revenue: decimal.Zero,
	}
	for _, t := range model.OrderTypes {
		stats.ByType[t] = 0
	}

	for _, o := range m.active {
		if sameDay(o.Timestamp, now) {
			stats.TotalOrders++
			stats.ByType[o.OrderType]++
			stats.Active++
		}
	}
	for _, o := range m.completed {
		if !sameDay(o.Timestamp, now) {
			continue
		}
		stats.TotalOrders++
		stats.ByType[o.OrderType]++
		if o.Status == model.StatusCancelled {
			stats.Cancelled++
			continue
		}
		stats.Completed++
		stats.Revenue = stats.Revenue.Add(o.Total)
	}
	return stats
}

func partitionFor(status model.OrderStatus) string {
	if status.Terminal() {
		return model.TableCompletedOrders
	}
	return model.TableOrders
}

func applyPatch(o *model.SavedOrder, p OrderPatch) {
	recompute := false
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.TableNumber != nil {
		o.TableNumber = p.TableNumber
	}
	if p.Items != nil {
		o.Items = p.Items
		recompute = true
	}
	if p.Discount != nil {
		o.Discount = *p.Discount
		recompute = true
	}
	if p.WaiterName != nil {
		o.WaiterName = p.WaiterName
	}
	if p.CustomerName != nil {
		o.CustomerName = p.CustomerName
	}
	if p.CustomerPhone != nil {
		o.CustomerPhone = p.CustomerPhone
	}
	if p.DeliveryAddress != nil {
		o.DeliveryAddress = p.DeliveryAddress
	}
	if p.SpecialInstructions != nil {
		o.SpecialInstructions = p.SpecialInstructions
	}
	if p.Priority != nil {
		o.Priority = *p.Priority
	}
	if p.EstimatedTime != nil {
		o.EstimatedTime = *p.EstimatedTime
	}
	if p.PaymentMethod != nil {
		o.PaymentMethod = p.PaymentMethod
	}
	if p.PaymentStatus != nil {
		o.PaymentStatus = p.PaymentStatus
	}
	if p.PaidAt != nil {
		o.PaidAt = p.PaidAt
	}
	if recompute {
		computeTotals(o)
	}
}

// computeTotals sets subtotal, tax and total from the items and discount.
// Tax is money, so it is rounded to 2 places, halves away from zero.
func computeTotals(o *model.SavedOrder) {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	o.Subtotal = subtotal
	o.Tax = subtotal.Mul(TaxRate).Round(2)
	o.Total = subtotal.Add(o.Tax).Sub(o.Discount)
}

func sortedByTime(orders []model.SavedOrder) []model.SavedOrder {
	out := append([]model.SavedOrder{}, orders...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
