package service

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"restaurant-ops-api/internal/model"
	"restaurant-ops-api/internal/store"
)

// Movement reasons recorded by the stock operations.
const (
	ReasonRestocked = "Restocked"
)

// InventoryPatch lists the item fields that may change outside the stock operations.
// CurrentStock only moves through adjust, restock and consume.
type InventoryPatch struct {
	MenuItemID *string          `json:"menu_item_id,omitempty"`
	Name       *string          `json:"name,omitempty"`
	MinStock   *float64         `json:"min_stock,omitempty"`
	MaxStock   *float64         `json:"max_stock,omitempty"`
	Unit       *string          `json:"unit,omitempty"`
	Cost       *decimal.Decimal `json:"cost,omitempty"`
	Supplier   *string          `json:"supplier,omitempty"`
	ExpiryDate *time.Time       `json:"expiry_date,omitempty"`
}

// InventoryManager is the stock ledger over the inventory table.
type InventoryManager struct {
	store *store.Store
	log   logrus.FieldLogger
	now   func() time.Time
	newID func() string

	snapMu sync.RWMutex
	items  []model.InventoryItem

	moveMu    sync.RWMutex
	movements []model.StockMovement

	unsubscribe func()
}

// NewInventoryManager loads the inventory table and keeps a snapshot of it in sync.
func NewInventoryManager(ctx context.Context, st *store.Store, log logrus.FieldLogger, opts ...Option) (*InventoryManager, error) {
	o := buildOptions(opts)
	m := &InventoryManager{
		store: st,
		log:   log.WithField("component", "inventory"),
		now:   o.now,
		newID: o.newID,
	}

	m.unsubscribe = st.Subscribe(model.TableInventory, m.refresh)

	records, err := st.Get(ctx, model.TableInventory)
	if err != nil {
		m.unsubscribe()
		return nil, err
	}
	m.refresh(records)
	return m, nil
}

// Close stops following the inventory table.
func (m *InventoryManager) Close() {
	m.unsubscribe()
}

func (m *InventoryManager) refresh(records []model.Record) {
	items := decodeSnapshot[model.InventoryItem](m.log, model.TableInventory, records)

	m.snapMu.Lock()
	m.items = items
	m.snapMu.Unlock()
}

// AddItem creates an inventory item. The id and timestamps are assigned here.
func (m *InventoryManager) AddItem(ctx context.Context, item model.InventoryItem) (model.InventoryItem, error) {
	if strings.TrimSpace(item.Name) == "" {
		return model.InventoryItem{}, model.InvalidInputError("name is required")
	}
	if item.CurrentStock < 0 || item.MinStock < 0 || item.MaxStock < 0 {
		return model.InventoryItem{}, model.InvalidInputError("stock levels must not be negative")
	}

	now := m.now()
	item.ID = ""
	item.CreatedAt = now
	item.UpdatedAt = now

	rec, err := model.ToRecord(item)
	if err != nil {
		return model.InventoryItem{}, err
	}
	delete(rec, model.FieldID)

	created, err := m.store.AddItem(ctx, model.TableInventory, rec)
	if err != nil {
		return model.InventoryItem{}, err
	}

	var out model.InventoryItem
	if err := model.FromRecord(created, &out); err != nil {
		return model.InventoryItem{}, err
	}

	m.log.WithFields(logrus.Fields{"item_id": out.ID, "name": out.Name}).Info("inventory item added")
	return out, nil
}

// UpdateItem applies patch to an existing item.
func (m *InventoryManager) UpdateItem(ctx context.Context, itemID string, patch InventoryPatch) (model.InventoryItem, error) {
	if (patch.MinStock != nil && *patch.MinStock < 0) || (patch.MaxStock != nil && *patch.MaxStock < 0) {
		return model.InventoryItem{}, model.InvalidInputError("stock levels must not be negative")
	}

	return m.modifyItem(ctx, itemID, func(item *model.InventoryItem) error {
		if patch.MenuItemID != nil {
			item.MenuItemID = *patch.MenuItemID
		}
		if patch.Name != nil {
			item.Name = *patch.Name
		}
		if patch.MinStock != nil {
			item.MinStock = *patch.MinStock
		}
		if patch.MaxStock != nil {
			item.MaxStock = *patch.MaxStock
		}
		if patch.Unit != nil {
			item.Unit = *patch.Unit
		}
		if patch.Cost != nil {
			item.Cost = *patch.Cost
		}
		if patch.Supplier != nil {
			item.Supplier = patch.Supplier
		}
		if patch.ExpiryDate != nil {
			item.ExpiryDate = patch.ExpiryDate
		}
		return nil
	})
}

// DeleteItem removes an item. Deleting a missing item is a no-op.
func (m *InventoryManager) DeleteItem(ctx context.Context, itemID string) error {
	return m.store.DeleteItem(ctx, model.TableInventory, itemID)
}

// AdjustStock adds a signed quantity to the item's stock, clamping the result at zero.
// The movement records the requested quantity even when the clamp applies.
func (m *InventoryManager) AdjustStock(ctx context.Context, itemID string, quantity float64, reason string) (model.InventoryItem, error) {
	item, err := m.modifyItem(ctx, itemID, func(item *model.InventoryItem) error {
		item.CurrentStock = math.Max(0, item.CurrentStock+quantity)
		return nil
	})
	if err != nil {
		return model.InventoryItem{}, err
	}

	m.recordMovement(itemID, model.MovementAdjustment, quantity, reason)
	return item, nil
}

// RestockItem increases the item's stock and optionally replaces its unit cost.
func (m *InventoryManager) RestockItem(ctx context.Context, itemID string, quantity float64, cost *decimal.Decimal) (model.InventoryItem, error) {
	if quantity <= 0 {
		return model.InventoryItem{}, model.InvalidInputError("restock quantity must be positive, got %g", quantity)
	}

	item, err := m.modifyItem(ctx, itemID, func(item *model.InventoryItem) error {
		now := m.now()
		item.CurrentStock += quantity
		item.LastRestocked = &now
		if cost != nil {
			item.Cost = *cost
		}
		return nil
	})
	if err != nil {
		return model.InventoryItem{}, err
	}

	m.recordMovement(itemID, model.MovementIn, quantity, ReasonRestocked)
	return item, nil
}

// ConsumeStock takes quantity out of stock. It fails with a *model.StockError and
// changes nothing when the item holds less than quantity.
func (m *InventoryManager) ConsumeStock(ctx context.Context, itemID string, quantity float64, reason string) (model.InventoryItem, error) {
	if quantity <= 0 {
		return model.InventoryItem{}, model.InvalidInputError("consume quantity must be positive, got %g", quantity)
	}

	item, err := m.modifyItem(ctx, itemID, func(item *model.InventoryItem) error {
		if item.CurrentStock < quantity {
			return &model.StockError{ItemID: itemID, Requested: quantity, Available: item.CurrentStock}
		}
		item.CurrentStock -= quantity
		return nil
	})
	if err != nil {
		return model.InventoryItem{}, err
	}

	m.recordMovement(itemID, model.MovementOut, -quantity, reason)
	return item, nil
}

// modifyItem runs fn against one item inside a store read-modify-write.
// Fields unknown to InventoryItem are kept on the record.
func (m *InventoryManager) modifyItem(ctx context.Context, itemID string, fn func(item *model.InventoryItem) error) (model.InventoryItem, error) {
	var updated model.InventoryItem

	err := m.store.Mutate(ctx, model.TableInventory, model.AuditUpdate, func(records []model.Record) ([]model.Record, error) {
		idx := indexOf(records, itemID)
		if idx < 0 {
			return nil, model.NotFoundError("inventory item", itemID)
		}

		var item model.InventoryItem
		if err := model.FromRecord(records[idx], &item); err != nil {
			return nil, err
		}
		if err := fn(&item); err != nil {
			return nil, err
		}
		item.UpdatedAt = m.now()

		rec, err := model.ToRecord(item)
		if err != nil {
			return nil, err
		}
		records[idx].Merge(rec)
		updated = item
		return records, nil
	})
	if err != nil {
		return model.InventoryItem{}, err
	}
	return updated, nil
}

func (m *InventoryManager) recordMovement(itemID string, kind model.MovementKind, quantity float64, reason string) {
	mv := model.StockMovement{
		ID:              m.newID(),
		InventoryItemID: itemID,
		Kind:            kind,
		Quantity:        quantity,
		Reason:          reason,
		Timestamp:       m.now(),
	}

	m.moveMu.Lock()
	m.movements = append(m.movements, mv)
	m.moveMu.Unlock()

	m.log.WithFields(logrus.Fields{
		"item_id":  itemID,
		"kind":     kind,
		"quantity": quantity,
	}).Debug("stock movement recorded")
}

// Movements returns the stock movements of itemID, or all movements when itemID is empty.
func (m *InventoryManager) Movements(itemID string) []model.StockMovement {
	m.moveMu.RLock()
	defer m.moveMu.RUnlock()

	out := []model.StockMovement{}
	for _, mv := range m.movements {
		if itemID == "" || mv.InventoryItemID == itemID {
			out = append(out, mv)
		}
	}
	return out
}

// Item returns one item from the snapshot.
func (m *InventoryManager) Item(itemID string) (model.InventoryItem, error) {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()

	for _, item := range m.items {
		if item.ID == itemID {
			return item, nil
		}
	}
	return model.InventoryItem{}, model.NotFoundError("inventory item", itemID)
}

// Items returns every item in the snapshot.
func (m *InventoryManager) Items() []model.InventoryItem {
	return m.filter(func(model.InventoryItem) bool { return true })
}

// LowStockItems returns the items at or below their minimum stock.
func (m *InventoryManager) LowStockItems() []model.InventoryItem {
	return m.filter(func(item model.InventoryItem) bool {
		return item.CurrentStock <= item.MinStock
	})
}

// ExpiringItems returns the items whose expiry date falls on or before now plus days.
func (m *InventoryManager) ExpiringItems(days int) []model.InventoryItem {
	cutoff := m.now().AddDate(0, 0, days)
	return m.filter(func(item model.InventoryItem) bool {
		return item.ExpiryDate != nil && !item.ExpiryDate.After(cutoff)
	})
}

// Stats summarizes the snapshot.
func (m *InventoryManager) Stats() model.InventoryStats {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()

	stats := model.InventoryStats{TotalItems: len(m.items), StockValue: decimal.Zero}
	for _, item := range m.items {
		if item.CurrentStock <= item.MinStock {
			stats.LowStockItems++
		}
		if item.CurrentStock == 0 {
			stats.OutOfStockItems++
		}
		stats.StockValue = stats.StockValue.Add(item.Cost.Mul(decimal.NewFromFloat(item.CurrentStock)))
	}
	stats.StockValue = stats.StockValue.Round(2)
	return stats
}

func (m *InventoryManager) filter(keep func(model.InventoryItem) bool) []model.InventoryItem {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()

	out := []model.InventoryItem{}
	for _, item := range m.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func indexOf(records []model.Record, id string) int {
	for i, rec := range records {
		if rec.ID() == id {
			return i
		}
	}
	return -1
}
