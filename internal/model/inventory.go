package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is one stock-tracked ingredient or supply.
// CurrentStock is never negative.
type InventoryItem struct {
	ID            string          `json:"id"`
	MenuItemID    string          `json:"menu_item_id"`
	Name          string          `json:"name"`
	CurrentStock  float64         `json:"current_stock"`
	MinStock      float64         `json:"min_stock"`
	MaxStock      float64         `json:"max_stock"`
	Unit          string          `json:"unit"`
	Cost          decimal.Decimal `json:"cost"`
	Supplier      *string         `json:"supplier,omitempty"`
	LastRestocked *time.Time      `json:"last_restocked,omitempty"`
	ExpiryDate    *time.Time      `json:"expiry_date,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// MovementKind classifies a stock movement.
type MovementKind string

const (
	MovementIn         MovementKind = "in"
	MovementOut        MovementKind = "out"
	MovementAdjustment MovementKind = "adjustment"
)

// StockMovement is an immutable log entry of one stock-affecting call.
type StockMovement struct {
	ID              string       `json:"id"`
	InventoryItemID string       `json:"inventory_item_id"`
	Kind            MovementKind `json:"kind"`
	Quantity        float64      `json:"quantity"` // signed
	Reason          string       `json:"reason"`
	Reference       *string      `json:"reference,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`
}

// InventoryStats summarizes the stock ledger.
type InventoryStats struct {
	TotalItems      int             `json:"total_items"`
	LowStockItems   int             `json:"low_stock_items"`
	OutOfStockItems int             `json:"out_of_stock_items"`
	StockValue      decimal.Decimal `json:"stock_value"`
}
