package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType is how the order leaves the kitchen.
type OrderType string

const (
	OrderDineIn   OrderType = "dine-in"
	OrderTakeout  OrderType = "takeout"
	OrderDelivery OrderType = "delivery"
)

// OrderTypes lists every order type.
var OrderTypes = []OrderType{OrderDineIn, OrderTakeout, OrderDelivery}

// TokenPrefix returns the token prefix of the order type.
func (t OrderType) TokenPrefix() string {
	switch t {
	case OrderDineIn:
		return "D"
	case OrderTakeout:
		return "T"
	case OrderDelivery:
		return "DEL"
	}
	return ""
}

// Valid reports whether t is a known order type.
func (t OrderType) Valid() bool {
	return t.TokenPrefix() != ""
}

// OrderStatus is a state of the order lifecycle:
// saved -> confirmed -> preparing -> ready -> completed, cancelled from any non-terminal state.
type OrderStatus string

const (
	StatusSaved     OrderStatus = "saved"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether the status belongs to the completed partition.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusSaved, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Priority of an order in the kitchen queue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// OrderItem is one line of an order. It has no lifecycle of its own.
type OrderItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Notes    *string         `json:"notes,omitempty"`
	Category *string         `json:"category,omitempty"`
}

// LineTotal returns price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SavedOrder is an order owned by the order manager. It lives in exactly one of the
// active or completed partitions, chosen by Status.
type SavedOrder struct {
	ID                  string          `json:"id"`
	TokenNumber         string          `json:"token_number"`
	OrderType           OrderType       `json:"order_type"`
	TableNumber         *int            `json:"table_number,omitempty"`
	Items               []OrderItem     `json:"items"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	Tax                 decimal.Decimal `json:"tax"`
	Discount            decimal.Decimal `json:"discount"`
	Total               decimal.Decimal `json:"total"`
	Status              OrderStatus     `json:"status"`
	Timestamp           time.Time       `json:"timestamp"`
	UpdatedAt           *time.Time      `json:"updated_at,omitempty"`
	WaiterName          *string         `json:"waiter_name,omitempty"`
	CustomerName        *string         `json:"customer_name,omitempty"`
	CustomerPhone       *string         `json:"customer_phone,omitempty"`
	DeliveryAddress     *string         `json:"delivery_address,omitempty"`
	SpecialInstructions *string         `json:"special_instructions,omitempty"`
	Priority            Priority        `json:"priority"`
	EstimatedTime       int             `json:"estimated_time"` // minutes
	PaymentMethod       *string         `json:"payment_method,omitempty"`
	PaymentStatus       *string         `json:"payment_status,omitempty"`
	PaidAt              *time.Time      `json:"paid_at,omitempty"`
}

// OrderStats summarizes today's orders.
type OrderStats struct {
	Date        string            `json:"date"`
	TotalOrders int               `json:"total_orders"`
	ByType      map[OrderType]int `json:"by_type"`
	Active      int               `json:"active"`
	Completed   int               `json:"completed"`
	Cancelled   int               `json:"cancelled"`
	Revenue     decimal.Decimal   `json:"revenue"`
}
