package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"restaurant-ops-api/internal/model"
	"restaurant-ops-api/internal/service"
	"restaurant-ops-api/pkg/response"
)

// Look-ahead window of GET /inventory/expiring. Larger requests are clamped.
const (
	defaultExpiryDays = 7
	maxExpiryDays     = 36500
)

// InventoryHandler handles inventory-related HTTP requests.
type InventoryHandler struct {
	inventory *service.InventoryManager
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(inventory *service.InventoryManager) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

type createItemRequest struct {
	MenuItemID   string          `json:"menu_item_id"`
	Name         string          `json:"name" validate:"required"`
	CurrentStock float64         `json:"current_stock" validate:"gte=0"`
	MinStock     float64         `json:"min_stock" validate:"gte=0"`
	MaxStock     float64         `json:"max_stock" validate:"gte=0"`
	Unit         string          `json:"unit" validate:"required"`
	Cost         decimal.Decimal `json:"cost"`
	Supplier     *string         `json:"supplier,omitempty"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
}

type updateItemRequest struct {
	MenuItemID *string          `json:"menu_item_id,omitempty"`
	Name       *string          `json:"name,omitempty" validate:"omitempty,min=1"`
	MinStock   *float64         `json:"min_stock,omitempty" validate:"omitempty,gte=0"`
	MaxStock   *float64         `json:"max_stock,omitempty" validate:"omitempty,gte=0"`
	Unit       *string          `json:"unit,omitempty" validate:"omitempty,min=1"`
	Cost       *decimal.Decimal `json:"cost,omitempty"`
	Supplier   *string          `json:"supplier,omitempty"`
	ExpiryDate *time.Time       `json:"expiry_date,omitempty"`
}

type adjustRequest struct {
	Quantity float64 `json:"quantity"`
	Reason   string  `json:"reason" validate:"required"`
}

type restockRequest struct {
	Quantity float64          `json:"quantity" validate:"gt=0"`
	Cost     *decimal.Decimal `json:"cost,omitempty"`
}

type consumeRequest struct {
	Quantity float64 `json:"quantity" validate:"gt=0"`
	Reason   string  `json:"reason" validate:"required"`
}

// List handles GET /api/v1/inventory
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.inventory.Items())
}

// Create handles POST /api/v1/inventory
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}

	item, err := h.inventory.AddItem(r.Context(), model.InventoryItem{
		MenuItemID:   req.MenuItemID,
		Name:         req.Name,
		CurrentStock: req.CurrentStock,
		MinStock:     req.MinStock,
		MaxStock:     req.MaxStock,
		Unit:         req.Unit,
		Cost:         req.Cost,
		Supplier:     req.Supplier,
		ExpiryDate:   req.ExpiryDate,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, item)
}

// Get handles GET /api/v1/inventory/{id}
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.inventory.Item(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, item)
}

// Update handles PATCH /api/v1/inventory/{id}
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}

	item, err := h.inventory.UpdateItem(r.Context(), chi.URLParam(r, "id"), service.InventoryPatch{
		MenuItemID: req.MenuItemID,
		Name:       req.Name,
		MinStock:   req.MinStock,
		MaxStock:   req.MaxStock,
		Unit:       req.Unit,
		Cost:       req.Cost,
		Supplier:   req.Supplier,
		ExpiryDate: req.ExpiryDate,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, item)
}

// Delete handles DELETE /api/v1/inventory/{id}
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.inventory.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// Adjust handles POST /api/v1/inventory/{id}/adjust
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}

	item, err := h.inventory.AdjustStock(r.Context(), chi.URLParam(r, "id"), req.Quantity, req.Reason)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, item)
}

// Restock handles POST /api/v1/inventory/{id}/restock
func (h *InventoryHandler) Restock(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}

	item, err := h.inventory.RestockItem(r.Context(), chi.URLParam(r, "id"), req.Quantity, req.Cost)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, item)
}

// Consume handles POST /api/v1/inventory/{id}/consume
func (h *InventoryHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req consumeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}

	item, err := h.inventory.ConsumeStock(r.Context(), chi.URLParam(r, "id"), req.Quantity, req.Reason)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, item)
}

// Movements handles GET /api/v1/inventory/{id}/movements
func (h *InventoryHandler) Movements(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.inventory.Item(id); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, h.inventory.Movements(id))
}

// LowStock handles GET /api/v1/inventory/low-stock
func (h *InventoryHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.inventory.LowStockItems())
}

// Expiring handles GET /api/v1/inventory/expiring?days=N
func (h *InventoryHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", defaultExpiryDays)
	if err != nil {
		response.Error(w, err)
		return
	}
	if days > maxExpiryDays {
		days = maxExpiryDays
	}
	response.OK(w, h.inventory.ExpiringItems(days))
}

// Stats handles GET /api/v1/inventory/stats
func (h *InventoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.inventory.Stats())
}
