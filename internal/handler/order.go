package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"restaurant-ops-api/internal/model"
	"restaurant-ops-api/internal/service"
	"restaurant-ops-api/pkg/apierror"
	"restaurant-ops-api/pkg/response"
)

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	orders *service.OrderManager
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(orders *service.OrderManager) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type orderItemRequest struct {
	ID       string          `json:"id" validate:"required"`
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"min=1"`
	Notes    *string         `json:"notes,omitempty"`
	Category *string         `json:"category,omitempty"`
}

func (r orderItemRequest) toModel() model.OrderItem {
	return model.OrderItem{
		ID:       r.ID,
		Name:     r.Name,
		Price:    r.Price,
		Quantity: r.Quantity,
		Notes:    r.Notes,
		Category: r.Category,
	}
}

type createOrderRequest struct {
	OrderType           string             `json:"order_type" validate:"required,oneof=dine-in takeout delivery"`
	TableNumber         *int               `json:"table_number,omitempty" validate:"omitempty,min=1"`
	Items               []orderItemRequest `json:"items" validate:"dive"`
	Discount            decimal.Decimal    `json:"discount"`
	WaiterName          *string            `json:"waiter_name,omitempty"`
	CustomerName        *string            `json:"customer_name,omitempty"`
	CustomerPhone       *string            `json:"customer_phone,omitempty"`
	DeliveryAddress     *string            `json:"delivery_address,omitempty"`
	SpecialInstructions *string            `json:"special_instructions,omitempty"`
	Priority            string             `json:"priority,omitempty" validate:"omitempty,oneof=low normal high urgent"`
	EstimatedTime       int                `json:"estimated_time,omitempty" validate:"gte=0"`
	PaymentMethod       *string            `json:"payment_method,omitempty"`
}

type updateOrderRequest struct {
	TableNumber         *int               `json:"table_number,omitempty" validate:"omitempty,min=1"`
	Items               []orderItemRequest `json:"items,omitempty" validate:"omitempty,dive"`
	Discount            *decimal.Decimal   `json:"discount,omitempty"`
	WaiterName          *string            `json:"waiter_name,omitempty"`
	CustomerName        *string            `json:"customer_name,omitempty"`
	CustomerPhone       *string            `json:"customer_phone,omitempty"`
	DeliveryAddress     *string            `json:"delivery_address,omitempty"`
	SpecialInstructions *string            `json:"special_instructions,omitempty"`
	Priority            *string            `json:"priority,omitempty" validate:"omitempty,oneof=low normal high urgent"`
	EstimatedTime       *int               `json:"estimated_time,omitempty" validate:"omitempty,gte=0"`
	PaymentMethod       *string            `json:"payment_method,omitempty"`
	PaymentStatus       *string            `json:"payment_status,omitempty"`
	PaidAt              *time.Time         `json:"paid_at,omitempty"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=saved confirmed preparing ready completed cancelled"`
}

func toItems(in []orderItemRequest) ([]model.OrderItem, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]model.OrderItem, 0, len(in))
	for _, it := range in {
		if it.Price.IsNegative() {
			return nil, apierror.ValidationError("request validation failed",
				apierror.FieldError{Field: "items.price", Message: "must not be negative"})
		}
		out = append(out, it.toModel())
	}
	return out, nil
}

// List handles GET /api/v1/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("table"); raw != "" {
		table, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(w, apierror.BadRequest("table must be an integer"))
			return
		}
		response.OK(w, h.orders.OrdersForTable(table))
		return
	}
	response.OK(w, h.orders.ActiveOrders())
}

// ListCompleted handles GET /api/v1/orders/completed
func (h *OrderHandler) ListCompleted(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.orders.CompletedOrders())
}

// Create handles POST /api/v1/orders
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	items, err := toItems(req.Items)
	if err != nil {
		response.Error(w, err)
		return
	}

	order, err := h.orders.AddOrder(r.Context(), service.NewOrder{
		OrderType:           model.OrderType(req.OrderType),
		TableNumber:         req.TableNumber,
		Items:               items,
		Discount:            req.Discount,
		WaiterName:          req.WaiterName,
		CustomerName:        req.CustomerName,
		CustomerPhone:       req.CustomerPhone,
		DeliveryAddress:     req.DeliveryAddress,
		SpecialInstructions: req.SpecialInstructions,
		Priority:            model.Priority(req.Priority),
		EstimatedTime:       req.EstimatedTime,
		PaymentMethod:       req.PaymentMethod,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, order)
}

// Get handles GET /api/v1/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Order(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, order)
}

// Update handles PATCH /api/v1/orders/{id}
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	items, err := toItems(req.Items)
	if err != nil {
		response.Error(w, err)
		return
	}

	patch := service.OrderPatch{
		TableNumber:         req.TableNumber,
		Items:               items,
		Discount:            req.Discount,
		WaiterName:          req.WaiterName,
		CustomerName:        req.CustomerName,
		CustomerPhone:       req.CustomerPhone,
		DeliveryAddress:     req.DeliveryAddress,
		SpecialInstructions: req.SpecialInstructions,
		EstimatedTime:       req.EstimatedTime,
		PaymentMethod:       req.PaymentMethod,
		PaymentStatus:       req.PaymentStatus,
		PaidAt:              req.PaidAt,
	}
	if req.Priority != nil {
		p := model.Priority(*req.Priority)
		patch.Priority = &p
	}

	order, err := h.orders.UpdateOrder(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, order)
}

// UpdateStatus handles PATCH /api/v1/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}

	order, err := h.orders.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), model.OrderStatus(req.Status))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, order)
}

// Delete handles DELETE /api/v1/orders/{id}
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// Stats handles GET /api/v1/orders/stats
func (h *OrderHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.orders.TodayStats()

	next := make(map[model.OrderType]string, len(model.OrderTypes))
	for _, t := range model.OrderTypes {
		token, err := h.orders.NextToken(t)
		if err != nil {
			response.Error(w, err)
			return
		}
		next[t] = token
	}

	response.OK(w, map[string]interface{}{
		"today":       stats,
		"next_tokens": next,
	})
}
