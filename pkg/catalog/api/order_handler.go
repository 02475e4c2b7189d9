package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

// OrderHandler serves the caller's orders. The caller is the sub claim of
// the request token; a userId in the body is ignored.
type OrderHandler struct {
	service catalog.Service
	logger  *slog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(service catalog.Service, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{service: service, logger: logger}
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if orders == nil {
		orders = []*catalog.Order{}
	}
	render.JSON(w, r, orders)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "Invalid order ID")
	if !ok {
		return
	}
	order, err := h.service.GetOrder(r.Context(), id, userID(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, order)
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.UserID = userID(r)

	order, err := h.service.CreateOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, order)
}
