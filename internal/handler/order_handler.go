package handler

import (
	"strings"

	"github.com/exchange-settlement/internal/middleware"
	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/service"
	"github.com/exchange-settlement/pkg/response"
	"github.com/gin-gonic/gin"
)

// OrderHandler handles exchange order API requests
type OrderHandler struct {
	settlement *service.OrderSettlement
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(settlement *service.OrderSettlement) *OrderHandler {
	return &OrderHandler{settlement: settlement}
}

// PlaceOrder handles placing an order
// POST /api/v1/orders
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.UserID = middleware.GetUserID(c)
	req.Symbol = strings.ToUpper(req.Symbol)
	req.Side = models.OrderSide(strings.ToUpper(string(req.Side)))
	req.Type = models.OrderType(strings.ToUpper(string(req.Type)))

	order, err := h.settlement.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, order)
}

// GetOrders handles listing the user's orders
// GET /api/v1/orders?status=OPEN
func (h *OrderHandler) GetOrders(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, pageSize := parsePagination(c)
	status := models.OrderStatus(strings.ToUpper(c.Query("status")))

	orders, total, err := h.settlement.ListOrders(c.Request.Context(), userID, status, page, pageSize)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SuccessPaginated(c, orders, total, page, pageSize)
}

// GetOrder handles getting a single order
// GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.settlement.GetOrder(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, order)
}

// CancelOrder handles cancelling an order
// DELETE /api/v1/orders/:id
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.settlement.CancelOrder(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, order)
}

// ActivateOrder handles the market engine accepting a deferred order
// POST /api/v1/engine/orders/:id/activate
func (h *OrderHandler) ActivateOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.settlement.ActivateOrder(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, order)
}

// CloseOrder handles the market engine reporting a filled order
// POST /api/v1/engine/orders/:id/close
func (h *OrderHandler) CloseOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.settlement.CloseOrder(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, order)
}

// RegisterRoutes registers order routes. Engine routes require the admin role.
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	orders := rg.Group("/orders")
	orders.Use(authMiddleware)
	{
		orders.POST("", h.PlaceOrder)
		orders.GET("", h.GetOrders)
		orders.GET("/:id", h.GetOrder)
		orders.DELETE("/:id", h.CancelOrder)
	}

	engine := rg.Group("/engine/orders")
	engine.Use(authMiddleware, middleware.AdminMiddleware())
	{
		engine.POST("/:id/activate", h.ActivateOrder)
		engine.POST("/:id/close", h.CloseOrder)
	}
}
