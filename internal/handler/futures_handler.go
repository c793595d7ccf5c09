package handler

import (
	"strings"

	"github.com/exchange-settlement/internal/middleware"
	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/service"
	"github.com/exchange-settlement/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// FuturesHandler handles futures order API requests
type FuturesHandler struct {
	settlement *service.FuturesSettlement
}

// NewFuturesHandler creates a new FuturesHandler
func NewFuturesHandler(settlement *service.FuturesSettlement) *FuturesHandler {
	return &FuturesHandler{settlement: settlement}
}

// PlaceOrder handles placing a futures order
// POST /api/v1/futures/orders
func (h *FuturesHandler) PlaceOrder(c *gin.Context) {
	var req service.PlaceFuturesOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.UserID = middleware.GetUserID(c)
	req.Symbol = strings.ToUpper(req.Symbol)
	req.Side = models.OrderSide(strings.ToUpper(string(req.Side)))
	req.Type = models.OrderType(strings.ToUpper(string(req.Type)))

	placement, err := h.settlement.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if placement.Netted != nil {
		response.Success(c, placement)
		return
	}
	response.Created(c, placement)
}

// GetOrders handles listing the user's futures orders
// GET /api/v1/futures/orders?status=OPEN
func (h *FuturesHandler) GetOrders(c *gin.Context) {
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

// GetOrder handles getting a single futures order
// GET /api/v1/futures/orders/:id
func (h *FuturesHandler) GetOrder(c *gin.Context) {
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

// CancelOrder handles cancelling a futures order
// DELETE /api/v1/futures/orders/:id
func (h *FuturesHandler) CancelOrder(c *gin.Context) {
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

// FillOrder handles the market engine reporting an execution
// POST /api/v1/engine/futures/:id/fill
func (h *FuturesHandler) FillOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	order, err := h.settlement.FillOrder(c.Request.Context(), id, req.Amount)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, order)
}

// RegisterRoutes registers futures routes. Engine routes require the admin role.
func (h *FuturesHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	futures := rg.Group("/futures/orders")
	futures.Use(authMiddleware)
	{
		futures.POST("", h.PlaceOrder)
		futures.GET("", h.GetOrders)
		futures.GET("/:id", h.GetOrder)
		futures.DELETE("/:id", h.CancelOrder)
	}

	engine := rg.Group("/engine/futures")
	engine.Use(authMiddleware, middleware.AdminMiddleware())
	{
		engine.POST("/:id/fill", h.FillOrder)
	}
}
