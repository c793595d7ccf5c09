package handler

import (
	"github.com/exchange-settlement/internal/middleware"
	"github.com/exchange-settlement/internal/service"
	"github.com/exchange-settlement/pkg/response"
	"github.com/gin-gonic/gin"
)

// P2PHandler handles P2P trade API requests
type P2PHandler struct {
	engine *service.P2PTradeEngine
}

// NewP2PHandler creates a new P2PHandler
func NewP2PHandler(engine *service.P2PTradeEngine) *P2PHandler {
	return &P2PHandler{engine: engine}
}

// CreateTrade handles opening a trade against an offer
// POST /api/v1/p2p/trades
func (h *P2PHandler) CreateTrade(c *gin.Context) {
	var req service.CreateTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.BuyerID = middleware.GetUserID(c)

	trade, err := h.engine.CreateTrade(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, trade)
}

// GetTrade handles getting a trade with its messages
// GET /api/v1/p2p/trades/:id
func (h *P2PHandler) GetTrade(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	trade, err := h.engine.GetTrade(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, trade)
}

// MarkPaid handles the buyer confirming payment
// POST /api/v1/p2p/trades/:id/paid
func (h *P2PHandler) MarkPaid(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	trade, err := h.engine.MarkPaid(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, trade)
}

// Release handles the seller completing a paid trade
// POST /api/v1/p2p/trades/:id/release
func (h *P2PHandler) Release(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	trade, err := h.engine.Release(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, trade)
}

// Cancel handles either party cancelling a pending trade
// POST /api/v1/p2p/trades/:id/cancel
func (h *P2PHandler) Cancel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	trade, err := h.engine.Cancel(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, trade)
}

// PostMessage handles adding a message to the trade thread
// POST /api/v1/p2p/trades/:id/messages
func (h *P2PHandler) PostMessage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Body string `json:"body" binding:"required,max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	message, err := h.engine.PostMessage(c.Request.Context(), id, middleware.GetUserID(c), req.Body)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, message)
}

// RegisterRoutes registers P2P routes
func (h *P2PHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	trades := rg.Group("/p2p/trades")
	trades.Use(authMiddleware)
	{
		trades.POST("", h.CreateTrade)
		trades.GET("/:id", h.GetTrade)
		trades.POST("/:id/paid", h.MarkPaid)
		trades.POST("/:id/release", h.Release)
		trades.POST("/:id/cancel", h.Cancel)
		trades.POST("/:id/messages", h.PostMessage)
	}
}
