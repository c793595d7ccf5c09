package handler

import (
	"strings"

	"github.com/exchange-settlement/internal/middleware"
	"github.com/exchange-settlement/internal/models"
	"github.com/exchange-settlement/internal/service"
	"github.com/exchange-settlement/pkg/response"
	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet API requests
type WalletHandler struct {
	ledger *service.WalletLedger
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(ledger *service.WalletLedger) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// GetWallets handles listing the authenticated user's wallets
// GET /api/v1/wallets?type=SPOT
func (h *WalletHandler) GetWallets(c *gin.Context) {
	userID := middleware.GetUserID(c)
	walletType := models.WalletType(strings.ToUpper(c.Query("type")))

	wallets, err := h.ledger.Wallets(c.Request.Context(), userID, walletType)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, wallets)
}

// GetBalance handles reading one wallet balance
// GET /api/v1/wallets/:type/:currency
func (h *WalletHandler) GetBalance(c *gin.Context) {
	ref := models.WalletRef{
		UserID:   middleware.GetUserID(c),
		Type:     models.WalletType(strings.ToUpper(c.Param("type"))),
		Currency: strings.ToUpper(c.Param("currency")),
	}
	if !ref.Type.Valid() {
		handleServiceError(c, service.ErrInvalidWallet)
		return
	}

	balance, err := h.ledger.Balance(c.Request.Context(), ref)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"type":     ref.Type,
		"currency": ref.Currency,
		"balance":  balance,
	})
}

// RegisterRoutes registers wallet routes
func (h *WalletHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	wallets := rg.Group("/wallets")
	wallets.Use(authMiddleware)
	{
		wallets.GET("", h.GetWallets)
		wallets.GET("/:type/:currency", h.GetBalance)
	}
}
