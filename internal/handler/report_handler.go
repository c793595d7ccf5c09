package handler

import (
	"strconv"
	"time"

	"github.com/exchange-settlement/internal/middleware"
	"github.com/exchange-settlement/internal/service"
	"github.com/exchange-settlement/pkg/response"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// ReportHandler handles valuation and admin profit reports
type ReportHandler struct {
	pnl     *service.PnLService
	profits *service.AdminProfitLedger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(pnl *service.PnLService, profits *service.AdminProfitLedger) *ReportHandler {
	return &ReportHandler{pnl: pnl, profits: profits}
}

// GetPnL handles listing the user's daily valuation snapshots
// GET /api/v1/pnl?days=30
func (h *ReportHandler) GetPnL(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	snapshots, err := h.pnl.Snapshots(c.Request.Context(), middleware.GetUserID(c), days)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, snapshots)
}

// GetProfitSummary handles totalling admin profit over a period
// GET /api/v1/admin/profits?from=2024-01-01&to=2024-01-31
func (h *ReportHandler) GetProfitSummary(c *gin.Context) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			response.BadRequest(c, "invalid from date")
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			response.BadRequest(c, "invalid to date")
			return
		}
		to = t
	}

	totals, err := h.profits.Summary(c.Request.Context(), from, to)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"from":   from.Format(dateLayout),
		"to":     to.Format(dateLayout),
		"totals": totals,
	})
}

// RegisterRoutes registers report routes
func (h *ReportHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	rg.GET("/pnl", authMiddleware, h.GetPnL)

	admin := rg.Group("/admin")
	admin.Use(authMiddleware, middleware.AdminMiddleware())
	{
		admin.GET("/profits", h.GetProfitSummary)
	}
}
