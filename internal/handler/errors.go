package handler

import (
	"errors"
	"strconv"

	"github.com/exchange-settlement/internal/service"
	"github.com/exchange-settlement/pkg/response"
	"github.com/gin-gonic/gin"
)

// handleServiceError maps service error kinds to HTTP responses
func handleServiceError(c *gin.Context, err error) {
	var funds *service.InsufficientFundsError
	switch {
	case errors.As(err, &funds):
		response.InsufficientFunds(c, gin.H{
			"currency":  funds.Currency,
			"required":  funds.Required,
			"available": funds.Available,
			"shortfall": funds.Shortfall(),
		})
	case errors.Is(err, service.ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrConflict):
		response.Conflict(c, err.Error())
	default:
		_ = c.Error(err)
		response.InternalError(c, "internal error")
	}
}

// parseID reads a positive numeric path parameter
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// parsePagination reads page and page_size with defaults 1 and 20
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
