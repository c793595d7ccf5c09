package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Business codes carried in the envelope next to the HTTP status
const (
	CodeOK                = 0
	CodeInvalid           = -1
	CodeUnauthorized      = -1001
	CodeForbidden         = -1002
	CodeNotFound          = -1003
	CodeConflict          = -1004
	CodeInsufficientFunds = -2019
)

// Response is the JSON envelope of every API reply
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Page wraps one page of a listing
type Page struct {
	Items      any   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func write(c *gin.Context, status, code int, message string, data any) {
	c.JSON(status, Response{Code: code, Message: message, Data: data})
}

func Success(c *gin.Context, data any) {
	write(c, http.StatusOK, CodeOK, "success", data)
}

func Created(c *gin.Context, data any) {
	write(c, http.StatusCreated, CodeOK, "created", data)
}

// SuccessPaginated replies with a Page; pageSize must be positive
func SuccessPaginated(c *gin.Context, items any, total int64, page, pageSize int) {
	write(c, http.StatusOK, CodeOK, "success", Page{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	})
}

// Error replies with a failure envelope and no data
func Error(c *gin.Context, status, code int, message string) {
	write(c, status, code, message, nil)
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeInvalid, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, CodeForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, CodeConflict, message)
}

// InsufficientFunds is a 400 whose data describes the missing amount
func InsufficientFunds(c *gin.Context, details any) {
	write(c, http.StatusBadRequest, CodeInsufficientFunds, "insufficient funds", details)
}

// InternalError hides the cause; callers attach it with c.Error for logging
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeInvalid, message)
}
