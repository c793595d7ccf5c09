package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/exchange-settlement/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func record(t *testing.T, reply func(c *gin.Context)) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	reply(c)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestErrorReplies(t *testing.T) {
	tests := []struct {
		name       string
		reply      func(c *gin.Context)
		wantStatus int
		wantCode   int
	}{
		{"bad request", func(c *gin.Context) { response.BadRequest(c, "x") }, http.StatusBadRequest, response.CodeInvalid},
		{"unauthorized", func(c *gin.Context) { response.Unauthorized(c, "x") }, http.StatusUnauthorized, response.CodeUnauthorized},
		{"forbidden", func(c *gin.Context) { response.Forbidden(c, "x") }, http.StatusForbidden, response.CodeForbidden},
		{"not found", func(c *gin.Context) { response.NotFound(c, "x") }, http.StatusNotFound, response.CodeNotFound},
		{"conflict", func(c *gin.Context) { response.Conflict(c, "x") }, http.StatusConflict, response.CodeConflict},
		{"internal", func(c *gin.Context) { response.InternalError(c, "x") }, http.StatusInternalServerError, response.CodeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := record(t, tt.reply)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.EqualValues(t, tt.wantCode, body["code"])
			assert.Equal(t, "x", body["message"])
			assert.NotContains(t, body, "data")
		})
	}
}

func TestInsufficientFundsCarriesDetails(t *testing.T) {
	w, body := record(t, func(c *gin.Context) {
		response.InsufficientFunds(c, gin.H{"currency": "USDT", "shortfall": "5"})
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, response.CodeInsufficientFunds, body["code"])
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "USDT", data["currency"])
	assert.Equal(t, "5", data["shortfall"])
}

func TestSuccessPaginatedRoundsPagesUp(t *testing.T) {
	tests := []struct {
		total    int64
		pageSize int
		want     int
	}{
		{0, 20, 0},
		{20, 20, 1},
		{21, 20, 2},
		{45, 10, 5},
	}

	for _, tt := range tests {
		w, body := record(t, func(c *gin.Context) {
			response.SuccessPaginated(c, []int{}, tt.total, 1, tt.pageSize)
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, response.CodeOK, body["code"])

		page, ok := body["data"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, tt.want, page["total_pages"], "total=%d size=%d", tt.total, tt.pageSize)
		assert.EqualValues(t, tt.total, page["total"])
	}
}

func TestCreated(t *testing.T) {
	w, body := record(t, func(c *gin.Context) { response.Created(c, gin.H{"id": 7}) })

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "created", body["message"])
	assert.EqualValues(t, 7, body["data"].(map[string]any)["id"])
}
