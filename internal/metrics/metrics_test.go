package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/exchange-settlement/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestObserveSettlement(t *testing.T) {
	ok := metrics.SettlementOperations.WithLabelValues("test.op", "ok")
	failed := metrics.SettlementOperations.WithLabelValues("test.op", "error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	metrics.ObserveSettlement("test.op", nil)
	metrics.ObserveSettlement("test.op", nil)
	metrics.ObserveSettlement("test.op", errors.New("boom"))

	assert.Equal(t, okBefore+2, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

func TestHandlerExposesCollectors(t *testing.T) {
	metrics.Register()
	metrics.Register()
	metrics.ObserveSettlement("test.exposed", nil)

	r := gin.New()
	r.GET("/metrics", metrics.Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `settlement_operations_total{operation="test.exposed",result="ok"} 1`)
}
