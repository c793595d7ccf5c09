package metrics

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SettlementOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_operations_total",
		Help: "Settlement operations by operation and result.",
	}, []string{"operation", "result"})

	AdminProfitRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_profit_records_total",
		Help: "Admin profit bucket writes by profit type and result.",
	}, []string{"type", "result"})

	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notifications by category and result (sent, failed, dropped).",
	}, []string{"category", "result"})

	ValuationRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "valuation_runs_total",
		Help: "Completed valuation cron runs.",
	})

	ValuationUserFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "valuation_user_failures_total",
		Help: "Per-user valuation tasks that failed.",
	})

	ValuationUserDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "valuation_user_duration_seconds",
		Help:    "Time spent valuing a single user's wallets.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	SnapshotsSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wallet_pnl_snapshots_swept_total",
		Help: "Valuation snapshots removed by the retention sweep.",
	})
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SettlementOperations,
			AdminProfitRecords,
			Notifications,
			ValuationRuns,
			ValuationUserFailures,
			ValuationUserDuration,
			SnapshotsSwept,
		)
	})
}

// Handler exposes the default registry for gin
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// ObserveSettlement counts one settlement operation
func ObserveSettlement(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	SettlementOperations.WithLabelValues(operation, result).Inc()
}
