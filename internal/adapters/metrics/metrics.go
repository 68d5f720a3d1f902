// Package metrics exposes Prometheus collectors for the grid engine.
//
// Primary series:
//   - gridbot_orders_placed_total{symbol,side,purpose} - orders placed
//   - gridbot_orders_canceled_total{symbol,side}       - orders cancelled by the engine
//   - gridbot_fills_detected_total{symbol,side}        - orders that left the open list
//   - gridbot_reconcile_cycles_total{symbol,result}    - reconcile cycles (ok|error)
//   - gridbot_open_orders{symbol}                      - ledger size (gauge)
//   - gridbot_unrealized_pnl_usd{symbol}               - reporter PnL snapshot (gauge)
//
// Registered in init() and served at /metrics by the HTTP handler started in
// main.go (Prometheus text exposition format).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_orders_placed_total",
			Help: "Limit orders placed, by purpose (grid|replacement|take_profit|stop_loss)",
		},
		[]string{"symbol", "side", "purpose"},
	)

	ordersCanceled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_orders_canceled_total",
			Help: "Orders cancelled by the engine",
		},
		[]string{"symbol", "side"},
	)

	fillsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_fills_detected_total",
			Help: "Orders that disappeared from the exchange open-order list",
		},
		[]string{"symbol", "side"},
	)

	reconcileCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbot_reconcile_cycles_total",
			Help: "Reconciliation cycles by result (ok|error)",
		},
		[]string{"symbol", "result"},
	)

	openOrders = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridbot_open_orders",
			Help: "Orders currently tracked in the ledger",
		},
		[]string{"symbol"},
	)

	unrealizedPnL = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridbot_unrealized_pnl_usd",
			Help: "Unrealized PnL of the open position in USD",
		},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(ordersPlaced, ordersCanceled, fillsDetected)
	prometheus.MustRegister(reconcileCycles, openOrders, unrealizedPnL)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler { return promhttp.Handler() }

// Helper setters used by the engine loops.

func IncOrderPlaced(symbol, side, purpose string) {
	ordersPlaced.WithLabelValues(symbol, side, purpose).Inc()
}

func IncOrderCanceled(symbol, side string) {
	ordersCanceled.WithLabelValues(symbol, side).Inc()
}

func IncFillDetected(symbol, side string) {
	fillsDetected.WithLabelValues(symbol, side).Inc()
}

func IncReconcileCycle(symbol, result string) {
	reconcileCycles.WithLabelValues(symbol, result).Inc()
}

func SetOpenOrders(symbol string, n int) {
	openOrders.WithLabelValues(symbol).Set(float64(n))
}

func SetUnrealizedPnL(symbol string, v float64) {
	unrealizedPnL.WithLabelValues(symbol).Set(v)
}
