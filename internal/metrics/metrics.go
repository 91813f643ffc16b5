// Package metrics holds the Prometheus collectors of the wagering engine.
// Every method is safe on a nil *Metrics so components can run unobserved.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics groups the engine collectors.
type Metrics struct {
	betsPlaced     prometheus.Counter
	stakeTotal     prometheus.Counter
	betsCancelled  prometheus.Counter
	betsSettled    *prometheus.CounterVec
	settleFailures prometheus.Counter
	eventsResolved prometheus.Counter
	outcomesPriced *prometheus.CounterVec
	syncRuns       *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	wsConnections  prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		betsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "furbito_bets_placed_total", Help: "bets accepted",
		}),
		stakeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "furbito_stake_total", Help: "sum of accepted stakes",
		}),
		betsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "furbito_bets_cancelled_total", Help: "bets cancelled by their owner",
		}),
		betsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "furbito_bets_settled_total", Help: "bet status transitions applied by settlement",
		}, []string{"status"}),
		settleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "furbito_settlement_failures_total", Help: "bets whose settlement transaction failed",
		}),
		eventsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "furbito_events_resolved_total", Help: "events resolved with a final score",
		}),
		outcomesPriced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "furbito_outcomes_priced_total", Help: "outcomes created or re-priced",
		}, []string{"op"}),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "furbito_sync_runs_total", Help: "feed synchronisation runs",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "furbito_notifications_total", Help: "notification deliveries",
		}, []string{"result"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "furbito_ws_connections", Help: "open websocket clients",
		}),
	}
	reg.MustRegister(
		m.betsPlaced, m.stakeTotal, m.betsCancelled, m.betsSettled, m.settleFailures,
		m.eventsResolved, m.outcomesPriced, m.syncRuns, m.notifications, m.wsConnections,
	)
	return m
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

func (m *Metrics) BetPlaced(stake decimal.Decimal) {
	if m == nil {
		return
	}
	m.betsPlaced.Inc()
	m.stakeTotal.Add(stake.InexactFloat64())
}

func (m *Metrics) BetCancelled() {
	if m == nil {
		return
	}
	m.betsCancelled.Inc()
}

func (m *Metrics) BetSettled(status string) {
	if m == nil {
		return
	}
	m.betsSettled.WithLabelValues(status).Inc()
}

func (m *Metrics) SettlementFailed() {
	if m == nil {
		return
	}
	m.settleFailures.Inc()
}

func (m *Metrics) EventResolved() {
	if m == nil {
		return
	}
	m.eventsResolved.Inc()
}

// OutcomesPriced counts n outcomes under op ("created", "repriced").
func (m *Metrics) OutcomesPriced(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.outcomesPriced.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) SyncRun(result string) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) WSConnections(delta float64) {
	if m == nil {
		return
	}
	m.wsConnections.Add(delta)
}
