package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder 持有一组 arena 指标。nil Recorder 上的所有方法都是空操作。
type Recorder struct {
	reg *prometheus.Registry

	sweeps          prometheus.Counter
	sweepDuration   prometheus.Histogram
	decisions       *prometheus.CounterVec
	decisionLatency *prometheus.HistogramVec
	adjustments     *prometheus.CounterVec
	trades          *prometheus.CounterVec
	agentErrors     *prometheus.CounterVec
	balance         *prometheus.GaugeVec
	openPositions   *prometheus.GaugeVec
	subscribers     prometheus.Gauge
	persistErrors   prometheus.Counter
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		sweeps: f.NewCounter(prometheus.CounterOpts{
			Name: "arena_sweeps_total",
			Help: "Number of completed decision sweeps",
		}),
		sweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_sweep_duration_seconds",
			Help:    "Wall time of one sweep across all agents",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_decisions_total",
			Help: "Decisions by agent and final action",
		}, []string{"agent", "action"}),
		decisionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arena_decision_latency_seconds",
			Help:    "Provider latency per agent",
			Buckets: []float64{0.05, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"agent"}),
		adjustments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_risk_adjustments_total",
			Help: "Decisions modified by the risk validator",
		}, []string{"agent"}),
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_trades_total",
			Help: "Closed trades by agent and outcome",
		}, []string{"agent", "outcome"}),
		agentErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_agent_errors_total",
			Help: "Agent cycles that ended in error status",
		}, []string{"agent"}),
		balance: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arena_agent_balance",
			Help: "Current realized balance per agent",
		}, []string{"agent"}),
		openPositions: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arena_agent_open_positions",
			Help: "Open positions per agent",
		}, []string{"agent"}),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "arena_ws_subscribers",
			Help: "Connected push subscribers",
		}),
		persistErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "arena_persist_errors_total",
			Help: "Failed snapshot writes",
		}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Handler 暴露 /metrics。
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveSweep(d time.Duration) {
	if r == nil {
		return
	}
	r.sweeps.Inc()
	r.sweepDuration.Observe(d.Seconds())
}

func (r *Recorder) ObserveDecision(agent, action string, latency time.Duration, adjusted bool) {
	if r == nil {
		return
	}
	r.decisions.WithLabelValues(agent, action).Inc()
	r.decisionLatency.WithLabelValues(agent).Observe(latency.Seconds())
	if adjusted {
		r.adjustments.WithLabelValues(agent).Inc()
	}
}

func (r *Recorder) ObserveTrade(agent string, pnl float64) {
	if r == nil {
		return
	}
	outcome := "loss"
	if pnl > 0 {
		outcome = "win"
	}
	r.trades.WithLabelValues(agent, outcome).Inc()
}

func (r *Recorder) AgentError(agent string) {
	if r == nil {
		return
	}
	r.agentErrors.WithLabelValues(agent).Inc()
}

func (r *Recorder) SetAgent(agent string, balance float64, positions int) {
	if r == nil {
		return
	}
	r.balance.WithLabelValues(agent).Set(balance)
	r.openPositions.WithLabelValues(agent).Set(float64(positions))
}

// ResetAgents 清空按交易员划分的 gauge，重置后名单可能改变。
func (r *Recorder) ResetAgents() {
	if r == nil {
		return
	}
	r.balance.Reset()
	r.openPositions.Reset()
}

func (r *Recorder) SetSubscribers(n int) {
	if r == nil {
		return
	}
	r.subscribers.Set(float64(n))
}

func (r *Recorder) PersistError() {
	if r == nil {
		return
	}
	r.persistErrors.Inc()
}
