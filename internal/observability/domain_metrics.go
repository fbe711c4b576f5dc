package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	chatTurnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tickerchat_chat_turns_total",
			Help: "Total number of chat turns handled.",
		},
	)
	chatOutOfScopeTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tickerchat_chat_out_of_scope_total",
			Help: "Total number of chat turns rejected by the scope gate.",
		},
	)
	queriesBlockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickerchat_queries_blocked_total",
			Help: "Total number of SQL queries rejected by the safety filter.",
		},
		[]string{"reason"},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tickerchat_query_duration_seconds",
			Help:    "Store query execution latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tickerchat_query_rows_returned",
			Help:    "Rows returned per executed query.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)
	modelCallDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tickerchat_model_call_duration_seconds",
			Help:    "Latency of upstream model completion calls.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)
	modelCallErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tickerchat_model_call_errors_total",
			Help: "Total number of failed model completion calls.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		chatTurnsTotal,
		chatOutOfScopeTotal,
		queriesBlockedTotal,
		queryDurationSeconds,
		queryRowsReturned,
		modelCallDurationSeconds,
		modelCallErrorsTotal,
	)
}

func ObserveChatTurn(inScope bool) {
	chatTurnsTotal.Inc()
	if !inScope {
		chatOutOfScopeTotal.Inc()
	}
}

func IncrementQueryBlocked(reason string) {
	queriesBlockedTotal.WithLabelValues(reason).Inc()
}

func ObserveQuery(rows int, elapsed time.Duration) {
	queryDurationSeconds.Observe(elapsed.Seconds())
	queryRowsReturned.Observe(float64(rows))
}

func ObserveModelCall(elapsed time.Duration, err error) {
	modelCallDurationSeconds.Observe(elapsed.Seconds())
	if err != nil {
		modelCallErrorsTotal.Inc()
	}
}
