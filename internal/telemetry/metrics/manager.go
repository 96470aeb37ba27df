package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests            *prometheus.CounterVec
	CounterHandleRequestPanic  prometheus.Counter
	CounterRateLimitedRequests prometheus.Counter
	CounterMeasurements        prometheus.Counter
	CounterGoals               prometheus.Counter
	CounterAttendance          *prometheus.CounterVec
	CounterAccruals            *prometheus.CounterVec
	CounterTokensAccrued       prometheus.Counter
	CounterClaims              *prometheus.CounterVec
	CounterLedgerConflicts     prometheus.Counter
	CounterEvaluatorRuns       *prometheus.CounterVec
	CounterPerformanceCache    *prometheus.CounterVec

	// gauges
	GaugeRequests   prometheus.Gauge
	GaugeLifeSignal prometheus.Gauge

	// histograms
	HistEvaluatorRunDuration prometheus.Histogram
	HistogramRequestDuration *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("fitcoach", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("fitcoach", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterHandleRequestPanic := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of serve request panics",
	})
	counterRateLimitedRequests := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rate_limited_requests",
		Help:      "The total number of rate limited requests",
	})
	counterMeasurements := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "measurements",
		Help:      "The total number of recorded measurements",
	})
	counterGoals := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "goals",
		Help:      "The total number of created monthly goals",
	})
	counterAttendance := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "attendance_marks",
		Help:      "The total number of attendance marks, by status",
	}, []string{"status"})
	counterAccruals := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "viift_accruals",
		Help:      "The total number of VII-FT reward accruals, per goal metric",
	}, []string{"metric"})
	counterTokensAccrued := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "viift_tokens_accrued",
		Help:      "The total amount of VII-FT tokens accrued",
	})
	counterClaims := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "viift_claims",
		Help:      "The total number of VII-FT claims, per resulting status",
	}, []string{"status"})
	counterLedgerConflicts := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "viift_ledger_conflicts",
		Help:      "The total number of lost balance compare-and-swap updates",
	})
	counterEvaluatorRuns := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "goals_evaluator_runs",
		Help:      "The total number of goal evaluation runs, per result",
	}, []string{"result"})
	counterPerformanceCache := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "performance_cache",
		Help:      "Performance cache lookups, per result (hit/miss)",
	}, []string{"result"})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "current_requests",
		Help:      "Current number of requests served",
	})
	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "life_signal",
		Help:      "Shows whether the service is alive",
	})

	histEvaluatorRunDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.001, 0.01, 0.1, 0.5, 1, 5,
				10, 30, 60, 120, 300,
			},
			Name: "goals_evaluator_duration_seconds",
			Help: "Total duration of a single goals evaluation run in seconds",
		},
	)

	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of response time for requests in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "status_code"})

	return &Manager{
		CounterRequests:            counterRequests,
		CounterHandleRequestPanic:  counterHandleRequestPanic,
		CounterRateLimitedRequests: counterRateLimitedRequests,
		CounterMeasurements:        counterMeasurements,
		CounterGoals:               counterGoals,
		CounterAttendance:          counterAttendance,
		CounterAccruals:            counterAccruals,
		CounterTokensAccrued:       counterTokensAccrued,
		CounterClaims:              counterClaims,
		CounterLedgerConflicts:     counterLedgerConflicts,
		CounterEvaluatorRuns:       counterEvaluatorRuns,
		CounterPerformanceCache:    counterPerformanceCache,
		GaugeRequests:              gaugeRequests,
		GaugeLifeSignal:            gaugeLifeSignal,
		HistEvaluatorRunDuration:   histEvaluatorRunDuration,
		HistogramRequestDuration:   histogramRequestDuration,
	}
}
