package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	ledgerOpCounter       *prometheus.CounterVec
	ledgerUnitHistogram   *prometheus.HistogramVec
	balanceDriftCounter   prometheus.Counter
	stalePendingCounter   prometheus.Counter
	idempotencyCounter    *prometheus.CounterVec
	accountLockCounter    *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		ledgerOpCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by kind and outcome",
		}, []string{"operation", "outcome"})

		ledgerUnitHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_unit_duration_seconds",
			Help:    "Duration of atomic ledger units of work",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"})

		balanceDriftCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_balance_drift_total",
			Help: "Accounts whose balance diverged from their completed transactions",
		})

		stalePendingCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_stale_pending_swept_total",
			Help: "Pending transactions marked failed by reconciliation",
		})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		accountLockCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "account_lock_events_total",
			Help: "Distributed account lock outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			ledgerOpCounter,
			ledgerUnitHistogram,
			balanceDriftCounter,
			stalePendingCounter,
			idempotencyCounter,
			accountLockCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// ObserveLedgerOperation records the outcome and duration of one ledger operation.
func ObserveLedgerOperation(operation, outcome string, duration time.Duration) {
	if ledgerOpCounter == nil {
		return
	}
	ledgerOpCounter.WithLabelValues(operation, outcome).Inc()
	ledgerUnitHistogram.WithLabelValues(operation).Observe(duration.Seconds())
}

func IncrementBalanceDrift() {
	if balanceDriftCounter == nil {
		return
	}
	balanceDriftCounter.Inc()
}

func AddStalePendingSwept(n int) {
	if stalePendingCounter == nil {
		return
	}
	stalePendingCounter.Add(float64(n))
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementAccountLockEvent(outcome string) {
	if accountLockCounter == nil {
		return
	}
	accountLockCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
