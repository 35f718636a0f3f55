package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsTotal counts finished transactions.
	// Labels: backend (sqlite, memory), result (commit, rollback)
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patternd",
			Subsystem: "store",
			Name:      "transactions_total",
			Help:      "Total number of store transactions by outcome",
		},
		[]string{"backend", "result"},
	)

	// TransactionDuration tracks how long transactions take.
	TransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "patternd",
			Subsystem: "store",
			Name:      "transaction_duration_seconds",
			Help:      "Duration of store transactions in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// WritesTotal counts pattern writes inside transactions.
	// Labels: backend, op (insert, update)
	WritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patternd",
			Subsystem: "store",
			Name:      "writes_total",
			Help:      "Total number of pattern writes",
		},
		[]string{"backend", "op"},
	)

	// CorruptRowsTotal counts stored rows that could not be decoded.
	CorruptRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patternd",
			Subsystem: "store",
			Name:      "corrupt_rows_total",
			Help:      "Total number of stored patterns skipped because they could not be decoded",
		},
		[]string{"backend"},
	)
)

const (
	backendSQLite = "sqlite"
	backendMemory = "memory"
)

// recordTransaction records the outcome of one WithTx call.
func recordTransaction(backend string, start time.Time, err error) {
	TransactionDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	if err != nil {
		TransactionsTotal.WithLabelValues(backend, "rollback").Inc()
		return
	}
	TransactionsTotal.WithLabelValues(backend, "commit").Inc()
}
