// Package metrics exposes Prometheus counters for reservation
// operations. The Recorder plugs into the service as an operation
// logger so counting needs no extra call sites.
package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/harborview/booking/pkg/booking"
)

var (
	once sync.Once

	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "operations_total",
			Help:      "Count of reservation operations by operation and status.",
		},
		[]string{"operation", "status"},
	)

	capturedCentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "captured_cents_total",
			Help:      "Total amount captured at check-in, in minor units.",
		},
	)
)

// Register registers the counters (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(operationsTotal, capturedCentsTotal)
	})
}

// Recorder implements the operation logger contract by bumping
// counters.
type Recorder struct{}

// NewRecorder registers the metrics and returns a Recorder.
func NewRecorder() *Recorder {
	Register()
	return &Recorder{}
}

// LogOperation counts one operation outcome.
func (Recorder) LogOperation(_ context.Context, entry booking.OperationLog) {
	operationsTotal.WithLabelValues(entry.Operation, entry.Status).Inc()
	if entry.Operation == "check_in" && entry.Error == nil {
		capturedCentsTotal.Add(float64(entry.Amount.Int64()))
	}
}
