package docstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Instrumented decorates a Backend with operation counters and latency
// histograms.
type Instrumented struct {
	Backend
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// Instrument wraps b and registers its collectors with reg.
func Instrument(b Backend, reg prometheus.Registerer) (*Instrumented, error) {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pms",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Document store operations by driver, operation and result.",
	}, []string{"driver", "op", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pms",
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Document store operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"driver", "op"})

	for _, c := range []prometheus.Collector{ops, duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return &Instrumented{Backend: b, ops: ops, duration: duration}, nil
}

func (i *Instrumented) Read(ctx context.Context) ([]byte, error) {
	start := time.Now()
	data, err := i.Backend.Read(ctx)
	// A missing document is the normal first-run state, not a failure.
	if errors.Is(err, ErrNotExist) {
		i.observe("read", start, nil)
	} else {
		i.observe("read", start, err)
	}
	return data, err
}

func (i *Instrumented) Write(ctx context.Context, data []byte) error {
	start := time.Now()
	err := i.Backend.Write(ctx, data)
	i.observe("write", start, err)
	return err
}

// Unwrap returns the decorated backend.
func (i *Instrumented) Unwrap() Backend { return i.Backend }

func (i *Instrumented) observe(op string, start time.Time, err error) {
	driver := i.Backend.Driver()
	result := "ok"
	if err != nil {
		result = "error"
	}
	i.ops.WithLabelValues(driver, op, result).Inc()
	i.duration.WithLabelValues(driver, op).Observe(time.Since(start).Seconds())
}
