package kv

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors recorded by instrumented stores.
type Metrics struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewMetrics creates the kv collectors and registers them with reg.
// Panics if the collectors are already registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boardstore",
			Subsystem: "kv",
			Name:      "ops_total",
			Help:      "Key-value backend operations by op, driver and result.",
		}, []string{"op", "driver", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "boardstore",
			Subsystem: "kv",
			Name:      "op_seconds",
			Help:      "Key-value backend operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"op", "driver"}),
	}
	reg.MustRegister(m.ops, m.latency)
	return m
}

// Ops returns the counter for one (op, driver, result) combination.
func (m *Metrics) Ops(op, driver, result string) prometheus.Counter {
	return m.ops.WithLabelValues(op, driver, result)
}

func (m *Metrics) observe(op, driver string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ops.WithLabelValues(op, driver, result).Inc()
	m.latency.WithLabelValues(op, driver).Observe(time.Since(start).Seconds())
}

// instrumented decorates a Store with metrics.
type instrumented struct {
	next    Store
	metrics *Metrics
	driver  string
}

// Instrument wraps s so that every operation is counted and timed under the
// given driver label.
func Instrument(s Store, m *Metrics, driver string) Store {
	return &instrumented{next: s, metrics: m, driver: driver}
}

func (i *instrumented) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	v, ok, err := i.next.Get(ctx, key)
	i.metrics.observe("get", i.driver, start, err)
	return v, ok, err
}

func (i *instrumented) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := i.next.Set(ctx, key, value)
	i.metrics.observe("set", i.driver, start, err)
	return err
}

func (i *instrumented) Remove(ctx context.Context, key string) error {
	start := time.Now()
	err := i.next.Remove(ctx, key)
	i.metrics.observe("remove", i.driver, start, err)
	return err
}

func (i *instrumented) Clear(ctx context.Context) error {
	start := time.Now()
	err := i.next.Clear(ctx)
	i.metrics.observe("clear", i.driver, start, err)
	return err
}

func (i *instrumented) SizeInBytes(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := i.next.SizeInBytes(ctx)
	i.metrics.observe("size", i.driver, start, err)
	return n, err
}

func (i *instrumented) Close() error {
	return i.next.Close()
}
