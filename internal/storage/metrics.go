package storage

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/solatis/groupstore/internal/filter"
	"github.com/solatis/groupstore/internal/types"
)

var (
	metricsOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupstore_storage_operations_total",
		Help: "Connector operations by storage, operation and outcome",
	}, []string{"storage", "op", "outcome"})

	metricsDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "groupstore_storage_operation_seconds",
		Help:    "Connector operation latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"storage", "op"})
)

// Instrument wraps c so every operation is counted and timed under name.
func Instrument(name string, c Connector) Connector {
	return &instrumented{name: name, next: c}
}

type instrumented struct {
	name string
	next Connector
}

func (m *instrumented) observe(op string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, types.ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	metricsOperations.WithLabelValues(m.name, op, outcome).Inc()
	metricsDuration.WithLabelValues(m.name, op).Observe(time.Since(start).Seconds())
}

func (m *instrumented) Open(ctx context.Context, attrs types.Attributes) error {
	start := time.Now()
	err := m.next.Open(ctx, attrs)
	m.observe("open", start, err)
	return err
}

func (m *instrumented) Close() error {
	return m.next.Close()
}

func (m *instrumented) Pull(ctx context.Context, group, idField, id string, fields []string) (types.Record, error) {
	start := time.Now()
	rec, err := m.next.Pull(ctx, group, idField, id, fields)
	m.observe("pull", start, err)
	return rec, err
}

func (m *instrumented) Push(ctx context.Context, group, idField string, props types.Record) (string, error) {
	start := time.Now()
	id, err := m.next.Push(ctx, group, idField, props)
	m.observe("push", start, err)
	return id, err
}

func (m *instrumented) Update(ctx context.Context, group, idField, id string, changed types.Record) error {
	start := time.Now()
	err := m.next.Update(ctx, group, idField, id, changed)
	m.observe("update", start, err)
	return err
}

func (m *instrumented) Delete(ctx context.Context, group, idField, id string) error {
	start := time.Now()
	err := m.next.Delete(ctx, group, idField, id)
	m.observe("delete", start, err)
	return err
}

func (m *instrumented) DeleteMany(ctx context.Context, group string, where *filter.Expr) error {
	start := time.Now()
	err := m.next.DeleteMany(ctx, group, where)
	m.observe("delete_many", start, err)
	return err
}

func (m *instrumented) Count(ctx context.Context, group string, where *filter.Expr) (uint64, error) {
	start := time.Now()
	n, err := m.next.Count(ctx, group, where)
	m.observe("count", start, err)
	return n, err
}

func (m *instrumented) Search(ctx context.Context, group string, q Query) ([]types.Record, error) {
	start := time.Now()
	rows, err := m.next.Search(ctx, group, q)
	m.observe("search", start, err)
	return rows, err
}

func (m *instrumented) FindOne(ctx context.Context, group string, q Query) (types.Record, error) {
	start := time.Now()
	rec, err := m.next.FindOne(ctx, group, q)
	m.observe("find_one", start, err)
	return rec, err
}
