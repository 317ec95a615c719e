package http

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/freekieb7/bytegate/http"

// instruments groups the tracer and metric instruments of one server. They
// come from the global providers so hosts decide where the data goes.
type instruments struct {
	tracer trace.Tracer

	accepted metric.Int64Counter
	rejected metric.Int64Counter
	requests metric.Int64Counter
	duration metric.Float64Histogram

	poolRegistration metric.Registration
}

func newInstruments() (*instruments, error) {
	meter := otel.Meter(instrumentationName)

	inst := &instruments{
		tracer: otel.Tracer(instrumentationName),
	}

	var err error
	inst.accepted, err = meter.Int64Counter("bytegate.server.connections.accepted",
		metric.WithDescription("Connections accepted by the listener"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}

	inst.rejected, err = meter.Int64Counter("bytegate.server.connections.rejected",
		metric.WithDescription("Connections answered with 503 because the worker pool was saturated"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}

	inst.requests, err = meter.Int64Counter("bytegate.server.requests",
		metric.WithDescription("Requests answered, by method and status code"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	inst.duration, err = meter.Float64Histogram("bytegate.server.request.duration",
		metric.WithDescription("Time from accepting a connection to closing it"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return inst, nil
}

// observePool registers asynchronous gauges reading the pool's live state.
func (inst *instruments) observePool(pool *WorkerPool) error {
	meter := otel.Meter(instrumentationName)

	workers, err := meter.Int64ObservableGauge("bytegate.pool.workers",
		metric.WithDescription("Live worker goroutines"),
		metric.WithUnit("{worker}"))
	if err != nil {
		return err
	}
	active, err := meter.Int64ObservableGauge("bytegate.pool.active",
		metric.WithDescription("Workers currently running a task"),
		metric.WithUnit("{worker}"))
	if err != nil {
		return err
	}
	queued, err := meter.Int64ObservableGauge("bytegate.pool.queued",
		metric.WithDescription("Tasks waiting for a worker"),
		metric.WithUnit("{task}"))
	if err != nil {
		return err
	}

	inst.poolRegistration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := pool.Stats()
		o.ObserveInt64(workers, int64(stats.Workers))
		o.ObserveInt64(active, int64(stats.Active))
		o.ObserveInt64(queued, int64(stats.Queued))
		return nil
	}, workers, active, queued)
	return err
}

func (inst *instruments) recordRequest(ctx context.Context, method string, status int, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.Int("http.response.status_code", status),
	)
	inst.requests.Add(ctx, 1, attrs)
	inst.duration.Record(ctx, seconds, attrs)
}

func (inst *instruments) close() error {
	if inst.poolRegistration == nil {
		return nil
	}
	err := inst.poolRegistration.Unregister()
	inst.poolRegistration = nil
	return err
}
