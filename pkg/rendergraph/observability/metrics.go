package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records rendergraph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records one node's execution within a frame.
	RecordNodeExecution(ctx context.Context, node string, duration time.Duration, err error)

	// RecordNodeSkip records a node skipped due to an upstream failure.
	RecordNodeSkip(ctx context.Context, node string)

	// RecordFrame records one Execute pass.
	RecordFrame(ctx context.Context, success bool, duration time.Duration)

	// RecordInstances records instance fan-out for a node: how many ran
	// this frame and how many were deferred by budget backpressure.
	RecordInstances(ctx context.Context, node string, executed, deferred int)

	// RecordCleanup records one node teardown.
	RecordCleanup(ctx context.Context, node string, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions    metric.Int64Counter
	nodeLatency       metric.Float64Histogram
	nodeErrors        metric.Int64Counter
	nodeSkips         metric.Int64Counter
	frames            metric.Int64Counter
	frameLatency      metric.Float64Histogram
	instanceRuns      metric.Int64Counter
	instanceDeferrals metric.Int64Counter
	cleanups          metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("rendergraph")

	nodeExecutions, err := meter.Int64Counter("rendergraph.node.executions",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("rendergraph.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("rendergraph.node.errors",
		metric.WithDescription("Number of node-scoped execution failures"),
	)
	if err != nil {
		return nil, err
	}

	nodeSkips, err := meter.Int64Counter("rendergraph.node.skips",
		metric.WithDescription("Number of nodes skipped due to upstream failures"),
	)
	if err != nil {
		return nil, err
	}

	frames, err := meter.Int64Counter("rendergraph.frame.count",
		metric.WithDescription("Number of executed frames"),
	)
	if err != nil {
		return nil, err
	}

	frameLatency, err := meter.Float64Histogram("rendergraph.frame.latency_ms",
		metric.WithDescription("Frame latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	instanceRuns, err := meter.Int64Counter("rendergraph.instance.executions",
		metric.WithDescription("Number of task instance executions"),
	)
	if err != nil {
		return nil, err
	}

	instanceDeferrals, err := meter.Int64Counter("rendergraph.instance.deferrals",
		metric.WithDescription("Number of instances deferred by budget backpressure"),
	)
	if err != nil {
		return nil, err
	}

	cleanups, err := meter.Int64Counter("rendergraph.cleanup.operations",
		metric.WithDescription("Number of node cleanup operations"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeExecutions:    nodeExecutions,
		nodeLatency:       nodeLatency,
		nodeErrors:        nodeErrors,
		nodeSkips:         nodeSkips,
		frames:            frames,
		frameLatency:      frameLatency,
		instanceRuns:      instanceRuns,
		instanceDeferrals: instanceDeferrals,
		cleanups:          cleanups,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		return NoopMetrics{}
	}
	return m
}

// RecordNodeExecution implements MetricsRecorder.
func (m *otelMetrics) RecordNodeExecution(ctx context.Context, node string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node", node))
	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

// RecordNodeSkip implements MetricsRecorder.
func (m *otelMetrics) RecordNodeSkip(ctx context.Context, node string) {
	m.nodeSkips.Add(ctx, 1, metric.WithAttributes(attribute.String("node", node)))
}

// RecordFrame implements MetricsRecorder.
func (m *otelMetrics) RecordFrame(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.frames.Add(ctx, 1, attrs)
	m.frameLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordInstances implements MetricsRecorder.
func (m *otelMetrics) RecordInstances(ctx context.Context, node string, executed, deferred int) {
	attrs := metric.WithAttributes(attribute.String("node", node))
	if executed > 0 {
		m.instanceRuns.Add(ctx, int64(executed), attrs)
	}
	if deferred > 0 {
		m.instanceDeferrals.Add(ctx, int64(deferred), attrs)
	}
}

// RecordCleanup implements MetricsRecorder.
func (m *otelMetrics) RecordCleanup(ctx context.Context, node string, err error) {
	m.cleanups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("node", node),
		attribute.Bool("error", err != nil),
	))
}
