package rendergraph

import (
	"github.com/renderkit/rendergraph/pkg/rendergraph/diag"
	"github.com/renderkit/rendergraph/pkg/rendergraph/event"
	"github.com/renderkit/rendergraph/pkg/rendergraph/observability"
)

// GraphOption configures a Graph at construction.
type GraphOption func(*Graph)

// WithName sets the graph name used in logs, spans, and diagnostics.
// Default: "rendergraph".
func WithName(name string) GraphOption {
	return func(g *Graph) {
		if name != "" {
			g.name = name
		}
	}
}

// WithBudget sets the budget manager consulted at Compile (minimum
// reservations) and at every frame (parallelism quotas). Default: a
// fresh manager with no pools, which leaves every requirement uncapped.
func WithBudget(b *BudgetManager) GraphOption {
	return func(g *Graph) {
		if b != nil {
			g.budget = b
		}
	}
}

// WithMetrics sets the metrics recorder for node executions, frames,
// instance deferrals, and cleanups. Default: no-op.
//
//	g := rendergraph.NewGraph(
//	    rendergraph.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) GraphOption {
	return func(g *Graph) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithTracing sets the span manager emitting one span per frame and
// one child span per executed node. Default: no-op.
func WithTracing(sm observability.SpanManager) GraphOption {
	return func(g *Graph) {
		if sm != nil {
			g.spans = sm
		}
	}
}

// WithDiagnostics sets the journal that records compile failures,
// node-scoped execute failures, skips, and ignored cleanup errors.
// Default: none (diagnostics are logged but not persisted).
func WithDiagnostics(store diag.Store) GraphOption {
	return func(g *Graph) {
		g.journal = store
	}
}

// WithInvalidationBus subscribes the graph to an invalidation bus.
// Published invalidations mark the producers of matching resources for
// recompilation at the next frame boundary.
func WithInvalidationBus(bus *event.Bus) GraphOption {
	return func(g *Graph) {
		g.bus = bus
	}
}

// WithTypeCatalog sets the catalog consulted by AddNodeByType.
func WithTypeCatalog(c *TypeCatalog) GraphOption {
	return func(g *Graph) {
		g.catalog = c
	}
}
