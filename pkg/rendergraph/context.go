package rendergraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context carries run-scoped services into graph phases. It extends
// context.Context with a structured logger and a stable run identifier
// used to correlate logs, traces, and diagnostics across frames.
//
// Context is immutable after creation; the graph derives per-node
// loggers from it during execution.
type Context interface {
	context.Context

	// Logger returns the configured logger.
	// Never nil - defaults to slog.Default().
	Logger() *slog.Logger

	// RunID returns the unique identifier for this graph run.
	// Auto-generated if not configured.
	RunID() string
}

type executionContext struct {
	context.Context

	logger *slog.Logger
	runID  string
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger { return c.logger }

// RunID returns the run identifier.
func (c *executionContext) RunID() string { return c.runID }

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRunID sets the run identifier. If not set, a UUID is generated.
func WithRunID(id string) ContextOption {
	return func(c *executionContext) {
		if id != "" {
			c.runID = id
		}
	}
}

// NewContext creates a run context from a standard context.
//
//	ctx := rendergraph.NewContext(context.Background(),
//	    rendergraph.WithLogger(myLogger))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}
