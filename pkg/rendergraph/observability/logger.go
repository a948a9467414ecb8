// Package observability provides structured logging, metrics, and
// distributed tracing for rendergraph frames.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
)

// EnrichLogger adds graph context to a logger.
// Returns a new logger with run_id, node, and frame fields.
func EnrichLogger(logger *slog.Logger, runID, node string, frame uint64) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node", node),
		slog.Uint64("frame", frame),
	)
}

// LogCompileStart logs the start of a graph compile pass.
func LogCompileStart(logger *slog.Logger, runID string, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("graph compile starting",
		slog.String("run_id", runID),
		slog.Int("nodes", nodeCount),
	)
}

// LogCompileComplete logs a successful compile pass.
func LogCompileComplete(logger *slog.Logger, runID string, durationMs float64, compiled, skipped int) {
	if logger == nil {
		return
	}
	logger.Info("graph compile completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_compiled", compiled),
		slog.Int("nodes_unchanged", skipped),
	)
}

// LogCompileError logs a fatal compile failure.
func LogCompileError(logger *slog.Logger, runID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("graph compile failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
	)
}

// LogFrameStart logs the start of one Execute pass.
func LogFrameStart(logger *slog.Logger, runID string, frame uint64) {
	if logger == nil {
		return
	}
	logger.Debug("frame starting",
		slog.String("run_id", runID),
		slog.Uint64("frame", frame),
	)
}

// LogFrameComplete logs frame completion.
func LogFrameComplete(logger *slog.Logger, runID string, frame uint64, durationMs float64, executed, failed, skipped int) {
	if logger == nil {
		return
	}
	logger.Debug("frame completed",
		slog.String("run_id", runID),
		slog.Uint64("frame", frame),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_executed", executed),
		slog.Int("nodes_failed", failed),
		slog.Int("nodes_skipped", skipped),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, node string, frame uint64) {
	if logger == nil {
		return
	}
	logger.Debug("node executing",
		slog.String("node", node),
		slog.Uint64("frame", frame),
	)
}

// LogNodeComplete logs successful node completion within a frame.
func LogNodeComplete(logger *slog.Logger, node string, frame uint64, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node", node),
		slog.Uint64("frame", frame),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs a node-scoped execution failure.
func LogNodeError(logger *slog.Logger, node string, frame uint64, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node", node),
		slog.Uint64("frame", frame),
		slog.String("error", err.Error()),
	)
}

// LogNodeSkipped logs a node skipped because an upstream producer
// failed this frame.
func LogNodeSkipped(logger *slog.Logger, node, upstream string, frame uint64) {
	if logger == nil {
		return
	}
	logger.Warn("node skipped",
		slog.String("node", node),
		slog.String("failed_upstream", upstream),
		slog.Uint64("frame", frame),
	)
}

// LogInstancesDeferred logs budget backpressure on a task.
func LogInstancesDeferred(logger *slog.Logger, node string, task, deferred int) {
	if logger == nil {
		return
	}
	logger.Debug("instances deferred to next frame",
		slog.String("node", node),
		slog.Int("task", task),
		slog.Int("deferred", deferred),
	)
}

// LogCleanupStart logs the start of graph teardown.
func LogCleanupStart(logger *slog.Logger, runID string, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("graph cleanup starting",
		slog.String("run_id", runID),
		slog.Int("nodes", nodeCount),
	)
}

// LogCleanupError logs a cleanup failure. Cleanup errors are
// non-fatal: the resource cannot affect future frames either way.
func LogCleanupError(logger *slog.Logger, node string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("cleanup failed",
		slog.String("node", node),
		slog.String("error", err.Error()),
	)
}
