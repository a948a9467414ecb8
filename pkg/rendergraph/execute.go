package rendergraph

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/renderkit/rendergraph/pkg/rendergraph/diag"
	"github.com/renderkit/rendergraph/pkg/rendergraph/observability"
)

// FrameReport summarizes one Execute pass.
type FrameReport struct {
	// Frame is the 1-based frame number of this pass.
	Frame uint64

	// Executed lists the nodes that ran, in execution order.
	Executed []string

	// Failed maps each failing node to its error.
	Failed map[string]error

	// Skipped maps each skipped node to the upstream node whose failure
	// caused the skip.
	Skipped map[string]string

	// Deferred counts instances pushed to the next frame by budget
	// backpressure.
	Deferred int

	Duration time.Duration
}

// Ok reports whether every node executed cleanly.
func (r *FrameReport) Ok() bool {
	return len(r.Failed) == 0 && len(r.Skipped) == 0
}

// Execute runs one frame: every compiled node in topological order,
// each task's instances fanned out under the budget quota.
//
// Nodes marked dirty since the last frame (including mid-frame
// invalidations, which are promoted at this frame boundary) are
// recompiled first; a recompile failure aborts the frame.
//
// Execution errors are node-scoped, not frame-fatal: a failing node is
// reported in FrameReport.Failed, its transitive dependents are
// skipped for this frame, and unrelated nodes still run. Execute
// returns a non-nil error only for frame-level problems - nil context,
// never compiled, recompile failure, or context cancellation.
func (g *Graph) Execute(ctx Context) (*FrameReport, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cleaned {
		return nil, ErrAlreadyCleaned
	}
	if g.execOrder == nil {
		return nil, ErrNotCompiled
	}

	// Frame boundary: apply invalidations and dirty marks queued while
	// the previous frame held the lock.
	g.drainPendingLocked()

	anyDirty := false
	for _, n := range g.nodes {
		if n.dirty {
			anyDirty = true
			break
		}
	}
	if anyDirty || !g.compiled {
		if err := g.compileLocked(ctx); err != nil {
			return nil, err
		}
	}

	g.frame++

	start := time.Now()
	logger := ctx.Logger()
	observability.LogFrameStart(logger, ctx.RunID(), g.frame)
	frameCtx, frameSpan := g.spans.StartFrameSpan(ctx, g.name, ctx.RunID(), g.frame)

	report := &FrameReport{
		Frame:   g.frame,
		Failed:  make(map[string]error),
		Skipped: make(map[string]string),
	}

	// failedRoot maps a node to the original failing node upstream, so
	// a skip three levels down still names the root cause.
	failedRoot := make(map[string]string)

	for _, name := range g.execOrder {
		if err := ctx.Err(); err != nil {
			g.finishFrame(frameCtx, ctx, frameSpan, report, start)
			return report, err
		}
		n := g.nodes[name]

		if root := g.upstreamFailure(name, failedRoot); root != "" {
			failedRoot[name] = root
			report.Skipped[name] = root
			observability.LogNodeSkipped(logger, name, root, g.frame)
			g.metrics.RecordNodeSkip(frameCtx, name)
			g.record(ctx, diag.Record{
				Node: name, Phase: phaseExecute,
				Severity: diag.SeveritySkipped,
				Upstream: root,
				Message:  "skipped: upstream producer failed this frame",
			})
			continue
		}

		observability.LogNodeStart(logger, name, g.frame)
		nodeCtx, nodeSpan := g.spans.StartNodeSpan(frameCtx, name)
		nodeStart := time.Now()
		n.state = StateExecuting

		deferred, err := g.executeNodeLocked(ctx, n)
		dur := time.Since(nodeStart)
		report.Deferred += deferred
		n.state = StateCompileDone
		g.metrics.RecordNodeExecution(nodeCtx, name, dur, err)
		g.spans.EndSpanWithError(nodeSpan, err)

		if err != nil {
			failedRoot[name] = name
			report.Failed[name] = err
			observability.LogNodeError(logger, name, g.frame, err)
			g.record(ctx, diag.Record{
				Node: name, Phase: phaseExecute,
				Severity: diag.SeverityExecuteScoped,
				Message:  err.Error(),
			})
			continue
		}

		n.statNanos += dur.Nanoseconds()
		n.statRuns++
		report.Executed = append(report.Executed, name)
		observability.LogNodeComplete(logger, name, g.frame,
			float64(dur.Microseconds())/1000.0)
	}

	g.finishFrame(frameCtx, ctx, frameSpan, report, start)
	return report, nil
}

// upstreamFailure returns the root failing producer above a node this
// frame, or "".
func (g *Graph) upstreamFailure(name string, failedRoot map[string]string) string {
	for _, dep := range g.topo.GetDependencies(name) {
		if root, ok := failedRoot[dep]; ok {
			return root
		}
	}
	return ""
}

// executeNodeLocked runs every task of one node, instances fanned out
// under the frame's budget quota. Returns the number of instances
// deferred to the next frame and the first error.
func (g *Graph) executeNodeLocked(ctx Context, n *nodeState) (int, error) {
	_, parallel := n.isParallel()
	totalDeferred := 0
	for _, task := range n.tasks {
		// Only budgeted nodes are throttled. A node that never opted
		// into parallelism has no reservation and no quota: every
		// instance runs sequentially, none defer.
		quota := task.instances
		if parallel {
			quota = g.budget.GetAvailableParallelism(n.reservation)
		}
		executed, deferred, err := g.runInstances(ctx, n, task, quota, parallel)
		if err != nil {
			return totalDeferred, err
		}
		totalDeferred += deferred
		if deferred > 0 {
			observability.LogInstancesDeferred(ctx.Logger(), n.name, task.index, deferred)
		}
		g.metrics.RecordInstances(ctx, n.name, executed, deferred)
	}
	return totalDeferred, nil
}

func (g *Graph) finishFrame(frameCtx context.Context, ctx Context, frameSpan trace.Span, report *FrameReport, start time.Time) {
	report.Duration = time.Since(start)
	g.metrics.RecordFrame(frameCtx, len(report.Failed) == 0, report.Duration)
	g.spans.EndSpanWithError(frameSpan, nil)
	observability.LogFrameComplete(ctx.Logger(), ctx.RunID(), g.frame,
		float64(report.Duration.Microseconds())/1000.0,
		len(report.Executed), len(report.Failed), len(report.Skipped))
}
