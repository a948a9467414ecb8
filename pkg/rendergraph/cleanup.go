package rendergraph

import (
	"fmt"
	"runtime/debug"

	"github.com/renderkit/rendergraph/pkg/rendergraph/diag"
	"github.com/renderkit/rendergraph/pkg/rendergraph/observability"
)

// Cleanup tears the whole graph down: every node's CleanupTask hooks
// in reverse task order, then CleanupNode, walking nodes
// dependents-first so no consumer outlives a resource it reads.
//
// Cleanup errors are logged and journaled but otherwise ignored - a
// resource that failed to release cannot affect future frames, because
// there are none. Cleanup never fails; calling it again is a no-op.
// After Cleanup the graph is finished: Compile and Execute return
// ErrAlreadyCleaned.
func (g *Graph) Cleanup(ctx Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cleaned {
		return nil
	}

	observability.LogCleanupStart(ctx.Logger(), ctx.RunID(), g.topo.NodeCount())

	for _, name := range g.tracker.BuildCleanupOrder(g.topo) {
		n, ok := g.nodes[name]
		if !ok {
			continue
		}
		g.teardownNodeLocked(ctx, n)
		g.tracker.Forget(name)
	}

	g.cleaned = true
	g.compiled = false
	g.execOrder = nil
	g.busSub.Unsubscribe()
	return nil
}

// teardownNodeLocked releases one node's compiled state: CleanupTask
// per task in reverse order, then CleanupNode if setup ever ran. All
// hook errors are treated as no-ops.
func (g *Graph) teardownNodeLocked(ctx Context, n *nodeState) {
	if n.state == StateCleanupDone {
		return
	}

	for i := len(n.tasks) - 1; i >= 0; i-- {
		g.runCleanupTask(ctx, n, n.tasks[i])
	}
	n.tasks = nil

	if n.state >= StateSetupDone {
		g.runCleanupNode(ctx, n)
	}

	n.reservation.Release()
	n.reservation = nil
	n.forgetProduced()
	n.state = StateCleanupDone
}

// runCleanupTask invokes CleanupTask with panic recovery. Errors are
// logged, journaled, and dropped.
func (g *Graph) runCleanupTask(ctx Context, n *nodeState, task *SlotTask) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Node: n.name, Phase: phaseCleanup, Value: r, Stack: string(debug.Stack())}
			}
		}()
		tc := &TaskContext{
			NodeContext: NodeContext{ctx: ctx, graph: g, node: n, phase: phaseCleanup},
			task:        task,
		}
		return n.impl.CleanupTask(tc)
	}()
	g.metrics.RecordCleanup(ctx, n.name, err)
	if err != nil {
		g.ignoreCleanupError(ctx, n.name, fmt.Errorf("task %d: %w", task.index, err))
	}
}

// runCleanupNode invokes CleanupNode with panic recovery. Errors are
// logged, journaled, and dropped.
func (g *Graph) runCleanupNode(ctx Context, n *nodeState) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Node: n.name, Phase: phaseCleanup, Value: r, Stack: string(debug.Stack())}
			}
		}()
		nc := &NodeContext{ctx: ctx, graph: g, node: n, phase: phaseCleanup}
		return n.impl.CleanupNode(nc)
	}()
	g.metrics.RecordCleanup(ctx, n.name, err)
	if err != nil {
		g.ignoreCleanupError(ctx, n.name, err)
	}
}

func (g *Graph) ignoreCleanupError(ctx Context, node string, err error) {
	observability.LogCleanupError(ctx.Logger(), node, err)
	g.record(ctx, diag.Record{
		Node: node, Phase: phaseCleanup,
		Severity: diag.SeverityCleanupIgnored,
		Message:  err.Error(),
	})
}
