package rendergraph

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/renderkit/rendergraph/pkg/rendergraph/diag"
	"github.com/renderkit/rendergraph/pkg/rendergraph/observability"
)

// Compile validates the graph and builds every node's tasks in
// topological order. Compile is incremental: nodes already compiled
// and not marked dirty are skipped, and a recompiled producer forces
// its consumers to recompile in the same pass.
//
// Any compile error is graph-fatal - a half-built graph must not reach
// Execute. All independent failures are collected and joined so one
// pass reports everything:
//
//	StaleConnectionError      connection references a removed node
//	CyclicDependencyError     the topology contains a cycle
//	MissingRequiredInputError a Required input has no producer
//	NodeError                 a Setup or CompileTask hook failed
//
// Compile is idempotent: calling it again with no changes is a no-op.
func (g *Graph) Compile(ctx Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.compileLocked(ctx)
}

func (g *Graph) compileLocked(ctx Context) error {
	if g.cleaned {
		return ErrAlreadyCleaned
	}
	g.drainPendingLocked()

	start := time.Now()
	logger := ctx.Logger()
	observability.LogCompileStart(logger, ctx.RunID(), g.topo.NodeCount())

	var errs []error

	for _, c := range g.connections {
		if _, ok := g.nodes[c.producer]; !ok {
			errs = append(errs, &StaleConnectionError{Producer: c.producer, Consumer: c.consumer})
			continue
		}
		if _, ok := g.nodes[c.consumer]; !ok {
			errs = append(errs, &StaleConnectionError{Producer: c.producer, Consumer: c.consumer})
		}
	}
	if err := g.failCompileLocked(ctx, errs); err != nil {
		return err
	}

	order, err := g.topo.TopologicalSort()
	if err != nil {
		return g.failCompileLocked(ctx, []error{err})
	}

	// Walk producers before consumers so a recompiled producer's fresh
	// outputs are visible when its consumers bind.
	recompiled := make(map[string]bool)
	compiled, skipped := 0, 0
	for _, name := range order {
		n := g.nodes[name]

		needs := n.dirty || n.state < StateCompileDone
		if !needs {
			for _, dep := range g.topo.GetDependencies(name) {
				if recompiled[dep] {
					needs = true
					break
				}
			}
		}
		if !needs {
			skipped++
			continue
		}

		if err := g.compileNodeLocked(ctx, n); err != nil {
			errs = append(errs, err)
			continue
		}
		recompiled[name] = true
		compiled++
	}
	if err := g.failCompileLocked(ctx, errs); err != nil {
		return err
	}

	g.execOrder = order
	g.compiled = true
	observability.LogCompileComplete(logger, ctx.RunID(),
		float64(time.Since(start).Microseconds())/1000.0, compiled, skipped)
	return nil
}

// failCompileLocked joins collected compile errors, records them, and
// returns the joined error. Returns nil when errs is empty.
func (g *Graph) failCompileLocked(ctx Context, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	joined := errors.Join(errs...)
	observability.LogCompileError(ctx.Logger(), ctx.RunID(), joined)
	g.record(ctx, diag.Record{
		Phase:    phaseCompile,
		Severity: diag.SeverityCompileFatal,
		Message:  joined.Error(),
	})
	g.compiled = false
	return joined
}

// compileNodeLocked runs one node through Setup (first time only),
// input binding, task derivation, budget reservation, and CompileTask.
func (g *Graph) compileNodeLocked(ctx Context, n *nodeState) error {
	if n.state >= StateCompileDone {
		g.resetCompiledLocked(ctx, n)
	}

	if n.state == StateConstructed {
		if err := g.runSetup(ctx, n); err != nil {
			return err
		}
		n.state = StateSetupDone
	}

	bound, err := g.bindInputsLocked(n)
	if err != nil {
		return err
	}

	tasks, err := deriveTasks(n, bound)
	if err != nil {
		return err
	}
	n.tasks = tasks

	if p, ok := n.isParallel(); ok {
		res, err := g.budget.ReserveMinimum(n.name, p.TaskRequirement())
		if err != nil {
			return err
		}
		n.reservation = res
	}

	for _, task := range tasks {
		if err := g.runCompileTask(ctx, n, task); err != nil {
			return err
		}
		for i, schema := range n.typ.Outputs() {
			if schema.Nullability == Required && task.outputs[i] == nil {
				return fmt.Errorf("node %s task %d: required output %q not set during compile",
					n.name, task.index, schema.Name)
			}
		}
	}

	n.state = StateCompileDone
	n.dirty = false
	return nil
}

// bindInputsLocked collects, per input slot, the resources produced by
// every connected producer in connection order. A producer with K
// tasks contributes K resources. Required slots with nothing bound
// fail with MissingRequiredInputError.
func (g *Graph) bindInputsLocked(n *nodeState) ([][]*Resource, error) {
	inputs := n.typ.Inputs()
	bound := make([][]*Resource, len(inputs))

	for _, c := range g.connections {
		if c.consumer != n.name {
			continue
		}
		inIdx := n.typ.InputIndex(c.consumerSlot)
		if inIdx < 0 {
			continue
		}
		from, ok := g.nodes[c.producer]
		if !ok {
			return nil, &StaleConnectionError{Producer: c.producer, Consumer: c.consumer}
		}
		outIdx := from.typ.OutputIndex(c.producerSlot)
		if outIdx < 0 {
			continue
		}
		for _, task := range from.tasks {
			if r := task.outputs[outIdx]; r != nil {
				bound[inIdx] = append(bound[inIdx], r)
			}
		}
	}

	for i, schema := range inputs {
		if schema.Nullability == Required && len(bound[i]) == 0 {
			return nil, &MissingRequiredInputError{Node: n.name, Slot: schema.Name}
		}
	}
	return bound, nil
}

// resetCompiledLocked tears down a previously compiled node's tasks so
// it can recompile from a clean slate. Node-level setup survives;
// only task state is rebuilt. Teardown errors are no-ops.
func (g *Graph) resetCompiledLocked(ctx Context, n *nodeState) {
	for i := len(n.tasks) - 1; i >= 0; i-- {
		g.runCleanupTask(ctx, n, n.tasks[i])
	}
	n.tasks = nil
	n.reservation.Release()
	n.reservation = nil
	g.tracker.Forget(n.name)
	n.forgetProduced()
	n.state = StateSetupDone
}

// runSetup invokes SetupNode with panic recovery.
func (g *Graph) runSetup(ctx Context, n *nodeState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Node: n.name, Phase: phaseSetup, Value: r, Stack: string(debug.Stack())}
		}
	}()
	nc := &NodeContext{ctx: ctx, graph: g, node: n, phase: phaseSetup}
	if hookErr := n.impl.SetupNode(nc); hookErr != nil {
		return &NodeError{Node: n.name, Phase: phaseSetup, Err: hookErr}
	}
	return nil
}

// runCompileTask invokes CompileTask with panic recovery.
func (g *Graph) runCompileTask(ctx Context, n *nodeState, task *SlotTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Node: n.name, Phase: phaseCompile, Value: r, Stack: string(debug.Stack())}
		}
	}()
	tc := &TaskContext{
		NodeContext: NodeContext{ctx: ctx, graph: g, node: n, phase: phaseCompile},
		task:        task,
	}
	if hookErr := n.impl.CompileTask(tc); hookErr != nil {
		return &NodeError{Node: n.name, Phase: phaseCompile, Task: task.index, Err: hookErr}
	}
	return nil
}
