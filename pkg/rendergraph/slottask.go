package rendergraph

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// SlotTask is one configuration variant of a node, derived at Compile
// from the node's TaskLevel array inputs. Task k sees element k of each
// driving array slot and the shared value of every NodeLevel slot. A
// task fans out into `instances` units of parallel work, sized by its
// InstanceLevel input collection.
type SlotTask struct {
	node  *nodeState
	index int

	// inputs[slot] holds the resources bound to that slot for this
	// task, in connection order. NodeLevel and TaskLevel slots carry at
	// most one entry after task specialization.
	inputs [][]*Resource

	// outputs[slot] is filled by CompileTask via SetOut; the graph maps
	// these task-local outputs to the node's global output indices.
	outputs []*Resource

	instances int

	// cursor rotates across frames when the budget quota covers fewer
	// than `instances` concurrent units: the instances that missed one
	// frame run first on the next. Backpressure, not dropped work.
	cursor int
}

// Index returns the task index within its node.
func (t *SlotTask) Index() int { return t.index }

// Instances returns the task's instance count.
func (t *SlotTask) Instances() int { return t.instances }

// deriveTasks specializes a node into SlotTasks from its bound inputs.
// bound[slot] is the full, connection-ordered resource list per input
// slot. The first TaskLevel slot (in schema order) with any producers
// drives the task count; every other TaskLevel slot must carry the same
// count or a single broadcast value. A driving slot with zero producers
// yields zero tasks, which is a legal no-op.
func deriveTasks(n *nodeState, bound [][]*Resource) ([]*SlotTask, error) {
	inputs := n.typ.Inputs()
	taskCount := 1
	driving := -1
	for i, schema := range inputs {
		if schema.Scope != TaskLevel {
			continue
		}
		if driving < 0 {
			driving = i
			taskCount = len(bound[i])
			continue
		}
		if k := len(bound[i]); k != taskCount && k > 1 {
			return nil, fmt.Errorf(
				"node %s: task-level slot %q has %d producers, driving slot %q has %d",
				n.name, schema.Name, k, inputs[driving].Name, taskCount)
		}
	}

	tasks := make([]*SlotTask, 0, taskCount)
	for k := 0; k < taskCount; k++ {
		task := &SlotTask{
			node:    n,
			index:   k,
			inputs:  make([][]*Resource, len(inputs)),
			outputs: make([]*Resource, len(n.typ.Outputs())),
		}
		for i, schema := range inputs {
			switch schema.Scope {
			case TaskLevel:
				if len(bound[i]) == 1 {
					task.inputs[i] = bound[i] // broadcast
				} else if k < len(bound[i]) {
					task.inputs[i] = bound[i][k : k+1]
				}
			default:
				task.inputs[i] = bound[i]
			}
		}
		task.instances = instanceCount(n, task)
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// instanceCount sizes a task's fan-out from its first InstanceLevel
// slot: the bound collection's length, or the number of bound
// resources when several producers feed the slot. No InstanceLevel
// slot means a single instance.
func instanceCount(n *nodeState, task *SlotTask) int {
	for i, schema := range n.typ.Inputs() {
		if schema.Scope != InstanceLevel {
			continue
		}
		res := task.inputs[i]
		if len(res) == 0 {
			return 0
		}
		if len(res) == 1 {
			return res[0].Len()
		}
		return len(res)
	}
	return 1
}

// runInstances executes every pending instance of a task for one
// frame. Parallel nodes run up to `quota` instances concurrently on
// goroutines behind a semaphore channel; everyone else runs
// sequentially. The caller owns the join: runInstances returns only
// after every launched instance finished, so no work leaks past the
// node boundary into a dependent.
//
// Returns the number of instances executed, the number deferred to the
// next frame, and the first error by instance index (deterministic
// attribution even when instances race).
func (g *Graph) runInstances(ctx Context, n *nodeState, task *SlotTask, quota int, parallel bool) (int, int, error) {
	total := task.instances
	if total == 0 {
		return 0, 0, nil
	}
	if quota < 1 {
		quota = 1
	}
	run := total
	if quota < total {
		run = quota
	}
	deferred := total - run

	// Pick the instances for this frame, resuming after any that were
	// deferred last frame.
	picked := make([]int, run)
	for i := range picked {
		picked[i] = (task.cursor + i) % total
	}
	if deferred > 0 {
		task.cursor = (task.cursor + run) % total
	} else {
		task.cursor = 0
	}

	if !parallel || run == 1 {
		for _, inst := range picked {
			if err := g.executeInstance(ctx, n, task, inst); err != nil {
				return 0, deferred, err
			}
		}
		return run, deferred, nil
	}

	sem := make(chan struct{}, quota)
	errs := make([]error, total)
	var wg sync.WaitGroup
	for _, inst := range picked {
		wg.Add(1)
		go func(inst int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			errs[inst] = g.executeInstance(ctx, n, task, inst)
		}(inst)
	}
	wg.Wait()

	for inst := 0; inst < total; inst++ {
		if errs[inst] != nil {
			return 0, deferred, errs[inst]
		}
	}
	return run, deferred, nil
}

// executeInstance invokes one ExecuteInstance hook with panic recovery.
func (g *Graph) executeInstance(ctx Context, n *nodeState, task *SlotTask, instance int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Node:  n.name,
				Phase: phaseExecute,
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()

	ic := &InstanceContext{
		TaskContext: TaskContext{
			NodeContext: NodeContext{ctx: ctx, graph: g, node: n, phase: phaseExecute},
			task:        task,
		},
		instance: instance,
	}
	if hookErr := n.impl.ExecuteInstance(ic); hookErr != nil {
		return &NodeError{
			Node:     n.name,
			Phase:    phaseExecute,
			Task:     task.index,
			Instance: instance,
			Err:      hookErr,
		}
	}
	return nil
}
