package rendergraph

import (
	"log/slog"
)

// Node is the lifecycle contract every graph node implements.
//
// The graph drives the hooks in a fixed order:
//
//	SetupNode    once, before any connection data is readable
//	CompileTask  once per SlotTask, in topological order
//	ExecuteInstance  once per (task, instance) per frame
//	CleanupTask / CleanupNode  in reverse dependency order
//
// SetupNode deliberately receives a context with no input access: input
// resources do not exist before the producers compile, and reading them
// there is the classic use-before-connect bug.
type Node interface {
	// SetupNode initializes node-level shared state. Called once.
	SetupNode(ctx *NodeContext) error

	// CompileTask validates bound inputs and creates this task's
	// resources via ctx.SetOut. Called once per SlotTask.
	CompileTask(ctx *TaskContext) error

	// ExecuteInstance performs one instance's worth of per-frame work.
	// Instance-level inputs and task outputs are reachable through ctx;
	// writes must stay within this instance's slice of the data.
	ExecuteInstance(ctx *InstanceContext) error

	// CleanupTask mirrors CompileTask, releasing task-level resources.
	CleanupTask(ctx *TaskContext) error

	// CleanupNode mirrors SetupNode.
	CleanupNode(ctx *NodeContext) error
}

// BaseNode provides no-op implementations of every lifecycle hook.
// Embed it to implement only the hooks a node needs:
//
//	type TonemapNode struct {
//	    rendergraph.BaseNode
//	}
//
//	func (n *TonemapNode) CompileTask(ctx *rendergraph.TaskContext) error {
//	    ...
//	}
type BaseNode struct{}

var _ Node = BaseNode{}

// SetupNode does nothing.
func (BaseNode) SetupNode(*NodeContext) error { return nil }

// CompileTask does nothing.
func (BaseNode) CompileTask(*TaskContext) error { return nil }

// ExecuteInstance does nothing.
func (BaseNode) ExecuteInstance(*InstanceContext) error { return nil }

// CleanupTask does nothing.
func (BaseNode) CleanupTask(*TaskContext) error { return nil }

// CleanupNode does nothing.
func (BaseNode) CleanupNode(*NodeContext) error { return nil }

// ParallelNode is implemented by nodes that opt into running a task's
// instances concurrently under the budget quota. Nodes that do not
// implement it execute their instances sequentially.
type ParallelNode interface {
	Node

	// TaskRequirement states the per-instance capacity cost and the
	// minimum concurrency to guarantee at Compile.
	TaskRequirement() Requirement
}

// LifecycleState tracks where a node is in its lifecycle.
type LifecycleState uint8

const (
	StateConstructed LifecycleState = iota
	StateSetupDone
	StateCompileDone
	StateExecuting
	StateCleanupDone
)

// String returns the state name.
func (s LifecycleState) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateSetupDone:
		return "setup_done"
	case StateCompileDone:
		return "compile_done"
	case StateExecuting:
		return "executing"
	case StateCleanupDone:
		return "cleanup_done"
	default:
		return "unknown"
	}
}

// nodeState is the graph-owned record for one node: the user
// implementation plus slot bundles, derived tasks, and bookkeeping.
type nodeState struct {
	name  string
	index int
	typ   *NodeType
	impl  Node
	state LifecycleState
	tags  []string

	// dirty requests recompilation at the next Compile pass. Marks made
	// while a frame is executing are queued on the graph and land here
	// at the next frame boundary.
	dirty bool

	tasks       []*SlotTask
	reservation *Reservation

	// produced tracks live output resources for invalidation matching
	// and last-registration-wins re-registration.
	produced []*Resource

	// statNanos accumulates execution time for observability.
	statNanos int64
	statRuns  uint64
}

func (n *nodeState) hasTag(tag string) bool {
	for _, t := range n.tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (n *nodeState) isParallel() (ParallelNode, bool) {
	p, ok := n.impl.(ParallelNode)
	return p, ok
}

// rememberProduced records an output resource, replacing any earlier
// resource produced for the same output slot.
func (n *nodeState) rememberProduced(r *Resource) {
	n.produced = append(n.produced, r)
}

func (n *nodeState) forgetProduced() {
	n.produced = nil
}

// NodeContext is the view handed to SetupNode and CleanupNode. It
// exposes identity and services but, by design, no input slots.
type NodeContext struct {
	ctx   Context
	graph *Graph
	node  *nodeState
	phase string
}

// Context returns the run context.
func (c *NodeContext) Context() Context { return c.ctx }

// Logger returns the run logger enriched with the node name.
func (c *NodeContext) Logger() *slog.Logger {
	return c.ctx.Logger().With(slog.String("node", c.node.name))
}

// NodeName returns the graph-unique node name.
func (c *NodeContext) NodeName() string { return c.node.name }

// NodeType returns the shared type descriptor.
func (c *NodeContext) NodeType() *NodeType { return c.node.typ }

// Frame returns the current frame number (0 before the first Execute).
func (c *NodeContext) Frame() uint64 { return c.graph.frame }

// TaskContext is the view handed to CompileTask and CleanupTask: one
// SlotTask's bound inputs and its output bundle.
type TaskContext struct {
	NodeContext
	task *SlotTask
}

// TaskIndex returns this task's index within the node.
func (c *TaskContext) TaskIndex() int { return c.task.index }

// InstanceCount returns the number of instances this task fans out to.
func (c *TaskContext) InstanceCount() int { return c.task.instances }

// In returns the single resource bound to an input slot, or nil for an
// unbound Optional slot. Array-scoped slots with several producers
// return their first element; use InAll for the full set. Access is
// checked against the slot's Role for the current phase.
func (c *TaskContext) In(slot string) (*Resource, error) {
	all, err := c.InAll(slot)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

// InAll returns every resource bound to an input slot in connection
// order.
func (c *TaskContext) InAll(slot string) ([]*Resource, error) {
	idx := c.node.typ.InputIndex(slot)
	if idx < 0 {
		return nil, &PhaseViolationError{Node: c.node.name, Slot: slot, Phase: c.phase}
	}
	schema := c.node.typ.Inputs()[idx]
	if !roleReadable(schema.Role, c.phase) {
		return nil, &PhaseViolationError{
			Node: c.node.name, Slot: slot, Role: schema.Role, Phase: c.phase,
		}
	}
	return c.task.inputs[idx], nil
}

// SetOut wraps a payload in a Resource, type-checks it against the
// output slot's schema, and records this node as its producer. Only
// legal during CompileTask.
func (c *TaskContext) SetOut(slot string, p Payload, opts ...ResourceOption) (*Resource, error) {
	opts = append(opts, WithOrigin(c.node.name))
	return c.setOutResource(slot, NewResource(p, opts...))
}

// SetOutResource binds an existing resource to an output slot, e.g. a
// cached resource reused instead of regenerated. The graph's contract
// is only that the resource carries the declared type tag.
func (c *TaskContext) SetOutResource(slot string, r *Resource) (*Resource, error) {
	return c.setOutResource(slot, r)
}

func (c *TaskContext) setOutResource(slot string, r *Resource) (*Resource, error) {
	if c.phase != phaseCompile {
		return nil, &PhaseViolationError{Node: c.node.name, Slot: slot, Phase: c.phase}
	}
	idx := c.node.typ.OutputIndex(slot)
	if idx < 0 {
		return nil, &PhaseViolationError{Node: c.node.name, Slot: slot, Phase: c.phase}
	}
	schema := c.node.typ.Outputs()[idx]
	if !schema.accepts(r) {
		got := TypeTag("")
		if r != nil {
			got = r.Tag()
		}
		return nil, &InvalidResourceTypeError{Want: schema.Tag, Got: got}
	}
	c.task.outputs[idx] = r
	c.node.rememberProduced(r)
	c.graph.tracker.RegisterResourceProducer(r, c.node.name, idx)
	return r, nil
}

// Out returns the resource previously bound to an output slot for this
// task, or nil.
func (c *TaskContext) Out(slot string) *Resource {
	idx := c.node.typ.OutputIndex(slot)
	if idx < 0 {
		return nil
	}
	return c.task.outputs[idx]
}

// InstanceContext is the view handed to ExecuteInstance: the task view
// narrowed to one instance index.
type InstanceContext struct {
	TaskContext
	instance int
}

// InstanceIndex returns this instance's index within its task.
func (c *InstanceContext) InstanceIndex() int { return c.instance }

// phase names used in role checks and error attribution.
const (
	phaseSetup   = "setup"
	phaseCompile = "compile"
	phaseExecute = "execute"
	phaseCleanup = "cleanup"
)

// roleReadable reports whether a slot with the given role may be read
// in the given phase.
func roleReadable(r Role, phase string) bool {
	switch phase {
	case phaseCompile:
		return r == RoleDependency
	case phaseExecute:
		return r == RoleDependency || r == RoleExecuteOnly
	case phaseCleanup:
		return r == RoleDependency || r == RoleCleanupOnly
	default:
		return false
	}
}
