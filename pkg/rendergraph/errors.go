package rendergraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNotCompiled indicates Execute or Cleanup was called before a
	// successful Compile.
	ErrNotCompiled = errors.New("graph not compiled")

	// ErrAlreadyCleaned indicates the graph was already torn down.
	ErrAlreadyCleaned = errors.New("graph already cleaned up")

	// ErrNilContext indicates a phase was invoked with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrNodeNotFound indicates an operation referenced an unknown node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrUnknownNodeType indicates the type catalog has no factory
	// registered under the requested name.
	ErrUnknownNodeType = errors.New("unknown node type")
)

// TypeMismatchError reports an edge whose producer output tag does not
// match the consumer input tag. Fatal at Compile.
type TypeMismatchError struct {
	Producer     string
	ProducerSlot string
	Consumer     string
	ConsumerSlot string
	Want         TypeTag
	Got          TypeTag
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch on edge %s.%s -> %s.%s: want %s, got %s",
		e.Producer, e.ProducerSlot, e.Consumer, e.ConsumerSlot, e.Want, e.Got)
}

// MissingRequiredInputError reports a Required input slot with no
// producer at Compile time. Fatal for the whole graph.
type MissingRequiredInputError struct {
	Node string
	Slot string
}

// Error implements the error interface.
func (e *MissingRequiredInputError) Error() string {
	return fmt.Sprintf("node %s: required input %q has no producer", e.Node, e.Slot)
}

// CyclicDependencyError reports a cycle detected during topology
// analysis, naming the back edge that closed it. A self-edge counts.
type CyclicDependencyError struct {
	From string
	To   string
}

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	if e.From == e.To {
		return fmt.Sprintf("cyclic dependency: self-edge on node %s", e.From)
	}
	return fmt.Sprintf("cyclic dependency: back edge %s -> %s", e.From, e.To)
}

// BudgetUnsatisfiableError reports a compile-time budget request that
// can never be met, e.g. a per-instance cost larger than the pool's
// total capacity. Fatal at Compile - never a silent runtime throttle.
type BudgetUnsatisfiableError struct {
	Node     string
	Pool     string
	Cost     uint64
	Capacity uint64
	Reason   string
}

// Error implements the error interface.
func (e *BudgetUnsatisfiableError) Error() string {
	return fmt.Sprintf("node %s: budget unsatisfiable on pool %q (cost %d, capacity %d): %s",
		e.Node, e.Pool, e.Cost, e.Capacity, e.Reason)
}

// InvalidResourceTypeError reports a payload access with the wrong
// concrete type. Surfaces at the access site when the type is not known
// statically.
type InvalidResourceTypeError struct {
	Want TypeTag
	Got  TypeTag
}

// Error implements the error interface.
func (e *InvalidResourceTypeError) Error() string {
	want := string(e.Want)
	if want == "" {
		want = "unknown"
	}
	if e.Got == "" {
		return fmt.Sprintf("invalid resource type: want %s, resource is nil", want)
	}
	return fmt.Sprintf("invalid resource type: want %s, got %s", want, e.Got)
}

// StaleConnectionError reports an edge that references a removed node.
type StaleConnectionError struct {
	Producer string
	Consumer string
}

// Error implements the error interface.
func (e *StaleConnectionError) Error() string {
	return fmt.Sprintf("stale connection: edge %s -> %s references a removed node",
		e.Producer, e.Consumer)
}

// NodeError wraps a failure raised by a node's own lifecycle hook,
// attributing it to the node, phase, and task/instance coordinates.
type NodeError struct {
	Node     string
	Phase    string
	Task     int
	Instance int
	Err      error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s failed (task %d, instance %d): %v",
		e.Node, e.Phase, e.Task, e.Instance, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error { return e.Err }

// PanicError captures a panic raised inside a node's lifecycle hook.
// It includes the stack trace for debugging.
type PanicError struct {
	Node  string
	Phase string
	Value any
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked during %s: %v", e.Node, e.Phase, e.Value)
}

// PhaseViolationError reports a slot access outside the phase its Role
// allows, e.g. reading an ExecuteOnly input during CompileTask.
type PhaseViolationError struct {
	Node  string
	Slot  string
	Role  Role
	Phase string
}

// Error implements the error interface.
func (e *PhaseViolationError) Error() string {
	return fmt.Sprintf("node %s: slot %q with role %s is not readable during %s",
		e.Node, e.Slot, e.Role, e.Phase)
}
