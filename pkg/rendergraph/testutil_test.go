package rendergraph

import (
	"context"
	"sync"
)

// Payload types used across tests.

// deviceHandle is a NodeLevel payload standing in for a GPU device.
type deviceHandle struct {
	ID int
}

func (deviceHandle) PayloadTag() TypeTag { return "gpu.device" }

// colorImage is a simple image payload.
type colorImage struct {
	Width, Height int
}

func (colorImage) PayloadTag() TypeTag { return "image.color" }

// depthImage is a second image payload with a distinct tag.
type depthImage struct {
	Width, Height int
}

func (depthImage) PayloadTag() TypeTag { return "image.depth" }

// drawBatch is a Collection payload driving instance fan-out.
type drawBatch struct {
	Items []string
}

func (drawBatch) PayloadTag() TypeTag { return "draw.batch" }
func (b drawBatch) Len() int          { return len(b.Items) }

// funcNode is a configurable Node implementation. Nil hooks succeed.
type funcNode struct {
	setup       func(*NodeContext) error
	compile     func(*TaskContext) error
	execute     func(*InstanceContext) error
	cleanupTask func(*TaskContext) error
	cleanupNode func(*NodeContext) error
}

func (f *funcNode) SetupNode(ctx *NodeContext) error {
	if f.setup != nil {
		return f.setup(ctx)
	}
	return nil
}

func (f *funcNode) CompileTask(ctx *TaskContext) error {
	if f.compile != nil {
		return f.compile(ctx)
	}
	return nil
}

func (f *funcNode) ExecuteInstance(ctx *InstanceContext) error {
	if f.execute != nil {
		return f.execute(ctx)
	}
	return nil
}

func (f *funcNode) CleanupTask(ctx *TaskContext) error {
	if f.cleanupTask != nil {
		return f.cleanupTask(ctx)
	}
	return nil
}

func (f *funcNode) CleanupNode(ctx *NodeContext) error {
	if f.cleanupNode != nil {
		return f.cleanupNode(ctx)
	}
	return nil
}

// parallelFuncNode is a funcNode that opts into budgeted parallelism.
type parallelFuncNode struct {
	funcNode
	req Requirement
}

func (p *parallelFuncNode) TaskRequirement() Requirement { return p.req }

// callLog records hook invocations thread-safely.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// Shared node type schemas.

// sourceType has a single required output "out".
func sourceType(name string, tag TypeTag) *NodeType {
	return NewNodeType(name).
		Output(SlotSchema{Name: "out", Tag: tag, Nullability: Required}).
		Build()
}

// sinkType has a single input "in" with the given scope.
func sinkType(name string, tag TypeTag, scope Scope) *NodeType {
	return NewNodeType(name).
		Input(SlotSchema{Name: "in", Tag: tag, Scope: scope}).
		Build()
}

// passType consumes "in" and produces "out" with the same tag.
func passType(name string, tag TypeTag) *NodeType {
	return NewNodeType(name).
		Input(SlotSchema{Name: "in", Tag: tag}).
		Output(SlotSchema{Name: "out", Tag: tag, Nullability: Required}).
		Build()
}

// emit returns a compile hook producing the payload on slot "out".
func emit(p Payload, opts ...ResourceOption) func(*TaskContext) error {
	return func(ctx *TaskContext) error {
		_, err := ctx.SetOut("out", p, opts...)
		return err
	}
}

// passthrough returns a compile hook that reads "in" and re-emits the
// payload on "out".
func passthrough() func(*TaskContext) error {
	return func(ctx *TaskContext) error {
		r, err := ctx.In("in")
		if err != nil {
			return err
		}
		_, err = ctx.SetOut("out", r.Payload())
		return err
	}
}

// tracked wires every hook of a funcNode to append "name:phase" to log.
func tracked(name string, log *callLog) *funcNode {
	return &funcNode{
		setup: func(*NodeContext) error {
			log.add(name + ":setup")
			return nil
		},
		compile: func(*TaskContext) error {
			log.add(name + ":compile")
			return nil
		},
		execute: func(*InstanceContext) error {
			log.add(name + ":execute")
			return nil
		},
		cleanupTask: func(*TaskContext) error {
			log.add(name + ":cleanup_task")
			return nil
		},
		cleanupNode: func(*NodeContext) error {
			log.add(name + ":cleanup_node")
			return nil
		},
	}
}

// trackedEmit is tracked plus an output emission during compile.
func trackedEmit(name string, log *callLog, p Payload) *funcNode {
	n := tracked(name, log)
	n.compile = func(ctx *TaskContext) error {
		log.add(name + ":compile")
		_, err := ctx.SetOut("out", p)
		return err
	}
	return n
}

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}
