package rendergraph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/renderkit/rendergraph/pkg/rendergraph/diag"
	"github.com/renderkit/rendergraph/pkg/rendergraph/event"
	"github.com/renderkit/rendergraph/pkg/rendergraph/observability"
)

// connection is one persistent producer->consumer binding. Bindings
// are stored by name, not by pointer, so they can outlive their
// endpoints: a connection whose node was removed surfaces as a
// StaleConnectionError at the next Compile instead of silently
// vanishing.
type connection struct {
	producer     string
	producerSlot string
	consumer     string
	consumerSlot string
}

// Graph owns a set of nodes, their typed connections, and the derived
// execution state. Build it with AddNode and Connect, then drive the
// lifecycle with Compile, Execute (once per frame), and Cleanup.
//
// Building and lifecycle calls are serialized by an internal lock, but
// the intended usage is single-goroutine: construct, compile, then
// execute frames in a loop. Parallelism happens inside Execute, per
// node, under the budget quota.
//
// Example:
//
//	g := rendergraph.NewGraph(rendergraph.WithName("forward"))
//	g.AddNode("geometry", geometryType, &GeometryNode{})
//	g.AddNode("lighting", lightingType, &LightingNode{})
//	if err := g.Connect("geometry", "gbuffer", "lighting", "gbuffer"); err != nil {
//	    return err
//	}
//	if err := g.Compile(ctx); err != nil {
//	    return err
//	}
//	report, err := g.Execute(ctx)
type Graph struct {
	mu   sync.Mutex
	name string

	nodes       map[string]*nodeState
	topo        *Topology
	connections []connection

	tracker *ResourceDependencyTracker
	budget  *BudgetManager
	catalog *TypeCatalog

	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	journal diag.Store

	bus    *event.Bus
	busSub *event.Subscription

	compiled  bool
	cleaned   bool
	frame     uint64
	execOrder []string

	// pendingMu guards marks that arrive while mu is held by a running
	// frame: bus deliveries and MarkDirty calls made from lifecycle
	// hooks land here and are applied at the next frame boundary.
	pendingMu    sync.Mutex
	pendingInv   []event.Invalidation
	pendingDirty []string
}

// NewGraph creates an empty graph. With no options it runs with an
// uncapped budget, no-op metrics and tracing, and no diagnostics
// journal.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		name:    "rendergraph",
		nodes:   make(map[string]*nodeState),
		topo:    NewTopology(),
		tracker: NewResourceDependencyTracker(),
		budget:  NewBudgetManager(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.bus != nil {
		g.busSub = g.bus.Subscribe(g.handleInvalidation)
	}
	return g
}

// AddNode adds a named node with its type schema and implementation.
// Returns the graph for method chaining.
//
// Panics if:
//   - name is empty or contains whitespace
//   - typ or impl is nil
//   - name already exists in the graph
func (g *Graph) AddNode(name string, typ *NodeType, impl Node) *Graph {
	if name == "" {
		panic("rendergraph: node name cannot be empty")
	}
	if strings.ContainsAny(name, " \t\n\r") {
		panic("rendergraph: node name cannot contain whitespace")
	}
	if typ == nil {
		panic(fmt.Sprintf("rendergraph: node %q has nil type", name))
	}
	if impl == nil {
		panic(fmt.Sprintf("rendergraph: node %q has nil implementation", name))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[name]; exists {
		panic(fmt.Sprintf("rendergraph: duplicate node name: %s", name))
	}

	g.topo.AddNode(name)
	g.nodes[name] = &nodeState{
		name:  name,
		index: g.topo.NodeCount() - 1,
		typ:   typ,
		impl:  impl,
		dirty: true,
	}
	g.compiled = false
	return g
}

// AddNodeByType adds a node instantiated from the configured type
// catalog. Unlike AddNode this is the data-driven path (graphs loaded
// from config or an editor), so an unknown type name is an error
// rather than a panic.
func (g *Graph) AddNodeByType(name, typeName string) error {
	if g.catalog == nil {
		return fmt.Errorf("graph %q: no type catalog configured", g.name)
	}
	typ, impl, err := g.catalog.Instantiate(typeName)
	if err != nil {
		return err
	}
	g.AddNode(name, typ, impl)
	return nil
}

// Connect binds a producer's output slot to a consumer's input slot.
// Type tags are checked immediately: a mismatch fails here, at build
// time, not at Compile. Connecting to a NodeLevel (single-value) input
// that already has a producer replaces the previous binding; array
// inputs (TaskLevel, InstanceLevel) accumulate producers in connection
// order. The consumer is marked for recompilation.
func (g *Graph) Connect(producer, producerSlot, consumer, consumerSlot string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	from, ok := g.nodes[producer]
	if !ok {
		return fmt.Errorf("%w: producer %q", ErrNodeNotFound, producer)
	}
	to, ok := g.nodes[consumer]
	if !ok {
		return fmt.Errorf("%w: consumer %q", ErrNodeNotFound, consumer)
	}

	outIdx := from.typ.OutputIndex(producerSlot)
	if outIdx < 0 {
		return fmt.Errorf("node %q has no output slot %q", producer, producerSlot)
	}
	inIdx := to.typ.InputIndex(consumerSlot)
	if inIdx < 0 {
		return fmt.Errorf("node %q has no input slot %q", consumer, consumerSlot)
	}

	outSchema := from.typ.Outputs()[outIdx]
	inSchema := to.typ.Inputs()[inIdx]
	if outSchema.Tag != inSchema.Tag {
		return &TypeMismatchError{
			Producer: producer, ProducerSlot: producerSlot,
			Consumer: consumer, ConsumerSlot: consumerSlot,
			Want: inSchema.Tag, Got: outSchema.Tag,
		}
	}

	if !inSchema.isArray() {
		g.dropConnectionsLocked(func(c connection) bool {
			return c.consumer == consumer && c.consumerSlot == consumerSlot
		})
	}

	g.connections = append(g.connections, connection{
		producer: producer, producerSlot: producerSlot,
		consumer: consumer, consumerSlot: consumerSlot,
	})
	if err := g.topo.AddEdge(Edge{From: producer, To: consumer, FromSlot: outIdx, ToSlot: inIdx}); err != nil {
		return err
	}
	g.markDirtyLocked(to)
	g.compiled = false
	return nil
}

// Disconnect removes a single binding. The consumer is marked for
// recompilation; a Required input left unbound fails the next Compile.
func (g *Graph) Disconnect(producer, producerSlot, consumer, consumerSlot string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	want := connection{
		producer: producer, producerSlot: producerSlot,
		consumer: consumer, consumerSlot: consumerSlot,
	}
	found := g.dropConnectionsLocked(func(c connection) bool { return c == want })
	if !found {
		return fmt.Errorf("no connection %s.%s -> %s.%s",
			producer, producerSlot, consumer, consumerSlot)
	}
	if to, ok := g.nodes[consumer]; ok {
		g.markDirtyLocked(to)
	}
	g.compiled = false
	return nil
}

// dropConnectionsLocked removes every connection matching the
// predicate, along with its topology edges. Returns true if any
// connection was removed.
func (g *Graph) dropConnectionsLocked(match func(connection) bool) bool {
	kept := g.connections[:0]
	found := false
	for _, c := range g.connections {
		if !match(c) {
			kept = append(kept, c)
			continue
		}
		found = true
		if from, ok := g.nodes[c.producer]; ok {
			if to, ok := g.nodes[c.consumer]; ok {
				g.topo.RemoveEdge(Edge{
					From: c.producer, To: c.consumer,
					FromSlot: from.typ.OutputIndex(c.producerSlot),
					ToSlot:   to.typ.InputIndex(c.consumerSlot),
				})
			}
		}
	}
	g.connections = kept
	return found
}

// RemoveNode detaches a node from the graph, tearing down its compiled
// resources first. Connections referencing the removed node are kept
// and reported as StaleConnectionError at the next Compile; callers
// that intend the removal must Disconnect (or reconnect) explicitly.
// Dependents are marked for recompilation.
func (g *Graph) RemoveNode(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, name)
	}

	for _, dep := range g.topo.GetDependents(name) {
		if d, ok := g.nodes[dep]; ok {
			g.markDirtyLocked(d)
		}
	}

	if n.state == StateCompileDone || n.state == StateExecuting {
		g.teardownNodeLocked(NewContext(context.Background()), n)
	}
	n.reservation.Release()
	g.tracker.Forget(name)

	g.topo.RemoveNode(name)
	delete(g.nodes, name)
	g.compiled = false
	return nil
}

// MarkDirty schedules a node for recompilation at the next Compile.
// Safe to call from inside a lifecycle hook: a mark made while a frame
// is executing is queued and applied at the next frame boundary, so
// the running frame keeps a consistent view. A queued mark for a node
// that no longer exists is dropped.
func (g *Graph) MarkDirty(name string) error {
	if g.mu.TryLock() {
		defer g.mu.Unlock()

		n, ok := g.nodes[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrNodeNotFound, name)
		}
		g.markDirtyLocked(n)
		return nil
	}

	g.pendingMu.Lock()
	g.pendingDirty = append(g.pendingDirty, name)
	g.pendingMu.Unlock()
	return nil
}

func (g *Graph) markDirtyLocked(n *nodeState) {
	n.dirty = true
	g.compiled = false
}

// handleInvalidation reacts to a bus delivery. When the graph lock is
// free the invalidation applies immediately; a delivery during a
// running frame (the lock is non-reentrant, and hooks may publish) is
// queued for the next frame boundary instead of blocking.
func (g *Graph) handleInvalidation(inv event.Invalidation) {
	if g.mu.TryLock() {
		defer g.mu.Unlock()
		g.applyInvalidationLocked(inv)
		return
	}

	g.pendingMu.Lock()
	g.pendingInv = append(g.pendingInv, inv)
	g.pendingMu.Unlock()
}

// applyInvalidationLocked marks every node matching the invalidation
// for recompilation: by node tag, by produced-resource category, or by
// exact resource identity.
func (g *Graph) applyInvalidationLocked(inv event.Invalidation) {
	for _, name := range g.topo.Nodes() {
		n := g.nodes[name]
		if inv.Category != "" && n.hasTag(inv.Category) {
			g.markDirtyLocked(n)
			continue
		}
		for _, r := range n.produced {
			if inv.MatchesResource() && r.ID() == inv.ResourceID {
				g.markDirtyLocked(n)
				break
			}
			if inv.Category != "" && r.HasCategory(inv.Category) {
				g.markDirtyLocked(n)
				break
			}
		}
	}
}

// drainPendingLocked applies invalidations and dirty marks that were
// queued while a frame held the graph lock. Called at frame
// boundaries, before dirty nodes are recompiled.
func (g *Graph) drainPendingLocked() {
	g.pendingMu.Lock()
	invs := g.pendingInv
	names := g.pendingDirty
	g.pendingInv = nil
	g.pendingDirty = nil
	g.pendingMu.Unlock()

	for _, inv := range invs {
		g.applyInvalidationLocked(inv)
	}
	for _, name := range names {
		if n, ok := g.nodes[name]; ok {
			g.markDirtyLocked(n)
		}
	}
}

// TagNode attaches invalidation tags to a node. A published
// invalidation whose category matches any tag dirties the node even
// when none of its produced resources carry that category, so a whole
// family of nodes can be invalidated at once. Tags accumulate across
// calls.
func (g *Graph) TagNode(name string, tags ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, name)
	}
	n.tags = append(n.tags, tags...)
	return nil
}

// NodeTags returns a copy of the node's invalidation tags.
func (g *Graph) NodeTags(name string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[name]
	if !ok || len(n.tags) == 0 {
		return nil
	}
	out := make([]string, len(n.tags))
	copy(out, n.tags)
	return out
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Frame returns the number of completed Execute passes.
func (g *Graph) Frame() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.frame
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.topo.NodeCount()
}

// NodeNames returns all node names in creation order.
func (g *Graph) NodeNames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.topo.Nodes()
}

// HasNode reports whether a node exists.
func (g *Graph) HasNode(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.nodes[name]
	return ok
}

// NodeState returns a node's lifecycle state.
func (g *Graph) NodeState(name string) (LifecycleState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[name]
	if !ok {
		return StateConstructed, false
	}
	return n.state, true
}

// Dependencies returns the distinct producers feeding a node, ordered
// by creation index.
func (g *Graph) Dependencies(name string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.topo.GetDependencies(name)
}

// Dependents returns the distinct consumers of a node, ordered by
// creation index.
func (g *Graph) Dependents(name string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.topo.GetDependents(name)
}

// Budget returns the graph's budget manager.
func (g *Graph) Budget() *BudgetManager { return g.budget }

// NodeStats reports a node's accumulated execution time and run count.
type NodeStats struct {
	Runs      uint64
	TotalTime time.Duration
}

// Stats returns execution statistics for a node.
func (g *Graph) Stats(name string) (NodeStats, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[name]
	if !ok {
		return NodeStats{}, false
	}
	return NodeStats{
		Runs:      n.statRuns,
		TotalTime: time.Duration(n.statNanos),
	}, true
}

// record appends a diagnostic, ignoring journal errors: a failing
// journal must never fail a frame.
func (g *Graph) record(ctx Context, rec diag.Record) {
	if g.journal == nil {
		return
	}
	rec.RunID = ctx.RunID()
	rec.Frame = g.frame
	_ = g.journal.Append(rec)
}
