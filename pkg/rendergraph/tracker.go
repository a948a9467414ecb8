package rendergraph

import (
	"sync"

	"github.com/google/uuid"
)

// Producer identifies the node and output slot that created a resource.
type Producer struct {
	Node       string
	OutputSlot int
}

// ResourceDependencyTracker records which node produced each resource
// so teardown can run dependents-first. Registration is keyed by the
// resource's stable identity; a later registration for the same
// identity overwrites the earlier one, which is how a recompiled node
// regenerating a resource keeps the map fresh.
//
// Externally supplied handles are simply never registered; the cleanup
// walk skips them rather than treating them as errors.
type ResourceDependencyTracker struct {
	mu        sync.RWMutex
	producers map[uuid.UUID]Producer
}

// NewResourceDependencyTracker creates an empty tracker.
func NewResourceDependencyTracker() *ResourceDependencyTracker {
	return &ResourceDependencyTracker{
		producers: make(map[uuid.UUID]Producer),
	}
}

// RegisterResourceProducer records ownership of a resource.
// Last registration for a given identity wins.
func (t *ResourceDependencyTracker) RegisterResourceProducer(r *Resource, node string, outputSlot int) {
	if r == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.producers[r.id] = Producer{Node: node, OutputSlot: outputSlot}
}

// GetProducer returns the recorded producer of a resource, if any.
func (t *ResourceDependencyTracker) GetProducer(r *Resource) (Producer, bool) {
	if r == nil {
		return Producer{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.producers[r.id]
	return p, ok
}

// Forget drops every registration owned by the given node.
// Called when a node is removed or recompiled from scratch.
func (t *ResourceDependencyTracker) Forget(node string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, p := range t.producers {
		if p.Node == node {
			delete(t.producers, id)
		}
	}
}

// Len returns the number of tracked resources.
func (t *ResourceDependencyTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.producers)
}

// BuildCleanupOrder returns node names ordered so that every consumer
// is cleaned before any node producing a resource it reads. The walk is
// the reverse of the topological order restricted to nodes with live
// registrations plus all remaining nodes, so producers without tracked
// resources still tear down after their dependents.
func (t *ResourceDependencyTracker) BuildCleanupOrder(topo *Topology) []string {
	sorted, err := topo.TopologicalSort()
	if err != nil {
		// A cyclic topology never reaches Execute; tear down in reverse
		// creation order as a best effort.
		sorted = topo.Nodes()
	}
	order := make([]string, 0, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		order = append(order, sorted[i])
	}
	return order
}
