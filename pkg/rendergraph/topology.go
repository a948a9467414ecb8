package rendergraph

// Edge is one producer->consumer connection in the topology.
// Slot indices are carried so a detected cycle or stale edge can be
// reported against the offending connection.
type Edge struct {
	From     string
	To       string
	FromSlot int
	ToSlot   int
}

// Topology is the adjacency store over graph nodes, keyed by node name
// with a stable creation index per node. All queries iterate in
// creation order, so dependency lists, cycle reports, and topological
// sorts are deterministic for identical build sequences. That is a
// documented policy (reproducible frame measurement), not an accident.
type Topology struct {
	order []string
	index map[string]int
	out   map[string][]Edge
	in    map[string][]Edge
}

// NewTopology creates an empty topology.
func NewTopology() *Topology {
	return &Topology{
		index: make(map[string]int),
		out:   make(map[string][]Edge),
		in:    make(map[string][]Edge),
	}
}

// AddNode registers a node. Re-adding an existing node is a no-op.
func (t *Topology) AddNode(name string) {
	if _, ok := t.index[name]; ok {
		return
	}
	t.index[name] = len(t.order)
	t.order = append(t.order, name)
}

// RemoveNode drops a node and every edge touching it.
func (t *Topology) RemoveNode(name string) {
	idx, ok := t.index[name]
	if !ok {
		return
	}
	t.order = append(t.order[:idx], t.order[idx+1:]...)
	delete(t.index, name)
	for i := idx; i < len(t.order); i++ {
		t.index[t.order[i]] = i
	}
	delete(t.out, name)
	delete(t.in, name)
	for n, edges := range t.out {
		t.out[n] = dropEdges(edges, name)
	}
	for n, edges := range t.in {
		t.in[n] = dropEdges(edges, name)
	}
}

func dropEdges(edges []Edge, node string) []Edge {
	kept := edges[:0]
	for _, e := range edges {
		if e.From != node && e.To != node {
			kept = append(kept, e)
		}
	}
	return kept
}

// Has reports whether a node is present.
func (t *Topology) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AddEdge records a producer->consumer edge. Both endpoints must have
// been added. Parallel edges between the same pair are allowed (two
// slots of the same consumer may read the same producer).
func (t *Topology) AddEdge(e Edge) error {
	if !t.Has(e.From) {
		return &StaleConnectionError{Producer: e.From, Consumer: e.To}
	}
	if !t.Has(e.To) {
		return &StaleConnectionError{Producer: e.From, Consumer: e.To}
	}
	t.out[e.From] = append(t.out[e.From], e)
	t.in[e.To] = append(t.in[e.To], e)
	return nil
}

// RemoveEdge drops one matching edge, if present.
func (t *Topology) RemoveEdge(e Edge) {
	t.out[e.From] = removeEdge(t.out[e.From], e)
	t.in[e.To] = removeEdge(t.in[e.To], e)
}

func removeEdge(edges []Edge, e Edge) []Edge {
	for i, cur := range edges {
		if cur == e {
			return append(edges[:i], edges[i+1:]...)
		}
	}
	return edges
}

// HasEdge reports whether any edge from -> to exists.
func (t *Topology) HasEdge(from, to string) bool {
	for _, e := range t.out[from] {
		if e.To == to {
			return true
		}
	}
	return false
}

// Edges returns the inbound edges of a node in insertion order.
func (t *Topology) Edges(to string) []Edge {
	return t.in[to]
}

// GetDependencies returns the distinct producers of a node, ordered by
// creation index.
func (t *Topology) GetDependencies(name string) []string {
	return t.neighbors(t.in[name], func(e Edge) string { return e.From })
}

// GetDependents returns the distinct consumers of a node, ordered by
// creation index.
func (t *Topology) GetDependents(name string) []string {
	return t.neighbors(t.out[name], func(e Edge) string { return e.To })
}

func (t *Topology) neighbors(edges []Edge, pick func(Edge) string) []string {
	seen := make(map[string]bool, len(edges))
	var names []string
	for _, e := range edges {
		n := pick(e)
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	// Order by creation index for determinism.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && t.index[names[j]] < t.index[names[j-1]]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return names
}

// NodeCount returns the number of nodes.
func (t *Topology) NodeCount() int { return len(t.order) }

// Nodes returns all node names in creation order.
func (t *Topology) Nodes() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// dfs colors for cycle detection.
const (
	colorWhite = iota // unvisited
	colorGray         // in progress
	colorBlack        // done
)

// FindCycle runs three-color depth-first search and returns the back
// edge that closes a cycle, or nil if the topology is acyclic. A
// self-edge is reported as a cycle on its own node.
func (t *Topology) FindCycle() *CyclicDependencyError {
	color := make(map[string]int, len(t.order))
	for _, name := range t.order {
		if color[name] != colorWhite {
			continue
		}
		if cyc := t.dfsCycle(name, color); cyc != nil {
			return cyc
		}
	}
	return nil
}

func (t *Topology) dfsCycle(name string, color map[string]int) *CyclicDependencyError {
	color[name] = colorGray
	for _, e := range t.out[name] {
		switch color[e.To] {
		case colorGray:
			return &CyclicDependencyError{From: e.From, To: e.To}
		case colorWhite:
			if cyc := t.dfsCycle(e.To, color); cyc != nil {
				return cyc
			}
		}
	}
	color[name] = colorBlack
	return nil
}

// IsAcyclic reports whether the topology contains no cycle.
func (t *Topology) IsAcyclic() bool {
	return t.FindCycle() == nil
}

// TopologicalSort returns every node with each producer strictly before
// its consumers. Ties among mutually independent nodes resolve by
// creation index (Kahn's algorithm with ordered selection). Returns
// CyclicDependencyError if no order exists.
func (t *Topology) TopologicalSort() ([]string, error) {
	indegree := make(map[string]int, len(t.order))
	for _, name := range t.order {
		indegree[name] = len(t.in[name])
	}

	sorted := make([]string, 0, len(t.order))
	done := make(map[string]bool, len(t.order))

	for len(sorted) < len(t.order) {
		picked := ""
		for _, name := range t.order {
			if !done[name] && indegree[name] == 0 {
				picked = name
				break
			}
		}
		if picked == "" {
			// Remaining nodes all sit on a cycle; name the back edge.
			if cyc := t.FindCycle(); cyc != nil {
				return nil, cyc
			}
			return nil, &CyclicDependencyError{}
		}
		done[picked] = true
		sorted = append(sorted, picked)
		for _, e := range t.out[picked] {
			indegree[e.To]--
		}
	}
	return sorted, nil
}

// Clear removes all nodes and edges.
func (t *Topology) Clear() {
	t.order = nil
	t.index = make(map[string]int)
	t.out = make(map[string][]Edge)
	t.in = make(map[string][]Edge)
}
