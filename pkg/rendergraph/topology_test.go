package rendergraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTopology_AddNode verifies node registration and idempotence.
func TestTopology_AddNode(t *testing.T) {
	topo := NewTopology()
	topo.AddNode("a")
	topo.AddNode("b")
	topo.AddNode("a") // no-op

	assert.Equal(t, 2, topo.NodeCount())
	assert.Equal(t, []string{"a", "b"}, topo.Nodes())
	assert.True(t, topo.Has("a"))
	assert.False(t, topo.Has("c"))
}

// TestTopology_AddEdge_MissingEndpoint verifies stale endpoints fail.
func TestTopology_AddEdge_MissingEndpoint(t *testing.T) {
	topo := NewTopology()
	topo.AddNode("a")

	err := topo.AddEdge(Edge{From: "a", To: "ghost"})
	var stale *StaleConnectionError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, "a", stale.Producer)
	assert.Equal(t, "ghost", stale.Consumer)

	err = topo.AddEdge(Edge{From: "ghost", To: "a"})
	require.ErrorAs(t, err, &stale)
}

// TestTopology_RemoveNode verifies removal drops touching edges and
// reindexes survivors.
func TestTopology_RemoveNode(t *testing.T) {
	topo := NewTopology()
	for _, n := range []string{"a", "b", "c"} {
		topo.AddNode(n)
	}
	require.NoError(t, topo.AddEdge(Edge{From: "a", To: "b"}))
	require.NoError(t, topo.AddEdge(Edge{From: "b", To: "c"}))

	topo.RemoveNode("b")

	assert.Equal(t, []string{"a", "c"}, topo.Nodes())
	assert.False(t, topo.HasEdge("a", "b"))
	assert.False(t, topo.HasEdge("b", "c"))
	assert.Empty(t, topo.GetDependencies("c"))
}

// TestTopology_Dependencies_Deduplicated verifies parallel edges
// between the same pair collapse to one dependency entry.
func TestTopology_Dependencies_Deduplicated(t *testing.T) {
	topo := NewTopology()
	topo.AddNode("a")
	topo.AddNode("b")
	require.NoError(t, topo.AddEdge(Edge{From: "a", To: "b", ToSlot: 0}))
	require.NoError(t, topo.AddEdge(Edge{From: "a", To: "b", ToSlot: 1}))

	assert.Equal(t, []string{"a"}, topo.GetDependencies("b"))
	assert.Equal(t, []string{"b"}, topo.GetDependents("a"))
	assert.Len(t, topo.Edges("b"), 2)
}

// TestTopology_Dependencies_CreationOrder verifies neighbor lists are
// ordered by node creation index regardless of edge insertion order.
func TestTopology_Dependencies_CreationOrder(t *testing.T) {
	topo := NewTopology()
	for _, n := range []string{"a", "b", "c", "sink"} {
		topo.AddNode(n)
	}
	// Connect in reverse creation order.
	require.NoError(t, topo.AddEdge(Edge{From: "c", To: "sink"}))
	require.NoError(t, topo.AddEdge(Edge{From: "a", To: "sink"}))
	require.NoError(t, topo.AddEdge(Edge{From: "b", To: "sink"}))

	assert.Equal(t, []string{"a", "b", "c"}, topo.GetDependencies("sink"))
}

// TestTopology_TopologicalSort_Diamond verifies producers sort before
// consumers with ties broken by creation order.
func TestTopology_TopologicalSort_Diamond(t *testing.T) {
	topo := NewTopology()
	for _, n := range []string{"a", "b", "c", "d"} {
		topo.AddNode(n)
	}
	require.NoError(t, topo.AddEdge(Edge{From: "a", To: "b"}))
	require.NoError(t, topo.AddEdge(Edge{From: "a", To: "c"}))
	require.NoError(t, topo.AddEdge(Edge{From: "b", To: "d"}))
	require.NoError(t, topo.AddEdge(Edge{From: "c", To: "d"}))

	sorted, err := topo.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, sorted)
}

// TestTopology_TopologicalSort_TieBreak verifies independent nodes
// keep creation order.
func TestTopology_TopologicalSort_TieBreak(t *testing.T) {
	topo := NewTopology()
	for _, n := range []string{"z", "m", "a"} {
		topo.AddNode(n)
	}

	sorted, err := topo.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "m", "a"}, sorted)
}

// TestTopology_FindCycle verifies three-color detection names a back
// edge on the cycle.
func TestTopology_FindCycle(t *testing.T) {
	topo := NewTopology()
	for _, n := range []string{"a", "b", "c"} {
		topo.AddNode(n)
	}
	require.NoError(t, topo.AddEdge(Edge{From: "a", To: "b"}))
	require.NoError(t, topo.AddEdge(Edge{From: "b", To: "c"}))
	require.NoError(t, topo.AddEdge(Edge{From: "c", To: "a"}))

	cyc := topo.FindCycle()
	require.NotNil(t, cyc)
	assert.False(t, topo.IsAcyclic())

	_, err := topo.TopologicalSort()
	var sortCyc *CyclicDependencyError
	assert.ErrorAs(t, err, &sortCyc)
}

// TestTopology_FindCycle_SelfEdge verifies a self loop is reported as
// a cycle on its own node.
func TestTopology_FindCycle_SelfEdge(t *testing.T) {
	topo := NewTopology()
	topo.AddNode("a")
	require.NoError(t, topo.AddEdge(Edge{From: "a", To: "a"}))

	cyc := topo.FindCycle()
	require.NotNil(t, cyc)
	assert.Equal(t, "a", cyc.From)
	assert.Equal(t, "a", cyc.To)
	assert.Contains(t, cyc.Error(), "self-edge")
}

// TestTopology_Acyclic verifies a DAG passes cycle detection.
func TestTopology_Acyclic(t *testing.T) {
	topo := NewTopology()
	for _, n := range []string{"a", "b", "c"} {
		topo.AddNode(n)
	}
	require.NoError(t, topo.AddEdge(Edge{From: "a", To: "b"}))
	require.NoError(t, topo.AddEdge(Edge{From: "a", To: "c"}))

	assert.Nil(t, topo.FindCycle())
	assert.True(t, topo.IsAcyclic())
}

// TestTopology_RemoveEdge verifies single-edge removal.
func TestTopology_RemoveEdge(t *testing.T) {
	topo := NewTopology()
	topo.AddNode("a")
	topo.AddNode("b")
	e := Edge{From: "a", To: "b"}
	require.NoError(t, topo.AddEdge(e))
	assert.True(t, topo.HasEdge("a", "b"))

	topo.RemoveEdge(e)
	assert.False(t, topo.HasEdge("a", "b"))
}

// TestTopology_Clear verifies full reset.
func TestTopology_Clear(t *testing.T) {
	topo := NewTopology()
	topo.AddNode("a")
	topo.AddNode("b")
	require.NoError(t, topo.AddEdge(Edge{From: "a", To: "b"}))

	topo.Clear()
	assert.Equal(t, 0, topo.NodeCount())
	assert.False(t, topo.Has("a"))
}
