package rendergraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderkit/rendergraph/pkg/rendergraph/diag"
)

// TestCleanup_DependentsFirst verifies teardown walks consumers before
// producers, CleanupTask before CleanupNode within each node.
func TestCleanup_DependentsFirst(t *testing.T) {
	log := &callLog{}
	tag := TypeTag("image.color")

	g := NewGraph()
	g.AddNode("src", sourceType("Source", tag), trackedEmit("src", log, colorImage{}))
	g.AddNode("mid", passType("Mid", tag), passNode("mid", log))
	g.AddNode("dst", sinkType("Sink", tag, NodeLevel), tracked("dst", log))
	require.NoError(t, g.Connect("src", "out", "mid", "in"))
	require.NoError(t, g.Connect("mid", "out", "dst", "in"))

	ctx := testCtx()
	require.NoError(t, g.Compile(ctx))

	log.reset()
	require.NoError(t, g.Cleanup(ctx))
	assert.Equal(t, []string{
		"dst:cleanup_task", "dst:cleanup_node",
		"mid:cleanup_task", "mid:cleanup_node",
		"src:cleanup_task", "src:cleanup_node",
	}, log.all())
}

// TestCleanup_ErrorsIgnored verifies hook failures and panics never
// surface from Cleanup, but do reach the journal.
func TestCleanup_ErrorsIgnored(t *testing.T) {
	store := diag.NewMemoryStore()
	defer store.Close()

	g := NewGraph(WithDiagnostics(store))
	g.AddNode("a", sourceType("A", "image.color"), &funcNode{
		compile:     emit(colorImage{}),
		cleanupTask: func(*TaskContext) error { return errors.New("buffer still mapped") },
		cleanupNode: func(*NodeContext) error { panic("double free") },
	})

	ctx := testCtx()
	require.NoError(t, g.Compile(ctx))
	require.NoError(t, g.Cleanup(ctx))

	recs, err := store.List(ctx.RunID())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, diag.SeverityCleanupIgnored, rec.Severity)
		assert.Equal(t, "a", rec.Node)
	}
	assert.Contains(t, recs[0].Message, "buffer still mapped")
	assert.Contains(t, recs[1].Message, "double free")
}

// TestCleanup_Idempotent verifies a second Cleanup is a no-op.
func TestCleanup_Idempotent(t *testing.T) {
	log := &callLog{}
	g := NewGraph()
	g.AddNode("a", sourceType("A", "image.color"), trackedEmit("a", log, colorImage{}))

	ctx := testCtx()
	require.NoError(t, g.Compile(ctx))
	require.NoError(t, g.Cleanup(ctx))
	calls := len(log.all())

	require.NoError(t, g.Cleanup(ctx))
	assert.Equal(t, calls, len(log.all()))
}

// TestCleanup_FinalizesGraph verifies the graph rejects further work.
func TestCleanup_FinalizesGraph(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", sourceType("A", "image.color"), &funcNode{compile: emit(colorImage{})})

	ctx := testCtx()
	require.NoError(t, g.Compile(ctx))
	require.NoError(t, g.Cleanup(ctx))

	assert.ErrorIs(t, g.Compile(ctx), ErrAlreadyCleaned)
	_, err := g.Execute(ctx)
	assert.ErrorIs(t, err, ErrAlreadyCleaned)
}

// TestCleanup_NilContext verifies the guard.
func TestCleanup_NilContext(t *testing.T) {
	assert.ErrorIs(t, NewGraph().Cleanup(nil), ErrNilContext)
}

// TestCleanup_UncompiledNode verifies a node that never finished setup
// skips its CleanupNode hook.
func TestCleanup_UncompiledNode(t *testing.T) {
	log := &callLog{}
	g := NewGraph()
	g.AddNode("a", sourceType("A", "image.color"), tracked("a", log))

	// Never compiled; the node is still StateConstructed.
	require.NoError(t, g.Cleanup(testCtx()))
	assert.Empty(t, log.all())
}

// TestCleanup_ReleasesReservation verifies budget capacity returns to
// the pool.
func TestCleanup_ReleasesReservation(t *testing.T) {
	budget := NewBudgetManager()
	require.NoError(t, budget.SetPoolCapacity("memory", 10))

	g := NewGraph(WithBudget(budget))
	typ := NewNodeType("Heavy").
		Input(SlotSchema{Name: "in", Tag: "image.color", Nullability: Optional}).
		Build()
	g.AddNode("heavy", typ, &parallelFuncNode{
		req: Requirement{Pool: "memory", CostPerInstance: 5, MinInstances: 2},
	})

	ctx := testCtx()
	require.NoError(t, g.Compile(ctx))
	stats, ok := budget.Stats("memory")
	require.True(t, ok)
	assert.Equal(t, uint64(10), stats.Reserved)

	require.NoError(t, g.Cleanup(ctx))
	stats, _ = budget.Stats("memory")
	assert.Zero(t, stats.Reserved)
}
