package rendergraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderkit/rendergraph/pkg/rendergraph/config"
)

// TestBudget_ReserveMinimum verifies the compile-time floor is pinned.
func TestBudget_ReserveMinimum(t *testing.T) {
	b := NewBudgetManager()
	require.NoError(t, b.SetPoolCapacity("memory", 100))

	res, err := b.ReserveMinimum("node", Requirement{
		Pool: "memory", CostPerInstance: 10, MinInstances: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.MinInstances())
	assert.Equal(t, uint64(40), b.Reserved("memory"))
}

// TestBudget_ReserveMinimum_ZeroMin verifies zero MinInstances is
// treated as one.
func TestBudget_ReserveMinimum_ZeroMin(t *testing.T) {
	b := NewBudgetManager()
	require.NoError(t, b.SetPoolCapacity("memory", 100))

	res, err := b.ReserveMinimum("node", Requirement{Pool: "memory", CostPerInstance: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, res.MinInstances())
	assert.Equal(t, uint64(10), b.Reserved("memory"))
}

// TestBudget_CostExceedsCapacity verifies an impossible per-instance
// cost fails at reservation, not at runtime.
func TestBudget_CostExceedsCapacity(t *testing.T) {
	b := NewBudgetManager()
	require.NoError(t, b.SetPoolCapacity("memory", 100))

	_, err := b.ReserveMinimum("heavy", Requirement{Pool: "memory", CostPerInstance: 200})
	var be *BudgetUnsatisfiableError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "heavy", be.Node)
	assert.Equal(t, "memory", be.Pool)
	assert.Equal(t, uint64(200), be.Cost)
	assert.Equal(t, uint64(100), be.Capacity)
}

// TestBudget_MinimumExceedsFree verifies a minimum that cannot fit the
// remaining capacity fails.
func TestBudget_MinimumExceedsFree(t *testing.T) {
	b := NewBudgetManager()
	require.NoError(t, b.SetPoolCapacity("memory", 100))

	_, err := b.ReserveMinimum("first", Requirement{Pool: "memory", CostPerInstance: 10, MinInstances: 8})
	require.NoError(t, err)

	_, err = b.ReserveMinimum("second", Requirement{Pool: "memory", CostPerInstance: 10, MinInstances: 3})
	var be *BudgetUnsatisfiableError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "second", be.Node)
}

// TestBudget_GetAvailableParallelism verifies min + free share.
func TestBudget_GetAvailableParallelism(t *testing.T) {
	b := NewBudgetManager()
	require.NoError(t, b.SetPoolCapacity("memory", 100))

	res, err := b.ReserveMinimum("node", Requirement{Pool: "memory", CostPerInstance: 10, MinInstances: 2})
	require.NoError(t, err)

	// 2 reserved (20), 80 free -> 8 extra instances.
	assert.Equal(t, 10, b.GetAvailableParallelism(res))
}

// TestBudget_GetAvailableParallelism_Shrinks verifies a second
// reservation reduces the opportunistic share, never the floor.
func TestBudget_GetAvailableParallelism_Shrinks(t *testing.T) {
	b := NewBudgetManager()
	require.NoError(t, b.SetPoolCapacity("memory", 100))

	first, err := b.ReserveMinimum("first", Requirement{Pool: "memory", CostPerInstance: 10, MinInstances: 2})
	require.NoError(t, err)
	_, err = b.ReserveMinimum("second", Requirement{Pool: "memory", CostPerInstance: 10, MinInstances: 6})
	require.NoError(t, err)

	// 80 reserved total, 20 free -> first gets 2 + 2.
	assert.Equal(t, 4, b.GetAvailableParallelism(first))
}

// TestBudget_UnknownPool_Uncapped verifies requirements on undeclared
// pools never throttle.
func TestBudget_UnknownPool_Uncapped(t *testing.T) {
	b := NewBudgetManager()

	res, err := b.ReserveMinimum("node", Requirement{Pool: "ghost", CostPerInstance: 1 << 40, MinInstances: 3})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, b.GetAvailableParallelism(res), 1<<30)
}

// TestBudget_Release verifies released capacity returns to the pool.
func TestBudget_Release(t *testing.T) {
	b := NewBudgetManager()
	require.NoError(t, b.SetPoolCapacity("memory", 100))

	res, err := b.ReserveMinimum("node", Requirement{Pool: "memory", CostPerInstance: 10, MinInstances: 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(50), b.Reserved("memory"))

	res.Release()
	assert.Equal(t, uint64(0), b.Reserved("memory"))

	// Double release is a no-op.
	res.Release()
	assert.Equal(t, uint64(0), b.Reserved("memory"))
}

// TestBudget_SetPoolCapacity_ShrinkBelowReserved verifies shrink
// rejection.
func TestBudget_SetPoolCapacity_ShrinkBelowReserved(t *testing.T) {
	b := NewBudgetManager()
	require.NoError(t, b.SetPoolCapacity("memory", 100))
	_, err := b.ReserveMinimum("node", Requirement{Pool: "memory", CostPerInstance: 10, MinInstances: 5})
	require.NoError(t, err)

	assert.Error(t, b.SetPoolCapacity("memory", 40))
	assert.NoError(t, b.SetPoolCapacity("memory", 60))
	assert.Equal(t, uint64(60), b.PoolCapacity("memory"))
}

// TestBudget_Stats verifies the snapshot, including peak tracking.
func TestBudget_Stats(t *testing.T) {
	b := NewBudgetManager()
	require.NoError(t, b.SetPoolCapacity("memory", 100))

	res, err := b.ReserveMinimum("node", Requirement{Pool: "memory", CostPerInstance: 10, MinInstances: 5})
	require.NoError(t, err)
	res.Release()

	stats, ok := b.Stats("memory")
	require.True(t, ok)
	assert.Equal(t, uint64(100), stats.Capacity)
	assert.Equal(t, uint64(0), stats.Reserved)
	assert.Equal(t, uint64(50), stats.PeakReserved)

	_, ok = b.Stats("ghost")
	assert.False(t, ok)
}

// TestBudget_FromConfig verifies pool tables load from config.
func TestBudget_FromConfig(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
pools:
  device_memory:
    capacity: 1024
  transfer_queues:
    capacity: 4
`))
	require.NoError(t, err)

	b, err := NewBudgetManagerFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), b.PoolCapacity("device_memory"))
	assert.Equal(t, uint64(4), b.PoolCapacity("transfer_queues"))
}

// TestBudget_FromConfig_MissingCapacity verifies zero capacity fails.
func TestBudget_FromConfig_MissingCapacity(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
pools:
  broken: {}
`))
	require.NoError(t, err)

	_, err = NewBudgetManagerFromConfig(cfg)
	assert.Error(t, err)
}
