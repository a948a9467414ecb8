package rendergraph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/renderkit/rendergraph/pkg/rendergraph/config"
)

// Requirement states what one parallel instance of a task costs and the
// minimum concurrency a node needs guaranteed at Compile.
type Requirement struct {
	// Pool names the capacity pool the cost is charged against, e.g.
	// "device_memory" or "transfer_queues".
	Pool string

	// CostPerInstance is the capacity one concurrent instance consumes.
	CostPerInstance uint64

	// MinInstances is the concurrency guaranteed by ReserveMinimum.
	// Zero is treated as one.
	MinInstances int
}

func (r Requirement) minInstances() int {
	if r.MinInstances < 1 {
		return 1
	}
	return r.MinInstances
}

// Reservation is a compile-time minimum-concurrency guarantee held by
// one node against one pool. Release returns the guaranteed capacity.
type Reservation struct {
	mgr      *BudgetManager
	pool     string
	cost     uint64
	min      int
	released bool
}

// MinInstances returns the guaranteed concurrent instance count.
func (r *Reservation) MinInstances() int { return r.min }

// Release returns the reserved capacity to the pool. Safe to call more
// than once.
func (r *Reservation) Release() {
	if r == nil || r.released {
		return
	}
	r.released = true
	r.mgr.release(r)
}

type budgetPool struct {
	capacity     uint64
	reserved     uint64
	peakReserved uint64
	reservations int
}

// BudgetManager tracks named capacity pools and turns free capacity
// into a parallel-instance quota. It is an explicit object handed to a
// Graph (not package state), so independent graphs - parallel tests
// included - budget against independent pools.
//
// Allocation is two-tier: ReserveMinimum at Compile carves out a
// guaranteed floor, and GetAvailableParallelism at every frame start
// adds an opportunistic share of whatever is still free. The quota for
// a frame is a snapshot; capacity changes mid-Execute are picked up at
// the next frame.
type BudgetManager struct {
	mu    sync.Mutex
	pools map[string]*budgetPool
}

// NewBudgetManager creates a manager with no pools. Requirements naming
// an unknown pool are treated as uncapped.
func NewBudgetManager() *BudgetManager {
	return &BudgetManager{pools: make(map[string]*budgetPool)}
}

// NewBudgetManagerFromConfig builds a manager from a "pools" config
// section, where each entry maps a pool name to its capacity:
//
//	pools:
//	  device_memory:
//	    capacity: 268435456
//	  transfer_queues:
//	    capacity: 4
//
// Pools with a zero or missing capacity are rejected.
func NewBudgetManagerFromConfig(cfg config.Config) (*BudgetManager, error) {
	b := NewBudgetManager()
	pools := cfg.Map("pools")
	names := pools.Keys()
	sort.Strings(names)
	for _, name := range names {
		capacity := pools.Map(name).Uint64("capacity", 0)
		if capacity == 0 {
			return nil, fmt.Errorf("pool %q: capacity missing or zero", name)
		}
		if err := b.SetPoolCapacity(name, capacity); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// SetPoolCapacity declares or resizes a capacity pool. Shrinking below
// the currently reserved amount is rejected.
func (b *BudgetManager) SetPoolCapacity(name string, capacity uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pools[name]
	if !ok {
		b.pools[name] = &budgetPool{capacity: capacity}
		return nil
	}
	if capacity < p.reserved {
		return fmt.Errorf("pool %q: capacity %d below reserved %d", name, capacity, p.reserved)
	}
	p.capacity = capacity
	return nil
}

// PoolCapacity returns the declared capacity of a pool, or 0 if the
// pool is unknown.
func (b *BudgetManager) PoolCapacity(name string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pools[name]; ok {
		return p.capacity
	}
	return 0
}

// Reserved returns the capacity currently pinned by reservations.
func (b *BudgetManager) Reserved(name string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pools[name]; ok {
		return p.reserved
	}
	return 0
}

// ReserveMinimum pins capacity for the requirement's minimum instance
// count. Called once per parallel node at Compile. A cost that can never fit the
// pool, or a minimum that exceeds live free capacity, fails with
// BudgetUnsatisfiableError - compile-time, never a runtime throttle.
func (b *BudgetManager) ReserveMinimum(node string, req Requirement) (*Reservation, error) {
	min := req.minInstances()
	b.mu.Lock()
	defer b.mu.Unlock()

	p, capped := b.pools[req.Pool]
	if capped {
		if req.CostPerInstance > p.capacity {
			return nil, &BudgetUnsatisfiableError{
				Node: node, Pool: req.Pool,
				Cost: req.CostPerInstance, Capacity: p.capacity,
				Reason: "per-instance cost exceeds total pool capacity",
			}
		}
		need := req.CostPerInstance * uint64(min)
		if need > p.capacity-p.reserved {
			return nil, &BudgetUnsatisfiableError{
				Node: node, Pool: req.Pool,
				Cost: req.CostPerInstance, Capacity: p.capacity,
				Reason: fmt.Sprintf("minimum of %d instances exceeds free capacity %d",
					min, p.capacity-p.reserved),
			}
		}
		p.reserved += need
		if p.reserved > p.peakReserved {
			p.peakReserved = p.reserved
		}
		p.reservations++
	}

	return &Reservation{mgr: b, pool: req.Pool, cost: req.CostPerInstance, min: min}, nil
}

// GetAvailableParallelism returns how many instances may run
// concurrently under a reservation this frame: never less than the
// reserved minimum, plus an equal share of the pool's free capacity
// when other reservations leave room. Uncapped pools return the
// remaining instance count unclamped via MaxInt-ish semantics; callers
// treat values >= pending instances as "run everything".
func (b *BudgetManager) GetAvailableParallelism(r *Reservation) int {
	if r == nil {
		return 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	p, capped := b.pools[r.pool]
	if !capped || r.cost == 0 {
		return int(^uint(0) >> 1) // uncapped
	}
	free := p.capacity - p.reserved
	extra := int(free / r.cost)
	return r.min + extra
}

func (b *BudgetManager) release(r *Reservation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pools[r.pool]
	if !ok {
		return
	}
	freed := r.cost * uint64(r.min)
	if p.reserved >= freed {
		p.reserved -= freed
	} else {
		p.reserved = 0
	}
	if p.reservations > 0 {
		p.reservations--
	}
}

// PoolStats is a point-in-time snapshot of one pool.
type PoolStats struct {
	Capacity     uint64
	Reserved     uint64
	PeakReserved uint64
	Reservations int
}

// Stats returns a snapshot of a pool, or false if unknown.
func (b *BudgetManager) Stats(name string) (PoolStats, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pools[name]
	if !ok {
		return PoolStats{}, false
	}
	return PoolStats{
		Capacity:     p.capacity,
		Reserved:     p.reserved,
		PeakReserved: p.peakReserved,
		Reservations: p.reservations,
	}, true
}
