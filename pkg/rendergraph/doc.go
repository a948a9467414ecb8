/*
Package rendergraph provides a typed, budget-aware render graph engine.

# Overview

rendergraph is a Go library for assembling GPU-style frame pipelines as
directed graphs of nodes with typed resource slots. Nodes declare what
they consume and produce through slot schemas; the engine validates the
wiring, orders the work, sizes parallel fan-out against capacity
budgets, and drives every node through a fixed four-phase lifecycle:

	Setup    once per node, before any connection data exists
	Compile  once per task, creating and type-checking resources
	Execute  once per (task, instance) per frame
	Cleanup  dependents-first teardown

The design separates expensive structure (Compile) from cheap per-frame
work (Execute): a compiled graph executes frames repeatedly and only
recompiles nodes that were explicitly invalidated.

# Basic Usage

Declare node types, implement the lifecycle hooks, wire, and run:

	var geometryType = rendergraph.NewNodeType("Geometry").
	    Output(rendergraph.SlotSchema{Name: "gbuffer", Tag: "image.gbuffer", Nullability: rendergraph.Required}).
	    Build()

	var lightingType = rendergraph.NewNodeType("Lighting").
	    Input(rendergraph.SlotSchema{Name: "gbuffer", Tag: "image.gbuffer", Nullability: rendergraph.Required}).
	    Output(rendergraph.SlotSchema{Name: "lit", Tag: "image.color", Nullability: rendergraph.Required}).
	    Build()

	g := rendergraph.NewGraph(rendergraph.WithName("forward"))
	g.AddNode("geometry", geometryType, &GeometryNode{})
	g.AddNode("lighting", lightingType, &LightingNode{})
	if err := g.Connect("geometry", "gbuffer", "lighting", "gbuffer"); err != nil {
	    log.Fatal(err)
	}

	ctx := rendergraph.NewContext(context.Background())
	if err := g.Compile(ctx); err != nil {
	    log.Fatal(err)
	}
	for running {
	    report, err := g.Execute(ctx)
	    ...
	}
	g.Cleanup(ctx)

# Slots and Fan-Out

Every slot carries four orthogonal attributes: Nullability (Required or
Optional), Role (which phase may read it), Mutability, and Scope. Scope
drives structure: connecting K producers to a TaskLevel input
specializes the consumer into K SlotTasks, one per element, and an
InstanceLevel input's collection length becomes the task's parallel
instance count. Nodes implementing ParallelNode run those instances
concurrently under a budget quota; instances that do not fit the quota
are deferred to the next frame, never dropped.

# Budgets

A BudgetManager holds named capacity pools. At Compile, ReserveMinimum
pins each parallel node's guaranteed floor - an impossible minimum
fails compilation with BudgetUnsatisfiableError rather than throttling
at runtime. At every frame, GetAvailableParallelism adds an
opportunistic share of whatever is still free.

	budget := rendergraph.NewBudgetManager()
	budget.SetPoolCapacity("device_memory", 256<<20)
	g := rendergraph.NewGraph(rendergraph.WithBudget(budget))

Pool tables can also be loaded from YAML via NewBudgetManagerFromConfig.

# Error Handling

Compile errors are graph-fatal and joined so one pass reports every
problem; Execute errors are node-scoped - the failing node's transitive
dependents are skipped for the frame and everything else still runs;
Cleanup errors are logged no-ops. Inspect failures with errors.As:

	var missing *rendergraph.MissingRequiredInputError
	if errors.As(err, &missing) {
	    log.Printf("node %s needs input %s", missing.Node, missing.Slot)
	}

Panics in hooks are recovered and converted to PanicError with a stack
trace.

# Invalidation

Publishing an event.Invalidation on a bus configured via
WithInvalidationBus marks the producers of matching resources dirty;
they recompile at the next frame boundary. Mid-frame invalidations are
deferred so the running frame keeps a consistent view.

# Determinism

Identical build sequences produce identical behavior: topological
ordering breaks ties by node creation order, dependency lists are
creation-ordered, and parallel instance failures are attributed to the
lowest failing instance index.

# Subpackages

  - config: typed configuration loading (YAML, JSON)
  - diag: frame diagnostics journal (memory, SQLite)
  - event: resource invalidation bus
  - observability: logging, metrics, and tracing helpers
  - registry: generic registry backing the node type catalog
*/
package rendergraph
