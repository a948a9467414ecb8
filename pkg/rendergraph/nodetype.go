package rendergraph

import "fmt"

// NodeType is the immutable, shared descriptor of a node class: its
// name and the input/output slot schemas every instance carries.
// Create one per node class with NewNodeType and share it read-only.
type NodeType struct {
	name    string
	inputs  []SlotSchema
	outputs []SlotSchema
}

// NodeTypeBuilder assembles a NodeType. Builder misuse (duplicate or
// empty slot names, empty type name) panics: these are programming
// errors in node class definitions, not runtime conditions.
type NodeTypeBuilder struct {
	nt NodeType
}

// NewNodeType starts a builder for a node type descriptor.
//
//	depthTarget := rendergraph.NewNodeType("DepthTarget").
//	    Input(rendergraph.SlotSchema{Name: "device", Tag: "gpu.device", Nullability: rendergraph.Required}).
//	    Output(rendergraph.SlotSchema{Name: "image", Tag: "image.depth"}).
//	    Build()
func NewNodeType(name string) *NodeTypeBuilder {
	if name == "" {
		panic("rendergraph: node type name cannot be empty")
	}
	return &NodeTypeBuilder{nt: NodeType{name: name}}
}

// Input appends an input slot schema. Returns the builder for chaining.
func (b *NodeTypeBuilder) Input(s SlotSchema) *NodeTypeBuilder {
	b.validateSlot(s, b.nt.inputs, "input")
	b.nt.inputs = append(b.nt.inputs, s)
	return b
}

// Output appends an output slot schema. Returns the builder for chaining.
func (b *NodeTypeBuilder) Output(s SlotSchema) *NodeTypeBuilder {
	b.validateSlot(s, b.nt.outputs, "output")
	b.nt.outputs = append(b.nt.outputs, s)
	return b
}

func (b *NodeTypeBuilder) validateSlot(s SlotSchema, existing []SlotSchema, kind string) {
	if s.Name == "" {
		panic(fmt.Sprintf("rendergraph: %s: %s slot name cannot be empty", b.nt.name, kind))
	}
	if s.Tag == "" {
		panic(fmt.Sprintf("rendergraph: %s: %s slot %q needs a type tag", b.nt.name, kind, s.Name))
	}
	for _, prev := range existing {
		if prev.Name == s.Name {
			panic(fmt.Sprintf("rendergraph: %s: duplicate %s slot %q", b.nt.name, kind, s.Name))
		}
	}
}

// Build finalizes the descriptor.
func (b *NodeTypeBuilder) Build() *NodeType {
	nt := b.nt
	return &nt
}

// Name returns the node type name.
func (t *NodeType) Name() string { return t.name }

// Inputs returns the input slot schemas in declaration order.
func (t *NodeType) Inputs() []SlotSchema { return t.inputs }

// Outputs returns the output slot schemas in declaration order.
func (t *NodeType) Outputs() []SlotSchema { return t.outputs }

// InputIndex returns the index of the named input slot, or -1.
func (t *NodeType) InputIndex(name string) int {
	for i, s := range t.inputs {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// OutputIndex returns the index of the named output slot, or -1.
func (t *NodeType) OutputIndex(name string) int {
	for i, s := range t.outputs {
		if s.Name == name {
			return i
		}
	}
	return -1
}
