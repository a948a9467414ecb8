package rendergraph

import (
	"fmt"
	"sort"

	"github.com/renderkit/rendergraph/pkg/rendergraph/registry"
)

// NodeFactory constructs a fresh node implementation. Each call must
// return an independent instance; instances are not shared between
// graph nodes.
type NodeFactory func() Node

// catalogEntry pairs a node type schema with its factory.
type catalogEntry struct {
	typ     *NodeType
	factory NodeFactory
}

// TypeCatalog maps node type names to their schemas and factories, so
// graphs can be assembled from data (config files, editors) rather
// than only from code.
type TypeCatalog struct {
	entries *registry.Registry[string, catalogEntry]
}

// NewTypeCatalog creates an empty catalog.
func NewTypeCatalog() *TypeCatalog {
	return &TypeCatalog{
		entries: registry.New[string, catalogEntry](),
	}
}

// Register adds a node type and its factory under the type's name.
// Re-registering a name replaces the previous entry.
// Panics if typ or factory is nil.
func (c *TypeCatalog) Register(typ *NodeType, factory NodeFactory) {
	if typ == nil {
		panic("rendergraph: catalog Register with nil node type")
	}
	if factory == nil {
		panic(fmt.Sprintf("rendergraph: catalog Register %q with nil factory", typ.Name()))
	}
	c.entries.Register(typ.Name(), catalogEntry{typ: typ, factory: factory})
}

// Lookup returns the schema registered under name.
func (c *TypeCatalog) Lookup(name string) (*NodeType, bool) {
	e, ok := c.entries.Get(name)
	if !ok {
		return nil, false
	}
	return e.typ, true
}

// Instantiate returns the schema and a fresh node implementation for
// the named type.
func (c *TypeCatalog) Instantiate(name string) (*NodeType, Node, error) {
	e, ok := c.entries.Get(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, name)
	}
	return e.typ, e.factory(), nil
}

// TypeNames returns the registered type names in sorted order.
func (c *TypeCatalog) TypeNames() []string {
	names := c.entries.Keys()
	sort.Strings(names)
	return names
}

// Len returns the number of registered types.
func (c *TypeCatalog) Len() int {
	return c.entries.Len()
}
