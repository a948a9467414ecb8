package rendergraph

import (
	"time"

	"github.com/google/uuid"
)

// TypeTag identifies the payload type a Resource carries.
// Tags are compared during slot binding; the graph never inspects the
// payload itself.
type TypeTag string

// Payload is implemented by any value that can travel through the graph.
// A wrapper around an external handle declares its underlying payload
// type exactly once by returning the tag it wraps - no registration
// table, no marker base type.
//
// Example:
//
//	type DepthImage struct{ Handle uintptr }
//
//	func (DepthImage) PayloadTag() rendergraph.TypeTag { return "image.depth" }
type Payload interface {
	PayloadTag() TypeTag
}

// Collection is an optional extension of Payload for array-valued data.
// An InstanceLevel input slot bound to a Collection spawns one instance
// per element.
type Collection interface {
	Payload
	Len() int
}

// Resource is a typed, tagged handle to state owned by its producing
// node. Consumers hold non-owning references established by Connect;
// the underlying payload is released only when the dependency tracker
// confirms no live consumer remains.
type Resource struct {
	id         uuid.UUID
	payload    Payload
	tag        TypeTag
	categories []string
	origin     string
	createdAt  time.Time
}

// ResourceOption configures a Resource at creation.
type ResourceOption func(*Resource)

// WithCategories tags the resource with invalidation categories.
// An Invalidation event naming any of these categories dirties the
// producing node.
func WithCategories(categories ...string) ResourceOption {
	return func(r *Resource) {
		r.categories = append(r.categories, categories...)
	}
}

// WithOrigin records the name of the producing node.
// Normally set by the graph when an output is written during CompileTask.
func WithOrigin(node string) ResourceOption {
	return func(r *Resource) {
		r.origin = node
	}
}

// NewResource wraps a payload in a Resource handle.
// The payload's declared tag becomes the resource's tag.
func NewResource(p Payload, opts ...ResourceOption) *Resource {
	r := &Resource{
		id:        uuid.New(),
		payload:   p,
		tag:       p.PayloadTag(),
		createdAt: time.Now(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID returns the stable identity of this resource.
// Identity survives recompilation only if the node reuses the same
// Resource; a regenerated resource gets a fresh ID and the dependency
// tracker's last-registration-wins rule takes over.
func (r *Resource) ID() uuid.UUID { return r.id }

// Tag returns the payload type tag.
func (r *Resource) Tag() TypeTag { return r.tag }

// Origin returns the name of the producing node, or "" for externally
// supplied handles.
func (r *Resource) Origin() string { return r.origin }

// Categories returns the invalidation categories this resource carries.
func (r *Resource) Categories() []string { return r.categories }

// HasCategory reports whether the resource carries the given category.
func (r *Resource) HasCategory(category string) bool {
	for _, c := range r.categories {
		if c == category {
			return true
		}
	}
	return false
}

// CreatedAt returns the creation timestamp.
func (r *Resource) CreatedAt() time.Time { return r.createdAt }

// Payload returns the untyped payload. Prefer As for checked access.
func (r *Resource) Payload() Payload { return r.payload }

// Len returns the element count if the payload is a Collection, else 1.
// A nil resource has length 0.
func (r *Resource) Len() int {
	if r == nil || r.payload == nil {
		return 0
	}
	if c, ok := r.payload.(Collection); ok {
		return c.Len()
	}
	return 1
}

// As extracts the payload as a concrete type. Where the caller's type
// is known statically this is the compile-checked access path; a
// runtime mismatch surfaces as InvalidResourceTypeError.
func As[T Payload](r *Resource) (T, error) {
	var zero T
	if r == nil || r.payload == nil {
		return zero, &InvalidResourceTypeError{Want: tagOf[T]()}
	}
	v, ok := r.payload.(T)
	if !ok {
		return zero, &InvalidResourceTypeError{Want: tagOf[T](), Got: r.tag}
	}
	return v, nil
}

// tagOf returns the tag declared by T's zero value, or "" when the
// zero value cannot answer - a pointer payload type with a
// value-receiver PayloadTag would dereference a nil receiver.
func tagOf[T Payload]() (tag TypeTag) {
	defer func() { _ = recover() }()
	var zero T
	return zero.PayloadTag()
}
