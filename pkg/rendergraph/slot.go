package rendergraph

// Nullability states whether an input slot must be bound before Compile
// succeeds.
type Nullability uint8

const (
	// Required inputs need exactly one producer (or, for array-scoped
	// slots, at least one). Compile fails with MissingRequiredInput
	// otherwise.
	Required Nullability = iota

	// Optional inputs may be left unconnected; accessors return nil.
	Optional
)

// String returns the nullability name.
func (n Nullability) String() string {
	switch n {
	case Required:
		return "required"
	case Optional:
		return "optional"
	default:
		return "unknown"
	}
}

// Role states the lifecycle phase in which a slot's data is consumed.
// Access outside the declared phase is rejected at the access site.
type Role uint8

const (
	// RoleDependency inputs are read during CompileTask and may also be
	// read during Execute and Cleanup.
	RoleDependency Role = iota

	// RoleExecuteOnly inputs are readable only during ExecuteInstance.
	RoleExecuteOnly

	// RoleCleanupOnly inputs are readable only during CleanupTask and
	// CleanupNode.
	RoleCleanupOnly
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleDependency:
		return "dependency"
	case RoleExecuteOnly:
		return "execute_only"
	case RoleCleanupOnly:
		return "cleanup_only"
	default:
		return "unknown"
	}
}

// Mutability states how instances may touch a slot's resource during
// Execute. ReadOnly slots may be shared across concurrent instances;
// WriteOnly and ReadWrite slots must be disjoint per instance.
type Mutability uint8

const (
	ReadOnly Mutability = iota
	WriteOnly
	ReadWrite
)

// String returns the mutability name.
func (m Mutability) String() string {
	switch m {
	case ReadOnly:
		return "read_only"
	case WriteOnly:
		return "write_only"
	case ReadWrite:
		return "read_write"
	default:
		return "unknown"
	}
}

// Scope states the granularity at which a slot's data varies.
type Scope uint8

const (
	// NodeLevel slots hold one value shared by every task and instance.
	NodeLevel Scope = iota

	// TaskLevel slots are array-valued across tasks: K producers
	// connected to a TaskLevel slot specialize the node into K SlotTasks,
	// each seeing one element.
	TaskLevel

	// InstanceLevel slots drive parallel fan-out within a task: the
	// bound collection's size becomes the task's instance count.
	InstanceLevel
)

// String returns the scope name.
func (s Scope) String() string {
	switch s {
	case NodeLevel:
		return "node_level"
	case TaskLevel:
		return "task_level"
	case InstanceLevel:
		return "instance_level"
	default:
		return "unknown"
	}
}

// SlotSchema describes one typed input or output port on a NodeType.
// Schemas are immutable and shared by every instance of the type.
type SlotSchema struct {
	// Name identifies the slot within its node type.
	Name string

	// Tag is the payload type accepted (inputs) or produced (outputs).
	Tag TypeTag

	Nullability Nullability
	Role        Role
	Mutability  Mutability
	Scope       Scope
}

// accepts reports whether a resource may be bound to this slot.
func (s SlotSchema) accepts(r *Resource) bool {
	return r != nil && r.tag == s.Tag
}

// isArray reports whether the slot aggregates multiple producers.
func (s SlotSchema) isArray() bool {
	return s.Scope == TaskLevel || s.Scope == InstanceLevel
}
