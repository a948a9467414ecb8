// Package event distributes resource invalidations. External systems
// (asset hot-reload, swapchain resize, scene edits) publish an
// Invalidation naming a category or a specific resource; the engine
// subscribes and marks the affected producers for recompilation before
// the next frame.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Invalidation announces that previously produced data is stale.
// At least one of Category or ResourceID should be set; an empty
// invalidation matches nothing.
type Invalidation struct {
	// Category matches resources tagged with the same category string
	// (e.g. "swapchain", "shader", "scene").
	Category string

	// ResourceID matches exactly one resource. Zero means unset.
	ResourceID uuid.UUID

	// Reason is free-form context for logs ("window resized").
	Reason string

	Timestamp time.Time
}

// MatchesResource reports whether the invalidation targets a specific
// resource rather than a category.
func (inv Invalidation) MatchesResource() bool {
	return inv.ResourceID != uuid.Nil
}

// Handler receives published invalidations.
type Handler func(inv Invalidation)
