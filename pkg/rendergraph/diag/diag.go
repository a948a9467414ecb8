// Package diag records frame diagnostics: node-scoped execution
// failures, upstream-attributed skips, and ignored cleanup errors.
//
// Execute-time failures are deliberately diagnostics rather than
// thrown faults - a failing node skips only its dependents for the
// frame, and the journal is how that is made attributable afterwards.
// Implementations must be safe for concurrent use.
package diag

import (
	"errors"
	"time"
)

// Severity classifies a diagnostic by how the engine treated the
// underlying error.
type Severity int

const (
	// SeverityCompileFatal marks a build/compile failure that aborted
	// the whole graph before any Execute.
	SeverityCompileFatal Severity = iota

	// SeverityExecuteScoped marks a node-scoped frame failure: logged,
	// dependents skipped for the frame, siblings unaffected.
	SeverityExecuteScoped

	// SeveritySkipped marks a node skipped because an upstream producer
	// failed in the same frame.
	SeveritySkipped

	// SeverityCleanupIgnored marks a teardown error treated as a no-op
	// because it cannot affect future frames.
	SeverityCleanupIgnored
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityCompileFatal:
		return "compile_fatal"
	case SeverityExecuteScoped:
		return "execute_scoped"
	case SeveritySkipped:
		return "skipped"
	case SeverityCleanupIgnored:
		return "cleanup_ignored"
	default:
		return "unknown"
	}
}

// Record is one diagnostic entry.
type Record struct {
	RunID    string
	Frame    uint64
	Node     string
	Phase    string
	Severity Severity

	// Upstream names the failing producer for SeveritySkipped records.
	Upstream string

	Message   string
	Timestamp time.Time
}

// Store persists diagnostic records.
type Store interface {
	// Append adds a record. A zero Timestamp is filled in by the store.
	Append(rec Record) error

	// List returns all records for a run in append order.
	// Returns an empty slice (not an error) for an unknown run.
	List(runID string) ([]Record, error)

	// ListFrame returns the records of one frame in append order.
	ListFrame(runID string, frame uint64) ([]Record, error)

	// DeleteRun removes all records for a run.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for diagnostic stores.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("diagnostics store closed")
)
