package diag_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderkit/rendergraph/pkg/rendergraph/diag"
)

func TestMemoryStore_AppendList(t *testing.T) {
	store := diag.NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Append(diag.Record{
		RunID: "run-1", Frame: 1, Node: "shadow",
		Phase: "execute", Severity: diag.SeverityExecuteScoped,
		Message: "device lost",
	}))
	require.NoError(t, store.Append(diag.Record{
		RunID: "run-1", Frame: 1, Node: "lighting",
		Phase: "execute", Severity: diag.SeveritySkipped,
		Upstream: "shadow",
		Message:  "skipped: upstream producer failed this frame",
	}))
	require.NoError(t, store.Append(diag.Record{
		RunID: "run-2", Frame: 3, Node: "tonemap",
		Phase: "cleanup", Severity: diag.SeverityCleanupIgnored,
		Message: "buffer still mapped",
	}))

	recs, err := store.List("run-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "shadow", recs[0].Node)
	assert.Equal(t, "shadow", recs[1].Upstream)

	recs, err = store.List("unknown")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMemoryStore_TimestampFilled(t *testing.T) {
	store := diag.NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Append(diag.Record{RunID: "r", Node: "n"}))

	recs, err := store.List("r")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Timestamp.IsZero())

	// An explicit timestamp is preserved.
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(diag.Record{RunID: "r", Node: "n", Timestamp: at}))
	recs, _ = store.List("r")
	assert.Equal(t, at, recs[1].Timestamp)
}

func TestMemoryStore_ListFrame(t *testing.T) {
	store := diag.NewMemoryStore()
	defer store.Close()

	for frame := uint64(1); frame <= 3; frame++ {
		require.NoError(t, store.Append(diag.Record{RunID: "r", Frame: frame, Node: "n"}))
	}
	require.NoError(t, store.Append(diag.Record{RunID: "r", Frame: 2, Node: "m"}))

	recs, err := store.ListFrame("r", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "n", recs[0].Node)
	assert.Equal(t, "m", recs[1].Node)

	recs, err = store.ListFrame("r", 99)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMemoryStore_DeleteRun(t *testing.T) {
	store := diag.NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Append(diag.Record{RunID: "r1", Node: "a"}))
	require.NoError(t, store.Append(diag.Record{RunID: "r2", Node: "b"}))

	require.NoError(t, store.DeleteRun("r1"))

	recs, _ := store.List("r1")
	assert.Empty(t, recs)
	recs, _ = store.List("r2")
	assert.Len(t, recs, 1)
}

func TestMemoryStore_Closed(t *testing.T) {
	store := diag.NewMemoryStore()
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Append(diag.Record{RunID: "r"}), diag.ErrStoreClosed)
	_, err := store.List("r")
	assert.ErrorIs(t, err, diag.ErrStoreClosed)
	_, err = store.ListFrame("r", 1)
	assert.ErrorIs(t, err, diag.ErrStoreClosed)
	assert.ErrorIs(t, store.DeleteRun("r"), diag.ErrStoreClosed)

	// Close is idempotent.
	assert.NoError(t, store.Close())
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := diag.NewMemoryStore()
	defer store.Close()

	const goroutines = 20
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			runID := fmt.Sprintf("run-%d", id%4)
			for j := 0; j < 25; j++ {
				switch j % 3 {
				case 0:
					_ = store.Append(diag.Record{RunID: runID, Frame: uint64(j), Node: "n"})
				case 1:
					_, _ = store.List(runID)
				case 2:
					_, _ = store.ListFrame(runID, uint64(j))
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestSeverity_String(t *testing.T) {
	assert.Equal(t, "compile_fatal", diag.SeverityCompileFatal.String())
	assert.Equal(t, "execute_scoped", diag.SeverityExecuteScoped.String())
	assert.Equal(t, "skipped", diag.SeveritySkipped.String())
	assert.Equal(t, "cleanup_ignored", diag.SeverityCleanupIgnored.String())
	assert.Equal(t, "unknown", diag.Severity(99).String())
}
