package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/library"
	"github.com/roach88/lumo/internal/store"
)

// Node and slot ids handed out by a fresh graph for addPair.
var (
	loaderOut = ir.SlotAddr{Node: 1, Slot: 2}
	viewerIn  = ir.SlotAddr{Node: 3, Slot: 4}
)

func testLibrary(t *testing.T) *library.Library {
	t.Helper()
	lib, err := library.New(&ir.Catalog{
		Types: []ir.NodeType{
			{Name: "Loader", Outputs: []ir.SlotDecl{{Name: "out", Type: ir.PayloadTexture2D}}},
			{Name: "Viewer", Inputs: []ir.SlotDecl{{Name: "in", Type: ir.PayloadTexture2D, Binding: 1}}},
			{Name: "Pinned", DynamicSlots: true, DeletionDisabled: true},
		},
	})
	require.NoError(t, err)
	return lib
}

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// journalRecorder collects journal entries from WithJournalObserver.
type journalRecorder struct {
	mu      sync.Mutex
	entries []ir.JournalEntry
}

func (r *journalRecorder) observe(e ir.JournalEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *journalRecorder) all() []ir.JournalEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.JournalEntry(nil), r.entries...)
}

// startEngine runs an engine over g until the test ends.
func startEngine(t *testing.T, g *graph.Graph, opts ...Option) *Engine {
	t.Helper()
	e := New(g, testLibrary(t), opts...)
	runEngine(t, e)
	return e
}

func runEngine(t *testing.T, e *Engine) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	t.Cleanup(func() {
		e.Stop()
		require.NoError(t, <-done)
	})
}

func submit(t *testing.T, e *Engine, cmd Command) *Result {
	t.Helper()
	res, err := e.Submit(context.Background(), cmd)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

// addPair adds a Loader and a Viewer, producing loaderOut and viewerIn.
func addPair(t *testing.T, e *Engine) {
	t.Helper()
	require.Equal(t, int64(1), submit(t, e, AddNode{Type: "Loader"}).Node)
	require.Equal(t, int64(3), submit(t, e, AddNode{Type: "Viewer", Pos: ir.Point{X: 200}}).Node)
}

func texture(name string) ir.IRValue {
	return ir.IRObject{"name": ir.IRString(name)}
}

const (
	testTimeout = 2 * time.Second
	testTick    = 5 * time.Millisecond
)

func pairDocument() ir.Document {
	return ir.Document{
		Nodes: []ir.NodeRecord{
			{ID: 1, Name: "Loader", Type: "Loader", Slots: []ir.SlotRecord{
				{ID: 2, Index: 0, Name: "out", Type: ir.PayloadTexture2D, Place: ir.PlaceOutput},
			}},
			{ID: 3, Name: "Viewer", Type: "Viewer", Pos: ir.Point{X: 200}, Slots: []ir.SlotRecord{
				{ID: 4, Index: 0, Name: "in", Type: ir.PayloadTexture2D, Place: ir.PlaceInput, Binding: 1},
			}},
		},
		Links: []ir.LinkRecord{{ID: 5, From: loaderOut, To: viewerIn}},
	}
}
