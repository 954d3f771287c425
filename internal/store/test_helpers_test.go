package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/roach88/lumo/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addr(node, slot int64) ir.SlotAddr { return ir.SlotAddr{Node: node, Slot: slot} }

// createTestEntry creates a journal entry with minimal required fields.
func createTestEntry(seq int64, kind ir.JournalKind, slot, other ir.SlotAddr) ir.JournalEntry {
	return ir.JournalEntry{
		Seq:   seq,
		Kind:  kind,
		Slot:  slot,
		Other: other,
		Args:  ir.IRObject{},
	}
}

func mustWrite(t *testing.T, s *Store, entries ...ir.JournalEntry) {
	t.Helper()
	for _, e := range entries {
		if err := s.WriteJournal(context.Background(), e, nil); err != nil {
			t.Fatalf("WriteJournal(%d) failed: %v", e.Seq, err)
		}
	}
}

// testDocument is two nodes joined by one link.
func testDocument() ir.Document {
	return ir.Document{
		Nodes: []ir.NodeRecord{
			{ID: 1, Name: "Loader", Type: "Loader", Slots: []ir.SlotRecord{
				{ID: 2, Name: "out", Type: ir.PayloadTexture2D, Place: ir.PlaceOutput},
			}},
			{ID: 3, Name: "Viewer <main>", Type: "Viewer", Pos: ir.Point{X: 40, Y: -8}, Slots: []ir.SlotRecord{
				{ID: 4, Name: "in", Type: ir.PayloadTexture2D, Place: ir.PlaceInput, Binding: 1},
			}},
		},
		Links:   []ir.LinkRecord{{ID: 5, From: addr(1, 2), To: addr(3, 4)}},
		Outputs: []ir.OutputRecord{{Button: ir.OutputMiddle, Slot: addr(1, 2)}},
	}
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("query indexes: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan index: %v", err)
		}
		names = append(names, name)
	}
	return names
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
