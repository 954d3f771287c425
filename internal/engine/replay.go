package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/queryir"
	"github.com/roach88/lumo/internal/scene"
	"github.com/roach88/lumo/internal/store"
)

// RestoreStats describes what Restore rebuilt.
type RestoreStats struct {
	Snapshot string `json:"snapshot,omitempty"` // snapshot id, empty if the journal was replayed from nothing
	FromSeq  int64  `json:"from_seq"`           // first replayed seq
	ToSeq    int64  `json:"to_seq"`             // last journaled seq
	Replayed int    `json:"replayed"`
	Skipped  int    `json:"skipped"` // rejected entries, not replayed
	Failed   int    `json:"failed"`  // entries that failed again on replay
}

// Restore rebuilds an editing session from a store: the latest snapshot is
// loaded into g, which must be empty, and every successful journal entry
// after it is applied again in seq order. The returned engine journals to
// st and its clock resumes after the last entry.
//
// Replay reproduces node and slot ids. Link ids are fresh. Payload values
// are only those set by replayed set_payload entries; snapshots do not
// carry payloads.
//
// Replayed commands are not journaled a second time, and an entry that
// fails on replay is logged and counted rather than aborting the restore.
func Restore(ctx context.Context, st *store.Store, g *graph.Graph, factory scene.Factory, opts ...Option) (*Engine, RestoreStats, error) {
	var stats RestoreStats
	if st == nil {
		return nil, stats, &EngineError{Code: ErrCodeNoStore, Message: "restore needs a store"}
	}
	if g == nil || g.NodeCount() != 0 {
		return nil, stats, invalid("restore needs an empty graph")
	}

	e := New(g, factory, opts...)

	snap, err := st.LatestSnapshot(ctx)
	switch {
	case err == nil:
		if snap.NextID > 0 {
			g.IDs().Ratchet(snap.NextID - 1)
		}
		if _, err := scene.Load(g, snap.Document, factory, scene.WithLogger(e.logger), scene.WithoutBroadcast()); err != nil {
			return nil, stats, fmt.Errorf("restore snapshot %s: %w", snap.ID, err)
		}
		stats.Snapshot = snap.ID
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, stats, fmt.Errorf("restore: %w", err)
	}
	stats.FromSeq = snap.Seq + 1

	entries, err := st.ReadJournal(ctx, queryir.Range{Field: "seq", Min: ir.IRInt(stats.FromSeq)})
	if err != nil {
		return nil, stats, fmt.Errorf("restore: %w", err)
	}
	for _, entry := range entries {
		stats.ToSeq = entry.Seq
		if entry.Failed() {
			stats.Skipped++
			continue
		}
		if err := e.replay(ctx, entry); err != nil {
			stats.Failed++
			e.logger.Warn("replay failed", "seq", entry.Seq, "kind", entry.Kind, "error", err)
			continue
		}
		stats.Replayed++
	}

	last, err := st.LastSeq(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("restore: %w", err)
	}
	if stats.ToSeq < last {
		stats.ToSeq = last
	}
	e.clock = NewClockAt(last)
	e.store = st

	e.logger.Info("session restored",
		"snapshot", stats.Snapshot, "from_seq", stats.FromSeq, "to_seq", stats.ToSeq,
		"replayed", stats.Replayed, "skipped", stats.Skipped, "failed", stats.Failed)
	return e, stats, nil
}

// replay applies one journal entry without stamping or journaling it.
// Called before Run starts, so it owns the graph.
func (e *Engine) replay(ctx context.Context, entry ir.JournalEntry) error {
	cmd, err := CommandFromEntry(entry)
	if err != nil {
		return err
	}
	scratch := ir.JournalEntry{Seq: entry.Seq, Kind: entry.Kind, Args: ir.IRObject{}}
	_, err = cmd.apply(ctx, e, &scratch)
	return err
}

// CommandFromEntry rebuilds the command a journal entry recorded. Load
// entries cannot be rebuilt: their effect lives in the snapshot they name.
func CommandFromEntry(entry ir.JournalEntry) (Command, error) {
	switch entry.Kind {
	case ir.JournalAddNode:
		c := AddNode{
			Type:   argString(entry.Args, "type"),
			Name:   argString(entry.Args, "name"),
			Parent: argInt(entry.Args, "parent"),
			Pos:    ir.Point{X: argInt(entry.Args, "x"), Y: argInt(entry.Args, "y")},
			ID:     entry.Slot.Node,
		}
		if arr, ok := entry.Args["slots"].(ir.IRArray); ok {
			for _, v := range arr {
				id, _ := v.(ir.IRInt)
				c.SlotIDs = append(c.SlotIDs, int64(id))
			}
		}
		return c, nil
	case ir.JournalRemoveNode:
		return RemoveNode{Node: entry.Slot.Node}, nil
	case ir.JournalConnect:
		return Connect{From: entry.Slot, To: entry.Other}, nil
	case ir.JournalReconnect:
		return Reconnect{From: entry.Slot, To: entry.Other}, nil
	case ir.JournalDisconnect:
		return Disconnect{From: entry.Slot, To: entry.Other}, nil
	case ir.JournalBreakAll:
		return BreakAll{Slot: entry.Slot}, nil
	case ir.JournalDisconnectAll:
		return DisconnectAll{Node: entry.Slot.Node}, nil
	case ir.JournalSetPayload:
		emit, _ := entry.Args["emit"].(ir.IRBool)
		return SetPayload{Slot: entry.Slot, Value: entry.Args["value"], Emit: bool(emit)}, nil
	case ir.JournalNotify:
		kind, err := ir.ParseEventKind(entry.Event)
		if err != nil {
			return nil, invalid("entry %d: %v", entry.Seq, err)
		}
		if pt, ok := entry.Args["type"].(ir.IRString); ok {
			return NotifyType{Node: entry.Slot.Node, Type: ir.PayloadType(pt), Event: kind}, nil
		}
		return Notify{Slot: entry.Slot, Event: kind}, nil
	case ir.JournalBackNotify:
		kind, err := ir.ParseEventKind(entry.Event)
		if err != nil {
			return nil, invalid("entry %d: %v", entry.Seq, err)
		}
		return BackNotify{Slot: entry.Slot, Event: kind}, nil
	case ir.JournalBroadcast:
		kind, err := ir.ParseEventKind(entry.Event)
		if err != nil {
			return nil, invalid("entry %d: %v", entry.Seq, err)
		}
		return Broadcast{Event: kind}, nil
	case ir.JournalSelectOutput:
		button, err := ir.ParseOutputButton(argString(entry.Args, "button"))
		if err != nil {
			return nil, invalid("entry %d: %v", entry.Seq, err)
		}
		return SelectOutput{Button: button, Slot: entry.Slot}, nil
	case ir.JournalLoad:
		return nil, invalid("entry %d: load entries are restored from their snapshot", entry.Seq)
	default:
		return nil, invalid("entry %d: unknown kind %q", entry.Seq, entry.Kind)
	}
}

func argString(args ir.IRObject, key string) string {
	s, _ := args[key].(ir.IRString)
	return string(s)
}

func argInt(args ir.IRObject, key string) int64 {
	n, _ := args[key].(ir.IRInt)
	return int64(n)
}
