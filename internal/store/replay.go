package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/queryir"
)

// LinkReplay is the link set rebuilt from the store at a journal position.
type LinkReplay struct {
	Snapshot string          `json:"snapshot,omitempty"` // snapshot the replay started from
	FromSeq  int64           `json:"from_seq"`           // snapshot seq, 0 without one
	ToSeq    int64           `json:"to_seq"`             // last entry folded
	Applied  int             `json:"applied"`            // entries folded
	Skipped  int             `json:"skipped"`            // failed entries ignored
	Links    []ir.LinkRecord `json:"links"`
}

// ReplayLinks rebuilds the graph's links as of journal position upTo
// (upTo <= 0 replays the whole journal).
//
// The replay starts from the newest snapshot at or before upTo, then folds
// every successful link-changing entry after it in seq order:
//   - connect appends Slot→Other
//   - reconnect drops Other's links unless args.removed is 0, then
//     appends Slot→Other
//   - disconnect drops Slot→Other
//   - break_all drops every link touching Slot
//   - disconnect_all and remove_node drop every link touching the node
//     (remove_node also the ids listed in args.nodes)
//   - load replaces the set with the snapshot named in args.snapshot
//
// Failed entries are counted and skipped. The result is deterministic for
// a given journal.
func (s *Store) ReplayLinks(ctx context.Context, upTo int64) (LinkReplay, error) {
	out := LinkReplay{Links: []ir.LinkRecord{}}

	snap, err := s.snapshotAtOrBefore(ctx, upTo)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return LinkReplay{}, fmt.Errorf("replay links: %w", err)
	default:
		out.Snapshot = snap.ID
		out.FromSeq = snap.Seq
		out.ToSeq = snap.Seq
		out.Links = slices.Clone(snap.Document.Links)
	}

	kinds := ir.IRArray{}
	for _, k := range ir.JournalKinds {
		if k.ChangesLinks() {
			kinds = append(kinds, ir.IRString(k))
		}
	}
	preds := []queryir.Predicate{
		queryir.In{Field: "kind", Values: kinds},
		queryir.Range{Field: "seq", Min: ir.IRInt(out.FromSeq + 1)},
	}
	if upTo > 0 {
		preds[1] = queryir.Range{Field: "seq", Min: ir.IRInt(out.FromSeq + 1), Max: ir.IRInt(upTo)}
	}
	entries, err := s.ReadJournal(ctx, queryir.And{Predicates: preds})
	if err != nil {
		return LinkReplay{}, fmt.Errorf("replay links: %w", err)
	}

	for _, e := range entries {
		out.ToSeq = e.Seq
		if e.Failed() {
			out.Skipped++
			continue
		}
		links, err := s.applyEntry(ctx, out.Links, e)
		if err != nil {
			return LinkReplay{}, fmt.Errorf("replay links: seq %d: %w", e.Seq, err)
		}
		out.Links = links
		out.Applied++
	}
	if out.Links == nil {
		out.Links = []ir.LinkRecord{}
	}
	return out, nil
}

func (s *Store) applyEntry(ctx context.Context, links []ir.LinkRecord, e ir.JournalEntry) ([]ir.LinkRecord, error) {
	touches := func(a ir.SlotAddr) func(ir.LinkRecord) bool {
		return func(l ir.LinkRecord) bool { return l.From == a || l.To == a }
	}

	switch e.Kind {
	case ir.JournalConnect:
		return append(links, ir.LinkRecord{ID: e.Link, From: e.Slot, To: e.Other}), nil
	case ir.JournalReconnect:
		if n, ok := e.Args["removed"].(ir.IRInt); !ok || n > 0 {
			links = slices.DeleteFunc(links, func(l ir.LinkRecord) bool { return l.To == e.Other })
		}
		return append(links, ir.LinkRecord{ID: e.Link, From: e.Slot, To: e.Other}), nil
	case ir.JournalDisconnect:
		return slices.DeleteFunc(links, func(l ir.LinkRecord) bool { return l.From == e.Slot && l.To == e.Other }), nil
	case ir.JournalBreakAll:
		return slices.DeleteFunc(links, touches(e.Slot)), nil
	case ir.JournalDisconnectAll, ir.JournalRemoveNode:
		nodes := map[int64]bool{e.Slot.Node: true}
		if arr, ok := e.Args["nodes"].(ir.IRArray); ok {
			for _, v := range arr {
				if id, ok := v.(ir.IRInt); ok {
					nodes[int64(id)] = true
				}
			}
		}
		return slices.DeleteFunc(links, func(l ir.LinkRecord) bool {
			return nodes[l.From.Node] || nodes[l.To.Node]
		}), nil
	case ir.JournalLoad:
		id, ok := e.Args["snapshot"].(ir.IRString)
		if !ok {
			return nil, fmt.Errorf("load entry without a snapshot id")
		}
		snap, err := s.ReadSnapshot(ctx, string(id))
		if err != nil {
			return nil, err
		}
		return slices.Clone(snap.Document.Links), nil
	default:
		return links, nil
	}
}
