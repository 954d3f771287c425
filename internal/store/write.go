package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/lumo/internal/ir"
)

// WriteJournal appends one journal entry and its propagation deliveries in
// a single transaction.
//
// Uses ON CONFLICT(seq) DO NOTHING for idempotency: rewriting an existing
// seq is silently ignored, deliveries included.
func (s *Store) WriteJournal(ctx context.Context, e ir.JournalEntry, deliveries []ir.DeliveryRecord) error {
	if e.Seq <= 0 {
		return fmt.Errorf("write journal: seq must be positive, got %d", e.Seq)
	}
	argsJSON, err := marshalArgs(e.Args)
	if err != nil {
		return fmt.Errorf("write journal: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write journal: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO journal
		(seq, kind, token, node, slot, other_node, other_slot, link, event, args, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		e.Seq,
		string(e.Kind),
		e.Token,
		e.Slot.Node,
		e.Slot.Slot,
		e.Other.Node,
		e.Other.Slot,
		e.Link,
		e.Event,
		argsJSON,
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write journal: rows affected: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	for i, d := range deliveries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO deliveries
			(journal_seq, ord, depth, emitter, receiver, node, pushed)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			e.Seq,
			i,
			d.Depth,
			d.Emitter,
			d.Receiver,
			d.Node,
			d.Pushed,
		)
		if err != nil {
			return fmt.Errorf("write journal: delivery %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write journal: commit: %w", err)
	}
	return nil
}

// WriteSnapshot stores a scene document taken at journal position seq.
// nextID is the id allocator's position, so a restored session never
// hands out an id the snapshot already uses.
func (s *Store) WriteSnapshot(ctx context.Context, name string, seq, nextID int64, doc ir.Document) (ir.SnapshotRecord, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return ir.SnapshotRecord{}, fmt.Errorf("write snapshot: generate id: %w", err)
	}
	hash, err := ir.TopologyHash(doc)
	if err != nil {
		return ir.SnapshotRecord{}, fmt.Errorf("write snapshot: %w", err)
	}
	docJSON, err := marshalDocument(doc)
	if err != nil {
		return ir.SnapshotRecord{}, fmt.Errorf("write snapshot: %w", err)
	}

	rec := ir.SnapshotRecord{
		ID:           id.String(),
		Name:         name,
		Seq:          seq,
		TopologyHash: hash,
		NextID:       nextID,
		Document:     doc,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, name, seq, topology_hash, next_id, document)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Name,
		rec.Seq,
		rec.TopologyHash,
		rec.NextID,
		docJSON,
	)
	if err != nil {
		return ir.SnapshotRecord{}, fmt.Errorf("write snapshot: %w", err)
	}
	return rec, nil
}
