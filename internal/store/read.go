package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/queryir"
)

// ReadJournal returns the journal entries matching filter, ordered by seq.
// A nil filter reads the whole journal.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadJournal(ctx context.Context, filter queryir.Predicate) ([]ir.JournalEntry, error) {
	query, params, err := s.compiler.Compile(queryir.Select{From: "journal", Filter: filter})
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []ir.JournalEntry{}
	for rows.Next() {
		e, err := scanJournalEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// ReadJournalEntry retrieves one entry by seq.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadJournalEntry(ctx context.Context, seq int64) (ir.JournalEntry, error) {
	entries, err := s.ReadJournal(ctx, queryir.Equals{Field: "seq", Value: ir.IRInt(seq)})
	if err != nil {
		return ir.JournalEntry{}, err
	}
	if len(entries) == 0 {
		return ir.JournalEntry{}, fmt.Errorf("journal entry %d: %w", seq, sql.ErrNoRows)
	}
	return entries[0], nil
}

// ReadDeliveries returns delivery rows matching filter, ordered by
// journal_seq then delivery order.
func (s *Store) ReadDeliveries(ctx context.Context, filter queryir.Predicate) ([]ir.DeliveryRecord, error) {
	query, params, err := s.compiler.Compile(queryir.Select{From: "deliveries", Filter: filter})
	if err != nil {
		return nil, fmt.Errorf("read deliveries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	out := []ir.DeliveryRecord{}
	for rows.Next() {
		var d ir.DeliveryRecord
		if err := rows.Scan(&d.JournalSeq, &d.Ord, &d.Depth, &d.Emitter, &d.Receiver, &d.Node, &d.Pushed); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return out, nil
}

// ReadSnapshot retrieves a snapshot by id.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadSnapshot(ctx context.Context, id string) (ir.SnapshotRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, seq, topology_hash, next_id, document
		FROM snapshots
		WHERE id = ?
	`, id)
	return scanSnapshot(row)
}

// LatestSnapshot returns the snapshot with the highest seq, ties broken by
// the newest id. Returns an error wrapping sql.ErrNoRows if none exist.
func (s *Store) LatestSnapshot(ctx context.Context) (ir.SnapshotRecord, error) {
	return s.snapshotAtOrBefore(ctx, 0)
}

// snapshotAtOrBefore finds the newest snapshot with seq <= upTo; upTo <= 0
// means no bound.
func (s *Store) snapshotAtOrBefore(ctx context.Context, upTo int64) (ir.SnapshotRecord, error) {
	var row *sql.Row
	if upTo <= 0 {
		row = s.db.QueryRowContext(ctx, `
			SELECT id, name, seq, topology_hash, next_id, document
			FROM snapshots
			ORDER BY seq DESC, id COLLATE BINARY DESC
			LIMIT 1
		`)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT id, name, seq, topology_hash, next_id, document
			FROM snapshots
			WHERE seq <= ?
			ORDER BY seq DESC, id COLLATE BINARY DESC
			LIMIT 1
		`, upTo)
	}
	return scanSnapshot(row)
}

// ListSnapshots returns every snapshot without its document, oldest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]ir.SnapshotRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, seq, topology_hash, next_id
		FROM snapshots
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := []ir.SnapshotRecord{}
	for rows.Next() {
		var r ir.SnapshotRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.Seq, &r.TopologyHash, &r.NextID); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJournalEntry(row scanner) (ir.JournalEntry, error) {
	var (
		e        ir.JournalEntry
		kind     string
		argsJSON string
	)
	err := row.Scan(
		&e.Seq,
		&kind,
		&e.Token,
		&e.Slot.Node,
		&e.Slot.Slot,
		&e.Other.Node,
		&e.Other.Slot,
		&e.Link,
		&e.Event,
		&argsJSON,
		&e.Error,
	)
	if err != nil {
		return ir.JournalEntry{}, fmt.Errorf("scan journal entry: %w", err)
	}
	e.Kind = ir.JournalKind(kind)
	e.Args, err = unmarshalArgs(argsJSON)
	if err != nil {
		return ir.JournalEntry{}, fmt.Errorf("journal entry %d: %w", e.Seq, err)
	}
	return e, nil
}

func scanSnapshot(row scanner) (ir.SnapshotRecord, error) {
	var (
		r       ir.SnapshotRecord
		docJSON string
	)
	err := row.Scan(&r.ID, &r.Name, &r.Seq, &r.TopologyHash, &r.NextID, &docJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.SnapshotRecord{}, fmt.Errorf("snapshot: %w", err)
	}
	if err != nil {
		return ir.SnapshotRecord{}, fmt.Errorf("scan snapshot: %w", err)
	}
	r.Document, err = unmarshalDocument(docJSON)
	if err != nil {
		return ir.SnapshotRecord{}, fmt.Errorf("snapshot %s: %w", r.ID, err)
	}
	return r, nil
}
