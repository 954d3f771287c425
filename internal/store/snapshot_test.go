package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lumo/internal/ir"
)

func TestWriteSnapshot_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	doc := testDocument()
	rec, err := s.WriteSnapshot(ctx, "first", 3, 6, doc)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, ir.MustTopologyHash(doc), rec.TopologyHash)

	got, err := s.ReadSnapshot(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Equal(t, doc, got.Document)
	assert.Equal(t, "Viewer <main>", got.Document.Nodes[1].Name)
}

func TestReadSnapshot_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadSnapshot(context.Background(), "nope")
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	_, err = s.LatestSnapshot(context.Background())
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestLatestSnapshot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteSnapshot(ctx, "late", 9, 6, testDocument())
	require.NoError(t, err)
	_, err = s.WriteSnapshot(ctx, "early", 2, 6, ir.Document{Nodes: []ir.NodeRecord{}, Links: []ir.LinkRecord{}})
	require.NoError(t, err)

	latest, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late", latest.Name)

	before, err := s.snapshotAtOrBefore(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "early", before.Name)

	_, err = s.snapshotAtOrBefore(ctx, 1)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestLatestSnapshot_TieBrokenByNewestID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteSnapshot(ctx, "a", 4, 6, testDocument())
	require.NoError(t, err)
	b, err := s.WriteSnapshot(ctx, "b", 4, 6, testDocument())
	require.NoError(t, err)

	latest, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, latest.ID)
}

func TestListSnapshots(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	list, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.WriteSnapshot(ctx, "second", 5, 6, testDocument())
	require.NoError(t, err)
	_, err = s.WriteSnapshot(ctx, "first", 1, 6, testDocument())
	require.NoError(t, err)

	list, err = s.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Name)
	assert.Equal(t, "second", list[1].Name)
	assert.Empty(t, list[0].Document.Nodes)
}
