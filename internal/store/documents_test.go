package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDocument_Missing(t *testing.T) {
	s := createTestStore(t)

	value, ok, err := s.ReadDocument(context.Background(), KeyOrderOverlay)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestWriteDocument_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteDocument(ctx, KeyOrderOverlay, []byte(`{"a":{"status":"ready"}}`)))

	value, ok, err := s.ReadDocument(ctx, KeyOrderOverlay)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":{"status":"ready"}}`, string(value))
}

func TestWriteDocument_ReplacesAndBumpsRevision(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.WriteDocument(ctx, KeyOrderOverlay, []byte(`{}`)))
	require.NoError(t, s.WriteDocument(ctx, KeyOrderOverlay, []byte(`{"b":{}}`)))

	doc, ok, err := s.Document(ctx, KeyOrderOverlay)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), doc.Revision)
	assert.Equal(t, `{"b":{}}`, string(doc.Value))
	assert.True(t, doc.UpdatedAt.Equal(fixed))
}

func TestDeleteDocument(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteDocument(ctx, KeyPendingCart, []byte(`[]`)))
	require.NoError(t, s.DeleteDocument(ctx, KeyPendingCart))
	require.NoError(t, s.DeleteDocument(ctx, KeyPendingCart), "deleting twice is fine")

	_, ok, err := s.ReadDocument(ctx, KeyPendingCart)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListDocuments_SortedByKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteDocument(ctx, KeyPendingCart, []byte(`[]`)))
	require.NoError(t, s.WriteDocument(ctx, KeyOrderOverlay, []byte(`{}`)))

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, KeyOrderOverlay, docs[0].Key)
	assert.Equal(t, KeyPendingCart, docs[1].Key)
}

func TestDocuments_SurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiosk.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.WriteDocument(ctx, KeyOrderOverlay, []byte(`{"x":{}}`)))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	value, ok, err := s2.ReadDocument(ctx, KeyOrderOverlay)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"x":{}}`, string(value))
}
