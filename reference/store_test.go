package reference

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrimind/tools/storage"
)

func artifactPair(t *testing.T, records []Record, vectors [][]float32) (storage.ArtifactState, storage.ArtifactState) {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, EncodeMatrix(&buf, vectors))

	meta, err := json.Marshal(records)
	require.NoError(t, err)

	return storage.NewTestArtifactState(buf.Bytes()), storage.NewTestArtifactState(meta)
}

func TestMatrixCodecRoundTrip(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0, 0.6, 0.8},
		{-0.5, 0.5, 0.25},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeMatrix(&buf, vectors))

	data, rows, dim, err := DecodeMatrix(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, dim)
	for i, v := range vectors {
		assert.Equal(t, v, data[i*dim:(i+1)*dim])
	}
}

func TestMatrixCodecRejectsRaggedInput(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeMatrix(&buf, [][]float32{{1, 0}, {1, 0, 0}})
	assert.Error(t, err)
}

func TestMatrixCodecRejectsBadMagic(t *testing.T) {
	_, _, _, err := DecodeMatrix(bytes.NewReader([]byte("JUNK\x00\x00\x00\x00\x00\x00\x00\x00")))
	assert.Error(t, err)
}

func TestStoreLoad(t *testing.T) {
	records := []Record{
		{ID: "1", Description: "Egg, whole, cooked, hard-boiled", Kcal: 155},
		{ID: "2", Description: "Butter, salted", Kcal: 717},
	}
	// Un-normalized rows on purpose; Load normalizes defensively.
	emb, meta := artifactPair(t, records, [][]float32{{2, 0, 0}, {0, 3, 0}})

	store := NewStore(emb, meta)
	require.NoError(t, store.Load(context.Background()))
	assert.Equal(t, 2, store.Size())
	assert.Equal(t, 3, store.Dim())

	idx, score := store.Search([]float32{1, 0, 0})
	assert.Equal(t, 0, idx)
	assert.InDelta(t, 1.0, score, 1e-6)
}

func TestStoreLoadIsIdempotent(t *testing.T) {
	emb, meta := artifactPair(t, []Record{{ID: "1", Description: "Egg"}}, [][]float32{{1, 0}})

	store := NewStore(emb, meta)
	require.NoError(t, store.Load(context.Background()))
	require.NoError(t, store.Load(context.Background()))
	assert.Equal(t, 1, store.Size())
}

func TestStoreLoadsEmptyWhenArtifactsMissing(t *testing.T) {
	store := NewStore(storage.NewTestArtifactStateWithError(), storage.NewTestArtifactStateWithError())

	// Missing artifacts are a degraded state, not an error.
	require.NoError(t, store.Load(context.Background()))
	assert.Equal(t, 0, store.Size())

	idx, _ := store.Search([]float32{1, 0, 0})
	assert.Equal(t, -1, idx)
}

func TestStoreLoadRejectsDesynchronizedArtifacts(t *testing.T) {
	// Two matrix rows but only one metadata record.
	emb, _ := artifactPair(t, nil, [][]float32{{1, 0}, {0, 1}})
	meta, err := json.Marshal([]Record{{ID: "1", Description: "Egg"}})
	require.NoError(t, err)

	store := NewStore(emb, storage.NewTestArtifactState(meta))
	assert.Error(t, store.Load(context.Background()))
	assert.Equal(t, 0, store.Size())
}

func TestStoreSearchTieResolvesToFirstIndex(t *testing.T) {
	// Duplicate entries from merged tables score identically; the first wins.
	records := []Record{
		{ID: "usda-1", Description: "Rice, cooked", Table: "usda"},
		{ID: "ifct-9", Description: "Rice, cooked", Table: "ifct"},
	}
	emb, meta := artifactPair(t, records, [][]float32{{0, 1, 0}, {0, 1, 0}})

	store := NewStore(emb, meta)
	require.NoError(t, store.Load(context.Background()))

	idx, score := store.Search([]float32{0, 1, 0})
	assert.Equal(t, 0, idx)
	assert.InDelta(t, 1.0, score, 1e-6)
}
