package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrimind/tools/storage"
)

type mockEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.vectors[text]
	if !ok {
		return []float32{0, 0, 0}, nil
	}
	// Copy so in-place normalization cannot leak between calls.
	out := make([]float32, len(v))
	copy(out, v)
	return out, nil
}

func testStore(t *testing.T) *Store {
	t.Helper()
	records := []Record{
		{ID: "1123", Description: "Egg, whole, cooked, hard-boiled", Kcal: 155, Protein: 12.56, Carbs: 1.12, Fats: 10.58},
		{ID: "1001", Description: "Butter, salted", Kcal: 717, Protein: 0.85, Carbs: 0.06, Fats: 81.11},
		{ID: "20045", Description: "Rice, white, cooked", Kcal: 130, Protein: 2.69, Carbs: 28.17, Fats: 0.28},
	}
	emb, meta := artifactPair(t, records, [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})
	store := NewStore(emb, meta)
	require.NoError(t, store.Load(context.Background()))
	return store
}

func TestResolverResolve(t *testing.T) {
	embedder := &mockEmbedder{vectors: map[string][]float32{
		"egg":    {0.95, 0.05, 0},
		"butter": {0.1, 0.9, 0},
		"quinoa": {0.5, 0.5, 0.5}, // nothing close enough
	}}
	resolver := NewResolver(testStore(t), embedder, 0.80)

	tests := []struct {
		name      string
		query     string
		wantMatch string
	}{
		{name: "egg resolves to egg record", query: "egg", wantMatch: "Egg, whole, cooked, hard-boiled"},
		{name: "butter resolves to butter record", query: "butter", wantMatch: "Butter, salted"},
		{name: "below threshold returns no match", query: "quinoa", wantMatch: ""},
		{name: "zero-norm embedding returns no match", query: "unknown_fictional_food_xyz", wantMatch: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, score := resolver.Resolve(context.Background(), tt.query)
			if tt.wantMatch == "" {
				assert.Nil(t, record)
				return
			}
			require.NotNil(t, record)
			assert.Equal(t, tt.wantMatch, record.Description)
			assert.GreaterOrEqual(t, score, 0.80)
		})
	}
}

func TestResolverIsIdempotent(t *testing.T) {
	embedder := &mockEmbedder{vectors: map[string][]float32{"egg": {1, 0, 0}}}
	resolver := NewResolver(testStore(t), embedder, 0.80)

	first, firstScore := resolver.Resolve(context.Background(), "egg")
	second, secondScore := resolver.Resolve(context.Background(), "egg")

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first, second)
	assert.Equal(t, firstScore, secondScore)
}

func TestResolverDegradesOnEmbeddingFailure(t *testing.T) {
	embedder := &mockEmbedder{err: errors.New("service unavailable")}
	resolver := NewResolver(testStore(t), embedder, 0.80)

	record, score := resolver.Resolve(context.Background(), "egg")
	assert.Nil(t, record)
	assert.Zero(t, score)
}

func TestResolverEmptyStore(t *testing.T) {
	store := NewStore(storage.NewTestArtifactStateWithError(), storage.NewTestArtifactStateWithError())
	embedder := &mockEmbedder{vectors: map[string][]float32{"egg": {1, 0, 0}}}
	resolver := NewResolver(store, embedder, 0.80)

	record, _ := resolver.Resolve(context.Background(), "egg")
	assert.Nil(t, record)
	// The embedding call is pointless against an empty store and is skipped.
	assert.Zero(t, embedder.calls)
}
