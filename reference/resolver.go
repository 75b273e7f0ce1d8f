package reference

import (
	"context"
	"log/slog"
)

// Embedder produces the query embedding. It must be the same model that embedded the
// store at ingest time; mixing embedding spaces silently produces meaningless scores.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DefaultMatchThreshold is the cosine similarity floor for accepting a match.
// Empirical; override via configuration when recalibrating for a new embedding model.
const DefaultMatchThreshold = 0.80

// Resolver matches a free-text ingredient name against the store.
type Resolver struct {
	store     *Store
	embedder  Embedder
	threshold float64
}

func NewResolver(store *Store, embedder Embedder, threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &Resolver{
		store:     store,
		embedder:  embedder,
		threshold: threshold,
	}
}

// Resolve returns the best-matching record and its cosine score, or (nil, 0) when
// nothing clears the threshold. A below-threshold best match is never surfaced.
// Every failure (empty store, embedding error, zero-norm query) degrades to no match;
// Resolve never propagates an error to the caller.
func (r *Resolver) Resolve(ctx context.Context, name string) (*Record, float64) {
	if err := r.store.Load(ctx); err != nil {
		slog.Error("RESOLVER: Store load failed", "error", err)
		return nil, 0
	}
	if r.store.Size() == 0 {
		return nil, 0
	}

	query, err := r.embedder.Embed(ctx, name)
	if err != nil {
		slog.Error("RESOLVER: Embedding failed", "name", name, "error", err)
		return nil, 0
	}
	if !Normalize(query) {
		return nil, 0
	}

	idx, score := r.store.Search(query)
	if idx < 0 {
		return nil, 0
	}

	match := r.store.RecordAt(idx)
	if score < r.threshold {
		slog.Info("RESOLVER: No match", "name", name, "best", match.Description, "score", score)
		return nil, 0
	}

	slog.Info("RESOLVER: Match", "name", name, "match", match.Description, "score", score)
	return match, score
}
