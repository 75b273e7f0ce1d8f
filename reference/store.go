package reference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"nutrimind/tools/storage"
)

// Store holds the merged food-composition tables in memory: a flat list of records
// plus a row-major L2-normalized embedding matrix. Everything is read-only after
// Load, so concurrent lookups across requests need no locking.
//
// Merged source tables are plain concatenations with no de-duplication; the
// resolver's best-score-wins lookup arbitrates overlapping entries at query time.
type Store struct {
	embeddings storage.ArtifactState
	metadata   storage.ArtifactState

	mu      sync.Mutex
	loaded  bool
	records []Record
	matrix  []float32 // len == len(records) * dim
	dim     int
}

func NewStore(embeddings, metadata storage.ArtifactState) *Store {
	return &Store{
		embeddings: embeddings,
		metadata:   metadata,
	}
}

// Load reads both artifacts once and normalizes the matrix rows. It is idempotent; a
// second call is a no-op. Missing artifacts leave the store empty, which is a legal
// degraded state (every lookup reports no match), not an error. Artifacts that are
// present but disagree in length are corrupt and rejected.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return nil
	}

	embRaw, err := s.embeddings.Load(ctx)
	if err != nil {
		slog.Warn("REFERENCE: Embedding artifact unavailable, store loads empty", "error", err)
		s.loaded = true
		return nil
	}
	metaRaw, err := s.metadata.Load(ctx)
	if err != nil {
		slog.Warn("REFERENCE: Metadata artifact unavailable, store loads empty", "error", err)
		s.loaded = true
		return nil
	}

	matrix, rows, dim, err := DecodeMatrix(bytes.NewReader(embRaw))
	if err != nil {
		s.loaded = true
		return fmt.Errorf("decode embedding matrix: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(metaRaw, &records); err != nil {
		s.loaded = true
		return fmt.Errorf("decode metadata records: %w", err)
	}

	// The artifacts are written as a pair; a length mismatch means they have
	// desynchronized and every score would point at the wrong record.
	if len(records) != rows {
		s.loaded = true
		return fmt.Errorf("artifact mismatch: %d metadata records vs %d matrix rows", len(records), rows)
	}

	normalizeRows(matrix, rows, dim)

	s.records = records
	s.matrix = matrix
	s.dim = dim
	s.loaded = true

	slog.Info("REFERENCE: Store loaded", "records", len(records), "dim", dim)
	return nil
}

// Size returns the number of records. Zero until Load, or after a degraded load.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Dim returns the embedding dimension, zero when the store is empty.
func (s *Store) Dim() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dim
}

// RecordAt returns the record at index i.
func (s *Store) RecordAt(i int) *Record {
	return &s.records[i]
}

// Search runs one dot-product pass of the (normalized) query against every row and
// returns the argmax index and its cosine score. Ties resolve to the
// first-encountered maximal index. Returns (-1, 0) when the store is empty or the
// query dimension does not match.
func (s *Store) Search(query []float32) (int, float64) {
	if len(s.records) == 0 || len(query) != s.dim {
		return -1, 0
	}

	best := -1
	bestScore := math.Inf(-1)
	for i := range s.records {
		row := s.matrix[i*s.dim : (i+1)*s.dim]
		var dot float64
		for j := range row {
			dot += float64(row[j]) * float64(query[j])
		}
		if dot > bestScore {
			best = i
			bestScore = dot
		}
	}
	return best, bestScore
}

// normalizeRows L2-normalizes each row in place. Rows are already normalized at
// ingest time; this guards against artifacts produced by older ingest runs.
func normalizeRows(matrix []float32, rows, dim int) {
	for i := 0; i < rows; i++ {
		row := matrix[i*dim : (i+1)*dim]
		var sum float64
		for _, v := range row {
			sum += float64(v) * float64(v)
		}
		norm := math.Sqrt(sum)
		if norm == 0 {
			continue
		}
		for j := range row {
			row[j] = float32(float64(row[j]) / norm)
		}
	}
}

// Normalize L2-normalizes a query vector in place and reports whether it had a
// non-zero norm.
func Normalize(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return false
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return true
}
