package storage

import (
	"context"
	"errors"
)

// ArtifactState loads one ingestion artifact (the embedding matrix or the metadata
// records). The two artifacts of a vector store are written together and must be
// loaded together; callers pair two ArtifactStates from the same backend.
type ArtifactState interface {
	Load(ctx context.Context) ([]byte, error)
}

// ArtifactWriter persists one ingestion artifact.
type ArtifactWriter interface {
	Save(ctx context.Context, data []byte) error
}

// TestArtifactState is a simple in-memory implementation for testing.
type TestArtifactState struct {
	data []byte
	err  error
}

func NewTestArtifactState(data []byte) *TestArtifactState {
	return &TestArtifactState{data: data}
}

func NewTestArtifactStateWithError() *TestArtifactState {
	return &TestArtifactState{err: errors.New("not found")}
}

func (t *TestArtifactState) Load(ctx context.Context) ([]byte, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.data, nil
}

func (t *TestArtifactState) Save(ctx context.Context, data []byte) error {
	if t.err != nil {
		return t.err
	}
	t.data = data
	return nil
}
