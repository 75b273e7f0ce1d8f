package storage

import (
	"context"
	"os"
	"path/filepath"
)

// FileArtifactState reads and writes an artifact on the local filesystem.
type FileArtifactState struct {
	FilePath string
}

func NewFileArtifactState(filePath string) *FileArtifactState {
	return &FileArtifactState{FilePath: filePath}
}

func (f *FileArtifactState) Load(ctx context.Context) ([]byte, error) {
	return os.ReadFile(f.FilePath)
}

func (f *FileArtifactState) Save(ctx context.Context, data []byte) error {
	if dir := filepath.Dir(f.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(f.FilePath, data, 0644)
}
