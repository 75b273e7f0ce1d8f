// Package ingest builds the reference artifacts: it joins the nutrient source
// tables, embeds every food description, and writes the embedding matrix and
// metadata JSON the lookup store loads at startup.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"nutrimind"
	"nutrimind/reference"
	"nutrimind/tools/storage"
)

// Embedder is the batch embedding surface the pipeline needs. Satisfied by
// gemini.Embedder.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

const defaultBatchSize = 100

type Pipeline struct {
	embedder  Embedder
	matrix    storage.ArtifactWriter
	metadata  storage.ArtifactWriter
	batchSize int
}

func NewPipeline(embedder Embedder, matrix, metadata storage.ArtifactWriter, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Pipeline{
		embedder:  embedder,
		matrix:    matrix,
		metadata:  metadata,
		batchSize: batchSize,
	}
}

// Run embeds the records and writes both artifacts. The matrix row order is the
// record order, which is what ties the two artifacts together; nothing is
// written unless every record embedded successfully.
func (p *Pipeline) Run(ctx context.Context, records []reference.Record) error {
	ctx, span := otel.Tracer(nutrimind.TracerNameIngest).Start(ctx, "Pipeline.Run")
	defer span.End()

	if len(records) == 0 {
		return fmt.Errorf("no records to ingest")
	}
	slog.Info("INGEST: Starting", "records", len(records), "batch_size", p.batchSize)

	vectors := make([][]float32, 0, len(records))
	for start := 0; start < len(records); start += p.batchSize {
		end := start + p.batchSize
		if end > len(records) {
			end = len(records)
		}

		texts := make([]string, 0, end-start)
		for _, rec := range records[start:end] {
			texts = append(texts, rec.Description)
		}

		batch, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
		slog.Info("INGEST: Embedded batch", "done", end, "total", len(records))
	}

	var matrixBuf bytes.Buffer
	if err := reference.EncodeMatrix(&matrixBuf, vectors); err != nil {
		return fmt.Errorf("encode matrix: %w", err)
	}
	if err := p.matrix.Save(ctx, matrixBuf.Bytes()); err != nil {
		return fmt.Errorf("save matrix artifact: %w", err)
	}

	metadataJSON, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := p.metadata.Save(ctx, metadataJSON); err != nil {
		return fmt.Errorf("save metadata artifact: %w", err)
	}

	slog.Info("INGEST: Complete", "records", len(records), "matrix_bytes", matrixBuf.Len())
	return nil
}
