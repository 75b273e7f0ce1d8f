package gemini

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/generative-ai-go/genai"
)

// Embedder produces query and document embeddings with the configured embedding
// model. Transient API failures are retried with exponential backoff; embedding
// happens on the hot path of every lookup, so the retry budget is small.
type Embedder struct {
	model    *genai.EmbeddingModel
	maxTries uint
}

func NewEmbedder(client *Client, modelID string) *Embedder {
	return &Embedder{
		model:    client.genai.EmbeddingModel(modelID),
		maxTries: 3,
	}
}

// Embed returns the raw (unnormalized) embedding vector for one text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := backoff.Retry(ctx, func() (*genai.EmbedContentResponse, error) {
		return e.model.EmbedContent(ctx, genai.Text(text))
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(e.maxTries))
	if err != nil {
		return nil, fmt.Errorf("gemini: embed failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini: embed returned an empty vector")
	}
	return res.Embedding.Values, nil
}

// EmbedBatch embeds many texts in one round trip. Used by the ingest pipeline
// when building the reference artifacts.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := e.model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	res, err := backoff.Retry(ctx, func() (*genai.BatchEmbedContentsResponse, error) {
		return e.model.BatchEmbedContents(ctx, batch)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(e.maxTries))
	if err != nil {
		return nil, fmt.Errorf("gemini: batch embed failed: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: batch embed returned %d vectors for %d texts", len(res.Embeddings), len(texts))
	}

	out := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini: batch embed returned an empty vector at index %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
