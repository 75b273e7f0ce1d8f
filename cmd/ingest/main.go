package main

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/joeshaw/envdecode"

	"nutrimind"
	"nutrimind/gemini"
	"nutrimind/ingest"
	"nutrimind/reference"
	"nutrimind/tools/storage"
)

func main() {
	ctx := context.Background()

	foodsPath := flag.String("foods", "data/food.csv", "USDA food.csv export")
	nutrientsPath := flag.String("nutrients", "data/food_nutrient.csv", "USDA food_nutrient.csv export")
	portionsPath := flag.String("portions", "data/food_portion.csv", "USDA food_portion.csv export (optional)")
	batchSize := flag.Int("batch", 100, "embedding batch size")
	flag.Parse()

	var modelConfig nutrimind.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var agentConfig nutrimind.AgentConfig
	if err := envdecode.Decode(&agentConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	records, err := loadRecords(*foodsPath, *nutrientsPath, *portionsPath)
	if err != nil {
		slog.Error("SETUP: Failed to load source tables", "error", err)
		os.Exit(1)
	}
	slog.Info("SETUP: Source tables loaded", "records", len(records))

	llm, err := gemini.NewClient(ctx, modelConfig)
	if err != nil {
		slog.Error("SETUP: Failed to create Gemini client", "error", err)
		os.Exit(1)
	}
	defer llm.Close()

	_, _, otelShutdown, err := nutrimind.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	pipeline := ingest.NewPipeline(
		gemini.NewEmbedder(llm, modelConfig.EmbeddingModelID),
		storage.NewFileArtifactState(agentConfig.ArtifactsEmbeddingsPath),
		storage.NewFileArtifactState(agentConfig.ArtifactsMetadataPath),
		*batchSize,
	)
	if err := pipeline.Run(ctx, records); err != nil {
		slog.Error("FAILURE: Ingest failed", "error", err)
		os.Exit(1)
	}
	slog.Info("RESULT: Artifacts written",
		"embeddings", agentConfig.ArtifactsEmbeddingsPath,
		"metadata", agentConfig.ArtifactsMetadataPath,
	)
}

// loadRecords joins the USDA exports and appends the regional supplement table.
func loadRecords(foodsPath, nutrientsPath, portionsPath string) ([]reference.Record, error) {
	foods, err := os.Open(foodsPath)
	if err != nil {
		return nil, err
	}
	defer foods.Close()

	nutrients, err := os.Open(nutrientsPath)
	if err != nil {
		return nil, err
	}
	defer nutrients.Close()

	var portionsReader io.Reader
	if portionsPath != "" {
		portions, err := os.Open(portionsPath)
		if err != nil {
			slog.Warn("SETUP: Portions export unavailable, continuing without standard portions", "error", err)
		} else {
			defer portions.Close()
			portionsReader = portions
		}
	}

	records, err := ingest.ParseUSDA(foods, nutrients, portionsReader)
	if err != nil {
		return nil, err
	}
	return append(records, ingest.RegionalRecords()...), nil
}
