package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/joeshaw/envdecode"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nutrimind"
	"nutrimind/coordinator"
	"nutrimind/engine"
	"nutrimind/export"
	"nutrimind/gemini"
	"nutrimind/nutrition"
	"nutrimind/reference"
	userstore "nutrimind/store"
	"nutrimind/tools"
	"nutrimind/tools/storage"
)

func main() {
	ctx := context.Background()

	var modelConfig nutrimind.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var agentConfig nutrimind.AgentConfig
	if err := envdecode.Decode(&agentConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var validationConfig nutrimind.ValidationConfig
	if err := envdecode.Decode(&validationConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	llm, err := gemini.NewClient(ctx, modelConfig)
	if err != nil {
		slog.Error("SETUP: Failed to create Gemini client", "error", err)
		return
	}
	defer llm.Close()

	refStore := reference.NewStore(
		storage.NewFileArtifactState(agentConfig.ArtifactsEmbeddingsPath),
		storage.NewFileArtifactState(agentConfig.ArtifactsMetadataPath),
	)
	if err := refStore.Load(ctx); err != nil {
		slog.Error("SETUP: Failed to load reference store", "error", err)
		return
	}
	slog.Info("SETUP: Reference store loaded", "records", refStore.Size())

	embedder := gemini.NewEmbedder(llm, modelConfig.EmbeddingModelID)
	resolver := reference.NewResolver(refStore, embedder, agentConfig.MatchThreshold)

	registry, err := tools.NewRegistry(resolver)
	if err != nil {
		slog.Error("SETUP: Failed to create tool registry", "error", err)
		return
	}

	db, err := userstore.NewSQLiteStore(agentConfig.StorePath)
	if err != nil {
		slog.Error("SETUP: Failed to open user store", "error", err)
		return
	}
	defer db.Close()

	logger, cleanup, err := newCoordinationLogger(modelConfig.ModelID)
	if err != nil {
		slog.Error("SETUP: Failed to create coordination logger", "error", err)
		return
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("SETUP: Failed to flush coordination log", "error", err)
		}
	}()

	tracerProvider, meterProvider, otelShutdown, err := nutrimind.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	_ = meterProvider
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	tracer := tracerProvider.Tracer(nutrimind.TracerNameEngine)
	ctx, span := tracer.Start(ctx, nutrimind.TracerNameEngine, trace.WithAttributes(
		attribute.String("model.id", modelConfig.ModelID),
		attribute.Int("model.max_tokens", int(modelConfig.MaxTokens)),
		attribute.Float64("model.temperature", float64(modelConfig.Temperature)),
		attribute.Float64("model.top_p", float64(modelConfig.TopP)),
	))
	defer span.End()

	coord := coordinator.NewCoordinator(llm, registry, agentConfig.MaxIterations, logger, tracerProvider)
	eng := engine.NewEngine(coord, resolver, llm, nutrition.NewValidator(validationConfig), db, db)

	userKey := envOr("USER_KEY", "cli")
	input := argOr(1, "2 boiled eggs and a cup of rice")

	result, err := eng.Analyze(ctx, userKey, input)
	if err != nil {
		slog.Error("FAILURE: Error analyzing meal", "error", err)
		return
	}

	pretty, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(pretty))

	if result.ClarificationNeeded {
		slog.Info("RESULT: Clarification needed; answer with the same command to continue",
			"question", result.ClarificationQuestion)
		return
	}

	if _, err := db.SaveMeal(ctx, userKey, input, result); err != nil {
		slog.Error("RESULT: Failed to log meal", "error", err)
	}

	webhookURL := agentConfig.ExportWebhookURL
	if webhookURL == "" {
		testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := new(bytes.Buffer)
			body.ReadFrom(r.Body) // nolint: errcheck
			slog.Info("Received export request",
				"method", r.Method,
				"path", r.URL.Path,
				"body", body.String(),
			)
			w.WriteHeader(http.StatusOK)
		}))
		defer testServer.Close()
		webhookURL = testServer.URL
	}

	exportClient := export.NewClient(webhookURL, http.DefaultClient)
	if err := exportClient.PostAnalysis(ctx, userKey, input, result); err != nil {
		slog.Error("Failed to export analysis", "error", err)
	}
}

func argOr(i int, def string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return def
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newCoordinationLogger(modelID string) (nutrimind.CoordinationLogger, func() error, error) {
	logFilePath := nutrimind.NewCoordinationLogFilePath(modelID)
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := nutrimind.NewFileCoordinationLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}
