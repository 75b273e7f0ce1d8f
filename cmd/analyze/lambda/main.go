package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"

	"nutrimind"
	"nutrimind/bedrock"
	"nutrimind/coordinator"
	"nutrimind/engine"
	"nutrimind/gemini"
	"nutrimind/nutrition"
	"nutrimind/reference"
	userstore "nutrimind/store"
	"nutrimind/tools"
	"nutrimind/tools/storage"
)

type Params struct {
	UserKey string `json:"user_key"`
	Input   string `json:"input"`
	Reply   string `json:"reply,omitempty"`
}

type Results struct {
	Output nutrimind.AnalysisResult `json:"output"`
}

func main() {
	fn := func(ctx context.Context, params Params) (Results, error) {
		var modelConfig nutrimind.ModelConfig
		if err := envdecode.Decode(&modelConfig); err != nil {
			log.Fatalf("Failed to decode: %s", err)
		}

		var agentConfig nutrimind.AgentConfig
		if err := envdecode.Decode(&agentConfig); err != nil {
			log.Fatalf("Failed to decode: %s", err)
		}

		var validationConfig nutrimind.ValidationConfig
		if err := envdecode.Decode(&validationConfig); err != nil {
			log.Fatalf("Failed to decode: %s", err)
		}

		s3Bucket := os.Getenv("ARTIFACTS_S3_BUCKET")
		embeddingsKey := os.Getenv("ARTIFACTS_EMBEDDINGS_S3_KEY")
		metadataKey := os.Getenv("ARTIFACTS_METADATA_S3_KEY")
		if s3Bucket == "" || embeddingsKey == "" || metadataKey == "" {
			return Results{}, fmt.Errorf("missing S3 config: ARTIFACTS_S3_BUCKET, ARTIFACTS_EMBEDDINGS_S3_KEY, ARTIFACTS_METADATA_S3_KEY must be set")
		}

		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return Results{}, fmt.Errorf("failed to load AWS config: %w", err)
		}
		s3Client := s3.NewFromConfig(awsCfg)

		refStore := reference.NewStore(
			storage.NewS3ArtifactState(s3Client, s3Bucket, embeddingsKey),
			storage.NewS3ArtifactState(s3Client, s3Bucket, metadataKey),
		)
		if err := refStore.Load(ctx); err != nil {
			slog.Error("SETUP: Failed to load reference store", "error", err)
			return Results{}, err
		}
		slog.Info("SETUP: Reference store loaded from S3", "records", refStore.Size())

		// Embedding and fallback estimation ride on Gemini even when the
		// reasoning loop runs on Bedrock.
		geminiClient, err := gemini.NewClient(ctx, modelConfig)
		if err != nil {
			slog.Error("SETUP: Failed to create Gemini client", "error", err)
			return Results{}, err
		}
		defer geminiClient.Close()

		embedder := gemini.NewEmbedder(geminiClient, modelConfig.EmbeddingModelID)
		resolver := reference.NewResolver(refStore, embedder, agentConfig.MatchThreshold)

		registry, err := tools.NewRegistry(resolver)
		if err != nil {
			slog.Error("SETUP: Failed to create tool registry", "error", err)
			return Results{}, err
		}

		db, err := userstore.NewSQLiteStore(agentConfig.StorePath)
		if err != nil {
			slog.Error("SETUP: Failed to open user store", "error", err)
			return Results{}, err
		}
		defer db.Close()

		brc, err := newBedrockRuntimeClient(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to create Bedrock client", "error", err)
			return Results{}, err
		}
		llm := bedrock.NewLLMClient(brc, bedrock.LLMOptions{
			ModelID:     os.Getenv("BEDROCK_MODEL_ID"),
			MaxTokens:   modelConfig.MaxTokens,
			Temperature: modelConfig.Temperature,
			TopP:        modelConfig.TopP,
		})

		tracerProvider, meterProvider, otelShutdown, err := nutrimind.InitOtel(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
			return Results{}, err
		}
		_ = meterProvider
		defer func() {
			if err := otelShutdown(ctx); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()

		coord := coordinator.NewCoordinator(llm, registry, agentConfig.MaxIterations,
			nutrimind.NewStdoutCoordinationLogger(), tracerProvider)
		eng := engine.NewEngine(coord, resolver, geminiClient,
			nutrition.NewValidator(validationConfig), db, db)

		if params.Reply != "" {
			result, ok, err := eng.ResolveClarification(ctx, params.UserKey, params.Reply)
			if err != nil {
				return Results{}, err
			}
			if ok {
				return Results{Output: result}, nil
			}
			// No pending session; treat the reply as a fresh description.
			params.Input = params.Reply
		}

		result, err := eng.Analyze(ctx, params.UserKey, params.Input)
		if err != nil {
			slog.Error("RESULT: Error analyzing meal", "error", err)
			return Results{}, err
		}

		if !result.ClarificationNeeded {
			if _, err := db.SaveMeal(ctx, params.UserKey, params.Input, result); err != nil {
				slog.Error("RESULT: Failed to log meal", "error", err)
			}
		}
		return Results{Output: result}, nil
	}

	lambda.Start(fn)
}

func newBedrockRuntimeClient(ctx context.Context) (*bedrockruntime.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}
