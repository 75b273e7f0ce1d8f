package nutrimind

type ModelConfig struct {
	ModelID          string  `env:"MODEL_ID,default=gemini-2.0-flash"`
	EmbeddingModelID string  `env:"EMBEDDING_MODEL_ID,default=gemini-embedding-001"`
	GeminiAPIKey     string  `env:"GEMINI_API_KEY"`
	MaxTokens        int32   `env:"MAX_TOKENS,default=2048"`
	Temperature      float32 `env:"TEMPERATURE,default=0.2"`
	TopP             float32 `env:"TOP_P,default=0.9"`
}

type AgentConfig struct {
	ArtifactsEmbeddingsPath string  `env:"ARTIFACTS_EMBEDDINGS_PATH,default=artifacts/embeddings.bin"`
	ArtifactsMetadataPath   string  `env:"ARTIFACTS_METADATA_PATH,default=artifacts/foods.json"`
	StorePath               string  `env:"STORE_PATH,default=nutrimind.db"`
	ExportWebhookURL        string  `env:"EXPORT_WEBHOOK_URL"`
	MaxIterations           int     `env:"MAX_ITERATIONS,default=25"`
	MatchThreshold          float64 `env:"MATCH_THRESHOLD,default=0.80"`
}

// ValidationConfig holds the sanity-check ceilings. The defaults are empirical tuning
// values and are expected to need environment-specific recalibration.
type ValidationConfig struct {
	BeverageKcalCeiling float64 `env:"BEVERAGE_KCAL_CEILING,default=150"`
	ItemKcalCeiling     float64 `env:"ITEM_KCAL_CEILING,default=1500"`
	ItemProteinCeiling  float64 `env:"ITEM_PROTEIN_CEILING,default=100"`
}
