package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config is the assembled application configuration.
type Config struct {
	Server     ServerConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	LLM        LLMConfig
	Embeddings EmbeddingsConfig
	Retrieval  RetrievalConfig
	Features   FeaturesConfig
	Checkpoint CheckpointConfig
	Telemetry  TelemetryConfig
}

type ServerConfig struct {
	Addr         string
	AllowOrigins []string
}

type PostgresConfig struct {
	URL           string
	DocumentTable string
}

type RedisConfig struct {
	URL        string
	SummaryTTL time.Duration
}

// LLMConfig selects the chat-model provider and the two model tiers.
type LLMConfig struct {
	Provider        string // "googleai" or "anthropic"
	GoogleAPIKey    string
	AnthropicAPIKey string
	ReasoningModel  string
	FastModel       string
}

type EmbeddingsConfig struct {
	Model     string
	Dimension int
}

type RetrievalConfig struct {
	TopK           int
	WebResultLimit int
}

// FeaturesConfig holds the optional graph branches, read once at startup.
type FeaturesConfig struct {
	QueryPlanner       bool
	RetrievalExpansion bool
	EmotionalSupport   bool
	QualityCheck       bool
	MaxQualityRetries  int
}

type CheckpointConfig struct {
	Enabled   bool
	Retention time.Duration
}

type TelemetryConfig struct {
	Metrics bool
	Tracing bool
}

// Load reads .env if present, then the environment, then the optional
// YAML settings file. Only POSTGRES_URL and the active provider's API
// key are required.
func Load(settingsPath string) (*Config, error) {
	_ = godotenv.Load()

	vals, err := ValuesFromFile(settingsPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("SERVER_ADDR", ":8080"),
			AllowOrigins: []string{getEnv("CORS_ORIGIN", "http://localhost:3000")},
		},
		Postgres: PostgresConfig{
			URL:           os.Getenv("POSTGRES_URL"),
			DocumentTable: getEnv("DOCUMENT_TABLE", "governance_chunks"),
		},
		Redis: RedisConfig{
			URL:        getEnv("REDIS_URL", ""),
			SummaryTTL: vals.Duration("summary_ttl", 24*time.Hour),
		},
		LLM: LLMConfig{
			Provider:        getEnv("LLM_PROVIDER", "googleai"),
			GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			ReasoningModel:  vals.String("reasoning_model", "gemini-3-pro-preview"),
			FastModel:       vals.String("fast_model", "gemini-3-flash-preview"),
		},
		Embeddings: EmbeddingsConfig{
			Model:     vals.String("embedding_model", "gemini-embedding-001"),
			Dimension: vals.Int("embedding_dimension", 1536),
		},
		Retrieval: RetrievalConfig{
			TopK:           vals.Int("retrieval_top_k", 5),
			WebResultLimit: vals.Int("web_result_limit", 5),
		},
		Features: FeaturesConfig{
			QueryPlanner:       vals.Bool("feature_query_planner", false),
			RetrievalExpansion: vals.Bool("feature_retrieval_expansion", false),
			EmotionalSupport:   vals.Bool("feature_emotional_support", true),
			QualityCheck:       vals.Bool("feature_quality_check", true),
			MaxQualityRetries:  vals.Int("max_quality_retries", 1),
		},
		Checkpoint: CheckpointConfig{
			Enabled:   vals.Bool("checkpointing", true),
			Retention: vals.Duration("checkpoint_retention", 7*24*time.Hour),
		},
		Telemetry: TelemetryConfig{
			Metrics: vals.Bool("telemetry_metrics", true),
			Tracing: vals.Bool("telemetry_tracing", false),
		},
	}

	if cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("POSTGRES_URL is required")
	}
	switch cfg.LLM.Provider {
	case "googleai":
		if cfg.LLM.GoogleAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY is required for the googleai provider")
		}
	case "anthropic":
		if cfg.LLM.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		if cfg.LLM.GoogleAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY is required for embeddings")
		}
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
