package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds every environmentally dependent setting. Values are parsed
// once at startup and passed explicitly to the components that need them.
type Config struct {
	Port   int    `env:"BR_PORT" envDefault:"8080"`
	DBPath string `env:"BR_DB_PATH" envDefault:"bookrecom.db"`

	// SyncSecret authenticates the scheduled sync trigger. Leaving it
	// unset is allowed at startup; the sync endpoint then refuses to run.
	SyncSecret string `env:"BR_SYNC_SECRET"`

	GeminiAPIKey string `env:"BR_GEMINI_API_KEY"`

	QdrantHost       string `env:"BR_QDRANT_HOST" envDefault:"localhost"`
	QdrantPort       int    `env:"BR_QDRANT_PORT" envDefault:"6334"`
	QdrantCollection string `env:"BR_QDRANT_COLLECTION" envDefault:"books"`

	BackfillBatchSize int `env:"BR_BACKFILL_BATCH_SIZE" envDefault:"0"`
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("BR_PORT must be between 1 and 65535")
	}

	if c.GeminiAPIKey == "" {
		return fmt.Errorf("BR_GEMINI_API_KEY is required")
	}

	if c.QdrantPort <= 0 || c.QdrantPort > 65535 {
		return fmt.Errorf("BR_QDRANT_PORT must be between 1 and 65535")
	}

	if c.BackfillBatchSize < 0 {
		return fmt.Errorf("BR_BACKFILL_BATCH_SIZE cannot be negative")
	}

	return nil
}

// Load reads a .env file when present, then parses the environment and
// validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
