package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	ChatModel    string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`

	// Search scoring policy. The weights and half-life are tunable rather
	// than hard-coded; defaults match the documented scoring formula.
	SemanticWeight  float64       `envconfig:"SEMANTIC_WEIGHT" default:"0.7"`
	RecencyWeight   float64       `envconfig:"RECENCY_WEIGHT" default:"0.2"`
	TagWeight       float64       `envconfig:"TAG_WEIGHT" default:"0.1"`
	RecencyHalfLife time.Duration `envconfig:"RECENCY_HALF_LIFE" default:"168h"`

	// Embedding worker poll interval bounds the index staleness window.
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"2s"`

	// Agent loop limits.
	ToolTimeout time.Duration `envconfig:"TOOL_TIMEOUT" default:"30s"`
	MaxToolHops int           `envconfig:"MAX_TOOL_HOPS" default:"5"`
	WindowTurns int           `envconfig:"WINDOW_TURNS" default:"20"`

	SentryDSN         string  `envconfig:"SENTRY_DSN"`
	SentryEnvironment string  `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
	SentrySampleRate  float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE" default:"1.0"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"mnemo-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("MNEMO", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.SemanticWeight < 0 || c.RecencyWeight < 0 || c.TagWeight < 0 {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	if c.SemanticWeight+c.RecencyWeight+c.TagWeight == 0 {
		return fmt.Errorf("at least one scoring weight must be positive")
	}
	if c.RecencyHalfLife <= 0 {
		return fmt.Errorf("recency half-life must be positive")
	}
	if c.MaxToolHops <= 0 {
		return fmt.Errorf("max tool hops must be positive")
	}
	return nil
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}
