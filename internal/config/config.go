package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/docbase/rag-backend/internal/chunker"
	"github.com/docbase/rag-backend/internal/classifier"
	pkgRetry "github.com/docbase/rag-backend/internal/pkg/retry"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr     string        `env:"SERVER_ADDR" envDefault:":8080"`
	MaxConcurrent  int           `env:"MAX_CONCURRENT_REQUESTS" envDefault:"64"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	// Indexing a large file can run for minutes, so uploads get their own
	// deadline.
	UploadTimeout time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"10m"`
	MaxUploadSize int64         `env:"MAX_UPLOAD_SIZE" envDefault:"33554432"`

	// Database configuration (source registry)
	DatabaseURL         string        `env:"DATABASE_URL,notEmpty"`
	DBMaxConns          int           `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns          int           `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// External service configurations
	VectorStoreCfg VectorStoreConfig `envPrefix:"VECTOR_"`
	GenerationCfg  GenerationConfig  `envPrefix:"GENERATION_"`
	EmbeddingCfg   EmbeddingConfig   `envPrefix:"EMBEDDING_"`

	// Pipeline configuration
	ChunkerCfg    chunker.Config    `envPrefix:"CHUNKER_"`
	ClassifierCfg classifier.Config `envPrefix:"CLASSIFIER_"`
	QueryCfg      QueryConfig       `envPrefix:"QUERY_"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Environment (set from flag, not from env var)
	Environment string
}

// VectorStoreConfig points at the vector similarity store collaborator.
type VectorStoreConfig struct {
	HTTPClientConfig
	Collection string               `env:"COLLECTION" envDefault:"documents"`
	Dimension  int                  `env:"DIMENSION" envDefault:"768"`
	Retry      pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

// GenerationConfig points at the text generation engine collaborator.
type GenerationConfig struct {
	HTTPClientConfig
	Model       string               `env:"MODEL" envDefault:"qwen2.5:3b"`
	Temperature float64              `env:"TEMPERATURE" envDefault:"0.7"`
	Retry       pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

// EmbeddingConfig points at the embedding engine collaborator.
type EmbeddingConfig struct {
	HTTPClientConfig
	Model       string               `env:"MODEL" envDefault:"nomic-embed-text"`
	Concurrency int                  `env:"CONCURRENCY" envDefault:"4"`
	CacheTTL    time.Duration        `env:"CACHE_TTL" envDefault:"10m"`
	Retry       pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

// QueryConfig bounds the generation prompt. The retrieved-context budget is
// the context window minus the response budget and a fixed prompt-overhead
// reserve.
type QueryConfig struct {
	ContextWindowTokens int `env:"CONTEXT_WINDOW_TOKENS" envDefault:"4096"`
	PromptReserveTokens int `env:"PROMPT_RESERVE_TOKENS" envDefault:"200"`
}

type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT" envDefault:"30s"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"10s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"90s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"30s"`
	Token                 string        `env:"TOKEN"`
	Url                   string        `env:"SERVICE_URL,notEmpty"`
}

func LoadConfig() (*Config, error) {
	envFlag := flag.String("env", "local", "Environment to run (local, prod, or custom)")
	flag.Parse()

	envFile := getEnvFile(*envFlag)
	// Try to load env file, but don't fail if it's missing.
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Environment = *envFlag

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.DBMaxConns < 1 || cfg.DBMaxConns > 200 {
		return fmt.Errorf("DB_MAX_CONNS must be between 1 and 200, got %d", cfg.DBMaxConns)
	}
	if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS(%d), got %d", cfg.DBMaxConns, cfg.DBMinConns)
	}

	if cfg.EmbeddingCfg.Concurrency < 1 {
		return fmt.Errorf("EMBEDDING_CONCURRENCY must be at least 1, got %d", cfg.EmbeddingCfg.Concurrency)
	}

	cc := cfg.ChunkerCfg
	if cc.OverlapTokens >= cc.TargetTokens {
		return fmt.Errorf("CHUNKER_OVERLAP_TOKENS (%d) must be smaller than CHUNKER_TARGET_TOKENS (%d)", cc.OverlapTokens, cc.TargetTokens)
	}
	if cc.HardCapTokens < cc.TargetTokens {
		return fmt.Errorf("CHUNKER_HARD_CAP_TOKENS (%d) must be at least CHUNKER_TARGET_TOKENS (%d)", cc.HardCapTokens, cc.TargetTokens)
	}

	// Classifier budgets must not shrink as the tier grows.
	cl := cfg.ClassifierCfg
	if cl.TrivialTopK > cl.SimpleTopK || cl.SimpleTopK > cl.MediumTopK || cl.MediumTopK > cl.ComplexTopK {
		return fmt.Errorf("classifier top_k budgets must be non-decreasing across tiers")
	}
	if cl.TrivialMaxTokens > cl.SimpleMaxTokens || cl.SimpleMaxTokens > cl.MediumMaxTokens || cl.MediumMaxTokens > cl.ComplexMaxTokens {
		return fmt.Errorf("classifier max_tokens budgets must be non-decreasing across tiers")
	}

	if cfg.QueryCfg.ContextWindowTokens <= cfg.QueryCfg.PromptReserveTokens {
		return fmt.Errorf("QUERY_CONTEXT_WINDOW_TOKENS must exceed QUERY_PROMPT_RESERVE_TOKENS")
	}

	return nil
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
