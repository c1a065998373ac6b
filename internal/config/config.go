package config

import (
	"time"

	"github.com/joho/godotenv"

	pkgconfig "github.com/Checker-Finance/screener/pkg/config"
)

// Config holds the runtime configuration for the screener service.
type Config struct {
	ServiceName string
	Env         string
	LogLevel    string
	Debug       bool

	// Market-data provider. The API key may instead be resolved from AWS
	// Secrets Manager at runtime, see internal/secrets/resolver.go.
	ProviderBaseURL string
	ProviderAPIKey  string
	ProviderTimeout time.Duration

	// AWS Secrets Manager fallback for the provider API key.
	AWSRegion  string
	SecretName string
	CacheTTL   time.Duration

	// Batching and credit budget.
	PrefilterBatchSize int
	EnrichBatchSize    int
	CreditBudget       int
	CreditWindow       time.Duration

	// Screening policy tunables. Both are empirical constants carried over
	// from the previous generation of refresh scripts; they are deliberately
	// configuration, not code.
	FallbackADVFloor  float64
	SingleDayDiscount float64

	// Inputs and outputs.
	UniversePath string
	SnapshotDir  string

	// Optional integrations. Empty values disable the integration.
	NATSURL     string
	DatabaseURL string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	// Optional read-only HTTP surface.
	ServeAPI         bool
	Port             int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// Load loads configuration from environment variables and optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName:        pkgconfig.GetEnv("SERVICE_NAME", "screener"),
		Env:                pkgconfig.GetEnv("ENV", "dev"),
		LogLevel:           pkgconfig.GetEnv("LOG_LEVEL", "info"),
		Debug:              pkgconfig.GetEnvBool("DEBUG", false),
		ProviderBaseURL:    pkgconfig.GetEnv("MARKETDATA_BASE_URL", "https://api.twelvedata.com"),
		ProviderAPIKey:     pkgconfig.GetEnv("MARKETDATA_API_KEY", ""),
		ProviderTimeout:    pkgconfig.GetEnvDuration("MARKETDATA_TIMEOUT", 30*time.Second),
		AWSRegion:          pkgconfig.GetEnv("AWS_REGION", "us-east-2"),
		SecretName:         pkgconfig.GetEnv("MARKETDATA_SECRET_NAME", ""),
		CacheTTL:           pkgconfig.GetEnvDuration("CACHE_TTL", 24*time.Hour),
		PrefilterBatchSize: pkgconfig.GetEnvInt("PREFILTER_BATCH_SIZE", 8),
		EnrichBatchSize:    pkgconfig.GetEnvInt("ENRICH_BATCH_SIZE", 25),
		CreditBudget:       pkgconfig.GetEnvInt("CREDIT_BUDGET", 55),
		CreditWindow:       pkgconfig.GetEnvDuration("CREDIT_WINDOW", time.Minute),
		FallbackADVFloor:   pkgconfig.GetEnvFloat("FALLBACK_ADV_FLOOR", 1_000_000),
		SingleDayDiscount:  pkgconfig.GetEnvFloat("SINGLE_DAY_DISCOUNT", 0.8),
		UniversePath:       pkgconfig.GetEnv("UNIVERSE_PATH", "data/universe.csv"),
		SnapshotDir:        pkgconfig.GetEnv("SNAPSHOT_DIR", "data/snapshots"),
		NATSURL:            pkgconfig.GetEnv("NATS_URL", ""),
		DatabaseURL:        pkgconfig.GetEnv("DATABASE_URL", ""),
		RedisAddr:          pkgconfig.GetEnv("REDIS_ADDR", ""),
		RedisDB:            pkgconfig.GetEnvInt("REDIS_DB", 0),
		RedisPass:          pkgconfig.GetEnv("REDIS_PASS", ""),
		ServeAPI:           pkgconfig.GetEnvBool("SERVE_API", false),
		Port:               pkgconfig.GetEnvInt("SCREENER_PORT", 9040),
		HTTPReadTimeout:    pkgconfig.GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout:   pkgconfig.GetEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		HTTPIdleTimeout:    pkgconfig.GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
	}
}
