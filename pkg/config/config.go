package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// On-disk layout for datasets and artifacts
	Paths PathsConfig

	// Training
	Training TrainingConfig

	// Drift monitoring
	Drift DriftConfig

	// Batch scoring
	Scoring ScoringConfig

	// Optional run-history database
	Database DatabaseConfig

	// Optional prediction cache
	Redis RedisConfig

	// Alerting
	AlertWebhookURL string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// PathsConfig holds the directory layout shared by every pipeline stage
type PathsConfig struct {
	Raw         string // users.csv / events.csv
	Features    string // training_dataset.csv / user_features_daily.csv
	Models      string // *.gob artifacts + production alias
	Metrics     string // *.json metric records + drift/proxy snapshots
	Predictions string // ranked batch-scoring output
}

// TrainingConfig holds trainer defaults
type TrainingConfig struct {
	TestFraction      float64
	Seed              int64
	ImbalanceStrategy string // class_weight | none
}

// DriftConfig holds PSI thresholds and monitored columns
type DriftConfig struct {
	WarnPSI     float64
	FailPSI     float64
	Buckets     int
	FeatureCols []string
}

// ScoringConfig holds batch-scoring defaults
type ScoringConfig struct {
	TopK              int
	HighRiskThreshold float64
}

// DatabaseConfig holds the optional PostgreSQL run-history configuration
type DatabaseConfig struct {
	URL             string // empty disables the run log
	MaxConns        int
	MaxConnLifetime time.Duration
}

// RedisConfig holds the optional Redis prediction-cache configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// defaultDriftCols is the minimal monitored set; extend via DRIFT_FEATURE_COLS
var defaultDriftCols = []string{
	"sessions_7d",
	"watch_minutes_7d",
	"watch_minutes_14d",
	"watch_minutes_30d",
	"quiz_attempts_7d",
	"quiz_avg_score_7d",
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8087"),
		Env:  getEnv("ENV", "development"),

		Paths: PathsConfig{
			Raw:         getEnv("DATA_RAW_DIR", "data/raw"),
			Features:    getEnv("DATA_FEATURES_DIR", "data/features"),
			Models:      getEnv("ARTIFACTS_MODELS_DIR", "artifacts/models"),
			Metrics:     getEnv("ARTIFACTS_METRICS_DIR", "artifacts/metrics"),
			Predictions: getEnv("DATA_PREDICTIONS_DIR", "data/predictions"),
		},

		Training: TrainingConfig{
			TestFraction:      getEnvAsFloat("TRAIN_TEST_FRACTION", 0.2),
			Seed:              int64(getEnvAsInt("TRAIN_SEED", 42)),
			ImbalanceStrategy: getEnv("TRAIN_IMBALANCE_STRATEGY", "class_weight"),
		},

		Drift: DriftConfig{
			WarnPSI:     getEnvAsFloat("DRIFT_WARN_PSI", 0.1),
			FailPSI:     getEnvAsFloat("DRIFT_FAIL_PSI", 0.25),
			Buckets:     getEnvAsInt("DRIFT_BUCKETS", 10),
			FeatureCols: getEnvAsSlice("DRIFT_FEATURE_COLS", defaultDriftCols),
		},

		Scoring: ScoringConfig{
			TopK:              getEnvAsInt("SCORE_TOP_K", 50),
			HighRiskThreshold: getEnvAsFloat("SCORE_HIGH_RISK_THRESHOLD", 0.7),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		AlertWebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are consistent
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Training.TestFraction <= 0 || c.Training.TestFraction >= 1 {
		return fmt.Errorf("TRAIN_TEST_FRACTION must be in (0, 1), got %v", c.Training.TestFraction)
	}

	if c.Drift.WarnPSI < 0 || c.Drift.FailPSI < c.Drift.WarnPSI {
		return fmt.Errorf("drift thresholds must satisfy 0 <= warn <= fail (warn=%v fail=%v)",
			c.Drift.WarnPSI, c.Drift.FailPSI)
	}

	if c.Drift.Buckets < 2 {
		return fmt.Errorf("DRIFT_BUCKETS must be >= 2, got %d", c.Drift.Buckets)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}

	if len(out) == 0 {
		return defaultValue
	}
	return out
}
