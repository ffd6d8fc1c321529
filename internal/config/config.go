package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	TokenSecret string
	TokenTTL    time.Duration

	// Environment
	Environment string

	// Uploads
	UploadBucket   string
	UploadBaseURL  string
	UploadTokenTTL time.Duration

	// Review
	ReviewInline        bool
	ReviewInterval      time.Duration
	ReviewBatchSize     int
	ReviewMaxConcurrent int

	// Cleanup
	CleanupInterval        time.Duration
	AbandonedRetentionDays int

	// Rate Limit
	RateLimitGeneral      int
	RateLimitRegistration int

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// IsProduction は本番環境で稼働しているかを返す。
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.TokenSecret = os.Getenv("TOKEN_SECRET")
	if cfg.TokenSecret == "" {
		missing = append(missing, "TOKEN_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 12*time.Hour)
	cfg.Environment = strings.ToLower(getEnvString("ENVIRONMENT", "development"))
	cfg.UploadBucket = getEnvString("UPLOAD_BUCKET", "test-gnc-data")
	cfg.UploadBaseURL = getEnvString("UPLOAD_BASE_URL", cfg.BaseURL)
	cfg.UploadTokenTTL = getEnvDuration("UPLOAD_TOKEN_TTL", 15*time.Minute)
	cfg.ReviewInline = getEnvBool("REVIEW_INLINE", false)
	cfg.ReviewInterval = getEnvDuration("REVIEW_INTERVAL", time.Minute)
	cfg.ReviewBatchSize = getEnvInt("REVIEW_BATCH_SIZE", 100)
	cfg.ReviewMaxConcurrent = getEnvInt("REVIEW_MAX_CONCURRENT", 5)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.AbandonedRetentionDays = getEnvInt("ABANDONED_RETENTION_DAYS", 30)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitRegistration = getEnvInt("RATE_LIMIT_REGISTRATION", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
