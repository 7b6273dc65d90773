package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	RedisURL string

	// Purge policy
	PurgeGrace    time.Duration // how long a globally deleted message survives
	PurgeInterval time.Duration // fixed sweep interval when no cron is set
	PurgeCron     string        // optional cron expression for the sweep

	// Durable-store call timeout
	StoreTimeout time.Duration

	// Media store (Cloudinary); empty cloud name disables release
	CloudinaryCloud  string
	CloudinaryKey    string
	CloudinarySecret string

	// CORS and rate limiting
	CORSOrigins        []string
	RateLimitWhitelist []string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		RedisURL:         os.Getenv("REDIS_URL"),
		PurgeGrace:       getDuration("PURGE_GRACE", 24*time.Hour),
		PurgeInterval:    getDuration("PURGE_INTERVAL", 24*time.Hour),
		PurgeCron:        os.Getenv("PURGE_CRON"),
		StoreTimeout:     getDuration("STORE_TIMEOUT", 5*time.Second),
		CloudinaryCloud:  os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinarySecret: os.Getenv("CLOUDINARY_API_SECRET"),
	}

	cfg.CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))
	cfg.RateLimitWhitelist = splitList(os.Getenv("RATE_LIMIT_WHITELIST"))

	// In production, require a durable store
	if cfg.Env == "production" && cfg.RedisURL == "" {
		panic("REDIS_URL is required in production")
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
