package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"storepos/m/internal/database"
)

// Config holds application configuration values.
type Config struct {
	Secret             string
	HTTPPort           string
	DatabaseDSN        string
	LogLevel           string
	LogFormat          string
	TokenTTL           time.Duration
	AdminPassword      string
	LoginLockThreshold int
	LoginLockWindow    time.Duration
	CORSAllowedOrigins []string
	ProductsCSV        string
}

// Load reads configuration from environment variables, after an optional
// .env file, with defaults suitable for a single-till install.
func Load() (Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	cfg := Config{
		Secret:             valueOrDefault(k.String("SECRET"), "dev_secret"),
		HTTPPort:           valueOrDefault(k.String("HTTP_PORT"), "8080"),
		DatabaseDSN:        valueOrDefault(k.String("DATABASE_DSN"), database.DefaultDSN),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		TokenTTL:           parseDuration(k.String("TOKEN_TTL"), "24h"),
		AdminPassword:      valueOrDefault(k.String("ADMIN_PASSWORD"), "admin123"),
		LoginLockThreshold: parseInt(k.String("LOGIN_LOCK_THRESHOLD"), 5),
		LoginLockWindow:    parseDuration(k.String("LOGIN_LOCK_WINDOW"), "5m"),
		CORSAllowedOrigins: splitAndTrim(valueOrDefault(k.String("CORS_ALLOWED_ORIGINS"), "*")),
		ProductsCSV:        strings.TrimSpace(k.String("PRODUCTS_CSV")),
	}

	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		return Config{}, fmt.Errorf("invalid HTTP_PORT value %q", cfg.HTTPPort)
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server binds to.
func (c Config) HTTPAddr() string {
	return ":" + c.HTTPPort
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	d, err := time.ParseDuration(valueOrDefault(value, fallback))
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
