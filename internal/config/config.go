package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DBPath         string
	MigrationsDir  string
	CORSOrigins    []string
	AdminToken     string
	ConfigCacheTTL time.Duration
	StatsCacheTTL  time.Duration
}

func Load() Config {
	// Optional .env for local development; real env always wins.
	_ = godotenv.Load()

	return Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "./data/pomobot.db"),
		MigrationsDir:  getEnv("MIGRATIONS_DIR", "./migrations"),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		AdminToken:     getEnv("ADMIN_TOKEN", "change-this-token"),
		ConfigCacheTTL: time.Duration(getEnvInt("CONFIG_CACHE_TTL_SECONDS", 60)) * time.Second,
		StatsCacheTTL:  time.Duration(getEnvInt("STATS_CACHE_TTL_SECONDS", 30)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
