package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	NatsURL       string
	NatsToken     string
	DatabaseURL   string
	LogLevel      string
	APIToken      string
	AutoMigrate   bool
	GridSize      int
	GridCacheSize int
	InitialTrust  int
	AvatarBaseURL string
}

// Load reads the environment, after merging a .env file from the working
// directory if one exists. Variables already set win over the file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:          envInt("VEIL_PORT", 8760),
		NatsURL:       envStr("NATS_URL", ""),
		NatsToken:     envStr("NATS_TOKEN", ""),
		DatabaseURL:   envStr("DATABASE_URL", ""),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		APIToken:      envStr("VEIL_API_TOKEN", ""),
		AutoMigrate:   envBool("VEIL_AUTO_MIGRATE", true),
		GridSize:      envInt("VEIL_GRID_SIZE", 8),
		GridCacheSize: envInt("VEIL_GRID_CACHE_SIZE", 256),
		InitialTrust:  envInt("VEIL_INITIAL_TRUST", 25),
		AvatarBaseURL: envStr("VEIL_AVATAR_BASE_URL", "https://placehold.co/400x400/1a202c/ffffff"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
