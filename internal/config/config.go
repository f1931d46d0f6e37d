package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL string
	GatewayURL string
	Token      string

	CachePath             string
	RequestTimeoutSeconds int
	Debug                 bool
}

// Load reads configuration from the environment, with .env support for
// local development. The session token is required; everything else has a
// development default matching the portal backend.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL: getEnv("ALUMNI_API_URL", "http://localhost:5005/api"),
		GatewayURL: getEnv("ALUMNI_GATEWAY_URL", "ws://localhost:5005/ws"),
		Token:      os.Getenv("ALUMNI_TOKEN"),

		CachePath:             getEnv("ALUMNI_CACHE_PATH", "alumnichat.db"),
		RequestTimeoutSeconds: getEnvAsInt("ALUMNI_REQUEST_TIMEOUT_SECONDS", 15),
		Debug:                 getEnvAsBool("DEBUG", false),
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("ALUMNI_TOKEN is required")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
