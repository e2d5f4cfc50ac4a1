package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	ListenAddr string

	APIBaseURL string
	APIToken   string

	RedisURL    string
	DatabaseURL string

	AllowedOrigins []string

	GameSessionTTLSec  int
	ActivityPreviewLen int

	GameCatalogDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:         ":5000",
		GameSessionTTLSec:  86400,
		ActivityPreviewLen: 50,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	cfg.APIBaseURL = strings.TrimSpace(os.Getenv("API_BASE_URL"))
	cfg.APIToken = strings.TrimSpace(os.Getenv("API_TOKEN"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			s := strings.TrimSpace(p)
			if s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv("GAME_SESSION_TTL")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.GameSessionTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ACTIVITY_PREVIEW_LEN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ActivityPreviewLen = n
		}
	}

	cfg.GameCatalogDir = strings.TrimSpace(os.Getenv("GAME_CATALOG_DIR"))

	if cfg.APIBaseURL == "" {
		return nil, errors.New("API_BASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}
