package config

import (
	"fmt"
	"os"
)

// Config holds the process environment. Required values missing at startup
// are a fatal error, not something to recover from at runtime.
type Config struct {
	DatabaseURL      string
	RedisAddr        string
	NiconicoMail     string
	NiconicoPassword string
	ContentsDir      string
	SessionFile      string
	Port             string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		NiconicoMail:     os.Getenv("NICONICO_MAIL"),
		NiconicoPassword: os.Getenv("NICONICO_PASSWORD"),
		ContentsDir:      os.Getenv("CONTENTS_DIR"),
		SessionFile:      os.Getenv("SESSION_FILE"),
		Port:             os.Getenv("PORT"),
	}

	for name, value := range map[string]string{
		"DATABASE_URL":      cfg.DatabaseURL,
		"REDIS_ADDR":        cfg.RedisAddr,
		"NICONICO_MAIL":     cfg.NiconicoMail,
		"NICONICO_PASSWORD": cfg.NiconicoPassword,
	} {
		if value == "" {
			return nil, fmt.Errorf("%s is not set", name)
		}
	}

	if cfg.ContentsDir == "" {
		cfg.ContentsDir = "/contents"
	}
	if cfg.SessionFile == "" {
		cfg.SessionFile = "/app/session/nico.json"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	return cfg, nil
}
