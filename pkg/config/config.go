// Package config loads the bot configuration from environment variables.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds the application configuration loaded from environment
// variables.
type Config struct {
	// TelegramToken is the Telegram bot API token.
	// Environment variable: TELEGRAM_TOKEN
	TelegramToken string `koanf:"TELEGRAM_TOKEN"`

	// TelegramDebug enables verbose Telegram API logging.
	// Environment variable: TELEGRAM_DEBUG
	TelegramDebug bool `koanf:"TELEGRAM_DEBUG"`

	// CredsFile is the path to the Google OAuth client secret JSON file.
	// Environment variable: CREDS_FILE
	CredsFile string `koanf:"CREDS_FILE"`

	// DeveloperUserID is an optional Telegram user ID that receives
	// internal error reports.
	// Environment variable: DEVELOPER_USER_ID
	DeveloperUserID int64 `koanf:"DEVELOPER_USER_ID"`

	// PostgreSQL connection configuration for the record buffer.
	Postgres PostgresConfig
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string `koanf:"POSTGRES_HOST"`
	Port     int    `koanf:"POSTGRES_PORT"`
	Database string `koanf:"POSTGRES_DB"`
	User     string `koanf:"POSTGRES_USER"`
	Password string `koanf:"POSTGRES_PASSWORD"`
	SSLMode  string `koanf:"POSTGRES_SSLMODE"`
}

// Load reads a .env file if present, then the process environment, and
// validates the result.
func Load() (Config, error) {
	// A missing .env file is fine; real deployments set the environment
	// directly.
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.TelegramToken == "" {
		return Config{}, fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.CredsFile == "" {
		cfg.CredsFile = "data/client_secret.json"
	}

	return cfg, nil
}
