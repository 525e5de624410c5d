package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Storage backend names accepted in STORAGE_BACKEND
const (
	BackendClickHouse = "clickhouse"
	BackendSQLite     = "sqlite"
	BackendMock       = "mock"
)

// Config holds the application configuration
type Config struct {
	// HTTP API
	HTTPPort string

	// Telegram bot (optional surface)
	BotEnabled     bool
	TelegramToken  string
	AllowedUserIDs []int64

	// Storage backend selection
	StorageBackend string

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	// SQLite configuration
	SQLitePath string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	config.HTTPPort = os.Getenv("HTTP_PORT")
	if config.HTTPPort == "" {
		config.HTTPPort = "8080"
	}

	// Bot is optional: the HTTP API alone is a valid deployment
	config.BotEnabled = os.Getenv("BOT_ENABLED") == "true"
	if config.BotEnabled {
		config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
		if config.TelegramToken == "" {
			return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required when BOT_ENABLED is true")
		}

		allowedIDsStr := os.Getenv("ALLOWED_USER_IDS")
		if allowedIDsStr == "" {
			return nil, fmt.Errorf("ALLOWED_USER_IDS is required (comma-separated list of Telegram user IDs)")
		}
		for _, idStr := range strings.Split(allowedIDsStr, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID in ALLOWED_USER_IDS: %s", idStr)
			}
			config.AllowedUserIDs = append(config.AllowedUserIDs, id)
		}
	}

	config.StorageBackend = os.Getenv("STORAGE_BACKEND")
	if config.StorageBackend == "" {
		config.StorageBackend = BackendClickHouse
	}

	switch config.StorageBackend {
	case BackendMock:
		// Nothing else to configure
	case BackendSQLite:
		config.SQLitePath = os.Getenv("SQLITE_PATH")
		if config.SQLitePath == "" {
			config.SQLitePath = "./libstats.db"
		}
	case BackendClickHouse:
		config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
		if config.ClickHouseHost == "" {
			return nil, fmt.Errorf("CLICKHOUSE_HOST is required when STORAGE_BACKEND is clickhouse")
		}

		portStr := os.Getenv("CLICKHOUSE_PORT")
		if portStr == "" {
			config.ClickHousePort = 9000 // Default ClickHouse native port
		} else {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return nil, fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
			}
			config.ClickHousePort = port
		}

		config.ClickHouseDatabase = os.Getenv("CLICKHOUSE_DATABASE")
		if config.ClickHouseDatabase == "" {
			config.ClickHouseDatabase = "default"
		}

		config.ClickHouseUser = os.Getenv("CLICKHOUSE_USER")
		if config.ClickHouseUser == "" {
			config.ClickHouseUser = "default"
		}

		config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
		// Password is optional, can be empty

		config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND: %s (expected clickhouse, sqlite or mock)", config.StorageBackend)
	}

	return config, nil
}
