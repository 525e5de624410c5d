package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"libstats/internal/bot"
	"libstats/internal/config"
	"libstats/internal/server"
	"libstats/internal/stats"
	"libstats/internal/storage"
	"libstats/internal/storage/ch"
	"libstats/internal/storage/sqlite"
	"libstats/internal/storage/stubs"
)

// App represents the application
type App struct {
	config *config.Config
	logger *zap.Logger
	db     storage.Storage
	engine *stats.Engine
	bot    *bot.Bot
	server *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{config: cfg, logger: logger, engine: stats.New()}

	logger.Info("Starting lending statistics service")

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if cfg.BotEnabled {
		if err := app.initBot(); err != nil {
			return nil, err
		}
	}

	app.initHTTPServer()

	return app, nil
}

// initDatabase initializes the configured storage backend
func (a *App) initDatabase() error {
	var db storage.Storage

	switch a.config.StorageBackend {
	case config.BackendMock:
		a.logger.Info("Using mock database")
		db = stubs.NewMockDB()
	case config.BackendSQLite:
		a.logger.Info("Using SQLite database", zap.String("path", a.config.SQLitePath))
		sqliteDB, err := sqlite.NewSQLiteDB(a.config.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open SQLite database: %w", err)
		}
		db = sqliteDB
	default:
		a.logger.Info("Connecting to ClickHouse",
			zap.String("host", a.config.ClickHouseHost),
			zap.Int("port", a.config.ClickHousePort),
			zap.String("database", a.config.ClickHouseDatabase),
			zap.String("user", a.config.ClickHouseUser),
			zap.Bool("tls", a.config.ClickHouseUseTLS),
		)
		clickhouseDB, err := ch.NewClickHouseDB(
			a.config.ClickHouseHost,
			a.config.ClickHousePort,
			a.config.ClickHouseDatabase,
			a.config.ClickHouseUser,
			a.config.ClickHousePassword,
			a.config.ClickHouseUseTLS,
		)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		db = clickhouseDB
	}

	ctx := context.Background()
	if err := db.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully")

	a.db = db
	return nil
}

// initBot initializes the Telegram bot
func (a *App) initBot() error {
	telegramBot, err := bot.NewBot(a.config.TelegramToken, a.db, a.engine, a.config.AllowedUserIDs, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	a.logger.Info("Bot created successfully", zap.Int64s("allowed_users", a.config.AllowedUserIDs))

	a.bot = telegramBot
	return nil
}

// initHTTPServer initializes the statistics JSON API
func (a *App) initHTTPServer() {
	statsServer := server.New(a.db, a.engine, a.logger)

	a.server = &http.Server{
		Addr:         ":" + a.config.HTTPPort,
		Handler:      statsServer.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		a.logger.Info("Starting HTTP server", zap.String("port", a.config.HTTPPort))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if a.bot != nil {
		go func() {
			a.logger.Info("Starting bot in polling mode")
			if err := a.bot.Start(); err != nil {
				a.logger.Fatal("Failed to start bot", zap.Error(err))
			}
		}()
	}

	<-sigChan

	a.logger.Info("Shutting down")
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	if a.bot != nil {
		a.bot.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	return nil
}
