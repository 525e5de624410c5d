// Package bot exposes the lending statistics over Telegram.
package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"libstats/internal/stats"
	"libstats/internal/storage"
)

// Bot represents the Telegram bot wrapper
type Bot struct {
	api          *tgbotapi.BotAPI
	db           storage.Storage
	engine       *stats.Engine
	allowedUsers map[int64]bool
	logger       *zap.Logger
}

// NewBot creates a new Telegram bot
func NewBot(token string, db storage.Storage, engine *stats.Engine, allowedUserIDs []int64, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	allowedUsers := make(map[int64]bool)
	for _, id := range allowedUserIDs {
		allowedUsers[id] = true
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	return &Bot{
		api:          api,
		db:           db,
		engine:       engine,
		allowedUsers: allowedUsers,
		logger:       logger,
	}, nil
}

// Start starts the bot in polling mode and blocks
func (b *Bot) Start() error {
	b.logger.Info("Starting bot in polling mode")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Bot started successfully. Waiting for updates...")

	for update := range updates {
		if update.Message != nil {
			b.handleMessage(update.Message)
		}
	}
	return nil
}

// Stop stops the polling loop
func (b *Bot) Stop() {
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}
}

// sendMessage sends a message, logging delivery failures
func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) {
	if b.api == nil {
		return // For testing
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
}

func (b *Bot) reply(message *tgbotapi.Message, text string) {
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, text))
}
