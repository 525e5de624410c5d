package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"libstats/internal/models"
	"libstats/internal/stats"
)

// handleMessage processes a single message
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	userID := message.From.ID
	if !b.allowedUsers[userID] {
		b.logger.Warn("Unauthorized access attempt",
			zap.Int64("user_id", userID),
			zap.String("username", message.From.UserName),
			zap.String("text", message.Text),
		)
		b.reply(message, "Sorry, you are not authorized to use this bot.")
		return
	}

	if !message.IsCommand() {
		return
	}

	ctx := context.Background()
	args := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "specialists":
		b.handleSpecialists(ctx, message, args)
	case "favorite":
		b.handleFavorite(ctx, message, args)
	case "unreliable":
		b.handleUnreliable(ctx, message)
	case "longbooks":
		b.handleLongBooks(ctx, message, args)
	case "authors":
		b.handleAuthors(ctx, message)
	case "addbook":
		b.handleAddBook(ctx, message, args)
	case "adduser":
		b.handleAddUser(ctx, message, args)
	case "lend":
		b.handleLend(ctx, message, args)
	case "return":
		b.handleReturn(ctx, message, args)
	default:
		b.reply(message, "Unknown command. Use /start to see available commands.")
	}
}

// handleStart shows welcome message and available commands
func (b *Bot) handleStart(message *tgbotapi.Message) {
	text := `Lending statistics bot 📚

Available commands:
/specialists <genre> - Genre specialists with their page totals
/favorite <user> - A user's favorite genre
/unreliable - Users who hold books too long
/longbooks <pages> - Books with at least that many pages
/authors - Most popular author per genre
/addbook <title>;<author>;<genre>;<pages> - Add a catalog book
/adduser <name> [read pages] - Register a reader
/lend <user>;<title> - Record a loan
/return <user>;<title> - Record a return`
	b.reply(message, text)
}

func (b *Bot) handleSpecialists(ctx context.Context, message *tgbotapi.Message, args string) {
	genre, err := models.ParseGenre(args)
	if err != nil {
		b.reply(message, "Usage: /specialists <genre> (e.g. /specialists fantasy)")
		return
	}

	lib, ok := b.loadLibrary(ctx, message)
	if !ok {
		return
	}

	specialists := b.engine.SpecialistsInGenre(lib, genre)
	b.reply(message, formatSpecialists(genre, specialists))
}

func (b *Bot) handleFavorite(ctx context.Context, message *tgbotapi.Message, args string) {
	if args == "" {
		b.reply(message, "Usage: /favorite <user>")
		return
	}

	lib, ok := b.loadLibrary(ctx, message)
	if !ok {
		return
	}

	user := findUser(lib, args)
	if user == nil {
		b.reply(message, fmt.Sprintf("No lending records found for %q.", args))
		return
	}

	genre, err := b.engine.LoveGenre(lib, user)
	if err != nil {
		if errors.Is(err, stats.ErrNoLendingHistory) {
			b.reply(message, fmt.Sprintf("%s has not returned any books yet.", args))
			return
		}
		b.replyError(message, err)
		return
	}
	b.reply(message, fmt.Sprintf("%s's favorite genre is %s.", args, genre))
}

func (b *Bot) handleUnreliable(ctx context.Context, message *tgbotapi.Message) {
	lib, ok := b.loadLibrary(ctx, message)
	if !ok {
		return
	}
	b.reply(message, formatUnreliable(b.engine.UnreliableUsers(lib)))
}

func (b *Bot) handleLongBooks(ctx context.Context, message *tgbotapi.Message, args string) {
	minPages, err := strconv.Atoi(args)
	if err != nil {
		b.reply(message, "Usage: /longbooks <pages> (e.g. /longbooks 300)")
		return
	}

	lib, ok := b.loadLibrary(ctx, message)
	if !ok {
		return
	}
	b.reply(message, formatBooks(b.engine.BooksWithMoreCountPages(lib, minPages)))
}

func (b *Bot) handleAuthors(ctx context.Context, message *tgbotapi.Message) {
	lib, ok := b.loadLibrary(ctx, message)
	if !ok {
		return
	}
	b.reply(message, formatAuthors(b.engine.MostPopularAuthorInGenre(lib)))
}

func (b *Bot) handleAddBook(ctx context.Context, message *tgbotapi.Message, args string) {
	parts := splitArgs(args, 4)
	if parts == nil {
		b.reply(message, "Usage: /addbook <title>;<author>;<genre>;<pages>")
		return
	}

	genre, err := models.ParseGenre(parts[2])
	if err != nil {
		b.reply(message, err.Error())
		return
	}
	pages, err := strconv.Atoi(parts[3])
	if err != nil || pages < 0 {
		b.reply(message, "Page count must be a non-negative number.")
		return
	}

	book := models.Book{Title: parts[0], Author: parts[1], Genre: genre, Pages: pages}
	if err := b.db.CreateBook(ctx, book); err != nil {
		b.replyError(message, err)
		return
	}
	b.reply(message, fmt.Sprintf("Added %q by %s (%s, %d pages).", book.Title, book.Author, book.Genre, book.Pages))
}

func (b *Bot) handleAddUser(ctx context.Context, message *tgbotapi.Message, args string) {
	if args == "" {
		b.reply(message, "Usage: /adduser <name> [read pages]")
		return
	}

	name := args
	readPages := 0
	if idx := strings.LastIndex(args, " "); idx > 0 {
		if pages, err := strconv.Atoi(strings.TrimSpace(args[idx+1:])); err == nil {
			name = strings.TrimSpace(args[:idx])
			readPages = pages
		}
	}

	if err := b.db.CreateUser(ctx, name, readPages); err != nil {
		b.replyError(message, err)
		return
	}
	b.reply(message, fmt.Sprintf("Registered reader %s (%d pages read).", name, readPages))
}

func (b *Bot) handleLend(ctx context.Context, message *tgbotapi.Message, args string) {
	parts := splitArgs(args, 2)
	if parts == nil {
		b.reply(message, "Usage: /lend <user>;<title>")
		return
	}

	if err := b.db.RecordLoan(ctx, parts[0], parts[1], time.Now()); err != nil {
		b.replyError(message, err)
		return
	}
	b.reply(message, fmt.Sprintf("Lent %q to %s.", parts[1], parts[0]))
}

func (b *Bot) handleReturn(ctx context.Context, message *tgbotapi.Message, args string) {
	parts := splitArgs(args, 2)
	if parts == nil {
		b.reply(message, "Usage: /return <user>;<title>")
		return
	}

	if err := b.db.RecordReturn(ctx, parts[0], parts[1], time.Now()); err != nil {
		b.replyError(message, err)
		return
	}
	b.reply(message, fmt.Sprintf("%s returned %q.", parts[0], parts[1]))
}

// loadLibrary fetches the snapshot, replying with an error on failure
func (b *Bot) loadLibrary(ctx context.Context, message *tgbotapi.Message) (*models.Library, bool) {
	lib, err := b.db.LoadLibrary(ctx)
	if err != nil {
		b.replyError(message, err)
		return nil, false
	}
	return lib, true
}

func (b *Bot) replyError(message *tgbotapi.Message, err error) {
	b.logger.Error("Command failed", zap.String("command", message.Command()), zap.Error(err))
	b.reply(message, fmt.Sprintf("Error: %v", err))
}

// splitArgs splits a semicolon-separated argument list, trimming each part.
// Returns nil unless exactly n non-empty parts are present.
func splitArgs(args string, n int) []string {
	parts := strings.Split(args, ";")
	if len(parts) != n {
		return nil
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return nil
		}
	}
	return parts
}

func findUser(lib *models.Library, name string) *models.User {
	for _, rec := range lib.Archive {
		if rec.User.Name == name {
			return rec.User
		}
	}
	return nil
}
