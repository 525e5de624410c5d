package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"libstats/internal/models"
	"libstats/internal/stats"
	"libstats/internal/storage/stubs"
)

// Note: We can't easily mock tgbotapi.BotAPI, so tests focus on internal logic
// without actually sending messages to Telegram

var botTestNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestBot(t *testing.T) (*Bot, *stubs.MockDB) {
	t.Helper()

	db := stubs.NewMockDB()
	require.NoError(t, db.Initialize(context.Background()))

	bot := &Bot{
		api:          nil, // Not needed for internal logic tests
		db:           db,
		engine:       stats.NewWithClock(func() time.Time { return botTestNow }),
		allowedUsers: map[int64]bool{123: true},
		logger:       zap.NewNop(),
	}
	return bot, db
}

func command(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 123},
		Chat: &tgbotapi.Chat{ID: 456},
		Text: text,
	}
	// Mark the leading /command as a bot_command entity so IsCommand works.
	length := len(text)
	if idx := strings.IndexByte(text, ' '); idx > 0 {
		length = idx
	}
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	return msg
}

func TestBot_AddBookCommand(t *testing.T) {
	bot, db := newTestBot(t)

	bot.handleMessage(command("/addbook The Tower;Allen;fantasy;320"))

	lib, err := db.LoadLibrary(context.Background())
	require.NoError(t, err)
	require.Len(t, lib.Books, 1)
	assert.Equal(t, "The Tower", lib.Books[0].Title)
	assert.Equal(t, "Allen", lib.Books[0].Author)
	assert.Equal(t, models.Fantasy, lib.Books[0].Genre)
	assert.Equal(t, 320, lib.Books[0].Pages)
}

func TestBot_AddBookCommand_BadInput(t *testing.T) {
	bot, db := newTestBot(t)

	bot.handleMessage(command("/addbook The Tower;Allen;fantasy"))
	bot.handleMessage(command("/addbook The Tower;Allen;cookbooks;320"))
	bot.handleMessage(command("/addbook The Tower;Allen;fantasy;lots"))

	lib, err := db.LoadLibrary(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lib.Books)
}

func TestBot_AddUserCommand(t *testing.T) {
	bot, db := newTestBot(t)
	ctx := context.Background()

	bot.handleMessage(command("/adduser alice 150"))
	bot.handleMessage(command("/addbook The Tower;Allen;fantasy;320"))
	bot.handleMessage(command("/lend alice;The Tower"))

	lib, err := db.LoadLibrary(ctx)
	require.NoError(t, err)
	require.Len(t, lib.Archive, 1)
	assert.Equal(t, "alice", lib.Archive[0].User.Name)
	assert.Equal(t, 150, lib.Archive[0].User.ReadPages)
	assert.False(t, lib.Archive[0].Returned())

	bot.handleMessage(command("/return alice;The Tower"))

	lib, err = db.LoadLibrary(ctx)
	require.NoError(t, err)
	require.Len(t, lib.Archive, 1)
	assert.True(t, lib.Archive[0].Returned())
}

func TestBot_IgnoresUnauthorizedUsers(t *testing.T) {
	bot, db := newTestBot(t)

	msg := command("/addbook The Tower;Allen;fantasy;320")
	msg.From.ID = 999

	bot.handleMessage(msg)

	lib, err := db.LoadLibrary(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lib.Books)
}

func TestFormatSpecialists(t *testing.T) {
	alice := &models.User{Name: "alice"}
	bob := &models.User{Name: "bob"}

	text := formatSpecialists(models.Fantasy, map[*models.User]int{bob: 300, alice: 550})

	assert.Contains(t, text, "Specialists in fantasy")
	assert.Contains(t, text, "1. alice - 550 pages")
	assert.Contains(t, text, "2. bob - 300 pages")
}

func TestFormatSpecialists_Empty(t *testing.T) {
	text := formatSpecialists(models.Mystery, nil)
	assert.Equal(t, "No mystery specialists yet.", text)
}

func TestFormatUnreliable(t *testing.T) {
	text := formatUnreliable([]*models.User{{Name: "bob"}, {Name: "alice"}})

	assert.Contains(t, text, "1. alice")
	assert.Contains(t, text, "2. bob")
	assert.Equal(t, "Everyone returns their books on time. 🎉", formatUnreliable(nil))
}

func TestFormatAuthors_ListsEveryGenre(t *testing.T) {
	authors := map[models.Genre]string{
		models.Fantasy: "Allen",
		models.Mystery: "Baker",
	}

	text := formatAuthors(authors)

	assert.Contains(t, text, "fantasy: Allen")
	assert.Contains(t, text, "mystery: Baker")
	for _, genre := range models.Genres() {
		assert.Contains(t, text, genre.String()+":")
	}
}

func TestSplitArgs(t *testing.T) {
	assert.Equal(t, []string{"alice", "The Tower"}, splitArgs("alice; The Tower", 2))
	assert.Nil(t, splitArgs("alice", 2))
	assert.Nil(t, splitArgs("alice;;x", 3))
}
