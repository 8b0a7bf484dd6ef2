package telegram

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mixelka/mailtriage/internal/database"
	"github.com/mixelka/mailtriage/internal/formatter"
	appmodels "github.com/mixelka/mailtriage/pkg/models"
)

// Sender is the part of the Telegram API the package uses
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Store is the read side of the analysis store
type Store interface {
	CountByUrgency(ctx context.Context) (map[appmodels.Urgency]int, error)
	ListAnalyses(ctx context.Context, filter database.ListFilter) ([]*appmodels.Analysis, error)
}

// Bot answers triage commands in the alert chat
type Bot struct {
	bot       *bot.Bot
	sender    Sender
	store     Store
	formatter *formatter.TelegramFormatter
	chatID    int64
	logger    *slog.Logger
}

// BotDeps dependencies for creating a bot
type BotDeps struct {
	Token     string
	ChatID    int64
	Store     Store
	Formatter *formatter.TelegramFormatter
	Logger    *slog.Logger
}

// NewBot creates a new Telegram bot
func NewBot(deps BotDeps) (*Bot, error) {
	b := &Bot{
		store:     deps.Store,
		formatter: deps.Formatter,
		chatID:    deps.ChatID,
		logger:    deps.Logger.With("component", "telegram_bot"),
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
	}

	tgBot, err := bot.New(deps.Token, opts...)
	if err != nil {
		return nil, err
	}

	b.bot = tgBot
	b.sender = tgBot
	b.registerHandlers()

	return b, nil
}

// Sender returns the underlying API client for notifiers
func (b *Bot) Sender() Sender {
	return b.sender
}

// registerHandlers registers command handlers
func (b *Bot) registerHandlers() {
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, b.handleStart)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, b.handleHelp)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/stats", bot.MatchTypePrefix, b.handleStats)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/recent", bot.MatchTypePrefix, b.handleRecent)
}

// Start starts the bot
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("starting telegram bot")
	b.bot.Start(ctx)
}

// defaultHandler handles unknown messages
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	// Ignore non-message updates and messages without text
	if update.Message == nil {
		return
	}

	// Log unknown commands
	if update.Message.Text != "" && update.Message.Text[0] == '/' {
		b.logger.Debug("unknown command", "text", update.Message.Text)
	}
}

// sendMessage sends a message to a topic
func sendMessage(ctx context.Context, sender Sender, chatID int64, topicID int, text string, keyboard *models.InlineKeyboardMarkup) (*models.Message, error) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}

	if topicID != 0 {
		params.MessageThreadID = topicID
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	return sender.SendMessage(ctx, params)
}
