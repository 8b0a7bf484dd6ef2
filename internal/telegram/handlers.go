package telegram

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mixelka/mailtriage/internal/database"
	appmodels "github.com/mixelka/mailtriage/pkg/models"
)

const (
	defaultRecent = 10
	maxRecent     = 30
)

// allowed reports whether the command came from the alert chat
func (b *Bot) allowed(msg *models.Message) bool {
	if msg == nil {
		return false
	}
	if msg.Chat.ID != b.chatID {
		b.logger.Warn("command from foreign chat ignored", "chat_id", msg.Chat.ID)
		return false
	}
	return true
}

func (b *Bot) reply(ctx context.Context, msg *models.Message, text string) {
	if _, err := sendMessage(ctx, b.sender, msg.Chat.ID, msg.MessageThreadID, text, nil); err != nil {
		b.logger.Error("failed to send reply", "error", err)
	}
}

// handleStart handles /start command
func (b *Bot) handleStart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleHelp(ctx, tgBot, update)
}

// handleHelp handles /help command
func (b *Bot) handleHelp(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if !b.allowed(msg) {
		return
	}

	text := `<b>Email triage bot</b>

Alerts on incoming emails classified as urgent.

<b>Commands:</b>
/stats - counts per urgency
/recent [n] [red|orange|yellow] - latest analyzed emails`

	b.reply(ctx, msg, text)
}

// handleStats handles /stats command
func (b *Bot) handleStats(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if !b.allowed(msg) {
		return
	}

	counts, err := b.store.CountByUrgency(ctx)
	if err != nil {
		b.logger.Error("failed to count analyses", "error", err)
		b.reply(ctx, msg, "Failed to load statistics")
		return
	}

	b.reply(ctx, msg, b.formatter.FormatStats(counts))
}

// handleRecent handles /recent command
// Usage: /recent [n] [urgency]
func (b *Bot) handleRecent(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if !b.allowed(msg) {
		return
	}

	filter := database.ListFilter{Limit: defaultRecent}
	for _, arg := range strings.Fields(msg.Text)[1:] {
		if n, err := strconv.Atoi(arg); err == nil {
			if n <= 0 || n > maxRecent {
				b.reply(ctx, msg, "Count must be between 1 and "+strconv.Itoa(maxRecent))
				return
			}
			filter.Limit = n
			continue
		}
		u, err := appmodels.ParseUrgency(arg)
		if err != nil {
			b.reply(ctx, msg, "Usage: <code>/recent [n] [red|orange|yellow]</code>")
			return
		}
		filter.Urgency = u
	}

	analyses, err := b.store.ListAnalyses(ctx, filter)
	if err != nil {
		b.logger.Error("failed to list analyses", "error", err)
		b.reply(ctx, msg, "Failed to load recent emails")
		return
	}

	b.reply(ctx, msg, b.formatter.FormatRecent(analyses))
}
