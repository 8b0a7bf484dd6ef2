package formatter

import (
	"net/url"
	"strings"

	"github.com/go-telegram/bot/models"
)

// BuildAlertKeyboard creates an inline keyboard linking an alert to the
// dashboard API. It returns nil when no dashboard URL is configured.
func BuildAlertKeyboard(dashboardURL, analysisID string) *models.InlineKeyboardMarkup {
	base := strings.TrimRight(dashboardURL, "/")
	if base == "" || analysisID == "" {
		return nil
	}

	id := url.PathEscape(analysisID)
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Open record", URL: base + "/api/records/" + id},
				{Text: "All Red", URL: base + "/api/records?urgency=Red"},
			},
		},
	}
}
