package formatter

import (
	"fmt"
	"strings"

	"github.com/mixelka/mailtriage/pkg/models"
)

// TelegramFormatter formats triage results for Telegram
type TelegramFormatter struct {
	maxLength int
}

// NewTelegramFormatter creates a new Telegram formatter
func NewTelegramFormatter() *TelegramFormatter {
	return &TelegramFormatter{
		maxLength: 4000, // Leave room for markup
	}
}

// Badge returns the colored marker for an urgency
func Badge(u models.Urgency) string {
	switch u {
	case models.UrgencyRed:
		return "🔴"
	case models.UrgencyOrange:
		return "🟠"
	default:
		return "🟡"
	}
}

// FormatAlert formats an analysis as an alert message
func (f *TelegramFormatter) FormatAlert(a *models.Analysis) string {
	var sb strings.Builder

	rec := a.Record
	sb.WriteString(fmt.Sprintf("%s <b>%s threat</b> (risk %d/10)\n\n", Badge(rec.Urgency), rec.Urgency.Priority(), a.RiskScore))
	sb.WriteString(fmt.Sprintf("<b>From:</b> %s\n", f.escapeHTML(a.DisplayFrom())))
	sb.WriteString(fmt.Sprintf("<b>Subject:</b> %s\n", f.escapeHTML(a.DisplaySubject())))
	if !a.EmailDate.IsZero() {
		sb.WriteString(fmt.Sprintf("<b>Date:</b> %s\n", a.EmailDate.Format("02.01.2006 15:04")))
	}
	sb.WriteString(fmt.Sprintf("<b>Similarity:</b> %.2f\n", rec.Similarity))

	if len(a.MatchedKeywords) > 0 {
		sb.WriteString("<b>Triggers:</b> ")
		for _, kw := range a.MatchedKeywords {
			sb.WriteString(fmt.Sprintf("<code>%s</code> ", f.escapeHTML(kw)))
		}
		sb.WriteString("\n")
	}

	if len(a.Attachments) > 0 {
		names := make([]string, 0, len(a.Attachments))
		for _, att := range a.Attachments {
			names = append(names, f.escapeHTML(att.Filename))
		}
		sb.WriteString(fmt.Sprintf("<b>Attachments:</b> %s\n", strings.Join(names, ", ")))
	}
	sb.WriteString("\n")

	sb.WriteString("<b>Summary:</b>\n")
	summary := f.truncate(rec.Summary, f.maxLength-sb.Len()-50)
	sb.WriteString(f.escapeHTML(summary))

	return sb.String()
}

// FormatStats formats urgency counts
func (f *TelegramFormatter) FormatStats(counts map[models.Urgency]int) string {
	var sb strings.Builder

	total := 0
	for _, n := range counts {
		total += n
	}

	sb.WriteString(fmt.Sprintf("<b>Analyzed emails:</b> %d\n\n", total))
	for _, u := range models.Urgencies {
		sb.WriteString(fmt.Sprintf("%s %s: %d\n", Badge(u), u.Priority(), counts[u]))
	}
	return sb.String()
}

// FormatRecent formats a short list of analyses, one line each
func (f *TelegramFormatter) FormatRecent(analyses []*models.Analysis) string {
	if len(analyses) == 0 {
		return "No analyzed emails yet"
	}

	var sb strings.Builder
	sb.WriteString("<b>Recent emails:</b>\n\n")
	for _, a := range analyses {
		line := fmt.Sprintf("%s %s | %s\n",
			Badge(a.Record.Urgency),
			f.escapeHTML(f.clip(a.DisplaySubject(), 60)),
			f.escapeHTML(f.clip(a.DisplayFrom(), 40)),
		)
		if sb.Len()+len(line) > f.maxLength {
			break
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// escapeHTML escapes HTML special characters for Telegram
func (f *TelegramFormatter) escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// truncate truncates text to maxLen characters
func (f *TelegramFormatter) truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 100
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "\n\n... (summary truncated)"
}

func (f *TelegramFormatter) clip(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
