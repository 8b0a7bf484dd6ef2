package models

import (
	"fmt"
	"strings"
	"time"
)

// Urgency is the triage priority assigned to an email
type Urgency string

const (
	UrgencyRed    Urgency = "Red"    // critical
	UrgencyOrange Urgency = "Orange" // medium
	UrgencyYellow Urgency = "Yellow" // low
)

// Urgencies lists all labels from most to least urgent
var Urgencies = []Urgency{UrgencyRed, UrgencyOrange, UrgencyYellow}

// ParseUrgency parses a label case-insensitively
func ParseUrgency(s string) (Urgency, error) {
	for _, u := range Urgencies {
		if strings.EqualFold(s, string(u)) {
			return u, nil
		}
	}
	return "", fmt.Errorf("unknown urgency %q", s)
}

// Rank orders urgencies, higher is more urgent
func (u Urgency) Rank() int {
	switch u {
	case UrgencyRed:
		return 3
	case UrgencyOrange:
		return 2
	case UrgencyYellow:
		return 1
	default:
		return 0
	}
}

// Priority returns the dashboard label for the urgency
func (u Urgency) Priority() string {
	switch u {
	case UrgencyRed:
		return "CRITICAL"
	case UrgencyOrange:
		return "MEDIUM"
	case UrgencyYellow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// EmailRecord is the per-email output consumed by the dashboard and report
// generators. The field set is fixed.
type EmailRecord struct {
	Subject    string   `json:"subject"`
	From       string   `json:"from"`
	BodyText   string   `json:"body_text"`
	Entities   []string `json:"entities"`
	Similarity float64  `json:"similarity"`
	Summary    string   `json:"summary"`
	Urgency    Urgency  `json:"urgency"`
}

// Attachment describes a file attached to an email
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Analysis is an EmailRecord together with where it came from
type Analysis struct {
	ID              string       `json:"id"`
	Source          string       `json:"source"`       // file name, imap:<uid> or mbox:<path>#<n>
	ContentHash     string       `json:"content_hash"` // sha256 of the raw message
	MessageID       string       `json:"message_id"`
	EmailDate       time.Time    `json:"email_date"`
	FileSize        int64        `json:"file_size"`
	CreatedAt       time.Time    `json:"created_at"`
	Attachments     []Attachment `json:"attachments"`
	MatchedKeywords []string     `json:"matched_keywords"`
	RiskScore       int          `json:"risk_score"`
	Warnings        []string     `json:"warnings,omitempty"`
	AnalyzedAt      time.Time    `json:"analyzed_at"`

	Record EmailRecord `json:"record"`
}

// DisplaySubject returns the subject or a placeholder
func (a *Analysis) DisplaySubject() string {
	if a.Record.Subject == "" {
		return "No Subject"
	}
	return a.Record.Subject
}

// DisplayFrom returns the sender or a placeholder
func (a *Analysis) DisplayFrom() string {
	if a.Record.From == "" {
		return "Unknown Sender"
	}
	return a.Record.From
}
