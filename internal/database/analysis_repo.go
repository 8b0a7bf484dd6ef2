package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mixelka/mailtriage/pkg/models"
)

// ErrNotFound is returned when a record is not found
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned when trying to insert a duplicate record
var ErrAlreadyExists = errors.New("record already exists")

// analysisRow is the flattened analyses table row. List columns hold JSON.
type analysisRow struct {
	ID              string    `db:"id"`
	Source          string    `db:"source"`
	ContentHash     string    `db:"content_hash"`
	MessageID       string    `db:"message_id"`
	EmailDate       time.Time `db:"email_date"`
	FileSize        int64     `db:"file_size"`
	Subject         string    `db:"subject"`
	FromAddr        string    `db:"from_addr"`
	BodyText        string    `db:"body_text"`
	Entities        string    `db:"entities"`
	Similarity      float64   `db:"similarity"`
	Summary         string    `db:"summary"`
	Urgency         string    `db:"urgency"`
	Attachments     string    `db:"attachments"`
	MatchedKeywords string    `db:"matched_keywords"`
	RiskScore       int       `db:"risk_score"`
	Warnings        string    `db:"warnings"`
	CreatedAt       time.Time `db:"created_at"`
	AnalyzedAt      time.Time `db:"analyzed_at"`
}

// ListFilter narrows ListAnalyses
type ListFilter struct {
	Urgency models.Urgency // empty for all
	Query   string         // case-insensitive match on subject, sender or summary
	Limit   int            // 0 for no limit
}

// CreateAnalysis stores an analysis. An email with the same content hash
// is stored only once; a repeat returns ErrAlreadyExists.
func (db *DB) CreateAnalysis(ctx context.Context, a *models.Analysis) error {
	row, err := toRow(a)
	if err != nil {
		return err
	}

	query := `
		INSERT OR IGNORE INTO analyses (id, source, content_hash, message_id, email_date, file_size, subject, from_addr, body_text, entities, similarity, summary, urgency, attachments, matched_keywords, risk_score, warnings, created_at, analyzed_at)
		VALUES (:id, :source, :content_hash, :message_id, :email_date, :file_size, :subject, :from_addr, :body_text, :entities, :similarity, :summary, :urgency, :attachments, :matched_keywords, :risk_score, :warnings, :created_at, :analyzed_at)
	`
	result, err := db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}

	// Check if row was actually inserted (not ignored due to duplicate)
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// GetAnalysis returns an analysis by ID
func (db *DB) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	var row analysisRow
	query := `SELECT * FROM analyses WHERE id = ?`
	err := db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return fromRow(&row)
}

// ListAnalyses returns stored analyses, most recently created first
func (db *DB) ListAnalyses(ctx context.Context, filter ListFilter) ([]*models.Analysis, error) {
	var (
		where []string
		args  []any
	)
	if filter.Urgency != "" {
		where = append(where, "urgency = ?")
		args = append(args, string(filter.Urgency))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + escapeLike(strings.ToLower(q)) + "%"
		where = append(where, `(LOWER(subject) LIKE ? ESCAPE '\' OR LOWER(from_addr) LIKE ? ESCAPE '\' OR LOWER(summary) LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}

	query := `SELECT * FROM analyses`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, source ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []analysisRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	analyses := make([]*models.Analysis, 0, len(rows))
	for i := range rows {
		a, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	return analyses, nil
}

// CountByUrgency returns the number of stored analyses per urgency. Every
// urgency is present in the result.
func (db *DB) CountByUrgency(ctx context.Context) (map[models.Urgency]int, error) {
	var rows []struct {
		Urgency string `db:"urgency"`
		Count   int    `db:"count"`
	}
	query := `SELECT urgency, COUNT(*) AS count FROM analyses GROUP BY urgency`
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count analyses: %w", err)
	}

	counts := make(map[models.Urgency]int, len(models.Urgencies))
	for _, u := range models.Urgencies {
		counts[u] = 0
	}
	for _, r := range rows {
		counts[models.Urgency(r.Urgency)] = r.Count
	}
	return counts, nil
}

// DeleteAnalysis deletes an analysis
func (db *DB) DeleteAnalysis(ctx context.Context, id string) error {
	query := `DELETE FROM analyses WHERE id = ?`
	result, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func toRow(a *models.Analysis) (*analysisRow, error) {
	entities, err := json.Marshal(nonNil(a.Record.Entities))
	if err != nil {
		return nil, fmt.Errorf("failed to encode entities: %w", err)
	}
	attachments := a.Attachments
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	attachmentsJSON, err := json.Marshal(attachments)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attachments: %w", err)
	}
	keywords, err := json.Marshal(nonNil(a.MatchedKeywords))
	if err != nil {
		return nil, fmt.Errorf("failed to encode keywords: %w", err)
	}
	warnings, err := json.Marshal(nonNil(a.Warnings))
	if err != nil {
		return nil, fmt.Errorf("failed to encode warnings: %w", err)
	}

	return &analysisRow{
		ID:              a.ID,
		Source:          a.Source,
		ContentHash:     a.ContentHash,
		MessageID:       a.MessageID,
		EmailDate:       a.EmailDate.UTC(),
		FileSize:        a.FileSize,
		Subject:         a.Record.Subject,
		FromAddr:        a.Record.From,
		BodyText:        a.Record.BodyText,
		Entities:        string(entities),
		Similarity:      a.Record.Similarity,
		Summary:         a.Record.Summary,
		Urgency:         string(a.Record.Urgency),
		Attachments:     string(attachmentsJSON),
		MatchedKeywords: string(keywords),
		RiskScore:       a.RiskScore,
		Warnings:        string(warnings),
		CreatedAt:       a.CreatedAt.UTC(),
		AnalyzedAt:      a.AnalyzedAt.UTC(),
	}, nil
}

func fromRow(row *analysisRow) (*models.Analysis, error) {
	a := &models.Analysis{
		ID:          row.ID,
		Source:      row.Source,
		ContentHash: row.ContentHash,
		MessageID:   row.MessageID,
		EmailDate:   row.EmailDate,
		FileSize:    row.FileSize,
		RiskScore:   row.RiskScore,
		CreatedAt:   row.CreatedAt,
		AnalyzedAt:  row.AnalyzedAt,
		Record: models.EmailRecord{
			Subject:    row.Subject,
			From:       row.FromAddr,
			BodyText:   row.BodyText,
			Similarity: row.Similarity,
			Summary:    row.Summary,
			Urgency:    models.Urgency(row.Urgency),
		},
	}

	if err := json.Unmarshal([]byte(row.Entities), &a.Record.Entities); err != nil {
		return nil, fmt.Errorf("failed to decode entities of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Attachments), &a.Attachments); err != nil {
		return nil, fmt.Errorf("failed to decode attachments of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.MatchedKeywords), &a.MatchedKeywords); err != nil {
		return nil, fmt.Errorf("failed to decode keywords of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Warnings), &a.Warnings); err != nil {
		return nil, fmt.Errorf("failed to decode warnings of %s: %w", row.ID, err)
	}
	if len(a.Warnings) == 0 {
		a.Warnings = nil
	}
	return a, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
