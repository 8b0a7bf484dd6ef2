package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mixelka/mailtriage/pkg/models"
)

// GetMailboxState returns the polling state of a mailbox
func (db *DB) GetMailboxState(ctx context.Context, email, server string) (*models.MailboxState, error) {
	var state models.MailboxState
	query := `SELECT * FROM mailbox_state WHERE email = ? AND server = ?`
	err := db.GetContext(ctx, &state, query, email, server)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mailbox state: %w", err)
	}
	return &state, nil
}

// EnsureMailboxState returns the polling state of a mailbox, creating it
// with lastUID if it does not exist yet
func (db *DB) EnsureMailboxState(ctx context.Context, email, server string, lastUID uint32) (*models.MailboxState, error) {
	now := time.Now()
	query := `
		INSERT OR IGNORE INTO mailbox_state (email, server, last_uid, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(ctx, query, email, server, lastUID, now, now); err != nil {
		return nil, fmt.Errorf("failed to create mailbox state: %w", err)
	}
	return db.GetMailboxState(ctx, email, server)
}

// UpdateMailboxLastUID updates the last processed UID
func (db *DB) UpdateMailboxLastUID(ctx context.Context, id int64, uid uint32) error {
	query := `UPDATE mailbox_state SET last_uid = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, uid, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update last uid: %w", err)
	}
	return nil
}
