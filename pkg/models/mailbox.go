package models

import "time"

// MailboxState tracks IMAP polling progress for one mailbox
type MailboxState struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"`
	Server    string    `db:"server"`   // e.g., imap.gmail.com:993
	LastUID   uint32    `db:"last_uid"` // Last processed email UID
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
