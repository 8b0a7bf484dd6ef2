package database

// migrations are applied in order; never edit one that has shipped
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS analyses (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    message_id TEXT NOT NULL DEFAULT '',
    email_date DATETIME,
    file_size INTEGER NOT NULL DEFAULT 0,
    subject TEXT NOT NULL DEFAULT '',
    from_addr TEXT NOT NULL DEFAULT '',
    body_text TEXT NOT NULL DEFAULT '',
    entities TEXT NOT NULL DEFAULT '[]',
    similarity REAL NOT NULL DEFAULT 0,
    summary TEXT NOT NULL DEFAULT '',
    urgency TEXT NOT NULL,
    attachments TEXT NOT NULL DEFAULT '[]',
    matched_keywords TEXT NOT NULL DEFAULT '[]',
    risk_score INTEGER NOT NULL DEFAULT 0,
    warnings TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME NOT NULL,
    analyzed_at DATETIME NOT NULL,
    UNIQUE(content_hash)
);

CREATE TABLE IF NOT EXISTS mailbox_state (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL,
    server TEXT NOT NULL,
    last_uid INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(email, server)
);

CREATE INDEX IF NOT EXISTS idx_analyses_urgency ON analyses(urgency);
CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);
`,
	`
CREATE INDEX IF NOT EXISTS idx_analyses_source ON analyses(source);
`,
}
