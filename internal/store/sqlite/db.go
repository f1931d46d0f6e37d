// Package sqlite is the local history cache. Conversations and fetched
// message history are persisted so a reopened client renders instantly;
// the backend remains the source of truth and every cached row is
// overwritten by the next successful fetch.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens the cache database at the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// Migrate creates the cache schema. Idempotent.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY,
			other_user_id INTEGER NOT NULL,
			other_name TEXT NOT NULL,
			other_avatar TEXT NOT NULL DEFAULT '',
			preview_content TEXT NOT NULL DEFAULT '',
			preview_kind TEXT NOT NULL DEFAULT 'text',
			preview_file_name TEXT NOT NULL DEFAULT '',
			preview_status TEXT NOT NULL DEFAULT 'sent',
			unread_count INTEGER NOT NULL DEFAULT 0,
			last_message_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY,
			conversation_id INTEGER NOT NULL,
			sender_id INTEGER NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL DEFAULT 'text',
			attachment_url TEXT NOT NULL DEFAULT '',
			attachment_name TEXT NOT NULL DEFAULT '',
			reply_to_id INTEGER NOT NULL DEFAULT 0,
			reply_sender_id INTEGER NOT NULL DEFAULT 0,
			reply_content TEXT NOT NULL DEFAULT '',
			edited BOOLEAN NOT NULL DEFAULT 0,
			deleted BOOLEAN NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'sent',
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
