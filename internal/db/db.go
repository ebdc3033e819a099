package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
            id BIGSERIAL PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            first_name TEXT NOT NULL DEFAULT '',
            last_name TEXT NOT NULL DEFAULT '',
            avatar_path TEXT NOT NULL DEFAULT '',
            bio TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS user_counters (
            user_id BIGINT PRIMARY KEY,
            unread_messages INT NOT NULL DEFAULT 0 CHECK (unread_messages >= 0),
            unread_notifications INT NOT NULL DEFAULT 0 CHECK (unread_notifications >= 0)
        );`,
		`CREATE TABLE IF NOT EXISTS conversations (
            id BIGSERIAL PRIMARY KEY,
            updated_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS conversation_participants (
            conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL,
            unread_count INT NOT NULL DEFAULT 0 CHECK (unread_count >= 0),
            last_read_message_id BIGINT,
            PRIMARY KEY (conversation_id, user_id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_participants_user ON conversation_participants(user_id);`,
		`CREATE TABLE IF NOT EXISTS contacts (
            user_id BIGINT NOT NULL,
            contact_id BIGINT NOT NULL,
            conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            PRIMARY KEY (user_id, contact_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            sender_id BIGINT NOT NULL,
            text TEXT NOT NULL DEFAULT '',
            reply_to BIGINT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);`,
		`CREATE TABLE IF NOT EXISTS message_files (
            message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            path TEXT NOT NULL,
            file_type TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS message_recipients (
            message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL,
            delivered BOOLEAN NOT NULL DEFAULT FALSE,
            read BOOLEAN NOT NULL DEFAULT FALSE,
            liked BOOLEAN NOT NULL DEFAULT FALSE,
            PRIMARY KEY (message_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS undelivered_queue (
            user_id BIGINT NOT NULL,
            conversation_id BIGINT NOT NULL,
            message_id BIGINT NOT NULL,
            queued_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (user_id, message_id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_queue_conversation ON undelivered_queue(conversation_id);`,
		`CREATE TABLE IF NOT EXISTS notifications (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL,
            acting_user_id BIGINT NOT NULL,
            type TEXT NOT NULL,
            path TEXT NOT NULL DEFAULT '',
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS engagements (
            id BIGSERIAL PRIMARY KEY,
            kind TEXT NOT NULL,
            actor_id BIGINT NOT NULL,
            target_user_id BIGINT NOT NULL,
            subject_id BIGINT NOT NULL,
            notification_id BIGINT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (kind, actor_id, subject_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
