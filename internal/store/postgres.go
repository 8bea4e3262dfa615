// Package store implements persistence on Postgres. Every usage-ledger
// mutation is a single guarded UPDATE so concurrent jobs for the same user
// can never lose updates; cross-row steps (admission, upgrade) run inside
// transactions.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	id                  UUID PRIMARY KEY,
	user_id             TEXT NOT NULL,
	plan_id             UUID NOT NULL,
	total_limit_minutes DOUBLE PRECISION NOT NULL,
	used_minutes        DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (used_minutes >= 0),
	is_paid             BOOLEAN NOT NULL DEFAULT FALSE,
	is_active           BOOLEAN NOT NULL DEFAULT TRUE,
	start_date          TIMESTAMPTZ NOT NULL DEFAULT now(),
	end_date            TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS subscriptions_active_user_idx
	ON subscriptions (user_id) WHERE is_active;

CREATE TABLE IF NOT EXISTS transcription_jobs (
	id                     UUID PRIMARY KEY,
	user_id                TEXT NOT NULL,
	audio_file_key         TEXT NOT NULL UNIQUE,
	duration_seconds       INTEGER NOT NULL,
	duration_text          TEXT NOT NULL,
	usage_minutes          DOUBLE PRECISION NOT NULL,
	status                 TEXT NOT NULL,
	transcription_file_key TEXT,
	transcription_text     TEXT,
	error                  TEXT,
	quota_deducted         BOOLEAN NOT NULL DEFAULT TRUE,
	priority               BIGINT NOT NULL DEFAULT 0,
	submission_index       BIGINT NOT NULL DEFAULT 0,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transcription_errors (
	id              UUID PRIMARY KEY,
	job_id          UUID NOT NULL,
	user_id         TEXT NOT NULL,
	error_message   TEXT NOT NULL,
	stack_trace     TEXT,
	additional_data TEXT,
	unrecoverable   BOOLEAN NOT NULL DEFAULT TRUE,
	marked_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS plans (
	id                  UUID PRIMARY KEY,
	name                TEXT NOT NULL UNIQUE,
	description         TEXT,
	total_limit_minutes DOUBLE PRECISION NOT NULL,
	price_cents         BIGINT NOT NULL DEFAULT 0,
	currency            TEXT NOT NULL DEFAULT 'usd',
	is_paid             BOOLEAN NOT NULL DEFAULT FALSE,
	is_active           BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS payments (
	id                  UUID PRIMARY KEY,
	user_id             TEXT NOT NULL,
	plan_id             UUID NOT NULL,
	provider_session_id TEXT NOT NULL UNIQUE,
	amount_cents        BIGINT NOT NULL,
	currency            TEXT NOT NULL,
	status              TEXT NOT NULL,
	error               TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates all tables and indexes if they do not exist.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
