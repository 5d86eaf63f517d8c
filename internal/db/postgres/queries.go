// Package postgres: queries.go holds the migration runner and the
// embedded schema.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ExecMigrationSQL runs one migration inside a transaction and records its
// version. Already applied versions are skipped.
func ExecMigrationSQL(ctx context.Context, pool *pgxpool.Pool, version int, sql string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("could not check migration %d: %w", version, err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("migration %d failed: %w", version, err)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return fmt.Errorf("could not record migration %d: %w", version, err)
	}

	return tx.Commit(ctx)
}

var migrations = []struct {
	version int
	sql     string
}{
	{1, migration001Users},
	{2, migration002Karma},
}

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
	discord_id  VARCHAR(32) PRIMARY KEY,
	login       VARCHAR(255) NOT NULL DEFAULT '',
	group_name  VARCHAR(32)  NOT NULL DEFAULT '',
	status      VARCHAR(16)  NOT NULL DEFAULT 'unknown',
	code        VARCHAR(32)  NOT NULL DEFAULT '',
	comment     TEXT         NOT NULL DEFAULT '',
	changed     VARCHAR(8)   NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_users_login ON users(login);
CREATE INDEX IF NOT EXISTS idx_users_status ON users(status);
CREATE INDEX IF NOT EXISTS idx_users_group ON users(group_name);
`

var migration002Karma = `
CREATE TABLE IF NOT EXISTS karma (
	user_id    VARCHAR(32) PRIMARY KEY,
	received   BIGINT NOT NULL DEFAULT 0,
	given      BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_karma_received ON karma(received, user_id);
CREATE INDEX IF NOT EXISTS idx_karma_given ON karma(given, user_id);

CREATE TABLE IF NOT EXISTS karma_votes (
	message_id VARCHAR(32) NOT NULL,
	voter_id   VARCHAR(32) NOT NULL,
	channel_id VARCHAR(32) NOT NULL,
	author_id  VARCHAR(32) NOT NULL,
	value      INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
	PRIMARY KEY (message_id, voter_id)
);

CREATE TABLE IF NOT EXISTS karma_messages (
	message_id VARCHAR(32) PRIMARY KEY,
	channel_id VARCHAR(32) NOT NULL,
	author_id  VARCHAR(32) NOT NULL,
	opened_by  VARCHAR(32) NOT NULL,
	opened_at  TIMESTAMP NOT NULL DEFAULT NOW()
);
`
