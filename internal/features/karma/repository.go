// Package karma: repository.go works with the karma, karma_votes and
// karma_messages tables in PostgreSQL.
package karma

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the PostgreSQL Store.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates the karma repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// adjust moves both aggregates of a user by the given deltas, creating the
// row when needed.
func adjust(ctx context.Context, tx pgx.Tx, userID string, received, given int) error {
	query := `
		INSERT INTO karma (user_id, received, given)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET received = karma.received + EXCLUDED.received,
		    given = karma.given + EXCLUDED.given,
		    updated_at = NOW()
	`
	_, err := tx.Exec(ctx, query, userID, received, given)
	return err
}

// move applies delta of one vote: the author receives it, the voter gives it.
func move(ctx context.Context, tx pgx.Tx, authorID, voterID string, delta int) error {
	if err := adjust(ctx, tx, authorID, delta, 0); err != nil {
		return fmt.Errorf("could not update author karma: %w", err)
	}
	if err := adjust(ctx, tx, voterID, 0, delta); err != nil {
		return fmt.Errorf("could not update voter karma: %w", err)
	}
	return nil
}

func (r *Repository) Cast(ctx context.Context, v Vote) (int, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback(ctx)

	var previous int
	err = tx.QueryRow(ctx, `
		SELECT value FROM karma_votes
		WHERE message_id = $1 AND voter_id = $2
		FOR UPDATE
	`, v.MessageID, v.VoterID).Scan(&previous)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		previous = 0
		if _, err := tx.Exec(ctx, `
			INSERT INTO karma_votes (message_id, voter_id, channel_id, author_id, value)
			VALUES ($1, $2, $3, $4, $5)
		`, v.MessageID, v.VoterID, v.ChannelID, v.AuthorID, v.Value); err != nil {
			return 0, false, fmt.Errorf("could not insert vote: %w", err)
		}
	case err != nil:
		return 0, false, fmt.Errorf("could not read vote: %w", err)
	case previous == v.Value:
		return previous, false, nil
	default:
		if _, err := tx.Exec(ctx, `
			UPDATE karma_votes SET value = $3, updated_at = NOW()
			WHERE message_id = $1 AND voter_id = $2
		`, v.MessageID, v.VoterID, v.Value); err != nil {
			return 0, false, fmt.Errorf("could not replace vote: %w", err)
		}
	}

	if err := move(ctx, tx, v.AuthorID, v.VoterID, v.Value-previous); err != nil {
		return 0, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, false, err
	}
	return previous, true, nil
}

func (r *Repository) Retract(ctx context.Context, messageID, voterID string, value int) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var stored int
	var authorID string
	err = tx.QueryRow(ctx, `
		SELECT value, author_id FROM karma_votes
		WHERE message_id = $1 AND voter_id = $2
		FOR UPDATE
	`, messageID, voterID).Scan(&stored, &authorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not read vote: %w", err)
	}
	if stored != value {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM karma_votes WHERE message_id = $1 AND voter_id = $2`, messageID, voterID,
	); err != nil {
		return false, fmt.Errorf("could not delete vote: %w", err)
	}
	if err := move(ctx, tx, authorID, voterID, -stored); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *Repository) ClearMessage(ctx context.Context, messageID string) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT voter_id, author_id, value FROM karma_votes
		WHERE message_id = $1
		FOR UPDATE
	`, messageID)
	if err != nil {
		return 0, fmt.Errorf("could not read votes: %w", err)
	}
	var votes []Vote
	for rows.Next() {
		var v Vote
		if err := rows.Scan(&v.VoterID, &v.AuthorID, &v.Value); err != nil {
			rows.Close()
			return 0, err
		}
		votes = append(votes, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, v := range votes {
		if err := move(ctx, tx, v.AuthorID, v.VoterID, -v.Value); err != nil {
			return 0, err
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM karma_votes WHERE message_id = $1`, messageID); err != nil {
		return 0, fmt.Errorf("could not delete votes: %w", err)
	}
	return len(votes), tx.Commit(ctx)
}

func (r *Repository) OpenMessage(ctx context.Context, messageID, channelID, authorID, openedBy string) error {
	query := `
		INSERT INTO karma_messages (message_id, channel_id, author_id, opened_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, messageID, channelID, authorID, openedBy)
	return err
}

func (r *Repository) IsOpen(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM karma_messages WHERE message_id = $1)`, messageID,
	).Scan(&exists)
	return exists, err
}

func (r *Repository) Give(ctx context.Context, userID string, amount int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := adjust(ctx, tx, userID, amount, 0); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Totals(ctx context.Context, userID string) (Totals, error) {
	t := Totals{UserID: userID}
	err := r.db.QueryRow(ctx, `
		SELECT k.received, k.given,
		       (SELECT COUNT(*) + 1 FROM karma o
		        WHERE o.received > k.received OR (o.received = k.received AND o.user_id < k.user_id)),
		       (SELECT COUNT(*) + 1 FROM karma o
		        WHERE o.given > k.given OR (o.given = k.given AND o.user_id < k.user_id))
		FROM karma k WHERE k.user_id = $1
	`, userID).Scan(&t.Received, &t.Given, &t.ReceivedRank, &t.GivenRank)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("could not read karma: %w", err)
	}
	return t, nil
}

func (r *Repository) Leaderboard(ctx context.Context, column Column, dir Direction, offset, limit int) ([]Entry, error) {
	// column and dir come from enums, never from user input.
	query := fmt.Sprintf(`
		SELECT user_id, %[1]s FROM karma
		ORDER BY %[1]s %[2]s, user_id ASC
		OFFSET $1 LIMIT $2
	`, column, dir)

	rows, err := r.db.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e := Entry{Rank: offset + len(entries) + 1}
		if err := rows.Scan(&e.UserID, &e.Value); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) Tally(ctx context.Context, messageID string) (Tally, error) {
	t := Tally{MessageID: messageID}
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN value > 0 THEN value ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN value < 0 THEN -value ELSE 0 END), 0),
		       COALESCE(SUM(value), 0),
		       COUNT(*)
		FROM karma_votes WHERE message_id = $1
	`, messageID).Scan(&t.Positive, &t.Negative, &t.Total, &t.Voters)
	return t, err
}
