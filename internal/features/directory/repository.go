// Package directory: repository.go runs the queries on the users table
// in PostgreSQL. Every method is one statement.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rubbergod.cz/discord-bot/internal/common"
)

const uniqueViolation = "23505"

const userColumns = `discord_id, login, group_name, status, code, comment, changed`

// Repository is the PostgreSQL Store.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.DiscordID, &u.Login, &u.Group, &u.Status, &u.Code, &u.Comment, &u.Changed)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) queryUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *Repository) Get(ctx context.Context, discordID string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE discord_id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, discordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w (discord_id=%s)", common.ErrUserNotFound, discordID)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read user (discord_id=%s): %w", discordID, err)
	}
	return u, nil
}

func (r *Repository) GetByLogin(ctx context.Context, login string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE login = $1 LIMIT 1`
	u, err := scanUser(r.db.QueryRow(ctx, query, login))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w (login=%s)", common.ErrUserNotFound, login)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read user (login=%s): %w", login, err)
	}
	return u, nil
}

func (r *Repository) GetByPrefix(ctx context.Context, prefix string) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE login LIKE $1 ESCAPE '\' ORDER BY login`
	return r.queryUsers(ctx, query, escapeLike(prefix)+"%")
}

func (r *Repository) CountStatus(ctx context.Context, status Status) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE status = $1`, status).Scan(&n)
	return n, err
}

func (r *Repository) CountGroup(ctx context.Context, group string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE group_name = $1`, group).Scan(&n)
	return n, err
}

func (r *Repository) FilterStatus(ctx context.Context, status Status) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE status = $1 ORDER BY discord_id`
	return r.queryUsers(ctx, query, status)
}

func (r *Repository) Add(ctx context.Context, u User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query, u.DiscordID, u.Login, u.Group, u.Status, u.Code, u.Comment, u.Changed)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w (discord_id=%s)", common.ErrDuplicateUser, u.DiscordID)
	}
	if err != nil {
		return fmt.Errorf("could not add user: %w", err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, discordID string, u Update) error {
	var sets []string
	args := []any{discordID}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if u.Login != nil {
		set("login", *u.Login)
	}
	if u.Group != nil {
		set("group_name", *u.Group)
	}
	if u.Status != nil {
		set("status", *u.Status)
	}
	if u.Comment != nil {
		set("comment", *u.Comment)
	}
	if u.Changed != "" {
		set("changed", u.Changed)
	}
	if len(sets) == 0 {
		return nil
	}

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE discord_id = $1`
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("could not update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w (discord_id=%s)", common.ErrUserNotFound, discordID)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, discordID string) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE discord_id = $1`, discordID)
	if err != nil {
		return 0, fmt.Errorf("could not delete user: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// escapeLike makes the LIKE wildcards of s match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
