// Package directory keeps the table of verified guild members.
// models.go describes the user record and the store contract.
package directory

import (
	"context"
	"fmt"
	"strings"

	"rubbergod.cz/discord-bot/internal/common"
)

// Status is the verification state of a user.
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusKicked   Status = "kicked"
	StatusBanned   Status = "banned"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusUnknown, StatusPending, StatusVerified, StatusKicked, StatusBanned}

// ParseStatus accepts exactly one of the status names.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", common.ErrInvalidStatus, s)
}

// User is one row of the directory. Changed is the date of the last
// change as YYYYMMDD.
type User struct {
	DiscordID string `db:"discord_id" gorm:"column:discord_id;primaryKey;size:32"`
	Login     string `db:"login" gorm:"column:login;size:255;index"`
	Group     string `db:"group_name" gorm:"column:group_name;size:32;index"`
	Status    Status `db:"status" gorm:"column:status;size:16;index"`
	Code      string `db:"code" gorm:"column:code;size:32"`
	Comment   string `db:"comment" gorm:"column:comment"`
	Changed   string `db:"changed" gorm:"column:changed;size:8"`
}

func (User) TableName() string { return "users" }

// Email returns the address of u. Logins without "@" get the domain
// configured for their group.
func Email(u User, domains map[string]string) string {
	if u.Login == "" || strings.Contains(u.Login, "@") {
		return u.Login
	}
	if domain, ok := domains[strings.ToUpper(u.Group)]; ok {
		return u.Login + "@" + domain
	}
	return u.Login
}

// Update lists the fields to change. Nil fields are left untouched.
type Update struct {
	Login   *string
	Group   *string
	Status  *Status
	Comment *string
	Changed string
}

// Store is the directory table.
type Store interface {
	// Get returns ErrUserNotFound when there is no row for id.
	Get(ctx context.Context, discordID string) (*User, error)
	GetByLogin(ctx context.Context, login string) (*User, error)
	GetByPrefix(ctx context.Context, prefix string) ([]User, error)
	CountStatus(ctx context.Context, status Status) (int, error)
	CountGroup(ctx context.Context, group string) (int, error)
	FilterStatus(ctx context.Context, status Status) ([]User, error)
	// Add fails with ErrDuplicateUser when the id is taken.
	Add(ctx context.Context, u User) error
	// Update fails with ErrUserNotFound when there is no row for id.
	Update(ctx context.Context, discordID string, u Update) error
	// Delete returns the number of removed rows.
	Delete(ctx context.Context, discordID string) (int, error)
}

// SQLiteModels lists the models the SQLite store migrates.
func SQLiteModels() []any {
	return []any{&User{}}
}
