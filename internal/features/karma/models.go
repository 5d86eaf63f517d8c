// Package karma implements reputation voting with reactions.
// models.go describes votes, per-user aggregates and leaderboard views.
package karma

import (
	"context"
	"time"
)

// Vote is one voter's contribution to one message.
type Vote struct {
	MessageID string
	ChannelID string
	AuthorID  string
	VoterID   string
	Value     int
}

// Totals are the aggregates of one user with their leaderboard positions.
// A rank of 0 means the user has no row yet.
type Totals struct {
	UserID       string
	Received     int
	Given        int
	ReceivedRank int
	GivenRank    int
}

// Entry is one leaderboard line.
type Entry struct {
	Rank   int
	UserID string
	Value  int
}

// Tally summarizes the live votes of one message.
type Tally struct {
	MessageID string
	Positive  int
	Negative  int
	Total     int
	Voters    int
}

// Column selects the aggregate a leaderboard is ordered by.
type Column int

const (
	ColumnReceived Column = iota
	ColumnGiven
)

func (c Column) String() string {
	if c == ColumnGiven {
		return "given"
	}
	return "received"
}

// Direction selects the leaderboard order.
type Direction int

const (
	Desc Direction = iota
	Asc
)

func (d Direction) String() string {
	if d == Asc {
		return "ASC"
	}
	return "DESC"
}

// Store persists votes and aggregates. Every mutation is atomic: the vote
// row and both aggregates change together or not at all.
type Store interface {
	// Cast records v. An existing vote with the same value is left alone;
	// a different value is reversed from the aggregates and replaced.
	Cast(ctx context.Context, v Vote) (previous int, changed bool, err error)
	// Retract deletes the vote only when it still has value.
	Retract(ctx context.Context, messageID, voterID string, value int) (bool, error)
	// ClearMessage reverses and deletes every vote on the message.
	ClearMessage(ctx context.Context, messageID string) (int, error)
	OpenMessage(ctx context.Context, messageID, channelID, authorID, openedBy string) error
	IsOpen(ctx context.Context, messageID string) (bool, error)
	// Give adds amount to the received aggregate of userID.
	Give(ctx context.Context, userID string, amount int) error
	Totals(ctx context.Context, userID string) (Totals, error)
	Leaderboard(ctx context.Context, column Column, dir Direction, offset, limit int) ([]Entry, error)
	Tally(ctx context.Context, messageID string) (Tally, error)
}

// Rows used by the SQLite store. Column names match the PostgreSQL schema.

type karmaRow struct {
	UserID    string `gorm:"primaryKey;size:32"`
	Received  int    `gorm:"not null;default:0;index"`
	Given     int    `gorm:"not null;default:0;index"`
	UpdatedAt time.Time
}

func (karmaRow) TableName() string { return "karma" }

type voteRow struct {
	MessageID string `gorm:"primaryKey;size:32"`
	VoterID   string `gorm:"primaryKey;size:32"`
	ChannelID string `gorm:"size:32;not null"`
	AuthorID  string `gorm:"size:32;not null"`
	Value     int    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (voteRow) TableName() string { return "karma_votes" }

type messageRow struct {
	MessageID string `gorm:"primaryKey;size:32"`
	ChannelID string `gorm:"size:32;not null"`
	AuthorID  string `gorm:"size:32;not null"`
	OpenedBy  string `gorm:"size:32;not null"`
	OpenedAt  time.Time
}

func (messageRow) TableName() string { return "karma_messages" }

// SQLiteModels lists the models the SQLite store migrates.
func SQLiteModels() []any {
	return []any{&karmaRow{}, &voteRow{}, &messageRow{}}
}
