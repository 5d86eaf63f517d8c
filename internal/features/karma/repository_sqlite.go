package karma

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLiteRepository is the Store used with the embedded database.
type SQLiteRepository struct {
	db    *gorm.DB
	clock func() time.Time
}

func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, clock: time.Now}
}

func (r *SQLiteRepository) adjust(tx *gorm.DB, userID string, received, given int) error {
	now := r.clock().UTC()
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"received":   gorm.Expr("karma.received + ?", received),
			"given":      gorm.Expr("karma.given + ?", given),
			"updated_at": now,
		}),
	}).Create(&karmaRow{UserID: userID, Received: received, Given: given, UpdatedAt: now}).Error
}

func (r *SQLiteRepository) move(tx *gorm.DB, authorID, voterID string, delta int) error {
	if err := r.adjust(tx, authorID, delta, 0); err != nil {
		return fmt.Errorf("could not update author karma: %w", err)
	}
	if err := r.adjust(tx, voterID, 0, delta); err != nil {
		return fmt.Errorf("could not update voter karma: %w", err)
	}
	return nil
}

func lockVote(tx *gorm.DB, messageID, voterID string) (*voteRow, error) {
	var row voteRow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("message_id = ? AND voter_id = ?", messageID, voterID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read vote: %w", err)
	}
	return &row, nil
}

func (r *SQLiteRepository) Cast(ctx context.Context, v Vote) (int, bool, error) {
	var previous int
	var changed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockVote(tx, v.MessageID, v.VoterID)
		if err != nil {
			return err
		}
		if row == nil {
			row = &voteRow{
				MessageID: v.MessageID,
				VoterID:   v.VoterID,
				ChannelID: v.ChannelID,
				AuthorID:  v.AuthorID,
				Value:     v.Value,
			}
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("could not insert vote: %w", err)
			}
		} else {
			previous = row.Value
			if previous == v.Value {
				return nil
			}
			if err := tx.Model(&voteRow{}).
				Where("message_id = ? AND voter_id = ?", v.MessageID, v.VoterID).
				Update("value", v.Value).Error; err != nil {
				return fmt.Errorf("could not replace vote: %w", err)
			}
		}
		changed = true
		return r.move(tx, v.AuthorID, v.VoterID, v.Value-previous)
	})
	if err != nil {
		return 0, false, err
	}
	return previous, changed, nil
}

func (r *SQLiteRepository) Retract(ctx context.Context, messageID, voterID string, value int) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockVote(tx, messageID, voterID)
		if err != nil || row == nil || row.Value != value {
			return err
		}
		if err := tx.Where("message_id = ? AND voter_id = ?", messageID, voterID).
			Delete(&voteRow{}).Error; err != nil {
			return fmt.Errorf("could not delete vote: %w", err)
		}
		removed = true
		return r.move(tx, row.AuthorID, row.VoterID, -row.Value)
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (r *SQLiteRepository) ClearMessage(ctx context.Context, messageID string) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []voteRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("message_id = ?", messageID).
			Find(&rows).Error; err != nil {
			return fmt.Errorf("could not read votes: %w", err)
		}
		for _, row := range rows {
			if err := r.move(tx, row.AuthorID, row.VoterID, -row.Value); err != nil {
				return err
			}
		}
		if err := tx.Where("message_id = ?", messageID).Delete(&voteRow{}).Error; err != nil {
			return fmt.Errorf("could not delete votes: %w", err)
		}
		count = len(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SQLiteRepository) OpenMessage(ctx context.Context, messageID, channelID, authorID, openedBy string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&messageRow{
			MessageID: messageID,
			ChannelID: channelID,
			AuthorID:  authorID,
			OpenedBy:  openedBy,
			OpenedAt:  r.clock().UTC(),
		}).Error
}

func (r *SQLiteRepository) IsOpen(ctx context.Context, messageID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&messageRow{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	return count > 0, err
}

func (r *SQLiteRepository) Give(ctx context.Context, userID string, amount int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.adjust(tx, userID, amount, 0)
	})
}

func (r *SQLiteRepository) rank(ctx context.Context, column string, value int, userID string) (int, error) {
	var ahead int64
	err := r.db.WithContext(ctx).Model(&karmaRow{}).
		Where(fmt.Sprintf("%[1]s > ? OR (%[1]s = ? AND user_id < ?)", column), value, value, userID).
		Count(&ahead).Error
	return int(ahead) + 1, err
}

func (r *SQLiteRepository) Totals(ctx context.Context, userID string) (Totals, error) {
	t := Totals{UserID: userID}
	var row karmaRow
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("could not read karma: %w", err)
	}
	t.Received, t.Given = row.Received, row.Given
	if t.ReceivedRank, err = r.rank(ctx, "received", row.Received, userID); err != nil {
		return t, err
	}
	if t.GivenRank, err = r.rank(ctx, "given", row.Given, userID); err != nil {
		return t, err
	}
	return t, nil
}

func (r *SQLiteRepository) Leaderboard(ctx context.Context, column Column, dir Direction, offset, limit int) ([]Entry, error) {
	var rows []karmaRow
	err := r.db.WithContext(ctx).
		Order(fmt.Sprintf("%s %s", column, dir)).
		Order("user_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		value := row.Received
		if column == ColumnGiven {
			value = row.Given
		}
		entries = append(entries, Entry{Rank: offset + i + 1, UserID: row.UserID, Value: value})
	}
	return entries, nil
}

func (r *SQLiteRepository) Tally(ctx context.Context, messageID string) (Tally, error) {
	t := Tally{MessageID: messageID}
	var rows []voteRow
	if err := r.db.WithContext(ctx).Where("message_id = ?", messageID).Find(&rows).Error; err != nil {
		return t, err
	}
	for _, row := range rows {
		if row.Value > 0 {
			t.Positive += row.Value
		} else {
			t.Negative -= row.Value
		}
		t.Total += row.Value
	}
	t.Voters = len(rows)
	return t, nil
}
