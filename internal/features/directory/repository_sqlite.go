package directory

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"rubbergod.cz/discord-bot/internal/common"
)

// SQLiteRepository is the Store used with the embedded database.
type SQLiteRepository struct {
	db *gorm.DB
}

func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) take(ctx context.Context, what string, query string, args ...any) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).Where(query, args...).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w (%s)", common.ErrUserNotFound, what)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read user (%s): %w", what, err)
	}
	return &u, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, discordID string) (*User, error) {
	return r.take(ctx, "discord_id="+discordID, "discord_id = ?", discordID)
}

func (r *SQLiteRepository) GetByLogin(ctx context.Context, login string) (*User, error) {
	return r.take(ctx, "login="+login, "login = ?", login)
}

func (r *SQLiteRepository) GetByPrefix(ctx context.Context, prefix string) ([]User, error) {
	var users []User
	err := r.db.WithContext(ctx).
		Where(`login LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%").
		Order("login").
		Find(&users).Error
	return users, err
}

func (r *SQLiteRepository) count(ctx context.Context, query string, arg any) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&User{}).Where(query, arg).Count(&n).Error
	return int(n), err
}

func (r *SQLiteRepository) CountStatus(ctx context.Context, status Status) (int, error) {
	return r.count(ctx, "status = ?", string(status))
}

func (r *SQLiteRepository) CountGroup(ctx context.Context, group string) (int, error) {
	return r.count(ctx, "group_name = ?", group)
}

func (r *SQLiteRepository) FilterStatus(ctx context.Context, status Status) ([]User, error) {
	var users []User
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("discord_id").
		Find(&users).Error
	return users, err
}

func (r *SQLiteRepository) Add(ctx context.Context, u User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&User{}).Where("discord_id = ?", u.DiscordID).Count(&n).Error; err != nil {
			return fmt.Errorf("could not check user: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w (discord_id=%s)", common.ErrDuplicateUser, u.DiscordID)
		}
		if err := tx.Create(&u).Error; err != nil {
			return fmt.Errorf("could not add user: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) Update(ctx context.Context, discordID string, u Update) error {
	values := map[string]any{}
	if u.Login != nil {
		values["login"] = *u.Login
	}
	if u.Group != nil {
		values["group_name"] = *u.Group
	}
	if u.Status != nil {
		values["status"] = string(*u.Status)
	}
	if u.Comment != nil {
		values["comment"] = *u.Comment
	}
	if u.Changed != "" {
		values["changed"] = u.Changed
	}
	if len(values) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).Model(&User{}).Where("discord_id = ?", discordID).Updates(values)
	if result.Error != nil {
		return fmt.Errorf("could not update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w (discord_id=%s)", common.ErrUserNotFound, discordID)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, discordID string) (int, error) {
	result := r.db.WithContext(ctx).Where("discord_id = ?", discordID).Delete(&User{})
	if result.Error != nil {
		return 0, fmt.Errorf("could not delete user: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}
