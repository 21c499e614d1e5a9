// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors, the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-board-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and adapters.
var ErrNotFound = gorm.ErrRecordNotFound

// newID returns a fresh UUID string primary key.
func newID() string { return uuid.NewString() }

// UpsertUser creates the user on first contact or refreshes their identity
// fields and LastSeenAt on subsequent /start commands. The phone, admin, and
// blocked flags are never touched here.
func UpsertUser(ctx context.Context, db *gorm.DB, telegramID int64, firstName, lastName, login string) (*domain.User, error) {
	now := time.Now().UTC()
	var u domain.User
	err := db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&u).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"first_name":   firstName,
			"last_name":    lastName,
			"login":        login,
			"last_seen_at": now,
		}
		if uerr := db.WithContext(ctx).Model(&u).Updates(updates).Error; uerr != nil {
			return nil, uerr
		}
		u.FirstName, u.LastName, u.Login, u.LastSeenAt = firstName, lastName, login, now
		return &u, nil
	case err == gorm.ErrRecordNotFound:
		u = domain.User{
			ID:         newID(),
			TelegramID: telegramID,
			FirstName:  firstName,
			LastName:   lastName,
			Login:      login,
			LastSeenAt: now,
			CreatedAt:  now,
		}
		if cerr := db.WithContext(ctx).Create(&u).Error; cerr != nil {
			return nil, cerr
		}
		return &u, nil
	default:
		return nil, err
	}
}

// GetUserByTelegramID fetches a user by their platform id, or ErrNotFound.
func GetUserByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by primary key, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUserPhone stores the contact phone captured via the share-contact flow.
// Returns ErrNotFound when no user row exists for the telegram id.
func SetUserPhone(ctx context.Context, db *gorm.DB, telegramID int64, phone string) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("telegram_id = ?", telegramID).
		Update("phone", phone)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListModerators returns all non-blocked users flagged as moderators.
func ListModerators(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Where("is_admin = ? AND is_blocked = ?", true, false).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
