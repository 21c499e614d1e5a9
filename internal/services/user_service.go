// Package services: UserService
//
// This file implements account handling: /start registration, which binds a
// persisted user to the chat's session, and contact capture, which stores the
// phone number Telegram shares through the request-contact button.
package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/go-board-bot/internal/domain"
	"github.com/tbourn/go-board-bot/internal/repo"
	"github.com/tbourn/go-board-bot/internal/session"
	"github.com/tbourn/go-board-bot/internal/sysutil"
)

// UserRepo defines the repository contract required by UserService.
type UserRepo interface {
	// UpsertUser creates the user on first contact or refreshes the mutable
	// profile fields on subsequent ones.
	UpsertUser(ctx context.Context, db *gorm.DB, telegramID int64, firstName, lastName, login string) (*domain.User, error)

	// SetUserPhone stores the shared contact number.
	SetUserPhone(ctx context.Context, db *gorm.DB, telegramID int64, phone string) error

	// GetUserByTelegramID fetches a user by their Telegram account id.
	GetUserByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*domain.User, error)
}

// UserService manages registration and the session binding of users.
type UserService struct {
	DB       *gorm.DB
	Repo     UserRepo
	Sessions *session.Store
	Batches  *BatchCollector
	Notifier *Notifier
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, r UserRepo, st *session.Store, bc *BatchCollector, n *Notifier) *UserService {
	return &UserService{DB: db, Repo: r, Sessions: st, Batches: bc, Notifier: n}
}

// Register handles /start: it upserts the user, binds them to the chat's
// session, discards any in-progress draft, and shows the main menu. Starting
// over is always safe; it is also the documented way out of a broken state.
func (s *UserService) Register(ctx context.Context, chatID, telegramID int64, firstName, lastName, login string) error {
	u, err := s.Repo.UpsertUser(ctx, s.DB, telegramID, firstName, lastName, login)
	if err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	s.Sessions.With(chatID, func(sess *session.Session) {
		s.Batches.CancelFor(sess)
		sess.ResetDraft()
		sess.UserID = u.ID
		sess.AwaitingReasonAdID = ""
	})
	s.Notifier.Menu(ctx, chatID, sysutil.FirstNonEmpty(u.FirstName, u.Login), u.IsAdmin)
	return nil
}

// SaveContact stores the phone number from a shared contact and confirms.
func (s *UserService) SaveContact(ctx context.Context, chatID, telegramID int64, phone string) error {
	if err := s.Repo.SetUserPhone(ctx, s.DB, telegramID, phone); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.Notifier.NotAuthenticated(ctx, chatID)
			return ErrNotAuthenticated
		}
		return fmt.Errorf("save contact: %w", err)
	}
	u, err := s.Repo.GetUserByTelegramID(ctx, s.DB, telegramID)
	if err != nil {
		return fmt.Errorf("load user after contact: %w", err)
	}
	s.Sessions.With(chatID, func(sess *session.Session) {
		sess.UserID = u.ID
	})
	s.Notifier.PhoneSaved(ctx, chatID, u.IsAdmin)
	return nil
}
