// Package services: SubmissionService
//
// This file implements the submission conversation: a per-chat state machine
// that walks the user through title, description, price, category, photos,
// and a final confirmation. Every event handler runs under the chat's
// session lock, so a chat's events are applied one at a time in arrival
// order. Expected user mistakes (a bad price, an overlong title) re-prompt
// and return nil; only infrastructure failures surface as errors.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-board-bot/internal/chat"
	"github.com/tbourn/go-board-bot/internal/domain"
	"github.com/tbourn/go-board-bot/internal/repo"
	"github.com/tbourn/go-board-bot/internal/session"
)

// Field length caps, counted in runes.
const (
	MaxTitleRunes       = 255
	MaxDescriptionRunes = 1000
)

// SubmissionRepo defines the repository contract required by SubmissionService.
type SubmissionRepo interface {
	// GetUser fetches a user by primary key.
	GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error)

	// ListCategories returns all categories for the picker keyboard.
	ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error)

	// GetCategoryByAlias resolves a category chosen from the keyboard.
	GetCategoryByAlias(ctx context.Context, db *gorm.DB, alias string) (*domain.Category, error)

	// CreateAd persists a finished draft in pending-review status.
	CreateAd(ctx context.Context, db *gorm.DB, ownerID, title, description string, price int64, categoryID string, photoIDs []string) (*domain.Ad, error)

	// GetAd reloads an ad with its associations.
	GetAd(ctx context.Context, db *gorm.DB, id string) (*domain.Ad, error)
}

// ReviewDispatcher receives a freshly persisted ad for moderator fan-out.
// ModerationService implements it; the indirection keeps the two services
// free of a compile-time cycle and lets tests observe submissions.
type ReviewDispatcher interface {
	SubmitForReview(ctx context.Context, ad *domain.Ad) error
}

// SubmissionService drives the draft conversation for every chat.
type SubmissionService struct {
	DB       *gorm.DB
	Repo     SubmissionRepo
	Sessions *session.Store
	Batches  *BatchCollector
	Notifier *Notifier
	Review   ReviewDispatcher
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(db *gorm.DB, r SubmissionRepo, st *session.Store, bc *BatchCollector, n *Notifier, rd ReviewDispatcher) *SubmissionService {
	return &SubmissionService{DB: db, Repo: r, Sessions: st, Batches: bc, Notifier: n, Review: rd}
}

// cardFromDraft renders the in-progress draft for the confirmation preview.
func cardFromDraft(d *session.Draft) chat.AdCard {
	c := chat.AdCard{
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		Photos:      d.PhotoIDs,
	}
	if d.Category != nil {
		c.Category = d.Category.Title
	}
	return c
}

// parsePrice accepts a non-negative integer amount of rubles.
func parsePrice(text string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || v < 0 {
		return 0, ErrInvalidPrice
	}
	return v, nil
}

// Start opens a new draft conversation. It enforces the submission
// prerequisites: a bound user, a stored phone number, and a Telegram
// username. Any in-progress draft is discarded first.
func (s *SubmissionService) Start(ctx context.Context, chatID int64) error {
	var opErr error
	s.Sessions.With(chatID, func(sess *session.Session) {
		if !sess.Authenticated() {
			s.Notifier.NotAuthenticated(ctx, chatID)
			opErr = ErrNotAuthenticated
			return
		}
		u, err := s.Repo.GetUser(ctx, s.DB, sess.UserID)
		if err != nil {
			opErr = fmt.Errorf("load user: %w", err)
			return
		}
		if u.IsBlocked {
			log.Info().Int64("chat_id", chatID).Msg("blocked user ignored")
			return
		}
		if u.Phone == "" {
			s.Notifier.PhoneRequired(ctx, chatID)
			opErr = ErrPhoneRequired
			return
		}
		if u.Login == "" {
			s.Notifier.UsernameRequired(ctx, chatID)
			opErr = ErrUsernameRequired
			return
		}

		s.Batches.CancelFor(sess)
		sess.Draft = &session.Draft{}
		sess.State = session.StateAwaitingTitle
		s.Notifier.AskTitle(ctx, chatID)
	})
	return opErr
}

// SubmitText routes a free-text message by conversation state. In idle it
// reopens the menu; on button-driven steps it nudges the user back to the
// keyboard.
func (s *SubmissionService) SubmitText(ctx context.Context, chatID int64, text string) error {
	var opErr error
	s.Sessions.With(chatID, func(sess *session.Session) {
		if !sess.Authenticated() {
			s.Notifier.NotAuthenticated(ctx, chatID)
			opErr = ErrNotAuthenticated
			return
		}
		text := strings.TrimSpace(text)

		switch sess.State {
		case session.StateAwaitingTitle:
			if utf8.RuneCountInString(text) > MaxTitleRunes {
				s.Notifier.TitleTooLong(ctx, chatID, MaxTitleRunes)
				return
			}
			sess.Draft.Title = text
			sess.State = session.StateAwaitingDescription
			s.Notifier.AskDescription(ctx, chatID, sess.Draft)

		case session.StateAwaitingDescription:
			if utf8.RuneCountInString(text) > MaxDescriptionRunes {
				s.Notifier.DescriptionTooLong(ctx, chatID, MaxDescriptionRunes)
				return
			}
			sess.Draft.Description = text
			sess.State = session.StateAwaitingPrice
			s.Notifier.AskPrice(ctx, chatID, sess.Draft)

		case session.StateAwaitingPrice:
			price, err := parsePrice(text)
			if err != nil {
				s.Notifier.BadPrice(ctx, chatID)
				return
			}
			cats, err := s.Repo.ListCategories(ctx, s.DB)
			if err != nil {
				opErr = fmt.Errorf("list categories: %w", err)
				return
			}
			sess.Draft.Price = price
			sess.State = session.StateAwaitingCategory
			s.Notifier.AskCategory(ctx, chatID, sess.Draft, cats)

		case session.StateAwaitingCategory, session.StateAwaitingPhotos, session.StateAwaitingConfirmation:
			s.Notifier.UseButtons(ctx, chatID)

		default:
			u, err := s.Repo.GetUser(ctx, s.DB, sess.UserID)
			if err != nil {
				opErr = fmt.Errorf("load user: %w", err)
				return
			}
			s.Notifier.Menu(ctx, chatID, u.FirstName, u.IsAdmin)
		}
	})
	return opErr
}

// ChooseCategory applies a category button press. Stale presses, arriving
// after the conversation moved on, are ignored.
func (s *SubmissionService) ChooseCategory(ctx context.Context, chatID int64, alias string) error {
	var opErr error
	s.Sessions.With(chatID, func(sess *session.Session) {
		if !sess.Authenticated() || sess.State != session.StateAwaitingCategory {
			log.Debug().Int64("chat_id", chatID).Str("state", sess.State.String()).Msg("stale category press")
			return
		}
		cat, err := s.Repo.GetCategoryByAlias(ctx, s.DB, alias)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				opErr = ErrCategoryNotFound
				return
			}
			opErr = fmt.Errorf("resolve category: %w", err)
			return
		}
		sess.Draft.Category = cat
		sess.State = session.StateAwaitingPhotos
		s.Notifier.AskPhotos(ctx, chatID, sess.Draft, s.Batches.MaxPhotos)
	})
	return opErr
}

// SubmitPhoto applies one incoming photo. Photos carrying a group token are
// part of an album and go through the batch collector; a lone photo closes
// the step immediately.
func (s *SubmissionService) SubmitPhoto(ctx context.Context, chatID int64, fileID, groupToken string) error {
	s.Sessions.With(chatID, func(sess *session.Session) {
		if !sess.Authenticated() || sess.State != session.StateAwaitingPhotos || sess.Draft == nil {
			log.Debug().Int64("chat_id", chatID).Str("state", sess.State.String()).Msg("photo outside photo step")
			return
		}
		if groupToken != "" {
			s.Batches.Add(ctx, sess, fileID, groupToken)
			return
		}

		s.Batches.CancelFor(sess)
		sess.Draft.PhotoIDs = []string{fileID}
		sess.State = session.StateAwaitingConfirmation
		s.Notifier.Preview(ctx, chatID, cardFromDraft(sess.Draft))
	})
	return nil
}

// SkipPhotos closes the photo step with no attachments.
func (s *SubmissionService) SkipPhotos(ctx context.Context, chatID int64) error {
	s.Sessions.With(chatID, func(sess *session.Session) {
		if !sess.Authenticated() || sess.State != session.StateAwaitingPhotos {
			return
		}
		s.Batches.CancelFor(sess)
		sess.Draft.PhotoIDs = nil
		sess.State = session.StateAwaitingConfirmation
		s.Notifier.Preview(ctx, chatID, cardFromDraft(sess.Draft))
	})
	return nil
}

// Confirm persists the draft and hands it to moderation. The session returns
// to idle regardless of how moderation later decides.
func (s *SubmissionService) Confirm(ctx context.Context, chatID int64) error {
	var opErr error
	s.Sessions.With(chatID, func(sess *session.Session) {
		if !sess.Authenticated() || sess.State != session.StateAwaitingConfirmation || sess.Draft == nil {
			return
		}
		d := sess.Draft
		if d.Category == nil {
			s.Notifier.text(ctx, chatID, msgUserApology, nil)
			opErr = ErrInvalidState
			return
		}

		ad, err := s.Repo.CreateAd(ctx, s.DB, sess.UserID, d.Title, d.Description, d.Price, d.Category.ID, d.PhotoIDs)
		if err != nil {
			opErr = fmt.Errorf("create ad: %w", err)
			return
		}
		full, err := s.Repo.GetAd(ctx, s.DB, ad.ID)
		if err != nil {
			opErr = fmt.Errorf("reload ad: %w", err)
			return
		}
		if err := s.Review.SubmitForReview(ctx, full); err != nil {
			opErr = fmt.Errorf("submit for review: %w", err)
			return
		}

		moderator := false
		if u, err := s.Repo.GetUser(ctx, s.DB, sess.UserID); err == nil {
			moderator = u.IsAdmin
		}
		sess.ResetDraft()
		s.Notifier.Submitted(ctx, chatID, moderator)
	})
	return opErr
}

// Cancel aborts whatever the chat is doing: the draft and any pending batch
// are discarded and the flush timer is disarmed, so a later flush for the
// old batch finds nothing to do.
func (s *SubmissionService) Cancel(ctx context.Context, chatID int64) error {
	var opErr error
	s.Sessions.With(chatID, func(sess *session.Session) {
		if !sess.Authenticated() {
			s.Notifier.NotAuthenticated(ctx, chatID)
			opErr = ErrNotAuthenticated
			return
		}
		s.Batches.CancelFor(sess)
		sess.ResetDraft()
		sess.AwaitingReasonAdID = ""

		moderator := false
		if u, err := s.Repo.GetUser(ctx, s.DB, sess.UserID); err == nil {
			moderator = u.IsAdmin
		}
		s.Notifier.Cancelled(ctx, chatID, moderator)
	})
	return opErr
}
