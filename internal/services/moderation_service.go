// Package services: ModerationService
//
// This file implements the moderation side of the workflow: fanning a new
// submission out to every moderator, applying approve and reject decisions,
// the two-phase reject (the decision arms an awaiting-reason marker, the
// moderator's next message supplies the reason), and the owner-initiated
// withdraw of a published ad. Status transitions are compare-and-swap
// updates, so when two moderators race the first decision wins and the loser
// is told so.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-board-bot/internal/chat"
	"github.com/tbourn/go-board-bot/internal/domain"
	"github.com/tbourn/go-board-bot/internal/repo"
	"github.com/tbourn/go-board-bot/internal/session"
)

// ModerationRepo defines the repository contract required by ModerationService.
type ModerationRepo interface {
	// GetUser fetches a user by primary key.
	GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error)

	// ListModerators returns every active moderator.
	ListModerators(ctx context.Context, db *gorm.DB) ([]domain.User, error)

	// GetAd reloads an ad with its associations.
	GetAd(ctx context.Context, db *gorm.DB, id string) (*domain.Ad, error)

	// UpdateAdStatus transitions an ad's status only when it still has the
	// expected current status.
	UpdateAdStatus(ctx context.Context, db *gorm.DB, id string, from, to domain.AdStatus) error

	// RejectAd atomically moves a pending ad to rejected with a reason.
	RejectAd(ctx context.Context, db *gorm.DB, id, reason string) error

	// RecordChannelMessages stores the channel refs of a publication.
	RecordChannelMessages(ctx context.Context, db *gorm.DB, adID string, refs []domain.ChannelMessage) error

	// DeleteChannelMessages removes the stored refs after a withdraw.
	DeleteChannelMessages(ctx context.Context, db *gorm.DB, adID string) error

	// ListPendingAds returns the review queue, oldest first.
	ListPendingAds(ctx context.Context, db *gorm.DB) ([]domain.Ad, error)

	// ListApprovedAdsByOwner returns the owner's published ads.
	ListApprovedAdsByOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Ad, error)
}

// ModerationService routes review decisions and publishes approved ads.
type ModerationService struct {
	DB       *gorm.DB
	Repo     ModerationRepo
	Sessions *session.Store
	Sender   chat.Sender
	Notifier *Notifier

	// ChannelChatID is the public channel approved ads are posted to.
	ChannelChatID int64
}

// NewModerationService constructs a ModerationService.
func NewModerationService(db *gorm.DB, r ModerationRepo, st *session.Store, snd chat.Sender, n *Notifier, channelChatID int64) *ModerationService {
	return &ModerationService{DB: db, Repo: r, Sessions: st, Sender: snd, Notifier: n, ChannelChatID: channelChatID}
}

// moderator resolves the session's user and verifies review rights. A
// refusal is told to the caller before the sentinel is returned.
func (s *ModerationService) moderator(ctx context.Context, chatID int64, sess *session.Session) (*domain.User, error) {
	if !sess.Authenticated() {
		s.Notifier.NotAuthenticated(ctx, chatID)
		return nil, ErrNotAuthenticated
	}
	u, err := s.Repo.GetUser(ctx, s.DB, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !u.IsAdmin || u.IsBlocked {
		s.Notifier.NotModerator(ctx, chatID)
		return nil, ErrNotModerator
	}
	return u, nil
}

// SubmitForReview sends the ad to every moderator with the decision
// keyboard. Individual delivery failures are logged and skipped so one
// unreachable moderator never blocks the rest.
func (s *ModerationService) SubmitForReview(ctx context.Context, ad *domain.Ad) error {
	mods, err := s.Repo.ListModerators(ctx, s.DB)
	if err != nil {
		return fmt.Errorf("list moderators: %w", err)
	}
	if len(mods) == 0 {
		log.Warn().Str("ad_id", ad.ID).Msg("no moderators to review ad")
		return nil
	}

	payload := chat.CardFromAd(ad).Render(msgReviewRequest, chat.ModerationKeyboard(ad.ID))
	for _, m := range mods {
		if _, err := chat.Send(ctx, s.Sender, m.TelegramID, payload); err != nil {
			log.Warn().Err(err).Str("ad_id", ad.ID).Int64("moderator", m.TelegramID).Msg("review request failed")
		}
	}
	return nil
}

// Approve applies an approve decision: the ad is moved to approved with a
// compare-and-swap, posted to the channel, and both parties are notified. A
// lost race is reported to the moderator and is not an error.
func (s *ModerationService) Approve(ctx context.Context, modChatID int64, adID string) error {
	var opErr error
	s.Sessions.With(modChatID, func(sess *session.Session) {
		if _, err := s.moderator(ctx, modChatID, sess); err != nil {
			opErr = err
			return
		}

		err := s.Repo.UpdateAdStatus(ctx, s.DB, adID, domain.StatusPendingReview, domain.StatusApproved)
		switch {
		case errors.Is(err, repo.ErrStatusConflict):
			s.Notifier.AlreadyDecided(ctx, modChatID)
			return
		case errors.Is(err, repo.ErrNotFound):
			s.Notifier.AdGone(ctx, modChatID)
			opErr = ErrAdNotFound
			return
		case err != nil:
			opErr = fmt.Errorf("approve ad: %w", err)
			return
		}

		ad, err := s.Repo.GetAd(ctx, s.DB, adID)
		if err != nil {
			opErr = fmt.Errorf("reload ad: %w", err)
			return
		}
		refs, err := chat.Send(ctx, s.Sender, s.ChannelChatID, chat.CardFromAd(ad).Render("", nil))
		if err != nil {
			// The ad stays approved; the operator resolves the missing post.
			opErr = fmt.Errorf("publish ad %s: %w", adID, err)
			return
		}
		rows := make([]domain.ChannelMessage, 0, len(refs))
		for _, r := range refs {
			rows = append(rows, domain.ChannelMessage{ChatID: r.ChatID, MessageID: r.MessageID})
		}
		if err := s.Repo.RecordChannelMessages(ctx, s.DB, adID, rows); err != nil {
			opErr = fmt.Errorf("record channel messages: %w", err)
			return
		}

		s.Notifier.OwnerApproved(ctx, ad.Owner.TelegramID)
		s.Notifier.Approved(ctx, modChatID)
	})
	return opErr
}

// Reject starts the two-phase reject: the ad keeps its pending status, the
// moderator's session is marked awaiting a reason, and their next free-text
// message completes the decision.
func (s *ModerationService) Reject(ctx context.Context, modChatID int64, adID string) error {
	var opErr error
	s.Sessions.With(modChatID, func(sess *session.Session) {
		if _, err := s.moderator(ctx, modChatID, sess); err != nil {
			opErr = err
			return
		}

		ad, err := s.Repo.GetAd(ctx, s.DB, adID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				s.Notifier.AdGone(ctx, modChatID)
				opErr = ErrAdNotFound
				return
			}
			opErr = fmt.Errorf("load ad: %w", err)
			return
		}
		if ad.Status != domain.StatusPendingReview {
			s.Notifier.AlreadyDecided(ctx, modChatID)
			return
		}

		sess.AwaitingReasonAdID = adID
		s.Notifier.AskRejectReason(ctx, modChatID)
	})
	return opErr
}

// SubmitRejectReason consumes a moderator's free-text message as the reject
// reason when their session is awaiting one. It reports whether the message
// was consumed; when it was not, the caller routes the text to the
// submission state machine instead.
func (s *ModerationService) SubmitRejectReason(ctx context.Context, modChatID int64, reason string) (bool, error) {
	handled := false
	var opErr error
	s.Sessions.With(modChatID, func(sess *session.Session) {
		adID := sess.AwaitingReasonAdID
		if adID == "" {
			return
		}
		handled = true
		sess.AwaitingReasonAdID = ""

		err := s.Repo.RejectAd(ctx, s.DB, adID, reason)
		switch {
		case errors.Is(err, repo.ErrStatusConflict):
			s.Notifier.AlreadyDecided(ctx, modChatID)
			return
		case errors.Is(err, repo.ErrNotFound):
			s.Notifier.AdGone(ctx, modChatID)
			opErr = ErrAdNotFound
			return
		case err != nil:
			opErr = fmt.Errorf("reject ad: %w", err)
			return
		}

		ad, err := s.Repo.GetAd(ctx, s.DB, adID)
		if err != nil {
			opErr = fmt.Errorf("reload ad: %w", err)
			return
		}
		s.Notifier.OwnerRejected(ctx, ad.Owner.TelegramID, reason)
		s.Notifier.ReasonSent(ctx, modChatID)
	})
	return handled, opErr
}

// Withdraw takes an owner's published ad off the channel: the channel
// messages are deleted, their refs dropped, and the ad moves to unpublished.
func (s *ModerationService) Withdraw(ctx context.Context, chatID int64, adID string) error {
	var opErr error
	s.Sessions.With(chatID, func(sess *session.Session) {
		if !sess.Authenticated() {
			s.Notifier.NotAuthenticated(ctx, chatID)
			opErr = ErrNotAuthenticated
			return
		}
		ad, err := s.Repo.GetAd(ctx, s.DB, adID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				s.Notifier.AdGone(ctx, chatID)
				opErr = ErrAdNotFound
				return
			}
			opErr = fmt.Errorf("load ad: %w", err)
			return
		}
		if ad.OwnerID != sess.UserID {
			s.Notifier.NotOwner(ctx, chatID)
			opErr = ErrNotOwner
			return
		}

		err = s.Repo.UpdateAdStatus(ctx, s.DB, adID, domain.StatusApproved, domain.StatusUnpublished)
		switch {
		case errors.Is(err, repo.ErrStatusConflict):
			s.Notifier.text(ctx, chatID, msgCannotWithdraw, nil)
			opErr = ErrNotApproved
			return
		case errors.Is(err, repo.ErrNotFound):
			s.Notifier.AdGone(ctx, chatID)
			opErr = ErrAdNotFound
			return
		case err != nil:
			opErr = fmt.Errorf("withdraw ad: %w", err)
			return
		}

		for _, m := range ad.Messages {
			ref := chat.MessageRef{ChatID: m.ChatID, MessageID: m.MessageID}
			if err := s.Sender.DeleteMessage(ctx, ref); err != nil {
				log.Warn().Err(err).Str("ad_id", adID).Int("message_id", m.MessageID).Msg("channel delete failed")
			}
		}
		if err := s.Repo.DeleteChannelMessages(ctx, s.DB, adID); err != nil {
			opErr = fmt.Errorf("drop channel refs: %w", err)
			return
		}
		s.Notifier.Withdrawn(ctx, chatID)
	})
	return opErr
}

// ListPending shows the review queue to a moderator, one card per ad, each
// with its decision keyboard.
func (s *ModerationService) ListPending(ctx context.Context, modChatID int64) error {
	var opErr error
	s.Sessions.With(modChatID, func(sess *session.Session) {
		if _, err := s.moderator(ctx, modChatID, sess); err != nil {
			opErr = err
			return
		}
		ads, err := s.Repo.ListPendingAds(ctx, s.DB)
		if err != nil {
			opErr = fmt.Errorf("list pending ads: %w", err)
			return
		}
		if len(ads) == 0 {
			s.Notifier.NoPending(ctx, modChatID)
			return
		}
		for i := range ads {
			p := chat.CardFromAd(&ads[i]).Render(msgReviewRequest, chat.ModerationKeyboard(ads[i].ID))
			if _, err := chat.Send(ctx, s.Sender, modChatID, p); err != nil {
				log.Warn().Err(err).Str("ad_id", ads[i].ID).Msg("pending card failed")
			}
		}
	})
	return opErr
}

// ListMine shows the caller their published ads, each with a withdraw
// button.
func (s *ModerationService) ListMine(ctx context.Context, chatID int64) error {
	var opErr error
	s.Sessions.With(chatID, func(sess *session.Session) {
		if !sess.Authenticated() {
			s.Notifier.NotAuthenticated(ctx, chatID)
			opErr = ErrNotAuthenticated
			return
		}
		ads, err := s.Repo.ListApprovedAdsByOwner(ctx, s.DB, sess.UserID)
		if err != nil {
			opErr = fmt.Errorf("list own ads: %w", err)
			return
		}
		if len(ads) == 0 {
			s.Notifier.NoOwnAds(ctx, chatID)
			return
		}
		for i := range ads {
			p := chat.CardFromAd(&ads[i]).Render(msgOwnAdActions, chat.WithdrawKeyboard(ads[i].ID))
			if _, err := chat.Send(ctx, s.Sender, chatID, p); err != nil {
				log.Warn().Err(err).Str("ad_id", ads[i].ID).Msg("own-ad card failed")
			}
		}
	})
	return opErr
}
