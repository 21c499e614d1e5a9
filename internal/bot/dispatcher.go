// Package bot: update dispatcher
//
// This file routes incoming Telegram updates to the workflow services.
// Before any routing an update is checked against the processed-update log,
// so a webhook retry or an overlapping poll never applies the same event
// twice, and against the per-chat flood limiter. A panic while handling an
// update is contained to that update: it is logged, counted, and reported to
// the operator chat.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-board-bot/internal/chat"
	"github.com/tbourn/go-board-bot/internal/services"
)

// AccountFlows is the account-facing service surface the dispatcher needs.
type AccountFlows interface {
	Register(ctx context.Context, chatID, telegramID int64, firstName, lastName, login string) error
	SaveContact(ctx context.Context, chatID, telegramID int64, phone string) error
}

// SubmissionFlows is the draft-conversation service surface.
type SubmissionFlows interface {
	Start(ctx context.Context, chatID int64) error
	SubmitText(ctx context.Context, chatID int64, text string) error
	ChooseCategory(ctx context.Context, chatID int64, alias string) error
	SubmitPhoto(ctx context.Context, chatID int64, fileID, groupToken string) error
	SkipPhotos(ctx context.Context, chatID int64) error
	Confirm(ctx context.Context, chatID int64) error
	Cancel(ctx context.Context, chatID int64) error
}

// ModerationFlows is the review-and-publish service surface.
type ModerationFlows interface {
	Approve(ctx context.Context, modChatID int64, adID string) error
	Reject(ctx context.Context, modChatID int64, adID string) error
	SubmitRejectReason(ctx context.Context, modChatID int64, reason string) (bool, error)
	Withdraw(ctx context.Context, chatID int64, adID string) error
	ListPending(ctx context.Context, modChatID int64) error
	ListMine(ctx context.Context, chatID int64) error
}

// UpdateLog defines the dedupe contract required by the dispatcher.
type UpdateLog interface {
	// MarkUpdateProcessed records the update id, reporting false when it was
	// already on record.
	MarkUpdateProcessed(ctx context.Context, db *gorm.DB, updateID int64) (bool, error)
}

// callbackAcker answers callback queries; *tgbotapi.BotAPI satisfies it.
type callbackAcker interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Dispatcher routes updates to the services.
type Dispatcher struct {
	DB  *gorm.DB
	Log UpdateLog

	Users       AccountFlows
	Submissions SubmissionFlows
	Moderation  ModerationFlows
	Notifier    *services.Notifier

	Flood *FloodLimiter
	Acker callbackAcker
}

// expectedErr reports whether err is a normal workflow outcome that already
// produced a user-visible response, as opposed to an infrastructure failure.
func expectedErr(err error) bool {
	for _, e := range []error{
		services.ErrNotAuthenticated,
		services.ErrPhoneRequired,
		services.ErrUsernameRequired,
		services.ErrInvalidState,
		services.ErrNotModerator,
		services.ErrNotOwner,
		services.ErrNotApproved,
		services.ErrAdNotFound,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// finish logs the outcome of one routed update and reports unexpected
// failures to the operator.
func (d *Dispatcher) finish(ctx context.Context, chatID int64, op string, err error) {
	if err == nil {
		return
	}
	if expectedErr(err) {
		log.Debug().Err(err).Int64("chat_id", chatID).Str("op", op).Msg("update refused")
		return
	}
	handlerErrors.Inc()
	log.Error().Err(err).Int64("chat_id", chatID).Str("op", op).Msg("update failed")
	d.Notifier.ReportError(ctx, chatID, fmt.Errorf("%s: %w", op, err))
}

// HandleUpdate applies one Telegram update. It is safe to call concurrently;
// per-chat ordering is enforced underneath by the session store.
func (d *Dispatcher) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	chatID := updateChatID(upd)
	defer func() {
		if r := recover(); r != nil {
			handlerErrors.Inc()
			log.Error().Interface("panic", r).Int64("chat_id", chatID).Msg("update handler panicked")
			d.Notifier.ReportError(ctx, chatID, fmt.Errorf("panic: %v", r))
		}
	}()

	fresh, err := d.Log.MarkUpdateProcessed(ctx, d.DB, int64(upd.UpdateID))
	if err != nil {
		// Better to risk a duplicate than to drop a real update.
		log.Warn().Err(err).Int("update_id", upd.UpdateID).Msg("dedupe check failed")
	} else if !fresh {
		updatesDropped.WithLabelValues("duplicate").Inc()
		return
	}

	if chatID != 0 && d.Flood != nil && !d.Flood.Allow(chatID) {
		updatesDropped.WithLabelValues("flood").Inc()
		log.Debug().Int64("chat_id", chatID).Msg("update dropped by flood limiter")
		return
	}

	switch {
	case upd.Message != nil:
		d.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		d.handleCallback(ctx, upd.CallbackQuery)
	default:
		updatesTotal.WithLabelValues("other").Inc()
	}
}

// updateChatID extracts the originating chat, or 0 for updates without one.
func updateChatID(upd tgbotapi.Update) int64 {
	switch {
	case upd.Message != nil:
		return upd.Message.Chat.ID
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil:
		return upd.CallbackQuery.Message.Chat.ID
	default:
		return 0
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	updatesTotal.WithLabelValues("message").Inc()
	chatID := m.Chat.ID

	switch {
	case m.Contact != nil:
		// Only the sender's own contact counts as phone verification.
		if m.From == nil || m.Contact.UserID != m.From.ID {
			log.Debug().Int64("chat_id", chatID).Msg("foreign contact ignored")
			return
		}
		d.finish(ctx, chatID, "save_contact", d.Users.SaveContact(ctx, chatID, m.From.ID, m.Contact.PhoneNumber))

	case m.IsCommand():
		if m.Command() != "start" || m.From == nil {
			log.Debug().Str("command", m.Command()).Int64("chat_id", chatID).Msg("unknown command ignored")
			return
		}
		d.finish(ctx, chatID, "register",
			d.Users.Register(ctx, chatID, m.From.ID, m.From.FirstName, m.From.LastName, m.From.UserName))

	case len(m.Photo) > 0:
		// The last PhotoSize is the largest rendition; its file id also
		// resolves the original when re-sent.
		fileID := m.Photo[len(m.Photo)-1].FileID
		d.finish(ctx, chatID, "submit_photo", d.Submissions.SubmitPhoto(ctx, chatID, fileID, m.MediaGroupID))

	case m.Text != "":
		// A moderator awaiting a reject reason consumes the text first.
		handled, err := d.Moderation.SubmitRejectReason(ctx, chatID, m.Text)
		if err != nil || handled {
			d.finish(ctx, chatID, "reject_reason", err)
			return
		}
		d.finish(ctx, chatID, "submit_text", d.Submissions.SubmitText(ctx, chatID, m.Text))
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	updatesTotal.WithLabelValues("callback").Inc()
	if d.Acker != nil {
		if _, err := d.Acker.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			log.Debug().Err(err).Msg("callback ack failed")
		}
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	data := cb.Data
	switch {
	case data == chat.CallbackCreateAd:
		d.finish(ctx, chatID, "start_submission", d.Submissions.Start(ctx, chatID))
	case data == chat.CallbackMyAds:
		d.finish(ctx, chatID, "list_mine", d.Moderation.ListMine(ctx, chatID))
	case data == chat.CallbackPendingAds:
		d.finish(ctx, chatID, "list_pending", d.Moderation.ListPending(ctx, chatID))
	case data == chat.CallbackCancel:
		d.finish(ctx, chatID, "cancel", d.Submissions.Cancel(ctx, chatID))
	case data == chat.CallbackSkipPhotos:
		d.finish(ctx, chatID, "skip_photos", d.Submissions.SkipPhotos(ctx, chatID))
	case data == chat.CallbackConfirm:
		d.finish(ctx, chatID, "confirm", d.Submissions.Confirm(ctx, chatID))
	case strings.HasPrefix(data, chat.CallbackCategoryPrefix):
		alias := strings.TrimPrefix(data, chat.CallbackCategoryPrefix)
		d.finish(ctx, chatID, "choose_category", d.Submissions.ChooseCategory(ctx, chatID, alias))
	case strings.HasPrefix(data, chat.CallbackApprovePrefix):
		adID := strings.TrimPrefix(data, chat.CallbackApprovePrefix)
		d.finish(ctx, chatID, "approve", d.Moderation.Approve(ctx, chatID, adID))
	case strings.HasPrefix(data, chat.CallbackRejectPrefix):
		adID := strings.TrimPrefix(data, chat.CallbackRejectPrefix)
		d.finish(ctx, chatID, "reject", d.Moderation.Reject(ctx, chatID, adID))
	case strings.HasPrefix(data, chat.CallbackWithdrawPrefix):
		adID := strings.TrimPrefix(data, chat.CallbackWithdrawPrefix)
		d.finish(ctx, chatID, "withdraw", d.Moderation.Withdraw(ctx, chatID, adID))
	default:
		log.Debug().Str("data", data).Int64("chat_id", chatID).Msg("unknown callback ignored")
	}
}
