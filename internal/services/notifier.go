// Package services: Notifier
//
// This file implements the notification dispatcher: every user-visible
// message the workflow produces goes through here, so the texts live in one
// place and the other services stay free of copywriting. Delivery failures
// are logged, never retried; Telegram performs its own retries underneath.
package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-board-bot/internal/chat"
	"github.com/tbourn/go-board-bot/internal/domain"
	"github.com/tbourn/go-board-bot/internal/session"
)

// Notifier sends the bot's fixed messages. OperatorChatID, when non-zero,
// receives internal error reports.
type Notifier struct {
	Sender         chat.Sender
	OperatorChatID int64
}

// NewNotifier constructs a Notifier over the given transport.
func NewNotifier(s chat.Sender, operatorChatID int64) *Notifier {
	return &Notifier{Sender: s, OperatorChatID: operatorChatID}
}

func (n *Notifier) text(ctx context.Context, chatID int64, text string, kb *chat.Keyboard) {
	if _, err := n.Sender.SendText(ctx, chatID, text, kb); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("notify failed")
	}
}

// Menu shows the main menu, greeting the user by name when one is known.
func (n *Notifier) Menu(ctx context.Context, chatID int64, firstName string, moderator bool) {
	text := msgMenu
	if firstName != "" {
		text = fmt.Sprintf(msgGreeting, firstName)
	}
	n.text(ctx, chatID, text, chat.MainMenuKeyboard(moderator))
}

// NotAuthenticated tells the visitor to /start first.
func (n *Notifier) NotAuthenticated(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgNotAuthenticated, nil)
}

// PhoneRequired asks the user to share a contact via the reply keyboard.
func (n *Notifier) PhoneRequired(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgPhoneRequired, chat.ContactKeyboard())
}

// UsernameRequired explains why a Telegram username is mandatory.
func (n *Notifier) UsernameRequired(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgUsernameRequired, nil)
}

// PhoneSaved confirms the stored contact and reopens the menu.
func (n *Notifier) PhoneSaved(ctx context.Context, chatID int64, moderator bool) {
	n.text(ctx, chatID, msgPhoneSaved, chat.MainMenuKeyboard(moderator))
}

// AskTitle opens the submission conversation.
func (n *Notifier) AskTitle(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgAskTitle, chat.CancelKeyboard())
}

// prompt joins the already collected fields with the next instruction, so
// every step message also echoes the draft so far.
func prompt(next string, collected ...string) string {
	return strings.Join(append(collected, next), "\n\n")
}

// echoTitle through echoCategory render one collected field each.
func echoTitle(d *session.Draft) string {
	return fmt.Sprintf(msgEchoTitle, html.EscapeString(d.Title))
}

func echoDescription(d *session.Draft) string {
	return fmt.Sprintf(msgEchoDescription, html.EscapeString(d.Description))
}

func echoPrice(d *session.Draft) string {
	return fmt.Sprintf(msgEchoPrice, chat.FormatPrice(d.Price))
}

func echoCategory(d *session.Draft) string {
	return fmt.Sprintf(msgEchoCategory, html.EscapeString(d.Category.Title))
}

// AskDescription follows a stored title, echoing it.
func (n *Notifier) AskDescription(ctx context.Context, chatID int64, d *session.Draft) {
	n.text(ctx, chatID, prompt(msgAskDescription, echoTitle(d)), chat.CancelKeyboard())
}

// AskPrice follows a stored description, echoing the draft so far.
func (n *Notifier) AskPrice(ctx context.Context, chatID int64, d *session.Draft) {
	n.text(ctx, chatID, prompt(msgAskPrice, echoTitle(d), echoDescription(d)), chat.CancelKeyboard())
}

// BadPrice re-prompts after unparseable price input.
func (n *Notifier) BadPrice(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgBadPrice, chat.CancelKeyboard())
}

// TitleTooLong re-prompts with the rune limit.
func (n *Notifier) TitleTooLong(ctx context.Context, chatID int64, limit int) {
	n.text(ctx, chatID, fmt.Sprintf(msgTitleTooLong, limit), chat.CancelKeyboard())
}

// DescriptionTooLong re-prompts with the rune limit.
func (n *Notifier) DescriptionTooLong(ctx context.Context, chatID int64, limit int) {
	n.text(ctx, chatID, fmt.Sprintf(msgDescTooLong, limit), chat.CancelKeyboard())
}

// AskCategory shows the category picker under the echoed draft.
func (n *Notifier) AskCategory(ctx context.Context, chatID int64, d *session.Draft, cats []domain.Category) {
	text := prompt(msgAskCategory, echoTitle(d), echoDescription(d), echoPrice(d))
	n.text(ctx, chatID, text, chat.CategoryKeyboard(cats))
}

// AskPhotos invites photos or the skip action, echoing the full draft text.
func (n *Notifier) AskPhotos(ctx context.Context, chatID int64, d *session.Draft, limit int) {
	text := prompt(fmt.Sprintf(msgAskPhotos, limit), echoTitle(d), echoDescription(d), echoPrice(d), echoCategory(d))
	n.text(ctx, chatID, text, chat.SkipPhotosKeyboard())
}

// PhotoLimitExceeded rejects an oversized album and keeps the step open.
func (n *Notifier) PhotoLimitExceeded(ctx context.Context, chatID int64, limit int) {
	n.text(ctx, chatID, fmt.Sprintf(msgPhotoLimit, limit), chat.SkipPhotosKeyboard())
}

// UseButtons nudges the user back to the inline keyboard.
func (n *Notifier) UseButtons(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgUseButtons, nil)
}

// Preview renders the finished draft with the publish/cancel keyboard.
func (n *Notifier) Preview(ctx context.Context, chatID int64, card chat.AdCard) {
	p := card.Render(msgConfirmPreview, chat.ConfirmKeyboard())
	if _, err := chat.Send(ctx, n.Sender, chatID, p); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("preview failed")
	}
}

// Submitted confirms the draft went to moderation.
func (n *Notifier) Submitted(ctx context.Context, chatID int64, moderator bool) {
	n.text(ctx, chatID, msgSubmitted, chat.MainMenuKeyboard(moderator))
}

// Cancelled confirms the abort and reopens the menu.
func (n *Notifier) Cancelled(ctx context.Context, chatID int64, moderator bool) {
	n.text(ctx, chatID, msgCancelled, chat.MainMenuKeyboard(moderator))
}

// AskRejectReason prompts the moderator for a free-text reason.
func (n *Notifier) AskRejectReason(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgAskReason, nil)
}

// ReasonSent confirms the reason was relayed to the ad owner.
func (n *Notifier) ReasonSent(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgReasonSent, nil)
}

// Approved tells the moderator the ad is live.
func (n *Notifier) Approved(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgApprovedMod, nil)
}

// AlreadyDecided tells a moderator another decision won.
func (n *Notifier) AlreadyDecided(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgAlreadyTaken, nil)
}

// NotModerator refuses a review action from a non-moderator.
func (n *Notifier) NotModerator(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgNotModerator, nil)
}

// AdGone reports that the referenced ad no longer exists.
func (n *Notifier) AdGone(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgAdGone, nil)
}

// NotOwner refuses an action on somebody else's ad.
func (n *Notifier) NotOwner(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgNotOwner, nil)
}

// NoPending reports an empty review queue.
func (n *Notifier) NoPending(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgNoPending, nil)
}

// OwnerApproved tells the owner their ad is published.
func (n *Notifier) OwnerApproved(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgApprovedOwner, nil)
}

// OwnerRejected relays the moderator's reason verbatim.
func (n *Notifier) OwnerRejected(ctx context.Context, chatID int64, reason string) {
	n.text(ctx, chatID, fmt.Sprintf(msgRejectedOwner, reason), nil)
}

// Withdrawn confirms the unpublish to the owner.
func (n *Notifier) Withdrawn(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgWithdrawn, nil)
}

// NoOwnAds reports an empty personal listing.
func (n *Notifier) NoOwnAds(ctx context.Context, chatID int64) {
	n.text(ctx, chatID, msgNoOwnAds, nil)
}

// ReportError sends the failure to the operator chat and apologizes to the
// user. Either delivery may itself fail; both are best effort.
func (n *Notifier) ReportError(ctx context.Context, chatID int64, err error) {
	if n.OperatorChatID != 0 {
		n.text(ctx, n.OperatorChatID, fmt.Sprintf(msgOperatorReport, chatID, err), nil)
	}
	if chatID != 0 {
		n.text(ctx, chatID, msgUserApology, nil)
	}
}
