package chat

import "github.com/tbourn/go-board-bot/internal/domain"

// Callback data values. Menu actions use whole tokens; per-ad actions append
// the ad id after the prefix so the dispatcher can route without extra state.
const (
	CallbackCreateAd   = "create_ad"
	CallbackMyAds      = "my_ads"
	CallbackPendingAds = "pending_ads"
	CallbackCancel     = "cancel"
	CallbackSkipPhotos = "skip_photos"
	CallbackConfirm    = "publish_ad"

	CallbackCategoryPrefix = "category_"
	CallbackApprovePrefix  = "approve_ad_"
	CallbackRejectPrefix   = "reject_ad_"
	CallbackWithdrawPrefix = "withdraw_ad_"
)

// MainMenuKeyboard is the top-level action list. Moderators additionally see
// the pending-review shortcut.
func MainMenuKeyboard(moderator bool) *Keyboard {
	rows := [][]Button{
		Row(Button{Label: "Подать объявление", Data: CallbackCreateAd}),
		Row(Button{Label: "Мои объявления", Data: CallbackMyAds}),
	}
	if moderator {
		rows = append(rows, Row(Button{Label: "Объявления на проверке", Data: CallbackPendingAds}))
	}
	return &Keyboard{Inline: true, Rows: rows}
}

// CancelKeyboard offers the single way out of any submission step.
func CancelKeyboard() *Keyboard {
	return &Keyboard{Inline: true, Rows: [][]Button{
		Row(Button{Label: "Отмена", Data: CallbackCancel}),
	}}
}

// CategoryKeyboard lists one button per category plus cancel.
func CategoryKeyboard(cats []domain.Category) *Keyboard {
	rows := make([][]Button, 0, len(cats)+1)
	for _, c := range cats {
		rows = append(rows, Row(Button{Label: c.Title, Data: CallbackCategoryPrefix + c.Alias}))
	}
	rows = append(rows, Row(Button{Label: "Отмена", Data: CallbackCancel}))
	return &Keyboard{Inline: true, Rows: rows}
}

// SkipPhotosKeyboard lets the user finish a draft without photos.
func SkipPhotosKeyboard() *Keyboard {
	return &Keyboard{Inline: true, Rows: [][]Button{
		Row(Button{Label: "Пропустить", Data: CallbackSkipPhotos}),
		Row(Button{Label: "Отмена", Data: CallbackCancel}),
	}}
}

// ConfirmKeyboard accompanies the draft preview.
func ConfirmKeyboard() *Keyboard {
	return &Keyboard{Inline: true, Rows: [][]Button{
		Row(Button{Label: "Опубликовать", Data: CallbackConfirm}),
		Row(Button{Label: "Отмена", Data: CallbackCancel}),
	}}
}

// ModerationKeyboard accompanies a review request sent to a moderator.
func ModerationKeyboard(adID string) *Keyboard {
	return &Keyboard{Inline: true, Rows: [][]Button{
		Row(
			Button{Label: "Одобрить", Data: CallbackApprovePrefix + adID},
			Button{Label: "Отклонить", Data: CallbackRejectPrefix + adID},
		),
	}}
}

// WithdrawKeyboard accompanies a published ad in the owner's listing.
func WithdrawKeyboard(adID string) *Keyboard {
	return &Keyboard{Inline: true, Rows: [][]Button{
		Row(Button{Label: "Снять с публикации", Data: CallbackWithdrawPrefix + adID}),
	}}
}

// ContactKeyboard is the only reply keyboard the bot uses. Telegram shares a
// verified phone number only through the request-contact button.
func ContactKeyboard() *Keyboard {
	return &Keyboard{Rows: [][]Button{
		Row(Button{Label: "Поделиться номером", RequestContact: true}),
	}}
}
