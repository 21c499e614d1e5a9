// Package bot is the Telegram adapter: it turns Bot API updates into calls
// on the workflow services and implements the outbound chat.Sender contract
// over the Bot API client. Nothing outside this package (and main) imports
// the Telegram SDK.
package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-board-bot/internal/chat"
)

// TelegramSender implements chat.Sender over a Bot API client. All messages
// are sent with HTML parse mode; the card renderer emits HTML tags.
type TelegramSender struct {
	API *tgbotapi.BotAPI
}

// NewTelegramSender wraps an authorized Bot API client.
func NewTelegramSender(api *tgbotapi.BotAPI) *TelegramSender {
	return &TelegramSender{API: api}
}

// markup converts the transport-neutral keyboard into Bot API markup.
// Returns nil for a nil keyboard so callers can pass it through unchecked.
func markup(kb *chat.Keyboard) interface{} {
	if kb == nil {
		return nil
	}
	if kb.Inline {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
		for _, r := range kb.Rows {
			row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
			for _, b := range r {
				switch {
				case b.URL != "":
					row = append(row, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
				default:
					row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
				}
			}
			rows = append(rows, row)
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
	for _, r := range kb.Rows {
		row := make([]tgbotapi.KeyboardButton, 0, len(r))
		for _, b := range r {
			if b.RequestContact {
				row = append(row, tgbotapi.NewKeyboardButtonContact(b.Label))
			} else {
				row = append(row, tgbotapi.NewKeyboardButton(b.Label))
			}
		}
		rows = append(rows, row)
	}
	m := tgbotapi.NewReplyKeyboard(rows...)
	m.OneTimeKeyboard = true
	m.ResizeKeyboard = true
	return m
}

// SendText implements chat.Sender.
func (t *TelegramSender) SendText(ctx context.Context, chatID int64, text string, kb *chat.Keyboard) (chat.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return chat.MessageRef{}, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if m := markup(kb); m != nil {
		msg.ReplyMarkup = m
	}
	sent, err := t.API.Send(msg)
	if err != nil {
		return chat.MessageRef{}, err
	}
	return chat.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// SendPhoto implements chat.Sender.
func (t *TelegramSender) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, kb *chat.Keyboard) (chat.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return chat.MessageRef{}, err
	}
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	msg.ParseMode = tgbotapi.ModeHTML
	if m := markup(kb); m != nil {
		msg.ReplyMarkup = m
	}
	sent, err := t.API.Send(msg)
	if err != nil {
		return chat.MessageRef{}, err
	}
	return chat.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// SendAlbum implements chat.Sender. The caption rides on the first photo,
// which is how Telegram displays an album caption.
func (t *TelegramSender) SendAlbum(ctx context.Context, chatID int64, fileIDs []string, caption string) ([]chat.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	media := make([]interface{}, 0, len(fileIDs))
	for i, id := range fileIDs {
		p := tgbotapi.NewInputMediaPhoto(tgbotapi.FileID(id))
		if i == 0 {
			p.Caption = caption
			p.ParseMode = tgbotapi.ModeHTML
		}
		media = append(media, p)
	}
	sent, err := t.API.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media))
	if err != nil {
		return nil, err
	}
	refs := make([]chat.MessageRef, 0, len(sent))
	for _, m := range sent {
		refs = append(refs, chat.MessageRef{ChatID: chatID, MessageID: m.MessageID})
	}
	return refs, nil
}

// DeleteMessage implements chat.Sender.
func (t *TelegramSender) DeleteMessage(ctx context.Context, ref chat.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.API.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID))
	return err
}
