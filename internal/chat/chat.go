// Package chat defines the transport-facing contracts of the bot: how
// messages are addressed, rendered, and sent, and how deferred work is
// scheduled. It is deliberately free of any Telegram SDK types so that the
// workflow engine can be exercised in tests with in-memory fakes; the
// concrete adapter lives in internal/bot.
package chat

import (
	"context"
	"time"
)

// MessageRef identifies one delivered message. Channel publications keep
// these refs so the ad can later be withdrawn (messages deleted).
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Button is a single keyboard button. Exactly one of Data, URL, or
// RequestContact is meaningful; Data buttons produce callback events.
type Button struct {
	Label          string
	Data           string
	URL            string
	RequestContact bool
}

// Keyboard is a rectangular button layout. Inline keyboards attach to a
// message; reply keyboards replace the user's input panel (used only for the
// share-contact prompt).
type Keyboard struct {
	Inline bool
	Rows   [][]Button
}

// Row is a convenience constructor for a single keyboard row.
func Row(buttons ...Button) []Button { return buttons }

// Sender is the outbound transport primitive. Implementations must be safe
// for concurrent use; the engine never retries, it relies on the transport's
// own retry behavior.
type Sender interface {
	// SendText delivers a plain text message, optionally with a keyboard.
	SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) (MessageRef, error)

	// SendPhoto delivers a single photo with a caption.
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, kb *Keyboard) (MessageRef, error)

	// SendAlbum delivers a media group. The first photo carries the caption;
	// albums cannot carry keyboards, so callers follow up with SendText.
	SendAlbum(ctx context.Context, chatID int64, fileIDs []string, caption string) ([]MessageRef, error)

	// DeleteMessage removes a previously sent message.
	DeleteMessage(ctx context.Context, ref MessageRef) error
}

// Scheduler runs a callback once after a delay, keyed so that at most one
// task exists per key. Schedule reports false when a task for the key is
// already pending, in which case the callback is NOT registered again.
type Scheduler interface {
	Schedule(key string, d time.Duration, fn func()) bool
	Cancel(key string) bool
	Pending(key string) bool
}

// Payload is a renderable outbound unit: a text message, a captioned photo,
// or an album, chosen by the number of photos. Followup, when non-empty, is
// sent as a separate text message carrying the keyboard, since albums cannot
// carry one themselves.
type Payload struct {
	Text     string
	Photos   []string
	Keyboard *Keyboard
	Followup string
}

// Send delivers a payload, dispatching on photo count (0, 1, >1), and
// returns the refs of every message created. The keyboard rides on the main
// message when the transport allows it, otherwise on the followup.
func Send(ctx context.Context, s Sender, chatID int64, p Payload) ([]MessageRef, error) {
	kbMain, kbFollow := p.Keyboard, (*Keyboard)(nil)
	if len(p.Photos) > 1 || (p.Followup != "" && p.Keyboard != nil) {
		kbMain, kbFollow = nil, p.Keyboard
	}

	var refs []MessageRef
	switch len(p.Photos) {
	case 0:
		ref, err := s.SendText(ctx, chatID, p.Text, kbMain)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	case 1:
		ref, err := s.SendPhoto(ctx, chatID, p.Photos[0], p.Text, kbMain)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	default:
		got, err := s.SendAlbum(ctx, chatID, p.Photos, p.Text)
		if err != nil {
			return nil, err
		}
		refs = append(refs, got...)
	}
	if p.Followup != "" {
		ref, err := s.SendText(ctx, chatID, p.Followup, kbFollow)
		if err != nil {
			return refs, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
