// Package services: BatchCollector
//
// This file implements the media-batch collector. Telegram delivers an album
// as separate photo messages sharing one group token, with no end-of-album
// marker; the collector accumulates them and treats a short quiet period as
// the end. One deferred flush exists per batch: the first photo arms it, and
// later photos only append. The flush re-enters the session through the
// store, so a draft cancelled before the timer fires makes the flush a no-op.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-board-bot/internal/chat"
	"github.com/tbourn/go-board-bot/internal/session"
)

// DefaultFlushDelay is how long the collector waits after the first photo of
// a batch before treating the album as complete.
const DefaultFlushDelay = 2 * time.Second

// DefaultMaxPhotos caps the photos a single ad may carry.
const DefaultMaxPhotos = 5

// BatchCollector gathers album photos into one draft attachment set.
type BatchCollector struct {
	Sessions *session.Store
	Sched    chat.Scheduler
	Notifier *Notifier

	FlushDelay time.Duration
	MaxPhotos  int
}

// NewBatchCollector constructs a collector with the default window and cap.
func NewBatchCollector(st *session.Store, sched chat.Scheduler, n *Notifier) *BatchCollector {
	return &BatchCollector{
		Sessions:   st,
		Sched:      sched,
		Notifier:   n,
		FlushDelay: DefaultFlushDelay,
		MaxPhotos:  DefaultMaxPhotos,
	}
}

// flushKey names the deferred task for one batch. The group token is unique
// platform-wide, the chat id is included so the key is self-describing in
// scheduler diagnostics.
func flushKey(chatID int64, groupToken string) string {
	return fmt.Sprintf("flush:%d:%s", chatID, groupToken)
}

// Add records one album photo on the session. It must be called under the
// session lock (from within Store.With); s.State is known to be
// StateAwaitingPhotos and s.Draft non-nil by the time the state machine
// delegates here.
func (c *BatchCollector) Add(ctx context.Context, s *session.Session, fileID, groupToken string) {
	if s.Batch == nil || s.Batch.GroupToken != groupToken {
		s.Batch = &session.Batch{
			GroupToken: groupToken,
			PhotoIDs:   []string{fileID},
			Snapshot:   *s.Draft,
			Deadline:   time.Now().Add(c.FlushDelay),
		}
		chatID := s.ChatID
		armed := c.Sched.Schedule(flushKey(chatID, groupToken), c.FlushDelay, func() {
			c.flush(chatID, groupToken)
		})
		if !armed {
			log.Warn().Int64("chat_id", chatID).Str("group", groupToken).Msg("batch flush already armed")
		}
		return
	}
	// Appending never touches the timer; the window is measured from the
	// first photo of the batch.
	s.Batch.PhotoIDs = append(s.Batch.PhotoIDs, fileID)
}

// CancelFor disarms the pending flush of the session's batch, if any. Like
// Add it runs under the session lock.
func (c *BatchCollector) CancelFor(s *session.Session) {
	if s.Batch == nil {
		return
	}
	c.Sched.Cancel(flushKey(s.ChatID, s.Batch.GroupToken))
	s.Batch = nil
}

// flush closes the batch: the accumulated photos become the draft's
// attachments and the session advances to confirmation. It re-checks every
// precondition because the session may have moved on while the timer ran.
func (c *BatchCollector) flush(chatID int64, groupToken string) {
	ctx := context.Background()
	c.Sessions.With(chatID, func(s *session.Session) {
		b := s.Batch
		if b == nil || b.GroupToken != groupToken {
			return
		}
		if s.State != session.StateAwaitingPhotos || s.Draft == nil {
			s.Batch = nil
			return
		}
		if len(b.PhotoIDs) > c.MaxPhotos {
			s.Batch = nil
			log.Info().Int64("chat_id", chatID).Int("photos", len(b.PhotoIDs)).Msg("batch over photo limit")
			c.Notifier.PhotoLimitExceeded(ctx, chatID, c.MaxPhotos)
			return
		}

		s.Draft.PhotoIDs = b.PhotoIDs
		s.Draft.BatchID = b.GroupToken
		s.Batch = nil
		s.State = session.StateAwaitingConfirmation

		card := chat.AdCard{
			Title:       b.Snapshot.Title,
			Description: b.Snapshot.Description,
			Price:       b.Snapshot.Price,
			Photos:      b.PhotoIDs,
		}
		if b.Snapshot.Category != nil {
			card.Category = b.Snapshot.Category.Title
		}
		c.Notifier.Preview(ctx, chatID, card)
	})
}
