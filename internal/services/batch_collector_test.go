package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/tbourn/go-board-bot/internal/domain"
	"github.com/tbourn/go-board-bot/internal/session"
)

type batchFixture struct {
	bc     *BatchCollector
	sender *fakeSender
	sched  *fakeScheduler
	store  *session.Store
}

func newBatchFixture(t *testing.T) *batchFixture {
	t.Helper()
	sender := &fakeSender{}
	sched := newFakeScheduler()
	store := session.NewStore()
	return &batchFixture{
		bc:     NewBatchCollector(store, sched, NewNotifier(sender, 0)),
		sender: sender,
		sched:  sched,
		store:  store,
	}
}

// awaitPhotos puts the chat's session on the photo step with a filled draft.
func (fx *batchFixture) awaitPhotos(chatID int64) {
	fx.store.With(chatID, func(s *session.Session) {
		s.UserID = "u-1"
		s.State = session.StateAwaitingPhotos
		s.Draft = &session.Draft{
			Title:       "Диван",
			Description: "Почти новый",
			Price:       12500,
			Category:    &domain.Category{ID: "c-1", Title: "Товары", Alias: "goods"},
		}
	})
}

// add pushes one album photo through the collector under the session lock.
func (fx *batchFixture) add(chatID int64, fileID, token string) {
	fx.store.With(chatID, func(s *session.Session) {
		fx.bc.Add(context.Background(), s, fileID, token)
	})
}

func TestAdd_ArmsFlushOncePerBatch(t *testing.T) {
	fx := newBatchFixture(t)
	fx.awaitPhotos(7)

	fx.add(7, "f1", "grp-1")
	fx.add(7, "f2", "grp-1")
	fx.add(7, "f3", "grp-1")

	if got := fx.sched.scheduleCalls; got != 1 {
		t.Errorf("Schedule called %d times, want 1", got)
	}
	if !fx.sched.Pending(flushKey(7, "grp-1")) {
		t.Error("flush not pending")
	}
	var photos []string
	fx.store.With(7, func(s *session.Session) { photos = s.Batch.PhotoIDs })
	if len(photos) != 3 {
		t.Errorf("batch photos = %v, want 3", photos)
	}
}

func TestFlush_AttachesPhotosAndAsksConfirmation(t *testing.T) {
	fx := newBatchFixture(t)
	fx.awaitPhotos(7)
	fx.add(7, "f1", "grp-1")
	fx.add(7, "f2", "grp-1")

	if !fx.sched.fire(flushKey(7, "grp-1")) {
		t.Fatal("no flush task to fire")
	}

	fx.store.With(7, func(s *session.Session) {
		if s.State != session.StateAwaitingConfirmation {
			t.Errorf("state = %v, want awaiting_confirmation", s.State)
		}
		if len(s.Draft.PhotoIDs) != 2 || s.Draft.PhotoIDs[0] != "f1" || s.Draft.PhotoIDs[1] != "f2" {
			t.Errorf("draft photos = %v, want [f1 f2]", s.Draft.PhotoIDs)
		}
		if s.Batch != nil {
			t.Error("batch not cleared after flush")
		}
	})

	// The preview is the album plus a followup carrying the keyboard.
	msgs := fx.sender.sentTo(7)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want album + followup", len(msgs))
	}
	if len(msgs[0].photos) != 2 || !strings.Contains(msgs[0].text, "Диван") {
		t.Errorf("album = %+v", msgs[0])
	}
	if msgs[1].kb == nil {
		t.Error("followup carries no keyboard")
	}
}

func TestFlush_RejectsOversizedBatch(t *testing.T) {
	fx := newBatchFixture(t)
	fx.awaitPhotos(7)
	for i := 0; i < DefaultMaxPhotos+1; i++ {
		fx.add(7, fmt.Sprintf("f%d", i), "grp-1")
	}

	fx.sched.fire(flushKey(7, "grp-1"))

	fx.store.With(7, func(s *session.Session) {
		if s.State != session.StateAwaitingPhotos {
			t.Errorf("state = %v, want awaiting_photos", s.State)
		}
		if len(s.Draft.PhotoIDs) != 0 {
			t.Errorf("draft photos = %v, want none", s.Draft.PhotoIDs)
		}
		if s.Batch != nil {
			t.Error("oversized batch not discarded")
		}
	})
	want := fmt.Sprintf(msgPhotoLimit, DefaultMaxPhotos)
	if got := fx.sender.lastText(7); got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

func TestFlush_AfterCancelIsInert(t *testing.T) {
	fx := newBatchFixture(t)
	fx.awaitPhotos(7)
	fx.add(7, "f1", "grp-1")

	// The user cancels; the session is reset but the timer, in the worst
	// case, has already fired and is waiting on the session lock.
	fx.store.With(7, func(s *session.Session) { s.ResetDraft() })
	fx.sched.fire(flushKey(7, "grp-1"))

	fx.store.With(7, func(s *session.Session) {
		if s.State != session.StateIdle {
			t.Errorf("state = %v, want idle", s.State)
		}
		if s.Draft != nil || s.Batch != nil {
			t.Error("flush resurrected cancelled state")
		}
	})
	if msgs := fx.sender.sentTo(7); len(msgs) != 0 {
		t.Errorf("inert flush sent %d messages", len(msgs))
	}
}

func TestFlush_IgnoresForeignToken(t *testing.T) {
	fx := newBatchFixture(t)
	fx.awaitPhotos(7)
	fx.add(7, "f1", "grp-1")
	// A second album supersedes the first; its photos start a fresh batch.
	fx.add(7, "g1", "grp-2")

	fx.store.With(7, func(s *session.Session) {
		if s.Batch.GroupToken != "grp-2" || len(s.Batch.PhotoIDs) != 1 {
			t.Errorf("batch = %+v, want fresh grp-2", s.Batch)
		}
	})

	// The stale grp-1 flush finds a different batch and backs out.
	fx.sched.fire(flushKey(7, "grp-1"))
	fx.store.With(7, func(s *session.Session) {
		if s.State != session.StateAwaitingPhotos {
			t.Errorf("state = %v, want awaiting_photos", s.State)
		}
		if s.Batch == nil || s.Batch.GroupToken != "grp-2" {
			t.Error("stale flush clobbered the live batch")
		}
	})
}
