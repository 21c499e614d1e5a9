package services

import (
	"context"
	"sync"
	"time"

	"github.com/tbourn/go-board-bot/internal/chat"
)

// fakeSender records every outbound message so tests can assert on what the
// user would have seen.
type sentMsg struct {
	chatID int64
	text   string
	photos []string
	kb     *chat.Keyboard
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMsg
	deleted []chat.MessageRef
	nextID  int

	failText  error
	failAlbum error
}

func (f *fakeSender) ref(chatID int64) chat.MessageRef {
	f.nextID++
	return chat.MessageRef{ChatID: chatID, MessageID: f.nextID}
}

func (f *fakeSender) SendText(_ context.Context, chatID int64, text string, kb *chat.Keyboard) (chat.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failText != nil {
		return chat.MessageRef{}, f.failText
	}
	f.sent = append(f.sent, sentMsg{chatID: chatID, text: text, kb: kb})
	return f.ref(chatID), nil
}

func (f *fakeSender) SendPhoto(_ context.Context, chatID int64, fileID, caption string, kb *chat.Keyboard) (chat.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{chatID: chatID, text: caption, photos: []string{fileID}, kb: kb})
	return f.ref(chatID), nil
}

func (f *fakeSender) SendAlbum(_ context.Context, chatID int64, fileIDs []string, caption string) ([]chat.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAlbum != nil {
		return nil, f.failAlbum
	}
	f.sent = append(f.sent, sentMsg{chatID: chatID, text: caption, photos: fileIDs})
	refs := make([]chat.MessageRef, 0, len(fileIDs))
	for range fileIDs {
		refs = append(refs, f.ref(chatID))
	}
	return refs, nil
}

func (f *fakeSender) DeleteMessage(_ context.Context, ref chat.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

// sentTo returns every message delivered to one chat.
func (f *fakeSender) sentTo(chatID int64) []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMsg
	for _, m := range f.sent {
		if m.chatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// lastText returns the text of the most recent message to a chat, or "".
func (f *fakeSender) lastText(chatID int64) string {
	msgs := f.sentTo(chatID)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].text
}

// fakeScheduler implements chat.Scheduler with manual firing so tests
// control when a batch flush happens.
type fakeScheduler struct {
	mu            sync.Mutex
	tasks         map[string]func()
	scheduleCalls int
	cancelled     []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{tasks: make(map[string]func())}
}

func (f *fakeScheduler) Schedule(key string, _ time.Duration, fn func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduleCalls++
	if _, ok := f.tasks[key]; ok {
		return false
	}
	f.tasks[key] = fn
	return true
}

func (f *fakeScheduler) Cancel(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tasks[key]
	delete(f.tasks, key)
	f.cancelled = append(f.cancelled, key)
	return ok
}

func (f *fakeScheduler) Pending(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tasks[key]
	return ok
}

// fire runs and clears the task for key, mimicking the timer elapsing.
func (f *fakeScheduler) fire(key string) bool {
	f.mu.Lock()
	fn, ok := f.tasks[key]
	delete(f.tasks, key)
	f.mu.Unlock()
	if !ok {
		return false
	}
	fn()
	return true
}
