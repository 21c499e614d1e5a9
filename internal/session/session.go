// Package session holds the per-chat conversational state: the submission
// step the user is on, their in-progress draft, the pending photo batch, and
// the moderator-side awaiting-reason marker. Sessions live in memory for the
// lifetime of the process; nothing here is persisted.
//
// Concurrency model: every session owns a mutex, and all event handling for
// a chat runs under it via Store.With. Events for one chat are therefore
// processed one at a time in arrival order, while different chats proceed
// independently. The deferred batch flush uses the same entry point, so a
// flush firing after a cancel observes the cleared state and backs out.
package session

import (
	"sync"
	"time"

	"github.com/tbourn/go-board-bot/internal/domain"
)

// State is the submission step a chat is currently on.
type State int

// Submission steps, in conversation order. StateIdle is both the initial
// state and the terminal state after completion or cancellation.
const (
	StateIdle State = iota
	StateAwaitingTitle
	StateAwaitingDescription
	StateAwaitingPrice
	StateAwaitingCategory
	StateAwaitingPhotos
	StateAwaitingConfirmation
)

// String returns a short name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingTitle:
		return "awaiting_title"
	case StateAwaitingDescription:
		return "awaiting_description"
	case StateAwaitingPrice:
		return "awaiting_price"
	case StateAwaitingCategory:
		return "awaiting_category"
	case StateAwaitingPhotos:
		return "awaiting_photos"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	default:
		return "unknown"
	}
}

// Draft is the in-progress submission. It belongs to exactly one session and
// is discarded on completion or cancellation.
type Draft struct {
	Title       string
	Description string
	Price       int64
	Category    *domain.Category
	PhotoIDs    []string
	BatchID     string
}

// Batch is one in-flight multi-photo upload awaiting its flush. Snapshot
// copies the draft's text fields at batch-open time so the preview caption
// is stable even if the draft is mutated before the flush fires.
type Batch struct {
	GroupToken string
	PhotoIDs   []string
	Snapshot   Draft
	Deadline   time.Time
}

// Session is the conversational context of one chat.
type Session struct {
	mu sync.Mutex

	// ChatID is the Telegram chat this session belongs to.
	ChatID int64

	// UserID is the domain user bound to this chat, set on /start.
	// An empty UserID means the session is unauthenticated and every
	// workflow entry point short-circuits.
	UserID string

	State State
	Draft *Draft
	Batch *Batch

	// AwaitingReasonAdID is set on a moderator's session after they press
	// "reject": their next free-text message is taken as the reason.
	AwaitingReasonAdID string
}

// Authenticated reports whether a domain user is bound to this session.
func (s *Session) Authenticated() bool { return s.UserID != "" }

// ResetDraft clears the draft, the pending batch, and returns the session to
// idle. The caller is responsible for cancelling any scheduled flush.
func (s *Session) ResetDraft() {
	s.State = StateIdle
	s.Draft = nil
	s.Batch = nil
}

// Store owns all sessions, keyed by chat id.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// get returns the session for chatID, creating it on first access.
func (st *Store) get(chatID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[chatID]
	if !ok {
		s = &Session{ChatID: chatID, State: StateIdle}
		st.sessions[chatID] = s
	}
	return s
}

// With runs fn with the chat's session under its lock. All reads and
// mutations of session state must go through here; holding the lock for the
// duration of fn is what gives each chat single-writer, in-order semantics.
func (st *Store) With(chatID int64, fn func(*Session)) {
	s := st.get(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// Len reports the number of live sessions. Used by tests and diagnostics.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
