// Package services implements the ad submission and moderation workflow: the
// per-chat draft state machine, the media batch collector, the moderation
// fan-out with approve/reject decisions, and the notification dispatcher.
// Services hold no transport types beyond the chat contracts and no SQL
// beyond the repo interfaces they declare, which keeps every flow testable
// with in-memory fakes.
package services

import "errors"

var (
	// ErrNotAuthenticated means the chat has no bound user; the visitor has
	// never sent /start (or the process restarted and the session is gone).
	ErrNotAuthenticated = errors.New("chat is not authenticated")

	// ErrPhoneRequired means the user must share a contact before submitting.
	ErrPhoneRequired = errors.New("phone number required")

	// ErrUsernameRequired means the user has no Telegram username, so buyers
	// would have no way to reach them from a published ad.
	ErrUsernameRequired = errors.New("telegram username required")

	// ErrInvalidState means the operation does not apply to the session's
	// current conversation state.
	ErrInvalidState = errors.New("operation not valid in current state")

	// ErrInvalidPrice means the submitted price text is not a non-negative
	// integer.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrCategoryNotFound means the chosen category alias is unknown.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrAdNotFound means the referenced ad does not exist.
	ErrAdNotFound = errors.New("ad not found")

	// ErrNotOwner means the caller tried to manage an ad they do not own.
	ErrNotOwner = errors.New("ad belongs to another user")

	// ErrNotModerator means the caller is not allowed to review ads.
	ErrNotModerator = errors.New("user is not a moderator")

	// ErrNotApproved means the ad is not currently published, so it cannot be
	// withdrawn.
	ErrNotApproved = errors.New("ad is not approved")
)
