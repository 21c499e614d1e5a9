// Package domain defines the persistence models for users, categories, ads,
// ad photos, and published channel messages. These types are mapped with GORM
// and form the core data layer of the classified-ads bot.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// User represents a bot participant identified by their Telegram account.
// A user must have both a contact phone and a Telegram login before they are
// allowed to submit ads; moderators are flagged with IsAdmin.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - TelegramID: unique chat/user identifier assigned by the platform.
//   - Login: public Telegram handle, shown as the seller contact in ads.
//   - Phone: contact phone captured via the share-contact flow.
//   - IsAdmin: marks the user as a moderator (receives review requests).
//   - IsBlocked: blocked users are ignored by the dispatcher.
//   - LastSeenAt: refreshed on every /start.
type User struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	TelegramID int64          `json:"telegram_id" gorm:"not null;uniqueIndex:ux_users_telegram_id"`
	FirstName  string         `json:"first_name"  gorm:"type:varchar(255)"`
	LastName   string         `json:"last_name"   gorm:"type:varchar(255)"`
	Login      string         `json:"login"       gorm:"type:varchar(255)"`
	Phone      string         `json:"phone"       gorm:"type:varchar(64)"`
	IsAdmin    bool           `json:"is_admin"    gorm:"not null;default:false"`
	IsBlocked  bool           `json:"is_blocked"  gorm:"not null;default:false"`
	LastSeenAt time.Time      `json:"last_seen_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Category is one of the fixed classified-ad sections. Categories are seeded
// at startup and resolved by Alias when the user picks one from the keyboard.
type Category struct {
	ID        string    `json:"id"    gorm:"type:char(36);primaryKey"`
	Title     string    `json:"title" gorm:"type:varchar(255);not null"`
	Alias     string    `json:"alias" gorm:"type:varchar(64);not null;uniqueIndex:ux_categories_alias"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string { return "ad_categories" }

// AdStatus is the moderation lifecycle state of an ad.
type AdStatus string

// Ad lifecycle states. Transitions only move forward:
// pendingReview → approved|rejected, approved → unpublished.
const (
	StatusDraft         AdStatus = "draft"
	StatusPendingReview AdStatus = "pending_review"
	StatusApproved      AdStatus = "approved"
	StatusRejected      AdStatus = "rejected"
	StatusUnpublished   AdStatus = "unpublished"
)

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. An approved ad can be unpublished but never re-enters review.
func (s AdStatus) CanTransition(next AdStatus) bool {
	switch s {
	case StatusDraft:
		return next == StatusPendingReview
	case StatusPendingReview:
		return next == StatusApproved || next == StatusRejected
	case StatusApproved:
		return next == StatusUnpublished
	default:
		return false
	}
}

// Ad is a persisted classified listing. Content fields are immutable after
// submission; only Status, RejectReason, and the set of published channel
// messages change afterwards.
//
// Fields:
//   - OwnerID: FK to the submitting user.
//   - Price: non-negative amount in whole rubles.
//   - Status: moderation lifecycle state (see AdStatus).
//   - RejectReason: free-text moderator comment, set on rejection.
//   - Photos: up to five attached photo references, ordered by Position.
//   - Messages: channel messages created when the ad was published.
type Ad struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	OwnerID      string         `json:"owner_id"      gorm:"type:char(36);not null;index:idx_ads_owner"`
	Title        string         `json:"title"         gorm:"type:varchar(255);not null"`
	Description  string         `json:"description"   gorm:"type:text;not null"`
	Price        int64          `json:"price"         gorm:"not null;check:price >= 0"`
	CategoryID   string         `json:"category_id"   gorm:"type:char(36);not null"`
	Status       AdStatus       `json:"status"        gorm:"type:varchar(32);not null;index:idx_ads_status"`
	RejectReason string         `json:"reject_reason" gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"             gorm:"index"`

	// Owner is the submitting user. Ads are retained if the user row is
	// soft-deleted, so no cascade here.
	Owner    User     `json:"-" gorm:"foreignKey:OwnerID;references:ID"`
	Category Category `json:"-" gorm:"foreignKey:CategoryID;references:ID"`

	Photos   []AdPhoto        `json:"photos"   gorm:"foreignKey:AdID;references:ID"`
	Messages []ChannelMessage `json:"messages" gorm:"foreignKey:AdID;references:ID"`
}

// TableName returns the database table name for Ad.
func (Ad) TableName() string { return "ads" }

// PhotoIDs returns the ad's photo file identifiers in display order.
func (a *Ad) PhotoIDs() []string {
	out := make([]string, 0, len(a.Photos))
	for _, p := range a.Photos {
		out = append(out, p.FileID)
	}
	return out
}

// AdPhoto is a single photo attached to an ad. FileID is the opaque
// platform-assigned identifier; Position preserves upload order.
type AdPhoto struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	AdID      string    `json:"ad_id"    gorm:"type:char(36);not null;index:idx_photos_ad"`
	FileID    string    `json:"file_id"  gorm:"type:varchar(300);not null"`
	Position  int       `json:"position" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`

	// Ad is the owning listing. Photos are cascade-deleted with it.
	Ad Ad `json:"-" gorm:"foreignKey:AdID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AdPhoto.
func (AdPhoto) TableName() string { return "ad_photos" }

// ChannelMessage records one message posted to the public channel for an
// approved ad. Withdrawing the ad deletes these messages from the channel.
type ChannelMessage struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	AdID      string    `json:"ad_id"      gorm:"type:char(36);not null;index:idx_channel_msgs_ad"`
	ChatID    int64     `json:"chat_id"    gorm:"not null"`
	MessageID int       `json:"message_id" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`

	// Ad is the published listing. Refs are cascade-deleted with it.
	Ad Ad `json:"-" gorm:"foreignKey:AdID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChannelMessage.
func (ChannelMessage) TableName() string { return "channel_messages" }
