package domain

import "time"

// ProcessedUpdate marks a Telegram update as already handled. The webhook
// transport redelivers updates until it receives a 200, so the dispatcher
// records every update id and silently drops duplicates.
type ProcessedUpdate struct {
	UpdateID int64     `json:"update_id" gorm:"primaryKey;autoIncrement:false"`
	SeenAt   time.Time `json:"seen_at"   gorm:"not null;index"`
}

// TableName returns the database table name for ProcessedUpdate.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
