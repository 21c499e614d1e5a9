// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the processed-update log used to drop
// webhook redeliveries.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-board-bot/internal/domain"
)

// MarkUpdateProcessed records a Telegram update id and reports whether this
// call was the first to see it. A duplicate insert is swallowed via
// ON CONFLICT DO NOTHING, so redelivered updates come back false.
func MarkUpdateProcessed(ctx context.Context, db *gorm.DB, updateID int64) (bool, error) {
	rec := domain.ProcessedUpdate{UpdateID: updateID, SeenAt: time.Now().UTC()}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PurgeProcessedUpdates removes log rows older than the retention window.
// Telegram retries webhooks for at most 24 hours, so anything older is dead
// weight.
func PurgeProcessedUpdates(ctx context.Context, db *gorm.DB, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res := db.WithContext(ctx).
		Where("seen_at < ?", cutoff).
		Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}
