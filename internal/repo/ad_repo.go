// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Ad
// aggregate (ad + photos + published channel messages).
//
// Error semantics:
//   - ErrNotFound when the ad does not exist.
//   - ErrStatusConflict when a guarded status change found the ad in a
//     different state than expected (e.g. a second moderator deciding an
//     already-finalized ad).
//   - On other DB errors, the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-board-bot/internal/domain"
)

// ErrStatusConflict indicates a compare-and-set status update lost: the ad
// exists but is no longer in the expected state.
var ErrStatusConflict = errors.New("ad status conflict")

// CreateAd persists a completed draft as an ad in pending_review, together
// with its ordered photo set, in one transaction.
func CreateAd(ctx context.Context, db *gorm.DB, ownerID, title, description string, price int64, categoryID string, photoIDs []string) (*domain.Ad, error) {
	now := time.Now().UTC()
	ad := &domain.Ad{
		ID:          newID(),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Price:       price,
		CategoryID:  categoryID,
		Status:      domain.StatusPendingReview,
		CreatedAt:   now,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ad).Error; err != nil {
			return err
		}
		for i, fileID := range photoIDs {
			p := domain.AdPhoto{
				ID:        newID(),
				AdID:      ad.ID,
				FileID:    fileID,
				Position:  i,
				CreatedAt: now,
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			ad.Photos = append(ad.Photos, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ad, nil
}

// GetAd fetches an ad with its owner, category, photos (in display order),
// and published channel messages, or ErrNotFound.
func GetAd(ctx context.Context, db *gorm.DB, id string) (*domain.Ad, error) {
	var ad domain.Ad
	err := db.WithContext(ctx).
		Preload("Owner").
		Preload("Category").
		Preload("Photos", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Preload("Messages").
		Where("id = ?", id).
		First(&ad).Error
	if err != nil {
		return nil, err
	}
	return &ad, nil
}

// UpdateAdStatus performs a compare-and-set transition from → to. When zero
// rows are affected it distinguishes a missing ad (ErrNotFound) from an ad
// that already moved on (ErrStatusConflict), so only the first concurrent
// decision wins. A from → to pair that is not a legal lifecycle step is
// refused before touching the database.
func UpdateAdStatus(ctx context.Context, db *gorm.DB, id string, from, to domain.AdStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("illegal ad status transition %s -> %s", from, to)
	}
	res := db.WithContext(ctx).
		Model(&domain.Ad{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.WithContext(ctx).Model(&domain.Ad{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

// RejectAd finalizes a rejection: CAS pending_review → rejected plus the
// moderator's reason, atomically.
func RejectAd(ctx context.Context, db *gorm.DB, id, reason string) error {
	res := db.WithContext(ctx).
		Model(&domain.Ad{}).
		Where("id = ? AND status = ?", id, domain.StatusPendingReview).
		Updates(map[string]any{
			"status":        domain.StatusRejected,
			"reject_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.WithContext(ctx).Model(&domain.Ad{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

// RecordChannelMessages appends published message references to an ad.
func RecordChannelMessages(ctx context.Context, db *gorm.DB, adID string, refs []domain.ChannelMessage) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ref := range refs {
			row := domain.ChannelMessage{
				ID:        newID(),
				AdID:      adID,
				ChatID:    ref.ChatID,
				MessageID: ref.MessageID,
				CreatedAt: now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteChannelMessages removes all published message references of an ad.
// Called after the transport messages themselves have been deleted.
func DeleteChannelMessages(ctx context.Context, db *gorm.DB, adID string) error {
	return db.WithContext(ctx).
		Where("ad_id = ?", adID).
		Delete(&domain.ChannelMessage{}).Error
}

// ListPendingAds returns every ad awaiting a moderation decision, oldest
// first, with associations preloaded for rendering.
func ListPendingAds(ctx context.Context, db *gorm.DB) ([]domain.Ad, error) {
	var out []domain.Ad
	err := db.WithContext(ctx).
		Preload("Owner").
		Preload("Category").
		Preload("Photos", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Where("status = ?", domain.StatusPendingReview).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ListApprovedAdsByOwner returns the owner's currently published ads, most
// recent first, with associations preloaded for rendering.
func ListApprovedAdsByOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Ad, error) {
	var out []domain.Ad
	err := db.WithContext(ctx).
		Preload("Owner").
		Preload("Category").
		Preload("Photos", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Preload("Messages").
		Where("owner_id = ? AND status = ?", ownerID, domain.StatusApproved).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
