// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Category model.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-board-bot/internal/domain"
)

// GetCategoryByAlias resolves a category keyboard token to its record,
// or ErrNotFound for an unknown alias.
func GetCategoryByAlias(ctx context.Context, db *gorm.DB, alias string) (*domain.Category, error) {
	var c domain.Category
	if err := db.WithContext(ctx).Where("alias = ?", alias).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns the full catalog in a stable order.
func ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error) {
	var out []domain.Category
	err := db.WithContext(ctx).Order("title asc").Find(&out).Error
	return out, err
}
