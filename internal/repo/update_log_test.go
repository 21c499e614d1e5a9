package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-board-bot/internal/domain"
)

func TestMarkUpdateProcessed_DropsDuplicates(t *testing.T) {
	db := newTestDB(t, &domain.ProcessedUpdate{})
	ctx := context.Background()

	first, err := MarkUpdateProcessed(ctx, db, 1001)
	if err != nil {
		t.Fatalf("MarkUpdateProcessed: %v", err)
	}
	if !first {
		t.Fatal("first delivery must report true")
	}

	again, err := MarkUpdateProcessed(ctx, db, 1001)
	if err != nil {
		t.Fatalf("MarkUpdateProcessed (duplicate): %v", err)
	}
	if again {
		t.Fatal("redelivery must report false")
	}
}

func TestPurgeProcessedUpdates(t *testing.T) {
	db := newTestDB(t, &domain.ProcessedUpdate{})
	ctx := context.Background()

	old := domain.ProcessedUpdate{UpdateID: 1, SeenAt: time.Now().UTC().Add(-48 * time.Hour)}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := MarkUpdateProcessed(ctx, db, 2); err != nil {
		t.Fatalf("MarkUpdateProcessed: %v", err)
	}

	n, err := PurgeProcessedUpdates(ctx, db, 24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeProcessedUpdates: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d; want 1", n)
	}

	var count int64
	db.Model(&domain.ProcessedUpdate{}).Count(&count)
	if count != 1 {
		t.Fatalf("remaining = %d; want 1", count)
	}
}
