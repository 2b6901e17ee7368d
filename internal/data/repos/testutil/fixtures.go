package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/lecturegen/internal/domain"
)

func SeedLectureRun(tb testing.TB, ctx context.Context, tx *gorm.DB, topic string, status string, createdAt time.Time) *types.LectureRun {
	tb.Helper()
	run := &types.LectureRun{
		ID:              uuid.New(),
		Topic:           topic,
		DurationMinutes: 5,
		Status:          status,
		Stage:           status,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	if err := tx.WithContext(ctx).Create(run).Error; err != nil {
		tb.Fatalf("seed lecture run: %v", err)
	}
	return run
}
