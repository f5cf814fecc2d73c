package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
)

func TestScoreRepo_CreateDuplicateIsConflict(t *testing.T) {
	// Arrange
	db := newTestDB(t)
	repo := NewScoreRepo(db)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &entity.Score{UserID: 1, QuizID: 1, Value: 50, Timestamp: now}))

	// Act
	err := repo.Create(ctx, &entity.Score{UserID: 1, QuizID: 1, Value: 90, Timestamp: now})

	// Assert: существующий результат не перезаписывается
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	stored, err := repo.GetByUserAndQuiz(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 50, stored.Value)
}

func TestScoreRepo_GetByUserAndQuiz_NotFound(t *testing.T) {
	// Arrange
	repo := NewScoreRepo(newTestDB(t))

	// Act
	_, err := repo.GetByUserAndQuiz(context.Background(), 1, 1)

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestScoreRepo_SaveBatch_ConflictsDoNotPoisonBatch(t *testing.T) {
	// Arrange: результат user 1 уже записан "конкурентным" запуском
	db := newTestDB(t)
	repo := NewScoreRepo(db)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &entity.Score{UserID: 1, QuizID: 7, Value: 10, Timestamp: now}))

	batch := []entity.Score{
		{UserID: 1, QuizID: 7, Value: 80, Timestamp: now},
		{UserID: 2, QuizID: 7, Value: 60, Timestamp: now},
		{UserID: 3, QuizID: 7, Value: 100, Timestamp: now},
	}

	// Act
	result, err := repo.SaveBatch(ctx, batch)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []uint{2, 3}, result.Created)
	assert.Equal(t, []uint{1}, result.Conflicts)

	ranked, err := repo.GetByQuizOrdered(ctx, 7)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, uint(3), ranked[0].UserID)
	assert.Equal(t, uint(2), ranked[1].UserID)
	assert.Equal(t, 10, ranked[2].Value, "Конфликтная строка не перезаписала существующую")
}

func TestScoreRepo_GetByUserBetween(t *testing.T) {
	// Arrange
	repo := NewScoreRepo(newTestDB(t))
	ctx := context.Background()
	stamps := []time.Time{
		time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, ts := range stamps {
		require.NoError(t, repo.Create(ctx, &entity.Score{UserID: 5, QuizID: uint(i + 1), Value: 10 * (i + 1), Timestamp: ts}))
	}

	// Act
	march, err := repo.GetByUserBetween(ctx, 5, day(2026, 3, 1), day(2026, 4, 1))

	// Assert: полуинтервал [from, to)
	require.NoError(t, err)
	require.Len(t, march, 2)
	assert.Equal(t, 20, march[0].Value)
	assert.Equal(t, 30, march[1].Value)

	recent, err := repo.GetRecentByUser(ctx, 5, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 40, recent[0].Value, "Новые первыми")

	ids, err := repo.GetQuizIDsByUser(ctx, 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 2, 3, 4}, ids)
}
