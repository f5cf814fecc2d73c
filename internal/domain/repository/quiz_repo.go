package repository

import (
	"context"
	"time"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
)

// QuizRepository определяет методы каталога викторин
type QuizRepository interface {
	Create(ctx context.Context, quiz *entity.Quiz) error
	GetByID(ctx context.Context, id uint) (*entity.Quiz, error)
	Update(ctx context.Context, quiz *entity.Quiz) error
	// Delete удаляет викторину вместе с вопросами, ответами и результатами
	Delete(ctx context.Context, id uint) error
	// List возвращает все викторины; окно каждой вычисляется вызывающей стороной
	List(ctx context.Context) ([]entity.Quiz, error)
	ListByChapter(ctx context.Context, chapterID uint) ([]entity.Quiz, error)
	ListByIDs(ctx context.Context, ids []uint) ([]entity.Quiz, error)
	// ListByDateRange возвращает викторины с from <= date_of_quiz <= to (по календарной дате)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]entity.Quiz, error)
	Count(ctx context.Context) (int64, error)
}
