package repository

import (
	"context"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
)

// QuestionRepository определяет методы для работы с вопросами
type QuestionRepository interface {
	Create(ctx context.Context, question *entity.Question) error
	GetByID(ctx context.Context, id uint) (*entity.Question, error)
	GetByQuizID(ctx context.Context, quizID uint) ([]entity.Question, error)
	CountByQuizID(ctx context.Context, quizID uint) (int64, error)
	Update(ctx context.Context, question *entity.Question) error
	Delete(ctx context.Context, id uint) error
}
