package repository

import (
	"context"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
)

// SubjectRepository определяет методы для работы с предметами
type SubjectRepository interface {
	Create(ctx context.Context, subject *entity.Subject) error
	GetByID(ctx context.Context, id uint) (*entity.Subject, error)
	Update(ctx context.Context, subject *entity.Subject) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context) ([]entity.Subject, error)
}

// ChapterRepository определяет методы для работы с разделами
type ChapterRepository interface {
	Create(ctx context.Context, chapter *entity.Chapter) error
	GetByID(ctx context.Context, id uint) (*entity.Chapter, error)
	Update(ctx context.Context, chapter *entity.Chapter) error
	Delete(ctx context.Context, id uint) error
	ListBySubject(ctx context.Context, subjectID uint) ([]entity.Chapter, error)
	List(ctx context.Context) ([]entity.Chapter, error)
}
