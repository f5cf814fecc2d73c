package repository

import (
	"context"
	"time"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
)

// UserRepository определяет методы для работы с пользователями
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id uint) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	ListByRole(ctx context.Context, role string) ([]entity.User, error)
	List(ctx context.Context) ([]entity.User, error)
}

// PreferenceRepository определяет методы для работы с настройками уведомлений
type PreferenceRepository interface {
	// GetOrCreate возвращает настройки пользователя, создавая их со значениями по умолчанию
	GetOrCreate(ctx context.Context, userID uint) (*entity.UserPreference, error)
	Update(ctx context.Context, pref *entity.UserPreference) error
	TouchLastVisit(ctx context.Context, userID uint, at time.Time) error
	// MarkReminded записывает календарную дату последнего напоминания
	MarkReminded(ctx context.Context, userID uint, day time.Time) error
}
