package repository

import (
	"context"
	"time"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
)

// ScoreBatchResult - итог сохранения пакета результатов одной викторины
type ScoreBatchResult struct {
	Created   []uint // UserID созданных записей
	Conflicts []uint // UserID, для которых запись уже создал конкурентный запуск
}

// ScoreRepository определяет методы для работы с итоговыми результатами
type ScoreRepository interface {
	// GetByUserAndQuiz возвращает apperrors.ErrNotFound, если результат еще не посчитан
	GetByUserAndQuiz(ctx context.Context, userID, quizID uint) (*entity.Score, error)
	Create(ctx context.Context, score *entity.Score) error
	// SaveBatch сохраняет результаты одной транзакцией. Нарушение уникальности (user, quiz)
	// не считается ошибкой и попадает в Conflicts. Любая другая ошибка откатывает весь пакет.
	SaveBatch(ctx context.Context, scores []entity.Score) (*ScoreBatchResult, error)
	GetQuizIDsByUser(ctx context.Context, userID uint) ([]uint, error)
	// GetRecentByUser возвращает последние limit результатов, новые первыми
	GetRecentByUser(ctx context.Context, userID uint, limit int) ([]entity.Score, error)
	// GetByUserBetween возвращает результаты с from <= timestamp < to в хронологическом порядке
	GetByUserBetween(ctx context.Context, userID uint, from, to time.Time) ([]entity.Score, error)
	// GetByQuizOrdered возвращает результаты викторины по убыванию score, при равенстве - по порядку записи
	GetByQuizOrdered(ctx context.Context, quizID uint) ([]entity.Score, error)
	GetByUser(ctx context.Context, userID uint) ([]entity.Score, error)
}
