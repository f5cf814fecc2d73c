package repository

import (
	"context"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
)

// ResponseRepository определяет методы для работы с ответами пользователей
type ResponseRepository interface {
	// Upsert создает ответ или перезаписывает выбор и корректность для ключа (quiz, user, question)
	Upsert(ctx context.Context, response *entity.QuizResponse) error
	GetByQuizAndUser(ctx context.Context, quizID, userID uint) ([]entity.QuizResponse, error)
	// GetDistinctUserIDs возвращает пользователей, ответивших хотя бы на один вопрос викторины
	GetDistinctUserIDs(ctx context.Context, quizID uint) ([]uint, error)
}
