package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
)

// ResponseRepo реализует repository.ResponseRepository
type ResponseRepo struct {
	db *gorm.DB
}

// NewResponseRepo создает новый репозиторий ответов
func NewResponseRepo(db *gorm.DB) *ResponseRepo {
	return &ResponseRepo{db: db}
}

// Upsert сохраняет ответ. Повторная отправка по ключу (quiz, user, question)
// перезаписывает выбранный вариант и корректность.
func (r *ResponseRepo) Upsert(ctx context.Context, response *entity.QuizResponse) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "quiz_id"}, {Name: "user_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"selected_option", "is_correct", "updated_at"}),
	}).Create(response).Error
}

// GetByQuizAndUser возвращает ответы пользователя на вопросы викторины
func (r *ResponseRepo) GetByQuizAndUser(ctx context.Context, quizID, userID uint) ([]entity.QuizResponse, error) {
	var responses []entity.QuizResponse
	err := r.db.WithContext(ctx).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Order("question_id").
		Find(&responses).Error
	return responses, err
}

// GetDistinctUserIDs возвращает ID пользователей, отправивших хотя бы один ответ
func (r *ResponseRepo) GetDistinctUserIDs(ctx context.Context, quizID uint) ([]uint, error) {
	var userIDs []uint
	err := r.db.WithContext(ctx).Model(&entity.QuizResponse{}).
		Where("quiz_id = ?", quizID).
		Distinct().
		Order("user_id").
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}
