package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// Create создает новый вопрос
func (r *QuestionRepo) Create(ctx context.Context, question *entity.Question) error {
	return r.db.WithContext(ctx).Create(question).Error
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(ctx context.Context, id uint) (*entity.Question, error) {
	var question entity.Question
	if err := r.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &question, nil
}

// GetByQuizID возвращает все вопросы викторины
func (r *QuestionRepo) GetByQuizID(ctx context.Context, quizID uint) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.WithContext(ctx).Where("quiz_id = ?", quizID).Order("id").Find(&questions).Error
	return questions, err
}

// CountByQuizID возвращает количество вопросов викторины
func (r *QuestionRepo) CountByQuizID(ctx context.Context, quizID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Question{}).Where("quiz_id = ?", quizID).Count(&count).Error
	return count, err
}

// Update обновляет вопрос
func (r *QuestionRepo) Update(ctx context.Context, question *entity.Question) error {
	return r.db.WithContext(ctx).Save(question).Error
}

// Delete удаляет вопрос вместе с ответами на него
func (r *QuestionRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&entity.QuizResponse{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&entity.Question{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
}
