package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
	"github.com/lib/pq"
)

// QuizRepo реализует repository.QuizRepository
type QuizRepo struct {
	db *gorm.DB
}

// NewQuizRepo создает новый репозиторий викторин
func NewQuizRepo(db *gorm.DB) *QuizRepo {
	return &QuizRepo{db: db}
}

// Create создает новую викторину
func (r *QuizRepo) Create(ctx context.Context, quiz *entity.Quiz) error {
	return r.db.WithContext(ctx).Create(quiz).Error
}

// GetByID возвращает викторину по ID
func (r *QuizRepo) GetByID(ctx context.Context, id uint) (*entity.Quiz, error) {
	var quiz entity.Quiz
	err := r.db.WithContext(ctx).First(&quiz, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &quiz, nil
}

// Update обновляет информацию о викторине
func (r *QuizRepo) Update(ctx context.Context, quiz *entity.Quiz) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(quiz).Error
}

// Delete удаляет викторину и все зависимые записи в одной транзакции
func (r *QuizRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", id).Delete(&entity.Score{}).Error; err != nil {
			return fmt.Errorf("delete scores of quiz #%d: %w", id, err)
		}
		if err := tx.Where("quiz_id = ?", id).Delete(&entity.QuizResponse{}).Error; err != nil {
			return fmt.Errorf("delete responses of quiz #%d: %w", id, err)
		}
		if err := tx.Where("quiz_id = ?", id).Delete(&entity.Question{}).Error; err != nil {
			return fmt.Errorf("delete questions of quiz #%d: %w", id, err)
		}
		result := tx.Delete(&entity.Quiz{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
}

// List возвращает все викторины
func (r *QuizRepo) List(ctx context.Context) ([]entity.Quiz, error) {
	var quizzes []entity.Quiz
	err := r.db.WithContext(ctx).Order("date_of_quiz, id").Find(&quizzes).Error
	return quizzes, err
}

// ListByChapter возвращает викторины раздела
func (r *QuizRepo) ListByChapter(ctx context.Context, chapterID uint) ([]entity.Quiz, error) {
	var quizzes []entity.Quiz
	err := r.db.WithContext(ctx).
		Where("chapter_id = ?", chapterID).
		Order("date_of_quiz, id").
		Find(&quizzes).Error
	return quizzes, err
}

// ListByIDs возвращает викторины по списку ID
func (r *QuizRepo) ListByIDs(ctx context.Context, ids []uint) ([]entity.Quiz, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var quizzes []entity.Quiz
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&quizzes).Error
	return quizzes, err
}

// ListByDateRange возвращает викторины с календарной датой в [from, to]
func (r *QuizRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]entity.Quiz, error) {
	var quizzes []entity.Quiz
	err := r.db.WithContext(ctx).
		Where("date_of_quiz >= ? AND date_of_quiz <= ?", entity.CalendarDate(from), entity.CalendarDate(to)).
		Order("date_of_quiz, id").
		Find(&quizzes).Error
	return quizzes, err
}

// Count возвращает общее количество викторин
func (r *QuizRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.Quiz{}).Count(&total).Error
	return total, err
}

// isUniqueViolation проверяет нарушение уникальности: gorm.ErrDuplicatedKey (TranslateError)
// и код 23505 для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}

// translateNotFound приводит gorm.ErrRecordNotFound к apperrors.ErrNotFound
func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	return err
}
