package postgres

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/domain/repository"
	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
)

// ScoreRepo реализует repository.ScoreRepository
type ScoreRepo struct {
	db *gorm.DB
}

// NewScoreRepo создает новый репозиторий результатов
func NewScoreRepo(db *gorm.DB) *ScoreRepo {
	return &ScoreRepo{db: db}
}

// GetByUserAndQuiz возвращает результат пользователя за викторину
func (r *ScoreRepo) GetByUserAndQuiz(ctx context.Context, userID, quizID uint) (*entity.Score, error) {
	var score entity.Score
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		First(&score).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &score, nil
}

// Create сохраняет один результат. Повторная запись для (user, quiz) возвращает apperrors.ErrConflict.
func (r *ScoreRepo) Create(ctx context.Context, score *entity.Score) error {
	score.Timestamp = score.Timestamp.UTC()
	if err := r.db.WithContext(ctx).Create(score).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: score for user #%d quiz #%d", apperrors.ErrConflict, score.UserID, score.QuizID)
		}
		return err
	}
	return nil
}

// SaveBatch сохраняет результаты одной викторины одной транзакцией.
// Каждая вставка выполняется в собственном SAVEPOINT: конфликт уникальности
// откатывает только эту строку, остальные остаются в пакете.
func (r *ScoreRepo) SaveBatch(ctx context.Context, scores []entity.Score) (*repository.ScoreBatchResult, error) {
	result := &repository.ScoreBatchResult{}
	if len(scores) == 0 {
		return result, nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range scores {
			score := &scores[i]
			score.Timestamp = score.Timestamp.UTC()

			err := tx.Transaction(func(sp *gorm.DB) error {
				return sp.Create(score).Error
			})
			if err == nil {
				result.Created = append(result.Created, score.UserID)
				continue
			}
			if isUniqueViolation(err) {
				log.Printf("[ScoreRepo] Результат user #%d quiz #%d уже создан конкурентным запуском", score.UserID, score.QuizID)
				score.ID = 0
				result.Conflicts = append(result.Conflicts, score.UserID)
				continue
			}
			return fmt.Errorf("insert score user #%d quiz #%d: %w", score.UserID, score.QuizID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetQuizIDsByUser возвращает ID викторин, за которые у пользователя есть результат
func (r *ScoreRepo) GetQuizIDsByUser(ctx context.Context, userID uint) ([]uint, error) {
	var quizIDs []uint
	err := r.db.WithContext(ctx).Model(&entity.Score{}).
		Where("user_id = ?", userID).
		Pluck("quiz_id", &quizIDs).Error
	return quizIDs, err
}

// GetRecentByUser возвращает последние limit результатов пользователя, новые первыми
func (r *ScoreRepo) GetRecentByUser(ctx context.Context, userID uint, limit int) ([]entity.Score, error) {
	var scores []entity.Score
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&scores).Error
	return scores, err
}

// GetByUserBetween возвращает результаты пользователя за период [from, to) по возрастанию времени
func (r *ScoreRepo) GetByUserBetween(ctx context.Context, userID uint, from, to time.Time) ([]entity.Score, error) {
	var scores []entity.Score
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND timestamp >= ? AND timestamp < ?", userID, from.UTC(), to.UTC()).
		Order("timestamp, id").
		Find(&scores).Error
	return scores, err
}

// GetByQuizOrdered возвращает результаты викторины по убыванию score
func (r *ScoreRepo) GetByQuizOrdered(ctx context.Context, quizID uint) ([]entity.Score, error) {
	var scores []entity.Score
	err := r.db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("score DESC, id").
		Find(&scores).Error
	return scores, err
}

// GetByUser возвращает все результаты пользователя в хронологическом порядке
func (r *ScoreRepo) GetByUser(ctx context.Context, userID uint) ([]entity.Score, error) {
	var scores []entity.Score
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp, id").
		Find(&scores).Error
	return scores, err
}
