package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
)

// SubjectRepo реализует repository.SubjectRepository
type SubjectRepo struct {
	db *gorm.DB
}

// NewSubjectRepo создает новый репозиторий предметов
func NewSubjectRepo(db *gorm.DB) *SubjectRepo {
	return &SubjectRepo{db: db}
}

func (r *SubjectRepo) Create(ctx context.Context, subject *entity.Subject) error {
	return r.db.WithContext(ctx).Create(subject).Error
}

func (r *SubjectRepo) GetByID(ctx context.Context, id uint) (*entity.Subject, error) {
	var subject entity.Subject
	if err := r.db.WithContext(ctx).First(&subject, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &subject, nil
}

func (r *SubjectRepo) Update(ctx context.Context, subject *entity.Subject) error {
	return r.db.WithContext(ctx).Omit("Chapters").Save(subject).Error
}

// Delete удаляет предмет. Разделы предмета удаляются вместе с ним.
func (r *SubjectRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subject_id = ?", id).Delete(&entity.Chapter{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&entity.Subject{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
}

func (r *SubjectRepo) List(ctx context.Context) ([]entity.Subject, error) {
	var subjects []entity.Subject
	err := r.db.WithContext(ctx).Order("id").Find(&subjects).Error
	return subjects, err
}

// ChapterRepo реализует repository.ChapterRepository
type ChapterRepo struct {
	db *gorm.DB
}

// NewChapterRepo создает новый репозиторий разделов
func NewChapterRepo(db *gorm.DB) *ChapterRepo {
	return &ChapterRepo{db: db}
}

func (r *ChapterRepo) Create(ctx context.Context, chapter *entity.Chapter) error {
	return r.db.WithContext(ctx).Create(chapter).Error
}

func (r *ChapterRepo) GetByID(ctx context.Context, id uint) (*entity.Chapter, error) {
	var chapter entity.Chapter
	if err := r.db.WithContext(ctx).First(&chapter, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &chapter, nil
}

func (r *ChapterRepo) Update(ctx context.Context, chapter *entity.Chapter) error {
	return r.db.WithContext(ctx).Save(chapter).Error
}

func (r *ChapterRepo) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entity.Chapter{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ListBySubject возвращает разделы предмета
func (r *ChapterRepo) ListBySubject(ctx context.Context, subjectID uint) ([]entity.Chapter, error) {
	var chapters []entity.Chapter
	err := r.db.WithContext(ctx).Where("subject_id = ?", subjectID).Order("id").Find(&chapters).Error
	return chapters, err
}

func (r *ChapterRepo) List(ctx context.Context) ([]entity.Chapter, error) {
	var chapters []entity.Chapter
	err := r.db.WithContext(ctx).Order("id").Find(&chapters).Error
	return chapters, err
}
