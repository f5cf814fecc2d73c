package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
)

// PreferenceRepo реализует repository.PreferenceRepository
type PreferenceRepo struct {
	db *gorm.DB
}

// NewPreferenceRepo создает новый репозиторий настроек уведомлений
func NewPreferenceRepo(db *gorm.DB) *PreferenceRepo {
	return &PreferenceRepo{db: db}
}

// GetOrCreate возвращает настройки пользователя, при отсутствии создает их со значениями по умолчанию.
// Момент создания считается первым визитом. Гонка двух создателей разрешается уникальным индексом по user_id.
func (r *PreferenceRepo) GetOrCreate(ctx context.Context, userID uint) (*entity.UserPreference, error) {
	db := r.db.WithContext(ctx)

	var pref entity.UserPreference
	err := db.Where("user_id = ?", userID).First(&pref).Error
	if err == nil {
		return &pref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := entity.NewUserPreference(userID)
	visit := time.Now().UTC()
	created.LastVisit = &visit
	if err := db.Create(created).Error; err != nil {
		if !isUniqueViolation(err) {
			return nil, err
		}
		if err := db.Where("user_id = ?", userID).First(&pref).Error; err != nil {
			return nil, err
		}
		return &pref, nil
	}
	return created, nil
}

// Update сохраняет только редактируемые пользователем поля.
// last_visit и last_reminded_on пишут TouchLastVisit и MarkReminded, устаревшая копия их не затирает.
func (r *PreferenceRepo) Update(ctx context.Context, pref *entity.UserPreference) error {
	return r.db.WithContext(ctx).Model(pref).
		Select("reminder_time", "email_reminders", "monthly_report").
		Updates(pref).Error
}

// TouchLastVisit обновляет время последнего визита
func (r *PreferenceRepo) TouchLastVisit(ctx context.Context, userID uint, at time.Time) error {
	if _, err := r.GetOrCreate(ctx, userID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&entity.UserPreference{}).
		Where("user_id = ?", userID).
		Update("last_visit", at.UTC()).Error
}

// MarkReminded записывает дату последнего отправленного напоминания
func (r *PreferenceRepo) MarkReminded(ctx context.Context, userID uint, day time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.UserPreference{}).
		Where("user_id = ?", userID).
		Update("last_reminded_on", entity.CalendarDate(day)).Error
}
