package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/domain/repository"
	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
)

// PreferenceInput - частичное обновление настроек, nil-поля не меняются
type PreferenceInput struct {
	ReminderTime   *string `json:"reminder_time"` // HH:MM
	EmailReminders *bool   `json:"email_reminders"`
	MonthlyReport  *bool   `json:"monthly_report"`
}

// PreferenceService управляет настройками уведомлений пользователя
type PreferenceService struct {
	repo repository.PreferenceRepository
	now  func() time.Time
}

// NewPreferenceService создает сервис настроек
func NewPreferenceService(repo repository.PreferenceRepository) *PreferenceService {
	return &PreferenceService{repo: repo, now: time.Now}
}

// Get возвращает настройки, создавая их со значениями по умолчанию
func (s *PreferenceService) Get(ctx context.Context, userID uint) (*entity.UserPreference, error) {
	return s.repo.GetOrCreate(ctx, userID)
}

// Update применяет непустые поля input
func (s *PreferenceService) Update(ctx context.Context, userID uint, input PreferenceInput) (*entity.UserPreference, error) {
	pref, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.ReminderTime != nil {
		tod, err := entity.ParseTimeOfDay(*input.ReminderTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		pref.ReminderTime = tod
	}
	if input.EmailReminders != nil {
		pref.EmailReminders = *input.EmailReminders
	}
	if input.MonthlyReport != nil {
		pref.MonthlyReport = *input.MonthlyReport
	}

	if err := s.repo.Update(ctx, pref); err != nil {
		return nil, fmt.Errorf("failed to update preferences of user #%d: %w", userID, err)
	}
	return pref, nil
}

// TouchLastVisit отмечает визит пользователя
func (s *PreferenceService) TouchLastVisit(ctx context.Context, userID uint) error {
	return s.repo.TouchLastVisit(ctx, userID, s.now())
}
