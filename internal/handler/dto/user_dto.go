package dto

import (
	"time"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
)

// PreferenceResponse представляет настройки уведомлений пользователя
type PreferenceResponse struct {
	ReminderTime   string     `json:"reminder_time"` // HH:MM
	EmailReminders bool       `json:"email_reminders"`
	MonthlyReport  bool       `json:"monthly_report"`
	LastVisit      *time.Time `json:"last_visit,omitempty"`
}

// NewPreferenceResponse создает DTO настроек
func NewPreferenceResponse(p *entity.UserPreference) *PreferenceResponse {
	if p == nil {
		return nil
	}
	return &PreferenceResponse{
		ReminderTime:   p.ReminderTime.HHMM(),
		EmailReminders: p.EmailReminders,
		MonthlyReport:  p.MonthlyReport,
		LastVisit:      p.LastVisit,
	}
}
