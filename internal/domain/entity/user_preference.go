package entity

import (
	"time"
)

// UserPreference хранит настройки уведомлений пользователя.
// Булевы поля не имеют gorm default: значения по умолчанию выставляет NewUserPreference,
// иначе GORM подменил бы явный false на default при Create.
type UserPreference struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	ReminderTime   TimeOfDay  `gorm:"type:time;not null" json:"reminder_time"`
	EmailReminders bool       `gorm:"not null" json:"email_reminders"`
	MonthlyReport  bool       `gorm:"not null" json:"monthly_report"`
	LastVisit      *time.Time `json:"last_visit,omitempty"`
	LastRemindedOn *time.Time `gorm:"type:date" json:"last_reminded_on,omitempty"` // Дата последнего отправленного напоминания
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (UserPreference) TableName() string {
	return "user_preferences"
}

// NewUserPreference создает настройки со значениями по умолчанию: 18:00, обе подписки включены
func NewUserPreference(userID uint) *UserPreference {
	return &UserPreference{
		UserID:         userID,
		ReminderTime:   DefaultReminderTime,
		EmailReminders: true,
		MonthlyReport:  true,
	}
}

// CalendarDate приводит локальную дату момента t к полуночи UTC (формат хранения колонок DATE)
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RemindedOn проверяет, отправлялось ли напоминание в календарный день day
func (p *UserPreference) RemindedOn(day time.Time) bool {
	if p.LastRemindedOn == nil {
		return false
	}
	y1, m1, d1 := p.LastRemindedOn.UTC().Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// DaysSinceLastVisit возвращает число полных суток с последнего визита.
// ok=false, если визитов не было.
func (p *UserPreference) DaysSinceLastVisit(now time.Time) (days int, ok bool) {
	if p.LastVisit == nil {
		return 0, false
	}
	return int(now.Sub(*p.LastVisit).Hours() / 24), true
}
