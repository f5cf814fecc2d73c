package entity

import (
	"time"
)

// Quiz представляет викторину с окном проведения [start, start+duration]
type Quiz struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Title           string     `gorm:"size:140;not null" json:"title"`
	// Полночь UTC, см. CalendarDate
	DateOfQuiz      time.Time  `gorm:"type:date;not null;index" json:"date_of_quiz"`
	// NULL означает начало суток
	TimeOfDay       *TimeOfDay `gorm:"type:time" json:"time_of_day,omitempty"`
	DurationMinutes int        `gorm:"not null;default:60" json:"duration_minutes"`
	Remarks         string     `gorm:"size:140;not null;default:''" json:"remarks"`
	ChapterID       *uint      `gorm:"index" json:"chapter_id,omitempty"`
	SubjectID       *uint      `gorm:"index" json:"subject_id,omitempty"`
	Questions       []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Quiz) TableName() string {
	return "quizzes"
}

// StartsAt возвращает момент начала: дата викторины + время суток (или 00:00) в зоне loc
func (q *Quiz) StartsAt(loc *time.Location) time.Time {
	tod := TimeOfDay{}
	if q.TimeOfDay != nil {
		tod = *q.TimeOfDay
	}
	return tod.On(q.DateOfQuiz.UTC(), loc)
}

// EndsAt возвращает момент окончания окна викторины
func (q *Quiz) EndsAt(loc *time.Location) time.Time {
	return q.StartsAt(loc).Add(time.Duration(q.DurationMinutes) * time.Minute)
}

// IsLive проверяет, принимает ли викторина ответы в момент now
func (q *Quiz) IsLive(now time.Time, loc *time.Location) bool {
	return !now.Before(q.StartsAt(loc)) && !now.After(q.EndsAt(loc))
}
