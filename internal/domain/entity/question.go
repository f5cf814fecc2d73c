package entity

import (
	"strings"
	"time"
)

// Question представляет вопрос викторины с четырьмя вариантами ответа
type Question struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	QuizID    uint      `gorm:"not null;index" json:"quiz_id"`
	Text      string    `gorm:"size:500;not null" json:"text"`
	Option1   string    `gorm:"size:140;not null;default:''" json:"option1"`
	Option2   string    `gorm:"size:140;not null;default:''" json:"option2"`
	Option3   string    `gorm:"size:140;not null;default:''" json:"option3"`
	Option4   string    `gorm:"size:140;not null;default:''" json:"option4"`
	Answer    string    `gorm:"size:140;not null" json:"-"` // Скрыто от клиента
	Marks     int       `gorm:"not null;default:1" json:"marks"`
	ChapterID *uint     `json:"chapter_id,omitempty"`
	SubjectID *uint     `json:"subject_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// Options возвращает варианты ответа в порядке слотов
func (q *Question) Options() []string {
	return []string{q.Option1, q.Option2, q.Option3, q.Option4}
}

// IsValidOption проверяет, что выбранный вариант есть среди слотов вопроса
func (q *Question) IsValidOption(selected string) bool {
	selected = strings.TrimSpace(selected)
	if selected == "" {
		return false
	}
	for _, opt := range q.Options() {
		if opt == selected {
			return true
		}
	}
	return false
}

// IsCorrect проверяет, совпадает ли выбранный вариант с правильным
func (q *Question) IsCorrect(selected string) bool {
	return strings.TrimSpace(selected) == strings.TrimSpace(q.Answer)
}
