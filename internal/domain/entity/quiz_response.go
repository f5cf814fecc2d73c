package entity

import (
	"time"
)

// QuizResponse - ответ пользователя на вопрос. Не более одной записи на (quiz, user, question):
// повторная отправка перезаписывает выбор и корректность.
type QuizResponse struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	QuizID         uint      `gorm:"not null;uniqueIndex:idx_response_key,priority:1" json:"quiz_id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_response_key,priority:2;index" json:"user_id"`
	QuestionID     uint      `gorm:"not null;uniqueIndex:idx_response_key,priority:3" json:"question_id"`
	SelectedOption string    `gorm:"size:140;not null" json:"selected_option"`
	IsCorrect      bool      `gorm:"not null" json:"is_correct"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (QuizResponse) TableName() string {
	return "quiz_responses"
}
