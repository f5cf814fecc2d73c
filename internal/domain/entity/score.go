package entity

import (
	"time"
)

// Score - итоговый процент пользователя за викторину.
// Существование записи для (user, quiz) является маркером идемпотентности:
// запись создается ровно один раз и никогда не перезаписывается.
type Score struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_score_user_quiz,priority:1" json:"user_id"`
	QuizID    uint      `gorm:"not null;uniqueIndex:idx_score_user_quiz,priority:2;index" json:"quiz_id"`
	Value     int       `gorm:"column:score;not null" json:"score"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"` // Время сверки, а не отправки ответов
}

// TableName определяет имя таблицы для GORM
func (Score) TableName() string {
	return "scores"
}

// PercentScore вычисляет целый процент правильных ответов с округлением вниз.
// Вес вопросов (marks) не учитывается.
func PercentScore(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return correct * 100 / total
}
