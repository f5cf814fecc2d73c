package helper

import (
	"github.com/lekenzi/QuizNexus/internal/domain/entity"
)

// QuestionOption представляет вариант ответа для фронтенда
type QuestionOption struct {
	Slot int    `json:"slot"` // 1..4, номер слота в вопросе
	Text string `json:"text"`
}

// ConvertOptionsToObjects преобразует слоты вопроса в список вариантов.
// Пустые слоты (необязательные option3/option4) пропускаются.
func ConvertOptionsToObjects(q *entity.Question) []QuestionOption {
	options := q.Options()
	converted := make([]QuestionOption, 0, len(options))
	for i, opt := range options {
		if opt == "" {
			continue
		}
		converted = append(converted, QuestionOption{Slot: i + 1, Text: opt})
	}
	return converted
}
