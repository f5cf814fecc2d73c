package dto

import (
	"time"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/handler/helper"
)

// QuestionResponse представляет вопрос в формате для ответа клиенту. Правильный ответ не раскрывается.
type QuestionResponse struct {
	ID      uint                    `json:"id"`
	QuizID  uint                    `json:"quiz_id"`
	Text    string                  `json:"text"`
	Options []helper.QuestionOption `json:"options"`
	Marks   int                     `json:"marks"`
}

// QuizResponse представляет викторину в формате для ответа клиенту
type QuizResponse struct {
	ID              uint               `json:"id"`
	Title           string             `json:"title"`
	DateOfQuiz      string             `json:"date_of_quiz"`
	TimeOfDay       string             `json:"time_of_day"`
	StartsAt        time.Time          `json:"starts_at"`
	EndsAt          time.Time          `json:"ends_at"`
	DurationMinutes int                `json:"duration_minutes"`
	Remarks         string             `json:"remarks,omitempty"`
	ChapterID       *uint              `json:"chapter_id,omitempty"`
	SubjectID       *uint              `json:"subject_id,omitempty"`
	QuestionCount   int                `json:"question_count,omitempty"`
	Questions       []QuestionResponse `json:"questions,omitempty"`
}

// NewQuestionResponse создает DTO для вопроса
func NewQuestionResponse(q *entity.Question) QuestionResponse {
	return QuestionResponse{
		ID:      q.ID,
		QuizID:  q.QuizID,
		Text:    q.Text,
		Options: helper.ConvertOptionsToObjects(q),
		Marks:   q.Marks,
	}
}

// NewQuizResponse создает DTO для викторины; время окна считается в зоне loc
func NewQuizResponse(quiz *entity.Quiz, loc *time.Location, includeQuestions bool) *QuizResponse {
	if quiz == nil {
		return nil
	}

	tod := "00:00"
	if quiz.TimeOfDay != nil {
		tod = quiz.TimeOfDay.HHMM()
	}
	resp := &QuizResponse{
		ID:              quiz.ID,
		Title:           quiz.Title,
		DateOfQuiz:      quiz.DateOfQuiz.UTC().Format(time.DateOnly),
		TimeOfDay:       tod,
		StartsAt:        quiz.StartsAt(loc),
		EndsAt:          quiz.EndsAt(loc),
		DurationMinutes: quiz.DurationMinutes,
		Remarks:         quiz.Remarks,
		ChapterID:       quiz.ChapterID,
		SubjectID:       quiz.SubjectID,
	}
	if includeQuestions {
		resp.QuestionCount = len(quiz.Questions)
		resp.Questions = make([]QuestionResponse, len(quiz.Questions))
		for i := range quiz.Questions {
			resp.Questions[i] = NewQuestionResponse(&quiz.Questions[i])
		}
	}
	return resp
}

// NewListQuizResponse создает слайс DTO для списка викторин
func NewListQuizResponse(quizzes []entity.Quiz, loc *time.Location) []*QuizResponse {
	list := make([]*QuizResponse, len(quizzes))
	for i := range quizzes {
		list[i] = NewQuizResponse(&quizzes[i], loc, false)
	}
	return list
}
