package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lekenzi/QuizNexus/internal/cache"
	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
)

type submissionFixture struct {
	svc       *SubmissionService
	quizzes   *MockQuizRepository
	questions *MockQuestionRepository
	responses *MockResponseRepository
}

func newSubmissionFixture(t *testing.T, now time.Time) *submissionFixture {
	t.Helper()
	f := &submissionFixture{
		quizzes:   new(MockQuizRepository),
		questions: new(MockQuestionRepository),
		responses: new(MockResponseRepository),
	}
	f.svc = NewSubmissionService(f.quizzes, f.questions, f.responses, cache.NewStore(nil), time.UTC)
	f.svc.now = func() time.Time { return now }
	return f
}

func liveQuiz() *entity.Quiz {
	tod := entity.TimeOfDay{Hour: 9, Minute: 30}
	return &entity.Quiz{
		ID:              1,
		DateOfQuiz:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		TimeOfDay:       &tod,
		DurationMinutes: 60,
	}
}

func TestSubmissionService_Submit(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newSubmissionFixture(t, time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))
	f.quizzes.On("GetByID", ctx, uint(1)).Return(liveQuiz(), nil)
	f.questions.On("GetByID", ctx, uint(11)).Return(&entity.Question{ID: 11, QuizID: 1, Option1: "3", Option2: "4", Answer: "4"}, nil)
	f.responses.On("Upsert", ctx, mock.AnythingOfType("*entity.QuizResponse")).Return(nil)

	// Act
	response, err := f.svc.Submit(ctx, 5, 1, SubmitInput{QuestionID: 11, SelectedOption: " 4 "})

	// Assert
	require.NoError(t, err)
	assert.True(t, response.IsCorrect)
	assert.Equal(t, "4", response.SelectedOption)
	assert.Equal(t, uint(5), response.UserID)
	f.responses.AssertExpectations(t)
}

func TestSubmissionService_Submit_OutsideWindow(t *testing.T) {
	ctx := context.Background()
	cases := map[string]time.Time{
		"before start": time.Date(2026, 3, 10, 9, 29, 59, 0, time.UTC),
		"after end":    time.Date(2026, 3, 10, 10, 30, 1, 0, time.UTC),
	}
	for name, now := range cases {
		t.Run(name, func(t *testing.T) {
			// Arrange
			f := newSubmissionFixture(t, now)
			f.quizzes.On("GetByID", ctx, uint(1)).Return(liveQuiz(), nil)

			// Act
			_, err := f.svc.Submit(ctx, 5, 1, SubmitInput{QuestionID: 11, SelectedOption: "4"})

			// Assert
			assert.ErrorIs(t, err, ErrQuizNotLive)
			f.responses.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmissionService_Submit_Validation(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newSubmissionFixture(t, time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC))
	f.quizzes.On("GetByID", ctx, uint(1)).Return(liveQuiz(), nil)
	f.questions.On("GetByID", ctx, uint(11)).Return(&entity.Question{ID: 11, QuizID: 1, Option1: "3", Option2: "4", Answer: "4"}, nil)
	f.questions.On("GetByID", ctx, uint(12)).Return(&entity.Question{ID: 12, QuizID: 2, Option1: "a", Answer: "a"}, nil)

	// Act
	_, foreignErr := f.svc.Submit(ctx, 5, 1, SubmitInput{QuestionID: 12, SelectedOption: "a"})
	_, optionErr := f.svc.Submit(ctx, 5, 1, SubmitInput{QuestionID: 11, SelectedOption: "5"})

	// Assert
	assert.ErrorIs(t, foreignErr, apperrors.ErrValidation)
	assert.ErrorIs(t, optionErr, apperrors.ErrValidation)
	f.responses.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}
