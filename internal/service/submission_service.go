package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lekenzi/QuizNexus/internal/cache"
	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/domain/repository"
	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
)

// SubmitInput - ответ на один вопрос
type SubmitInput struct {
	QuestionID     uint   `json:"question_id" binding:"required"`
	SelectedOption string `json:"selected_option" binding:"required"`
}

// SubmissionService принимает ответы пользователей во время проведения викторины.
// Итоговый балл здесь не считается: это делает Reconciler после окончания окна.
type SubmissionService struct {
	quizRepo     repository.QuizRepository
	questionRepo repository.QuestionRepository
	responseRepo repository.ResponseRepository
	cache        *cache.Store
	loc          *time.Location
	now          func() time.Time
}

// NewSubmissionService создает сервис приема ответов
func NewSubmissionService(
	quizRepo repository.QuizRepository,
	questionRepo repository.QuestionRepository,
	responseRepo repository.ResponseRepository,
	store *cache.Store,
	loc *time.Location,
) *SubmissionService {
	if loc == nil {
		loc = time.UTC
	}
	return &SubmissionService{
		quizRepo:     quizRepo,
		questionRepo: questionRepo,
		responseRepo: responseRepo,
		cache:        store,
		loc:          loc,
		now:          time.Now,
	}
}

// Submit сохраняет (или перезаписывает) ответ пользователя на вопрос
func (s *SubmissionService) Submit(ctx context.Context, userID, quizID uint, input SubmitInput) (*entity.QuizResponse, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.IsLive(s.now(), s.loc) {
		return nil, fmt.Errorf("%w: quiz #%d", ErrQuizNotLive, quizID)
	}

	question, err := s.questionRepo.GetByID(ctx, input.QuestionID)
	if err != nil {
		return nil, err
	}
	if question.QuizID != quiz.ID {
		return nil, fmt.Errorf("%w: question #%d does not belong to quiz #%d", apperrors.ErrValidation, question.ID, quiz.ID)
	}
	option := strings.TrimSpace(input.SelectedOption)
	if !question.IsValidOption(option) {
		return nil, fmt.Errorf("%w: unknown option for question #%d", apperrors.ErrValidation, question.ID)
	}

	response := &entity.QuizResponse{
		QuizID:         quiz.ID,
		UserID:         userID,
		QuestionID:     question.ID,
		SelectedOption: option,
		IsCorrect:      question.IsCorrect(option),
	}
	if err := s.responseRepo.Upsert(ctx, response); err != nil {
		return nil, fmt.Errorf("failed to save response: %w", err)
	}

	s.cache.Invalidate(cache.UserQuizzesPatterns(userID)...)
	return response, nil
}
