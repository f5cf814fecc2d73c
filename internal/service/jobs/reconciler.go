package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/lekenzi/QuizNexus/internal/cache"
	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
)

// Статусы строки отчета сверки
const (
	StatusCreated           = "created"
	StatusAlreadyCalculated = "skipped - already calculated"
	StatusConcurrent        = "skipped - concurrent"
	StatusRolledBack        = "rolled back"
)

// ScoreResult - итог по одному пользователю викторины
type ScoreResult struct {
	UserID            uint   `json:"user_id"`
	QuizID            uint   `json:"quiz_id"`
	QuizTitle         string `json:"quiz_title"`
	Score             int    `json:"score"`
	CorrectAnswers    int    `json:"correct_answers"`
	TotalQuestions    int    `json:"total_questions"`
	QuestionsAnswered int    `json:"questions_answered"`
	CompletionStatus  string `json:"completion_status,omitempty"` // complete | incomplete
	Status            string `json:"status"`
}

// UserIssue - ошибка обработки пользователя
type UserIssue struct {
	UserID uint   `json:"user_id"`
	Error  string `json:"error"`
}

// QuizReport - детали сверки одной викторины
type QuizReport struct {
	QuizTitle       string      `json:"quiz_title"`
	TotalQuestions  int         `json:"total_questions"`
	TotalUsers      int         `json:"total_users"`
	UsersProcessed  int         `json:"users_processed"`
	ScoresCreated   int         `json:"scores_created"`
	ScoresSkipped   int         `json:"scores_skipped"`
	UsersWithIssues []UserIssue `json:"users_with_issues"`
	Committed       bool        `json:"committed"`
	Error           string      `json:"error,omitempty"`
}

// ReconcileReport - отчет одного тика сверки
type ReconcileReport struct {
	RunID                 string               `json:"run_id"`
	Timestamp             time.Time            `json:"timestamp"`
	QuizzesProcessed      int                  `json:"quizzes_processed"`
	TotalScoresCalculated int                  `json:"total_scores_calculated"`
	QuizDetails           map[uint]*QuizReport `json:"quiz_details"`
	Results               []ScoreResult        `json:"results"`
}

// Reconciler считает итоговые результаты викторин, окно которых закончилось
// в пределах Lookback. Результат создается не более одного раза на пару (user, quiz).
type Reconciler struct {
	config *Config
	deps   *Dependencies
}

// NewReconciler создает новый Reconciler
func NewReconciler(config *Config, deps *Dependencies) *Reconciler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Reconciler{config: config, deps: deps}
}

// Name реализует Job
func (r *Reconciler) Name() string { return JobReconcile }

// Run реализует Job
func (r *Reconciler) Run(ctx context.Context, now time.Time) error {
	_, err := r.Reconcile(ctx, now)
	return err
}

// Reconcile выполняет один тик сверки с окном [now - lookback, now]
func (r *Reconciler) Reconcile(ctx context.Context, now time.Time) (*ReconcileReport, error) {
	return r.ReconcileWindow(ctx, now, r.config.Lookback)
}

// ReconcileWindow выполняет сверку с произвольным окном (для ручного добора пропущенных викторин)
func (r *Reconciler) ReconcileWindow(ctx context.Context, now time.Time, lookback time.Duration) (*ReconcileReport, error) {
	loc := r.config.location()
	report := &ReconcileReport{
		RunID:       uuid.NewString(),
		Timestamp:   now,
		QuizDetails: make(map[uint]*QuizReport),
		Results:     []ScoreResult{},
	}

	quizzes, err := r.deps.QuizRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}

	from := now.Add(-lookback)
	var ended []entity.Quiz
	for _, quiz := range quizzes {
		end := quiz.EndsAt(loc)
		if end.After(now) {
			continue // Еще идет или не началась
		}
		if end.Before(from) {
			continue // Закончилась раньше окна
		}
		ended = append(ended, quiz)
	}
	report.QuizzesProcessed = len(ended)

	if len(ended) == 0 {
		return report, nil
	}
	log.Printf("[Reconciler] Найдено %d завершившихся викторин в окне [%s, %s]",
		len(ended), from.In(loc).Format(time.DateTime), now.In(loc).Format(time.DateTime))

	touched := make(map[uint]struct{})
	for i := range ended {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		for _, userID := range r.reconcileQuiz(ctx, &ended[i], now, report) {
			touched[userID] = struct{}{}
		}
	}

	// Кеш только инвалидируется и только после фиксации
	for userID := range touched {
		r.deps.Cache.Invalidate(cache.UserQuizzesPatterns(userID)...)
	}
	if len(touched) > 0 {
		r.deps.Cache.Invalidate(cache.PatternUserStats)
	}

	log.Printf("[Reconciler] Тик %s: викторин=%d, создано результатов=%d",
		report.RunID, report.QuizzesProcessed, report.TotalScoresCalculated)
	r.writeReport(report, now.In(loc))
	return report, nil
}

// reconcileQuiz обрабатывает одну викторину и возвращает пользователей с новыми результатами
func (r *Reconciler) reconcileQuiz(ctx context.Context, quiz *entity.Quiz, now time.Time, report *ReconcileReport) []uint {
	totalQuestions, err := r.deps.QuestionRepo.CountByQuizID(ctx, quiz.ID)
	if err != nil {
		log.Printf("[Reconciler] Ошибка подсчета вопросов викторины #%d: %v", quiz.ID, err)
		report.QuizDetails[quiz.ID] = &QuizReport{QuizTitle: quiz.Title, Error: err.Error(), UsersWithIssues: []UserIssue{}}
		return nil
	}
	if totalQuestions == 0 {
		log.Printf("[Reconciler] Викторина #%d без вопросов, пропуск", quiz.ID)
		return nil
	}

	details := &QuizReport{
		QuizTitle:       quiz.Title,
		TotalQuestions:  int(totalQuestions),
		UsersWithIssues: []UserIssue{},
	}
	report.QuizDetails[quiz.ID] = details

	userIDs, err := r.deps.ResponseRepo.GetDistinctUserIDs(ctx, quiz.ID)
	if err != nil {
		log.Printf("[Reconciler] Ошибка получения участников викторины #%d: %v", quiz.ID, err)
		details.Error = err.Error()
		return nil
	}
	details.TotalUsers = len(userIDs)

	var pending []entity.Score
	pendingIdx := make(map[uint]int) // user -> индекс в report.Results

	for _, userID := range userIDs {
		result, err := r.scoreUser(ctx, quiz, userID, details.TotalQuestions)
		if err != nil {
			log.Printf("[Reconciler] Ошибка обработки пользователя %d викторины #%d: %v", userID, quiz.ID, err)
			details.UsersWithIssues = append(details.UsersWithIssues, UserIssue{UserID: userID, Error: err.Error()})
			continue
		}
		details.UsersProcessed++

		if result.Status == StatusAlreadyCalculated {
			details.ScoresSkipped++
			report.Results = append(report.Results, *result)
			continue
		}

		pendingIdx[userID] = len(report.Results)
		report.Results = append(report.Results, *result)
		pending = append(pending, entity.Score{
			UserID:    userID,
			QuizID:    quiz.ID,
			Value:     result.Score,
			Timestamp: now,
		})
	}

	if len(pending) == 0 {
		details.Committed = true
		return nil
	}

	batch, err := r.deps.ScoreRepo.SaveBatch(ctx, pending)
	if err != nil {
		// Вся викторина откатывается и будет пересчитана следующим тиком, пока остается в окне
		log.Printf("[Reconciler] Откат результатов викторины #%d: %v", quiz.ID, err)
		details.Error = err.Error()
		for _, idx := range pendingIdx {
			report.Results[idx].Status = StatusRolledBack
		}
		return nil
	}

	details.Committed = true
	for _, userID := range batch.Conflicts {
		details.ScoresSkipped++
		if idx, ok := pendingIdx[userID]; ok {
			report.Results[idx].Status = StatusConcurrent
		}
	}
	details.ScoresCreated = len(batch.Created)
	report.TotalScoresCalculated += len(batch.Created)
	log.Printf("[Reconciler] Викторина #%d %q: создано %d, пропущено %d, ошибок %d",
		quiz.ID, quiz.Title, details.ScoresCreated, details.ScoresSkipped, len(details.UsersWithIssues))
	return batch.Created
}

func (r *Reconciler) scoreUser(ctx context.Context, quiz *entity.Quiz, userID uint, totalQuestions int) (*ScoreResult, error) {
	existing, err := r.deps.ScoreRepo.GetByUserAndQuiz(ctx, userID, quiz.ID)
	if err == nil {
		return &ScoreResult{
			UserID:         userID,
			QuizID:         quiz.ID,
			QuizTitle:      quiz.Title,
			Score:          existing.Value,
			TotalQuestions: totalQuestions,
			Status:         StatusAlreadyCalculated,
		}, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check existing score: %w", err)
	}

	responses, err := r.deps.ResponseRepo.GetByQuizAndUser(ctx, quiz.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}
	correct := 0
	for _, resp := range responses {
		if resp.IsCorrect {
			correct++
		}
	}

	completion := "incomplete"
	if len(responses) >= totalQuestions {
		completion = "complete"
	}

	return &ScoreResult{
		UserID:            userID,
		QuizID:            quiz.ID,
		QuizTitle:         quiz.Title,
		Score:             entity.PercentScore(correct, totalQuestions),
		CorrectAnswers:    correct,
		TotalQuestions:    totalQuestions,
		QuestionsAnswered: len(responses),
		CompletionStatus:  completion,
		Status:            StatusCreated,
	}, nil
}

// writeReport сохраняет отчет как JSON-артефакт. Ошибка только логируется.
func (r *Reconciler) writeReport(report *ReconcileReport, localNow time.Time) {
	if r.config.ReportDir == "" {
		return
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Printf("[Reconciler] Ошибка сериализации отчета: %v", err)
		return
	}
	if err := os.MkdirAll(r.config.ReportDir, 0o755); err != nil {
		log.Printf("[Reconciler] Не удалось создать каталог отчетов %s: %v", r.config.ReportDir, err)
		return
	}
	path := filepath.Join(r.config.ReportDir, fmt.Sprintf("score_calculation_report_%s.json", localNow.Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("[Reconciler] Не удалось записать отчет %s: %v", path, err)
		return
	}
	log.Printf("[Reconciler] Отчет сохранен в %s", path)
}
