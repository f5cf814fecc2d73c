package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lekenzi/QuizNexus/internal/cache"
	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/domain/repository"
)

// Статусы викторины на дашборде
const (
	QuizStatusUpcoming = "upcoming"
	QuizStatusLive     = "live"
	QuizStatusEnded    = "ended"
)

// DashboardQuiz - строка дашборда пользователя
type DashboardQuiz struct {
	QuizID          uint      `json:"quiz_id"`
	Title           string    `json:"title"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	DurationMinutes int       `json:"duration_minutes"`
	ChapterID       *uint     `json:"chapter_id,omitempty"`
	SubjectID       *uint     `json:"subject_id,omitempty"`
	Score           *int      `json:"score,omitempty"`
	Status          string    `json:"status"`
}

// DashboardService собирает викторины пользователя вместе с его результатами
type DashboardService struct {
	quizRepo  repository.QuizRepository
	scoreRepo repository.ScoreRepository
	cache     *cache.Store
	ttl       time.Duration
	loc       *time.Location
	now       func() time.Time
}

// NewDashboardService создает сервис дашборда
func NewDashboardService(
	quizRepo repository.QuizRepository,
	scoreRepo repository.ScoreRepository,
	store *cache.Store,
	ttl time.Duration,
	loc *time.Location,
) *DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{quizRepo: quizRepo, scoreRepo: scoreRepo, cache: store, ttl: ttl, loc: loc, now: time.Now}
}

// GetUserQuizzes возвращает дашборд. Статус вычисляется после чтения из кеша,
// поэтому закешированная запись не устаревает при смене окна.
func (s *DashboardService) GetUserQuizzes(ctx context.Context, userID uint) ([]DashboardQuiz, error) {
	rows, err := cache.Remember(ctx, s.cache, cache.UserQuizzesKey(userID), s.ttl,
		func(ctx context.Context) ([]DashboardQuiz, error) {
			return s.load(ctx, userID)
		})
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i := range rows {
		switch {
		case now.Before(rows[i].StartsAt):
			rows[i].Status = QuizStatusUpcoming
		case now.After(rows[i].EndsAt):
			rows[i].Status = QuizStatusEnded
		default:
			rows[i].Status = QuizStatusLive
		}
	}
	return rows, nil
}

func (s *DashboardService) load(ctx context.Context, userID uint) ([]DashboardQuiz, error) {
	quizzes, err := s.quizRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	scores, err := s.scoreRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scores of user #%d: %w", userID, err)
	}
	byQuiz := make(map[uint]int, len(scores))
	for _, sc := range scores {
		byQuiz[sc.QuizID] = sc.Value
	}

	rows := make([]DashboardQuiz, 0, len(quizzes))
	for i := range quizzes {
		rows = append(rows, newDashboardQuiz(&quizzes[i], s.loc, byQuiz))
	}
	return rows, nil
}

func newDashboardQuiz(q *entity.Quiz, loc *time.Location, scores map[uint]int) DashboardQuiz {
	row := DashboardQuiz{
		QuizID:          q.ID,
		Title:           q.Title,
		StartsAt:        q.StartsAt(loc),
		EndsAt:          q.EndsAt(loc),
		DurationMinutes: q.DurationMinutes,
		ChapterID:       q.ChapterID,
		SubjectID:       q.SubjectID,
	}
	if v, ok := scores[q.ID]; ok {
		score := v
		row.Score = &score
	}
	return row
}
