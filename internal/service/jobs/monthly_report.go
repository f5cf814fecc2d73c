package jobs

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/service"
)

// Полосы места среди участников
const (
	BandTop    = "top"
	BandMiddle = "middle"
	BandBottom = "bottom"
)

// QuizRanking - место пользователя в одной викторине месяца
type QuizRanking struct {
	QuizID            uint      `json:"quiz_id"`
	QuizTitle         string    `json:"quiz_title"`
	Score             int       `json:"score"`
	Rank              int       `json:"rank"`
	TotalParticipants int       `json:"total_participants"`
	Band              string    `json:"band"`
	Date              time.Time `json:"date"`
}

// MonthlyReport - данные ежемесячного отчета пользователя
type MonthlyReport struct {
	UserName     string        `json:"user_name"`
	Month        string        `json:"month"`
	TotalQuizzes int           `json:"total_quizzes"`
	TotalScore   int           `json:"total_score"`
	AverageScore float64       `json:"average_score"`
	BestScore    int           `json:"best_score"`
	Trend        service.Trend `json:"improvement_trend"`
	Badge        string        `json:"performance_badge"`
	QuizDetails  []QuizRanking `json:"quiz_details"`
	TestMode     bool          `json:"test_mode,omitempty"`
}

// MonthlyStats - итоги рассылки отчетов
type MonthlyStats struct {
	Month       string   `json:"month"`
	TotalUsers  int      `json:"total_users"`
	ReportsSent int      `json:"reports_sent"`
	Errors      []string `json:"errors"`
	TestMode    bool     `json:"test_mode,omitempty"`
}

// PerformanceBadge возвращает оценку по среднему баллу
func PerformanceBadge(average float64) string {
	switch {
	case average >= 90:
		return "Excellent"
	case average >= 80:
		return "Great"
	case average >= 70:
		return "Good"
	default:
		return "Keep Improving"
	}
}

// RankBand относит место к трети участников. Единственный участник попадает в верхнюю треть.
func RankBand(rank, total int) string {
	if rank <= 0 || total <= 0 {
		return ""
	}
	switch {
	case rank <= int(math.Ceil(float64(total)/3)):
		return BandTop
	case rank <= int(math.Ceil(float64(2*total)/3)):
		return BandMiddle
	default:
		return BandBottom
	}
}

// MonthlyReporter формирует и рассылает ежемесячные отчеты
type MonthlyReporter struct {
	config *Config
	deps   *Dependencies

	mu       sync.Mutex
	lastSent string // Месяц последней плановой рассылки, "2006-01"
}

// NewMonthlyReporter создает генератор отчетов
func NewMonthlyReporter(config *Config, deps *Dependencies) *MonthlyReporter {
	if config == nil {
		config = DefaultConfig()
	}
	return &MonthlyReporter{config: config, deps: deps}
}

// Due проверяет, наступил ли плановый момент рассылки (день месяца и минута)
func (m *MonthlyReporter) Due(now time.Time) bool {
	local := now.In(m.config.location())
	if local.Day() != m.config.MonthlyDay {
		return false
	}
	if entity.TimeOfDayFrom(local).MinuteOfDay() != m.config.MonthlyTime.MinuteOfDay() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSent != local.Format("2006-01")
}

// monthBounds возвращает [from, to) календарного месяца, сдвинутого на offset от месяца now
func monthBounds(now time.Time, loc *time.Location, offset int) (time.Time, time.Time) {
	local := now.In(loc)
	from := time.Date(local.Year(), local.Month()+time.Month(offset), 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 1, 0)
}

// SendMonthlyReports рассылает отчеты за предыдущий месяц подписанным пользователям
func (m *MonthlyReporter) SendMonthlyReports(ctx context.Context, now time.Time) (*MonthlyStats, error) {
	loc := m.config.location()
	from, to := monthBounds(now, loc, -1)
	stats := &MonthlyStats{Month: from.Format("January 2006"), Errors: []string{}}
	log.Printf("[MonthlyReport] Формирование отчетов за %s", stats.Month)

	users, err := m.deps.UserRepo.ListByRole(ctx, entity.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var subscribed []entity.User
	for _, user := range users {
		pref, err := m.deps.PreferenceRepo.GetOrCreate(ctx, user.ID)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("Error loading preferences for user %d: %v", user.ID, err))
			continue
		}
		if pref.MonthlyReport {
			subscribed = append(subscribed, user)
		}
	}
	stats.TotalUsers = len(subscribed)

	ranks := newRankIndex(m.deps)
	for i := range subscribed {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		user := &subscribed[i]
		report, err := m.buildReport(ctx, user, from, to, ranks)
		if err != nil {
			msg := fmt.Sprintf("Error generating report for user %d: %v", user.ID, err)
			log.Printf("[MonthlyReport] %s", msg)
			stats.Errors = append(stats.Errors, msg)
			continue
		}
		if report == nil {
			continue // Нет активности за месяц
		}
		key := fmt.Sprintf("monthly:%d:%s", user.ID, from.Format("2006-01"))
		if m.send(ctx, user, report, key) {
			stats.ReportsSent++
		} else {
			stats.Errors = append(stats.Errors, fmt.Sprintf("Failed to send report to %s", user.Username))
		}
	}

	m.mu.Lock()
	m.lastSent = now.In(loc).Format("2006-01")
	m.mu.Unlock()

	log.Printf("[MonthlyReport] Рассылка за %s завершена: пользователей=%d, отправлено=%d, ошибок=%d",
		stats.Month, stats.TotalUsers, stats.ReportsSent, len(stats.Errors))
	return stats, nil
}

// SendTestReports рассылает отчеты за текущий месяц всем пользователям.
// Пользователи без активности получают пустой отчет.
func (m *MonthlyReporter) SendTestReports(ctx context.Context, now time.Time) (*MonthlyStats, error) {
	loc := m.config.location()
	from, to := monthBounds(now, loc, 0)
	stats := &MonthlyStats{Month: from.Format("January 2006"), Errors: []string{}, TestMode: true}

	users, err := m.deps.UserRepo.ListByRole(ctx, entity.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	stats.TotalUsers = len(users)

	ranks := newRankIndex(m.deps)
	for i := range users {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		user := &users[i]
		report, err := m.buildReport(ctx, user, from, to, ranks)
		if err != nil {
			msg := fmt.Sprintf("Error generating test report for user %d: %v", user.ID, err)
			log.Printf("[MonthlyReport] TEST: %s", msg)
			stats.Errors = append(stats.Errors, msg)
			continue
		}
		if report == nil {
			report = &MonthlyReport{
				UserName:    user.DisplayName(),
				Month:       stats.Month,
				Trend:       service.TrendInsufficientData,
				Badge:       PerformanceBadge(0),
				QuizDetails: []QuizRanking{},
			}
		}
		report.TestMode = true

		key := fmt.Sprintf("monthly-test:%d:%d", user.ID, now.Unix())
		if m.send(ctx, user, report, key) {
			stats.ReportsSent++
		} else {
			stats.Errors = append(stats.Errors, fmt.Sprintf("Failed to send test report to %s", user.Username))
		}
	}

	log.Printf("[MonthlyReport] TEST: рассылка за %s завершена: пользователей=%d, отправлено=%d, ошибок=%d",
		stats.Month, stats.TotalUsers, stats.ReportsSent, len(stats.Errors))
	return stats, nil
}

// buildReport собирает отчет пользователя за [from, to). nil - активности не было.
func (m *MonthlyReporter) buildReport(ctx context.Context, user *entity.User, from, to time.Time, ranks *rankIndex) (*MonthlyReport, error) {
	scores, err := m.deps.ScoreRepo.GetByUserBetween(ctx, user.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load monthly scores: %w", err)
	}
	if len(scores) == 0 {
		return nil, nil
	}
	if ranks == nil {
		ranks = newRankIndex(m.deps)
	}

	quizIDs := make([]uint, 0, len(scores))
	for _, sc := range scores {
		quizIDs = append(quizIDs, sc.QuizID)
	}
	quizzes, err := m.deps.QuizRepo.ListByIDs(ctx, quizIDs)
	if err != nil {
		return nil, fmt.Errorf("load quizzes: %w", err)
	}
	titles := make(map[uint]string, len(quizzes))
	for _, q := range quizzes {
		titles[q.ID] = q.Title
	}

	report := &MonthlyReport{
		UserName:     user.DisplayName(),
		Month:        from.Format("January 2006"),
		TotalQuizzes: len(scores),
		QuizDetails:  make([]QuizRanking, 0, len(scores)),
	}
	values := make([]int, 0, len(scores))
	for _, sc := range scores {
		report.TotalScore += sc.Value
		if sc.Value > report.BestScore {
			report.BestScore = sc.Value
		}
		values = append(values, sc.Value)

		rank, total, err := ranks.rank(ctx, sc.QuizID, user.ID)
		if err != nil {
			return nil, fmt.Errorf("rank quiz #%d: %w", sc.QuizID, err)
		}
		report.QuizDetails = append(report.QuizDetails, QuizRanking{
			QuizID:            sc.QuizID,
			QuizTitle:         titles[sc.QuizID],
			Score:             sc.Value,
			Rank:              rank,
			TotalParticipants: total,
			Band:              RankBand(rank, total),
			Date:              sc.Timestamp,
		})
	}
	report.AverageScore = float64(report.TotalScore) / float64(len(scores))
	report.Badge = PerformanceBadge(report.AverageScore)
	// GetByUserBetween возвращает результаты в хронологическом порядке
	report.Trend = service.ClassifyTrend(values, service.MonthlyTrendDeadband)
	return report, nil
}

func (m *MonthlyReporter) send(ctx context.Context, user *entity.User, report *MonthlyReport, key string) bool {
	subject := fmt.Sprintf("Your %s QuizNexus Activity Report", report.Month)
	if report.TestMode {
		subject = "[TEST] " + subject
	}
	return m.deps.Dispatcher.Send(ctx, service.Message{
		To:             user.Username,
		Subject:        subject,
		Body:           formatMonthlyReport(report),
		IdempotencyKey: service.IdempotencyKey(key),
	})
}

func formatMonthlyReport(r *MonthlyReport) string {
	var b strings.Builder
	if r.TestMode {
		b.WriteString("[TEST MODE]\n")
	}
	fmt.Fprintf(&b, "Hi %s!\n\nYour activity for %s:\n", r.UserName, r.Month)
	fmt.Fprintf(&b, "  Quizzes taken: %d\n", r.TotalQuizzes)
	fmt.Fprintf(&b, "  Average score: %.1f%% (%s)\n", r.AverageScore, r.Badge)
	fmt.Fprintf(&b, "  Best score: %d%%\n", r.BestScore)
	fmt.Fprintf(&b, "  Trend: %s\n", strings.ReplaceAll(string(r.Trend), "_", " "))

	if len(r.QuizDetails) > 0 {
		b.WriteString("\nQuiz rankings:\n")
		for _, d := range r.QuizDetails {
			fmt.Fprintf(&b, "  - %s: %d%%, #%d of %d (%s)\n", d.QuizTitle, d.Score, d.Rank, d.TotalParticipants, d.Band)
		}
	}
	if r.AverageScore >= 90 {
		b.WriteString("\nExcellent work! You scored above 90% on average. Keep it up!\n")
	}
	if r.TotalQuizzes < 5 {
		b.WriteString("\nTry to attempt more quizzes to improve your ranking.\n")
	}
	return b.String()
}

// rankIndex кеширует упорядоченные результаты викторин на время одной рассылки
type rankIndex struct {
	deps    *Dependencies
	ordered map[uint][]entity.Score
}

func newRankIndex(deps *Dependencies) *rankIndex {
	return &rankIndex{deps: deps, ordered: make(map[uint][]entity.Score)}
}

// rank возвращает место пользователя (с 1) и число участников.
// При равных баллах место определяется порядком записи результатов.
func (idx *rankIndex) rank(ctx context.Context, quizID, userID uint) (int, int, error) {
	scores, ok := idx.ordered[quizID]
	if !ok {
		var err error
		scores, err = idx.deps.ScoreRepo.GetByQuizOrdered(ctx, quizID)
		if err != nil {
			return 0, 0, err
		}
		idx.ordered[quizID] = scores
	}
	for i, sc := range scores {
		if sc.UserID == userID {
			return i + 1, len(scores), nil
		}
	}
	return 0, len(scores), nil
}

// MonthlyJob - плановая рассылка для Runner
type MonthlyJob struct{ *MonthlyReporter }

// Name реализует Job
func (j MonthlyJob) Name() string { return JobMonthly }

// Run реализует Job
func (j MonthlyJob) Run(ctx context.Context, now time.Time) error {
	_, err := j.SendMonthlyReports(ctx, now)
	return err
}

// MonthlyTestJob - тестовая рассылка за текущий месяц
type MonthlyTestJob struct{ *MonthlyReporter }

// Name реализует Job
func (j MonthlyTestJob) Name() string { return JobMonthlyTest }

// Run реализует Job
func (j MonthlyTestJob) Run(ctx context.Context, now time.Time) error {
	_, err := j.SendTestReports(ctx, now)
	return err
}
