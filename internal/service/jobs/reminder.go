package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/service"
)

const (
	snapshotScoresLimit = 10
	snapshotRecentLimit = 5
)

// ReminderStats - итоги одного тика напоминаний
type ReminderStats struct {
	TotalUsersChecked      int      `json:"total_users_checked"`
	UsersDueForReminders   int      `json:"users_due_for_reminders"`
	RemindersSent          int      `json:"reminders_sent"`
	InactiveUsers          int      `json:"inactive_users"`
	NewQuizAlerts          int      `json:"new_quiz_alerts"`
	AISuggestionsGenerated int      `json:"ai_suggestions_generated"`
	Errors                 []string `json:"errors"`
}

// ReminderScheduler рассылает ежедневные напоминания в выбранное пользователем время
type ReminderScheduler struct {
	config *Config
	deps   *Dependencies
}

// NewReminderScheduler создает планировщик напоминаний
func NewReminderScheduler(config *Config, deps *Dependencies) *ReminderScheduler {
	if config == nil {
		config = DefaultConfig()
	}
	return &ReminderScheduler{config: config, deps: deps}
}

// Name реализует Job
func (s *ReminderScheduler) Name() string { return JobReminders }

// Run реализует Job
func (s *ReminderScheduler) Run(ctx context.Context, now time.Time) error {
	_, err := s.SendDailyReminders(ctx, now)
	return err
}

// isDue проверяет, пора ли напоминать пользователю в момент localNow
func (s *ReminderScheduler) isDue(pref *entity.UserPreference, localNow time.Time) bool {
	if pref.RemindedOn(localNow) {
		return false
	}
	current := entity.TimeOfDayFrom(localNow).MinuteOfDay()
	target := pref.ReminderTime.MinuteOfDay()
	if s.config.MatchMode == MatchCatchUp {
		return current >= target
	}
	return current == target
}

// SendDailyReminders выполняет один тик: каждому подписанному пользователю, у которого
// наступило время напоминания, отправляется не более одного письма в сутки
func (s *ReminderScheduler) SendDailyReminders(ctx context.Context, now time.Time) (*ReminderStats, error) {
	loc := s.config.location()
	localNow := now.In(loc)
	today := entity.CalendarDate(localNow)

	users, err := s.deps.UserRepo.ListByRole(ctx, entity.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	stats := &ReminderStats{TotalUsersChecked: len(users), Errors: []string{}}

	// Новые - все викторины с сегодняшнего дня; ближайшие - до UpcomingDays вперед
	all, err := s.deps.QuizRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	var newQuizzes []entity.Quiz
	for _, q := range all {
		if !entity.CalendarDate(q.DateOfQuiz.UTC()).Before(today) {
			newQuizzes = append(newQuizzes, q)
		}
	}
	upcoming, err := s.deps.QuizRepo.ListByDateRange(ctx, today, today.AddDate(0, 0, s.config.UpcomingDays))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming quizzes: %w", err)
	}

	snapshots := newSnapshotBuilder(s.deps)

	for i := range users {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		user := &users[i]
		if err := s.remindUser(ctx, user, now, localNow, newQuizzes, upcoming, snapshots, stats); err != nil {
			msg := fmt.Sprintf("Error processing reminder for user %d: %v", user.ID, err)
			log.Printf("[Reminders] %s", msg)
			stats.Errors = append(stats.Errors, msg)
		}
	}

	if stats.UsersDueForReminders > 0 {
		log.Printf("[Reminders] Тик завершен: проверено=%d, к отправке=%d, отправлено=%d, неактивных=%d, ошибок=%d",
			stats.TotalUsersChecked, stats.UsersDueForReminders, stats.RemindersSent, stats.InactiveUsers, len(stats.Errors))
	}
	return stats, nil
}

func (s *ReminderScheduler) remindUser(
	ctx context.Context,
	user *entity.User,
	now, localNow time.Time,
	newQuizzes, upcoming []entity.Quiz,
	snapshots *snapshotBuilder,
	stats *ReminderStats,
) error {
	pref, err := s.deps.PreferenceRepo.GetOrCreate(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	if !pref.EmailReminders {
		return nil
	}
	if !s.isDue(pref, localNow) {
		return nil
	}
	stats.UsersDueForReminders++

	var reasons []string
	daysSinceVisit, visited := pref.DaysSinceLastVisit(now)
	switch {
	case !visited:
		reasons = append(reasons, "Welcome back! Check out what's new")
		stats.InactiveUsers++
	case daysSinceVisit >= 1:
		reasons = append(reasons, fmt.Sprintf("You haven't visited in %d days", daysSinceVisit))
		stats.InactiveUsers++
	}

	if len(newQuizzes) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d new quiz(es) have been added", len(newQuizzes)))
		stats.NewQuizAlerts++
	}

	attempted, err := s.deps.ScoreRepo.GetQuizIDsByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load attempted quizzes: %w", err)
	}
	attemptedSet := make(map[uint]struct{}, len(attempted))
	for _, id := range attempted {
		attemptedSet[id] = struct{}{}
	}
	var pending []entity.Quiz
	for _, q := range upcoming {
		if _, ok := attemptedSet[q.ID]; !ok {
			pending = append(pending, q)
		}
	}
	if len(pending) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d upcoming quiz(es) you haven't attempted yet", len(pending)))
	}

	if len(reasons) == 0 {
		return nil
	}

	advice := s.advise(ctx, user, daysSinceVisit, snapshots, stats)

	msg := service.Message{
		To:             user.Username,
		Subject:        reminderSubject,
		Body:           formatReminder(user, reasons, newQuizzes, pending, advice),
		IdempotencyKey: service.IdempotencyKey(fmt.Sprintf("reminder:%d:%s", user.ID, localNow.Format("2006-01-02"))),
	}
	if !s.deps.Dispatcher.Send(ctx, msg) {
		return fmt.Errorf("failed to send reminder to %s", user.Username)
	}
	stats.RemindersSent++

	if err := s.deps.PreferenceRepo.MarkReminded(ctx, user.ID, localNow); err != nil {
		// Письмо ушло; повтор в тот же день отсечет ключ идемпотентности
		return fmt.Errorf("mark reminded: %w", err)
	}
	log.Printf("[Reminders] Напоминание отправлено %s (время %s)", user.Username, pref.ReminderTime.HHMM())
	return nil
}

func (s *ReminderScheduler) advise(ctx context.Context, user *entity.User, daysSinceVisit int, snapshots *snapshotBuilder, stats *ReminderStats) *service.Advice {
	if s.deps.Advisor == nil {
		return nil
	}
	snapshot, err := snapshots.build(ctx, user.ID, daysSinceVisit)
	if err != nil {
		log.Printf("[Reminders] Не удалось собрать снимок успеваемости пользователя %d: %v", user.ID, err)
		return nil
	}
	profile := service.StudentProfile{UserID: user.ID, Name: user.DisplayName(), Email: user.Username}
	advice, err := s.deps.Advisor.GetAdvice(ctx, profile, *snapshot)
	if err != nil {
		if !errors.Is(err, service.ErrAdvisorDisabled) {
			log.Printf("[Reminders] Ошибка советника для пользователя %d: %v", user.ID, err)
		}
		return nil
	}
	stats.AISuggestionsGenerated++
	return advice
}

// snapshotBuilder собирает снимки успеваемости, кешируя справочник предметов на время тика
type snapshotBuilder struct {
	deps     *Dependencies
	subjects map[uint]string
}

func newSnapshotBuilder(deps *Dependencies) *snapshotBuilder {
	return &snapshotBuilder{deps: deps}
}

func (b *snapshotBuilder) subjectNames(ctx context.Context) (map[uint]string, error) {
	if b.subjects != nil {
		return b.subjects, nil
	}
	names := make(map[uint]string)
	if b.deps.SubjectRepo != nil {
		subjects, err := b.deps.SubjectRepo.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, sub := range subjects {
			names[sub.ID] = sub.Name
		}
	}
	b.subjects = names
	return names, nil
}

// build собирает снимок по последним snapshotScoresLimit результатам. Тренд считается
// по snapshotRecentLimit последним в хронологическом порядке без зоны нечувствительности.
func (b *snapshotBuilder) build(ctx context.Context, userID uint, daysSinceVisit int) (*service.PerformanceSnapshot, error) {
	scores, err := b.deps.ScoreRepo.GetRecentByUser(ctx, userID, snapshotScoresLimit)
	if err != nil {
		return nil, fmt.Errorf("load recent scores: %w", err)
	}

	snapshot := &service.PerformanceSnapshot{
		TotalQuizzes:   len(scores),
		DaysSinceVisit: daysSinceVisit,
		RecentScores:   []int{},
	}
	if len(scores) == 0 {
		snapshot.Trend = service.TrendInsufficientData
		return snapshot, nil
	}

	sum := 0
	quizIDs := make([]uint, 0, len(scores))
	for _, sc := range scores {
		sum += sc.Value
		quizIDs = append(quizIDs, sc.QuizID)
	}
	snapshot.AverageScore = float64(sum) / float64(len(scores))

	// scores отсортированы от новых к старым, для тренда нужен обратный порядок
	recent := len(scores)
	if recent > snapshotRecentLimit {
		recent = snapshotRecentLimit
	}
	for i := recent - 1; i >= 0; i-- {
		snapshot.RecentScores = append(snapshot.RecentScores, scores[i].Value)
	}
	snapshot.Trend = service.ClassifyTrend(snapshot.RecentScores, 0)

	quizzes, err := b.deps.QuizRepo.ListByIDs(ctx, quizIDs)
	if err != nil {
		return nil, fmt.Errorf("load quizzes: %w", err)
	}
	byID := make(map[uint]*entity.Quiz, len(quizzes))
	for i := range quizzes {
		byID[quizzes[i].ID] = &quizzes[i]
	}
	names, err := b.subjectNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subjects: %w", err)
	}

	for _, sc := range scores {
		quiz, ok := byID[sc.QuizID]
		if !ok {
			continue
		}
		perf := service.QuizPerformance{QuizID: quiz.ID, QuizTitle: quiz.Title, Score: sc.Value, SubjectName: "General"}
		if quiz.SubjectID != nil {
			perf.SubjectID = *quiz.SubjectID
			if name, ok := names[*quiz.SubjectID]; ok {
				perf.SubjectName = name
			}
		}
		snapshot.Quizzes = append(snapshot.Quizzes, perf)
	}
	return snapshot, nil
}
