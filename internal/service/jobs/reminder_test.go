package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/service"
)

var reminderDay = time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)

// setPreference задает время напоминания пользователя и его последний визит
func (e *testEnv) setPreference(t *testing.T, userID uint, reminderAt string, enabled bool, lastVisit *time.Time) {
	t.Helper()
	ctx := context.Background()
	pref, err := e.deps.PreferenceRepo.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	tod, err := entity.ParseTimeOfDay(reminderAt)
	require.NoError(t, err)
	pref.ReminderTime = tod
	pref.EmailReminders = enabled
	require.NoError(t, e.deps.PreferenceRepo.Update(ctx, pref))

	// nil - запись без визитов (колонка NULL)
	var visit interface{} = gorm.Expr("NULL")
	if lastVisit != nil {
		visit = lastVisit.UTC()
	}
	require.NoError(t, e.db.Model(&entity.UserPreference{}).Where("user_id = ?", userID).Update("last_visit", visit).Error)
}

func at(hour, minute int) time.Time {
	return reminderDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestReminders_ExactModeSendsOncePerDay(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice@example.com", entity.RoleUser)
	env.setPreference(t, user.ID, "09:00", true, nil)
	scheduler := NewReminderScheduler(env.config, env.deps)

	// Act: тик каждую минуту в течение суток
	for minute := 0; minute < 24*60; minute++ {
		_, err := scheduler.SendDailyReminders(ctx, reminderDay.Add(time.Duration(minute)*time.Minute))
		require.NoError(t, err)
	}

	// Assert
	sent := env.dispatcher.sentTo(user.Username)
	require.Len(t, sent, 1)
	assert.Equal(t, "QuizNexus Daily Reminder", sent[0].Subject)
	assert.Equal(t, service.IdempotencyKey("reminder:1:2026-05-20"), sent[0].IdempotencyKey)
}

func TestReminders_MissedMinute(t *testing.T) {
	cases := []struct {
		name  string
		mode  string
		sends int
	}{
		{name: "exact mode drops the day", mode: MatchExact, sends: 0},
		{name: "catch up sends late", mode: MatchCatchUp, sends: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			env := newTestEnv(t)
			ctx := context.Background()
			env.config.MatchMode = tc.mode
			user := env.createUser(t, "bob@example.com", entity.RoleUser)
			env.setPreference(t, user.ID, "09:00", true, nil)
			scheduler := NewReminderScheduler(env.config, env.deps)

			// Act: тик 09:00 пропущен
			for _, tick := range []time.Time{at(8, 59), at(9, 1), at(9, 2), at(23, 59)} {
				_, err := scheduler.SendDailyReminders(ctx, tick)
				require.NoError(t, err)
			}

			// Assert
			assert.Len(t, env.dispatcher.sentTo(user.Username), tc.sends)
		})
	}
}

func TestReminders_SkipsDisabledAndAdmins(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	off := env.createUser(t, "off@example.com", entity.RoleUser)
	env.setPreference(t, off.ID, "09:00", false, nil)
	admin := env.createUser(t, "admin@example.com", entity.RoleAdmin)
	env.setPreference(t, admin.ID, "09:00", true, nil)

	// Act
	stats, err := NewReminderScheduler(env.config, env.deps).SendDailyReminders(ctx, at(9, 0))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalUsersChecked, "Администраторы не проверяются")
	assert.Equal(t, 0, stats.UsersDueForReminders)
	assert.Empty(t, env.dispatcher.messages())
}

func TestReminders_ReasonsAndStats(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	now := at(18, 0)

	// Викторина сегодня вечером: и новая, и ближайшая непройденная
	env.createQuizEndingAt(t, "Вечерняя", now.Add(2*time.Hour), 1)
	// Вчерашняя пройденная: не новая и не ближайшая
	past := env.createQuizEndingAt(t, "Вчерашняя", now.Add(-24*time.Hour), 1)

	away := env.createUser(t, "away@example.com", entity.RoleUser)
	visit := now.Add(-3*24*time.Hour - time.Hour)
	env.setPreference(t, away.ID, "18:00", true, &visit)
	env.addScore(t, away.ID, past.ID, 80, now.Add(-23*time.Hour))

	fresh := env.createUser(t, "fresh@example.com", entity.RoleUser)
	env.setPreference(t, fresh.ID, "18:00", true, nil)

	// Act
	stats, err := NewReminderScheduler(env.config, env.deps).SendDailyReminders(ctx, now)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsersChecked)
	assert.Equal(t, 2, stats.UsersDueForReminders)
	assert.Equal(t, 2, stats.RemindersSent)
	assert.Equal(t, 2, stats.InactiveUsers)
	assert.Equal(t, 2, stats.NewQuizAlerts)
	assert.Equal(t, 0, stats.AISuggestionsGenerated)
	assert.Empty(t, stats.Errors)

	awayMail := env.dispatcher.sentTo(away.Username)
	require.Len(t, awayMail, 1)
	assert.Contains(t, awayMail[0].Body, "You haven't visited in 3 days")
	assert.Contains(t, awayMail[0].Body, "1 new quiz(es) have been added")
	assert.Contains(t, awayMail[0].Body, "1 upcoming quiz(es) you haven't attempted yet")
	assert.Contains(t, awayMail[0].Body, "Вечерняя")
	assert.NotContains(t, awayMail[0].Body, "Study insights:")

	freshMail := env.dispatcher.sentTo(fresh.Username)
	require.Len(t, freshMail, 1)
	assert.Contains(t, freshMail[0].Body, "Welcome back! Check out what's new")
}

func TestReminders_NothingToSaySendsNothing(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	now := at(9, 0)
	user := env.createUser(t, "active@example.com", entity.RoleUser)
	visit := now.Add(-2 * time.Hour)
	env.setPreference(t, user.ID, "09:00", true, &visit)

	// Act
	stats, err := NewReminderScheduler(env.config, env.deps).SendDailyReminders(ctx, now)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UsersDueForReminders)
	assert.Equal(t, 0, stats.RemindersSent)
	assert.Equal(t, 0, stats.InactiveUsers)
	assert.Empty(t, env.dispatcher.messages())
}

func TestReminders_FailedSendIsRetriedInCatchUp(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	env.config.MatchMode = MatchCatchUp
	user := env.createUser(t, "flaky@example.com", entity.RoleUser)
	env.setPreference(t, user.ID, "09:00", true, nil)
	scheduler := NewReminderScheduler(env.config, env.deps)
	env.dispatcher.fail[user.Username] = true

	// Act
	failed, err := scheduler.SendDailyReminders(ctx, at(9, 0))
	require.NoError(t, err)
	env.dispatcher.mu.Lock()
	delete(env.dispatcher.fail, user.Username)
	env.dispatcher.mu.Unlock()
	retried, err := scheduler.SendDailyReminders(ctx, at(9, 5))
	require.NoError(t, err)
	again, err := scheduler.SendDailyReminders(ctx, at(9, 6))
	require.NoError(t, err)

	// Assert: ошибка не ставит маркер, следующий тик досылает письмо
	assert.Len(t, failed.Errors, 1)
	assert.Equal(t, 0, failed.RemindersSent)
	assert.Equal(t, 1, retried.RemindersSent)
	assert.Equal(t, 0, again.UsersDueForReminders)
	assert.Len(t, env.dispatcher.sentTo(user.Username), 1)

	pref, err := env.deps.PreferenceRepo.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, pref.RemindedOn(at(12, 0)))
}

func TestReminders_AdviceSection(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	env.deps.Advisor = service.NewAdvisor(true)
	user := env.createUser(t, "newbie@example.com", entity.RoleUser)
	env.setPreference(t, user.ID, "09:00", true, nil)

	// Act
	stats, err := NewReminderScheduler(env.config, env.deps).SendDailyReminders(ctx, at(9, 0))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AISuggestionsGenerated)
	sent := env.dispatcher.sentTo(user.Username)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body, "Study insights:")
	assert.Contains(t, sent[0].Body, "Take your first quiz")
}

func TestReminders_RespectsLocation(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	env.config.Location = time.FixedZone("MSK", 3*60*60)
	user := env.createUser(t, "msk@example.com", entity.RoleUser)
	env.setPreference(t, user.ID, "09:00", true, nil)
	scheduler := NewReminderScheduler(env.config, env.deps)

	// Act: 09:00 UTC - это 12:00 по Москве
	_, err := scheduler.SendDailyReminders(ctx, at(9, 0))
	require.NoError(t, err)
	before := len(env.dispatcher.messages())
	_, err = scheduler.SendDailyReminders(ctx, at(6, 0))
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 0, before)
	assert.Len(t, env.dispatcher.sentTo(user.Username), 1)
}

func TestSnapshotBuilder_ChronologicalTrend(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "trend@example.com", entity.RoleUser)
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	for i, value := range []int{40, 50, 60, 70, 80, 90} {
		quiz := env.createQuizEndingAt(t, "Q", base.Add(time.Duration(i)*24*time.Hour), 1)
		env.addScore(t, user.ID, quiz.ID, value, base.Add(time.Duration(i)*24*time.Hour))
	}

	// Act
	snapshot, err := newSnapshotBuilder(env.deps).build(ctx, user.ID, 4)

	// Assert: пять последних, старые первыми
	require.NoError(t, err)
	assert.Equal(t, 6, snapshot.TotalQuizzes)
	assert.InDelta(t, 65.0, snapshot.AverageScore, 0.001)
	assert.Equal(t, []int{50, 60, 70, 80, 90}, snapshot.RecentScores)
	assert.Equal(t, service.TrendImproving, snapshot.Trend)
	assert.Equal(t, 4, snapshot.DaysSinceVisit)
	require.Len(t, snapshot.Quizzes, 6)
	assert.Equal(t, "General", snapshot.Quizzes[0].SubjectName)
}

func TestSnapshotBuilder_NoScores(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	user := env.createUser(t, "empty@example.com", entity.RoleUser)

	// Act
	snapshot, err := newSnapshotBuilder(env.deps).build(context.Background(), user.ID, 0)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, service.TrendInsufficientData, snapshot.Trend)
	assert.Empty(t, snapshot.RecentScores)
}
