package jobs

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lekenzi/QuizNexus/internal/cache"
	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/repository/postgres"
	redisrepo "github.com/lekenzi/QuizNexus/internal/repository/redis"
	"github.com/lekenzi/QuizNexus/internal/service"
)

// recordingDispatcher запоминает отправленные письма; fail задает адресатов с ошибкой отправки
type recordingDispatcher struct {
	mu   sync.Mutex
	sent []service.Message
	fail map[string]bool
}

func (d *recordingDispatcher) Send(ctx context.Context, msg service.Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail[msg.To] {
		return false
	}
	d.sent = append(d.sent, msg)
	return true
}

func (d *recordingDispatcher) SendWithAttachment(ctx context.Context, msg service.Message, attachment []byte, filename string) bool {
	return d.Send(ctx, msg)
}

func (d *recordingDispatcher) messages() []service.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]service.Message, len(d.sent))
	copy(out, d.sent)
	return out
}

func (d *recordingDispatcher) sentTo(to string) []service.Message {
	var out []service.Message
	for _, m := range d.messages() {
		if m.To == to {
			out = append(out, m)
		}
	}
	return out
}

type testEnv struct {
	db         *gorm.DB
	config     *Config
	deps       *Dependencies
	dispatcher *recordingDispatcher
}

// newTestEnv поднимает in-memory SQLite и настоящие gorm-репозитории
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entity.User{},
		&entity.Subject{},
		&entity.Chapter{},
		&entity.Quiz{},
		&entity.Question{},
		&entity.QuizResponse{},
		&entity.Score{},
		&entity.UserPreference{},
	))

	dispatcher := &recordingDispatcher{fail: map[string]bool{}}
	cfg := DefaultConfig()
	return &testEnv{
		db:         db,
		config:     cfg,
		dispatcher: dispatcher,
		deps: &Dependencies{
			QuizRepo:       postgres.NewQuizRepo(db),
			QuestionRepo:   postgres.NewQuestionRepo(db),
			ResponseRepo:   postgres.NewResponseRepo(db),
			ScoreRepo:      postgres.NewScoreRepo(db),
			UserRepo:       postgres.NewUserRepo(db),
			PreferenceRepo: postgres.NewPreferenceRepo(db),
			SubjectRepo:    postgres.NewSubjectRepo(db),
			Cache:          cache.NewStore(nil),
			Dispatcher:     dispatcher,
			Advisor:        service.NewAdvisor(false),
		},
	}
}

// newTestCache возвращает кеш поверх miniredis
func newTestCache(t *testing.T) (*cache.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	repo, err := redisrepo.NewCacheRepo(client)
	require.NoError(t, err)
	return cache.NewStore(repo), mr
}

func (e *testEnv) createUser(t *testing.T, username, role string) *entity.User {
	t.Helper()
	// Уже "хешированный" пароль, чтобы не тратить время на bcrypt
	user := &entity.User{Username: username, Password: "$2a$04$test", FullName: strings.Split(username, "@")[0], Role: role}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

// createQuizEndingAt создает викторину длительностью 30 минут, окно которой заканчивается в end
func (e *testEnv) createQuizEndingAt(t *testing.T, title string, end time.Time, questions int) *entity.Quiz {
	t.Helper()
	start := end.Add(-30 * time.Minute).In(e.config.location())
	tod := entity.TimeOfDayFrom(start)
	quiz := &entity.Quiz{
		Title:           title,
		DateOfQuiz:      entity.CalendarDate(start),
		TimeOfDay:       &tod,
		DurationMinutes: 30,
	}
	require.NoError(t, e.db.Create(quiz).Error)
	for i := 0; i < questions; i++ {
		q := &entity.Question{QuizID: quiz.ID, Text: "Q", Option1: "a", Option2: "b", Answer: "a"}
		require.NoError(t, e.db.Create(q).Error)
		quiz.Questions = append(quiz.Questions, *q)
	}
	return quiz
}

// answer записывает ответы пользователя: correct[i] - правильный ли ответ на i-й вопрос
func (e *testEnv) answer(t *testing.T, quiz *entity.Quiz, userID uint, correct ...bool) {
	t.Helper()
	for i, ok := range correct {
		option := "b"
		if ok {
			option = "a"
		}
		resp := &entity.QuizResponse{
			QuizID:         quiz.ID,
			UserID:         userID,
			QuestionID:     quiz.Questions[i].ID,
			SelectedOption: option,
			IsCorrect:      ok,
		}
		require.NoError(t, e.db.Create(resp).Error)
	}
}

func (e *testEnv) addScore(t *testing.T, userID, quizID uint, value int, at time.Time) {
	t.Helper()
	require.NoError(t, e.db.Create(&entity.Score{UserID: userID, QuizID: quizID, Value: value, Timestamp: at.UTC()}).Error)
}

func (e *testEnv) countScores(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&entity.Score{}).Count(&n).Error)
	return n
}
