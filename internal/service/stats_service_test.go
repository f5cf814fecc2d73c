package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lekenzi/QuizNexus/internal/cache"
	"github.com/lekenzi/QuizNexus/internal/domain/entity"
)

type statsFixture struct {
	users      *MockUserRepository
	scores     *MockScoreRepository
	quizzes    *MockQuizRepository
	subjects   *MockSubjectRepository
	dispatcher *MockDispatcher
}

func newStatsFixture() *statsFixture {
	return &statsFixture{
		users:      new(MockUserRepository),
		scores:     new(MockScoreRepository),
		quizzes:    new(MockQuizRepository),
		subjects:   new(MockSubjectRepository),
		dispatcher: new(MockDispatcher),
	}
}

func (f *statsFixture) service(store *cache.Store, exportDir string) *StatsService {
	svc := NewStatsService(f.users, f.scores, f.quizzes, f.subjects, f.dispatcher, store, time.Minute, exportDir, time.UTC)
	svc.now = func() time.Time { return time.Date(2026, 4, 1, 8, 5, 9, 0, time.UTC) }
	return svc
}

func (f *statsFixture) seedCatalog(ctx context.Context) {
	physics, chemistry := uint(1), uint(2)
	f.quizzes.On("List", ctx).Return([]entity.Quiz{
		{ID: 10, SubjectID: &physics},
		{ID: 11, SubjectID: &chemistry},
		{ID: 12, SubjectID: &physics},
		{ID: 13},
	}, nil)
	f.subjects.On("List", ctx).Return([]entity.Subject{
		{ID: 1, Name: "Physics"},
		{ID: 2, Name: "Chemistry"},
	}, nil)
}

func TestStatsService_GetUserStats(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store, _ := newTestCacheStore(t)
	f := newStatsFixture()
	f.seedCatalog(ctx)
	f.users.On("GetByID", ctx, uint(5)).Return(&entity.User{ID: 5, Username: "dan@example.com", FullName: "Dan"}, nil).Once()
	f.scores.On("GetByUser", ctx, uint(5)).Return([]entity.Score{
		{QuizID: 10, Value: 80, Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		{QuizID: 11, Value: 70, Timestamp: time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)},
		{QuizID: 12, Value: 91, Timestamp: time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)},
	}, nil).Once()
	svc := f.service(store, "")

	// Act
	stats, err := svc.GetUserStats(ctx, 5)
	require.NoError(t, err)
	cached, err := svc.GetUserStats(ctx, 5)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 3, stats.QuizzesTaken)
	assert.Equal(t, 241, stats.TotalPoints)
	assert.Equal(t, 80.33, stats.AverageScore)
	assert.Equal(t, "2026-03-20", stats.LastQuizDate)
	assert.Equal(t, "Physics", stats.MostActiveSubject)
	assert.Equal(t, 75.0, stats.CompletionRate)
	assert.Equal(t, stats, cached, "Второй вызов из кеша")
	f.users.AssertExpectations(t)
	f.scores.AssertExpectations(t)
}

func TestStatsService_GetUserStats_NoActivity(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newStatsFixture()
	f.seedCatalog(ctx)
	f.users.On("GetByID", ctx, uint(6)).Return(&entity.User{ID: 6, Username: "eve@example.com"}, nil)
	f.scores.On("GetByUser", ctx, uint(6)).Return([]entity.Score{}, nil)
	svc := f.service(cache.NewStore(nil), "")

	// Act
	stats, err := svc.GetUserStats(ctx, 6)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0, stats.QuizzesTaken)
	assert.Equal(t, notAvailable, stats.LastQuizDate)
	assert.Equal(t, notAvailable, stats.MostActiveSubject)
	assert.Zero(t, stats.CompletionRate)
}

func TestStatsService_ExportUserStats(t *testing.T) {
	// Arrange
	ctx := context.Background()
	dir := t.TempDir()
	f := newStatsFixture()
	f.seedCatalog(ctx)
	f.users.On("List", ctx).Return([]entity.User{
		{ID: 5, Username: "=cmd@example.com", FullName: "Dan"},
		{ID: 6, Username: "eve@example.com"},
	}, nil)
	f.users.On("ListByRole", ctx, entity.RoleAdmin).Return([]entity.User{
		{ID: 1, Username: "admin@example.com", Role: entity.RoleAdmin},
		{ID: 2, Username: "broken@example.com", Role: entity.RoleAdmin},
	}, nil)
	f.scores.On("GetByUser", ctx, uint(5)).Return([]entity.Score{{QuizID: 11, Value: 50, Timestamp: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)}}, nil)
	f.scores.On("GetByUser", ctx, uint(6)).Return([]entity.Score{}, nil)

	const filename = "user_stats_20260401_080509.xlsx"
	var attachment []byte
	f.dispatcher.On("SendWithAttachment", ctx, mock.MatchedBy(func(m Message) bool { return m.To == "admin@example.com" }), mock.Anything, filename).
		Run(func(args mock.Arguments) { attachment = args.Get(2).([]byte) }).
		Return(true)
	f.dispatcher.On("SendWithAttachment", ctx, mock.MatchedBy(func(m Message) bool { return m.To == "broken@example.com" }), mock.Anything, filename).
		Return(false)
	svc := f.service(cache.NewStore(nil), dir)

	// Act
	result, err := svc.ExportUserStats(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, filename, result.Filename)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, 1, result.AdminsNotified)
	assert.Equal(t, 1, result.AdminsFailed)
	assert.Equal(t, filepath.Join(dir, filename), result.Path)

	onDisk, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	assert.Equal(t, attachment, onDisk)

	book, err := excelize.OpenReader(bytes.NewReader(attachment))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("User Stats")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "User ID", rows[0][0])
	assert.Equal(t, "'=cmd@example.com", rows[1][1], "Защита от formula injection")
	assert.Equal(t, "Chemistry", rows[1][7])
	assert.Equal(t, "25.00%", rows[1][8])
	assert.Equal(t, "N/A", rows[2][6])
}

func TestSanitizeForExcel(t *testing.T) {
	assert.Equal(t, "", sanitizeForExcel(""))
	assert.Equal(t, "'+1", sanitizeForExcel("+1"))
	assert.Equal(t, "'@SUM(A1)", sanitizeForExcel("@SUM(A1)"))
	assert.Equal(t, "plain", sanitizeForExcel("plain"))
}
