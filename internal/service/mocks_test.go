package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/domain/repository"
)

// ============================================================================
// Моки репозиториев для тестов сервисов
// ============================================================================

// MockUserRepository реализует repository.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *entity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*entity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) ListByRole(ctx context.Context, role string) ([]entity.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context) ([]entity.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.User), args.Error(1)
}

// MockPreferenceRepository реализует repository.PreferenceRepository
type MockPreferenceRepository struct {
	mock.Mock
}

func (m *MockPreferenceRepository) GetOrCreate(ctx context.Context, userID uint) (*entity.UserPreference, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.UserPreference), args.Error(1)
}

func (m *MockPreferenceRepository) Update(ctx context.Context, pref *entity.UserPreference) error {
	args := m.Called(ctx, pref)
	return args.Error(0)
}

func (m *MockPreferenceRepository) TouchLastVisit(ctx context.Context, userID uint, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

func (m *MockPreferenceRepository) MarkReminded(ctx context.Context, userID uint, day time.Time) error {
	args := m.Called(ctx, userID, day)
	return args.Error(0)
}

// MockQuizRepository реализует repository.QuizRepository
type MockQuizRepository struct {
	mock.Mock
}

func (m *MockQuizRepository) Create(ctx context.Context, quiz *entity.Quiz) error {
	args := m.Called(ctx, quiz)
	return args.Error(0)
}

func (m *MockQuizRepository) GetByID(ctx context.Context, id uint) (*entity.Quiz, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Quiz), args.Error(1)
}

func (m *MockQuizRepository) Update(ctx context.Context, quiz *entity.Quiz) error {
	args := m.Called(ctx, quiz)
	return args.Error(0)
}

func (m *MockQuizRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQuizRepository) List(ctx context.Context) ([]entity.Quiz, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Quiz), args.Error(1)
}

func (m *MockQuizRepository) ListByChapter(ctx context.Context, chapterID uint) ([]entity.Quiz, error) {
	args := m.Called(ctx, chapterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Quiz), args.Error(1)
}

func (m *MockQuizRepository) ListByIDs(ctx context.Context, ids []uint) ([]entity.Quiz, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Quiz), args.Error(1)
}

func (m *MockQuizRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]entity.Quiz, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Quiz), args.Error(1)
}

func (m *MockQuizRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockQuestionRepository реализует repository.QuestionRepository
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) Create(ctx context.Context, question *entity.Question) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}

func (m *MockQuestionRepository) GetByID(ctx context.Context, id uint) (*entity.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Question), args.Error(1)
}

func (m *MockQuestionRepository) GetByQuizID(ctx context.Context, quizID uint) ([]entity.Question, error) {
	args := m.Called(ctx, quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepository) CountByQuizID(ctx context.Context, quizID uint) (int64, error) {
	args := m.Called(ctx, quizID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQuestionRepository) Update(ctx context.Context, question *entity.Question) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}

func (m *MockQuestionRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockResponseRepository реализует repository.ResponseRepository
type MockResponseRepository struct {
	mock.Mock
}

func (m *MockResponseRepository) Upsert(ctx context.Context, response *entity.QuizResponse) error {
	args := m.Called(ctx, response)
	return args.Error(0)
}

func (m *MockResponseRepository) GetByQuizAndUser(ctx context.Context, quizID, userID uint) ([]entity.QuizResponse, error) {
	args := m.Called(ctx, quizID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.QuizResponse), args.Error(1)
}

func (m *MockResponseRepository) GetDistinctUserIDs(ctx context.Context, quizID uint) ([]uint, error) {
	args := m.Called(ctx, quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint), args.Error(1)
}

// MockScoreRepository реализует repository.ScoreRepository
type MockScoreRepository struct {
	mock.Mock
}

func (m *MockScoreRepository) GetByUserAndQuiz(ctx context.Context, userID, quizID uint) (*entity.Score, error) {
	args := m.Called(ctx, userID, quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Score), args.Error(1)
}

func (m *MockScoreRepository) Create(ctx context.Context, score *entity.Score) error {
	args := m.Called(ctx, score)
	return args.Error(0)
}

func (m *MockScoreRepository) SaveBatch(ctx context.Context, scores []entity.Score) (*repository.ScoreBatchResult, error) {
	args := m.Called(ctx, scores)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ScoreBatchResult), args.Error(1)
}

func (m *MockScoreRepository) GetQuizIDsByUser(ctx context.Context, userID uint) ([]uint, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint), args.Error(1)
}

func (m *MockScoreRepository) GetRecentByUser(ctx context.Context, userID uint, limit int) ([]entity.Score, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Score), args.Error(1)
}

func (m *MockScoreRepository) GetByUserBetween(ctx context.Context, userID uint, from, to time.Time) ([]entity.Score, error) {
	args := m.Called(ctx, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Score), args.Error(1)
}

func (m *MockScoreRepository) GetByQuizOrdered(ctx context.Context, quizID uint) ([]entity.Score, error) {
	args := m.Called(ctx, quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Score), args.Error(1)
}

func (m *MockScoreRepository) GetByUser(ctx context.Context, userID uint) ([]entity.Score, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Score), args.Error(1)
}

// MockSubjectRepository реализует repository.SubjectRepository
type MockSubjectRepository struct {
	mock.Mock
}

func (m *MockSubjectRepository) Create(ctx context.Context, subject *entity.Subject) error {
	args := m.Called(ctx, subject)
	return args.Error(0)
}

func (m *MockSubjectRepository) GetByID(ctx context.Context, id uint) (*entity.Subject, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Subject), args.Error(1)
}

func (m *MockSubjectRepository) Update(ctx context.Context, subject *entity.Subject) error {
	args := m.Called(ctx, subject)
	return args.Error(0)
}

func (m *MockSubjectRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSubjectRepository) List(ctx context.Context) ([]entity.Subject, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Subject), args.Error(1)
}

// MockChapterRepository реализует repository.ChapterRepository
type MockChapterRepository struct {
	mock.Mock
}

func (m *MockChapterRepository) Create(ctx context.Context, chapter *entity.Chapter) error {
	args := m.Called(ctx, chapter)
	return args.Error(0)
}

func (m *MockChapterRepository) GetByID(ctx context.Context, id uint) (*entity.Chapter, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Chapter), args.Error(1)
}

func (m *MockChapterRepository) Update(ctx context.Context, chapter *entity.Chapter) error {
	args := m.Called(ctx, chapter)
	return args.Error(0)
}

func (m *MockChapterRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockChapterRepository) ListBySubject(ctx context.Context, subjectID uint) ([]entity.Chapter, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Chapter), args.Error(1)
}

func (m *MockChapterRepository) List(ctx context.Context) ([]entity.Chapter, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Chapter), args.Error(1)
}

// MockDispatcher реализует Dispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Send(ctx context.Context, msg Message) bool {
	args := m.Called(ctx, msg)
	return args.Bool(0)
}

func (m *MockDispatcher) SendWithAttachment(ctx context.Context, msg Message, attachment []byte, filename string) bool {
	args := m.Called(ctx, msg, attachment, filename)
	return args.Bool(0)
}

// MockTokenIssuer реализует TokenIssuer
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) GenerateToken(user *entity.User) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}
