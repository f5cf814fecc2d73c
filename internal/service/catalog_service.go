package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lekenzi/QuizNexus/internal/cache"
	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/domain/repository"
	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
)

// SubjectInput - данные для создания и изменения предмета
type SubjectInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// ChapterInput - данные для создания и изменения раздела
type ChapterInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	SubjectID   uint   `json:"subject_id" binding:"required"`
}

// QuizInput - данные для создания и изменения викторины
type QuizInput struct {
	Title           string `json:"title" binding:"required"`
	DateOfQuiz      string `json:"date_of_quiz" binding:"required"` // YYYY-MM-DD
	TimeOfDay       string `json:"time_of_day"`                     // HH:MM, пусто - начало суток
	DurationMinutes int    `json:"duration_minutes"`
	Remarks         string `json:"remarks"`
	ChapterID       uint   `json:"chapter_id" binding:"required"`
}

// QuestionInput - данные для создания и изменения вопроса
type QuestionInput struct {
	QuizID  uint   `json:"quiz_id" binding:"required"`
	Text    string `json:"text" binding:"required"`
	Option1 string `json:"option1" binding:"required"`
	Option2 string `json:"option2" binding:"required"`
	Option3 string `json:"option3"`
	Option4 string `json:"option4"`
	Answer  string `json:"answer" binding:"required"`
	Marks   int    `json:"marks"`
}

// CatalogService управляет предметами, разделами, викторинами и вопросами.
// Чтения идут через кеш, каждое изменение инвалидирует затронутые ключи.
type CatalogService struct {
	subjectRepo  repository.SubjectRepository
	chapterRepo  repository.ChapterRepository
	quizRepo     repository.QuizRepository
	questionRepo repository.QuestionRepository
	cache        *cache.Store
	ttl          cache.TTLs
}

// NewCatalogService создает новый сервис каталога
func NewCatalogService(
	subjectRepo repository.SubjectRepository,
	chapterRepo repository.ChapterRepository,
	quizRepo repository.QuizRepository,
	questionRepo repository.QuestionRepository,
	store *cache.Store,
	ttl cache.TTLs,
) *CatalogService {
	return &CatalogService{
		subjectRepo:  subjectRepo,
		chapterRepo:  chapterRepo,
		quizRepo:     quizRepo,
		questionRepo: questionRepo,
		cache:        store,
		ttl:          ttl,
	}
}

// ---- Чтение ----

// ListSubjects возвращает все предметы
func (s *CatalogService) ListSubjects(ctx context.Context) ([]entity.Subject, error) {
	return cache.Remember(ctx, s.cache, cache.KeySubjectsAll, s.ttl.Subjects, s.subjectRepo.List)
}

// ListChaptersBySubject возвращает разделы предмета
func (s *CatalogService) ListChaptersBySubject(ctx context.Context, subjectID uint) ([]entity.Chapter, error) {
	return cache.Remember(ctx, s.cache, cache.ChaptersBySubjectKey(subjectID), s.ttl.Chapters,
		func(ctx context.Context) ([]entity.Chapter, error) {
			if _, err := s.subjectRepo.GetByID(ctx, subjectID); err != nil {
				return nil, err
			}
			return s.chapterRepo.ListBySubject(ctx, subjectID)
		})
}

// ListQuizzes возвращает все викторины
func (s *CatalogService) ListQuizzes(ctx context.Context) ([]entity.Quiz, error) {
	return cache.Remember(ctx, s.cache, cache.KeyQuizzesAll, s.ttl.Quizzes, s.quizRepo.List)
}

// ListQuizzesByChapter возвращает викторины раздела
func (s *CatalogService) ListQuizzesByChapter(ctx context.Context, chapterID uint) ([]entity.Quiz, error) {
	return cache.Remember(ctx, s.cache, cache.QuizzesByChapterKey(chapterID), s.ttl.Quizzes,
		func(ctx context.Context) ([]entity.Quiz, error) {
			if _, err := s.chapterRepo.GetByID(ctx, chapterID); err != nil {
				return nil, err
			}
			return s.quizRepo.ListByChapter(ctx, chapterID)
		})
}

// GetQuizWithQuestions возвращает викторину с вопросами (правильные ответы не сериализуются)
func (s *CatalogService) GetQuizWithQuestions(ctx context.Context, quizID uint) (*entity.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionRepo.GetByQuizID(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions of quiz #%d: %w", quizID, err)
	}
	quiz.Questions = questions
	return quiz, nil
}

// ---- Предметы ----

// CreateSubject создает предмет
func (s *CatalogService) CreateSubject(ctx context.Context, in SubjectInput) (*entity.Subject, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: subject name is required", apperrors.ErrValidation)
	}
	subject := &entity.Subject{Name: strings.TrimSpace(in.Name), Description: in.Description}
	if err := s.subjectRepo.Create(ctx, subject); err != nil {
		return nil, fmt.Errorf("failed to create subject: %w", err)
	}
	s.invalidateSubject(subject.ID)
	return subject, nil
}

// UpdateSubject изменяет предмет
func (s *CatalogService) UpdateSubject(ctx context.Context, id uint, in SubjectInput) (*entity.Subject, error) {
	subject, err := s.subjectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: subject name is required", apperrors.ErrValidation)
	}
	subject.Name = strings.TrimSpace(in.Name)
	subject.Description = in.Description
	if err := s.subjectRepo.Update(ctx, subject); err != nil {
		return nil, fmt.Errorf("failed to update subject #%d: %w", id, err)
	}
	s.invalidateSubject(id)
	return subject, nil
}

// DeleteSubject удаляет предмет
func (s *CatalogService) DeleteSubject(ctx context.Context, id uint) error {
	if err := s.subjectRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateSubject(id)
	return nil
}

// invalidateSubject: удаление предмета каскадно удаляет разделы и обнуляет ссылки викторин,
// поэтому списки викторин и дашборды тоже устаревают
func (s *CatalogService) invalidateSubject(subjectID uint) {
	s.cache.Invalidate(cache.PatternSubjects)
	s.cache.Invalidate(cache.ChaptersBySubjectPatterns(subjectID)...)
	s.cache.Invalidate(cache.PatternQuizzes, cache.PatternAllUserQuizzes)
}

// ---- Разделы ----

// CreateChapter создает раздел предмета
func (s *CatalogService) CreateChapter(ctx context.Context, in ChapterInput) (*entity.Chapter, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: chapter name is required", apperrors.ErrValidation)
	}
	if _, err := s.subjectRepo.GetByID(ctx, in.SubjectID); err != nil {
		return nil, fmt.Errorf("subject #%d: %w", in.SubjectID, err)
	}
	chapter := &entity.Chapter{Name: strings.TrimSpace(in.Name), Description: in.Description, SubjectID: in.SubjectID}
	if err := s.chapterRepo.Create(ctx, chapter); err != nil {
		return nil, fmt.Errorf("failed to create chapter: %w", err)
	}
	s.invalidateChapter(chapter.SubjectID)
	return chapter, nil
}

// UpdateChapter изменяет раздел. При переносе в другой предмет инвалидируются оба.
func (s *CatalogService) UpdateChapter(ctx context.Context, id uint, in ChapterInput) (*entity.Chapter, error) {
	chapter, err := s.chapterRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: chapter name is required", apperrors.ErrValidation)
	}
	if in.SubjectID != chapter.SubjectID {
		if _, err := s.subjectRepo.GetByID(ctx, in.SubjectID); err != nil {
			return nil, fmt.Errorf("subject #%d: %w", in.SubjectID, err)
		}
	}
	oldSubjectID := chapter.SubjectID
	chapter.Name = strings.TrimSpace(in.Name)
	chapter.Description = in.Description
	chapter.SubjectID = in.SubjectID
	if err := s.chapterRepo.Update(ctx, chapter); err != nil {
		return nil, fmt.Errorf("failed to update chapter #%d: %w", id, err)
	}
	s.invalidateChapter(oldSubjectID)
	if oldSubjectID != chapter.SubjectID {
		s.invalidateChapter(chapter.SubjectID)
	}
	return chapter, nil
}

// DeleteChapter удаляет раздел
func (s *CatalogService) DeleteChapter(ctx context.Context, id uint) error {
	chapter, err := s.chapterRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.chapterRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateChapter(chapter.SubjectID)
	return nil
}

func (s *CatalogService) invalidateChapter(subjectID uint) {
	s.cache.Invalidate(cache.ChaptersBySubjectPatterns(subjectID)...)
	s.cache.Invalidate(cache.PatternQuizzes, cache.PatternAllUserQuizzes)
}

// ---- Викторины ----

func (s *CatalogService) buildQuiz(ctx context.Context, quiz *entity.Quiz, in QuizInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: quiz title is required", apperrors.ErrValidation)
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(in.DateOfQuiz))
	if err != nil {
		return fmt.Errorf("%w: date_of_quiz must be YYYY-MM-DD", apperrors.ErrValidation)
	}
	var tod *entity.TimeOfDay
	if strings.TrimSpace(in.TimeOfDay) != "" {
		parsed, err := entity.ParseTimeOfDay(in.TimeOfDay)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		tod = &parsed
	}
	if in.DurationMinutes < 0 {
		return fmt.Errorf("%w: duration_minutes must not be negative", apperrors.ErrValidation)
	}
	duration := in.DurationMinutes
	if duration == 0 {
		duration = 60
	}
	chapter, err := s.chapterRepo.GetByID(ctx, in.ChapterID)
	if err != nil {
		return fmt.Errorf("chapter #%d: %w", in.ChapterID, err)
	}

	chapterID, subjectID := chapter.ID, chapter.SubjectID
	quiz.Title = strings.TrimSpace(in.Title)
	quiz.DateOfQuiz = entity.CalendarDate(date)
	quiz.TimeOfDay = tod
	quiz.DurationMinutes = duration
	quiz.Remarks = in.Remarks
	quiz.ChapterID = &chapterID
	quiz.SubjectID = &subjectID
	return nil
}

// CreateQuiz создает викторину в разделе
func (s *CatalogService) CreateQuiz(ctx context.Context, in QuizInput) (*entity.Quiz, error) {
	quiz := &entity.Quiz{}
	if err := s.buildQuiz(ctx, quiz, in); err != nil {
		return nil, err
	}
	if err := s.quizRepo.Create(ctx, quiz); err != nil {
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}
	log.Printf("[CatalogService] Создана викторина #%d %q на %s", quiz.ID, quiz.Title, quiz.DateOfQuiz.Format("2006-01-02"))
	s.invalidateQuizzes()
	return quiz, nil
}

// UpdateQuiz изменяет викторину. Уже посчитанные результаты не пересчитываются.
func (s *CatalogService) UpdateQuiz(ctx context.Context, id uint, in QuizInput) (*entity.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.buildQuiz(ctx, quiz, in); err != nil {
		return nil, err
	}
	if err := s.quizRepo.Update(ctx, quiz); err != nil {
		return nil, fmt.Errorf("failed to update quiz #%d: %w", id, err)
	}
	s.invalidateQuizzes()
	return quiz, nil
}

// DeleteQuiz удаляет викторину вместе с вопросами, ответами и результатами
func (s *CatalogService) DeleteQuiz(ctx context.Context, id uint) error {
	if err := s.quizRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateQuizzes()
	return nil
}

func (s *CatalogService) invalidateQuizzes() {
	s.cache.Invalidate(cache.PatternQuizzes, cache.PatternAllUserQuizzes)
}

// ---- Вопросы ----

func (s *CatalogService) buildQuestion(ctx context.Context, question *entity.Question, in QuestionInput) error {
	if strings.TrimSpace(in.Text) == "" {
		return fmt.Errorf("%w: question text is required", apperrors.ErrValidation)
	}
	quiz, err := s.quizRepo.GetByID(ctx, in.QuizID)
	if err != nil {
		return fmt.Errorf("quiz #%d: %w", in.QuizID, err)
	}
	question.QuizID = quiz.ID
	question.Text = strings.TrimSpace(in.Text)
	question.Option1 = strings.TrimSpace(in.Option1)
	question.Option2 = strings.TrimSpace(in.Option2)
	question.Option3 = strings.TrimSpace(in.Option3)
	question.Option4 = strings.TrimSpace(in.Option4)
	question.Answer = strings.TrimSpace(in.Answer)
	question.Marks = in.Marks
	if question.Marks <= 0 {
		question.Marks = 1
	}
	question.ChapterID = quiz.ChapterID
	question.SubjectID = quiz.SubjectID
	if !question.IsValidOption(question.Answer) {
		return fmt.Errorf("%w: answer must match one of the options", apperrors.ErrValidation)
	}
	return nil
}

// CreateQuestion добавляет вопрос в викторину
func (s *CatalogService) CreateQuestion(ctx context.Context, in QuestionInput) (*entity.Question, error) {
	question := &entity.Question{}
	if err := s.buildQuestion(ctx, question, in); err != nil {
		return nil, err
	}
	if err := s.questionRepo.Create(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	s.cache.Invalidate(cache.PatternQuizzes)
	return question, nil
}

// UpdateQuestion изменяет вопрос
func (s *CatalogService) UpdateQuestion(ctx context.Context, id uint, in QuestionInput) (*entity.Question, error) {
	question, err := s.questionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.buildQuestion(ctx, question, in); err != nil {
		return nil, err
	}
	if err := s.questionRepo.Update(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to update question #%d: %w", id, err)
	}
	s.cache.Invalidate(cache.PatternQuizzes)
	return question, nil
}

// DeleteQuestion удаляет вопрос
func (s *CatalogService) DeleteQuestion(ctx context.Context, id uint) error {
	if err := s.questionRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(cache.PatternQuizzes)
	return nil
}
