package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/lekenzi/QuizNexus/internal/cache"
	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/domain/repository"
)

const notAvailable = "N/A"

// UserStats - сводная статистика пользователя для администратора
type UserStats struct {
	UserID            uint    `json:"user_id"`
	Username          string  `json:"username"`
	FullName          string  `json:"full_name"`
	QuizzesTaken      int     `json:"quizzes_taken"`
	AverageScore      float64 `json:"average_score"`
	TotalPoints       int     `json:"total_points"`
	LastQuizDate      string  `json:"last_quiz_date"` // YYYY-MM-DD или N/A
	MostActiveSubject string  `json:"most_active_subject"`
	CompletionRate    float64 `json:"completion_rate"` // Процент от всех викторин
}

// ExportResult - итог выгрузки статистики
type ExportResult struct {
	Filename       string `json:"filename"`
	Path           string `json:"path,omitempty"`
	Rows           int    `json:"rows"`
	AdminsNotified int    `json:"admins_notified"`
	AdminsFailed   int    `json:"admins_failed"`
}

// StatsService считает статистику пользователей и выгружает ее администраторам
type StatsService struct {
	userRepo    repository.UserRepository
	scoreRepo   repository.ScoreRepository
	quizRepo    repository.QuizRepository
	subjectRepo repository.SubjectRepository
	dispatcher  Dispatcher
	exportDir   string
	loc         *time.Location
	now         func() time.Time

	cachedStats func(ctx context.Context, userID uint) (*UserStats, error)
}

// NewStatsService создает сервис статистики. Пустой exportDir - файл на диск не пишется.
func NewStatsService(
	userRepo repository.UserRepository,
	scoreRepo repository.ScoreRepository,
	quizRepo repository.QuizRepository,
	subjectRepo repository.SubjectRepository,
	dispatcher Dispatcher,
	store *cache.Store,
	ttl time.Duration,
	exportDir string,
	loc *time.Location,
) *StatsService {
	if loc == nil {
		loc = time.UTC
	}
	s := &StatsService{
		userRepo:    userRepo,
		scoreRepo:   scoreRepo,
		quizRepo:    quizRepo,
		subjectRepo: subjectRepo,
		dispatcher:  dispatcher,
		exportDir:   exportDir,
		loc:         loc,
		now:         time.Now,
	}
	s.cachedStats = cache.Memoize(store, "user_stats", ttl, s.userStats)
	return s
}

// GetUserStats возвращает статистику пользователя через кеш
func (s *StatsService) GetUserStats(ctx context.Context, userID uint) (*UserStats, error) {
	return s.cachedStats(ctx, userID)
}

func (s *StatsService) userStats(ctx context.Context, userID uint) (*UserStats, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return s.computeStats(ctx, user, catalog)
}

type statsCatalog struct {
	totalQuizzes int
	quizSubject  map[uint]uint // quiz ID -> subject ID
	subjectNames map[uint]string
}

func (s *StatsService) loadCatalog(ctx context.Context) (*statsCatalog, error) {
	quizzes, err := s.quizRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	subjects, err := s.subjectRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}

	c := &statsCatalog{
		totalQuizzes: len(quizzes),
		quizSubject:  make(map[uint]uint, len(quizzes)),
		subjectNames: make(map[uint]string, len(subjects)),
	}
	for _, q := range quizzes {
		if q.SubjectID != nil {
			c.quizSubject[q.ID] = *q.SubjectID
		}
	}
	for _, sub := range subjects {
		c.subjectNames[sub.ID] = sub.Name
	}
	return c, nil
}

func (s *StatsService) computeStats(ctx context.Context, user *entity.User, catalog *statsCatalog) (*UserStats, error) {
	scores, err := s.scoreRepo.GetByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scores of user #%d: %w", user.ID, err)
	}

	stats := &UserStats{
		UserID:            user.ID,
		Username:          user.Username,
		FullName:          user.FullName,
		QuizzesTaken:      len(scores),
		LastQuizDate:      notAvailable,
		MostActiveSubject: notAvailable,
	}
	if len(scores) == 0 {
		return stats, nil
	}

	var last time.Time
	perSubject := make(map[uint]int)
	for _, sc := range scores {
		stats.TotalPoints += sc.Value
		if sc.Timestamp.After(last) {
			last = sc.Timestamp
		}
		if subjectID, ok := catalog.quizSubject[sc.QuizID]; ok {
			perSubject[subjectID]++
		}
	}
	stats.AverageScore = round2(float64(stats.TotalPoints) / float64(len(scores)))
	stats.LastQuizDate = last.In(s.loc).Format("2006-01-02")

	// Агрегация по ID: у двух предметов может быть одинаковое имя
	var bestID uint
	bestCount := 0
	for id, n := range perSubject {
		if n > bestCount || (n == bestCount && id < bestID) {
			bestID, bestCount = id, n
		}
	}
	if bestCount > 0 {
		if name, ok := catalog.subjectNames[bestID]; ok {
			stats.MostActiveSubject = name
		}
	}

	if catalog.totalQuizzes > 0 {
		stats.CompletionRate = round2(float64(len(scores)) / float64(catalog.totalQuizzes) * 100)
	}
	return stats, nil
}

// CollectAll считает статистику всех пользователей без кеша
func (s *StatsService) CollectAll(ctx context.Context) ([]UserStats, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]UserStats, 0, len(users))
	for i := range users {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stats, err := s.computeStats(ctx, &users[i], catalog)
		if err != nil {
			return nil, err
		}
		out = append(out, *stats)
	}
	return out, nil
}

// ExportUserStats строит XLSX со статистикой, сохраняет его в exportDir и рассылает всем администраторам
func (s *StatsService) ExportUserStats(ctx context.Context) (*ExportResult, error) {
	rows, err := s.CollectAll(ctx)
	if err != nil {
		return nil, err
	}

	data, err := renderUserStatsXLSX(rows)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	result := &ExportResult{
		Filename: fmt.Sprintf("user_stats_%s.xlsx", now.Format("20060102_150405")),
		Rows:     len(rows),
	}

	if s.exportDir != "" {
		if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
			log.Printf("[StatsService] Не удалось создать каталог %s: %v", s.exportDir, err)
		} else {
			path := filepath.Join(s.exportDir, result.Filename)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				log.Printf("[StatsService] Не удалось записать %s: %v", path, err)
			} else {
				result.Path = path
			}
		}
	}

	admins, err := s.userRepo.ListByRole(ctx, entity.RoleAdmin)
	if err != nil {
		return result, fmt.Errorf("failed to list admins: %w", err)
	}
	body := fmt.Sprintf("Your user statistics export is complete. %d users are included in the attached file.", len(rows))
	for _, admin := range admins {
		msg := Message{
			To:             admin.Username,
			Subject:        "User Statistics Export Complete",
			Body:           body,
			IdempotencyKey: IdempotencyKey(fmt.Sprintf("user_stats:%d:%s", admin.ID, result.Filename)),
		}
		if s.dispatcher.SendWithAttachment(ctx, msg, data, result.Filename) {
			result.AdminsNotified++
		} else {
			result.AdminsFailed++
		}
	}

	log.Printf("[StatsService] Выгрузка %s: строк=%d, администраторов уведомлено=%d, ошибок=%d",
		result.Filename, result.Rows, result.AdminsNotified, result.AdminsFailed)
	return result, nil
}

var userStatsHeaders = []interface{}{
	"User ID", "Username", "Full Name", "Quizzes Taken", "Average Score",
	"Total Points", "Last Quiz Date", "Most Active Subject", "Completion Rate",
}

func renderUserStatsXLSX(rows []UserStats) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "User Stats"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream writer: %w", err)
	}
	if err := sw.SetRow("A1", userStatsHeaders); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	for i, r := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{
			r.UserID,
			sanitizeForExcel(r.Username),
			sanitizeForExcel(r.FullName),
			r.QuizzesTaken,
			fmt.Sprintf("%.2f", r.AverageScore),
			r.TotalPoints,
			r.LastQuizDate,
			sanitizeForExcel(r.MostActiveSubject),
			fmt.Sprintf("%.2f%%", r.CompletionRate),
		}
		if err := sw.SetRow(cell, row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush sheet: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel
func sanitizeForExcel(s string) string {
	if s == "" {
		return s
	}
	if strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
