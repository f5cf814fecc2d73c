// Package jobs содержит периодические задачи: сверку результатов завершившихся викторин,
// ежедневные напоминания и ежемесячные отчеты, а также Runner, который их запускает.
// Задачи читают только реляционное хранилище; кеш они лишь инвалидируют.
package jobs

import (
	"time"

	"github.com/lekenzi/QuizNexus/internal/cache"
	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/domain/repository"
	"github.com/lekenzi/QuizNexus/internal/service"
)

// Имена задач для Runner и CLI
const (
	JobReconcile   = "reconcile"
	JobReminders   = "reminders"
	JobMonthly     = "monthly"
	JobMonthlyTest = "monthly-test"
	JobExport      = "export"
)

// Режимы проверки времени напоминания
const (
	MatchExact   = "exact"    // Только в минуту, совпадающую с reminder_time
	MatchCatchUp = "catch_up" // В любую минуту не раньше reminder_time, если сегодня еще не отправляли
)

// Config содержит настройки всех задач
type Config struct {
	Location *time.Location // Зона, в которой интерпретируются даты викторин и время напоминаний

	// Сверка
	Lookback  time.Duration
	ReportDir string // Пусто - отчет на диск не пишется

	// Напоминания
	MatchMode    string
	UpcomingDays int

	// Ежемесячный отчет
	MonthlyDay  int
	MonthlyTime entity.TimeOfDay
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Location:     time.UTC,
		Lookback:     time.Hour,
		MatchMode:    MatchExact,
		UpcomingDays: 7,
		MonthlyDay:   1,
		MonthlyTime:  entity.TimeOfDay{Hour: 9},
	}
}

func (c *Config) location() *time.Location {
	if c == nil || c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Dependencies содержит зависимости задач
type Dependencies struct {
	QuizRepo       repository.QuizRepository
	QuestionRepo   repository.QuestionRepository
	ResponseRepo   repository.ResponseRepository
	ScoreRepo      repository.ScoreRepository
	UserRepo       repository.UserRepository
	PreferenceRepo repository.PreferenceRepository
	SubjectRepo    repository.SubjectRepository
	Cache          *cache.Store
	Dispatcher     service.Dispatcher
	Advisor        service.Advisor
}
