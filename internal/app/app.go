// Package app собирает зависимости приложения: подключения, репозитории, сервисы и задачи.
// Используется и HTTP сервером, и CLI запуска задач.
package app

import (
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/lekenzi/QuizNexus/internal/cache"
	"github.com/lekenzi/QuizNexus/internal/config"
	"github.com/lekenzi/QuizNexus/internal/domain/entity"
	"github.com/lekenzi/QuizNexus/internal/domain/repository"
	pgRepo "github.com/lekenzi/QuizNexus/internal/repository/postgres"
	redisRepo "github.com/lekenzi/QuizNexus/internal/repository/redis"
	"github.com/lekenzi/QuizNexus/internal/service"
	"github.com/lekenzi/QuizNexus/internal/service/jobs"
	"github.com/lekenzi/QuizNexus/pkg/auth"
	"github.com/lekenzi/QuizNexus/pkg/database"
)

// monthlyCheckInterval - период проверки Due для ежемесячной рассылки (точность - минута)
const monthlyCheckInterval = 30 * time.Second

// App содержит собранные зависимости
type App struct {
	Config   *config.Config
	Location *time.Location

	DB    *gorm.DB
	Redis redis.UniversalClient // nil - Redis недоступен, кеш и блокировки выключены
	Cache *cache.Store

	JWT *auth.JWTService

	Auth        *service.AuthService
	Catalog     *service.CatalogService
	Dashboard   *service.DashboardService
	Preferences *service.PreferenceService
	Submissions *service.SubmissionService
	Stats       *service.StatsService

	Reconciler *jobs.Reconciler
	Reminders  *jobs.ReminderScheduler
	Monthly    *jobs.MonthlyReporter
	Runner     *jobs.Runner
}

// New подключается к PostgreSQL и Redis и собирает сервисы.
// Недоступный Redis не является ошибкой: кеш advisory.
func New(cfg *config.Config, debugSQL bool) (*App, error) {
	loc := cfg.App.Location()

	monthlyTime, err := entity.ParseTimeOfDay(cfg.MonthlyReport.Time)
	if err != nil {
		return nil, fmt.Errorf("invalid monthly_report.time: %w", err)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), debugSQL)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Location: loc, DB: db}

	var cacheRepo repository.CacheRepository
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("[App] Redis недоступен, кеш и блокировки задач выключены: %v", err)
	} else {
		repo, repoErr := redisRepo.NewCacheRepo(redisClient)
		if repoErr != nil {
			log.Printf("[App] Не удалось создать CacheRepo, кеш выключен: %v", repoErr)
			redisClient.Close()
		} else {
			log.Println("[App] Successfully connected to Redis")
			a.Redis = redisClient
			cacheRepo = repo
		}
	}
	// cacheRepo остается nil-интерфейсом, если Redis недоступен
	a.Cache = cache.NewStore(cacheRepo)

	a.JWT, err = auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize JWTService: %w", err)
	}

	userRepo := pgRepo.NewUserRepo(db)
	subjectRepo := pgRepo.NewSubjectRepo(db)
	chapterRepo := pgRepo.NewChapterRepo(db)
	quizRepo := pgRepo.NewQuizRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	responseRepo := pgRepo.NewResponseRepo(db)
	scoreRepo := pgRepo.NewScoreRepo(db)
	prefRepo := pgRepo.NewPreferenceRepo(db)

	ttl := TTLsFromConfig(cfg.Cache)
	dispatcher := service.NewDispatcher(cfg.Email.ResendAPIKey, cfg.Email.From)

	a.Auth, err = service.NewAuthService(userRepo, prefRepo, a.JWT)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize AuthService: %w", err)
	}
	a.Catalog = service.NewCatalogService(subjectRepo, chapterRepo, quizRepo, questionRepo, a.Cache, ttl)
	a.Dashboard = service.NewDashboardService(quizRepo, scoreRepo, a.Cache, ttl.Dashboard, loc)
	a.Preferences = service.NewPreferenceService(prefRepo)
	a.Submissions = service.NewSubmissionService(quizRepo, questionRepo, responseRepo, a.Cache, loc)
	a.Stats = service.NewStatsService(userRepo, scoreRepo, quizRepo, subjectRepo, dispatcher, a.Cache, ttl.UserStats, cfg.Export.Dir, loc)

	jobConfig := &jobs.Config{
		Location:     loc,
		Lookback:     cfg.Reconciler.Lookback,
		ReportDir:    cfg.Reconciler.ReportDir,
		MatchMode:    cfg.Reminders.MatchMode,
		UpcomingDays: cfg.Reminders.UpcomingDays,
		MonthlyDay:   cfg.MonthlyReport.Day,
		MonthlyTime:  monthlyTime,
	}
	deps := &jobs.Dependencies{
		QuizRepo:       quizRepo,
		QuestionRepo:   questionRepo,
		ResponseRepo:   responseRepo,
		ScoreRepo:      scoreRepo,
		UserRepo:       userRepo,
		PreferenceRepo: prefRepo,
		SubjectRepo:    subjectRepo,
		Cache:          a.Cache,
		Dispatcher:     dispatcher,
		Advisor:        service.NewAdvisor(cfg.Advisor.Enabled),
	}
	a.Reconciler = jobs.NewReconciler(jobConfig, deps)
	a.Reminders = jobs.NewReminderScheduler(jobConfig, deps)
	a.Monthly = jobs.NewMonthlyReporter(jobConfig, deps)

	a.Runner = jobs.NewRunner(cacheRepo, cfg.Reconciler.LockTTL)
	a.Runner.Register(a.Reconciler, cfg.Reconciler.Interval, nil)
	a.Runner.Register(a.Reminders, cfg.Reminders.Interval, nil)
	a.Runner.Register(jobs.MonthlyJob{MonthlyReporter: a.Monthly}, monthlyCheckInterval, a.Monthly.Due)
	testInterval := time.Duration(0)
	if cfg.MonthlyReport.TestEnabled {
		testInterval = cfg.MonthlyReport.TestInterval
	}
	a.Runner.Register(jobs.MonthlyTestJob{MonthlyReporter: a.Monthly}, testInterval, nil)
	a.Runner.Register(jobs.ExportJob{Exporter: a.Stats}, 0, nil)

	return a, nil
}

// TTLsFromConfig переводит TTL из секунд конфигурации; нулевые значения берутся по умолчанию
func TTLsFromConfig(c config.CacheConfig) cache.TTLs {
	ttl := cache.DefaultTTLs()
	set := func(dst *time.Duration, seconds int) {
		if seconds > 0 {
			*dst = time.Duration(seconds) * time.Second
		}
	}
	set(&ttl.Subjects, c.SubjectsTTL)
	set(&ttl.Chapters, c.ChaptersTTL)
	set(&ttl.Quizzes, c.QuizzesTTL)
	set(&ttl.Dashboard, c.DashboardTTL)
	set(&ttl.UserStats, c.UserStatsTTL)
	return ttl
}

// Close закрывает подключения
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Printf("[App] Ошибка закрытия Redis: %v", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := database.GetSQLDB(a.DB); err == nil {
			sqlDB.Close()
		}
	}
}
