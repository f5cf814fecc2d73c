package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Режимы проверки времени напоминания
const (
	ReminderMatchExact   = "exact"
	ReminderMatchCatchUp = "catch_up"
)

// Config хранит все настройки приложения
type Config struct {
	App           AppConfig
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Cache         CacheConfig
	Reconciler    ReconcilerConfig
	Reminders     RemindersConfig
	MonthlyReport MonthlyReportConfig `mapstructure:"monthly_report"`
	Email         EmailConfig
	Advisor       AdvisorConfig
	Export        ExportConfig
	WebSocket     WebSocketConfig
}

// AppConfig содержит общие настройки
type AppConfig struct {
	// Timezone: IANA-зона, в которой интерпретируются дата и время викторин и напоминаний
	Timezone string `mapstructure:"timezone"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Для 'single' используется первый адрес.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Адрес для режима 'single', если Addrs пустой.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // мс
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // мс
}

// JWTConfig содержит настройки JWT
type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	ExpirationHrs int    `mapstructure:"expirationHrs"`
}

// CacheConfig - TTL кеша в секундах
type CacheConfig struct {
	SubjectsTTL  int `mapstructure:"subjects_ttl"`
	ChaptersTTL  int `mapstructure:"chapters_ttl"`
	QuizzesTTL   int `mapstructure:"quizzes_ttl"`
	DashboardTTL int `mapstructure:"dashboard_ttl"`
	UserStatsTTL int `mapstructure:"user_stats_ttl"`
}

// ReconcilerConfig содержит настройки сверки результатов
type ReconcilerConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Lookback  time.Duration `mapstructure:"lookback"`
	ReportDir string        `mapstructure:"report_dir"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

// RemindersConfig содержит настройки ежедневных напоминаний
type RemindersConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	MatchMode    string        `mapstructure:"match_mode"`
	UpcomingDays int           `mapstructure:"upcoming_days"`
}

// MonthlyReportConfig содержит настройки ежемесячных отчетов
type MonthlyReportConfig struct {
	Day          int           `mapstructure:"day"`
	Time         string        `mapstructure:"time"`
	TestEnabled  bool          `mapstructure:"test_enabled"`
	TestInterval time.Duration `mapstructure:"test_interval"`
}

// EmailConfig содержит настройки отправки писем через Resend
type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// AdvisorConfig включает блок рекомендаций в напоминаниях
type AdvisorConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ExportConfig содержит настройки выгрузки статистики
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// WebSocketConfig содержит настройки обратного отсчета
type WebSocketConfig struct {
	CountdownFrom     int           `mapstructure:"countdown_from"`
	CountdownInterval time.Duration `mapstructure:"countdown_interval"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Location возвращает зону приложения (UTC, если зона не задана или неизвестна)
func (a AppConfig) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		log.Printf("[Config] Неизвестная зона %q, используется UTC: %v", a.Timezone, err)
		return time.UTC
	}
	return loc
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("app.timezone", "UTC")
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 15)
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("redis.addr", "localhost:6379")
	vip.SetDefault("jwt.expirationHrs", 24)

	vip.SetDefault("cache.subjects_ttl", 600)
	vip.SetDefault("cache.chapters_ttl", 300)
	vip.SetDefault("cache.quizzes_ttl", 300)
	vip.SetDefault("cache.dashboard_ttl", 300)
	vip.SetDefault("cache.user_stats_ttl", 600)

	vip.SetDefault("reconciler.interval", "60s")
	vip.SetDefault("reconciler.lookback", "1h")
	vip.SetDefault("reconciler.lock_ttl", "5m")

	vip.SetDefault("reminders.interval", "30s")
	vip.SetDefault("reminders.match_mode", ReminderMatchExact)
	vip.SetDefault("reminders.upcoming_days", 7)

	vip.SetDefault("monthly_report.day", 1)
	vip.SetDefault("monthly_report.time", "09:00")
	vip.SetDefault("monthly_report.test_enabled", false)
	vip.SetDefault("monthly_report.test_interval", "24h")

	vip.SetDefault("email.from", "QuizNexus <noreply@quiznexus.local>")
	vip.SetDefault("advisor.enabled", true)
	vip.SetDefault("export.dir", os.TempDir())
	vip.SetDefault("websocket.countdown_from", 100)
	vip.SetDefault("websocket.countdown_interval", "1s")
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Новый экземпляр Viper, без глобального состояния

	setDefaults(vip)

	// Привязываем переменные окружения ЯВНО
	vip.BindEnv("app.timezone", "APP_TIMEZONE")

	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expirationHrs", "JWT_EXPIRATIONHRS")

	vip.BindEnv("server.port", "SERVER_PORT")

	vip.BindEnv("reconciler.interval", "RECONCILER_INTERVAL")
	vip.BindEnv("reconciler.lookback", "RECONCILER_LOOKBACK")
	vip.BindEnv("reconciler.report_dir", "RECONCILER_REPORT_DIR")

	vip.BindEnv("reminders.interval", "REMINDERS_INTERVAL")
	vip.BindEnv("reminders.match_mode", "REMINDERS_MATCH_MODE")

	vip.BindEnv("monthly_report.test_enabled", "MONTHLY_REPORT_TEST_ENABLED")

	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")
	vip.BindEnv("advisor.enabled", "ADVISOR_ENABLED")
	vip.BindEnv("export.dir", "EXPORT_DIR")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		// Файл необязателен: есть BindEnv и умолчания
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// REDIS_ADDRS из окружения приходит одной строкой через запятую
	if len(cfg.Redis.Addrs) == 1 && strings.Contains(cfg.Redis.Addrs[0], ",") {
		cfg.Redis.Addrs = strings.Split(cfg.Redis.Addrs[0], ",")
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Mode: %s, Addr: %s", cfg.Redis.Mode, cfg.Redis.Addr)
		log.Printf("Timezone: %s", cfg.App.Timezone)
		log.Printf("Reconciler: interval=%s lookback=%s", cfg.Reconciler.Interval, cfg.Reconciler.Lookback)
		log.Printf("Reminders: interval=%s mode=%s", cfg.Reminders.Interval, cfg.Reminders.MatchMode)
		log.Printf("Resend API Key Set: %t", cfg.Email.ResendAPIKey != "")
		log.Printf("-----------------------------------------")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные параметры и значения настроек заданий
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if c.Reconciler.Lookback <= 0 {
		return fmt.Errorf("reconciler.lookback must be positive, got %s", c.Reconciler.Lookback)
	}
	if c.Reconciler.Interval <= 0 || c.Reminders.Interval <= 0 {
		return fmt.Errorf("job intervals must be positive")
	}
	switch c.Reminders.MatchMode {
	case ReminderMatchExact, ReminderMatchCatchUp:
	default:
		return fmt.Errorf("reminders.match_mode must be %q or %q, got %q", ReminderMatchExact, ReminderMatchCatchUp, c.Reminders.MatchMode)
	}
	if c.Reminders.Interval > time.Minute && c.Reminders.MatchMode == ReminderMatchExact {
		log.Printf("[Config] Warning: reminders.interval %s больше минуты в режиме exact - часть напоминаний будет пропущена", c.Reminders.Interval)
	}
	if c.MonthlyReport.Day < 1 || c.MonthlyReport.Day > 28 {
		return fmt.Errorf("monthly_report.day must be in [1, 28], got %d", c.MonthlyReport.Day)
	}
	return nil
}
