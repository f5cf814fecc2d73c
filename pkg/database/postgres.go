package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratePostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultMigrationsDir - каталог миграций относительно рабочего каталога процесса
const DefaultMigrationsDir = "migrations"

// Пул соединений: задачи и HTTP делят одно подключение
const (
	maxOpenConns    = 25
	maxIdleConns    = 10
	connMaxLifetime = time.Hour
)

// NewPostgresDB открывает gorm-подключение к PostgreSQL.
// TranslateError включен: нарушения уникальности приходят как gorm.ErrDuplicatedKey.
func NewPostgresDB(dsn string, debug bool) (*gorm.DB, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := GetSQLDB(db)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	return db, nil
}

// NewMigrator создает golang-migrate поверх готового подключения.
// Используется сервером при старте и командой cmd/migrate.
func NewMigrator(sqlDB *sql.DB, dir string) (*migrate.Migrate, error) {
	if dir == "" {
		dir = DefaultMigrationsDir
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database is unreachable: %w", err)
	}

	driver, err := migratePostgres.WithInstance(sqlDB, &migratePostgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations in %s: %w", dir, err)
	}
	return m, nil
}

// MigrateDB применяет все новые миграции. Отсутствие изменений не является ошибкой.
func MigrateDB(db *gorm.DB, dir string) error {
	sqlDB, err := GetSQLDB(db)
	if err != nil {
		return err
	}
	m, err := NewMigrator(sqlDB, dir)
	if err != nil {
		return err
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("[Database] Схема актуальна, новых миграций нет")
	case err != nil:
		return fmt.Errorf("failed to apply migrations: %w", err)
	default:
		version, _, _ := m.Version()
		log.Printf("[Database] Миграции применены, версия схемы %d", version)
	}
	return nil
}

// GetSQLDB возвращает базовый *sql.DB из *gorm.DB
func GetSQLDB(gormDB *gorm.DB) (*sql.DB, error) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB, nil
}
