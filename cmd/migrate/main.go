// Команда migrate управляет схемой базы данных через golang-migrate.
//
//	migrate [--dir migrations] up | down | version | force <version>
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq"
	"github.com/spf13/pflag"

	"github.com/lekenzi/QuizNexus/internal/config"
	"github.com/lekenzi/QuizNexus/pkg/database"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Printf("[Migrate] %v", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	configPath := flags.String("config", os.Getenv("CONFIG_PATH"), "path to config file")
	dir := flags.String("dir", database.DefaultMigrationsDir, "migrations directory")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() < 1 {
		return fmt.Errorf("usage: migrate [--dir migrations] up|down|version|force <version>")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.PostgresConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := database.NewMigrator(db, *dir)
	if err != nil {
		return err
	}

	switch cmd := flags.Arg(0); cmd {
	case "up":
		err = m.Up()
	case "down":
		// Откат на одну версию
		err = m.Steps(-1)
	case "version":
		version, dirty, vErr := m.Version()
		if errors.Is(vErr, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return nil
		}
		if vErr != nil {
			return vErr
		}
		fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		return nil
	case "force":
		// Снимает dirty-состояние после неудачной миграции
		if flags.NArg() != 2 {
			return fmt.Errorf("force requires a version")
		}
		version, convErr := strconv.Atoi(flags.Arg(1))
		if convErr != nil {
			return fmt.Errorf("invalid version %q: %w", flags.Arg(1), convErr)
		}
		err = m.Force(version)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("[Migrate] Изменений нет, база данных актуальна")
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("[Migrate] %s выполнено", flags.Arg(0))
	return nil
}
