// Команда jobs выполняет одну задачу однократно и печатает ее отчет в stdout.
//
//	jobs reconcile [--lookback 24h]
//	jobs reminders | monthly | monthly-test | export
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/lekenzi/QuizNexus/internal/app"
	"github.com/lekenzi/QuizNexus/internal/config"
	"github.com/lekenzi/QuizNexus/internal/service/jobs"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Printf("[Jobs] %v", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("jobs", pflag.ContinueOnError)
	configPath := flags.String("config", envOr("CONFIG_PATH", "config/config.yaml"), "path to config file")
	lookback := flags.Duration("lookback", 0, "reconcile window override, e.g. 24h (default: reconciler.lookback)")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: jobs [flags] <%s|%s|%s|%s|%s>\n",
			jobs.JobReconcile, jobs.JobReminders, jobs.JobMonthly, jobs.JobMonthlyTest, jobs.JobExport)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return fmt.Errorf("expected exactly one job name")
	}
	name := flags.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	application, err := app.New(cfg, false)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	now := time.Now()
	var report interface{}
	switch name {
	case jobs.JobReconcile:
		window := cfg.Reconciler.Lookback
		if *lookback > 0 {
			window = *lookback
		}
		report, err = application.Reconciler.ReconcileWindow(ctx, now, window)
	case jobs.JobReminders:
		report, err = application.Reminders.SendDailyReminders(ctx, now)
	case jobs.JobMonthly:
		report, err = application.Monthly.SendMonthlyReports(ctx, now)
	case jobs.JobMonthlyTest:
		report, err = application.Monthly.SendTestReports(ctx, now)
	case jobs.JobExport:
		report, err = application.Stats.ExportUserStats(ctx)
	default:
		flags.Usage()
		return fmt.Errorf("%w: %s", jobs.ErrUnknownJob, name)
	}
	if err != nil {
		return fmt.Errorf("job %s failed: %w", name, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
