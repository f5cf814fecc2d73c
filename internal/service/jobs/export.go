package jobs

import (
	"context"
	"log"
	"time"

	"github.com/lekenzi/QuizNexus/internal/service"
)

// UserStatsExporter - источник выгрузки статистики (service.StatsService)
type UserStatsExporter interface {
	ExportUserStats(ctx context.Context) (*service.ExportResult, error)
}

// ExportJob выгружает статистику пользователей администраторам. Запускается только вручную.
type ExportJob struct {
	Exporter UserStatsExporter
}

// Name реализует Job
func (j ExportJob) Name() string { return JobExport }

// Run реализует Job
func (j ExportJob) Run(ctx context.Context, now time.Time) error {
	result, err := j.Exporter.ExportUserStats(ctx)
	if err != nil {
		return err
	}
	log.Printf("[Export] %s: строк %d, администраторов уведомлено %d, ошибок %d",
		result.Filename, result.Rows, result.AdminsNotified, result.AdminsFailed)
	return nil
}
