package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekenzi/QuizNexus/internal/service"
)

type fakeExporter struct {
	result *service.ExportResult
	err    error
	calls  int
}

func (f *fakeExporter) ExportUserStats(ctx context.Context) (*service.ExportResult, error) {
	f.calls++
	return f.result, f.err
}

func TestExportJob_RunsOnlyOnDemand(t *testing.T) {
	// Arrange
	exporter := &fakeExporter{result: &service.ExportResult{Filename: "user_stats_20260301_090000.xlsx", Rows: 3, AdminsNotified: 1}}
	runner := NewRunner(nil, time.Minute)
	runner.Register(ExportJob{Exporter: exporter}, 0, nil)

	// Act
	err := runner.RunNow(context.Background(), JobExport)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, exporter.calls)
	assert.Equal(t, []string{JobExport}, runner.Jobs())
}

func TestExportJob_PropagatesError(t *testing.T) {
	// Arrange
	job := ExportJob{Exporter: &fakeExporter{err: errors.New("db down")}}

	// Act
	err := job.Run(context.Background(), time.Now())

	// Assert
	assert.EqualError(t, err, "db down")
}
