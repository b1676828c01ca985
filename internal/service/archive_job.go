package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// cronParser accepts six-field specs (leading seconds) and descriptors such
// as "@daily".
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ArchiveJob periodically moves executions older than the retention window
// into cold storage.
type ArchiveJob struct {
	archiver  domain.Archiver
	schedule  cron.Schedule
	spec      string
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewArchiveJob validates spec and creates an ArchiveJob.
func NewArchiveJob(archiver domain.Archiver, spec string, retentionDays int, logger *slog.Logger) (*ArchiveJob, error) {
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("service: parse archive cron %q: %w", spec, err)
	}
	if retentionDays < 1 {
		return nil, fmt.Errorf("service: archive retention must be at least 1 day, got %d", retentionDays)
	}
	return &ArchiveJob{
		archiver:  archiver,
		schedule:  schedule,
		spec:      spec,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "archive_job")),
	}, nil
}

// Run schedules the job and blocks until ctx is cancelled. A run in
// progress is allowed to finish.
func (j *ArchiveJob) Run(ctx context.Context) error {
	c := cron.New(cron.WithParser(cronParser))
	c.Schedule(j.schedule, cron.FuncJob(func() {
		if _, err := j.RunOnce(ctx); err != nil {
			j.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
		}
	}))

	c.Start()
	j.logger.InfoContext(ctx, "archive job scheduled",
		slog.String("cron", j.spec),
		slog.Duration("retention", j.retention),
	)

	<-ctx.Done()
	<-c.Stop().Done()
	j.logger.Info("archive job stopped")
	return nil
}

// RunOnce archives everything older than the retention window. Overlapping
// runs are skipped.
func (j *ArchiveJob) RunOnce(ctx context.Context) (int64, error) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		j.logger.WarnContext(ctx, "archive run still in progress, skipping")
		return 0, nil
	}
	j.running = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	cutoff := j.now().UTC().Add(-j.retention)
	n, err := j.archiver.ArchiveExecutions(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("service: archive executions before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		j.logger.InfoContext(ctx, "archive run complete",
			slog.Int64("archived", n),
			slog.Time("cutoff", cutoff),
		)
	}
	return n, nil
}
