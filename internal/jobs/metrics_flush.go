package jobs

import (
	"context"
	"time"

	"contentforge/pkg/scoring"
	"contentforge/pkg/store/mysql"
)

// MetricsFlushJob periodically persists tracker aggregates so provider
// history survives restarts. The same flush runs once more at shutdown.
type MetricsFlushJob struct {
	tracker  *scoring.Tracker
	repo     *mysql.MetricRepository
	interval time.Duration
}

// NewMetricsFlushJob creates the flush job.
func NewMetricsFlushJob(tracker *scoring.Tracker, repo *mysql.MetricRepository, interval time.Duration) *MetricsFlushJob {
	return &MetricsFlushJob{tracker: tracker, repo: repo, interval: interval}
}

func (j *MetricsFlushJob) Name() string { return "metrics_flush" }

func (j *MetricsFlushJob) Interval() time.Duration { return j.interval }

func (j *MetricsFlushJob) Run(ctx context.Context) error {
	return j.repo.UpsertAll(ctx, j.tracker.All())
}
