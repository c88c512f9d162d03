package jobs

import (
	"context"
	"time"

	"contentforge/pkg/logger"
	"contentforge/pkg/store/mysql"
)

// retention for terminal tasks before cleanup removes them
const taskRetention = 30 * 24 * time.Hour

// TaskCleanupJob removes old terminal tasks once a day, aligned to midnight.
type TaskCleanupJob struct {
	repo *mysql.TaskRepository
}

// NewTaskCleanupJob creates the cleanup job.
func NewTaskCleanupJob(repo *mysql.TaskRepository) *TaskCleanupJob {
	return &TaskCleanupJob{repo: repo}
}

func (j *TaskCleanupJob) Name() string { return "task_cleanup" }

func (j *TaskCleanupJob) Interval() time.Duration { return 24 * time.Hour }

func (j *TaskCleanupJob) AlignToInterval() bool { return true }

func (j *TaskCleanupJob) Run(ctx context.Context) error {
	removed, err := j.repo.CleanupOldTasks(ctx, time.Now().Add(-taskRetention))
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.InfoCtx(ctx, "task cleanup removed %d old tasks", removed)
	}
	return nil
}
