package jobs

import (
	"context"
	"time"

	"contentforge/internal/model"
	"contentforge/pkg/logger"
	queue "contentforge/pkg/queue/asynq"
	"contentforge/pkg/store/mysql"
)

// PipelineRecoveryJob repairs tasks the queue lost track of: PENDING tasks
// whose enqueue failed are re-enqueued, and in-flight tasks orphaned by a
// crash are failed so they do not stall forever.
type PipelineRecoveryJob struct {
	repo       *mysql.TaskRepository
	queue      *queue.Manager
	staleAfter time.Duration
}

// NewPipelineRecoveryJob creates the recovery job. staleAfter should exceed
// the whole-pipeline timeout.
func NewPipelineRecoveryJob(repo *mysql.TaskRepository, queueMgr *queue.Manager, staleAfter time.Duration) *PipelineRecoveryJob {
	return &PipelineRecoveryJob{repo: repo, queue: queueMgr, staleAfter: staleAfter}
}

func (j *PipelineRecoveryJob) Name() string { return "pipeline_recovery" }

func (j *PipelineRecoveryJob) Interval() time.Duration { return 5 * time.Minute }

func (j *PipelineRecoveryJob) Run(ctx context.Context) error {
	// Re-enqueue pending tasks; duplicate task IDs are rejected by the queue
	// so redelivery is harmless.
	pending, err := j.repo.ListStale(ctx, []model.TaskStatus{model.TaskStatusPending}, time.Now().Add(-time.Minute))
	if err != nil {
		return err
	}
	for _, taskID := range pending {
		task, err := j.repo.Get(ctx, taskID)
		if err != nil {
			continue
		}
		if err := j.queue.EnqueuePipeline(ctx, taskID, task.TaskType); err != nil {
			logger.DebugCtx(ctx, "requeue skipped, task_id: %s: %v", taskID, err)
		}
	}

	// Fail in-flight tasks whose worker died.
	stale, err := j.repo.ListStale(ctx,
		[]model.TaskStatus{model.TaskStatusGenerating, model.TaskStatusQAReview},
		time.Now().Add(-j.staleAfter))
	if err != nil {
		return err
	}
	for _, taskID := range stale {
		task, err := j.repo.Get(ctx, taskID)
		if err != nil {
			continue
		}
		if err := j.repo.UpdateStatus(ctx, taskID, task.Status, model.TaskStatusFailed); err != nil {
			continue
		}
		_ = j.repo.MergeMetadata(ctx, taskID, map[string]interface{}{
			model.MetaFailureReason: "pipeline orphaned, no progress within timeout",
		})
		_ = j.repo.AppendAudit(ctx, taskID, map[string]interface{}{
			"at":     time.Now().Format(time.RFC3339),
			"event":  "recovered",
			"detail": "orphaned run marked failed",
		})
		logger.WarnCtx(ctx, "orphaned pipeline failed, task_id: %s, was: %s", taskID, task.Status)
	}
	return nil
}
