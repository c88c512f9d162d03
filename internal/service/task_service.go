package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contentforge/internal/model"
	"contentforge/pkg/logger"
	"contentforge/pkg/metrics"
	"contentforge/pkg/store/mysql"

	"github.com/google/uuid"
)

// ErrNotCancellable the task has passed the point where cancellation applies.
var ErrNotCancellable = errors.New("task can no longer be cancelled")

// TaskStore is the persistence surface the service needs. Satisfied by
// mysql.TaskRepository.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	Get(ctx context.Context, taskID string) (*model.Task, error)
	UpdateStatus(ctx context.Context, taskID string, from, to model.TaskStatus) error
	MergeMetadata(ctx context.Context, taskID string, patch map[string]interface{}) error
	List(ctx context.Context, status, taskType string, limit, offset int) ([]*model.Task, error)
	Count(ctx context.Context, status, taskType string) (int64, error)
}

// PipelineQueue enqueues and withdraws pipeline runs. Satisfied by
// asynq.Manager.
type PipelineQueue interface {
	EnqueuePipeline(ctx context.Context, taskID, taskType string) error
	DequeueTask(taskID string) error
}

// Canceller interrupts a pipeline run already executing in a worker.
type Canceller interface {
	Cancel(taskID string) bool
}

// TaskService owns the task lifecycle: submission, queries, cancellation and
// the human approval gate.
type TaskService struct {
	taskRepo  TaskStore
	queue     PipelineQueue
	canceller Canceller
}

// NewTaskService creates a new Task service
func NewTaskService(taskRepo TaskStore, queue PipelineQueue, canceller Canceller) *TaskService {
	return &TaskService{
		taskRepo:  taskRepo,
		queue:     queue,
		canceller: canceller,
	}
}

// Submit creates a pending task and enqueues its pipeline run.
func (s *TaskService) Submit(ctx context.Context, req *model.SubmitRequest) (*model.SubmitResponse, error) {
	taskID := uuid.New().String()

	task := &model.Task{
		ID:       taskID,
		TaskType: req.TaskType,
		Input:    req.Input,
		Status:   model.TaskStatusPending,
		Metadata: map[string]interface{}{
			model.MetaAuditTrail: []interface{}{auditEntry("submitted", "")},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	if err := s.queue.EnqueuePipeline(ctx, taskID, req.TaskType); err != nil {
		// The record stays PENDING; the startup requeue job will pick it up.
		logger.ErrorCtx(ctx, "failed to enqueue pipeline, task_id: %s, error: %v", taskID, err)
	}

	metrics.TaskSubmittedTotal.WithLabelValues(req.TaskType).Inc()
	logger.InfoCtx(ctx, "task submitted, task_id: %s, task_type: %s", taskID, req.TaskType)

	return &model.SubmitResponse{
		ID:     taskID,
		Status: model.TaskStatusPending,
	}, nil
}

// Get returns the full task view.
func (s *TaskService) Get(ctx context.Context, taskID string) (*model.TaskResponse, error) {
	task, err := s.taskRepo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return toTaskResponse(task), nil
}

// List returns compact task summaries plus the total matching count.
func (s *TaskService) List(ctx context.Context, status, taskType string, limit, offset int) ([]*model.TaskSummary, int64, error) {
	tasks, err := s.taskRepo.List(ctx, status, taskType, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.taskRepo.Count(ctx, status, taskType)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]*model.TaskSummary, 0, len(tasks))
	for _, task := range tasks {
		summaries = append(summaries, &model.TaskSummary{
			ID:          task.ID,
			TaskType:    task.TaskType,
			Status:      task.Status,
			CreatedAt:   task.CreatedAt,
			UpdatedAt:   task.UpdatedAt,
			CompletedAt: task.CompletedAt,
		})
	}
	return summaries, total, nil
}

// Cancel aborts a task that has not yet reached the approval gate. The status
// CAS settles the race with a concurrently finishing pipeline: whoever moves
// the status first wins, the loser sees ErrInvalidTransition.
func (s *TaskService) Cancel(ctx context.Context, taskID string) error {
	task, err := s.taskRepo.Get(ctx, taskID)
	if err != nil {
		return err
	}

	if !task.Status.Cancellable() {
		return fmt.Errorf("%w: status %s", ErrNotCancellable, task.Status)
	}

	if err := s.taskRepo.UpdateStatus(ctx, taskID, task.Status, model.TaskStatusFailed); err != nil {
		return err
	}
	if err := s.taskRepo.MergeMetadata(ctx, taskID, map[string]interface{}{
		model.MetaFailureReason: "cancelled by operator",
		model.MetaAuditTrail:    auditEntry("cancelled", string(task.Status)),
	}); err != nil {
		logger.ErrorCtx(ctx, "failed to record cancellation metadata, task_id: %s, error: %v", taskID, err)
	}

	// Withdraw the queued run if it never started, interrupt it if it did.
	if err := s.queue.DequeueTask(taskID); err != nil {
		logger.DebugCtx(ctx, "task not in queue, task_id: %s", taskID)
	}
	if s.canceller != nil && s.canceller.Cancel(taskID) {
		logger.InfoCtx(ctx, "running pipeline interrupted, task_id: %s", taskID)
	}

	metrics.TaskTransitionTotal.WithLabelValues(string(task.Status), string(model.TaskStatusFailed)).Inc()
	logger.InfoCtx(ctx, "task cancelled, task_id: %s", taskID)
	return nil
}

// Finalize applies the human verdict to a task awaiting approval. The write
// is verified by reading the record back; a mismatch means the approval was
// not durably recorded and must be reported, never assumed.
func (s *TaskService) Finalize(ctx context.Context, taskID string, req *model.ApprovalRequest) (*model.TaskResponse, error) {
	task, err := s.taskRepo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status != model.TaskStatusAwaitingApproval {
		return nil, fmt.Errorf("%w: task %s is %s, expected %s",
			mysql.ErrInvalidTransition, taskID, task.Status, model.TaskStatusAwaitingApproval)
	}

	target := model.TaskStatusPublished
	if req.Verdict == "reject" {
		target = model.TaskStatusRejected
	}

	patch := map[string]interface{}{
		model.MetaAuditTrail: auditEntry(req.Verdict, req.Notes),
	}
	if req.Notes != "" {
		patch[model.MetaApprovalNotes] = req.Notes
	}
	if err := s.taskRepo.MergeMetadata(ctx, taskID, patch); err != nil {
		return nil, err
	}

	if err := s.taskRepo.UpdateStatus(ctx, taskID, model.TaskStatusAwaitingApproval, target); err != nil {
		return nil, err
	}

	verified, err := s.taskRepo.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("%w: read-back failed: %v", mysql.ErrPersistenceFailure, err)
	}
	if verified.Status != target {
		return nil, fmt.Errorf("%w: task %s reads %s after writing %s",
			mysql.ErrPersistenceFailure, taskID, verified.Status, target)
	}

	metrics.TaskTransitionTotal.WithLabelValues(string(model.TaskStatusAwaitingApproval), string(target)).Inc()
	logger.InfoCtx(ctx, "task finalized, task_id: %s, verdict: %s", taskID, req.Verdict)
	return toTaskResponse(verified), nil
}

// toTaskResponse converts a task to the API view with timing fields.
func toTaskResponse(task *model.Task) *model.TaskResponse {
	var delayTime int64
	var executionTime int64

	if task.StartedAt != nil {
		delayTime = task.StartedAt.Sub(task.CreatedAt).Milliseconds()
	}
	if task.CompletedAt != nil && task.StartedAt != nil {
		executionTime = task.CompletedAt.Sub(*task.StartedAt).Milliseconds()
	}

	resp := &model.TaskResponse{
		ID:          task.ID,
		TaskType:    task.TaskType,
		Status:      task.Status,
		Input:       task.Input,
		Metadata:    task.Metadata,
		DelayTime:   delayTime,
		ExecutionMS: executionTime,
		CreatedAt:   task.CreatedAt.Format(time.RFC3339),
	}
	if task.StartedAt != nil {
		resp.StartedAt = task.StartedAt.Format(time.RFC3339)
	}
	if task.CompletedAt != nil {
		resp.CompletedAt = task.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func auditEntry(event, detail string) map[string]interface{} {
	entry := map[string]interface{}{
		"at":    time.Now().Format(time.RFC3339),
		"event": event,
	}
	if detail != "" {
		entry["detail"] = detail
	}
	return entry
}
