package mysql

import (
	"context"
	"fmt"
	"time"

	"contentforge/internal/model"
	storemodel "contentforge/pkg/store/mysql/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskRepository handles task persistence in MySQL
type TaskRepository struct {
	ds *Datastore
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(ds *Datastore) *TaskRepository {
	return &TaskRepository{ds: ds}
}

// Create persists a new task record.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	record := fromDomainTask(task)
	if err := r.ds.DB(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	task.CreatedAt = record.CreatedAt
	task.UpdatedAt = record.UpdatedAt
	return nil
}

// Get retrieves a task by its external ID.
func (r *TaskRepository) Get(ctx context.Context, taskID string) (*model.Task, error) {
	var record storemodel.Task
	err := r.ds.DB(ctx).Where("task_id = ?", taskID).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return toDomainTask(&record), nil
}

// UpdateStatus moves a task along one edge of the state machine with a CAS
// on the source status. Illegal edges are refused before touching the
// database; a CAS miss is reported as ErrTaskNotFound or ErrInvalidTransition
// depending on whether the task exists.
func (r *TaskRepository) UpdateStatus(ctx context.Context, taskID string, from, to model.TaskStatus) error {
	if !model.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": now,
	}
	if to == model.TaskStatusGenerating && from == model.TaskStatusPending {
		updates["started_at"] = now
	}
	if to.IsTerminal() {
		updates["completed_at"] = now
	}

	result := r.ds.DB(ctx).Model(&storemodel.Task{}).
		Where("task_id = ? AND status = ?", taskID, string(from)).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update task status: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		current, err := r.Get(ctx, taskID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: task %s is %s, expected %s", ErrInvalidTransition, taskID, current.Status, from)
	}

	return nil
}

// metadata keys whose values accumulate as lists instead of being replaced
var appendKeys = map[string]bool{
	model.MetaAuditTrail: true,
	model.MetaQAFeedback: true,
}

// MergeMetadata merges a patch into the task's metadata under a row lock so
// concurrent pipeline steps never lose keys. Audit trail and QA feedback
// entries append; all other keys overwrite.
func (r *TaskRepository) MergeMetadata(ctx context.Context, taskID string, patch map[string]interface{}) error {
	if len(patch) == 0 {
		return nil
	}

	return r.ds.ExecTx(ctx, func(txCtx context.Context) error {
		var record storemodel.Task
		err := r.ds.DB(txCtx).
			Where("task_id = ?", taskID).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&record).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrTaskNotFound
			}
			return fmt.Errorf("failed to lock task for metadata merge: %w", err)
		}

		merged := make(storemodel.JSONMap, len(record.Metadata)+len(patch))
		for k, v := range record.Metadata {
			merged[k] = v
		}
		for k, v := range patch {
			if appendKeys[k] {
				merged[k] = appendValue(merged[k], v)
				continue
			}
			merged[k] = v
		}

		return r.ds.DB(txCtx).Model(&storemodel.Task{}).
			Where("task_id = ?", taskID).
			Updates(map[string]interface{}{
				"metadata":   merged,
				"updated_at": time.Now(),
			}).Error
	})
}

func appendValue(existing, v interface{}) []interface{} {
	var list []interface{}
	if existing != nil {
		if prev, ok := existing.([]interface{}); ok {
			list = prev
		} else {
			list = []interface{}{existing}
		}
	}
	return append(list, v)
}

// AppendAudit appends one entry to the task's audit trail. Audit entries may
// still be appended after a task is terminal.
func (r *TaskRepository) AppendAudit(ctx context.Context, taskID string, entry map[string]interface{}) error {
	return r.MergeMetadata(ctx, taskID, map[string]interface{}{
		model.MetaAuditTrail: entry,
	})
}

// List retrieves tasks with optional status and task_type filters, newest
// first. Content payloads stay in the row; callers build summaries.
func (r *TaskRepository) List(ctx context.Context, status, taskType string, limit, offset int) ([]*model.Task, error) {
	if limit <= 0 {
		limit = 100
	}

	query := r.ds.DB(ctx).Model(&storemodel.Task{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if taskType != "" {
		query = query.Where("task_type = ?", taskType)
	}

	var records []*storemodel.Task
	err := query.
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*model.Task, 0, len(records))
	for _, record := range records {
		tasks = append(tasks, toDomainTask(record))
	}
	return tasks, nil
}

// Count counts tasks matching the same filters as List.
func (r *TaskRepository) Count(ctx context.Context, status, taskType string) (int64, error) {
	query := r.ds.DB(ctx).Model(&storemodel.Task{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if taskType != "" {
		query = query.Where("task_type = ?", taskType)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// ListByStatuses returns task IDs currently in any of the given statuses.
// Used at startup to re-enqueue work interrupted by a crash.
func (r *TaskRepository) ListByStatuses(ctx context.Context, statuses []model.TaskStatus) ([]string, error) {
	raw := make([]string, 0, len(statuses))
	for _, s := range statuses {
		raw = append(raw, string(s))
	}

	var taskIDs []string
	err := r.ds.DB(ctx).Model(&storemodel.Task{}).
		Where("status IN ?", raw).
		Order("id ASC").
		Pluck("task_id", &taskIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks by statuses: %w", err)
	}
	return taskIDs, nil
}

// ListStale returns task IDs in the given statuses whose last update is
// older than the cutoff. Used to detect runs orphaned by a crash.
func (r *TaskRepository) ListStale(ctx context.Context, statuses []model.TaskStatus, before time.Time) ([]string, error) {
	raw := make([]string, 0, len(statuses))
	for _, s := range statuses {
		raw = append(raw, string(s))
	}

	var taskIDs []string
	err := r.ds.DB(ctx).Model(&storemodel.Task{}).
		Where("status IN ? AND updated_at < ?", raw, before).
		Order("id ASC").
		Pluck("task_id", &taskIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale tasks: %w", err)
	}
	return taskIDs, nil
}

// ExecTx executes a function within a transaction
// This allows multiple repository operations to be executed atomically
func (r *TaskRepository) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.ds.ExecTx(ctx, fn)
}

// CleanupOldTasks removes terminal tasks older than the given time in batches
func (r *TaskRepository) CleanupOldTasks(ctx context.Context, before time.Time) (int64, error) {
	const batchSize = 5000
	terminal := []string{
		string(model.TaskStatusPublished),
		string(model.TaskStatusRejected),
		string(model.TaskStatusFailed),
	}

	var total int64
	for {
		result := r.ds.DB(ctx).
			Where("status IN ? AND updated_at < ?", terminal, before).
			Limit(batchSize).
			Delete(&storemodel.Task{})
		if result.Error != nil {
			return total, result.Error
		}
		total += result.RowsAffected
		if result.RowsAffected < batchSize {
			break
		}
		time.Sleep(100 * time.Millisecond) // avoid overwhelming DB
	}
	return total, nil
}
