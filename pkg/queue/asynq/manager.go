// Package asynq wraps the Redis-backed pipeline queue.
package asynq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"contentforge/pkg/config"
	"contentforge/pkg/logger"

	"github.com/hibiken/asynq"
)

const (
	// TypePipelineExecute runs the content pipeline for one task.
	TypePipelineExecute = "pipeline:execute"
)

// PipelinePayload is the queue message for one pipeline run. The task record
// itself lives in MySQL; the payload only identifies it.
type PipelinePayload struct {
	TaskID   string `json:"task_id"`
	TaskType string `json:"task_type"`
}

// Manager queue manager
type Manager struct {
	client   *asynq.Client
	server   *asynq.Server
	mux      *asynq.ServeMux
	redisOpt asynq.RedisClientOpt
	queueCfg config.QueueConfig
}

// NewManager creates queue manager
func NewManager(cfg *config.Config) (*Manager, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				"default": 10,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Second
			},
		},
	)

	mux := asynq.NewServeMux()

	return &Manager{
		client:   client,
		server:   server,
		mux:      mux,
		redisOpt: redisOpt,
		queueCfg: cfg.Queue,
	}, nil
}

// EnqueuePipeline enqueues a pipeline run for the given task. The asynq task
// ID mirrors the task ID so duplicate submissions collapse.
func (m *Manager) EnqueuePipeline(ctx context.Context, taskID, taskType string) error {
	payload, err := json.Marshal(&PipelinePayload{TaskID: taskID, TaskType: taskType})
	if err != nil {
		return fmt.Errorf("failed to marshal pipeline payload: %w", err)
	}

	asynqTask := asynq.NewTask(TypePipelineExecute, payload)

	opts := []asynq.Option{
		asynq.TaskID(taskID),
		asynq.Timeout(time.Duration(m.queueCfg.TaskTimeout) * time.Second),
		asynq.MaxRetry(m.queueCfg.MaxRetry),
	}

	info, err := m.client.EnqueueContext(ctx, asynqTask, opts...)
	if err != nil {
		return fmt.Errorf("failed to enqueue pipeline: %w", err)
	}

	logger.InfoCtx(ctx, "pipeline enqueued, task_id: %s, queue: %s", taskID, info.Queue)

	return nil
}

// DequeueTask removes a not-yet-running pipeline task from the queue.
func (m *Manager) DequeueTask(taskID string) error {
	inspector := asynq.NewInspector(m.redisOpt)
	defer inspector.Close()

	err := inspector.DeleteTask("default", taskID)
	if err != nil {
		return fmt.Errorf("failed to dequeue task: %w", err)
	}

	logger.InfoCtx(context.Background(), "pipeline dequeued, task_id: %s", taskID)
	return nil
}

// RegisterHandler registers task handler
func (m *Manager) RegisterHandler(pattern string, handler asynq.Handler) {
	m.mux.Handle(pattern, handler)
}

// Start starts queue processor
func (m *Manager) Start() error {
	logger.InfoCtx(context.Background(), "starting queue server")
	return m.server.Start(m.mux)
}

// Stop stops queue processor
func (m *Manager) Stop() {
	logger.InfoCtx(context.Background(), "stopping queue server")
	m.server.Stop()
	m.server.Shutdown()
}

// Close closes client
func (m *Manager) Close() error {
	return m.client.Close()
}

// GetPendingTaskCount retrieves pending task count
func (m *Manager) GetPendingTaskCount() (int, error) {
	inspector := asynq.NewInspector(m.redisOpt)
	defer inspector.Close()

	stats, err := inspector.GetQueueInfo("default")
	if err != nil {
		return 0, err
	}

	return stats.Pending, nil
}
