package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"contentforge/app/handler"
	"contentforge/internal/jobs"
	"contentforge/internal/model"
	"contentforge/internal/pipeline"
	"contentforge/internal/service"
	"contentforge/pkg/config"
	"contentforge/pkg/fallback"
	"contentforge/pkg/logger"
	queue "contentforge/pkg/queue/asynq"
	"contentforge/pkg/scoring"
	mysqlstore "contentforge/pkg/store/mysql"
	redisstore "contentforge/pkg/store/redis"

	"github.com/gin-gonic/gin"
)

// Application manages the lifecycle of the entire application
type Application struct {
	// Infrastructure components
	config      *config.Config
	datastore   *mysqlstore.Datastore
	redisClient *redisstore.RedisClient
	queueMgr    *queue.Manager

	// Repositories
	taskRepo   *mysqlstore.TaskRepository
	metricRepo *mysqlstore.MetricRepository

	// Model routing
	tracker           *scoring.Tracker
	availabilityCache *fallback.AvailabilityCache
	orchestrator      *fallback.Orchestrator

	// Pipeline
	registry *pipeline.Registry
	executor *pipeline.Executor

	// Service layer
	taskService     *service.TaskService
	providerService *service.ProviderService

	// Handler layer
	taskHandler     *handler.TaskHandler
	providerHandler *handler.ProviderHandler
	streamHandler   *handler.StreamHandler

	// HTTP server
	httpServer *http.Server
	ginEngine  *gin.Engine

	// Background tasks
	jobsManager *jobs.Manager

	// Context management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Background task cleanup functions
	cleanupFuncs []func()
}

// NewApplication creates a new Application instance
func NewApplication() *Application {
	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		ctx:          ctx,
		cancel:       cancel,
		cleanupFuncs: make([]func(), 0),
	}
}

// Initialize initializes all application components
func (app *Application) Initialize() error {
	var err error

	// Initialize components in order
	steps := []struct {
		name string
		fn   func() error
	}{
		{"Configuration", app.initConfig},
		{"Logging", app.initLogger},
		{"MySQL", app.initMySQL},
		{"Redis", app.initRedis},
		{"Queue", app.initQueue},
		{"Model Providers", app.initProviders},
		{"Pipeline", app.initPipeline},
		{"Service Layer", app.initServices},
		{"Background Tasks", app.initJobs},
		{"Handler Layer", app.initHandlers},
		{"HTTP Server", app.initHTTPServer},
	}

	for _, step := range steps {
		logger.InfoCtx(app.ctx, "Initializing %s...", step.name)
		if err = step.fn(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		logger.InfoCtx(app.ctx, "%s initialized successfully", step.name)
	}

	logger.InfoCtx(app.ctx, "Application initialization completed")
	return nil
}

// Start starts all application components
func (app *Application) Start() error {
	logger.InfoCtx(app.ctx, "Starting application components...")

	// 1. Start queue workers
	if err := app.queueMgr.Start(); err != nil {
		return fmt.Errorf("failed to start queue server: %w", err)
	}

	// 2. Re-enqueue tasks that were submitted but never picked up before the
	// last shutdown. Duplicate task IDs are rejected by the queue.
	app.requeuePendingTasks()

	// 3. Start background tasks
	if app.jobsManager != nil {
		logger.InfoCtx(app.ctx, "Starting background task manager")
		app.jobsManager.Start()
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.jobsManager.Wait()
		}()
	}

	// 4. Start HTTP server
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		addr := fmt.Sprintf(":%d", app.config.Server.Port)
		logger.InfoCtx(app.ctx, "HTTP server listening on: %s", addr)
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalCtx(app.ctx, "HTTP server error: %v", err)
		}
	}()

	logger.InfoCtx(app.ctx, "All components started successfully")
	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown(timeout time.Duration) error {
	logger.InfoCtx(app.ctx, "Starting graceful shutdown (timeout: %v)...", timeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// 1. Stop HTTP server (stop accepting new requests)
	logger.InfoCtx(app.ctx, "Shutting down HTTP server...")
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(app.ctx, "HTTP server shutdown error: %v", err)
	}

	// 2. Stop queue workers, letting in-flight pipelines finish
	logger.InfoCtx(app.ctx, "Stopping queue workers...")
	app.queueMgr.Stop()

	// 3. Cancel all background tasks
	logger.InfoCtx(app.ctx, "Canceling background tasks...")
	app.cancel()
	if app.jobsManager != nil {
		app.jobsManager.Stop()
	}

	// 4. Wait for all background tasks to complete
	logger.InfoCtx(app.ctx, "Waiting for background tasks to complete...")
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoCtx(app.ctx, "All background tasks completed")
	case <-shutdownCtx.Done():
		logger.WarnCtx(app.ctx, "Shutdown timeout, some tasks may not have completed")
	}

	// 5. Final metrics flush so provider history survives the restart
	if app.tracker != nil && app.metricRepo != nil {
		if err := app.metricRepo.UpsertAll(shutdownCtx, app.tracker.All()); err != nil {
			logger.ErrorCtx(app.ctx, "final metrics flush failed: %v", err)
		}
	}

	// 6. Execute all cleanup functions (in reverse registration order)
	logger.InfoCtx(app.ctx, "Executing cleanup functions...")
	for i := len(app.cleanupFuncs) - 1; i >= 0; i-- {
		app.cleanupFuncs[i]()
	}

	// 7. Sync logs
	logger.Sync()

	logger.InfoCtx(app.ctx, "Graceful shutdown completed")
	return nil
}

// requeuePendingTasks puts tasks stranded in PENDING back on the queue.
func (app *Application) requeuePendingTasks() {
	taskIDs, err := app.taskRepo.ListByStatuses(app.ctx, []model.TaskStatus{model.TaskStatusPending})
	if err != nil {
		logger.WarnCtx(app.ctx, "failed to list pending tasks for requeue: %v", err)
		return
	}
	for _, taskID := range taskIDs {
		task, err := app.taskRepo.Get(app.ctx, taskID)
		if err != nil {
			continue
		}
		if err := app.queueMgr.EnqueuePipeline(app.ctx, taskID, task.TaskType); err != nil {
			logger.DebugCtx(app.ctx, "requeue skipped, task_id: %s: %v", taskID, err)
		}
	}
	if len(taskIDs) > 0 {
		logger.InfoCtx(app.ctx, "requeued %d pending tasks", len(taskIDs))
	}
}

// registerCleanup registers cleanup function
func (app *Application) registerCleanup(cleanup func()) {
	app.cleanupFuncs = append(app.cleanupFuncs, cleanup)
}
