package main

import (
	"fmt"
	"net/http"
	"time"

	"contentforge/app/handler"
	"contentforge/app/router"
	"contentforge/internal/jobs"
	"contentforge/internal/pipeline"
	"contentforge/internal/service"
	"contentforge/pkg/config"
	"contentforge/pkg/fallback"
	"contentforge/pkg/logger"
	"contentforge/pkg/provider/factory"
	queue "contentforge/pkg/queue/asynq"
	"contentforge/pkg/scoring"
	mysqlstore "contentforge/pkg/store/mysql"
	storemodel "contentforge/pkg/store/mysql/model"
	redisstore "contentforge/pkg/store/redis"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// initConfig initializes configuration. Provider API keys come from the
// environment, optionally seeded from a .env file.
func (app *Application) initConfig() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	app.config = cfg
	return nil
}

// initLogger initializes logging
func (app *Application) initLogger() error {
	if err := logger.Init(app.config.Logger); err != nil {
		return err
	}
	app.registerCleanup(func() {
		logger.Sync()
		logger.InfoCtx(app.ctx, "Logging system has been closed")
	})
	return nil
}

// initMySQL initializes MySQL
func (app *Application) initMySQL() error {
	ds, err := mysqlstore.NewDatastore(mysqlstore.DSN(app.config.MySQL))
	if err != nil {
		return err
	}
	if err := ds.AutoMigrate(&storemodel.Task{}, &storemodel.PerformanceMetric{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	app.datastore = ds
	app.taskRepo = mysqlstore.NewTaskRepository(ds)
	app.metricRepo = mysqlstore.NewMetricRepository(ds)
	app.registerCleanup(func() {
		ds.Close()
		logger.InfoCtx(app.ctx, "MySQL connection has been closed")
	})

	return nil
}

// initRedis initializes Redis
func (app *Application) initRedis() error {
	client, err := redisstore.NewRedisClient(app.config.Redis)
	if err != nil {
		return err
	}

	app.redisClient = client
	app.registerCleanup(func() {
		client.Close()
		logger.InfoCtx(app.ctx, "Redis connection has been closed")
	})

	return nil
}

// initQueue initializes the pipeline queue
func (app *Application) initQueue() error {
	mgr, err := queue.NewManager(app.config)
	if err != nil {
		return err
	}

	app.queueMgr = mgr
	app.registerCleanup(func() {
		mgr.Close()
		logger.InfoCtx(app.ctx, "Queue client has been closed")
	})

	return nil
}

// initProviders builds the adapter chain, availability cache, performance
// tracker and the fallback orchestrator.
func (app *Application) initProviders() error {
	adapters, err := factory.Build(&app.config.Providers)
	if err != nil {
		return err
	}

	app.tracker = scoring.NewTracker()
	if records, err := app.metricRepo.LoadAll(app.ctx); err != nil {
		logger.WarnCtx(app.ctx, "failed to load persisted metrics, starting cold: %v", err)
	} else {
		app.tracker.Load(records)
	}

	ttl := time.Duration(app.config.Providers.AvailabilityTTL) * time.Second
	app.availabilityCache = fallback.NewAvailabilityCache(ttl).
		WithRedis(app.redisClient.GetClient())

	app.orchestrator = fallback.NewOrchestrator(adapters, app.availabilityCache, app.tracker, app.config.Scoring)
	return nil
}

// initPipeline wires the executor onto the queue
func (app *Application) initPipeline() error {
	app.registry = pipeline.NewRegistry()
	app.executor = pipeline.NewExecutor(app.taskRepo, app.orchestrator, app.registry, app.config.Pipeline)
	app.queueMgr.RegisterHandler(queue.TypePipelineExecute, app.executor)
	return nil
}

// initServices initializes service layer
func (app *Application) initServices() error {
	app.taskService = service.NewTaskService(app.taskRepo, app.queueMgr, app.registry)
	app.providerService = service.NewProviderService(app.orchestrator, app.tracker)
	return nil
}

// initJobs registers background jobs
func (app *Application) initJobs() error {
	manager := jobs.NewManager(app.ctx)

	flushInterval := time.Duration(app.config.Pipeline.MetricsFlushSec) * time.Second
	manager.Register(jobs.NewMetricsFlushJob(app.tracker, app.metricRepo, flushInterval))

	staleAfter := 2 * time.Duration(app.config.Queue.TaskTimeout) * time.Second
	manager.Register(jobs.NewPipelineRecoveryJob(app.taskRepo, app.queueMgr, staleAfter))

	manager.Register(jobs.NewTaskCleanupJob(app.taskRepo))

	app.jobsManager = manager
	return nil
}

// initHandlers initializes handler layer
func (app *Application) initHandlers() error {
	app.taskHandler = handler.NewTaskHandler(app.taskService)
	app.providerHandler = handler.NewProviderHandler(app.providerService)
	app.streamHandler = handler.NewStreamHandler(app.taskService)
	return nil
}

// initHTTPServer initializes the HTTP server
func (app *Application) initHTTPServer() error {
	if app.config.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	app.ginEngine = gin.New()
	r := router.NewRouter(app.taskHandler, app.providerHandler, app.streamHandler, app.config.Server.APIKey)
	r.Setup(app.ginEngine)

	app.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: app.ginEngine,
	}
	return nil
}
