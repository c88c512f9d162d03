package router

import (
	"contentforge/app/handler"
	"contentforge/app/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router Router
type Router struct {
	taskHandler     *handler.TaskHandler
	providerHandler *handler.ProviderHandler
	streamHandler   *handler.StreamHandler
	apiKey          string
}

// NewRouter creates a new Router
func NewRouter(taskHandler *handler.TaskHandler, providerHandler *handler.ProviderHandler, streamHandler *handler.StreamHandler, apiKey string) *Router {
	return &Router{
		taskHandler:     taskHandler,
		providerHandler: providerHandler,
		streamHandler:   streamHandler,
		apiKey:          apiKey,
	}
}

// Setup sets up routes
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestLogger())

	// V1 API - task lifecycle and provider health
	v1 := engine.Group("/v1")
	{
		v1.POST("/tasks", r.taskHandler.Submit)
		v1.GET("/tasks", r.taskHandler.List)
		v1.GET("/tasks/:task_id", r.taskHandler.Status)

		v1.GET("/providers/status", r.providerHandler.Status)

		// Mutating lifecycle routes require the operator token
		guarded := v1.Group("")
		guarded.Use(middleware.AuthMiddleware(r.apiKey))
		{
			guarded.POST("/tasks/:task_id/cancel", r.taskHandler.Cancel)
			guarded.POST("/tasks/:task_id/approval", r.taskHandler.Approval)
		}
	}

	// Websocket status stream
	engine.GET("/ws/tasks/:task_id", r.streamHandler.Stream)

	// Operational endpoints
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
