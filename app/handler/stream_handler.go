package handler

import (
	"errors"
	"net/http"
	"time"

	"contentforge/internal/model"
	"contentforge/internal/service"
	"contentforge/pkg/logger"
	"contentforge/pkg/store/mysql"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const streamPollInterval = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamHandler pushes task status changes over a websocket so reviewers see
// pipeline progress without polling the REST API.
type StreamHandler struct {
	taskService *service.TaskService
}

// NewStreamHandler creates stream handler
func NewStreamHandler(taskService *service.TaskService) *StreamHandler {
	return &StreamHandler{taskService: taskService}
}

// Stream upgrades to a websocket and emits the task record on every status
// change. The connection closes once the task reaches a terminal status.
func (h *StreamHandler) Stream(c *gin.Context) {
	taskID := c.Param("task_id")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task_id required"})
		return
	}

	if _, err := h.taskService.Get(c.Request.Context(), taskID); err != nil {
		if errors.Is(err, mysql.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "websocket upgrade failed, task_id: %s, error: %v", taskID, err)
		return
	}
	defer conn.Close()

	// Drain client frames so close messages are noticed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request.Context()
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	var lastStatus model.TaskStatus
	for {
		resp, err := h.taskService.Get(ctx, taskID)
		if err != nil {
			logger.WarnCtx(ctx, "stream lookup failed, task_id: %s, error: %v", taskID, err)
			return
		}

		if resp.Status != lastStatus {
			lastStatus = resp.Status
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}

		if resp.Status.IsTerminal() {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(resp.Status)))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-clientGone:
			return
		case <-ticker.C:
		}
	}
}
