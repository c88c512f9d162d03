package handler

import (
	"errors"
	"net/http"
	"strconv"

	"contentforge/internal/model"
	"contentforge/internal/service"
	"contentforge/pkg/logger"
	"contentforge/pkg/store/mysql"

	"github.com/gin-gonic/gin"
)

// TaskHandler handles task operations
type TaskHandler struct {
	taskService *service.TaskService
}

// NewTaskHandler creates task handler
func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// Submit creates a task
// @Summary Submit content generation task
// @Description Create a task and enqueue its pipeline run
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body model.SubmitRequest true "Task request"
// @Success 202 {object} model.SubmitResponse
// @Router /v1/tasks [post]
func (h *TaskHandler) Submit(c *gin.Context) {
	var req model.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.ErrorCtx(c.Request.Context(), "invalid request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	resp, err := h.taskService.Submit(c.Request.Context(), &req)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to submit task: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// Status gets task status
// @Summary Get task
// @Description Get full task record by ID
// @Tags tasks
// @Produce json
// @Param task_id path string true "Task ID"
// @Success 200 {object} model.TaskResponse
// @Router /v1/tasks/{task_id} [get]
func (h *TaskHandler) Status(c *gin.Context) {
	taskID := c.Param("task_id")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task_id required"})
		return
	}

	resp, err := h.taskService.Get(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, mysql.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		logger.ErrorCtx(c.Request.Context(), "failed to get task, task_id: %s, error: %v", taskID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// List lists tasks
// @Summary List tasks
// @Description List task summaries with optional status/task_type filters
// @Tags tasks
// @Produce json
// @Param status query string false "Filter by status"
// @Param task_type query string false "Filter by task type"
// @Param limit query int false "Page size (default 50)"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]interface{}
// @Router /v1/tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	tasks, total, err := h.taskService.List(c.Request.Context(), c.Query("status"), c.Query("task_type"), limit, offset)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to list tasks: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks":  tasks,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Cancel cancels task
// @Summary Cancel task
// @Description Cancel a task that has not reached the approval gate
// @Tags tasks
// @Param task_id path string true "Task ID"
// @Success 200 {object} map[string]string
// @Router /v1/tasks/{task_id}/cancel [post]
func (h *TaskHandler) Cancel(c *gin.Context) {
	taskID := c.Param("task_id")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task_id required"})
		return
	}

	if err := h.taskService.Cancel(c.Request.Context(), taskID); err != nil {
		switch {
		case errors.Is(err, mysql.ErrTaskNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		case errors.Is(err, service.ErrNotCancellable), errors.Is(err, mysql.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			logger.ErrorCtx(c.Request.Context(), "failed to cancel task, task_id: %s, error: %v", taskID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "task cancelled"})
}

// Approval applies the human verdict
// @Summary Approve or reject a task
// @Description Apply the human verdict to a task awaiting approval
// @Tags tasks
// @Accept json
// @Produce json
// @Param task_id path string true "Task ID"
// @Param request body model.ApprovalRequest true "Verdict"
// @Success 200 {object} model.TaskResponse
// @Router /v1/tasks/{task_id}/approval [post]
func (h *TaskHandler) Approval(c *gin.Context) {
	taskID := c.Param("task_id")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task_id required"})
		return
	}

	var req model.ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.ErrorCtx(c.Request.Context(), "invalid approval request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "verdict must be approve or reject"})
		return
	}

	resp, err := h.taskService.Finalize(c.Request.Context(), taskID, &req)
	if err != nil {
		switch {
		case errors.Is(err, mysql.ErrTaskNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		case errors.Is(err, mysql.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, mysql.ErrPersistenceFailure):
			logger.ErrorCtx(c.Request.Context(), "approval not durably recorded, task_id: %s, error: %v", taskID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "approval could not be verified, retry"})
		default:
			logger.ErrorCtx(c.Request.Context(), "failed to finalize task, task_id: %s, error: %v", taskID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}
