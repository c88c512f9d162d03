package model

import (
	"time"
)

// TaskStatus task status
type TaskStatus string

const (
	TaskStatusPending          TaskStatus = "PENDING"           // Created, not yet picked up
	TaskStatusGenerating       TaskStatus = "GENERATING"        // Content generation in progress
	TaskStatusQAReview         TaskStatus = "QA_REVIEW"         // Generated content under QA review
	TaskStatusAwaitingApproval TaskStatus = "AWAITING_APPROVAL" // Waiting for human verdict
	TaskStatusPublished        TaskStatus = "PUBLISHED"         // Approved and published
	TaskStatusRejected         TaskStatus = "REJECTED"          // Rejected by human reviewer
	TaskStatusFailed           TaskStatus = "FAILED"            // Unrecoverable failure
)

// transitions is the closed edge set of the task state machine.
// Any non-terminal status may move to FAILED.
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:          {TaskStatusGenerating, TaskStatusFailed},
	TaskStatusGenerating:       {TaskStatusQAReview, TaskStatusFailed},
	TaskStatusQAReview:         {TaskStatusGenerating, TaskStatusAwaitingApproval, TaskStatusFailed},
	TaskStatusAwaitingApproval: {TaskStatusPublished, TaskStatusRejected, TaskStatusFailed},
}

// CanTransition reports whether from -> to is a valid edge.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusPublished || s == TaskStatusRejected || s == TaskStatusFailed
}

// Cancellable reports whether an operator may still cancel a task in this status.
// Once a task reaches the approval gate only a human verdict moves it.
func (s TaskStatus) Cancellable() bool {
	return s == TaskStatusPending || s == TaskStatusGenerating || s == TaskStatusQAReview
}

// Metadata keys accumulated by the pipeline. Metadata only grows; once a task
// is terminal only MetaAuditTrail may still be appended.
const (
	MetaContent       = "content"
	MetaQAFeedback    = "qa_feedback"
	MetaQAPassed      = "qa_passed"
	MetaQualityScore  = "quality_score"
	MetaProvider      = "provider"
	MetaModel         = "model"
	MetaTokensUsed    = "tokens_used"
	MetaCostUSD       = "cost_usd"
	MetaImageRef      = "image_ref"
	MetaSEO           = "seo"
	MetaFailureReason = "failure_reason"
	MetaApprovalNotes = "approval_notes"
	MetaAuditTrail    = "audit_trail"
)

// Task domain model for a content-generation task
type Task struct {
	ID          string                 `json:"id"`
	TaskType    string                 `json:"task_type"`
	Input       map[string]interface{} `json:"input"`
	Status      TaskStatus             `json:"status"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

// SubmitRequest create task request
type SubmitRequest struct {
	TaskType string                 `json:"task_type" binding:"required"`
	Input    map[string]interface{} `json:"input" binding:"required"`
}

// SubmitResponse create task response
type SubmitResponse struct {
	ID     string     `json:"id"`
	Status TaskStatus `json:"status"`
}

// ApprovalRequest human approval callback payload
type ApprovalRequest struct {
	Verdict string `json:"verdict" binding:"required,oneof=approve reject"`
	Notes   string `json:"notes,omitempty"`
}

// TaskResponse full task view returned by the API
type TaskResponse struct {
	ID          string                 `json:"id"`
	TaskType    string                 `json:"task_type"`
	Status      TaskStatus             `json:"status"`
	Input       map[string]interface{} `json:"input,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	DelayTime   int64                  `json:"delayTime"`     // Queue delay in milliseconds
	ExecutionMS int64                  `json:"executionTime"` // Execution time in milliseconds
	CreatedAt   string                 `json:"created_at"`
	StartedAt   string                 `json:"started_at,omitempty"`
	CompletedAt string                 `json:"completed_at,omitempty"`
}

// TaskSummary compact task view for list responses (no content payloads)
type TaskSummary struct {
	ID          string     `json:"id"`
	TaskType    string     `json:"task_type"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
