// Package pipeline runs the content generation pipeline for one task:
// generate, QA review loop, enrichment, then hand-off to human approval.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"contentforge/internal/model"
	"contentforge/pkg/config"
	"contentforge/pkg/logger"
	"contentforge/pkg/metrics"
	queue "contentforge/pkg/queue/asynq"
	"contentforge/pkg/store/mysql"

	"github.com/hibiken/asynq"
)

// Generator routes one generation call. Satisfied by fallback.Orchestrator.
type Generator interface {
	Generate(ctx context.Context, req *model.GenerationRequest) (*model.ModelResponse, error)
}

// TaskStore is the persistence surface the pipeline needs.
type TaskStore interface {
	Get(ctx context.Context, taskID string) (*model.Task, error)
	UpdateStatus(ctx context.Context, taskID string, from, to model.TaskStatus) error
	MergeMetadata(ctx context.Context, taskID string, patch map[string]interface{}) error
}

// Executor processes pipeline:execute queue messages.
type Executor struct {
	taskRepo   TaskStore
	generator  Generator
	reviewer   *Reviewer
	registry   *Registry
	cfg        config.PipelineConfig
	httpClient *http.Client
}

// NewExecutor creates the pipeline executor.
func NewExecutor(taskRepo TaskStore, generator Generator, registry *Registry, cfg config.PipelineConfig) *Executor {
	return &Executor{
		taskRepo:   taskRepo,
		generator:  generator,
		reviewer:   NewReviewer(generator, cfg.QAThreshold),
		registry:   registry,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// ProcessTask implements asynq.Handler. Domain failures settle the task
// record and return nil; only infrastructure errors propagate so asynq
// retries them.
func (e *Executor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.PipelinePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logger.ErrorCtx(ctx, "malformed pipeline payload, dropping: %v", err)
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.registry.Register(payload.TaskID, cancel)
	defer e.registry.Unregister(payload.TaskID)

	return e.Execute(runCtx, payload.TaskID)
}

// Execute runs the full pipeline for one task.
func (e *Executor) Execute(ctx context.Context, taskID string) error {
	start := time.Now()

	task, err := e.taskRepo.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, mysql.ErrTaskNotFound) {
			logger.WarnCtx(ctx, "pipeline message for unknown task, dropping, task_id: %s", taskID)
			return nil
		}
		return err
	}
	if task.Status != model.TaskStatusPending {
		// Duplicate delivery or the task was cancelled before pickup.
		logger.InfoCtx(ctx, "skipping pipeline, task_id: %s, status: %s", taskID, task.Status)
		return nil
	}

	if ok, err := e.transition(ctx, taskID, model.TaskStatusPending, model.TaskStatusGenerating); !ok {
		return err
	}

	content, ok, err := e.generateLoop(ctx, task)
	if !ok {
		if err == nil {
			metrics.TaskPipelineDurationSeconds.WithLabelValues(task.TaskType, "failed").
				Observe(time.Since(start).Seconds())
		}
		return err
	}

	e.enrich(ctx, task, content)

	if ok, err := e.transition(ctx, taskID, model.TaskStatusQAReview, model.TaskStatusAwaitingApproval); !ok {
		return err
	}

	metrics.TaskPipelineDurationSeconds.WithLabelValues(task.TaskType, "awaiting_approval").
		Observe(time.Since(start).Seconds())
	logger.InfoCtx(ctx, "pipeline complete, awaiting approval, task_id: %s, duration: %v", taskID, time.Since(start))
	return nil
}

// generateLoop runs the bounded generate/review cycle. It returns the final
// content and ok=true with the task sitting in QA_REVIEW. A QA loop that
// exhausts its budget still proceeds to approval, flagged qa_passed=false;
// only generation failure or cancellation stops the pipeline.
func (e *Executor) generateLoop(ctx context.Context, task *model.Task) (string, bool, error) {
	prompt := buildPrompt(task)
	genReq := requestFromInput(task)
	feedback := ""

	for iteration := 1; ; iteration++ {
		genReq.Prompt = prompt
		if feedback != "" {
			genReq.Prompt = prompt + "\n\nReviewer feedback to address:\n" + feedback
		}

		resp, err := e.generator.Generate(ctx, genReq)
		if err != nil {
			if ctx.Err() != nil {
				return "", false, nil // cancelled, record already settled
			}
			return "", false, e.fail(ctx, task, model.TaskStatusGenerating, fmt.Sprintf("generation failed: %v", err))
		}

		if err := e.taskRepo.MergeMetadata(ctx, task.ID, map[string]interface{}{
			model.MetaContent:    resp.Text,
			model.MetaProvider:   string(resp.Provider),
			model.MetaModel:      resp.ModelName,
			model.MetaTokensUsed: resp.TokensUsed,
			model.MetaCostUSD:    resp.CostUSD,
			model.MetaAuditTrail: pipelineAudit("generated", fmt.Sprintf("%s/%s iteration %d", resp.Provider, resp.ModelName, iteration)),
		}); err != nil {
			return "", false, err
		}

		if ok, err := e.transition(ctx, task.ID, model.TaskStatusGenerating, model.TaskStatusQAReview); !ok {
			return "", false, err
		}

		verdict, err := e.reviewer.Review(ctx, task.TaskType, resp.Text)
		if err != nil {
			if ctx.Err() != nil {
				return "", false, nil
			}
			return "", false, e.fail(ctx, task, model.TaskStatusQAReview, fmt.Sprintf("qa review failed: %v", err))
		}
		metrics.QAIterationsTotal.WithLabelValues(task.TaskType, verdictLabel(verdict.Pass)).Inc()

		patch := map[string]interface{}{
			model.MetaQualityScore: verdict.Score,
			model.MetaQAFeedback: map[string]interface{}{
				"iteration": iteration,
				"pass":      verdict.Pass,
				"score":     verdict.Score,
				"feedback":  verdict.Feedback,
			},
		}

		if verdict.Pass {
			patch[model.MetaQAPassed] = true
			if err := e.taskRepo.MergeMetadata(ctx, task.ID, patch); err != nil {
				return "", false, err
			}
			return resp.Text, true, nil
		}

		if iteration >= e.cfg.MaxQAIterations {
			// Budget spent: let the human reviewer see the flagged content
			// instead of discarding the work.
			patch[model.MetaQAPassed] = false
			patch[model.MetaAuditTrail] = pipelineAudit("qa_exhausted", fmt.Sprintf("%d iterations", iteration))
			if err := e.taskRepo.MergeMetadata(ctx, task.ID, patch); err != nil {
				return "", false, err
			}
			return resp.Text, true, nil
		}

		if err := e.taskRepo.MergeMetadata(ctx, task.ID, patch); err != nil {
			return "", false, err
		}
		if ok, err := e.transition(ctx, task.ID, model.TaskStatusQAReview, model.TaskStatusGenerating); !ok {
			return "", false, err
		}
		feedback = verdict.Feedback
	}
}

// enrich attaches the cover image and SEO fields. Enrichment never fails the
// pipeline; image degradation is recorded in the audit trail.
func (e *Executor) enrich(ctx context.Context, task *model.Task, content string) {
	imageRef, degraded := e.coverImage(ctx, task, content)

	patch := map[string]interface{}{
		model.MetaImageRef: imageRef,
		model.MetaSEO:      seoFields(content),
	}
	if degraded {
		patch[model.MetaAuditTrail] = pipelineAudit("image_degraded", "placeholder image used")
	}
	if err := e.taskRepo.MergeMetadata(ctx, task.ID, patch); err != nil {
		logger.ErrorCtx(ctx, "failed to record enrichment, task_id: %s, error: %v", task.ID, err)
	}
}

// transition performs one CAS edge move. ok=false with nil error means the
// task moved concurrently (cancel race) and the pipeline should stop quietly.
func (e *Executor) transition(ctx context.Context, taskID string, from, to model.TaskStatus) (bool, error) {
	err := e.taskRepo.UpdateStatus(ctx, taskID, from, to)
	if err == nil {
		metrics.TaskTransitionTotal.WithLabelValues(string(from), string(to)).Inc()
		return true, nil
	}
	if errors.Is(err, mysql.ErrInvalidTransition) || errors.Is(err, mysql.ErrTaskNotFound) {
		logger.InfoCtx(ctx, "pipeline stopped, task moved concurrently, task_id: %s, wanted %s -> %s", taskID, from, to)
		return false, nil
	}
	return false, err
}

// fail settles the task as FAILED with a reason. Losing the CAS race to a
// concurrent cancel is fine, the record is already terminal.
func (e *Executor) fail(ctx context.Context, task *model.Task, from model.TaskStatus, reason string) error {
	if err := e.taskRepo.UpdateStatus(ctx, task.ID, from, model.TaskStatusFailed); err != nil {
		if errors.Is(err, mysql.ErrInvalidTransition) || errors.Is(err, mysql.ErrTaskNotFound) {
			return nil
		}
		return err
	}
	metrics.TaskTransitionTotal.WithLabelValues(string(from), string(model.TaskStatusFailed)).Inc()

	if err := e.taskRepo.MergeMetadata(ctx, task.ID, map[string]interface{}{
		model.MetaFailureReason: reason,
		model.MetaAuditTrail:    pipelineAudit("failed", reason),
	}); err != nil {
		logger.ErrorCtx(ctx, "failed to record failure reason, task_id: %s, error: %v", task.ID, err)
	}
	logger.WarnCtx(ctx, "pipeline failed, task_id: %s, reason: %s", task.ID, reason)
	return nil
}

// buildPrompt assembles the generation prompt from the task input. An
// explicit prompt wins; otherwise one is composed from the structured fields.
func buildPrompt(task *model.Task) string {
	if prompt, ok := task.Input["prompt"].(string); ok && prompt != "" {
		return prompt
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s", task.TaskType)
	if topic, ok := task.Input["topic"].(string); ok && topic != "" {
		fmt.Fprintf(&b, " about %s", topic)
	}
	b.WriteString(".")
	if audience, ok := task.Input["audience"].(string); ok && audience != "" {
		fmt.Fprintf(&b, " Target audience: %s.", audience)
	}
	if style, ok := task.Input["style"].(string); ok && style != "" {
		fmt.Fprintf(&b, " Style: %s.", style)
	}
	return b.String()
}

func requestFromInput(task *model.Task) *model.GenerationRequest {
	req := &model.GenerationRequest{TaskType: task.TaskType}
	if preferred, ok := task.Input["preferred_provider"].(string); ok {
		req.PreferredProvider = model.ProviderType(preferred)
	}
	if name, ok := task.Input["model"].(string); ok {
		req.Model = name
	}
	if maxTokens, ok := task.Input["max_tokens"].(float64); ok {
		req.MaxTokens = int(maxTokens)
	}
	if temperature, ok := task.Input["temperature"].(float64); ok {
		req.Temperature = temperature
	}
	return req
}

func pipelineAudit(event, detail string) map[string]interface{} {
	return map[string]interface{}{
		"at":     time.Now().Format(time.RFC3339),
		"event":  event,
		"detail": detail,
	}
}

func verdictLabel(pass bool) string {
	if pass {
		return "pass"
	}
	return "fail"
}
