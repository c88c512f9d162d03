package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"contentforge/internal/model"
	"contentforge/pkg/config"
	"contentforge/pkg/provider"
	queue "contentforge/pkg/queue/asynq"
	"contentforge/pkg/store/mysql"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore mirrors the MySQL repository's transition and CAS semantics.
type fakeStore struct {
	tasks       map[string]*model.Task
	transitions []string

	// transitionErr injects an error for one specific edge, keyed
	// "FROM->TO". Simulates a concurrent cancel winning the CAS.
	transitionErr map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:         make(map[string]*model.Task),
		transitionErr: make(map[string]error),
	}
}

func (f *fakeStore) Get(ctx context.Context, taskID string) (*model.Task, error) {
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, mysql.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, taskID string, from, to model.TaskStatus) error {
	edge := fmt.Sprintf("%s->%s", from, to)
	if err := f.transitionErr[edge]; err != nil {
		return err
	}
	if !model.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", mysql.ErrInvalidTransition, from, to)
	}
	task, ok := f.tasks[taskID]
	if !ok {
		return mysql.ErrTaskNotFound
	}
	if task.Status != from {
		return fmt.Errorf("%w: task %s is %s, expected %s", mysql.ErrInvalidTransition, taskID, task.Status, from)
	}
	task.Status = to
	f.transitions = append(f.transitions, edge)
	return nil
}

func (f *fakeStore) MergeMetadata(ctx context.Context, taskID string, patch map[string]interface{}) error {
	task, ok := f.tasks[taskID]
	if !ok {
		return mysql.ErrTaskNotFound
	}
	if task.Metadata == nil {
		task.Metadata = make(map[string]interface{})
	}
	for k, v := range patch {
		if k == model.MetaAuditTrail || k == model.MetaQAFeedback {
			prev, _ := task.Metadata[k].([]interface{})
			task.Metadata[k] = append(prev, v)
			continue
		}
		task.Metadata[k] = v
	}
	return nil
}

// scriptedGenerator serves generation calls from a content queue and QA judge
// calls from a verdict queue. QA calls are told apart by the ":qa" task type
// suffix the reviewer uses.
type scriptedGenerator struct {
	content  []string
	verdicts []string
	genErr   error

	genPrompts []string
	qaCalls    int
}

func (g *scriptedGenerator) Generate(ctx context.Context, req *model.GenerationRequest) (*model.ModelResponse, error) {
	if strings.HasSuffix(req.TaskType, ":qa") {
		g.qaCalls++
		if len(g.verdicts) == 0 {
			return nil, fmt.Errorf("scripted generator: no verdict queued for call %d", g.qaCalls)
		}
		text := g.verdicts[0]
		g.verdicts = g.verdicts[1:]
		return &model.ModelResponse{Text: text, Provider: model.ProviderLocal, ModelName: "judge"}, nil
	}

	g.genPrompts = append(g.genPrompts, req.Prompt)
	if g.genErr != nil {
		return nil, g.genErr
	}
	text := g.content[0]
	g.content = g.content[1:]
	return &model.ModelResponse{
		Text:       text,
		Provider:   model.ProviderLocal,
		ModelName:  "llama3.1:8b",
		TokensUsed: 200,
		CostUSD:    0.001,
	}, nil
}

func passVerdict(score float64) string {
	return fmt.Sprintf(`{"pass": true, "score": %.2f, "feedback": ""}`, score)
}

func failVerdict(feedback string) string {
	return fmt.Sprintf(`{"pass": false, "score": 0.4, "feedback": %q}`, feedback)
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		MaxQAIterations: 2,
		QAThreshold:     0.7,
		PlaceholderImg:  "/static/placeholder-cover.png",
	}
}

func newTestExecutor(store *fakeStore, gen *scriptedGenerator) *Executor {
	return NewExecutor(store, gen, NewRegistry(), testPipelineConfig())
}

func seedPending(store *fakeStore) string {
	const taskID = "task-1"
	store.tasks[taskID] = &model.Task{
		ID:       taskID,
		TaskType: "blog_post",
		Input:    map[string]interface{}{"topic": "go concurrency"},
		Status:   model.TaskStatusPending,
	}
	return taskID
}

func TestExecuteHappyPath(t *testing.T) {
	store := newFakeStore()
	gen := &scriptedGenerator{
		content:  []string{"# Go Concurrency\n\nA deep dive."},
		verdicts: []string{passVerdict(0.9)},
	}
	taskID := seedPending(store)

	require.NoError(t, newTestExecutor(store, gen).Execute(context.Background(), taskID))

	task := store.tasks[taskID]
	assert.Equal(t, model.TaskStatusAwaitingApproval, task.Status)
	assert.Equal(t, []string{
		"PENDING->GENERATING",
		"GENERATING->QA_REVIEW",
		"QA_REVIEW->AWAITING_APPROVAL",
	}, store.transitions)

	assert.Equal(t, "# Go Concurrency\n\nA deep dive.", task.Metadata[model.MetaContent])
	assert.Equal(t, true, task.Metadata[model.MetaQAPassed])
	assert.Equal(t, 0.9, task.Metadata[model.MetaQualityScore])
	assert.Equal(t, "/static/placeholder-cover.png", task.Metadata[model.MetaImageRef])
	assert.NotNil(t, task.Metadata[model.MetaSEO])
}

func TestExecuteQARetryThenPass(t *testing.T) {
	store := newFakeStore()
	gen := &scriptedGenerator{
		content:  []string{"first draft", "second draft"},
		verdicts: []string{failVerdict("add concrete examples"), passVerdict(0.85)},
	}
	taskID := seedPending(store)

	require.NoError(t, newTestExecutor(store, gen).Execute(context.Background(), taskID))

	task := store.tasks[taskID]
	assert.Equal(t, model.TaskStatusAwaitingApproval, task.Status)
	assert.Equal(t, true, task.Metadata[model.MetaQAPassed])
	assert.Equal(t, "second draft", task.Metadata[model.MetaContent])

	// The retry prompt carries the reviewer's feedback.
	require.Len(t, gen.genPrompts, 2)
	assert.Contains(t, gen.genPrompts[1], "add concrete examples")

	feedback, ok := task.Metadata[model.MetaQAFeedback].([]interface{})
	require.True(t, ok)
	assert.Len(t, feedback, 2)
}

func TestExecuteQAExhaustionStillReachesApproval(t *testing.T) {
	store := newFakeStore()
	gen := &scriptedGenerator{
		content:  []string{"draft 1", "draft 2"},
		verdicts: []string{failVerdict("too vague"), failVerdict("still too vague")},
	}
	taskID := seedPending(store)

	require.NoError(t, newTestExecutor(store, gen).Execute(context.Background(), taskID))

	task := store.tasks[taskID]
	assert.Equal(t, model.TaskStatusAwaitingApproval, task.Status)
	assert.Equal(t, false, task.Metadata[model.MetaQAPassed])

	feedback, ok := task.Metadata[model.MetaQAFeedback].([]interface{})
	require.True(t, ok)
	assert.Len(t, feedback, 2)

	trail, ok := task.Metadata[model.MetaAuditTrail].([]interface{})
	require.True(t, ok)
	var exhausted bool
	for _, raw := range trail {
		if entry, ok := raw.(map[string]interface{}); ok && entry["event"] == "qa_exhausted" {
			exhausted = true
		}
	}
	assert.True(t, exhausted, "audit trail must record the spent QA budget")
}

func TestExecuteGenerationFailure(t *testing.T) {
	store := newFakeStore()
	gen := &scriptedGenerator{
		genErr: provider.NewUnavailable(model.ProviderLocal, "all providers down", nil),
	}
	taskID := seedPending(store)

	// A settled domain failure returns nil so the queue does not redeliver.
	require.NoError(t, newTestExecutor(store, gen).Execute(context.Background(), taskID))

	task := store.tasks[taskID]
	assert.Equal(t, model.TaskStatusFailed, task.Status)
	reason, _ := task.Metadata[model.MetaFailureReason].(string)
	assert.Contains(t, reason, "generation failed")
}

func TestExecuteSkipsNonPendingTask(t *testing.T) {
	store := newFakeStore()
	taskID := seedPending(store)
	store.tasks[taskID].Status = model.TaskStatusGenerating

	gen := &scriptedGenerator{}
	require.NoError(t, newTestExecutor(store, gen).Execute(context.Background(), taskID))

	assert.Empty(t, store.transitions)
	assert.Empty(t, gen.genPrompts)
}

func TestExecuteUnknownTaskDropsQuietly(t *testing.T) {
	store := newFakeStore()
	gen := &scriptedGenerator{}

	assert.NoError(t, newTestExecutor(store, gen).Execute(context.Background(), "gone"))
}

func TestExecuteStopsWhenCancelWinsRace(t *testing.T) {
	store := newFakeStore()
	gen := &scriptedGenerator{content: []string{"draft"}}
	taskID := seedPending(store)

	// The operator's cancel moved the task to FAILED between the generation
	// write and the QA transition; the CAS refuses the stale edge.
	store.transitionErr["GENERATING->QA_REVIEW"] = fmt.Errorf(
		"%w: task %s is %s, expected %s",
		mysql.ErrInvalidTransition, taskID, model.TaskStatusFailed, model.TaskStatusGenerating)

	require.NoError(t, newTestExecutor(store, gen).Execute(context.Background(), taskID))

	// The pipeline stopped before QA: no judge call, no approval hand-off.
	assert.Equal(t, 0, gen.qaCalls)
	assert.Equal(t, []string{"PENDING->GENERATING"}, store.transitions)
}

func TestProcessTaskMalformedPayload(t *testing.T) {
	store := newFakeStore()
	executor := newTestExecutor(store, &scriptedGenerator{})

	task := asynq.NewTask(queue.TypePipelineExecute, []byte("not-json"))
	assert.NoError(t, executor.ProcessTask(context.Background(), task))
	assert.Empty(t, store.transitions)
}

func TestProcessTaskRegistersCancellableRun(t *testing.T) {
	store := newFakeStore()
	taskID := seedPending(store)
	gen := &scriptedGenerator{
		content:  []string{"draft"},
		verdicts: []string{passVerdict(0.8)},
	}
	executor := newTestExecutor(store, gen)

	payload, err := json.Marshal(queue.PipelinePayload{TaskID: taskID, TaskType: "blog_post"})
	require.NoError(t, err)

	require.NoError(t, executor.ProcessTask(context.Background(), asynq.NewTask(queue.TypePipelineExecute, payload)))
	assert.Equal(t, model.TaskStatusAwaitingApproval, store.tasks[taskID].Status)

	// The run is unregistered once finished.
	assert.False(t, executor.registry.Cancel(taskID))
}
