package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"contentforge/internal/model"
	"contentforge/pkg/logger"
)

const judgePromptTemplate = `You are a strict content reviewer. Review the following %s content and respond with ONLY a JSON object, no prose:
{"pass": true|false, "score": <0.0-1.0>, "feedback": "<specific revision instructions if not passing>"}

Content to review:
---
%s
---`

// Verdict is the outcome of one QA review iteration.
type Verdict struct {
	Pass     bool    `json:"pass"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// Reviewer judges generated content by asking a model to grade it. The judge
// call goes through the same fallback chain as generation.
type Reviewer struct {
	generator Generator
	threshold float64
}

// NewReviewer creates a reviewer with the configured pass threshold.
func NewReviewer(generator Generator, threshold float64) *Reviewer {
	return &Reviewer{generator: generator, threshold: threshold}
}

// Review grades one piece of content. A verdict that cannot be parsed counts
// as a rejection so unreviewed content never slips past the gate.
func (r *Reviewer) Review(ctx context.Context, taskType, content string) (*Verdict, error) {
	resp, err := r.generator.Generate(ctx, &model.GenerationRequest{
		Prompt:      fmt.Sprintf(judgePromptTemplate, taskType, content),
		TaskType:    taskType + ":qa",
		Temperature: 0.1,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, err
	}

	verdict, ok := parseVerdict(resp.Text)
	if !ok {
		logger.WarnCtx(ctx, "unparseable qa verdict, treating as rejection: %.120s", resp.Text)
		return &Verdict{
			Pass:     false,
			Score:    0,
			Feedback: "reviewer returned an unparseable verdict; regenerate with clearer structure",
		}, nil
	}

	if verdict.Score < r.threshold {
		verdict.Pass = false
	}
	return verdict, nil
}

// parseVerdict extracts the first JSON object from the judge's reply. Models
// sometimes wrap the JSON in code fences or prose.
func parseVerdict(text string) (*Verdict, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &verdict); err != nil {
		return nil, false
	}
	return &verdict, true
}
