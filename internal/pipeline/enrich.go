package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"contentforge/internal/model"
	"contentforge/pkg/logger"
)

// coverImage requests a cover image for the content. The image step is not
// allowed to fail the pipeline: any error degrades to the placeholder.
func (e *Executor) coverImage(ctx context.Context, task *model.Task, content string) (ref string, degraded bool) {
	if e.cfg.ImageServiceURL == "" {
		return e.cfg.PlaceholderImg, true
	}

	payload, err := json.Marshal(map[string]string{
		"prompt": fmt.Sprintf("cover image for %s: %s", task.TaskType, firstLine(content)),
	})
	if err != nil {
		return e.cfg.PlaceholderImg, true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.ImageServiceURL, bytes.NewReader(payload))
	if err != nil {
		return e.cfg.PlaceholderImg, true
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		logger.WarnCtx(ctx, "image service unreachable, using placeholder, task_id: %s, error: %v", task.ID, err)
		return e.cfg.PlaceholderImg, true
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.WarnCtx(ctx, "image service returned %d, using placeholder, task_id: %s", resp.StatusCode, task.ID)
		return e.cfg.PlaceholderImg, true
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.URL == "" {
		return e.cfg.PlaceholderImg, true
	}
	return out.URL, false
}

// seoFields derives title, slug and description from the content itself.
func seoFields(content string) map[string]interface{} {
	title := firstLine(content)
	return map[string]interface{}{
		"title":       title,
		"slug":        slugify(title),
		"description": summarize(content, 160),
	}
}

func firstLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if line != "" {
			return line
		}
	}
	return ""
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

func summarize(content string, max int) string {
	flat := strings.Join(strings.Fields(content), " ")
	if len(flat) <= max {
		return flat
	}
	cut := flat[:max]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}
