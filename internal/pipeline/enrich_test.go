package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"contentforge/internal/model"
	"contentforge/pkg/config"

	"github.com/stretchr/testify/assert"
)

func TestSeoFields(t *testing.T) {
	content := "# Going Faster with Go\n\nGoroutines make concurrency cheap. " +
		"This post walks through worker pools, channels and context cancellation in production services."

	seo := seoFields(content)
	assert.Equal(t, "Going Faster with Go", seo["title"])
	assert.Equal(t, "going-faster-with-go", seo["slug"])

	desc, _ := seo["description"].(string)
	assert.NotEmpty(t, desc)
	assert.LessOrEqual(t, len(desc), 160)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Going Faster with Go":     "going-faster-with-go",
		"  What's New in v2.0?  ":  "what-s-new-in-v2-0",
		"---":                      "",
		"Caché & Résumé":           "caché-résumé",
		"multiple   spaces   here": "multiple-spaces-here",
	}
	for in, want := range cases {
		assert.Equal(t, want, slugify(in), "slugify(%q)", in)
	}
}

func TestFirstLineSkipsBlankAndHeadingMarkers(t *testing.T) {
	assert.Equal(t, "Title Here", firstLine("\n\n## Title Here\nbody"))
	assert.Equal(t, "plain text", firstLine("plain text"))
	assert.Equal(t, "", firstLine("\n\n  \n"))
}

func TestCoverImageUsesService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"url": "https://cdn.example.com/cover-42.png"}`))
	}))
	defer server.Close()

	cfg := testPipelineConfig()
	cfg.ImageServiceURL = server.URL
	executor := NewExecutor(newFakeStore(), &scriptedGenerator{}, NewRegistry(), cfg)

	ref, degraded := executor.coverImage(context.Background(), &model.Task{ID: "t", TaskType: "blog_post"}, "# Title\nbody")
	assert.Equal(t, "https://cdn.example.com/cover-42.png", ref)
	assert.False(t, degraded)
}

func TestCoverImageDegradesToPlaceholder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	cases := []config.PipelineConfig{
		testPipelineConfig(), // no image service configured
	}
	withBroken := testPipelineConfig()
	withBroken.ImageServiceURL = server.URL
	cases = append(cases, withBroken)

	for _, cfg := range cases {
		executor := NewExecutor(newFakeStore(), &scriptedGenerator{}, NewRegistry(), cfg)
		ref, degraded := executor.coverImage(context.Background(), &model.Task{ID: "t", TaskType: "blog_post"}, "content")
		assert.Equal(t, cfg.PlaceholderImg, ref)
		assert.True(t, degraded)
	}
}
