package gemini

import (
	"context"
	"sync"
	"testing"
	"time"

	"contentforge/internal/model"
	"contentforge/pkg/config"
	"contentforge/pkg/provider"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyEnv = "GEMINI_API_KEY_TEST"

func TestClientSharedAcrossConcurrentCalls(t *testing.T) {
	t.Setenv(testKeyEnv, "test-key")
	p := New(config.HTTPProviderConfig{APIKeyEnv: testKeyEnv}, time.Second, time.Second)
	defer p.Close()

	const workers = 8
	clients := make([]*genai.Client, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clients[i], errs[i] = p.ensureClient(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, clients[0], clients[i], "every caller must see the same client")
	}
}

func TestGenerateWithoutKeyIsUnavailable(t *testing.T) {
	p := New(config.HTTPProviderConfig{APIKeyEnv: "UNSET_KEY_ENV_VAR"}, time.Second, time.Second)

	_, err := p.Generate(context.Background(), &model.GenerationRequest{Prompt: "hi"})
	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.KindUnavailable, perr.Kind)
}

func TestIsAvailableWithoutKeySkipsNetwork(t *testing.T) {
	p := New(config.HTTPProviderConfig{APIKeyEnv: "UNSET_KEY_ENV_VAR"}, time.Second, time.Second)
	assert.False(t, p.IsAvailable(context.Background()))
}

func TestGenerateUnknownModelRejected(t *testing.T) {
	t.Setenv(testKeyEnv, "test-key")
	p := New(config.HTTPProviderConfig{APIKeyEnv: testKeyEnv}, time.Second, time.Second)
	defer p.Close()

	_, err := p.Generate(context.Background(), &model.GenerationRequest{Prompt: "hi", Model: "no-such-model"})
	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.KindRejected, perr.Kind)
}
