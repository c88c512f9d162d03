package provider

import (
	"context"
	"errors"
	"testing"

	"contentforge/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyDeadlineIsTimeout(t *testing.T) {
	err := Classify(model.ProviderOpenAI, "request failed", context.DeadlineExceeded)
	assert.Equal(t, KindTimeout, err.Kind)
	assert.True(t, err.Retryable())
}

func TestClassifyPreservesTypedError(t *testing.T) {
	original := NewRejected(model.ProviderAnthropic, "prompt blocked", nil)
	err := Classify(model.ProviderAnthropic, "request failed", original)
	assert.Same(t, original, err)
}

func TestClassifyGenericErrorIsUnavailable(t *testing.T) {
	err := Classify(model.ProviderLocal, "request failed", errors.New("connection refused"))
	assert.Equal(t, KindUnavailable, err.Kind)
	assert.True(t, err.Retryable())
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status    int
		kind      ErrorKind
		retryable bool
	}{
		{408, KindTimeout, true},
		{504, KindTimeout, true},
		{429, KindUnavailable, true},
		{500, KindUnavailable, true},
		{503, KindUnavailable, true},
		{400, KindRejected, false},
		{401, KindRejected, false},
		{403, KindRejected, false},
		{404, KindRejected, false},
	}
	for _, tc := range cases {
		err := ClassifyStatus(model.ProviderOpenAI, tc.status, "body")
		assert.Equal(t, tc.kind, err.Kind, "status %d", tc.status)
		assert.Equal(t, tc.retryable, err.Retryable(), "status %d", tc.status)
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("dial tcp: connection refused")
	err := NewUnavailable(model.ProviderLocal, "request failed", inner)
	assert.ErrorIs(t, err, inner)

	var perr *Error
	require.ErrorAs(t, error(err), &perr)
	assert.Equal(t, model.ProviderLocal, perr.Provider)
}

func TestDefaultModel(t *testing.T) {
	catalog := []model.ModelDescriptor{
		{Name: "gpt-4o-mini"},
		{Name: "gpt-4o"},
	}

	desc, ok := DefaultModel(catalog, "")
	require.True(t, ok)
	assert.Equal(t, "gpt-4o-mini", desc.Name, "empty name picks the first catalog entry")

	desc, ok = DefaultModel(catalog, "gpt-4o")
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", desc.Name)

	_, ok = DefaultModel(catalog, "no-such-model")
	assert.False(t, ok)

	_, ok = DefaultModel(nil, "")
	assert.False(t, ok)
}

func TestEstimateCost(t *testing.T) {
	desc := model.ModelDescriptor{CostPer1KTokens: 0.0005}
	assert.InDelta(t, 0.001, EstimateCost(desc, 2000), 1e-9)
	assert.Equal(t, 0.0, EstimateCost(desc, 0))
}
