package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	valid := []struct {
		from, to TaskStatus
	}{
		{TaskStatusPending, TaskStatusGenerating},
		{TaskStatusGenerating, TaskStatusQAReview},
		{TaskStatusQAReview, TaskStatusGenerating}, // QA rejection loop
		{TaskStatusQAReview, TaskStatusAwaitingApproval},
		{TaskStatusAwaitingApproval, TaskStatusPublished},
		{TaskStatusAwaitingApproval, TaskStatusRejected},
		{TaskStatusPending, TaskStatusFailed},
		{TaskStatusGenerating, TaskStatusFailed},
		{TaskStatusQAReview, TaskStatusFailed},
		{TaskStatusAwaitingApproval, TaskStatusFailed},
	}
	for _, tc := range valid {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be valid", tc.from, tc.to)
	}

	invalid := []struct {
		from, to TaskStatus
	}{
		{TaskStatusPending, TaskStatusQAReview},
		{TaskStatusPending, TaskStatusPublished},
		{TaskStatusGenerating, TaskStatusAwaitingApproval},
		{TaskStatusGenerating, TaskStatusPending},
		{TaskStatusAwaitingApproval, TaskStatusGenerating},
		{TaskStatusPublished, TaskStatusRejected},
		{TaskStatusPublished, TaskStatusFailed},
		{TaskStatusRejected, TaskStatusPending},
		{TaskStatusFailed, TaskStatusGenerating},
		{TaskStatusPending, TaskStatusPending},
	}
	for _, tc := range invalid {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be invalid", tc.from, tc.to)
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	all := []TaskStatus{
		TaskStatusPending, TaskStatusGenerating, TaskStatusQAReview,
		TaskStatusAwaitingApproval, TaskStatusPublished, TaskStatusRejected, TaskStatusFailed,
	}
	for _, from := range all {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range all {
			assert.False(t, CanTransition(from, to), "terminal %s must not reach %s", from, to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, TaskStatusPublished.IsTerminal())
	assert.True(t, TaskStatusRejected.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
	assert.False(t, TaskStatusPending.IsTerminal())
	assert.False(t, TaskStatusGenerating.IsTerminal())
	assert.False(t, TaskStatusQAReview.IsTerminal())
	assert.False(t, TaskStatusAwaitingApproval.IsTerminal())
}

func TestCancellable(t *testing.T) {
	assert.True(t, TaskStatusPending.Cancellable())
	assert.True(t, TaskStatusGenerating.Cancellable())
	assert.True(t, TaskStatusQAReview.Cancellable())

	// Approval gate and terminal states are beyond cancellation
	assert.False(t, TaskStatusAwaitingApproval.Cancellable())
	assert.False(t, TaskStatusPublished.Cancellable())
	assert.False(t, TaskStatusRejected.Cancellable())
	assert.False(t, TaskStatusFailed.Cancellable())
}
