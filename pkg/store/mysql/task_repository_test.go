package mysql

import (
	"context"
	"testing"

	"contentforge/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestUpdateStatusRefusesIllegalEdge(t *testing.T) {
	// Illegal edges are refused before any query runs, so no datastore is
	// needed here.
	repo := NewTaskRepository(nil)

	cases := []struct {
		from, to model.TaskStatus
	}{
		{model.TaskStatusPending, model.TaskStatusPublished},
		{model.TaskStatusGenerating, model.TaskStatusAwaitingApproval},
		{model.TaskStatusPublished, model.TaskStatusFailed},
		{model.TaskStatusFailed, model.TaskStatusPending},
		{model.TaskStatusPending, model.TaskStatusPending},
	}
	for _, tc := range cases {
		err := repo.UpdateStatus(context.Background(), "task-1", tc.from, tc.to)
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", tc.from, tc.to)
	}
}

func TestAppendValue(t *testing.T) {
	first := appendValue(nil, "a")
	assert.Equal(t, []interface{}{"a"}, first)

	second := appendValue(first, "b")
	assert.Equal(t, []interface{}{"a", "b"}, second)

	// A pre-list scalar value is promoted instead of dropped.
	promoted := appendValue("legacy", "new")
	assert.Equal(t, []interface{}{"legacy", "new"}, promoted)
}
