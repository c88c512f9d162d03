package mysql

import (
	"contentforge/internal/model"
	storemodel "contentforge/pkg/store/mysql/model"
)

// toDomainTask converts a store task to the domain model.
func toDomainTask(t *storemodel.Task) *model.Task {
	if t == nil {
		return nil
	}
	return &model.Task{
		ID:          t.TaskID,
		TaskType:    t.TaskType,
		Input:       t.Input,
		Status:      model.TaskStatus(t.Status),
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}

// fromDomainTask converts a domain task to the store model.
func fromDomainTask(t *model.Task) *storemodel.Task {
	if t == nil {
		return nil
	}
	return &storemodel.Task{
		TaskID:      t.ID,
		TaskType:    t.TaskType,
		Input:       storemodel.JSONMap(t.Input),
		Status:      string(t.Status),
		Metadata:    storemodel.JSONMap(t.Metadata),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}
