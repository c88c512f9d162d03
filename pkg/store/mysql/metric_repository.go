package mysql

import (
	"context"
	"fmt"

	"contentforge/internal/model"
	"contentforge/pkg/scoring"
	storemodel "contentforge/pkg/store/mysql/model"

	"gorm.io/gorm/clause"
)

// MetricRepository persists aggregated provider performance so history
// survives restarts.
type MetricRepository struct {
	ds *Datastore
}

// NewMetricRepository creates a new metric repository
func NewMetricRepository(ds *Datastore) *MetricRepository {
	return &MetricRepository{ds: ds}
}

// UpsertAll writes the current aggregates, one upsert per tuple.
func (r *MetricRepository) UpsertAll(ctx context.Context, records []scoring.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]*storemodel.PerformanceMetric, 0, len(records))
	for _, rec := range records {
		rows = append(rows, &storemodel.PerformanceMetric{
			Provider:           string(rec.Provider),
			Model:              rec.Model,
			TaskType:           rec.TaskType,
			TotalRequests:      rec.TotalRequests,
			SuccessfulRequests: rec.SuccessfulRequests,
			AvgLatencyMs:       rec.AvgLatencyMs,
			AvgCostUSD:         rec.AvgCostUSD,
			UpdatedAt:          rec.UpdatedAt,
		})
	}

	err := r.ds.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}, {Name: "model"}, {Name: "task_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_requests", "successful_requests", "avg_latency_ms", "avg_cost_usd", "updated_at",
		}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to upsert performance metrics: %w", err)
	}
	return nil
}

// LoadAll reads every persisted aggregate, used to seed the tracker at startup.
func (r *MetricRepository) LoadAll(ctx context.Context) ([]scoring.Record, error) {
	var rows []*storemodel.PerformanceMetric
	if err := r.ds.DB(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load performance metrics: %w", err)
	}

	records := make([]scoring.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, scoring.Record{
			Provider:           model.ProviderType(row.Provider),
			Model:              row.Model,
			TaskType:           row.TaskType,
			TotalRequests:      row.TotalRequests,
			SuccessfulRequests: row.SuccessfulRequests,
			AvgLatencyMs:       row.AvgLatencyMs,
			AvgCostUSD:         row.AvgCostUSD,
			UpdatedAt:          row.UpdatedAt,
		})
	}
	return records, nil
}
