package model

import "time"

// PerformanceMetric MySQL model for aggregated provider performance.
// One row per (provider, model, task_type) tuple, upserted on flush.
type PerformanceMetric struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider           string    `gorm:"column:provider;type:varchar(50);not null;uniqueIndex:idx_metric_tuple,priority:1" json:"provider"`
	Model              string    `gorm:"column:model;type:varchar(255);not null;uniqueIndex:idx_metric_tuple,priority:2" json:"model"`
	TaskType           string    `gorm:"column:task_type;type:varchar(255);not null;uniqueIndex:idx_metric_tuple,priority:3" json:"task_type"`
	TotalRequests      int64     `gorm:"column:total_requests;not null;default:0" json:"total_requests"`
	SuccessfulRequests int64     `gorm:"column:successful_requests;not null;default:0" json:"successful_requests"`
	AvgLatencyMs       float64   `gorm:"column:avg_latency_ms;not null;default:0" json:"avg_latency_ms"`
	AvgCostUSD         float64   `gorm:"column:avg_cost_usd;not null;default:0" json:"avg_cost_usd"`
	UpdatedAt          time.Time `gorm:"column:updated_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"updated_at"`
}

// TableName specifies the table name for PerformanceMetric
func (PerformanceMetric) TableName() string {
	return "performance_metrics"
}
