package model

import "time"

// Task MySQL model for tasks table
type Task struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID      string     `gorm:"column:task_id;type:varchar(255);not null;uniqueIndex:idx_task_id_unique" json:"task_id"`
	TaskType    string     `gorm:"column:task_type;type:varchar(255);not null;index:idx_type_status,priority:1" json:"task_type"`
	Input       JSONMap    `gorm:"column:input;type:json;not null" json:"input"`
	Status      string     `gorm:"column:status;type:varchar(50);not null;index:idx_status;index:idx_type_status,priority:2" json:"status"`
	Metadata    JSONMap    `gorm:"column:metadata;type:json" json:"metadata"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3);index:idx_created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"updated_at"`
	StartedAt   *time.Time `gorm:"column:started_at;type:datetime(3)" json:"started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at;type:datetime(3);index:idx_completed_at" json:"completed_at"`
}

// TableName specifies the table name for Task
func (Task) TableName() string {
	return "tasks"
}
