package model

import (
	"time"
)

// GenerationJob 生成任务记录
type GenerationJob struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID      int64      `gorm:"column:user_id;not null;index" json:"user_id"`
	JobID       string     `gorm:"column:job_id;type:uuid;not null;uniqueIndex" json:"job_id"`
	Status      string     `gorm:"column:status;not null" json:"status"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	FinishedOn  *time.Time `gorm:"column:finished_on" json:"finished_on"`
	CreditsUsed int64      `gorm:"column:credits_used;not null" json:"credits_used"`
	Category    string     `gorm:"column:category;not null" json:"category"`
	Options     string     `gorm:"column:options;not null" json:"options"` // 逗号分隔
	DisplayName string     `gorm:"column:display_name;not null" json:"display_name"`
}

// TableName 表名
func (GenerationJob) TableName() string {
	return "generation"
}
