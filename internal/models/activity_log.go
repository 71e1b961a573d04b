package models

import (
	"time"

	"gorm.io/gorm"
)

// ActivityLog records one API request; generation requests keep their JSON
// body so past batch inputs stay auditable.
type ActivityLog struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Method      string         `gorm:"type:varchar(10);not null" json:"method"`
	Path        string         `gorm:"type:varchar(255);not null" json:"path"`
	ClientIP    string         `gorm:"type:varchar(45)" json:"client_ip"`
	RequestBody string         `gorm:"type:text" json:"request_body,omitempty"`
	StatusCode  int            `gorm:"not null" json:"status_code"`
	DurationMS  int64          `gorm:"not null" json:"duration_ms"`
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}
