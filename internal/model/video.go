package model

import (
	"time"
)

type Video struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	UserID           int64     `gorm:"not null;index" json:"user_id"`
	OriginalFilename string    `gorm:"size:255;not null" json:"original_filename"`
	StorageRef       string    `gorm:"size:500;not null" json:"storage_ref"` // OSS object key
	SizeBytes        int64     `json:"size_bytes,omitempty"`
	DurationSeconds  float64   `json:"duration_seconds,omitempty"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

func (Video) TableName() string {
	return "videos"
}
