package model

import (
	"time"
)

// VideoJob 状态枚举。queued 是唯一初始状态，
// completed / failed / cancelled 为终态。
const (
	JobStatusQueued     = "queued"
	JobStatusExtracting = "extracting"
	JobStatusPose       = "estimating_pose"
	JobStatusClassify   = "classifying"
	JobStatusScoring    = "scoring_rendering"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

// TerminalStatus 判断是否为终态
func TerminalStatus(status string) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// VideoJob 一次视频分析任务。状态与进度仅由流水线编排器写入。
type VideoJob struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	VideoID        int64      `gorm:"not null;index" json:"video_id"`
	UserID         int64      `gorm:"not null;index" json:"user_id"`
	Style          string     `gorm:"size:50;default:default" json:"style"`
	Status         string     `gorm:"size:30;default:queued;index" json:"status"`
	Progress       int        `gorm:"default:0" json:"progress"` // 0-100，非终态期间单调不减
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ElapsedSeconds int        `json:"elapsed_seconds,omitempty"`
}

func (VideoJob) TableName() string {
	return "video_jobs"
}
