package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// StringArray 用于 JSON 数组字段
type StringArray []string

func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// TrickSegment 一段被标记为某个动作的连续帧区间。
// end_frame 为开区间端点，start_frame < end_frame。
type TrickSegment struct {
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	StartFrame  int     `json:"start_frame"`
	EndFrame    int     `json:"end_frame"`
	StartTimeMs float64 `json:"start_time_ms,omitempty"`
	EndTimeMs   float64 `json:"end_time_ms,omitempty"`
}

// TrickSegments 用于 JSON 列
type TrickSegments []TrickSegment

func (s TrickSegments) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

func (s *TrickSegments) Scan(value interface{}) error {
	if value == nil {
		*s = TrickSegments{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// AnalysisResult 分析结果，任务完成后写入一次，此后只读。
type AnalysisResult struct {
	ID              int64         `gorm:"primaryKey" json:"id"`
	VideoID         int64         `gorm:"not null;uniqueIndex" json:"video_id"`
	JobID           int64         `gorm:"not null;index" json:"job_id"`
	OverallScore    float64       `json:"overall_score"`
	DifficultyScore float64       `json:"difficulty_score"`
	StabilityScore  float64       `json:"stability_score"`
	Tricks          TrickSegments `gorm:"type:json" json:"tricks"`
	Feedback        StringArray   `gorm:"type:json" json:"feedback"`
	AnimationRef    string        `gorm:"size:500" json:"animation_ref,omitempty"` // OSS object key
	HighlightRef    string        `gorm:"size:500" json:"highlight_ref,omitempty"`
	TotalFrames     int           `json:"total_frames"`
	AirborneFrames  int           `json:"airborne_frames"`
	CreatedAt       time.Time     `json:"created_at"`
}

func (AnalysisResult) TableName() string {
	return "analysis_results"
}
