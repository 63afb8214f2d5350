package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/reride/reride_go_server/internal/model"
)

// TestVideo 创建测试视频
func TestVideo(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Video)) *model.Video {
	t.Helper()

	video := &model.Video{
		UserID:           userID,
		OriginalFilename: fmt.Sprintf("run_%d.mp4", time.Now().UnixNano()%10000),
		StorageRef:       fmt.Sprintf("videos/test-%d.mp4", time.Now().UnixNano()),
		SizeBytes:        1 << 20,
	}

	for _, opt := range opts {
		opt(video)
	}

	if err := db.Create(video).Error; err != nil {
		t.Fatalf("Failed to create test video: %v", err)
	}

	return video
}

// WithStorageRef 设置对象存储引用
func WithStorageRef(ref string) func(*model.Video) {
	return func(v *model.Video) {
		v.StorageRef = ref
	}
}

// WithSizeBytes 设置视频大小
func WithSizeBytes(size int64) func(*model.Video) {
	return func(v *model.Video) {
		v.SizeBytes = size
	}
}

// TestJob 创建测试任务
func TestJob(t *testing.T, db *gorm.DB, userID, videoID int64, status string, opts ...func(*model.VideoJob)) *model.VideoJob {
	t.Helper()

	job := &model.VideoJob{
		VideoID: videoID,
		UserID:  userID,
		Style:   "default",
		Status:  status,
	}

	for _, opt := range opts {
		opt(job)
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

// WithStyle 设置渲染风格
func WithStyle(style string) func(*model.VideoJob) {
	return func(j *model.VideoJob) {
		j.Style = style
	}
}

// WithProgress 设置进度
func WithProgress(progress int) func(*model.VideoJob) {
	return func(j *model.VideoJob) {
		j.Progress = progress
	}
}

// WithStarted 设置开始时间
func WithStarted(at time.Time) func(*model.VideoJob) {
	return func(j *model.VideoJob) {
		j.StartedAt = &at
	}
}

// TestResult 创建测试分析结果
func TestResult(t *testing.T, db *gorm.DB, jobID, videoID int64, opts ...func(*model.AnalysisResult)) *model.AnalysisResult {
	t.Helper()

	result := &model.AnalysisResult{
		VideoID:         videoID,
		JobID:           jobID,
		OverallScore:    72.5,
		DifficultyScore: 60,
		StabilityScore:  81.3,
		Tricks: model.TrickSegments{
			{Label: "jump_180", Confidence: 0.8, StartFrame: 10, EndFrame: 24},
		},
		Feedback:       model.StringArray{"整体表现不错"},
		AnimationRef:   fmt.Sprintf("jobs/%d/animation.mp4", jobID),
		HighlightRef:   fmt.Sprintf("jobs/%d/highlight.mp4", jobID),
		TotalFrames:    300,
		AirborneFrames: 40,
	}

	for _, opt := range opts {
		opt(result)
	}

	if err := db.Create(result).Error; err != nil {
		t.Fatalf("Failed to create test result: %v", err)
	}

	return result
}
