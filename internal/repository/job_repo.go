package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/reride/reride_go_server/internal/model"
)

var terminalStatuses = []string{
	model.JobStatusCompleted,
	model.JobStatusFailed,
	model.JobStatusCancelled,
}

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.VideoJob) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByID(id int64) (*model.VideoJob, error) {
	var job model.VideoJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob 实现 pipeline.JobStore
func (r *JobRepository) GetJob(id int64) (*model.VideoJob, error) {
	return r.GetByID(id)
}

func (r *JobRepository) GetByVideoID(videoID int64) (*model.VideoJob, error) {
	var job model.VideoJob
	err := r.db.Where("video_id = ?", videoID).Order("created_at DESC").First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkStarted 记录任务开始执行的时间
func (r *JobRepository) MarkStarted(id int64) error {
	now := time.Now()
	return r.db.Model(&model.VideoJob{}).Where("id = ?", id).Update("started_at", &now).Error
}

// UpdateStage 阶段推进：单条 UPDATE 原子写入状态与进度。
// 进度只增不减，终态任务不再被改写。
func (r *JobRepository) UpdateStage(id int64, status string, progress int) error {
	return r.db.Model(&model.VideoJob{}).
		Where("id = ? AND progress <= ? AND status NOT IN ?", id, progress, terminalStatuses).
		Updates(map[string]interface{}{"status": status, "progress": progress}).Error
}

// MarkTerminal 落终态。终态只写一次，重复调用是空操作。
func (r *JobRepository) MarkTerminal(id int64, status string, errMsg string) error {
	var job model.VideoJob
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		return err
	}
	if model.TerminalStatus(job.Status) {
		return nil
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": &now,
	}
	if job.StartedAt != nil {
		updates["elapsed_seconds"] = int(now.Sub(*job.StartedAt).Seconds())
	}
	if status == model.JobStatusCompleted {
		updates["progress"] = 100
	}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}

	return r.db.Model(&model.VideoJob{}).
		Where("id = ? AND status NOT IN ?", id, terminalStatuses).
		Updates(updates).Error
}

// ListStuck 查找超过全局期限仍未到终态的任务，清理进程用
func (r *JobRepository) ListStuck(before time.Time, limit int) ([]*model.VideoJob, error) {
	var jobs []*model.VideoJob
	err := r.db.Where("status NOT IN ? AND created_at < ?", terminalStatuses, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// ListTerminalBefore 查找在给定时刻之前到达终态的任务，用于回收中间产物
func (r *JobRepository) ListTerminalBefore(before time.Time, limit int) ([]*model.VideoJob, error) {
	var jobs []*model.VideoJob
	err := r.db.Where("status IN ? AND completed_at < ?", terminalStatuses, before).
		Order("completed_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}
