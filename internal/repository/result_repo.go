package repository

import (
	"gorm.io/gorm"

	"github.com/reride/reride_go_server/internal/model"
)

type ResultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// CreateResult 实现 pipeline.ResultStore，任务完成时写入一次
func (r *ResultRepository) CreateResult(res *model.AnalysisResult) error {
	return r.db.Create(res).Error
}

func (r *ResultRepository) GetByJobID(jobID int64) (*model.AnalysisResult, error) {
	var res model.AnalysisResult
	err := r.db.Where("job_id = ?", jobID).First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *ResultRepository) GetByVideoID(videoID int64) (*model.AnalysisResult, error) {
	var res model.AnalysisResult
	err := r.db.Where("video_id = ?", videoID).First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}
