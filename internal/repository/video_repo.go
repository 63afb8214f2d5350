package repository

import (
	"gorm.io/gorm"

	"github.com/reride/reride_go_server/internal/model"
)

type VideoRepository struct {
	db *gorm.DB
}

func NewVideoRepository(db *gorm.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) Create(video *model.Video) error {
	return r.db.Create(video).Error
}

func (r *VideoRepository) GetByID(id int64) (*model.Video, error) {
	var video model.Video
	err := r.db.Where("id = ?", id).First(&video).Error
	if err != nil {
		return nil, err
	}
	return &video, nil
}

// GetByIDForUser 带归属校验的查询
func (r *VideoRepository) GetByIDForUser(id, userID int64) (*model.Video, error) {
	var video model.Video
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&video).Error
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *VideoRepository) ListByUserID(userID int64, page, pageSize int) ([]*model.Video, int64, error) {
	var videos []*model.Video
	var total int64

	q := r.db.Model(&model.Video{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&videos).Error
	return videos, total, err
}
