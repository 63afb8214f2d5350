package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reride/reride_go_server/config"
	"github.com/reride/reride_go_server/internal/model"
	"github.com/reride/reride_go_server/internal/model/dto"
	"github.com/reride/reride_go_server/internal/pipeline"
	"github.com/reride/reride_go_server/internal/repository"
)

var (
	ErrVideoTooLarge    = errors.New("视频文件过大")
	ErrVideoBadFormat   = errors.New("不支持的视频格式")
	ErrVideoEmptyUpload = errors.New("视频内容为空")
)

// VideoService 视频上传与查询
type VideoService struct {
	videoRepo *repository.VideoRepository
	storage   pipeline.Storage
	cfg       *config.Config
}

func NewVideoService(videoRepo *repository.VideoRepository, storage pipeline.Storage, cfg *config.Config) *VideoService {
	return &VideoService{
		videoRepo: videoRepo,
		storage:   storage,
		cfg:       cfg,
	}
}

// Upload 校验并上传视频，对象键用 uuid 避免冲突
func (s *VideoService) Upload(ctx context.Context, userID int64, filename string, data []byte) (*dto.VideoResponse, error) {
	if len(data) == 0 {
		return nil, ErrVideoEmptyUpload
	}
	if s.cfg.Upload.MaxSize > 0 && int64(len(data)) > s.cfg.Upload.MaxSize {
		return nil, ErrVideoTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !s.allowedExt(ext) {
		return nil, ErrVideoBadFormat
	}

	key := fmt.Sprintf("videos/%s%s", uuid.New().String(), ext)
	ref, err := s.storage.Put(ctx, key, data, contentTypeFor(ext))
	if err != nil {
		return nil, fmt.Errorf("上传视频失败: %w", err)
	}

	video := &model.Video{
		UserID:           userID,
		OriginalFilename: filename,
		StorageRef:       ref,
		SizeBytes:        int64(len(data)),
	}
	if err := s.videoRepo.Create(video); err != nil {
		return nil, err
	}

	return videoToResponse(video), nil
}

// GetVideo 按 ID 查询本人视频
func (s *VideoService) GetVideo(userID, videoID int64) (*dto.VideoResponse, error) {
	video, err := s.videoRepo.GetByIDForUser(videoID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	return videoToResponse(video), nil
}

// ListVideos 分页列出本人视频
func (s *VideoService) ListVideos(userID int64, page, pageSize int) (*dto.VideoListResponse, error) {
	videos, total, err := s.videoRepo.ListByUserID(userID, page, pageSize)
	if err != nil {
		return nil, err
	}

	resp := &dto.VideoListResponse{Total: total, Videos: make([]dto.VideoResponse, 0, len(videos))}
	for _, v := range videos {
		resp.Videos = append(resp.Videos, *videoToResponse(v))
	}
	return resp, nil
}

func (s *VideoService) allowedExt(ext string) bool {
	allowed := s.cfg.Upload.AllowedExtensions
	if len(allowed) == 0 {
		allowed = []string{".mp4", ".mov", ".avi", ".mkv"}
	}
	for _, a := range allowed {
		if ext == strings.ToLower(a) {
			return true
		}
	}
	return false
}

func contentTypeFor(ext string) string {
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}

func videoToResponse(v *model.Video) *dto.VideoResponse {
	return &dto.VideoResponse{
		ID:               v.ID,
		OriginalFilename: v.OriginalFilename,
		SizeBytes:        v.SizeBytes,
		DurationSeconds:  v.DurationSeconds,
		CreatedAt:        v.CreatedAt.Format(time.RFC3339),
	}
}
