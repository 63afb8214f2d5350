package service

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/reride/reride_go_server/config"
	"github.com/reride/reride_go_server/internal/model"
	"github.com/reride/reride_go_server/internal/model/dto"
	"github.com/reride/reride_go_server/internal/pipeline"
	"github.com/reride/reride_go_server/internal/pkg/queue"
	"github.com/reride/reride_go_server/internal/repository"
)

var (
	ErrVideoNotFound  = errors.New("视频不存在或无访问权限")
	ErrJobNotFound    = errors.New("分析任务不存在")
	ErrJobPermission  = errors.New("无权访问此分析任务")
	ErrResultNotReady = errors.New("分析结果尚未生成")
)

// 结果中产物签名 URL 的有效期
const presignExpireSeconds = 3600

// AnalysisService 暴露流水线的四个边界操作：
// Submit / GetStatus / GetResult / Cancel。
type AnalysisService struct {
	videoRepo  *repository.VideoRepository
	jobRepo    *repository.JobRepository
	resultRepo *repository.ResultRepository
	jobQueue   *queue.Queue
	cancels    *queue.CancelFlags
	storage    pipeline.Storage
	cfg        *config.Config
}

func NewAnalysisService(
	videoRepo *repository.VideoRepository,
	jobRepo *repository.JobRepository,
	resultRepo *repository.ResultRepository,
	jobQueue *queue.Queue,
	cancels *queue.CancelFlags,
	storage pipeline.Storage,
	cfg *config.Config,
) *AnalysisService {
	return &AnalysisService{
		videoRepo:  videoRepo,
		jobRepo:    jobRepo,
		resultRepo: resultRepo,
		jobQueue:   jobQueue,
		cancels:    cancels,
		storage:    storage,
		cfg:        cfg,
	}
}

// Submit 创建任务并入队。重复提交同一视频会创建新任务，不做幂等合并。
func (s *AnalysisService) Submit(ctx context.Context, userID int64, req *dto.SubmitAnalysisRequest) (*dto.SubmitAnalysisResponse, error) {
	video, err := s.videoRepo.GetByIDForUser(req.VideoID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}

	style := req.Style
	if style == "" {
		style = "default"
	}

	job := &model.VideoJob{
		VideoID:  video.ID,
		UserID:   userID,
		Style:    style,
		Status:   model.JobStatusQueued,
		Progress: 0,
	}
	if err := s.jobRepo.Create(job); err != nil {
		return nil, err
	}

	msg := &queue.JobMessage{
		JobID:    job.ID,
		VideoID:  video.ID,
		UserID:   userID,
		Style:    style,
		VideoRef: video.StorageRef,
	}
	if err := s.jobQueue.Push(ctx, msg); err != nil {
		// 入队失败的任务不会被任何 worker 捡起，直接落失败终态
		if terr := s.jobRepo.MarkTerminal(job.ID, model.JobStatusFailed,
			string(pipeline.KindTransient)+": enqueue failed: "+err.Error()); terr != nil {
			log.Printf("Job %d: failed to mark enqueue failure: %v", job.ID, terr)
		}
		return nil, err
	}

	return &dto.SubmitAnalysisResponse{JobID: job.ID}, nil
}

// GetStatus 查询任务状态与进度。终态任务的重复读取返回相同内容。
func (s *AnalysisService) GetStatus(userID, jobID int64) (*dto.JobStatusResponse, error) {
	job, err := s.getOwnedJob(userID, jobID)
	if err != nil {
		return nil, err
	}

	resp := &dto.JobStatusResponse{
		JobID:    job.ID,
		VideoID:  job.VideoID,
		Status:   job.Status,
		Progress: job.Progress,
	}
	if job.Status == model.JobStatusFailed {
		resp.ErrorMessage = job.ErrorMessage
	}
	return resp, nil
}

// GetResult 仅在任务完成时返回结果，产物引用换成新的签名 URL。
// 换取 URL 不改变结果本身。
func (s *AnalysisService) GetResult(userID, jobID int64) (*dto.AnalysisResultResponse, error) {
	job, err := s.getOwnedJob(userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusCompleted {
		return nil, ErrResultNotReady
	}

	res, err := s.resultRepo.GetByJobID(job.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResultNotReady
		}
		return nil, err
	}

	resp := &dto.AnalysisResultResponse{
		VideoID:         res.VideoID,
		OverallScore:    res.OverallScore,
		DifficultyScore: res.DifficultyScore,
		StabilityScore:  res.StabilityScore,
		Feedback:        []string(res.Feedback),
		TotalFrames:     res.TotalFrames,
		AirborneFrames:  res.AirborneFrames,
		CreatedAt:       res.CreatedAt.Format(time.RFC3339),
	}
	for _, t := range res.Tricks {
		resp.Tricks = append(resp.Tricks, dto.TrickItem{
			Label:      t.Label,
			Confidence: t.Confidence,
			StartFrame: t.StartFrame,
			EndFrame:   t.EndFrame,
		})
	}

	if res.AnimationRef != "" {
		if url, err := s.storage.Presign(res.AnimationRef, presignExpireSeconds); err == nil {
			resp.AnimationURL = url
		} else {
			log.Printf("Job %d: presign animation failed: %v", job.ID, err)
		}
	}
	if res.HighlightRef != "" {
		if url, err := s.storage.Presign(res.HighlightRef, presignExpireSeconds); err == nil {
			resp.HighlightURL = url
		} else {
			log.Printf("Job %d: presign highlight failed: %v", job.ID, err)
		}
	}

	return resp, nil
}

// Cancel 置协作式取消标志。
// 调用时任务处于非终态则返回 true，正在执行的阶段会跑完但结果被丢弃。
func (s *AnalysisService) Cancel(ctx context.Context, userID, jobID int64) (bool, error) {
	job, err := s.getOwnedJob(userID, jobID)
	if err != nil {
		return false, err
	}
	if model.TerminalStatus(job.Status) {
		return false, nil
	}

	if err := s.cancels.Request(ctx, jobID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AnalysisService) getOwnedJob(userID, jobID int64) (*model.VideoJob, error) {
	job, err := s.jobRepo.GetByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrJobPermission
	}
	return job, nil
}
