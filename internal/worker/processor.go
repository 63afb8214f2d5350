package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/reride/reride_go_server/config"
	"github.com/reride/reride_go_server/internal/model"
	"github.com/reride/reride_go_server/internal/pipeline"
	"github.com/reride/reride_go_server/internal/pkg/pubsub"
	"github.com/reride/reride_go_server/internal/pkg/queue"
	"github.com/reride/reride_go_server/internal/repository"
)

// Processor 任务处理器：从队列取任务，交给流水线编排器执行。
// 每条消息对应一次完整的流水线运行。
type Processor struct {
	jobRepo      *repository.JobRepository
	orchestrator *pipeline.Orchestrator
	cancels      *queue.CancelFlags
	publisher    *pubsub.Publisher
}

// NewProcessor 创建任务处理器
func NewProcessor(
	jobRepo *repository.JobRepository,
	resultRepo *repository.ResultRepository,
	storage pipeline.Storage,
	estimator pipeline.PoseEstimator,
	cancels *queue.CancelFlags,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *Processor {
	p := &Processor{
		jobRepo:   jobRepo,
		cancels:   cancels,
		publisher: publisher,
	}

	// 进度推送辅助函数：状态机每次推进都发一条消息
	progress := func(job *model.VideoJob, status string, progressPct int, errMsg string) {
		err := publisher.PublishProgress(context.Background(), &pubsub.ProgressMessage{
			UserID:   job.UserID,
			JobID:    job.ID,
			VideoID:  job.VideoID,
			Status:   status,
			Progress: progressPct,
			Error:    errMsg,
		})
		if err != nil {
			log.Printf("Job %d: failed to publish progress: %v", job.ID, err)
		}
	}

	p.orchestrator = pipeline.NewOrchestrator(
		jobRepo, resultRepo, storage, estimator,
		cancels, publisher, progress,
		&cfg.Pipeline, &cfg.Pose,
	)
	return p
}

// Process 处理一条队列消息
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) error {
	job, err := p.jobRepo.GetByID(msg.JobID)
	if err != nil {
		return fmt.Errorf("failed to get job %d: %w", msg.JobID, err)
	}

	// 只接受排队中的任务：终态任务不可重入，其他状态说明有别的
	// worker 正在处理（单写者不变量）
	if job.Status != model.JobStatusQueued {
		log.Printf("Job %d: skipped, status is %s", job.ID, job.Status)
		return nil
	}

	// 排队期间已被取消的任务不进入流水线
	if p.cancels.Cancelled(ctx, job.ID) {
		if err := p.jobRepo.MarkTerminal(job.ID, model.JobStatusCancelled, ""); err != nil {
			log.Printf("Job %d: failed to mark cancelled: %v", job.ID, err)
		}
		p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
			UserID:  job.UserID,
			JobID:   job.ID,
			VideoID: job.VideoID,
			Status:  model.JobStatusCancelled,
		})
		log.Printf("Job %d: cancelled before start", job.ID)
		return nil
	}

	if err := p.jobRepo.MarkStarted(job.ID); err != nil {
		log.Printf("Job %d: failed to mark started: %v", job.ID, err)
	}

	log.Printf("Job %d: starting analysis, video %d, style %s", job.ID, msg.VideoID, msg.Style)
	return p.orchestrator.Run(ctx, job, msg.VideoRef)
}
