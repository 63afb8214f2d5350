package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/reride/reride_go_server/config"
	"github.com/reride/reride_go_server/internal/model"
)

// 各阶段完成后的累计进度带：采样 10%，姿态 40%，分类 20%，评分+渲染 30%
const (
	progressQueued     = 0
	progressExtracted  = 10
	progressPosed      = 50
	progressClassified = 70
	progressDone       = 100
)

// JobStore 任务状态存储。进度更新必须是单语句原子写，
// 且只增不减，避免读者看到进度回退。
type JobStore interface {
	GetJob(id int64) (*model.VideoJob, error)
	UpdateStage(jobID int64, status string, progress int) error
	MarkTerminal(jobID int64, status string, errMsg string) error
}

// ResultStore 分析结果存储，完成时写入一次
type ResultStore interface {
	CreateResult(res *model.AnalysisResult) error
}

// ProgressFunc 阶段推进回调，worker 用它向外推送进度
type ProgressFunc func(job *model.VideoJob, status string, progress int, errMsg string)

// Orchestrator 流水线编排器：串联各阶段、维护任务状态机、
// 持久化产物、在阶段边界检查协作式取消。
// 同一任务同一时刻只有一个编排器实例在写（单写者不变量）。
type Orchestrator struct {
	jobs      JobStore
	results   ResultStore
	storage   Storage
	estimator PoseEstimator
	sampler   *FrameSampler
	segmenter *Segmenter
	scorer    *Scorer
	renderer  *Renderer
	cancels   CancelChecker
	notifier  Notifier
	progress  ProgressFunc
	cfg       *config.PipelineConfig
	poseCfg   *config.PoseConfig
}

func NewOrchestrator(
	jobs JobStore,
	results ResultStore,
	storage Storage,
	estimator PoseEstimator,
	cancels CancelChecker,
	notifier Notifier,
	progress ProgressFunc,
	cfg *config.PipelineConfig,
	poseCfg *config.PoseConfig,
) *Orchestrator {
	return &Orchestrator{
		jobs:      jobs,
		results:   results,
		storage:   storage,
		estimator: estimator,
		sampler:   NewFrameSampler(cfg.FFmpegPath),
		segmenter: NewSegmenter(cfg.MinSegmentFrames, cfg.TieBreakEpsilon),
		scorer:    NewScorer(cfg.StabilityWindow, cfg.StabilityStride),
		renderer:  NewRenderer(cfg.FFmpegPath, cfg.ScratchDir, cfg.SampleFPS, cfg.HighlightPadFrames, cfg.HighlightMaxSeconds),
		cancels:   cancels,
		notifier:  notifier,
		progress:  progress,
		cfg:       cfg,
		poseCfg:   poseCfg,
	}
}

// ArtifactPrefix 任务产物的存储命名空间
func ArtifactPrefix(jobID int64) string {
	return fmt.Sprintf("jobs/%d/", jobID)
}

// Run 执行一个任务的完整流水线。返回值只用于日志，
// 所有错误都被分类后落入任务状态，不向调用方传播语义。
func (o *Orchestrator) Run(ctx context.Context, job *model.VideoJob, videoRef string) error {
	// 阶段 1：帧采样
	if o.cancelledAt(ctx, job) {
		return nil
	}
	o.advance(job, model.JobStatusExtracting, progressQueued)

	var frames []RawFrame
	err := o.runStage(ctx, o.cfg.ExtractTimeoutSec, func(sctx context.Context) error {
		var videoBytes []byte
		err := o.withTransientRetry(sctx, func() error {
			b, err := o.storage.Get(sctx, videoRef)
			if err != nil {
				return WrapError(KindTransient, err, "fetch video %s", videoRef)
			}
			videoBytes = b
			return nil
		})
		if err != nil {
			return err
		}
		frames, err = o.sampler.Sample(sctx, videoBytes, o.cfg.SampleFPS)
		return err
	})
	if err != nil {
		return o.fail(ctx, job, err)
	}

	// 阶段 2：姿态推理 + 序列装配
	if o.cancelledAt(ctx, job) {
		return nil
	}
	o.advance(job, model.JobStatusPose, progressExtracted)

	var series []PoseFrame
	err = o.runStage(ctx, o.cfg.PoseTimeoutSec, func(sctx context.Context) error {
		estimates := make([]*PoseEstimate, len(frames))
		for i := range frames {
			if sctx.Err() != nil {
				return WrapError(KindTimeout, sctx.Err(), "pose estimation exceeded stage budget")
			}
			var est *PoseEstimate
			err := o.withTransientRetry(sctx, func() error {
				e, err := o.estimator.Estimate(sctx, &frames[i])
				est = e
				return err
			})
			if err != nil {
				return err
			}
			estimates[i] = est
		}
		var aerr error
		series, aerr = AssemblePoseSeries(estimates, frames, o.poseCfg.ConfidenceThreshold)
		return aerr
	})
	if err != nil {
		return o.fail(ctx, job, err)
	}

	// 姿态序列作为中间产物落盘，便于排查，终态后由清理任务回收
	if data, encErr := EncodePoseSeries(series); encErr == nil {
		if _, putErr := o.storage.Put(ctx, ArtifactPrefix(job.ID)+"poses.json", data, "application/json"); putErr != nil {
			log.Printf("Job %d: failed to persist pose series: %v", job.ID, putErr)
		}
	}

	// 阶段 3：动作段分类
	if o.cancelledAt(ctx, job) {
		return nil
	}
	o.advance(job, model.JobStatusClassify, progressPosed)

	style := ResolveStyle(job.Style)
	var segments []model.TrickSegment
	err = o.runStage(ctx, o.cfg.ClassifyTimeoutSec, func(sctx context.Context) error {
		var serr error
		segments, serr = o.segmenter.Segment(series, style)
		return serr
	})
	if err != nil {
		return o.fail(ctx, job, err)
	}

	// 阶段 4：评分 ∥ 渲染（fork-join，二者只读同一份序列与段表）
	if o.cancelledAt(ctx, job) {
		return nil
	}
	o.advance(job, model.JobStatusScoring, progressClassified)

	type scoreOut struct {
		scores *Scores
		err    error
	}
	type renderOut struct {
		animRef string
		hlRef   string
		err     error
	}
	scoreCh := make(chan scoreOut, 1)
	renderCh := make(chan renderOut, 1)

	go func() {
		var out scoreOut
		out.err = o.runStage(ctx, o.cfg.ScoreTimeoutSec, func(sctx context.Context) error {
			s, err := o.scorer.Score(series, segments)
			if err != nil {
				return err
			}
			// 评分是纯 CPU 计算，预算超限只能在落账前兑现
			if sctx.Err() != nil {
				return WrapError(KindTimeout, sctx.Err(), "scoring exceeded stage budget")
			}
			out.scores = s
			return nil
		})
		scoreCh <- out
	}()

	go func() {
		var out renderOut
		out.err = o.runStage(ctx, o.cfg.RenderTimeoutSec, func(sctx context.Context) error {
			anim, hl, err := o.renderWithRetry(sctx, series, segments, style)
			if err != nil {
				return err
			}
			return o.withTransientRetry(sctx, func() error {
				animRef, err := o.storage.Put(sctx, ArtifactPrefix(job.ID)+"animation.mp4", anim, "video/mp4")
				if err != nil {
					return WrapError(KindTransient, err, "persist animation")
				}
				hlRef, err := o.storage.Put(sctx, ArtifactPrefix(job.ID)+"highlight.mp4", hl, "video/mp4")
				if err != nil {
					return WrapError(KindTransient, err, "persist highlight")
				}
				out.animRef = animRef
				out.hlRef = hlRef
				return nil
			})
		})
		renderCh <- out
	}()

	sOut := <-scoreCh
	rOut := <-renderCh
	if sOut.err != nil {
		return o.fail(ctx, job, sOut.err)
	}
	if rOut.err != nil {
		return o.fail(ctx, job, rOut.err)
	}

	// join 后、提交前最后一次取消检查：已产出的结果直接丢弃
	if o.cancelledAt(ctx, job) {
		return nil
	}

	airborne := 0
	for i := range series {
		if series[i].Airborne {
			airborne++
		}
	}
	result := &model.AnalysisResult{
		VideoID:         job.VideoID,
		JobID:           job.ID,
		OverallScore:    sOut.scores.Overall,
		DifficultyScore: sOut.scores.Difficulty,
		StabilityScore:  sOut.scores.Stability,
		Tricks:          model.TrickSegments(segments),
		Feedback:        model.StringArray(sOut.scores.Feedback),
		AnimationRef:    rOut.animRef,
		HighlightRef:    rOut.hlRef,
		TotalFrames:     len(series),
		AirborneFrames:  airborne,
	}
	if err := o.withTransientRetry(ctx, func() error {
		if cerr := o.results.CreateResult(result); cerr != nil {
			return WrapError(KindTransient, cerr, "persist analysis result")
		}
		return nil
	}); err != nil {
		return o.fail(ctx, job, err)
	}

	if err := o.jobs.MarkTerminal(job.ID, model.JobStatusCompleted, ""); err != nil {
		log.Printf("Job %d: failed to mark completed: %v", job.ID, err)
	}
	o.report(job, model.JobStatusCompleted, progressDone, "")
	o.notify(ctx, job, "analysis_completed", map[string]interface{}{
		"job_id":        job.ID,
		"video_id":      job.VideoID,
		"overall_score": sOut.scores.Overall,
	})

	log.Printf("Job %d: completed, %d frames, %d tricks, score %.1f",
		job.ID, len(series), len(segments), sOut.scores.Overall)
	return nil
}

// runStage 给单个阶段套上独立的墙钟预算
func (o *Orchestrator) runStage(ctx context.Context, timeoutSec int, fn func(context.Context) error) error {
	sctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	err := fn(sctx)
	if err != nil && sctx.Err() == context.DeadlineExceeded && ClassifyKind(err) != KindTimeout {
		return WrapError(KindTimeout, err, "stage exceeded %ds budget", timeoutSec)
	}
	return err
}

// withTransientRetry 只对 TransientIOError 做有界指数退避重试
func (o *Orchestrator) withTransientRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < o.cfg.TransientMaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return WrapError(KindTimeout, ctx.Err(), "retry wait interrupted")
			case <-time.After(backoff):
			}
		}
		err = fn()
		if err == nil || !Retryable(ClassifyKind(err)) {
			return err
		}
	}
	return err
}

// renderWithRetry RenderError 按瞬时 I/O 对待，重试一次
func (o *Orchestrator) renderWithRetry(ctx context.Context, series []PoseFrame, segments []model.TrickSegment, style StyleProfile) ([]byte, []byte, error) {
	anim, hl, err := o.renderer.Render(ctx, series, segments, style)
	if err != nil && ClassifyKind(err) == KindRender && ctx.Err() == nil {
		log.Printf("render failed, retrying once: %v", err)
		anim, hl, err = o.renderer.Render(ctx, series, segments, style)
	}
	return anim, hl, err
}

// advance 进入新阶段：写状态与阶段起点进度，并上报
func (o *Orchestrator) advance(job *model.VideoJob, status string, progress int) {
	if err := o.jobs.UpdateStage(job.ID, status, progress); err != nil {
		log.Printf("Job %d: failed to update stage %s: %v", job.ID, status, err)
	}
	job.Status = status
	if progress > job.Progress {
		job.Progress = progress
	}
	o.report(job, status, job.Progress, "")
}

// cancelledAt 阶段边界的取消检查；命中则清理并落终态
func (o *Orchestrator) cancelledAt(ctx context.Context, job *model.VideoJob) bool {
	if o.cancels == nil || !o.cancels.Cancelled(ctx, job.ID) {
		return false
	}
	o.cleanup(ctx, job.ID)
	if err := o.jobs.MarkTerminal(job.ID, model.JobStatusCancelled, ""); err != nil {
		log.Printf("Job %d: failed to mark cancelled: %v", job.ID, err)
	}
	o.report(job, model.JobStatusCancelled, job.Progress, "")
	log.Printf("Job %d: cancelled at stage %s", job.ID, job.Status)
	return true
}

// fail 分类错误、清理部分产物、落 failed 终态并通知
func (o *Orchestrator) fail(ctx context.Context, job *model.VideoJob, err error) error {
	kind := ClassifyKind(err)
	if kind == KindCancelled {
		o.cleanup(ctx, job.ID)
		if terr := o.jobs.MarkTerminal(job.ID, model.JobStatusCancelled, ""); terr != nil {
			log.Printf("Job %d: failed to mark cancelled: %v", job.ID, terr)
		}
		o.report(job, model.JobStatusCancelled, job.Progress, "")
		return nil
	}

	// 已分类的错误自带 "Kind: message" 前缀，只给裸错误补分类
	msg := err.Error()
	var perr *Error
	if !errors.As(err, &perr) {
		msg = fmt.Sprintf("%s: %s", kind, msg)
	}

	o.cleanup(ctx, job.ID)
	if terr := o.jobs.MarkTerminal(job.ID, model.JobStatusFailed, msg); terr != nil {
		log.Printf("Job %d: failed to mark failed: %v", job.ID, terr)
	}
	o.report(job, model.JobStatusFailed, job.Progress, msg)
	o.notify(ctx, job, "analysis_failed", map[string]interface{}{
		"job_id":   job.ID,
		"video_id": job.VideoID,
		"error":    msg,
	})
	log.Printf("Job %d: failed (%s): %v", job.ID, kind, err)
	return err
}

// cleanup 尽力删除该任务命名空间下已持久化的产物
func (o *Orchestrator) cleanup(ctx context.Context, jobID int64) {
	if err := o.storage.DeletePrefix(ctx, ArtifactPrefix(jobID)); err != nil {
		log.Printf("Job %d: artifact cleanup failed: %v", jobID, err)
	}
}

func (o *Orchestrator) report(job *model.VideoJob, status string, progress int, errMsg string) {
	if o.progress != nil {
		o.progress(job, status, progress, errMsg)
	}
}

func (o *Orchestrator) notify(ctx context.Context, job *model.VideoJob, event string, payload map[string]interface{}) {
	if o.notifier != nil {
		o.notifier.Notify(ctx, job.UserID, event, payload)
	}
}
