package cron

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/reride/reride_go_server/internal/model"
	"github.com/reride/reride_go_server/internal/pipeline"
	"github.com/reride/reride_go_server/internal/repository"
)

// 超过该时长仍未到终态的任务按卡死处理
const stuckJobAge = 24 * time.Hour

const sweepBatchSize = 100

// Service 后台维护任务：清理渲染临时目录、回收终态任务的
// 中间产物、把卡死的任务落到失败终态。
type Service struct {
	jobRepo     *repository.JobRepository
	storage     pipeline.Storage
	scratchDir  string
	expireHours int
	stopChan    chan struct{}
}

func NewService(
	jobRepo *repository.JobRepository,
	storage pipeline.Storage,
	scratchDir string,
	expireHours int,
) *Service {
	return &Service{
		jobRepo:     jobRepo,
		storage:     storage,
		scratchDir:  scratchDir,
		expireHours: expireHours,
		stopChan:    make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runCleanup()
	log.Println("Cron service started (scratch cleanup + artifact reclaim + stuck sweep)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runCleanup 每小时执行一次全量清理
func (s *Service) runCleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunNow()
		}
	}
}

// RunNow 立即执行一轮清理（启动时和测试用）
func (s *Service) RunNow() {
	expireHours := s.expireHours
	if expireHours <= 0 {
		expireHours = 24
	}
	expireDuration := time.Duration(expireHours) * time.Hour

	c1 := s.cleanupScratchDirs(expireDuration)
	c2 := s.reclaimIntermediateArtifacts(expireDuration)
	c3 := s.sweepStuckJobs()

	if c1+c2+c3 > 0 {
		log.Printf("Cleanup summary: scratch=%d, artifacts=%d, stuck=%d", c1, c2, c3)
	}
}

// cleanupScratchDirs 清理渲染器遗留的临时目录。
// 正常路径下渲染器自己删，这里兜底 worker 崩溃的情况。
func (s *Service) cleanupScratchDirs(expireDuration time.Duration) int {
	if s.scratchDir == "" {
		return 0
	}

	entries, err := os.ReadDir(s.scratchDir)
	if err != nil {
		log.Printf("Cleanup scratch: failed to read dir %s: %v", s.scratchDir, err)
		return 0
	}

	cleaned := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "render-") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if time.Since(info.ModTime()) > expireDuration {
			dirPath := filepath.Join(s.scratchDir, entry.Name())
			if err := os.RemoveAll(dirPath); err != nil {
				log.Printf("Cleanup scratch: failed to remove %s: %v", dirPath, err)
			} else {
				cleaned++
			}
		}
	}
	return cleaned
}

// reclaimIntermediateArtifacts 删除终态已久的任务的姿态序列文件。
// 动画和高光是结果的一部分，保留；poses.json 只用于排查。
func (s *Service) reclaimIntermediateArtifacts(expireDuration time.Duration) int {
	if s.jobRepo == nil || s.storage == nil {
		return 0
	}

	before := time.Now().Add(-expireDuration)
	jobs, err := s.jobRepo.ListTerminalBefore(before, sweepBatchSize)
	if err != nil {
		log.Printf("Reclaim artifacts: failed to list terminal jobs: %v", err)
		return 0
	}

	ctx := context.Background()
	cleaned := 0
	for _, job := range jobs {
		ref := pipeline.ArtifactPrefix(job.ID) + "poses.json"
		if err := s.storage.Delete(ctx, ref); err != nil {
			continue
		}
		cleaned++
	}
	return cleaned
}

// sweepStuckJobs 把超过全局期限仍未到终态的任务落失败。
// worker 崩溃后没人再写这些任务，终态由这里兜底。
func (s *Service) sweepStuckJobs() int {
	if s.jobRepo == nil {
		return 0
	}

	before := time.Now().Add(-stuckJobAge)
	jobs, err := s.jobRepo.ListStuck(before, sweepBatchSize)
	if err != nil {
		log.Printf("Sweep stuck: failed to list jobs: %v", err)
		return 0
	}

	swept := 0
	for _, job := range jobs {
		msg := string(pipeline.KindTimeout) + ": 任务超时未完成"
		if err := s.jobRepo.MarkTerminal(job.ID, model.JobStatusFailed, msg); err != nil {
			log.Printf("Sweep stuck: failed to mark job %d: %v", job.ID, err)
			continue
		}
		swept++
		log.Printf("Job %d: swept to failed after %s without terminal state", job.ID, stuckJobAge)
	}
	return swept
}
