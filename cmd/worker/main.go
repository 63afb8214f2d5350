package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reride/reride_go_server/config"
	"github.com/reride/reride_go_server/internal/database"
	"github.com/reride/reride_go_server/internal/pipeline"
	"github.com/reride/reride_go_server/internal/pkg/cron"
	"github.com/reride/reride_go_server/internal/pkg/oss"
	"github.com/reride/reride_go_server/internal/pkg/pubsub"
	"github.com/reride/reride_go_server/internal/pkg/queue"
	"github.com/reride/reride_go_server/internal/repository"
	"github.com/reride/reride_go_server/internal/worker"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 OSS，流水线产物都走对象存储
	ossClient, err := oss.NewClient(&cfg.OSS)
	if err != nil {
		log.Fatalf("Failed to init OSS client: %v", err)
	}
	log.Println("OSS client initialized")

	// 初始化 Queue 和 Pub/Sub
	jobQueue := queue.NewQueue(rdb, cfg.Queue.AnalysisQueue)
	cancels := queue.NewCancelFlags(rdb)
	publisher := pubsub.NewPublisher(rdb)

	// 初始化 Repository
	jobRepo := repository.NewJobRepository(db)
	resultRepo := repository.NewResultRepository(db)

	// 姿态推理 sidecar
	estimator := pipeline.NewHTTPPoseEstimator(cfg.Pose.Endpoint, time.Duration(cfg.Pose.TimeoutSec)*time.Second)

	// 创建任务处理器
	processor := worker.NewProcessor(jobRepo, resultRepo, ossClient, estimator, cancels, publisher, cfg)

	// 后台维护：临时目录清理、中间产物回收、卡死任务兜底
	cronService := cron.NewService(jobRepo, ossClient, cfg.Pipeline.ScratchDir, cfg.Upload.ExpireHours)
	cronService.Start()
	defer cronService.Stop()

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	log.Printf("Worker started, max workers: %d", cfg.Queue.MaxWorkers)

	// 启动 worker 循环
	for i := 0; i < cfg.Queue.MaxWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
					// 从队列获取任务
					msg, err := jobQueue.Pop(ctx, 5*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						log.Printf("Worker %d: failed to pop job: %v", workerID, err)
						continue
					}

					if msg == nil {
						continue // 超时，继续等待
					}

					log.Printf("Worker %d: processing job %d", workerID, msg.JobID)
					if err := processor.Process(ctx, msg); err != nil {
						log.Printf("Worker %d: job %d failed: %v", workerID, msg.JobID, err)
					}
				}
			}
		}(i)
	}

	// 等待 context 取消
	<-ctx.Done()
	log.Println("Worker shutdown complete")
}
