package main

import (
	"context"
	"fmt"
	"log"

	"github.com/reride/reride_go_server/config"
	"github.com/reride/reride_go_server/internal/api"
	"github.com/reride/reride_go_server/internal/api/handler"
	"github.com/reride/reride_go_server/internal/database"
	"github.com/reride/reride_go_server/internal/pkg/oss"
	"github.com/reride/reride_go_server/internal/pkg/pubsub"
	"github.com/reride/reride_go_server/internal/pkg/queue"
	"github.com/reride/reride_go_server/internal/pkg/ws"
	"github.com/reride/reride_go_server/internal/repository"
	"github.com/reride/reride_go_server/internal/service"
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

	// 初始化 OSS
	ossClient, err := oss.NewClient(&cfg.OSS)
	if err != nil {
		log.Fatalf("Failed to init OSS client: %v", err)
	}
	log.Println("OSS client initialized")

	// 初始化 Queue 与取消标志
	jobQueue := queue.NewQueue(rdb, cfg.Queue.AnalysisQueue)
	cancels := queue.NewCancelFlags(rdb)

	// WebSocket Hub + 进度消息桥接：worker 发 Redis，这里转发到连接
	wsHub := ws.NewHub()
	subscriber := pubsub.NewSubscriber(rdb)
	go func() {
		for msg := range subscriber.SubscribeProgress(context.Background()) {
			wsHub.SendToUser(msg.UserID, &ws.Message{
				Type: msg.Type,
				Data: msg,
			})
		}
	}()
	log.Println("WebSocket hub started")

	// 初始化 Repository
	videoRepo := repository.NewVideoRepository(db)
	jobRepo := repository.NewJobRepository(db)
	resultRepo := repository.NewResultRepository(db)

	// 初始化 Service
	videoService := service.NewVideoService(videoRepo, ossClient, cfg)
	analysisService := service.NewAnalysisService(videoRepo, jobRepo, resultRepo, jobQueue, cancels, ossClient, cfg)

	// 初始化 Handler
	videoHandler := handler.NewVideoHandler(videoService)
	analysisHandler := handler.NewAnalysisHandler(analysisService)
	websocketHandler := handler.NewWebSocketHandler(wsHub)

	// 初始化 Router
	router := api.NewRouter(
		videoHandler,
		analysisHandler,
		websocketHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
