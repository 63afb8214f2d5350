package api

import (
	"github.com/gin-gonic/gin"

	"github.com/reride/reride_go_server/config"
	"github.com/reride/reride_go_server/internal/api/handler"
	"github.com/reride/reride_go_server/internal/api/middleware"
)

type Router struct {
	videoHandler     *handler.VideoHandler
	analysisHandler  *handler.AnalysisHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	videoHandler *handler.VideoHandler,
	analysisHandler *handler.AnalysisHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		videoHandler:     videoHandler,
		analysisHandler:  analysisHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket 进度推送
		api.GET("/ws", r.websocketHandler.Handle)

		// 身份来自上游网关
		authenticated := api.Group("")
		authenticated.Use(middleware.Identity())
		{
			// 视频
			videos := authenticated.Group("/videos")
			{
				videos.POST("", r.videoHandler.Upload)
				videos.GET("", r.videoHandler.List)
				videos.GET("/:id", r.videoHandler.Get)
			}

			// 分析任务
			jobs := authenticated.Group("/jobs")
			{
				jobs.POST("", r.analysisHandler.Submit)
				jobs.GET("/:id/status", r.analysisHandler.GetStatus)
				jobs.GET("/:id/result", r.analysisHandler.GetResult)
				jobs.POST("/:id/cancel", r.analysisHandler.Cancel)
			}
		}
	}

	return engine
}
