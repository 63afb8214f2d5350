package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reride/reride_go_server/internal/api/middleware"
	"github.com/reride/reride_go_server/internal/model/dto"
	"github.com/reride/reride_go_server/internal/pkg/response"
	"github.com/reride/reride_go_server/internal/service"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
	}
}

// Submit 提交分析任务
// POST /api/v1/jobs
func (h *AnalysisHandler) Submit(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.SubmitAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.analysisService.Submit(c.Request.Context(), userID, &req)
	if err != nil {
		switch err {
		case service.ErrVideoNotFound:
			response.NotFoundError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "任务已提交", resp)
}

// GetStatus 查询任务状态
// GET /api/v1/jobs/:id/status
func (h *AnalysisHandler) GetStatus(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的任务ID")
		return
	}

	status, err := h.analysisService.GetStatus(userID, jobID)
	if err != nil {
		switch err {
		case service.ErrJobNotFound:
			response.NotFoundError(c, err.Error())
		case service.ErrJobPermission:
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, status)
}

// GetResult 获取分析结果，仅任务完成后可用
// GET /api/v1/jobs/:id/result
func (h *AnalysisHandler) GetResult(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的任务ID")
		return
	}

	result, err := h.analysisService.GetResult(userID, jobID)
	if err != nil {
		switch err {
		case service.ErrJobNotFound:
			response.NotFoundError(c, err.Error())
		case service.ErrJobPermission:
			response.PermissionError(c, err.Error())
		case service.ErrResultNotReady:
			response.NotReadyError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, result)
}

// Cancel 请求取消任务
// POST /api/v1/jobs/:id/cancel
func (h *AnalysisHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的任务ID")
		return
	}

	cancelled, err := h.analysisService.Cancel(c.Request.Context(), userID, jobID)
	if err != nil {
		switch err {
		case service.ErrJobNotFound:
			response.NotFoundError(c, err.Error())
		case service.ErrJobPermission:
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, &dto.CancelResponse{Cancelled: cancelled})
}
