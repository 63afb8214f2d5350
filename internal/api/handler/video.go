package handler

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reride/reride_go_server/internal/api/middleware"
	"github.com/reride/reride_go_server/internal/pkg/response"
	"github.com/reride/reride_go_server/internal/service"
)

type VideoHandler struct {
	videoService *service.VideoService
}

func NewVideoHandler(videoService *service.VideoService) *VideoHandler {
	return &VideoHandler{
		videoService: videoService,
	}
}

// Upload 上传视频
// POST /api/v1/videos (multipart, field "video")
func (h *VideoHandler) Upload(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	fileHeader, err := c.FormFile("video")
	if err != nil {
		response.ParamError(c, "缺少视频文件")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.ServerError(c, "")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	resp, err := h.videoService.Upload(c.Request.Context(), userID, fileHeader.Filename, data)
	if err != nil {
		switch err {
		case service.ErrVideoTooLarge, service.ErrVideoBadFormat, service.ErrVideoEmptyUpload:
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "上传成功", resp)
}

// Get 查询视频信息
// GET /api/v1/videos/:id
func (h *VideoHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	videoID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的视频ID")
		return
	}

	video, err := h.videoService.GetVideo(userID, videoID)
	if err != nil {
		switch err {
		case service.ErrVideoNotFound:
			response.NotFoundError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, video)
}

// List 分页列出本人视频
// GET /api/v1/videos
func (h *VideoHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	list, err := h.videoService.ListVideos(userID, page, pageSize)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, list.Total, page, pageSize, list.Videos)
}
