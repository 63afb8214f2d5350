package dto

// VideoResponse 视频信息
type VideoResponse struct {
	ID               int64   `json:"id"`
	OriginalFilename string  `json:"original_filename"`
	SizeBytes        int64   `json:"size_bytes"`
	DurationSeconds  float64 `json:"duration_seconds,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// VideoListResponse 视频分页列表
type VideoListResponse struct {
	Total  int64           `json:"total"`
	Videos []VideoResponse `json:"videos"`
}
