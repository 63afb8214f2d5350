package dto

// SubmitAnalysisRequest 提交分析请求
type SubmitAnalysisRequest struct {
	VideoID int64  `json:"video_id" binding:"required"`
	Style   string `json:"style"`
}

// SubmitAnalysisResponse 提交分析响应
type SubmitAnalysisResponse struct {
	JobID int64 `json:"job_id"`
}

// JobStatusResponse 任务状态查询响应
type JobStatusResponse struct {
	JobID        int64  `json:"job_id"`
	VideoID      int64  `json:"video_id"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// TrickItem 单个动作段
type TrickItem struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	StartFrame int     `json:"start_frame"`
	EndFrame   int     `json:"end_frame"`
}

// AnalysisResultResponse 分析结果响应，产物引用已换成临时签名 URL
type AnalysisResultResponse struct {
	VideoID         int64       `json:"video_id"`
	OverallScore    float64     `json:"overall_score"`
	DifficultyScore float64     `json:"difficulty_score"`
	StabilityScore  float64     `json:"stability_score"`
	Tricks          []TrickItem `json:"tricks"`
	Feedback        []string    `json:"feedback"`
	AnimationURL    string      `json:"animation_url,omitempty"`
	HighlightURL    string      `json:"highlight_url,omitempty"`
	TotalFrames     int         `json:"total_frames"`
	AirborneFrames  int         `json:"airborne_frames"`
	CreatedAt       string      `json:"created_at"`
}

// CancelResponse 取消任务响应
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}
