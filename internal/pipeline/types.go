package pipeline

import (
	"context"
)

// NumJoints 姿态骨架关节数（MediaPipe 33 点拓扑）
const NumJoints = 33

// 关节索引
const (
	JointNose          = 0
	JointLeftShoulder  = 11
	JointRightShoulder = 12
	JointLeftElbow     = 13
	JointRightElbow    = 14
	JointLeftWrist     = 15
	JointRightWrist    = 16
	JointLeftIndex     = 19
	JointRightIndex    = 20
	JointLeftHip       = 23
	JointRightHip      = 24
	JointLeftKnee      = 25
	JointRightKnee     = 26
	JointLeftAnkle     = 27
	JointRightAnkle    = 28
	JointLeftFoot      = 31
	JointRightFoot     = 32
)

// Keypoint 单个关节点，坐标为归一化 [0,1]
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// RawFrame 采样得到的一帧原始图像（RGB24）
type RawFrame struct {
	Index       int
	TimestampMs float64
	Width       int
	Height      int
	Pixels      []byte
}

// PoseFrame 单帧姿态数据。序列按 FrameIndex 连续无空洞，
// 低置信度帧由相邻锚点线性插值补齐并标记 Interpolated。
type PoseFrame struct {
	FrameIndex   int        `json:"frame_index"`
	TimestampMs  float64    `json:"timestamp_ms"`
	Keypoints    []Keypoint `json:"keypoints"` // 长度固定 NumJoints
	Interpolated bool       `json:"interpolated"`

	// 派生特征，装配阶段计算
	CenterOfMassX  float64 `json:"com_x"`
	CenterOfMassY  float64 `json:"com_y"`
	BoardAngle     float64 `json:"board_angle"` // 两脚连线的水平倾角（度）
	KneeAngleLeft  float64 `json:"knee_angle_left"`
	KneeAngleRight float64 `json:"knee_angle_right"`
	Airborne       bool    `json:"airborne"`
}

// PoseEstimate 姿态推理的单帧输出。Detected=false 表示低置信度标记，
// 推理器不自行捏造关节点，由装配阶段插值。
type PoseEstimate struct {
	Detected  bool       `json:"detected"`
	Keypoints []Keypoint `json:"keypoints"`
}

// PoseEstimator 不透明的姿态推理函数
type PoseEstimator interface {
	Estimate(ctx context.Context, frame *RawFrame) (*PoseEstimate, error)
}

// Storage 产物存储协作方。key 以任务 ID 作命名空间前缀，跨任务无需加锁。
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (ref string, err error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Presign(ref string, expireSeconds int64) (string, error)
	Delete(ctx context.Context, ref string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// CancelChecker 协作式取消标志，在阶段边界检查
type CancelChecker interface {
	Cancelled(ctx context.Context, jobID int64) bool
}

// Notifier 完成/失败通知，只发一次，不重试
type Notifier interface {
	Notify(ctx context.Context, userID int64, event string, payload map[string]interface{})
}

// Scores 评分三元组加反馈
type Scores struct {
	Overall    float64  `json:"overall"`
	Difficulty float64  `json:"difficulty"`
	Stability  float64  `json:"stability"`
	Feedback   []string `json:"feedback"`
}
