package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"
)

// HTTPPoseEstimator 通过 HTTP sidecar 做姿态推理。
// 模型本身对本服务是黑盒，这里只负责输入输出契约。
type HTTPPoseEstimator struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPPoseEstimator(endpoint string, timeout time.Duration) *HTTPPoseEstimator {
	return &HTTPPoseEstimator{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

type estimateRequest struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Pixels string `json:"pixels"` // base64 RGB24
}

// Estimate 推理单帧。网络失败归为 TransientIOError，
// 响应格式非法归为 InferenceError。
func (e *HTTPPoseEstimator) Estimate(ctx context.Context, frame *RawFrame) (*PoseEstimate, error) {
	reqBody, err := json.Marshal(&estimateRequest{
		Width:  frame.Width,
		Height: frame.Height,
		Format: "rgb24",
		Pixels: base64.StdEncoding.EncodeToString(frame.Pixels),
	})
	if err != nil {
		return nil, WrapError(KindInternal, err, "marshal estimate request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint+"/v1/pose/estimate", bytes.NewReader(reqBody))
	if err != nil {
		return nil, WrapError(KindInternal, err, "build estimate request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, WrapError(KindTimeout, ctx.Err(), "pose estimation exceeded stage budget")
		}
		return nil, WrapError(KindTransient, err, "pose sidecar unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, NewError(KindTransient, "pose sidecar returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewError(KindInference, "pose sidecar returned %d", resp.StatusCode)
	}

	var est PoseEstimate
	if err := json.NewDecoder(resp.Body).Decode(&est); err != nil {
		return nil, WrapError(KindInference, err, "malformed pose response")
	}
	return &est, nil
}

// validateEstimate 检查模型输出维度与数值合法性
func validateEstimate(est *PoseEstimate) error {
	if !est.Detected {
		return nil
	}
	if len(est.Keypoints) != NumJoints {
		return NewError(KindInference, "pose output has %d joints, want %d", len(est.Keypoints), NumJoints)
	}
	for i, kp := range est.Keypoints {
		if math.IsNaN(kp.X) || math.IsNaN(kp.Y) || math.IsNaN(kp.Confidence) {
			return NewError(KindInference, "pose output has NaN at joint %d", i)
		}
	}
	return nil
}

// meanConfidence 关节平均置信度
func meanConfidence(kps []Keypoint) float64 {
	if len(kps) == 0 {
		return 0
	}
	var sum float64
	for _, kp := range kps {
		sum += kp.Confidence
	}
	return sum / float64(len(kps))
}

// AssemblePoseSeries 把逐帧推理结果装配为无空洞的姿态序列。
// 低于置信度阈值的帧由最近的前后高置信度锚点线性插值，标记 interpolated。
// 序列首尾缺少锚点的帧置零关节点，同样标记 interpolated —— 片段开头/结尾
// 人物不在画面内是合法情形，不是错误。
func AssemblePoseSeries(estimates []*PoseEstimate, frames []RawFrame, confidenceThreshold float64) ([]PoseFrame, error) {
	if len(estimates) != len(frames) {
		return nil, NewError(KindInternal, "estimate count %d != frame count %d", len(estimates), len(frames))
	}

	n := len(frames)
	series := make([]PoseFrame, n)
	anchored := make([]bool, n)

	for i, est := range estimates {
		series[i] = PoseFrame{
			FrameIndex:  frames[i].Index,
			TimestampMs: frames[i].TimestampMs,
			Keypoints:   make([]Keypoint, NumJoints),
		}
		if est == nil || !est.Detected {
			continue
		}
		if err := validateEstimate(est); err != nil {
			return nil, err
		}
		if meanConfidence(est.Keypoints) < confidenceThreshold {
			continue
		}
		copy(series[i].Keypoints, est.Keypoints)
		anchored[i] = true
	}

	fillGaps(series, anchored)

	for i := range series {
		computeDerived(&series[i])
	}
	markAirborne(series)

	return series, nil
}

// fillGaps 锚点之间线性插值，边界段置零
func fillGaps(series []PoseFrame, anchored []bool) {
	n := len(series)
	prev := -1
	for i := 0; i < n; i++ {
		if anchored[i] {
			prev = i
			continue
		}
		series[i].Interpolated = true

		// 向后找下一个锚点
		next := -1
		for j := i + 1; j < n; j++ {
			if anchored[j] {
				next = j
				break
			}
		}

		if prev >= 0 && next >= 0 {
			t := float64(i-prev) / float64(next-prev)
			for k := 0; k < NumJoints; k++ {
				a := series[prev].Keypoints[k]
				b := series[next].Keypoints[k]
				series[i].Keypoints[k] = Keypoint{
					X:          a.X + (b.X-a.X)*t,
					Y:          a.Y + (b.Y-a.Y)*t,
					Confidence: a.Confidence + (b.Confidence-a.Confidence)*t,
				}
			}
		}
		// prev 或 next 缺失时保持零值关节点
	}
}

// computeDerived 计算重心、板刃角度、膝角等派生特征
func computeDerived(pf *PoseFrame) {
	kps := pf.Keypoints

	// 重心：髋/肩四点均值
	comJoints := []int{JointLeftHip, JointRightHip, JointLeftShoulder, JointRightShoulder}
	var cx, cy float64
	for _, j := range comJoints {
		cx += kps[j].X
		cy += kps[j].Y
	}
	pf.CenterOfMassX = cx / float64(len(comJoints))
	pf.CenterOfMassY = cy / float64(len(comJoints))

	// 板刃角度：两脚连线倾角
	dx := kps[JointRightFoot].X - kps[JointLeftFoot].X
	dy := kps[JointRightFoot].Y - kps[JointLeftFoot].Y
	pf.BoardAngle = math.Atan2(dy, dx) * 180 / math.Pi

	pf.KneeAngleLeft = jointAngle(kps[JointLeftHip], kps[JointLeftKnee], kps[JointLeftAnkle])
	pf.KneeAngleRight = jointAngle(kps[JointRightHip], kps[JointRightKnee], kps[JointRightAnkle])
}

// jointAngle 三点夹角，b 为顶点（度）
func jointAngle(a, b, c Keypoint) float64 {
	bax := a.X - b.X
	bay := a.Y - b.Y
	bcx := c.X - b.X
	bcy := c.Y - b.Y
	dot := bax*bcx + bay*bcy
	na := math.Hypot(bax, bay)
	nc := math.Hypot(bcx, bcy)
	cos := dot / (na*nc + 1e-8)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// markAirborne 估计地面高度并标记滞空帧。
// 脚部 y 的 80 分位视为地面，双脚都高出 5% 以上判定为滞空。
// y 轴向下为正，所以"高于地面"是数值更小。
func markAirborne(series []PoseFrame) {
	if len(series) == 0 {
		return
	}
	footY := make([]float64, 0, len(series)*2)
	for i := range series {
		if series[i].Interpolated && series[i].Keypoints[JointLeftFoot] == (Keypoint{}) {
			continue // 置零的边界帧不参与地面估计
		}
		footY = append(footY, series[i].Keypoints[JointLeftFoot].Y, series[i].Keypoints[JointRightFoot].Y)
	}
	if len(footY) == 0 {
		return
	}
	ground := percentile(footY, 0.8)
	threshold := ground - 0.05

	for i := range series {
		left := series[i].Keypoints[JointLeftFoot].Y
		right := series[i].Keypoints[JointRightFoot].Y
		series[i].Airborne = left < threshold && right < threshold && (left > 0 || right > 0)
	}
}

func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// SeriesCoverage 非插值帧占比，用于评分的完整度项
func SeriesCoverage(series []PoseFrame) float64 {
	if len(series) == 0 {
		return 0
	}
	detected := 0
	for i := range series {
		if !series[i].Interpolated {
			detected++
		}
	}
	return float64(detected) / float64(len(series))
}

// EncodePoseSeries 序列化姿态序列，作为任务中间产物落盘
func EncodePoseSeries(series []PoseFrame) ([]byte, error) {
	data, err := json.Marshal(series)
	if err != nil {
		return nil, fmt.Errorf("encode pose series: %w", err)
	}
	return data, nil
}
