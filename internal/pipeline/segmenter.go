package pipeline

import (
	"math"
	"sort"

	"github.com/reride/reride_go_server/internal/model"
)

// 支持的动作标签
const (
	LabelJumpStraight = "jump_straight"
	LabelJump180      = "jump_180"
	LabelJump360      = "jump_360"
	LabelGrabIndy     = "grab_indy"
	LabelCarving      = "carving"
)

// Segmenter 在完整姿态序列上切分并分类动作段。
// 段边界同时依赖前后文，所以不做流式处理。
type Segmenter struct {
	MinSegmentFrames int
	TieBreakEpsilon  float64

	carvingWindow int // 地面动作的滑动窗口
}

func NewSegmenter(minSegmentFrames int, tieBreakEpsilon float64) *Segmenter {
	return &Segmenter{
		MinSegmentFrames: minSegmentFrames,
		TieBreakEpsilon:  tieBreakEpsilon,
		carvingWindow:    10,
	}
}

// candidate 一个候选段标签
type candidate struct {
	label      string
	confidence float64
}

// Segment 产出按 start_frame 非降序、两两不重叠的动作段，
// end_frame 为开区间。短于最小段长的候选并入中性间隙。
// 派生特征中出现 NaN 视为模型输出非法，返回 InferenceError。
func (s *Segmenter) Segment(series []PoseFrame, style StyleProfile) ([]model.TrickSegment, error) {
	if err := validateSeries(series); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return []model.TrickSegment{}, nil
	}

	var segments []model.TrickSegment

	// 滞空段：跳跃类动作
	for _, run := range airborneRuns(series, s.MinSegmentFrames) {
		segments = append(segments, s.classifyAirborne(series, run[0], run[1], style))
	}

	// 地面段：卡宾等刃上动作
	segments = append(segments, s.detectCarving(series)...)

	sort.Slice(segments, func(i, j int) bool {
		if segments[i].StartFrame != segments[j].StartFrame {
			return segments[i].StartFrame < segments[j].StartFrame
		}
		return segments[i].EndFrame < segments[j].EndFrame
	})

	return mergeOverlaps(segments), nil
}

// validateSeries 拒绝含 NaN 的输入
func validateSeries(series []PoseFrame) error {
	for i := range series {
		pf := &series[i]
		if math.IsNaN(pf.BoardAngle) || math.IsNaN(pf.CenterOfMassY) ||
			math.IsNaN(pf.KneeAngleLeft) || math.IsNaN(pf.KneeAngleRight) {
			return NewError(KindInference, "NaN in derived features at frame %d", pf.FrameIndex)
		}
		for j, kp := range pf.Keypoints {
			if math.IsNaN(kp.X) || math.IsNaN(kp.Y) || math.IsNaN(kp.Confidence) {
				return NewError(KindInference, "NaN keypoint %d at frame %d", j, pf.FrameIndex)
			}
		}
	}
	return nil
}

// airborneRuns 连续滞空区间 [start, end)（序列下标），短于 minLen 的丢弃
func airborneRuns(series []PoseFrame, minLen int) [][2]int {
	var runs [][2]int
	start := -1
	for i := range series {
		if series[i].Airborne && start < 0 {
			start = i
		} else if !series[i].Airborne && start >= 0 {
			if i-start >= minLen {
				runs = append(runs, [2]int{start, i})
			}
			start = -1
		}
	}
	if start >= 0 && len(series)-start >= minLen {
		runs = append(runs, [2]int{start, len(series)})
	}
	return runs
}

// classifyAirborne 对滞空区间分类（规则版）。
// 候选置信度落在平局带内时，优先风格偏好的标签，其次取更长覆盖的候选。
func (s *Segmenter) classifyAirborne(series []PoseFrame, start, end int, style StyleProfile) model.TrickSegment {
	window := series[start:end]

	rotation := shoulderRotation(window)
	hasGrab := detectGrab(window)

	var cands []candidate
	if hasGrab {
		cands = append(cands, candidate{LabelGrabIndy, 0.6})
	}
	if rotation > 150 {
		cands = append(cands, candidate{LabelJump360, 0.5 + math.Min(0.4, rotation/500)})
	} else if rotation > 80 {
		cands = append(cands, candidate{LabelJump180, 0.6 + math.Min(0.3, rotation/300)})
	}
	// 直跳只是兜底标签，不和更具体的候选竞争
	if len(cands) == 0 {
		cands = append(cands, candidate{LabelJumpStraight, 0.7})
	}

	best := s.pickCandidate(cands, style)

	return model.TrickSegment{
		Label:       best.label,
		Confidence:  round2(best.confidence),
		StartFrame:  series[start].FrameIndex,
		EndFrame:    series[end-1].FrameIndex + 1,
		StartTimeMs: series[start].TimestampMs,
		EndTimeMs:   series[end-1].TimestampMs,
	}
}

// pickCandidate 取最高置信度；平局带内先看风格偏好
func (s *Segmenter) pickCandidate(cands []candidate, style StyleProfile) candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.confidence > best.confidence {
			best = c
		}
	}
	for _, c := range cands {
		if c.label == best.label {
			continue
		}
		if best.confidence-c.confidence <= s.TieBreakEpsilon && style.prefers(c.label) && !style.prefers(best.label) {
			best = c
		}
	}
	return best
}

// shoulderRotation 肩线朝向的总变化量（度）
func shoulderRotation(window []PoseFrame) float64 {
	if len(window) < 2 {
		return 0
	}
	angle := func(pf *PoseFrame) float64 {
		l := pf.Keypoints[JointLeftShoulder]
		r := pf.Keypoints[JointRightShoulder]
		return math.Atan2(r.Y-l.Y, r.X-l.X) * 180 / math.Pi
	}
	return math.Abs(angle(&window[len(window)-1]) - angle(&window[0]))
}

// detectGrab 手是否贴近双脚中点
func detectGrab(window []PoseFrame) bool {
	for i := range window {
		kps := window[i].Keypoints
		fx := (kps[JointLeftFoot].X + kps[JointRightFoot].X) / 2
		fy := (kps[JointLeftFoot].Y + kps[JointRightFoot].Y) / 2
		if math.Hypot(kps[JointLeftIndex].X-fx, kps[JointLeftIndex].Y-fy) < 0.1 ||
			math.Hypot(kps[JointRightIndex].X-fx, kps[JointRightIndex].Y-fy) < 0.1 {
			return true
		}
	}
	return false
}

// detectCarving 板刃角度大幅变化的非滞空窗口
func (s *Segmenter) detectCarving(series []PoseFrame) []model.TrickSegment {
	var segments []model.TrickSegment
	w := s.carvingWindow
	stride := w / 2

	for i := 0; i+w <= len(series); i += stride {
		window := series[i : i+w]
		if anyAirborne(window) {
			continue
		}
		lo, hi := window[0].BoardAngle, window[0].BoardAngle
		for j := range window {
			lo = math.Min(lo, window[j].BoardAngle)
			hi = math.Max(hi, window[j].BoardAngle)
		}
		angleRange := hi - lo
		if angleRange > 20 {
			segments = append(segments, model.TrickSegment{
				Label:       LabelCarving,
				Confidence:  round2(math.Min(0.9, 0.5+angleRange/100)),
				StartFrame:  window[0].FrameIndex,
				EndFrame:    window[len(window)-1].FrameIndex + 1,
				StartTimeMs: window[0].TimestampMs,
				EndTimeMs:   window[len(window)-1].TimestampMs,
			})
		}
	}
	return segments
}

func anyAirborne(window []PoseFrame) bool {
	for i := range window {
		if window[i].Airborne {
			return true
		}
	}
	return false
}

// mergeOverlaps 保证段两两不重叠：同标签相邻/重叠段合并，
// 异标签重叠保留置信度更高者。输入已按 start_frame 排序。
func mergeOverlaps(segments []model.TrickSegment) []model.TrickSegment {
	if len(segments) == 0 {
		return []model.TrickSegment{}
	}
	out := segments[:1]
	for _, seg := range segments[1:] {
		last := &out[len(out)-1]
		if seg.StartFrame >= last.EndFrame {
			out = append(out, seg)
			continue
		}
		if seg.Label == last.Label {
			if seg.EndFrame > last.EndFrame {
				last.EndFrame = seg.EndFrame
				last.EndTimeMs = seg.EndTimeMs
			}
			last.Confidence = math.Max(last.Confidence, seg.Confidence)
			continue
		}
		if seg.Confidence > last.Confidence {
			*last = seg
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
