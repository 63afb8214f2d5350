package pipeline

import (
	"math"

	"github.com/reride/reride_go_server/internal/model"
)

// 综合分的固定权重：稳定性 0.4 + 难度 0.4 + 完整度 0.2
const (
	weightStability  = 0.4
	weightDifficulty = 0.4
	weightCoverage   = 0.2
)

// 各动作标签的固有难度权重
var difficultyWeights = map[string]float64{
	"straight_ride":   2,
	"ollie":           10,
	"nollie":          12,
	LabelJumpStraight: 10,
	LabelJump180:      18,
	LabelJump360:      30,
	LabelGrabIndy:     22,
	"grab_mute":       24,
	"rail_50_50":      20,
	"rail_boardslide": 26,
	"butter":          12,
	LabelCarving:      8,
}

// 反馈模板，阈值触发，相同输入产出完全一致
const (
	feedbackNoPose      = "未能在视频中检测到人体姿态"
	feedbackKneeHigh    = "膝盖弯曲不足，压低重心可以提升稳定性"
	feedbackKneeLow     = "膝盖弯曲过度，适当站直有助于保持平衡"
	feedbackKneeGood    = "膝盖弯曲角度保持得很好"
	feedbackEdgeControl = "板刃角度波动较大，建议加强刃控练习"
	feedbackLowStable   = "身体晃动明显，注意保持重心稳定"
	feedbackTierHigh    = "整体表现非常出色！"
	feedbackTierMid     = "不错的滑行，参考以下反馈继续提升。"
	feedbackTierLow     = "还在打基础的阶段，坚持练习！"
)

// Scorer 把姿态序列与动作段聚合为评分三元组加反馈。
type Scorer struct {
	StabilityWindow int
	StabilityStride int
}

func NewScorer(window, stride int) *Scorer {
	return &Scorer{StabilityWindow: window, StabilityStride: stride}
}

// Score 计算 overall/difficulty/stability（各自落在 [0,100]）与反馈。
// 全插值的空白片段给出合法的低分而不是报错。
func (s *Scorer) Score(series []PoseFrame, segments []model.TrickSegment) (*Scores, error) {
	if len(series) == 0 {
		return &Scores{Feedback: []string{feedbackNoPose}}, nil
	}

	var feedback []string

	// 稳定性：重心纵向抖动的滑动窗口方差
	jitter := s.windowJitter(series)
	stability := clampScore(100 - jitter*500)

	// 膝角反馈
	var kneeSum float64
	for i := range series {
		kneeSum += (series[i].KneeAngleLeft + series[i].KneeAngleRight) / 2
	}
	avgKnee := kneeSum / float64(len(series))
	switch {
	case avgKnee > 170:
		feedback = append(feedback, feedbackKneeHigh)
		stability *= 0.8
	case avgKnee < 120 && avgKnee > 0:
		feedback = append(feedback, feedbackKneeLow)
	case avgKnee > 0:
		feedback = append(feedback, feedbackKneeGood)
	}

	// 板刃角度波动
	if boardAngleStd(series) > 15 {
		feedback = append(feedback, feedbackEdgeControl)
	}

	if stability < 40 {
		feedback = append(feedback, feedbackLowStable)
	}

	// 难度：动作段固有权重 × 置信度
	var difficulty float64
	for _, seg := range segments {
		difficulty += difficultyWeights[seg.Label] * seg.Confidence
	}
	difficulty = clampScore(difficulty)

	// 完整度：非插值帧占比，奖励高保真输入
	coverage := SeriesCoverage(series)

	overall := clampScore(weightStability*stability + weightDifficulty*difficulty + weightCoverage*coverage*100)

	switch {
	case overall >= 80:
		feedback = append([]string{feedbackTierHigh}, feedback...)
	case overall >= 60:
		feedback = append([]string{feedbackTierMid}, feedback...)
	default:
		feedback = append([]string{feedbackTierLow}, feedback...)
	}

	return &Scores{
		Overall:    round1(overall),
		Difficulty: round1(difficulty),
		Stability:  round1(stability),
		Feedback:   feedback,
	}, nil
}

// windowJitter 滑动窗口内重心 y 标准差的均值
func (s *Scorer) windowJitter(series []PoseFrame) float64 {
	w := s.StabilityWindow
	stride := s.StabilityStride
	if w <= 1 || len(series) < w {
		return stddev(comY(series))
	}

	var sum float64
	count := 0
	for i := 0; i+w <= len(series); i += stride {
		sum += stddev(comY(series[i : i+w]))
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func comY(series []PoseFrame) []float64 {
	ys := make([]float64, len(series))
	for i := range series {
		ys[i] = series[i].CenterOfMassY
	}
	return ys
}

func boardAngleStd(series []PoseFrame) float64 {
	angles := make([]float64, len(series))
	for i := range series {
		angles[i] = math.Abs(series[i].BoardAngle)
	}
	return stddev(angles)
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)))
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
