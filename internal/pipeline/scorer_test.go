package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reride/reride_go_server/internal/model"
)

func newTestScorer() *Scorer {
	return NewScorer(10, 5)
}

func TestScore_EmptySeries(t *testing.T) {
	scores, err := newTestScorer().Score(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 0.0, scores.Overall)
	assert.Equal(t, 0.0, scores.Difficulty)
	assert.Equal(t, 0.0, scores.Stability)
	assert.Equal(t, []string{feedbackNoPose}, scores.Feedback)
}

func TestScore_StableStance(t *testing.T) {
	// 完全静止的站姿：零抖动、满完整度、无动作段
	scores, err := newTestScorer().Score(testSeries(20), nil)
	require.NoError(t, err)

	assert.Equal(t, 100.0, scores.Stability)
	assert.Equal(t, 0.0, scores.Difficulty)
	// 0.4*100 + 0.4*0 + 0.2*100
	assert.Equal(t, 60.0, scores.Overall)
	assert.Equal(t, []string{feedbackTierMid, feedbackKneeGood}, scores.Feedback)
}

func TestScore_Deterministic(t *testing.T) {
	series := testSeries(30, 10, 11, 12)
	segments := []model.TrickSegment{{Label: LabelJump180, Confidence: 0.85, StartFrame: 10, EndFrame: 13}}

	a, err := newTestScorer().Score(series, segments)
	require.NoError(t, err)
	b, err := newTestScorer().Score(series, segments)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestScore_DifficultyWeights(t *testing.T) {
	series := testSeries(20)
	segments := []model.TrickSegment{
		{Label: LabelJump360, Confidence: 0.9},
		{Label: LabelCarving, Confidence: 0.5},
	}

	scores, err := newTestScorer().Score(series, segments)
	require.NoError(t, err)

	// 30*0.9 + 8*0.5
	assert.Equal(t, 31.0, scores.Difficulty)
	// 0.4*100 + 0.4*31 + 0.2*100
	assert.InDelta(t, 72.4, scores.Overall, 0.01)
}

func TestScore_DifficultyClamped(t *testing.T) {
	series := testSeries(20)
	var segments []model.TrickSegment
	for i := 0; i < 5; i++ {
		segments = append(segments, model.TrickSegment{Label: LabelJump360, Confidence: 1.0})
	}

	scores, err := newTestScorer().Score(series, segments)
	require.NoError(t, err)

	assert.Equal(t, 100.0, scores.Difficulty)
	assert.Equal(t, 100.0, scores.Overall)
	assert.Equal(t, feedbackTierHigh, scores.Feedback[0])
}

func TestScore_KneeHighPenalty(t *testing.T) {
	series := testSeries(20)
	for i := range series {
		series[i].KneeAngleLeft = 176
		series[i].KneeAngleRight = 176
	}

	scores, err := newTestScorer().Score(series, nil)
	require.NoError(t, err)

	// 站太直：稳定性打八折
	assert.Equal(t, 80.0, scores.Stability)
	assert.Contains(t, scores.Feedback, feedbackKneeHigh)
	assert.NotContains(t, scores.Feedback, feedbackKneeGood)
}

func TestScore_KneeLow(t *testing.T) {
	series := testSeries(20)
	for i := range series {
		series[i].KneeAngleLeft = 100
		series[i].KneeAngleRight = 100
	}

	scores, err := newTestScorer().Score(series, nil)
	require.NoError(t, err)

	assert.Equal(t, 100.0, scores.Stability)
	assert.Contains(t, scores.Feedback, feedbackKneeLow)
}

func TestScore_EdgeControlFeedback(t *testing.T) {
	series := testSeries(20)
	for i := range series {
		series[i].BoardAngle = float64((i % 2) * 40)
	}

	scores, err := newTestScorer().Score(series, nil)
	require.NoError(t, err)
	assert.Contains(t, scores.Feedback, feedbackEdgeControl)
}

func TestScore_LowStability(t *testing.T) {
	series := testSeries(20)
	for i := range series {
		if i%2 == 0 {
			series[i].CenterOfMassY = 0.2
		} else {
			series[i].CenterOfMassY = 0.8
		}
	}

	scores, err := newTestScorer().Score(series, nil)
	require.NoError(t, err)

	assert.Equal(t, 0.0, scores.Stability)
	assert.Contains(t, scores.Feedback, feedbackLowStable)
	assert.Equal(t, feedbackTierLow, scores.Feedback[0])
}

func TestScore_CoverageLowersOverall(t *testing.T) {
	full := testSeries(20)
	half := testSeries(20)
	for i := 0; i < 10; i++ {
		half[i].Interpolated = true
	}

	a, err := newTestScorer().Score(full, nil)
	require.NoError(t, err)
	b, err := newTestScorer().Score(half, nil)
	require.NoError(t, err)

	assert.Greater(t, a.Overall, b.Overall)
	// 完整度只差 0.5，对应总分差 0.2*50
	assert.InDelta(t, 10.0, a.Overall-b.Overall, 0.01)
}

func TestScore_Rounding(t *testing.T) {
	series := testSeries(20)
	segments := []model.TrickSegment{{Label: LabelJump360, Confidence: 0.84}}

	scores, err := newTestScorer().Score(series, segments)
	require.NoError(t, err)

	// 30*0.84 = 25.2 → overall 70.08 四舍五入到一位小数
	assert.Equal(t, 25.2, scores.Difficulty)
	assert.Equal(t, 70.1, scores.Overall)
}

func TestWindowJitter_ShortSeries(t *testing.T) {
	s := NewScorer(10, 5)
	// 序列短于窗口时退化为整段标准差
	series := testSeries(5)
	assert.Equal(t, 0.0, s.windowJitter(series))

	series[0].CenterOfMassY = 0.2
	assert.Greater(t, s.windowJitter(series), 0.0)
}
