package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reride/reride_go_server/internal/model"
)

func newTestSegmenter() *Segmenter {
	return NewSegmenter(3, 0.05)
}

// setAirborne 手工指定滞空帧，便于精确控制段边界
func setAirborne(series []PoseFrame, from, to int) {
	for i := from; i < to; i++ {
		series[i].Airborne = true
	}
}

// rotateShoulders 把某帧的肩线转到指定角度（度）
func rotateShoulders(pf *PoseFrame, degrees float64) {
	rad := degrees * math.Pi / 180
	cx, cy := 0.5, 0.35
	r := 0.05
	pf.Keypoints[JointLeftShoulder] = Keypoint{X: cx - r*math.Cos(rad), Y: cy - r*math.Sin(rad), Confidence: 0.9}
	pf.Keypoints[JointRightShoulder] = Keypoint{X: cx + r*math.Cos(rad), Y: cy + r*math.Sin(rad), Confidence: 0.9}
}

func TestSegment_Empty(t *testing.T) {
	segments, err := newTestSegmenter().Segment(nil, ResolveStyle("default"))
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestSegment_NaNRejected(t *testing.T) {
	series := testSeries(10)
	series[3].BoardAngle = math.NaN()

	_, err := newTestSegmenter().Segment(series, ResolveStyle("default"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInference))
}

func TestAirborneRuns(t *testing.T) {
	series := testSeries(20)
	setAirborne(series, 2, 7)   // 长度 5，保留
	setAirborne(series, 10, 12) // 长度 2，低于最小段长丢弃
	setAirborne(series, 17, 20) // 尾部开区间，长度 3 保留

	runs := airborneRuns(series, 3)
	require.Len(t, runs, 2)
	assert.Equal(t, [2]int{2, 7}, runs[0])
	assert.Equal(t, [2]int{17, 20}, runs[1])
}

func TestSegment_JumpStraight(t *testing.T) {
	series := testSeries(20)
	setAirborne(series, 5, 10)

	segments, err := newTestSegmenter().Segment(series, ResolveStyle("default"))
	require.NoError(t, err)
	require.Len(t, segments, 1)

	seg := segments[0]
	assert.Equal(t, LabelJumpStraight, seg.Label)
	assert.Equal(t, 0.7, seg.Confidence)
	assert.Equal(t, 5, seg.StartFrame)
	assert.Equal(t, 10, seg.EndFrame) // 开区间
	assert.Equal(t, series[5].TimestampMs, seg.StartTimeMs)
	assert.Equal(t, series[9].TimestampMs, seg.EndTimeMs)
}

func TestSegment_Jump180(t *testing.T) {
	series := testSeries(20)
	setAirborne(series, 5, 10)
	rotateShoulders(&series[9], 90)

	segments, err := newTestSegmenter().Segment(series, ResolveStyle("default"))
	require.NoError(t, err)
	require.Len(t, segments, 1)

	assert.Equal(t, LabelJump180, segments[0].Label)
	// 0.6 + min(0.3, 90/300)
	assert.InDelta(t, 0.9, segments[0].Confidence, 0.01)
}

func TestSegment_Jump360(t *testing.T) {
	series := testSeries(20)
	setAirborne(series, 5, 10)
	rotateShoulders(&series[9], 170)

	segments, err := newTestSegmenter().Segment(series, ResolveStyle("default"))
	require.NoError(t, err)
	require.Len(t, segments, 1)

	assert.Equal(t, LabelJump360, segments[0].Label)
	assert.Greater(t, segments[0].Confidence, 0.7)
}

func TestSegment_GrabIndy(t *testing.T) {
	series := testSeries(20)
	setAirborne(series, 5, 10)

	// 手伸到双脚中点附近
	kps := series[7].Keypoints
	fx := (kps[JointLeftFoot].X + kps[JointRightFoot].X) / 2
	fy := (kps[JointLeftFoot].Y + kps[JointRightFoot].Y) / 2
	series[7].Keypoints[JointRightIndex] = Keypoint{X: fx + 0.02, Y: fy, Confidence: 0.9}

	segments, err := newTestSegmenter().Segment(series, ResolveStyle("default"))
	require.NoError(t, err)
	require.Len(t, segments, 1)

	assert.Equal(t, LabelGrabIndy, segments[0].Label)
	assert.Equal(t, 0.6, segments[0].Confidence)
}

func TestSegment_Carving(t *testing.T) {
	series := testSeries(20)
	// 前半窗口刃角 +14°，后半 -14°，窗口内角度范围 28° 触发卡宾
	for i := 0; i < 10; i++ {
		if i < 5 {
			series[i].BoardAngle = 14
		} else {
			series[i].BoardAngle = -14
		}
	}

	segments, err := newTestSegmenter().Segment(series, ResolveStyle("carve"))
	require.NoError(t, err)
	require.NotEmpty(t, segments)

	assert.Equal(t, LabelCarving, segments[0].Label)
	// min(0.9, 0.5 + 28/100)
	assert.InDelta(t, 0.78, segments[0].Confidence, 0.01)
}

func TestSegment_CarvingSkipsAirborneWindows(t *testing.T) {
	series := testSeries(20)
	for i := range series {
		series[i].BoardAngle = float64((i % 2) * 30)
	}
	setAirborne(series, 0, 20)

	segments, err := newTestSegmenter().Segment(series, ResolveStyle("default"))
	require.NoError(t, err)
	for _, seg := range segments {
		assert.NotEqual(t, LabelCarving, seg.Label)
	}
}

func TestSegment_Invariants(t *testing.T) {
	series := testSeries(60)
	setAirborne(series, 5, 10)
	setAirborne(series, 30, 36)
	rotateShoulders(&series[35], 90)
	for i := 45; i < 55; i++ {
		series[i].BoardAngle = float64((i % 2) * 25)
	}

	segments, err := newTestSegmenter().Segment(series, ResolveStyle("default"))
	require.NoError(t, err)
	require.NotEmpty(t, segments)

	for i, seg := range segments {
		assert.Less(t, seg.StartFrame, seg.EndFrame, "segment %d must be non-empty", i)
		if i > 0 {
			assert.GreaterOrEqual(t, seg.StartFrame, segments[i-1].StartFrame, "segments must be sorted")
			assert.GreaterOrEqual(t, seg.StartFrame, segments[i-1].EndFrame, "segments must not overlap")
		}
	}
}

func TestPickCandidate_TieBreak(t *testing.T) {
	s := newTestSegmenter()
	cands := []candidate{
		{LabelJumpStraight, 0.7},
		{LabelGrabIndy, 0.68},
	}

	// 平局带内（差 0.02 ≤ 0.05）：park 风格偏好 grab
	got := s.pickCandidate(cands, ResolveStyle("park"))
	assert.Equal(t, LabelGrabIndy, got.label)

	// 无偏好风格取最高置信度
	got = s.pickCandidate(cands, ResolveStyle("default"))
	assert.Equal(t, LabelJumpStraight, got.label)

	// 差距超出平局带，风格偏好不生效
	cands[1].confidence = 0.6
	got = s.pickCandidate(cands, ResolveStyle("park"))
	assert.Equal(t, LabelJumpStraight, got.label)
}

func TestMergeOverlaps(t *testing.T) {
	t.Run("same label merges", func(t *testing.T) {
		segments := []model.TrickSegment{
			{Label: LabelCarving, Confidence: 0.7, StartFrame: 0, EndFrame: 10},
			{Label: LabelCarving, Confidence: 0.8, StartFrame: 5, EndFrame: 15},
		}
		out := mergeOverlaps(segments)
		require.Len(t, out, 1)
		assert.Equal(t, 0, out[0].StartFrame)
		assert.Equal(t, 15, out[0].EndFrame)
		assert.Equal(t, 0.8, out[0].Confidence)
	})

	t.Run("different label keeps higher confidence", func(t *testing.T) {
		segments := []model.TrickSegment{
			{Label: LabelJump180, Confidence: 0.9, StartFrame: 0, EndFrame: 10},
			{Label: LabelCarving, Confidence: 0.6, StartFrame: 5, EndFrame: 15},
		}
		out := mergeOverlaps(segments)
		require.Len(t, out, 1)
		assert.Equal(t, LabelJump180, out[0].Label)
	})

	t.Run("disjoint unchanged", func(t *testing.T) {
		segments := []model.TrickSegment{
			{Label: LabelJump180, Confidence: 0.9, StartFrame: 0, EndFrame: 10},
			{Label: LabelCarving, Confidence: 0.6, StartFrame: 10, EndFrame: 20},
		}
		out := mergeOverlaps(segments)
		assert.Len(t, out, 2)
	})
}
