package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/reride/reride_go_server/internal/model"
)

const (
	renderWidth  = 720
	renderHeight = 720
	renderMargin = 100

	// 检测帧与插值帧的平滑权重。插值帧本身是合成数据，
	// 降低其权重避免抖动被放大。
	smoothAlphaDetected     = 0.7
	smoothAlphaInterpolated = 0.3
)

// bone 关节对应表的一条骨骼：姿态关节 → 角色骨架部件
type bone struct {
	a, b  int
	width int
	part  string // body / pants / board
}

// 角色骨架拓扑
var skeletonBones = []bone{
	{JointLeftHip, JointLeftKnee, 10, "pants"},
	{JointLeftKnee, JointLeftAnkle, 8, "pants"},
	{JointRightHip, JointRightKnee, 10, "pants"},
	{JointRightKnee, JointRightAnkle, 8, "pants"},
	{JointLeftShoulder, JointLeftElbow, 8, "body"},
	{JointLeftElbow, JointLeftWrist, 6, "body"},
	{JointRightShoulder, JointRightElbow, 8, "body"},
	{JointRightElbow, JointRightWrist, 6, "body"},
}

// Renderer 把姿态序列映射到角色骨架并产出两个视频产物：
// 完整重建动画和高光剪辑。
type Renderer struct {
	FFmpegPath         string
	ScratchDir         string
	FPS                int
	HighlightPadFrames int
	HighlightMaxFrames int
	Run                CommandRunner
}

func NewRenderer(ffmpegPath, scratchDir string, fps, padFrames int, maxSeconds float64) *Renderer {
	return &Renderer{
		FFmpegPath:         ffmpegPath,
		ScratchDir:         scratchDir,
		FPS:                fps,
		HighlightPadFrames: padFrames,
		HighlightMaxFrames: int(maxSeconds * float64(fps)),
		Run:                defaultRunner,
	}
}

// Render 产出 (动画, 高光) 两个 MP4。编码失败返回 RenderError。
func (r *Renderer) Render(ctx context.Context, series []PoseFrame, segments []model.TrickSegment, style StyleProfile) ([]byte, []byte, error) {
	if len(series) == 0 {
		return nil, nil, NewError(KindRender, "no frames to render")
	}

	smoothed := smoothSeries(series)

	animation, err := r.encode(ctx, smoothed, style)
	if err != nil {
		return nil, nil, err
	}

	highlightFrames := SelectHighlightFrames(smoothed, segments, r.HighlightPadFrames, r.HighlightMaxFrames)
	highlight, err := r.encode(ctx, highlightFrames, style)
	if err != nil {
		return nil, nil, err
	}

	return animation, highlight, nil
}

// smoothSeries 指数平滑关节点，插值帧用更低的权重
func smoothSeries(series []PoseFrame) []PoseFrame {
	out := make([]PoseFrame, len(series))
	prev := make([]Keypoint, NumJoints)
	copy(prev, series[0].Keypoints)

	for i := range series {
		out[i] = series[i]
		alpha := smoothAlphaDetected
		if series[i].Interpolated {
			alpha = smoothAlphaInterpolated
		}
		kps := make([]Keypoint, NumJoints)
		for j := range kps {
			kps[j] = Keypoint{
				X:          prev[j].X + (series[i].Keypoints[j].X-prev[j].X)*alpha,
				Y:          prev[j].Y + (series[i].Keypoints[j].Y-prev[j].Y)*alpha,
				Confidence: series[i].Keypoints[j].Confidence,
			}
		}
		out[i].Keypoints = kps
		prev = kps
	}
	return out
}

// SelectHighlightFrames 高光帧选择：按置信度降序取动作段，
// 前后各补 pad 帧并裁剪到序列边界，总帧数不超过 maxFrames。
// 没有动作段时对全片均匀抽帧。
func SelectHighlightFrames(series []PoseFrame, segments []model.TrickSegment, pad, maxFrames int) []PoseFrame {
	if maxFrames <= 0 || len(series) == 0 {
		return nil
	}

	byIndex := make(map[int]int, len(series))
	for i := range series {
		byIndex[series[i].FrameIndex] = i
	}

	ranked := append([]model.TrickSegment(nil), segments...)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Confidence > ranked[j].Confidence })

	picked := make(map[int]bool)
	var frames []PoseFrame
	for _, seg := range ranked {
		for f := seg.StartFrame - pad; f < seg.EndFrame+pad; f++ {
			idx, ok := byIndex[f]
			if !ok || picked[f] {
				continue
			}
			picked[f] = true
			frames = append(frames, series[idx])
		}
		if len(frames) >= maxFrames {
			break
		}
	}

	if len(frames) == 0 {
		// 无动作段：均匀抽帧
		step := len(series) / maxFrames
		if step < 1 {
			step = 1
		}
		for i := 0; i < len(series); i += step {
			frames = append(frames, series[i])
		}
	}

	sort.Slice(frames, func(i, j int) bool { return frames[i].FrameIndex < frames[j].FrameIndex })
	if len(frames) > maxFrames {
		frames = frames[:maxFrames]
	}
	return frames
}

// encode 渲染帧序列并用 ffmpeg 编码为 MP4
func (r *Renderer) encode(ctx context.Context, frames []PoseFrame, style StyleProfile) ([]byte, error) {
	if len(frames) == 0 {
		return nil, NewError(KindRender, "no frames selected for encoding")
	}

	tmpDir, err := os.MkdirTemp(r.ScratchDir, "render-*")
	if err != nil {
		return nil, WrapError(KindRender, err, "create render scratch dir")
	}
	defer os.RemoveAll(tmpDir)

	for i := range frames {
		img := RenderFrame(&frames[i], i, style)
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, WrapError(KindRender, err, "encode frame %d", i)
		}
		name := filepath.Join(tmpDir, fmt.Sprintf("frame_%06d.png", i))
		if err := os.WriteFile(name, buf.Bytes(), 0644); err != nil {
			return nil, WrapError(KindRender, err, "write frame %d", i)
		}
	}

	outPath := filepath.Join(tmpDir, "out.mp4")
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-framerate", strconv.Itoa(r.FPS),
		"-i", filepath.Join(tmpDir, "frame_%06d.png"),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-crf", "23",
		"-preset", "medium",
		outPath,
	}
	if _, stderr, err := r.Run(ctx, r.FFmpegPath, args, nil); err != nil {
		if ctx.Err() != nil {
			return nil, WrapError(KindTimeout, ctx.Err(), "render exceeded stage budget")
		}
		return nil, NewError(KindRender, "ffmpeg encode failed: %s", strings.TrimSpace(stderr))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, WrapError(KindRender, err, "read encoded video")
	}
	return data, nil
}

// RenderFrame 渲染单帧角色画面
func RenderFrame(pf *PoseFrame, frameNumber int, style StyleProfile) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, renderWidth, renderHeight))
	cs := style.Character

	drawBackground(img, cs, frameNumber)

	toCanvas := func(j int) (int, int) {
		x := renderMargin + int(pf.Keypoints[j].X*float64(renderWidth-2*renderMargin))
		y := renderMargin + int(pf.Keypoints[j].Y*float64(renderHeight-2*renderMargin))
		return x, y
	}

	// 雪板：两脚连线向外延伸的粗线
	lx, ly := toCanvas(JointLeftFoot)
	rx, ry := toCanvas(JointRightFoot)
	drawBoard(img, lx, ly, rx, ry, rgb(cs.Board))

	// 四肢与躯干按骨骼表绘制
	for _, b := range skeletonBones {
		c := rgb(cs.Body)
		if b.part == "pants" {
			c = rgb(cs.Pants)
		}
		ax, ay := toCanvas(b.a)
		bx, by := toCanvas(b.b)
		drawThickLine(img, ax, ay, bx, by, b.width, c)
	}

	// 躯干
	sx1, sy1 := toCanvas(JointLeftShoulder)
	sx2, sy2 := toCanvas(JointRightShoulder)
	hx1, hy1 := toCanvas(JointLeftHip)
	hx2, hy2 := toCanvas(JointRightHip)
	drawThickLine(img, (sx1+sx2)/2, (sy1+sy2)/2, (hx1+hx2)/2, (hy1+hy2)/2, 20, rgb(cs.Body))

	// 头盔
	nx, ny := toCanvas(JointNose)
	fillCircle(img, nx, ny, 25, rgb(cs.Helmet))

	return img
}

func drawBackground(img *image.RGBA, cs CharacterStyle, frameNumber int) {
	sky := rgb(cs.Sky)
	snow := rgb(cs.Snow)
	slopeY := renderHeight * 2 / 3
	for y := 0; y < renderHeight; y++ {
		c := sky
		// 斜坡线随帧号缓慢滚动，制造滑行感
		if y >= slopeY-(frameNumber%20) {
			c = snow
		}
		for x := 0; x < renderWidth; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func drawBoard(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := float64(x2 - x1)
	dy := float64(y2 - y1)
	length := math.Hypot(dx, dy)
	if length < 1 {
		return
	}
	ux, uy := dx/length, dy/length
	extend := 20.0
	p1x := x1 - int(ux*extend)
	p1y := y1 - int(uy*extend)
	p2x := x2 + int(ux*extend)
	p2y := y2 + int(uy*extend)
	drawThickLine(img, p1x, p1y, p2x, p2y, 12, c)
}

// drawThickLine 有宽度的线段（逐点圆刷）
func drawThickLine(img *image.RGBA, x1, y1, x2, y2, width int, c color.RGBA) {
	steps := int(math.Hypot(float64(x2-x1), float64(y2-y1)))
	if steps < 1 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := x1 + int(t*float64(x2-x1))
		y := y1 + int(t*float64(y2-y1))
		fillCircle(img, x, y, width/2, c)
	}
}

func fillCircle(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				x, y := cx+dx, cy+dy
				if x >= 0 && x < renderWidth && y >= 0 && y < renderHeight {
					img.SetRGBA(x, y, c)
				}
			}
		}
	}
}

func rgb(v [3]uint8) color.RGBA {
	return color.RGBA{R: v[0], G: v[1], B: v[2], A: 255}
}
