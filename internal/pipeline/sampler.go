package pipeline

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
)

// 采样输出的统一分辨率，姿态坐标归一化后与原始分辨率无关
const (
	sampleWidth  = 640
	sampleHeight = 360
)

// CommandRunner 执行外部命令，测试中可替换
type CommandRunner func(ctx context.Context, name string, args []string, stdin []byte) (stdout []byte, stderr string, err error)

func defaultRunner(ctx context.Context, name string, args []string, stdin []byte) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return out.Bytes(), errBuf.String(), err
}

// FrameSampler 把视频字节解码为定帧率的 RGB 帧序列。
// 对相同输入为纯变换，可从头重新执行。
type FrameSampler struct {
	FFmpegPath string
	Run        CommandRunner
}

func NewFrameSampler(ffmpegPath string) *FrameSampler {
	return &FrameSampler{
		FFmpegPath: ffmpegPath,
		Run:        defaultRunner,
	}
}

// Sample 以 targetFPS 采样视频，返回按帧序号排列的原始帧。
// 容器/编码无法解析返回 DecodeError，解不出帧返回 EmptyVideoError。
func (s *FrameSampler) Sample(ctx context.Context, videoBytes []byte, targetFPS int) ([]RawFrame, error) {
	if len(videoBytes) == 0 {
		return nil, NewError(KindEmptyVideo, "video payload is empty")
	}
	if targetFPS <= 0 {
		targetFPS = 15
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-vf", "fps=" + strconv.Itoa(targetFPS) + ",scale=" + strconv.Itoa(sampleWidth) + ":" + strconv.Itoa(sampleHeight),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	}

	stdout, stderr, err := s.Run(ctx, s.FFmpegPath, args, videoBytes)
	if err != nil {
		if ctx.Err() != nil {
			return nil, WrapError(KindTimeout, ctx.Err(), "frame sampling exceeded stage budget")
		}
		return nil, WrapError(KindDecode, err, "ffmpeg decode failed: %s", strings.TrimSpace(stderr))
	}

	frameSize := sampleWidth * sampleHeight * 3
	total := len(stdout) / frameSize
	if total == 0 {
		return nil, NewError(KindEmptyVideo, "video produced no frames")
	}

	frames := make([]RawFrame, 0, total)
	for i := 0; i < total; i++ {
		frames = append(frames, RawFrame{
			Index:       i,
			TimestampMs: float64(i) * 1000.0 / float64(targetFPS),
			Width:       sampleWidth,
			Height:      sampleHeight,
			Pixels:      stdout[i*frameSize : (i+1)*frameSize],
		})
	}
	return frames, nil
}
