package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeRunner(stdout []byte, stderr string, err error) CommandRunner {
	return func(_ context.Context, _ string, _ []string, _ []byte) ([]byte, string, error) {
		return stdout, stderr, err
	}
}

func TestFrameSampler_Sample(t *testing.T) {
	frameSize := sampleWidth * sampleHeight * 3
	s := NewFrameSampler("ffmpeg")
	s.Run = fakeRunner(make([]byte, frameSize*3), "", nil)

	frames, err := s.Sample(context.Background(), []byte("fake video"), 15)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	for i, f := range frames {
		assert.Equal(t, i, f.Index)
		assert.Equal(t, sampleWidth, f.Width)
		assert.Equal(t, sampleHeight, f.Height)
		assert.Len(t, f.Pixels, frameSize)
	}
	assert.Equal(t, 0.0, frames[0].TimestampMs)
	assert.InDelta(t, 1000.0/15.0, frames[1].TimestampMs, 1e-9)
}

func TestFrameSampler_Sample_TruncatedTail(t *testing.T) {
	// 尾部不足一帧的字节直接丢弃
	frameSize := sampleWidth * sampleHeight * 3
	s := NewFrameSampler("ffmpeg")
	s.Run = fakeRunner(make([]byte, frameSize*2+100), "", nil)

	frames, err := s.Sample(context.Background(), []byte("fake video"), 15)
	require.NoError(t, err)
	assert.Len(t, frames, 2)
}

func TestFrameSampler_Sample_EmptyPayload(t *testing.T) {
	s := NewFrameSampler("ffmpeg")
	s.Run = fakeRunner(nil, "", nil)

	_, err := s.Sample(context.Background(), nil, 15)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindEmptyVideo))
}

func TestFrameSampler_Sample_NoFrames(t *testing.T) {
	s := NewFrameSampler("ffmpeg")
	s.Run = fakeRunner([]byte{}, "", nil)

	_, err := s.Sample(context.Background(), []byte("fake video"), 15)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindEmptyVideo))
}

func TestFrameSampler_Sample_DecodeError(t *testing.T) {
	s := NewFrameSampler("ffmpeg")
	s.Run = fakeRunner(nil, "moov atom not found", errors.New("exit status 1"))

	_, err := s.Sample(context.Background(), []byte("not a video"), 15)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDecode))
	assert.Contains(t, err.Error(), "moov atom not found")
}

func TestFrameSampler_Sample_ContextCancelled(t *testing.T) {
	s := NewFrameSampler("ffmpeg")
	s.Run = func(ctx context.Context, _ string, _ []string, _ []byte) ([]byte, string, error) {
		return nil, "", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Sample(ctx, []byte("fake video"), 15)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTimeout))
}

func TestFrameSampler_Sample_DefaultFPS(t *testing.T) {
	frameSize := sampleWidth * sampleHeight * 3
	var gotArgs []string
	s := NewFrameSampler("ffmpeg")
	s.Run = func(_ context.Context, _ string, args []string, _ []byte) ([]byte, string, error) {
		gotArgs = args
		return make([]byte, frameSize), "", nil
	}

	_, err := s.Sample(context.Background(), []byte("fake video"), 0)
	require.NoError(t, err)
	assert.Contains(t, gotArgs, "fps=15,scale=640:360")
}
