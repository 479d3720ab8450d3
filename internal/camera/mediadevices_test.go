package camera

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFrameSource struct {
	frames   int
	releases int
	enableAt int // この回数目の読み取りから有効になる
}

func (s *fakeFrameSource) read() (image.Image, func(), error) {
	s.frames++
	return image.NewRGBA(image.Rect(0, 0, 640, 480)), func() { s.releases++ }, nil
}

func (s *fakeFrameSource) enabled() bool {
	return s.frames >= s.enableAt
}

func TestFirstEnabledFrame(t *testing.T) {
	src := &fakeFrameSource{enableAt: 1}

	res, err := firstEnabledFrame(context.Background(), src.read, src.enabled)
	require.NoError(t, err)
	assert.Equal(t, Resolution{Width: 640, Height: 480}, res)
	assert.Equal(t, 1, src.frames)
	assert.Equal(t, 1, src.releases)
}

func TestFirstEnabledFrame_SkipsFramesWhilePaused(t *testing.T) {
	src := &fakeFrameSource{enableAt: 3}

	res, err := firstEnabledFrame(context.Background(), src.read, src.enabled)
	require.NoError(t, err)
	assert.Equal(t, Resolution{Width: 640, Height: 480}, res)
	assert.Equal(t, 3, src.frames, "一時停止中の2フレームは捨てる")
	assert.Equal(t, 3, src.releases)
}

func TestFirstEnabledFrame_StopsWhenContextEnds(t *testing.T) {
	src := &fakeFrameSource{enableAt: 1 << 30}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := firstEnabledFrame(ctx, src.read, src.enabled)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, src.releases)
}

func TestFirstEnabledFrame_ReadError(t *testing.T) {
	readErr := errors.New("track closed")
	read := func() (image.Image, func(), error) { return nil, nil, readErr }

	_, err := firstEnabledFrame(context.Background(), read, func() bool { return true })
	require.ErrorIs(t, err, readErr)
}

func TestMediaTrack_SetEnabled(t *testing.T) {
	mt := &mediaTrack{}
	mt.enabled.Store(true)

	mt.SetEnabled(false)
	assert.False(t, mt.Enabled())
	mt.SetEnabled(true)
	assert.True(t, mt.Enabled())
}
