package camera

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMockHandle(t *testing.T) (*StreamHandle, *MockStream) {
	t.Helper()
	platform := NewMockPlatform(VideoDevice("A", "Cam"))
	stream, err := platform.OpenStream(context.Background(), "A")
	require.NoError(t, err)

	d := VideoDevice("A", "Cam")
	return NewStreamHandle(&d, stream), stream.(*MockStream)
}

func TestStreamHandle_StopIsIdempotent(t *testing.T) {
	handle, stream := openMockHandle(t)

	require.NoError(t, handle.Stop())
	require.NoError(t, handle.Stop())

	assert.True(t, handle.Stopped())
	assert.True(t, stream.Stopped())
	assert.Equal(t, 1, stream.StopCalls())
}

func TestStreamHandle_PauseResume(t *testing.T) {
	handle, stream := openMockHandle(t)

	handle.Pause()
	assert.True(t, handle.Paused())
	assert.False(t, stream.Enabled())
	assert.False(t, stream.Stopped(), "一時停止ではデバイスを解放しない")

	handle.Resume()
	assert.False(t, handle.Paused())
	assert.True(t, stream.Enabled())
}

func TestStreamHandle_PauseAfterStopIsNoop(t *testing.T) {
	handle, stream := openMockHandle(t)

	require.NoError(t, handle.Stop())
	handle.Resume()

	assert.False(t, stream.Enabled())
	assert.False(t, handle.Paused())
}

func TestStreamHandle_NilDescriptor(t *testing.T) {
	handle := NewStreamHandle(nil, &MockStream{})
	assert.Equal(t, "", handle.DeviceID())
	assert.NoError(t, handle.Stop())
}
