package camera

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectDevice(t *testing.T) {
	tests := []struct {
		name     string
		devices  []DeviceDescriptor
		deviceID string
		want     string
		wantOK   bool
	}{
		{
			name:    "背面カメラを推定する",
			devices: []DeviceDescriptor{VideoDevice("A", "Front Camera"), VideoDevice("B", "Back Camera")},
			want:    "B",
			wantOK:  true,
		},
		{
			name:    "environment を含むラベル",
			devices: []DeviceDescriptor{VideoDevice("A", "camera2 1, facing front"), VideoDevice("B", "camera2 0, facing ENVIRONMENT")},
			want:    "B",
			wantOK:  true,
		},
		{
			name:    "最初に一致したデバイスを選ぶ",
			devices: []DeviceDescriptor{VideoDevice("A", "Rear Wide"), VideoDevice("B", "Back Tele")},
			want:    "A",
			wantOK:  true,
		},
		{
			name:    "一致しなければ先頭",
			devices: []DeviceDescriptor{VideoDevice("A", "Integrated Webcam"), VideoDevice("B", "USB Cam")},
			want:    "A",
			wantOK:  true,
		},
		{
			name:    "権限取得前の空ラベルは先頭",
			devices: []DeviceDescriptor{VideoDevice("A", ""), VideoDevice("B", "")},
			want:    "A",
			wantOK:  true,
		},
		{
			name:     "ID完全一致",
			devices:  []DeviceDescriptor{VideoDevice("A", "Back Camera"), VideoDevice("B", "Front Camera")},
			deviceID: "B",
			want:     "B",
			wantOK:   true,
		},
		{
			name:     "IDが見つからなければ先頭にフォールバック",
			devices:  []DeviceDescriptor{VideoDevice("A", "Cam")},
			deviceID: "X",
			want:     "A",
			wantOK:   true,
		},
		{
			name:     "ID指定時は背面推定をしない",
			devices:  []DeviceDescriptor{VideoDevice("A", "Front"), VideoDevice("B", "Back")},
			deviceID: "X",
			want:     "A",
			wantOK:   true,
		},
		{
			name:   "空の一覧",
			wantOK: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SelectDevice(tc.devices, tc.deviceID)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, got.DeviceID)
			}
		})
	}
}

func newTestResolver(platform *MockPlatform) *Resolver {
	return NewResolver(NewPermissionGate(platform, nil), platform, nil)
}

func TestResolver_ResolveHeuristic(t *testing.T) {
	platform := NewMockPlatform(VideoDevice("A", "Front Camera"), VideoDevice("B", "Back Camera"))
	resolver := newTestResolver(platform)

	handle, err := resolver.Resolve(context.Background(), "")
	require.NoError(t, err)

	require.NotNil(t, handle.Descriptor)
	assert.Equal(t, "B", handle.DeviceID())
	assert.Equal(t, 1, platform.OpenCalls("B"))
	assert.Equal(t, 0, platform.OpenCalls("A"))
}

func TestResolver_ResolveFallback(t *testing.T) {
	platform := NewMockPlatform(VideoDevice("A", "Cam"))
	resolver := newTestResolver(platform)

	handle, err := resolver.Resolve(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, "A", handle.DeviceID())
}

func TestResolver_IgnoresNonVideoDevices(t *testing.T) {
	platform := NewMockPlatform(
		DeviceDescriptor{DeviceID: "mic", Label: "Back Microphone", Kind: KindAudioInput},
		VideoDevice("A", "Cam"),
	)
	resolver := newTestResolver(platform)

	handle, err := resolver.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "A", handle.DeviceID())

	devices, err := resolver.Devices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []DeviceDescriptor{VideoDevice("A", "Cam")}, devices)
}

func TestResolver_EmptyEnumeration(t *testing.T) {
	platform := NewMockPlatform()
	resolver := newTestResolver(platform)

	_, err := resolver.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoDevicesFound)

	platform.SetDevices(DeviceDescriptor{DeviceID: "mic", Kind: KindAudioInput})
	_, err = resolver.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoDevicesFound)
}

func TestResolver_PermissionDeniedSkipsEnumeration(t *testing.T) {
	platform := NewMockPlatform(VideoDevice("A", "Cam"))
	platform.SetProbeError(errors.New("NotAllowedError"))
	resolver := newTestResolver(platform)

	_, err := resolver.Resolve(context.Background(), "A")
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, 0, platform.EnumerateCalls())
	assert.Equal(t, 0, platform.OpenCalls("A"))
}

func TestResolver_CaptureError(t *testing.T) {
	platform := NewMockPlatform(VideoDevice("A", "Cam"))
	busy := errors.New("device or resource busy")
	platform.SetOpenError("A", busy)
	resolver := newTestResolver(platform)

	_, err := resolver.Resolve(context.Background(), "A")
	require.Error(t, err)

	var captureErr *CaptureError
	require.ErrorAs(t, err, &captureErr)
	assert.Equal(t, "A", captureErr.DeviceID)
	assert.ErrorIs(t, err, busy)
}

func TestResolver_EnumerateError(t *testing.T) {
	platform := NewMockPlatform(VideoDevice("A", "Cam"))
	platform.SetEnumerateError(errors.New("driver crashed"))
	resolver := newTestResolver(platform)

	_, err := resolver.Resolve(context.Background(), "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoDevicesFound)
}

func TestResolver_EnumeratesFreshEachCall(t *testing.T) {
	platform := NewMockPlatform(VideoDevice("A", "Cam"))
	resolver := newTestResolver(platform)
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, "")
	require.NoError(t, err)

	platform.AddDevice(VideoDevice("B", "Back Camera"))
	handle, err := resolver.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "B", handle.DeviceID())
	assert.Equal(t, 2, platform.EnumerateCalls())
}
