package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionGate_GrantedIsCached(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPlatform(VideoDevice("A", "Cam"))
	gate := NewPermissionGate(platform, nil)

	assert.Equal(t, PermissionUnknown, gate.State())

	require.NoError(t, gate.Ensure(ctx))
	require.NoError(t, gate.Ensure(ctx))

	assert.Equal(t, PermissionGranted, gate.State())
	assert.Equal(t, 1, platform.ProbeCalls(), "許可済みの場合は再プローブしない")
}

func TestPermissionGate_ProbeStreamIsReleased(t *testing.T) {
	platform := NewMockPlatform(VideoDevice("A", "Cam"))
	gate := NewPermissionGate(platform, nil)

	require.NoError(t, gate.Ensure(context.Background()))

	probes := platform.StreamsFor("")
	require.Len(t, probes, 1)
	assert.True(t, probes[0].Stopped(), "プローブ用ストリームは即座に解放される")
}

func TestPermissionGate_ConcurrentCallersShareOneProbe(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPlatform(VideoDevice("A", "Cam"))
	gate := NewPermissionGate(platform, nil)
	probe := platform.BlockProbe()

	const callers = 8
	errs := make(chan error, callers)

	// 最初の呼び出しがプローブに到達してから残りを開始する
	go func() { errs <- gate.Ensure(ctx) }()
	<-probe.Entered()
	assert.Equal(t, PermissionPending, gate.State())

	var started sync.WaitGroup
	for i := 1; i < callers; i++ {
		started.Add(1)
		go func() {
			started.Done()
			errs <- gate.Ensure(ctx)
		}()
	}
	started.Wait()
	// 相乗りする呼び出しが DoChan に入るのを待つ
	time.Sleep(20 * time.Millisecond)

	probe.Release()
	for i := 0; i < callers; i++ {
		require.NoError(t, <-errs)
	}

	assert.Equal(t, 1, platform.ProbeCalls())
	assert.Equal(t, PermissionGranted, gate.State())
}

func TestPermissionGate_ConcurrentCallersShareDenial(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPlatform(VideoDevice("A", "Cam"))
	platform.SetProbeError(errors.New("NotAllowedError"))
	gate := NewPermissionGate(platform, nil)
	probe := platform.BlockProbe()

	errs := make(chan error, 3)
	go func() { errs <- gate.Ensure(ctx) }()
	<-probe.Entered()
	go func() { errs <- gate.Ensure(ctx) }()
	go func() { errs <- gate.Ensure(ctx) }()
	time.Sleep(20 * time.Millisecond)

	probe.Release()
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, <-errs, ErrPermissionDenied)
	}
	assert.Equal(t, 1, platform.ProbeCalls())
	assert.Equal(t, PermissionDenied, gate.State())
}

func TestPermissionGate_DeniedIsRetryable(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPlatform(VideoDevice("A", "Cam"))
	platform.SetProbeError(errors.New("NotAllowedError"))
	gate := NewPermissionGate(platform, nil)

	err := gate.Ensure(ctx)
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, PermissionDenied, gate.State())

	// ユーザーが後から許可した
	platform.SetProbeError(nil)
	require.NoError(t, gate.Ensure(ctx))
	assert.Equal(t, PermissionGranted, gate.State())
	assert.Equal(t, 2, platform.ProbeCalls())
}

func TestPermissionGate_CancelledWaiterDoesNotCancelProbe(t *testing.T) {
	platform := NewMockPlatform(VideoDevice("A", "Cam"))
	gate := NewPermissionGate(platform, nil)
	probe := platform.BlockProbe()

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- gate.Ensure(ctx) }()
	<-probe.Entered()

	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)

	// 別の呼び出し元は同じプローブの結果を受け取る
	done := make(chan error, 1)
	go func() { done <- gate.Ensure(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	probe.Release()

	require.NoError(t, <-done)
	assert.Equal(t, 1, platform.ProbeCalls())
}

func TestPermissionGate_Reset(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPlatform(VideoDevice("A", "Cam"))
	gate := NewPermissionGate(platform, nil)

	require.NoError(t, gate.Ensure(ctx))
	gate.Reset()
	assert.Equal(t, PermissionUnknown, gate.State())

	require.NoError(t, gate.Ensure(ctx))
	assert.Equal(t, 2, platform.ProbeCalls())
}

// Reset より前に始まったプローブの結果は状態に反映しない
func TestPermissionGate_ResetDuringProbeIgnoresOldResult(t *testing.T) {
	ctx := context.Background()
	platform := NewMockPlatform(VideoDevice("A", "Cam"))
	gate := NewPermissionGate(platform, nil)
	probeGate := platform.BlockProbe()

	errs := make(chan error, 1)
	go func() { errs <- gate.Ensure(ctx) }()
	<-probeGate.Entered()
	assert.Equal(t, PermissionPending, gate.State())

	gate.Reset()
	probeGate.Release()
	require.NoError(t, <-errs, "待機中の呼び出し元には結果が届く")
	assert.Equal(t, PermissionUnknown, gate.State())

	require.NoError(t, gate.Ensure(ctx))
	assert.Equal(t, PermissionGranted, gate.State())
	assert.Equal(t, 2, platform.ProbeCalls())
}
