package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"videobillboard/internal/logging"
)

// PermissionState はカメラアクセス権限の状態
type PermissionState string

const (
	PermissionUnknown PermissionState = "unknown" // 未確認
	PermissionPending PermissionState = "pending" // 確認中
	PermissionGranted PermissionState = "granted" // 許可済み
	PermissionDenied  PermissionState = "denied"  // 拒否（再試行可能）
)

const permissionKey = "camera"

// PermissionGate はプロセス全体で1つの権限確認を管理する
// 保留中の確認には全ての呼び出し元が相乗りし、プローブは1回だけ発行される
type PermissionGate struct {
	platform Platform
	logger   *slog.Logger

	group singleflight.Group

	mu    sync.Mutex
	state PermissionState
	// generation は Reset のたびに進み、それより前に始まったプローブの結果を無視する
	generation uint64
}

// NewPermissionGate は新しいPermissionGateを作成する
func NewPermissionGate(platform Platform, logger *slog.Logger) *PermissionGate {
	return &PermissionGate{
		platform: platform,
		logger:   logging.NewComponentLogger(logger, "permission-gate"),
		state:    PermissionUnknown,
	}
}

// Ensure は権限が許可されるまで待つ
// 拒否された場合は ErrPermissionDenied を返す。ctx のキャンセルは待機のみを打ち切り、
// 共有されているプローブ自体は継続する
func (g *PermissionGate) Ensure(ctx context.Context) error {
	if g.State() == PermissionGranted {
		return nil
	}

	probeCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(permissionKey, func() (any, error) {
		// 直前の呼び出しで許可済みになっている場合は再プローブしない
		if g.State() == PermissionGranted {
			return nil, nil
		}
		return nil, g.probe(probeCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State は現在の権限状態を返す
func (g *PermissionGate) State() PermissionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Reset は状態を unknown に戻す
// 進行中のプローブの結果は待機中の呼び出し元には届くが状態には反映されず、
// 次の Ensure は新しいプローブを発行する
func (g *PermissionGate) Reset() {
	g.group.Forget(permissionKey)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.generation++
	g.state = PermissionUnknown
}

// beginProbe は状態を pending にして現在の世代を返す
func (g *PermissionGate) beginProbe() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = PermissionPending
	return g.generation
}

// setState は gen が現在の世代と一致するときだけ状態を更新する
func (g *PermissionGate) setState(gen uint64, state PermissionState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.generation {
		return
	}
	g.state = state
}

// probe は制約なしのストリームを開いて同意を確認し、すぐに解放する
func (g *PermissionGate) probe(ctx context.Context) error {
	gen := g.beginProbe()
	g.logger.Debug("requesting camera permission",
		logging.String(logging.FieldEventType, "permission_probe_started"),
	)

	stream, err := g.platform.OpenStream(ctx, "")
	if err != nil {
		g.setState(gen, PermissionDenied)
		g.logger.Warn("camera permission denied",
			logging.Error(err),
			logging.String(logging.FieldEventType, "permission_denied"),
		)
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}

	// プローブ用ストリームは表示に使わないので即座に解放する
	for _, track := range stream.Tracks() {
		if stopErr := track.Stop(); stopErr != nil {
			g.logger.Debug("failed to release probe track",
				logging.Error(stopErr),
				logging.String("track_id", track.ID()),
			)
		}
	}

	g.setState(gen, PermissionGranted)
	g.logger.Info("camera permission granted",
		logging.String(logging.FieldEventType, "permission_granted"),
	)
	return nil
}
