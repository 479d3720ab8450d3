package billboard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"videobillboard/internal/camera"
)

func TestShrinkwrap(t *testing.T) {
	tests := []struct {
		name    string
		minimum Size
		native  camera.Resolution
		want    Size
	}{
		{
			name:    "16:9 は高さ基準で幅を広げる",
			minimum: Size{Width: 4, Height: 3},
			native:  camera.Resolution{Width: 1280, Height: 720},
			want:    Size{Width: 16.0 / 3.0, Height: 3},
		},
		{
			name:    "4:3 は最小サイズと一致",
			minimum: Size{Width: 4, Height: 3},
			native:  camera.Resolution{Width: 640, Height: 480},
			want:    Size{Width: 4, Height: 3},
		},
		{
			name:    "縦長は幅基準",
			minimum: Size{Width: 4, Height: 3},
			native:  camera.Resolution{Width: 720, Height: 1280},
			want:    Size{Width: 4, Height: 4 * 1280.0 / 720.0},
		},
		{
			name:    "解像度が不明なら最小サイズ",
			minimum: Size{Width: 4, Height: 3},
			native:  camera.Resolution{},
			want:    Size{Width: 4, Height: 3},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Shrinkwrap(tc.minimum, tc.native)
			assert.InDelta(t, tc.want.Width, got.Width, 1e-9)
			assert.InDelta(t, tc.want.Height, got.Height, 1e-9)

			// 結果は常に最小サイズ以上で、アスペクト比を保つ
			assert.GreaterOrEqual(t, got.Width, tc.minimum.Width-1e-9)
			assert.GreaterOrEqual(t, got.Height, tc.minimum.Height-1e-9)
			if tc.native.Height > 0 {
				assert.InDelta(t, float64(tc.native.Width)/float64(tc.native.Height), got.Width/got.Height, 1e-9)
			}
		})
	}
}
