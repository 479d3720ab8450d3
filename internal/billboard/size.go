package billboard

import "videobillboard/internal/camera"

// Size はワールド単位の表示サイズ
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultSize は映像の準備ができるまでの表示面の初期サイズ
var DefaultSize = Size{Width: 16, Height: 9}

// Shrinkwrap は最小サイズを満たしつつ映像のアスペクト比を保つ表示サイズを返す
// 幅を最小幅に合わせ、高さが足りなければ高さを最小高さに合わせて幅を広げる
func Shrinkwrap(minimum Size, native camera.Resolution) Size {
	if native.Width <= 0 || native.Height <= 0 {
		return minimum
	}

	aspect := float64(native.Width) / float64(native.Height)

	width := minimum.Width
	height := width / aspect
	if height < minimum.Height {
		height = minimum.Height
		width = height * aspect
	}

	return Size{Width: width, Height: height}
}
