package background

import "github.com/the-black-eagle/Thermalright-usblcd/panel"

// syntheticGradientRGB builds the deterministic fallback frame used when
// neither an image nor a video source is configured or usable. It depends
// only on panel geometry, so repeated calls are byte-identical (spec §8
// scenario 5).
func syntheticGradientRGB() []byte {
	buf := make([]byte, panel.FrameBytes)
	idx := 0
	for y := 0; y < panel.Height; y++ {
		g := byte(y * 255 / (panel.Height - 1))
		for x := 0; x < panel.Width; x++ {
			buf[idx] = byte(x * 255 / (panel.Width - 1))
			buf[idx+1] = g
			buf[idx+2] = 128
			idx += 3
		}
	}
	return buf
}
