package background

import (
	"testing"

	"github.com/the-black-eagle/Thermalright-usblcd/panel"
)

func solidBGR(b, g, r byte) []byte {
	buf := make([]byte, panel.Width*panel.Height*3)
	for i := 0; i < len(buf); i += 3 {
		buf[i], buf[i+1], buf[i+2] = b, g, r
	}
	return buf
}

// TestAlphaComposite_halfTransparentHalfOpaque is spec §8 scenario 6:
// BGRA foreground alpha=0 on the left half, alpha=255 on the right half,
// all RGB=0, composited over a grey (100,100,100) BGR video. Left half
// should come through as the video's grey; right half as the
// foreground's black.
func TestAlphaComposite_halfTransparentHalfOpaque(t *testing.T) {
	img := &Frame{Channels: 4, Pix: make([]byte, panel.Width*panel.Height*4)}
	for y := 0; y < panel.Height; y++ {
		for x := 0; x < panel.Width; x++ {
			off := (y*panel.Width + x) * 4
			if x < panel.Width/2 {
				img.Pix[off+3] = 0 // alpha=0, left half
			} else {
				img.Pix[off+3] = 255 // alpha=255, right half
			}
		}
	}
	video := solidBGR(100, 100, 100)

	out := alphaComposite(img, video)

	// Left half: transparent foreground, video shows through unchanged.
	leftOff := (0*panel.Width + 0) * 3
	if out[leftOff] != 100 || out[leftOff+1] != 100 || out[leftOff+2] != 100 {
		t.Fatalf("left half = %v, want (100,100,100)", out[leftOff:leftOff+3])
	}

	// Right half: opaque black foreground wins outright.
	rightOff := (0*panel.Width + panel.Width - 1) * 3
	if out[rightOff] != 0 || out[rightOff+1] != 0 || out[rightOff+2] != 0 {
		t.Fatalf("right half = %v, want (0,0,0)", out[rightOff:rightOff+3])
	}
}

func TestDropAlpha_stripsFourthByte(t *testing.T) {
	img := &Frame{Channels: 4, Pix: []byte{10, 20, 30, 255, 40, 50, 60, 128}}
	out := dropAlpha(img)
	want := []byte{10, 20, 30, 40, 50, 60}
	if len(out) != len(want) {
		t.Fatalf("len = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestDropAlpha_threeChannelIsPassthrough(t *testing.T) {
	img := &Frame{Channels: 3, Pix: []byte{1, 2, 3}}
	out := dropAlpha(img)
	if &out[0] != &img.Pix[0] {
		t.Fatal("expected the same underlying slice for a 3-channel frame")
	}
}

func TestBgrToRGB_swapsFirstAndLastChannel(t *testing.T) {
	bgr := []byte{10, 20, 30, 40, 50, 60}
	rgb := bgrToRGB(bgr)
	want := []byte{30, 20, 10, 60, 50, 40}
	for i := range want {
		if rgb[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, rgb[i], want[i])
		}
	}
}

func TestIsVideoPath_recognizesKnownExtensionsCaseInsensitively(t *testing.T) {
	for _, p := range []string{"clip.mp4", "clip.MP4", "clip.avi", "clip.mov", "clip.mkv"} {
		if !isVideoPath(p) {
			t.Fatalf("%q should be recognized as a video path", p)
		}
	}
	for _, p := range []string{"image.png", "clip.webm", "noext"} {
		if isVideoPath(p) {
			t.Fatalf("%q should not be recognized as a video path", p)
		}
	}
}

// TestGetBackgroundBytes_fallsBackToGradient is spec §8 scenario 5: with
// no paths configured, the compositor never fails, returns a full-size
// non-zero frame, and returns byte-identical output on a second call.
func TestGetBackgroundBytes_fallsBackToGradient(t *testing.T) {
	c := NewCompositor()
	first := c.GetBackgroundBytes("", "")
	if len(first) != panel.FrameBytes {
		t.Fatalf("length = %d, want %d", len(first), panel.FrameBytes)
	}
	allZero := true
	for _, b := range first {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		t.Fatal("expected a non-zero gradient fallback")
	}

	second := c.GetBackgroundBytes("", "")
	if len(first) != len(second) {
		t.Fatalf("length changed across calls: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("byte %d differs across calls: %d vs %d", i, first[i], second[i])
		}
	}
}

func TestGetBackgroundBytes_missingImagePathRecordsLastError(t *testing.T) {
	c := NewCompositor()
	c.GetBackgroundBytes("", "/no/such/image.png")
	if c.LastError() == nil {
		t.Fatal("expected LastError to be set after a missing image path")
	}
}
