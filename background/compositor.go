// Package background implements the compositor (spec component C4): it
// produces the next 320x240 RGB frame from a configured static image
// and/or video, optionally alpha-blending the image over the video, and
// falls back to a deterministic synthetic gradient when neither source is
// configured or usable.
//
// It never fails: callers always get a usable frame back, with any
// swallowed decode error available afterwards via LastError, following
// the teacher's DriverFailure pattern of recording *why* something was
// skipped alongside an otherwise successful operation (periph.go).
package background

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/the-black-eagle/Thermalright-usblcd/panel"
)

// Frame is a decoded image already resized to the panel's 320x240, in BGR
// or BGRA byte layout (OpenCV/vendor-SDK channel order), row-major,
// top-row first.
type Frame struct {
	Pix      []byte
	Channels int // 3 (BGR) or 4 (BGRA)
}

func (f *Frame) hasAlpha() bool { return f != nil && f.Channels == 4 }

type staticCache struct {
	path  string
	mtime time.Time
	frame *Frame
}

// Compositor owns the cached static image, the active video background (if
// any), and the lazily built gradient fallback. Its methods hold c.mu for
// their whole duration, so concurrent callers are serialized; it is
// normally driven from a single frame-pump goroutine. The playback worker
// inside VideoBackground is synchronized independently.
type Compositor struct {
	mu       sync.Mutex
	static   *staticCache
	video    *VideoBackground
	gradient []byte
	lastErr  error
}

// NewCompositor returns an empty compositor; nothing is loaded until the
// first GetBackgroundBytes call.
func NewCompositor() *Compositor {
	return &Compositor{}
}

// LastError returns the most recent swallowed decode/IO error, or nil.
// GetBackgroundBytes never fails, but diagnostics call this to log what
// was skipped.
func (c *Compositor) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// GetBackgroundBytes returns a 320x240x3 top-to-bottom RGB buffer, per the
// resolution rules in spec §4.4. It never fails.
func (c *Compositor) GetBackgroundBytes(videoPath, imagePath string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	var img *Frame
	if imagePath != "" {
		f, err := c.resolveImage(imagePath)
		if err != nil {
			c.lastErr = err
		} else {
			img = f
		}
	}

	var videoFrame []byte
	if videoPath != "" && isVideoPath(videoPath) {
		if err := c.ensureVideoLocked(videoPath); err != nil {
			c.lastErr = err
		} else if c.video != nil {
			videoFrame = c.video.CurrentFrame()
		}
	}

	var bgr []byte
	switch {
	case img != nil && img.hasAlpha() && videoFrame != nil:
		bgr = alphaComposite(img, videoFrame)
	case img != nil:
		bgr = dropAlpha(img)
	case videoFrame != nil:
		bgr = videoFrame
	default:
		// The gradient is already laid out as RGB.
		return c.syntheticGradientLocked()
	}
	return bgrToRGB(bgr)
}

// Stop stops and joins any active video worker.
func (c *Compositor) Stop() {
	c.mu.Lock()
	v := c.video
	c.video = nil
	c.mu.Unlock()
	if v != nil {
		v.Stop()
	}
}

// resolveImage loads (or returns the cached) static image for path,
// invalidating the cache on any path or mtime mismatch.
func (c *Compositor) resolveImage(path string) (*Frame, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	mtime := info.ModTime()
	if c.static != nil && c.static.path == path && c.static.mtime.Equal(mtime) {
		return c.static.frame, nil
	}
	frame, err := decodeAndResizeImage(path)
	if err != nil {
		return nil, err
	}
	c.static = &staticCache{path: path, mtime: mtime, frame: frame}
	return frame, nil
}

func (c *Compositor) ensureVideoLocked(path string) error {
	if c.video != nil && c.video.Path() == path {
		return nil
	}
	if c.video != nil {
		c.video.Stop()
		c.video = nil
	}
	vb, err := NewVideoBackground(path, ModeLoop, defaultFPS)
	if err != nil {
		return err
	}
	c.video = vb
	return nil
}

func (c *Compositor) syntheticGradientLocked() []byte {
	if c.gradient == nil {
		c.gradient = syntheticGradientRGB()
	}
	// Return a copy: callers may hold on to the buffer past the next call.
	out := make([]byte, len(c.gradient))
	copy(out, c.gradient)
	return out
}

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".avi": {}, ".mov": {}, ".mkv": {},
}

func isVideoPath(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// dropAlpha returns img's pixels as plain BGR, discarding any alpha byte.
func dropAlpha(img *Frame) []byte {
	if img.Channels == 3 {
		return img.Pix
	}
	out := make([]byte, panel.Width*panel.Height*3)
	for i, j := 0, 0; i < len(img.Pix); i, j = i+4, j+3 {
		out[j], out[j+1], out[j+2] = img.Pix[i], img.Pix[i+1], img.Pix[i+2]
	}
	return out
}

// alphaComposite blends BGRA foreground img over BGR background video,
// per spec §4.4: out = F.BGR*a + V*(1-a), a = F.A/255.
func alphaComposite(img *Frame, video []byte) []byte {
	out := make([]byte, panel.Width*panel.Height*3)
	for i, j := 0, 0; i < len(img.Pix); i, j = i+4, j+3 {
		a := float64(img.Pix[i+3]) / 255
		for k := 0; k < 3; k++ {
			fg := float64(img.Pix[i+k])
			bg := float64(video[j+k])
			out[j+k] = byte(fg*a + bg*(1-a))
		}
	}
	return out
}

// bgrToRGB swaps the B and R bytes of every pixel, producing the plain RGB
// layout the panel expects. The device cannot display transparency, so
// any alpha byte is never part of bgr by this point.
func bgrToRGB(bgr []byte) []byte {
	out := make([]byte, len(bgr))
	for i := 0; i+2 < len(bgr); i += 3 {
		out[i], out[i+1], out[i+2] = bgr[i+2], bgr[i+1], bgr[i]
	}
	return out
}

const defaultFPS = 24.0
