package background

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/the-black-eagle/Thermalright-usblcd/panel"
)

// PlaybackMode selects how VideoBackground advances at the end of its
// frame sequence.
type PlaybackMode int

const (
	// ModeLoop wraps back to frame 0.
	ModeLoop PlaybackMode = iota
	// ModeBounce reverses direction at each endpoint.
	ModeBounce
)

// preloadThreshold is the source-duration cutoff (spec §4.4, §8): at or
// under this, every frame is decoded up front; above it, frames are
// decoded on demand. It matches the vendor SDK's own expectation (spec
// §4.4 rationale).
const preloadThreshold = 10 * time.Second

// VideoBackground plays a video source as a 320x240 BGR background. One
// dedicated goroutine per instance decodes/advances frames; CurrentFrame
// reads the latest one under a short critical section.
type VideoBackground struct {
	path string
	mode PlaybackMode
	fps  float64

	mu      sync.Mutex
	current []byte

	// Preloaded mode.
	frames  [][]byte
	index   int
	forward bool

	// Streaming mode.
	cap *gocv.VideoCapture

	preloaded bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Path returns the source path this instance was constructed with.
func (v *VideoBackground) Path() string { return v.path }

// NewVideoBackground opens path and starts its playback worker. If the
// source's own duration is at most 10s, every frame is decoded up front
// (Preloaded); otherwise frames are decoded on demand (Streaming).
func NewVideoBackground(path string, mode PlaybackMode, fps float64) (*VideoBackground, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, err
	}

	frameCount := capture.Get(gocv.VideoCaptureFrameCount)
	srcFPS := capture.Get(gocv.VideoCaptureFPS)
	var duration time.Duration
	if srcFPS > 0 {
		duration = time.Duration(frameCount / srcFPS * float64(time.Second))
	}

	vb := &VideoBackground{
		path:    path,
		mode:    mode,
		fps:     fps,
		forward: true,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	if duration > 0 && duration <= preloadThreshold {
		frames, err := decodeAllFrames(capture)
		capture.Close()
		if err != nil {
			return nil, err
		}
		vb.preloaded = true
		vb.frames = frames
		if len(frames) > 0 {
			vb.current = frames[0]
		}
		go vb.runPreloaded()
		return vb, nil
	}

	vb.cap = capture
	go vb.runStreaming()
	return vb, nil
}

// tickInterval is spec's "max(1, 1000/fps) ms" per-frame delay.
func (v *VideoBackground) tickInterval() time.Duration {
	if v.fps <= 0 {
		return time.Millisecond
	}
	ms := 1000 / v.fps
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms * float64(time.Millisecond))
}

func decodeAllFrames(capture *gocv.VideoCapture) ([][]byte, error) {
	var frames [][]byte
	mat := gocv.NewMat()
	defer mat.Close()
	resized := gocv.NewMat()
	defer resized.Close()

	for capture.Read(&mat) {
		if mat.Empty() {
			continue
		}
		gocv.Resize(mat, &resized, image.Pt(panel.Width, panel.Height), 0, 0, gocv.InterpolationCubic)
		buf := make([]byte, panel.Width*panel.Height*3)
		copy(buf, resized.ToBytes())
		frames = append(frames, buf)
	}
	return frames, nil
}

func (v *VideoBackground) runPreloaded() {
	defer close(v.doneCh)
	ticker := time.NewTicker(v.tickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-v.stopCh:
			return
		case <-ticker.C:
			v.advance()
		}
	}
}

// advance moves to the next preloaded frame index, per the loop/bounce
// rules in spec §4.4 and the round-trip laws in §8.
func (v *VideoBackground) advance() {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := len(v.frames)
	if n == 0 {
		return
	}
	switch v.mode {
	case ModeLoop:
		v.index = (v.index + 1) % n
	case ModeBounce:
		if n == 1 {
			v.index = 0
			break
		}
		if v.forward {
			v.index++
			if v.index >= n-1 {
				v.index = n - 1
				v.forward = false
			}
		} else {
			v.index--
			if v.index <= 0 {
				v.index = 0
				v.forward = true
			}
		}
	}
	v.current = v.frames[v.index]
}

func (v *VideoBackground) runStreaming() {
	defer close(v.doneCh)
	defer v.cap.Close()
	mat := gocv.NewMat()
	defer mat.Close()
	resized := gocv.NewMat()
	defer resized.Close()

	interval := v.tickInterval()
	for {
		select {
		case <-v.stopCh:
			return
		default:
		}

		if ok := v.cap.Read(&mat); !ok || mat.Empty() {
			v.cap.Set(gocv.VideoCapturePosFrames, 0)
			time.Sleep(interval)
			continue
		}
		gocv.Resize(mat, &resized, image.Pt(panel.Width, panel.Height), 0, 0, gocv.InterpolationCubic)
		buf := make([]byte, panel.Width*panel.Height*3)
		copy(buf, resized.ToBytes())

		v.mu.Lock()
		v.current = buf
		v.mu.Unlock()

		time.Sleep(interval)
	}
}

// CurrentFrame returns a copy of the most recently produced BGR frame, or
// nil if the worker hasn't produced one yet.
func (v *VideoBackground) CurrentFrame() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current == nil {
		return nil
	}
	out := make([]byte, len(v.current))
	copy(out, v.current)
	return out
}

// Stop stops the playback worker and joins it. Safe to call more than
// once.
func (v *VideoBackground) Stop() {
	v.stopOnce.Do(func() { close(v.stopCh) })
	<-v.doneCh
}
