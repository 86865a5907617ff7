// Package main - capture.go
//
// Frame acquisition. A Frame is one immutable capture of the game's client
// area; the short-lived cache keeps redundant captures from happening within
// one decision tick.
//
// Window discovery is an external collaborator: the capturer is handed a
// RectProvider that reports the current client-area rectangle in screen
// coordinates, or ok=false while the window is unavailable or minimized.
// Capture never panics on a missing window; it returns no frame and the
// caller proceeds best-effort.
package main

import (
	"image"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
	"gocv.io/x/gocv"
)

// Frame is an immutable bitmap of the client area plus the moment it was
// taken. The Mat view is owned by the frame and released by Close; it must
// not be mutated by consumers.
type Frame struct {
	Img        *image.RGBA
	Mat        gocv.Mat
	ClientRect image.Rectangle
	CapturedAt time.Time

	closed bool
}

// Close releases the frame's Mat. Safe to call more than once.
func (f *Frame) Close() {
	if f == nil || f.closed {
		return
	}
	f.closed = true
	f.Mat.Close()
}

// Age returns how long ago the frame was captured.
func (f *Frame) Age() time.Duration {
	return time.Since(f.CapturedAt)
}

// FrameSource supplies the current capture on demand.
type FrameSource interface {
	// Capture returns the newest frame, or ok=false when the client window
	// is unavailable. The returned frame stays valid until the next Capture
	// or Invalidate call on the same source.
	Capture() (*Frame, bool)

	// Invalidate drops any cached frame so the next Capture is fresh.
	Invalidate()

	// Close releases any held frame.
	Close()
}

// RectProvider reports the client-area rectangle of the managed window in
// screen coordinates.
type RectProvider func() (image.Rectangle, bool)

// screenSource captures the client area with the screenshot library and
// caches the result for a short TTL.
type screenSource struct {
	rect RectProvider
	ttl  time.Duration

	mu   sync.Mutex
	last *Frame
}

// NewScreenSource creates a FrameSource over the given window rectangle
// provider. ttl bounds how long a capture may be reused within a tick.
func NewScreenSource(rect RectProvider, ttl time.Duration) FrameSource {
	return &screenSource{rect: rect, ttl: ttl}
}

func (s *screenSource) Capture() (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last != nil && s.last.Age() < s.ttl {
		return s.last, true
	}

	rect, ok := s.rect()
	if !ok || rect.Empty() {
		return nil, false
	}

	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		LogWarn("screen capture failed: %v", err)
		return nil, false
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		LogError("frame conversion failed: %v", err)
		return nil, false
	}

	if s.last != nil {
		s.last.Close()
	}
	s.last = &Frame{
		Img:        img,
		Mat:        mat,
		ClientRect: rect,
		CapturedAt: time.Now(),
	}
	return s.last, true
}

func (s *screenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last != nil {
		s.last.Close()
		s.last = nil
	}
}

func (s *screenSource) Close() {
	s.Invalidate()
}
