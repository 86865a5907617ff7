// Package main - input.go
//
// Pointer and key injection. The engine only ever talks to the Input
// interface; the robotgo implementation translates client-area coordinates
// to screen coordinates and dispatches native events.
//
// The core never assumes an injected action landed: callers re-check
// recognized state where it matters, and clickWithRetry gives transient
// failures a short bounded retry before the action is abandoned for the
// tick.
//
// Timing Strategy:
// A small randomized delay follows every dispatched action so injected
// input stays plausible and the client has time to register it.
package main

import (
	"math/rand"
	"time"

	"github.com/go-vgo/robotgo"
)

// Input dispatches low-level events in client-area coordinates. Every call
// reports whether the event was dispatched; dispatch success does not imply
// the game accepted it.
type Input interface {
	Click(x, y int) bool
	Drag(x1, y1, x2, y2 int, duration time.Duration) bool
	PressKey(name string) bool
}

// robotgoInput injects events natively. It shares the capturer's
// RectProvider so clicks track the window when it moves.
type robotgoInput struct {
	rect RectProvider
}

// NewRobotgoInput creates the native input backend.
func NewRobotgoInput(rect RectProvider) Input {
	return &robotgoInput{rect: rect}
}

// toScreen translates client coordinates to screen coordinates, rejecting
// points outside the client area.
func (r *robotgoInput) toScreen(x, y int) (int, int, bool) {
	rect, ok := r.rect()
	if !ok {
		return 0, 0, false
	}
	if x < 0 || y < 0 || x > rect.Dx() || y > rect.Dy() {
		LogWarn("input rejected: (%d,%d) outside client area %v", x, y, rect)
		return 0, 0, false
	}
	return rect.Min.X + x, rect.Min.Y + y, true
}

func (r *robotgoInput) Click(x, y int) bool {
	sx, sy, ok := r.toScreen(x, y)
	if !ok {
		return false
	}
	robotgo.Move(sx, sy)
	settleDelay()
	robotgo.Click()
	settleDelay()
	return true
}

func (r *robotgoInput) Drag(x1, y1, x2, y2 int, duration time.Duration) bool {
	sx1, sy1, ok := r.toScreen(x1, y1)
	if !ok {
		return false
	}
	sx2, sy2, ok := r.toScreen(x2, y2)
	if !ok {
		return false
	}

	robotgo.Move(sx1, sy1)
	settleDelay()
	robotgo.Toggle("left")

	// Interpolated movement: a single jump gets ignored by the client's
	// drag handling.
	steps := int(duration / (16 * time.Millisecond))
	if steps < 4 {
		steps = 4
	}
	for i := 1; i <= steps; i++ {
		ix := sx1 + (sx2-sx1)*i/steps
		iy := sy1 + (sy2-sy1)*i/steps
		robotgo.Move(ix, iy)
		time.Sleep(duration / time.Duration(steps))
	}

	robotgo.Toggle("left", "up")
	settleDelay()
	return true
}

func (r *robotgoInput) PressKey(name string) bool {
	if _, ok := r.rect(); !ok {
		return false
	}
	if err := robotgo.KeyTap(name); err != nil {
		LogWarn("key tap %q failed: %v", name, err)
		return false
	}
	settleDelay()
	return true
}

// settleDelay sleeps 40-90ms between injected events.
func settleDelay() {
	time.Sleep(time.Duration(40+rand.Intn(50)) * time.Millisecond)
}

// clickWithRetry retries a failed click up to limit extra times before
// giving up on the action for this tick.
func clickWithRetry(in Input, p Point, limit int) bool {
	for attempt := 0; attempt <= limit; attempt++ {
		if in.Click(p.X, p.Y) {
			return true
		}
		LogDebug("click at (%d,%d) failed, attempt %d/%d", p.X, p.Y, attempt+1, limit+1)
	}
	return false
}

// dragWithRetry is the drag counterpart of clickWithRetry.
func dragWithRetry(in Input, from, to Point, dur time.Duration, limit int) bool {
	for attempt := 0; attempt <= limit; attempt++ {
		if in.Drag(from.X, from.Y, to.X, to.Y, dur) {
			return true
		}
		LogDebug("drag (%d,%d)->(%d,%d) failed, attempt %d/%d",
			from.X, from.Y, to.X, to.Y, attempt+1, limit+1)
	}
	return false
}
