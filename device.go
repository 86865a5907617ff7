// Package main - device.go
//
// The session loop. One Device owns one game client: it polls the screen,
// decides which top-level state the client is in (mulligan, our turn,
// result, waiting) and hands control to the turn engine. A match with no
// forward progress inside the stall window escalates to the restart
// signaler instead of clicking forever.
package main

import (
	"time"

	"gocv.io/x/gocv"
)

// RestartSignaler receives the escalation when a session stops making
// progress. The process owner decides what a restart means.
type RestartSignaler interface {
	SignalRestart(reason string)
}

// Device runs one game client end to end.
type Device struct {
	cfg       *Config
	source    FrameSource
	in        Input
	assembler *BoardStateAssembler
	finder    *ControlFinder
	specials  *SpecialRegistry
	restart   RestartSignaler

	tracker  *MatchTracker
	mulligan bool // mulligan already handled this match

	stop chan struct{}
	done chan struct{}
}

func NewDevice(cfg *Config, source FrameSource, in Input, assembler *BoardStateAssembler,
	finder *ControlFinder, specials *SpecialRegistry, restart RestartSignaler) *Device {
	return &Device{
		cfg:       cfg,
		source:    source,
		in:        in,
		assembler: assembler,
		finder:    finder,
		specials:  specials,
		restart:   restart,
		tracker:   NewMatchTracker(cfg),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run drives the session until Stop. Blocking; callers start it as a
// goroutine.
func (d *Device) Run() {
	defer close(d.done)

	ticker := time.NewTicker(time.Duration(d.cfg.TickIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	LogInfo("device loop started, tick %dms", d.cfg.TickIntervalMS)
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

// Stop asks the loop to exit and waits for it.
func (d *Device) Stop() {
	close(d.stop)
	<-d.done
}

// tick classifies the current screen and acts on it. Animations between
// states are waited out before any decision is made.
func (d *Device) tick() {
	frame, ok := d.waitForStable()
	if !ok {
		return
	}

	switch {
	case d.finder.Find(frame, "replace_confirm").Hit:
		if d.mulligan {
			return
		}
		d.runEngine(func(e *TurnEngine) { e.RunMulligan() })
		d.mulligan = true

	case d.finder.Find(frame, "end_turn").Hit:
		d.runEngine(func(e *TurnEngine) { e.RunTurn() })
		if d.cfg.DebugDumps {
			d.dumpBoard()
		}

	case d.finder.Find(frame, "match_result").Hit:
		d.finishMatch()

	default:
		// Enemy turn or a transition screen; nothing to do.
	}

	if d.tracker.Stalled(time.Duration(d.cfg.StallTimeoutSec) * time.Second) {
		LogError("no progress for %ds, signaling restart", d.cfg.StallTimeoutSec)
		d.restart.SignalRestart("session stalled")
		d.tracker.Touch()
	}
}

func (d *Device) runEngine(run func(*TurnEngine)) {
	engine := NewTurnEngine(TurnContext{
		Cfg:       d.cfg,
		In:        d.in,
		Source:    d.source,
		Assembler: d.assembler,
		Tracker:   d.tracker,
		Specials:  d.specials,
		Finder:    d.finder,
	})
	run(engine)
}

// finishMatch flushes the summary, dismisses the result screen and arms a
// fresh tracker for the next match.
func (d *Device) finishMatch() {
	summary := d.tracker.Summary()
	if err := AppendSummary(d.cfg.SummaryFile, summary); err != nil {
		LogWarn("summary not written: %v", err)
	}
	LogInfo("match %s ended after %d rounds in %s", summary.RunID, summary.Rounds, summary.Duration.Round(time.Second))

	d.in.Click(d.cfg.Geometry.BoardDropX, d.cfg.Geometry.BoardDropY)
	d.tracker = NewMatchTracker(d.cfg)
	d.mulligan = false
}

// waitForStable polls until two consecutive captures look alike, so
// decisions never run against a mid-animation frame. The hard timeout
// returns the latest frame anyway; a busy screen is better than none.
func (d *Device) waitForStable() (*Frame, bool) {
	deadline := time.Now().Add(time.Duration(d.cfg.StabilizeMS) * time.Millisecond)

	d.source.Invalidate()
	frame, ok := d.source.Capture()
	if !ok {
		return nil, false
	}

	// The source reclaims a frame on the next capture, so the comparison
	// baseline has to be an owned clone.
	prev := frame.Mat.Clone()
	defer prev.Close()

	for time.Now().Before(deadline) {
		time.Sleep(time.Duration(d.cfg.FrameCacheMS) * time.Millisecond)

		d.source.Invalidate()
		cur, ok := d.source.Capture()
		if !ok {
			return nil, false
		}
		if framesAlike(prev, cur.Mat) {
			return cur, true
		}
		prev.Close()
		prev = cur.Mat.Clone()
		frame = cur
	}
	return frame, true
}

// framesAlike reports whether the mean absolute pixel difference is small
// enough to treat the screen as settled.
func framesAlike(a, b gocv.Mat) bool {
	if a.Cols() != b.Cols() || a.Rows() != b.Rows() {
		return false
	}
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)

	mean := diff.Mean()
	return (mean.Val1+mean.Val2+mean.Val3)/3 < 3.0
}

func (d *Device) dumpBoard() {
	d.source.Invalidate()
	frame, ok := d.source.Capture()
	if !ok {
		return
	}
	state := d.assembler.Assemble(frame)
	DumpBoardFrame(d.cfg.DebugDumpDir, frame.Mat, &state)
}
