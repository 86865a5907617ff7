// Package main - main.go
//
// Entry point for the Shadowverse bot application.
package main

import (
	"image"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/go-vgo/robotgo"
)

func main() {
	// Lock to main thread for input injection (macOS requirement)
	runtime.LockOSThread()

	// Optional config path from command line arguments
	if len(os.Args) > 1 {
		os.Setenv("SVBOT_CONFIG", os.Args[1])
	}

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := InitLogger(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer CloseLogger()

	LogInfo("Shadowverse bot starting...")

	templates, err := LoadTemplates(cfg.TemplateDir, cfg)
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}
	defer templates.Close()

	finder := NewControlFinder(templates, NewTemplateMatcher())

	// The OCR engine and glyph bank are each optional; losing one of them
	// degrades stat reading, losing both leaves every stat unknown.
	var ocr ocrEngine
	if eng, err := newTesseractEngine(); err != nil {
		LogWarn("ocr unavailable: %v", err)
	} else {
		ocr = eng
		defer eng.Close()
	}
	bank, err := LoadDigitBank(filepath.Join(cfg.TemplateDir, "digits"))
	if err != nil {
		LogWarn("digit bank unavailable: %v", err)
	}
	digits := NewDigitRecognizer(ocr, bank, cfg.OCRFloor)

	mode := "ranked"
	if cfg.TaskMode {
		mode = "task"
	}
	libraries := NewCardLibraryFactory(cfg)
	defer libraries.Close()
	lib, err := libraries.Ensure(mode)
	if err != nil {
		log.Fatalf("Failed to load card library: %v", err)
	}

	rect := windowRectProvider(cfg.WindowTitle)
	source := NewScreenSource(rect, time.Duration(cfg.FrameCacheMS)*time.Millisecond)
	defer source.Close()

	in := NewRobotgoInput(rect)
	assembler := NewBoardStateAssembler(cfg, NewColorSegmenter(), digits, lib, finder)
	specials := DefaultSpecialRegistry()
	restarts := newRestartChannel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		device := NewDevice(cfg, source, in, assembler, finder, specials, restarts)
		go device.Run()

		select {
		case <-sigChan:
			LogInfo("Received shutdown signal, stopping...")
			device.Stop()
			LogInfo("Shadowverse bot stopped")
			return
		case reason := <-restarts.ch:
			LogWarn("restarting session: %s", reason)
			device.Stop()
			source.Invalidate()
		}
	}
}

// windowRectProvider locates the client window by title on every call so
// capture and input keep tracking it when it moves.
func windowRectProvider(title string) RectProvider {
	return func() (image.Rectangle, bool) {
		ids, err := robotgo.FindIds(title)
		if err != nil || len(ids) == 0 {
			return image.Rectangle{}, false
		}
		x, y, w, h := robotgo.GetBounds(ids[0])
		if w <= 0 || h <= 0 {
			return image.Rectangle{}, false
		}
		return image.Rect(x, y, x+w, y+h), true
	}
}

// restartChannel is the in-process restart escalation: the device signals,
// the main loop tears the session down and builds a new one.
type restartChannel struct {
	ch chan string
}

func newRestartChannel() *restartChannel {
	return &restartChannel{ch: make(chan string, 1)}
}

func (r *restartChannel) SignalRestart(reason string) {
	select {
	case r.ch <- reason:
	default:
	}
}
