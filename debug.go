// Package main - debug.go
//
// This file implements logging and debug frame dumps.
//
// Major Components:
//
// 1. Logging System:
//    - zerolog-backed structured logging to Debug.log
//    - Four log levels: DEBUG, INFO, WARN, ERROR
//    - File is truncated (cleared) on each startup
//    - Global logger instance accessible via convenience functions
//
// 2. Debug Visualization:
//    - Annotated frame dumps written as PNG files instead of a live window
//    - Recognized entities drawn as labeled boxes on a clone of the frame
//
// Logging Best Practices:
//   - DEBUG: Detailed operation info (scores, anchors, timing)
//   - INFO: Important events (startup, round advance, summaries)
//   - WARN: Non-critical issues (recognition miss, action retry)
//   - ERROR: Serious problems (capture failure, template load errors)
package main

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// Logger wraps a zerolog logger writing to Debug.log. zerolog is safe for
// concurrent use, so no extra locking is needed around the convenience
// helpers.
type Logger struct {
	file *os.File
	zl   zerolog.Logger
}

var globalLogger *Logger

// InitLogger initializes the global logger to write to Debug.log in the
// current directory. The log file is truncated (cleared) on each startup.
func InitLogger(level string) error {
	file, err := os.OpenFile("Debug.log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	zl := zerolog.New(file).Level(lvl).With().Timestamp().Logger()
	globalLogger = &Logger{file: file, zl: zl}

	globalLogger.Info("logger initialized (log file cleared)")
	return nil
}

// CloseLogger closes the log file
func CloseLogger() {
	if globalLogger != nil && globalLogger.file != nil {
		globalLogger.Info("logger closing")
		globalLogger.file.Close()
	}
}

// Debug logs debug level messages
func (l *Logger) Debug(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

// Info logs info level messages
func (l *Logger) Info(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

// Warn logs warning level messages
func (l *Logger) Warn(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

// Error logs error level messages
func (l *Logger) Error(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

// LogDebug is a convenience function for debug logging
func LogDebug(format string, v ...interface{}) {
	if globalLogger != nil {
		globalLogger.Debug(format, v...)
	}
}

// LogInfo is a convenience function for info logging
func LogInfo(format string, v ...interface{}) {
	if globalLogger != nil {
		globalLogger.Info(format, v...)
	}
}

// LogWarn is a convenience function for warning logging
func LogWarn(format string, v ...interface{}) {
	if globalLogger != nil {
		globalLogger.Warn(format, v...)
	}
}

// LogError is a convenience function for error logging
func LogError(format string, v ...interface{}) {
	if globalLogger != nil {
		globalLogger.Error(format, v...)
	}
}

// DumpBoardFrame writes the frame with every recognized entity drawn on top
// of it to dir. Used when debug dumps are enabled in the config; recognition
// itself never depends on this path.
func DumpBoardFrame(dir string, mat gocv.Mat, state *BoardState) {
	if mat.Empty() || state == nil {
		return
	}

	annotated := mat.Clone()
	defer annotated.Close()

	green := color.RGBA{0, 255, 0, 0}
	red := color.RGBA{255, 0, 0, 0}
	yellow := color.RGBA{255, 255, 0, 0}

	for i, card := range state.Hand {
		box := image.Rect(card.Anchor.X-40, card.Anchor.Y-56, card.Anchor.X+40, card.Anchor.Y+56)
		gocv.Rectangle(&annotated, box, green, 2)
		label := fmt.Sprintf("H%d %s c%d", i, card.Name, card.Cost)
		gocv.PutText(&annotated, label, box.Min.Add(image.Pt(2, 12)), gocv.FontHersheyPlain, 1, green, 1)
	}

	for i, f := range state.OurFollowers {
		box := image.Rect(f.Anchor.X-36, f.Anchor.Y-36, f.Anchor.X+36, f.Anchor.Y+36)
		gocv.Rectangle(&annotated, box, yellow, 2)
		label := fmt.Sprintf("F%d %s %d/%d", i, f.Class, f.Attack, f.Health)
		gocv.PutText(&annotated, label, box.Min.Add(image.Pt(2, 12)), gocv.FontHersheyPlain, 1, yellow, 1)
	}

	for i, e := range state.Enemies {
		box := image.Rect(e.Anchor.X-36, e.Anchor.Y-36, e.Anchor.X+36, e.Anchor.Y+36)
		gocv.Rectangle(&annotated, box, red, 2)
		gocv.PutText(&annotated, fmt.Sprintf("E%d hp%d", i, e.Health), box.Min.Add(image.Pt(2, 12)), gocv.FontHersheyPlain, 1, red, 1)
	}

	for i, s := range state.Shields {
		gocv.Circle(&annotated, image.Pt(s.Anchor.X, s.Anchor.Y), 24, red, 2)
		gocv.PutText(&annotated, fmt.Sprintf("S%d hp%d", i, s.Health), image.Pt(s.Anchor.X-20, s.Anchor.Y-28), gocv.FontHersheyPlain, 1, red, 1)
	}

	name := fmt.Sprintf("board_%s.png", time.Now().Format("150405.000"))
	path := filepath.Join(dir, name)
	if ok := gocv.IMWrite(path, annotated); !ok {
		LogWarn("failed to write debug frame %s", path)
	}
}
