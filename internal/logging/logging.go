// Package logging wraps the standard logger with level filtering and a raw
// progress channel for the long-running waits.
package logging

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is a leveled wrapper over log.Logger. Progress output (the waiter's
// dots) bypasses the line-oriented logger and writes to the same sink.
type Logger struct {
	out    io.Writer
	logger *log.Logger
	level  Level

	// inProgress tracks whether the last write was a bare progress marker,
	// so the next line-oriented message starts on a fresh line.
	inProgress bool
}

func New(w io.Writer, level Level) *Logger {
	return &Logger{
		out:    w,
		logger: log.New(w, "", 0),
		level:  level,
	}
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, "DEBUG", format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, "INFO", format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, "WARN", format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, "ERROR", format, args...) }

// Progress emits a raw progress marker with no timestamp or newline.
func (l *Logger) Progress(marker string) {
	fmt.Fprint(l.out, marker)
	l.inProgress = true
}

func (l *Logger) logf(level Level, tag, format string, args ...any) {
	if level < l.level {
		return
	}
	if l.inProgress {
		fmt.Fprintln(l.out)
		l.inProgress = false
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("%s %s %s", time.Now().Format(time.RFC3339), tag, msg)
}
