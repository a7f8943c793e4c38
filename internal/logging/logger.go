package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"wifiwatchdog/internal/history"
)

// Tag prefixes every line on the detailed sink.
const Tag = "wifi-watchdog"

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

// ParseLevel converts a string level name to Level.
// Returns LevelInfo for unrecognized values.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info", "":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "off", "none":
		return LevelOff
	default:
		return LevelInfo
	}
}

// Logger writes timestamped lines to a detailed sink and, for recovery
// events, to a concise sink as well. Lines are append-only and written in
// call order.
type Logger struct {
	mu      sync.Mutex
	level   Level
	detail  io.Writer
	concise io.Writer
	now     func() time.Time
}

// New creates a Logger. Either sink may be nil.
func New(level Level, detail, concise io.Writer) *Logger {
	if detail == nil {
		detail = io.Discard
	}
	if concise == nil {
		concise = io.Discard
	}
	return &Logger{
		level:   level,
		detail:  detail,
		concise: concise,
		now:     time.Now,
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(LevelOff, nil, nil)
}

// SetClock replaces the timestamp source.
func (l *Logger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...any) {
	l.detailf(LevelDebug, "", format, args...)
}

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...any) {
	l.detailf(LevelInfo, "", format, args...)
}

// Warnf logs at warn level.
func (l *Logger) Warnf(format string, args ...any) {
	l.detailf(LevelWarn, "warning: ", format, args...)
}

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...any) {
	l.detailf(LevelError, "error: ", format, args...)
}

// Recoveryf writes a recovery event to both sinks regardless of level.
func (l *Logger) Recoveryf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	ts := l.now()
	writeLine(l.detail, history.FormatLine(ts, Tag, msg))
	writeLine(l.concise, history.FormatLine(ts, "", msg))
}

func (l *Logger) detailf(level Level, prefix, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	msg := prefix + fmt.Sprintf(format, args...)
	writeLine(l.detail, history.FormatLine(l.now(), Tag, msg))
}

// Tee returns a writer that writes every line to all of ws. Unlike
// io.MultiWriter it keeps going after a failing writer; the first error is
// returned.
func Tee(ws ...io.Writer) io.Writer {
	return teeWriter(ws)
}

type teeWriter []io.Writer

func (t teeWriter) Write(p []byte) (int, error) {
	var first error
	for _, w := range t {
		if _, err := w.Write(p); err != nil && first == nil {
			first = err
		}
	}
	return len(p), first
}

// Sink write failures are swallowed; logging never stops the watchdog.
func writeLine(w io.Writer, line string) {
	_, _ = io.WriteString(w, line+"\n")
}
