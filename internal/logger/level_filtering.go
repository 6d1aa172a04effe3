package logger

import (
	"context"
	"io"
)

// levelFilteringLogger drops messages below the configured level before they
// are formatted or masked.
type levelFilteringLogger struct {
	inner Logger
}

var _ Logger = (*levelFilteringLogger)(nil)

func (l *levelFilteringLogger) Unwrap() interface{} {
	return l.inner
}

// shouldLog reports whether a message at messageLevel passes the current level.
func (l *levelFilteringLogger) shouldLog(messageLevel string) bool {
	currentLevel := l.inner.GetLogLevel()
	return levelValue(messageLevel) >= levelValue(currentLevel)
}

func newLevelFilteringLogger(inner Logger) *levelFilteringLogger {
	return &levelFilteringLogger{inner: inner}
}

func (l *levelFilteringLogger) Tracef(format string, args ...interface{}) {
	if !l.shouldLog("trace") {
		return
	}
	l.inner.Tracef(format, args...)
}

func (l *levelFilteringLogger) Debugf(format string, args ...interface{}) {
	if !l.shouldLog("debug") {
		return
	}
	l.inner.Debugf(format, args...)
}

func (l *levelFilteringLogger) Infof(format string, args ...interface{}) {
	if !l.shouldLog("info") {
		return
	}
	l.inner.Infof(format, args...)
}

func (l *levelFilteringLogger) Warnf(format string, args ...interface{}) {
	if !l.shouldLog("warn") {
		return
	}
	l.inner.Warnf(format, args...)
}

func (l *levelFilteringLogger) Errorf(format string, args ...interface{}) {
	if !l.shouldLog("error") {
		return
	}
	l.inner.Errorf(format, args...)
}

func (l *levelFilteringLogger) Fatalf(format string, args ...interface{}) {
	if !l.shouldLog("fatal") {
		return
	}
	l.inner.Fatalf(format, args...)
}

func (l *levelFilteringLogger) Trace(msg string) {
	if !l.shouldLog("trace") {
		return
	}
	l.inner.Trace(msg)
}

func (l *levelFilteringLogger) Debug(msg string) {
	if !l.shouldLog("debug") {
		return
	}
	l.inner.Debug(msg)
}

func (l *levelFilteringLogger) Info(msg string) {
	if !l.shouldLog("info") {
		return
	}
	l.inner.Info(msg)
}

func (l *levelFilteringLogger) Warn(msg string) {
	if !l.shouldLog("warn") {
		return
	}
	l.inner.Warn(msg)
}

func (l *levelFilteringLogger) Error(msg string) {
	if !l.shouldLog("error") {
		return
	}
	l.inner.Error(msg)
}

func (l *levelFilteringLogger) Fatal(msg string) {
	if !l.shouldLog("fatal") {
		return
	}
	l.inner.Fatal(msg)
}

func (l *levelFilteringLogger) WithField(key string, value interface{}) LogEntry {
	return &levelFilteringEntry{parent: l, inner: l.inner.WithField(key, value)}
}

func (l *levelFilteringLogger) WithFields(fields map[string]any) LogEntry {
	return &levelFilteringEntry{parent: l, inner: l.inner.WithFields(fields)}
}

func (l *levelFilteringLogger) WithContext(ctx context.Context) LogEntry {
	return &levelFilteringEntry{parent: l, inner: l.inner.WithContext(ctx)}
}

func (l *levelFilteringLogger) SetLogLevel(level string) error {
	return l.inner.SetLogLevel(level)
}

func (l *levelFilteringLogger) GetLogLevel() string {
	return l.inner.GetLogLevel()
}

func (l *levelFilteringLogger) SetOutput(output io.Writer) {
	l.inner.SetOutput(output)
}

// levelFilteringEntry applies the parent's level to an entry with fields.
type levelFilteringEntry struct {
	parent *levelFilteringLogger
	inner  LogEntry
}

func (e *levelFilteringEntry) Tracef(format string, args ...interface{}) {
	if !e.parent.shouldLog("trace") {
		return
	}
	e.inner.Tracef(format, args...)
}

func (e *levelFilteringEntry) Debugf(format string, args ...interface{}) {
	if !e.parent.shouldLog("debug") {
		return
	}
	e.inner.Debugf(format, args...)
}

func (e *levelFilteringEntry) Infof(format string, args ...interface{}) {
	if !e.parent.shouldLog("info") {
		return
	}
	e.inner.Infof(format, args...)
}

func (e *levelFilteringEntry) Warnf(format string, args ...interface{}) {
	if !e.parent.shouldLog("warn") {
		return
	}
	e.inner.Warnf(format, args...)
}

func (e *levelFilteringEntry) Errorf(format string, args ...interface{}) {
	if !e.parent.shouldLog("error") {
		return
	}
	e.inner.Errorf(format, args...)
}

func (e *levelFilteringEntry) Fatalf(format string, args ...interface{}) {
	if !e.parent.shouldLog("fatal") {
		return
	}
	e.inner.Fatalf(format, args...)
}

func (e *levelFilteringEntry) Trace(msg string) {
	if !e.parent.shouldLog("trace") {
		return
	}
	e.inner.Trace(msg)
}

func (e *levelFilteringEntry) Debug(msg string) {
	if !e.parent.shouldLog("debug") {
		return
	}
	e.inner.Debug(msg)
}

func (e *levelFilteringEntry) Info(msg string) {
	if !e.parent.shouldLog("info") {
		return
	}
	e.inner.Info(msg)
}

func (e *levelFilteringEntry) Warn(msg string) {
	if !e.parent.shouldLog("warn") {
		return
	}
	e.inner.Warn(msg)
}

func (e *levelFilteringEntry) Error(msg string) {
	if !e.parent.shouldLog("error") {
		return
	}
	e.inner.Error(msg)
}

func (e *levelFilteringEntry) Fatal(msg string) {
	if !e.parent.shouldLog("fatal") {
		return
	}
	e.inner.Fatal(msg)
}
