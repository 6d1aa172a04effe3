package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// rawLogger implements Logger on top of logrus. It performs no masking or
// filtering on its own; those layers wrap it.
type rawLogger struct {
	mu    sync.Mutex
	inner *logrus.Logger
	level string
}

var _ Logger = (*rawLogger)(nil)

func newRawLogger() *rawLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
	})
	l.SetLevel(logrus.InfoLevel)
	return &rawLogger{inner: l, level: "INFO"}
}

func (log *rawLogger) SetLogLevel(level string) error {
	canonical, err := parseLevel(level)
	if err != nil {
		return err
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	log.level = canonical
	log.inner.SetLevel(toLogrusLevel(canonical))
	return nil
}

func (log *rawLogger) GetLogLevel() string {
	log.mu.Lock()
	defer log.mu.Unlock()
	return log.level
}

func (log *rawLogger) SetOutput(output io.Writer) {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.inner.SetOutput(output)
}

func (log *rawLogger) entry() *logrusEntry {
	return &logrusEntry{logrus.NewEntry(log.inner)}
}

func (log *rawLogger) WithField(key string, value interface{}) LogEntry {
	return &logrusEntry{log.inner.WithField(key, value)}
}

func (log *rawLogger) WithFields(fields map[string]any) LogEntry {
	return &logrusEntry{log.inner.WithFields(logrus.Fields(fields))}
}

// WithContext attaches the configured context keys and hook values.
func (log *rawLogger) WithContext(ctx context.Context) LogEntry {
	return &logrusEntry{log.inner.WithContext(ctx).WithFields(extractContextFields(ctx))}
}

func (log *rawLogger) Tracef(format string, args ...interface{}) { log.entry().Tracef(format, args...) }
func (log *rawLogger) Debugf(format string, args ...interface{}) { log.entry().Debugf(format, args...) }
func (log *rawLogger) Infof(format string, args ...interface{})  { log.entry().Infof(format, args...) }
func (log *rawLogger) Warnf(format string, args ...interface{})  { log.entry().Warnf(format, args...) }
func (log *rawLogger) Errorf(format string, args ...interface{}) { log.entry().Errorf(format, args...) }
func (log *rawLogger) Fatalf(format string, args ...interface{}) { log.entry().Fatalf(format, args...) }

func (log *rawLogger) Trace(msg string) { log.entry().Trace(msg) }
func (log *rawLogger) Debug(msg string) { log.entry().Debug(msg) }
func (log *rawLogger) Info(msg string)  { log.entry().Info(msg) }
func (log *rawLogger) Warn(msg string)  { log.entry().Warn(msg) }
func (log *rawLogger) Error(msg string) { log.entry().Error(msg) }
func (log *rawLogger) Fatal(msg string) { log.entry().Fatal(msg) }

// logrusEntry narrows the variadic logrus entry methods to LogEntry.
type logrusEntry struct {
	*logrus.Entry
}

var _ LogEntry = (*logrusEntry)(nil)

func (e *logrusEntry) Trace(msg string) { e.Entry.Trace(msg) }
func (e *logrusEntry) Debug(msg string) { e.Entry.Debug(msg) }
func (e *logrusEntry) Info(msg string)  { e.Entry.Info(msg) }
func (e *logrusEntry) Warn(msg string)  { e.Entry.Warn(msg) }
func (e *logrusEntry) Error(msg string) { e.Entry.Error(msg) }
func (e *logrusEntry) Fatal(msg string) { e.Entry.Fatal(msg) }
