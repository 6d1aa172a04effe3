package logger

import (
	"errors"
	"sync"
)

var (
	loggerAccessorMu sync.Mutex
	// globalLogger is always levelFilteringLogger -> secretMaskingLogger -> raw.
	globalLogger Logger = wrap(newRawLogger())
)

// GetLogger returns the global logger for use by internal packages.
func GetLogger() Logger {
	loggerAccessorMu.Lock()
	defer loggerAccessorMu.Unlock()
	return globalLogger
}

// SetLogger installs providedLogger as the raw logger underneath the masking
// and filtering layers. Loggers already wrapped by this package are unwrapped
// first so the layers are never applied twice.
func SetLogger(providedLogger Logger) error {
	if providedLogger == nil {
		return errors.New("logger cannot be nil")
	}
	if _, isProxy := providedLogger.(*Proxy); isProxy {
		return errors.New("cannot set Proxy as raw logger, it would recurse forever")
	}

	raw := providedLogger
	if filtering, ok := raw.(*levelFilteringLogger); ok {
		raw = filtering.inner
	}
	if masking, ok := raw.(*secretMaskingLogger); ok {
		raw = masking.inner
	}

	loggerAccessorMu.Lock()
	defer loggerAccessorMu.Unlock()
	globalLogger = wrap(raw)
	return nil
}

// CreateDefaultLogger returns a new logrus backed logger with the standard
// layers. It does not touch the global logger.
func CreateDefaultLogger() Logger {
	return wrap(newRawLogger())
}

func wrap(raw Logger) Logger {
	return newLevelFilteringLogger(newSecretMaskingLogger(raw))
}
