package logger

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level values used for filtering. Larger is more severe.
const (
	levelTraceValue = -8
	levelDebugValue = -4
	levelInfoValue  = 0
	levelWarnValue  = 4
	levelErrorValue = 8
	levelFatalValue = 12
	levelOffValue   = math.MaxInt32
)

// levelValue returns the numeric value of a level name. Unknown names count
// as info.
func levelValue(level string) int {
	switch strings.ToUpper(level) {
	case "TRACE":
		return levelTraceValue
	case "DEBUG":
		return levelDebugValue
	case "INFO":
		return levelInfoValue
	case "WARN", "WARNING":
		return levelWarnValue
	case "ERROR":
		return levelErrorValue
	case "FATAL":
		return levelFatalValue
	case "OFF":
		return levelOffValue
	default:
		return levelInfoValue
	}
}

// parseLevel validates a level name and returns its canonical upper case
// spelling.
func parseLevel(level string) (string, error) {
	switch upper := strings.ToUpper(strings.TrimSpace(level)); upper {
	case "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", "OFF":
		return upper, nil
	case "WARNING":
		return "WARN", nil
	default:
		return "", fmt.Errorf("unknown log level: %v", level)
	}
}

// toLogrusLevel maps a canonical level name onto logrus. OFF maps to the
// panic level, which the driver never logs at.
func toLogrusLevel(level string) logrus.Level {
	switch level {
	case "TRACE":
		return logrus.TraceLevel
	case "DEBUG":
		return logrus.DebugLevel
	case "WARN":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	case "FATAL":
		return logrus.FatalLevel
	case "OFF":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}
