package logger

import (
	"github.com/emberdb/goember/loginterface"
)

// Re-export types from loginterface so the root package and internal
// packages share one definition without an import cycle.
type (
	LogEntry             = loginterface.LogEntry
	Logger               = loginterface.Logger
	ClientLogContextHook = loginterface.ClientLogContextHook
)

// Unwrapper is implemented by the wrapping layers so callers can reach the
// raw logger underneath.
type Unwrapper interface {
	Unwrap() interface{}
}
