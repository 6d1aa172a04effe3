// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	loggerinternal "github.com/emberdb/goember/internal/logger"
	"github.com/emberdb/goember/loginterface"
)

type contextKey string

// EmberSessionIDKey is the context key of the connection's session id.
const EmberSessionIDKey contextKey = "LOG_SESSION_ID"

// EmberQueryLabelKey is the context key of the label of the running query.
const EmberQueryLabelKey contextKey = "LOG_QUERY_LABEL"

// EmberUserKey is the context key of the user of a session.
const EmberUserKey contextKey = "LOG_USER"

func init() {
	SetLogKeys(EmberSessionIDKey, EmberQueryLabelKey, EmberUserKey)
	_ = logger.SetLogLevel("error")
}

type (
	// ClientLogContextHook is a client-defined hook that can be used to insert log
	// fields based on the Context.
	ClientLogContextHook = loginterface.ClientLogContextHook

	// LogEntry allows for logging using a snapshot of field values.
	LogEntry = loginterface.LogEntry

	// EmberLogger abstracts away the underlying logging mechanism.
	EmberLogger = loginterface.Logger
)

// SetLogKeys sets the context keys to be written to logs when logger.WithContext is used.
func SetLogKeys(keys ...contextKey) {
	ikeys := make([]interface{}, len(keys))
	for i, k := range keys {
		ikeys[i] = k
	}
	loggerinternal.SetLogKeys(ikeys)
}

// GetLogKeys returns the currently configured context keys.
func GetLogKeys() []contextKey {
	ikeys := loggerinternal.GetLogKeys()
	keys := make([]contextKey, 0, len(ikeys))
	for _, k := range ikeys {
		if ck, ok := k.(contextKey); ok {
			keys = append(keys, ck)
		}
	}
	return keys
}

// RegisterLogContextHook registers a hook that can be used to extract fields
// from the Context and associated with log messages using the provided key.
func RegisterLogContextHook(contextKey string, ctxExtractor ClientLogContextHook) {
	loggerinternal.RegisterLogContextHook(contextKey, ctxExtractor)
}

// logger follows whatever SetLogger installs.
var logger EmberLogger = loggerinternal.NewProxy()

// SetLogger replaces the logger used by goember. The provided logger is
// wrapped with secret masking and level filtering.
func SetLogger(inLogger EmberLogger) error {
	return loggerinternal.SetLogger(inLogger)
}

// GetLogger returns the logger used by goember.
func GetLogger() EmberLogger {
	return logger
}

// CreateDefaultLogger returns a new logrus backed logger with secret masking.
// It does not replace the current logger.
func CreateDefaultLogger() EmberLogger {
	return loggerinternal.CreateDefaultLogger()
}
