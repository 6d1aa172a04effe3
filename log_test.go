package goember

import (
	"bytes"
	"context"
	"os"
	"testing"
)

func captureLogs(t *testing.T, level string) *bytes.Buffer {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	assertNilF(t, logger.SetLogLevel(level))
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
		_ = logger.SetLogLevel("error")
	})
	return &buf
}

func TestDefaultLogKeys(t *testing.T) {
	keys := GetLogKeys()
	assertDeepEqualE(t, keys, []contextKey{EmberSessionIDKey, EmberQueryLabelKey, EmberUserKey})

	SetLogKeys(EmberQueryLabelKey)
	t.Cleanup(func() { SetLogKeys(EmberSessionIDKey, EmberQueryLabelKey, EmberUserKey) })
	assertDeepEqualE(t, GetLogKeys(), []contextKey{EmberQueryLabelKey})
}

func TestLoggerMasksSecrets(t *testing.T) {
	buf := captureLogs(t, "info")
	logger.Infof("connecting with password=supersecret1")
	out := buf.String()
	assertStringContainsE(t, out, "****")
	assertFalseE(t, bytes.Contains(buf.Bytes(), []byte("supersecret1")), out)
}

func TestLoggerContextFields(t *testing.T) {
	buf := captureLogs(t, "debug")
	ctx := context.WithValue(context.Background(), EmberQueryLabelKey, "label-42")
	logger.WithContext(ctx).Debug("running")
	assertStringContainsE(t, buf.String(), "label-42")
	assertStringContainsE(t, buf.String(), string(EmberQueryLabelKey))
}

func TestLoggerLevelFiltering(t *testing.T) {
	buf := captureLogs(t, "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	assertFalseE(t, bytes.Contains(buf.Bytes(), []byte("hidden")))
	assertStringContainsE(t, buf.String(), "shown")
}

func TestRegisterLogContextHook(t *testing.T) {
	buf := captureLogs(t, "info")
	RegisterLogContextHook("tenant", func(ctx context.Context) string {
		v, _ := ctx.Value(contextKey("tenant")).(string)
		return v
	})
	ctx := context.WithValue(context.Background(), contextKey("tenant"), "acme")
	logger.WithContext(ctx).Info("hooked")
	assertStringContainsE(t, buf.String(), "tenant=acme")
}
