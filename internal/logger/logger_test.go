package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func reset() {
	SetVerbose(false)
	SetOutput(os.Stderr)
}

func TestSetVerbose(t *testing.T) {
	defer reset()

	SetVerbose(false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "test message arg")
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("test message")
	Section("Extraction")

	assert.Zero(t, buf.Len())
}

func TestSection(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Section("Text Extraction")

	assert.Contains(t, buf.String(), "=== Text Extraction ===")
}

func TestInfoWarnError_AlwaysEmitted(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Info("info %d", 1)
	Warn("warn %d", 2)
	Error("error %d", 3)

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "info 1")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "warn 2")
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "error 3")
}

func TestUseCore_Observer(t *testing.T) {
	defer reset()

	core, logs := observer.New(zapcore.DebugLevel)
	UseCore(core)
	SetVerbose(true)

	Warn("scheduler: %s failed", "archive")
	Debug("detail")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "scheduler: archive failed", entries[0].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
}

func TestSync(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	Info("x")
	assert.NoError(t, Sync())
}
