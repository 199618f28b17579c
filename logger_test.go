package mqtt311

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "NONE", LogLevelNone.String())
	assert.Equal(t, "UNKNOWN", LogLevel(99).String())
}

func TestStdLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLogger(&buf, LogLevelWarn)

	logger.Debug("debug message", nil)
	logger.Info("info message", nil)
	assert.Zero(t, buf.Len())

	logger.Warn("warn message", nil)
	logger.Error("error message", nil)

	output := buf.String()
	assert.Contains(t, output, "[WARN] warn message")
	assert.Contains(t, output, "[ERROR] error message")
}

func TestStdLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLogger(&buf, LogLevelDebug)

	child := logger.WithFields(LogFields{LogFieldClientID: "c1"})
	child.Info("connected", LogFields{LogFieldTopic: "t"})

	output := buf.String()
	assert.Contains(t, output, "connected")
	assert.Contains(t, output, "client_id")
	assert.Contains(t, output, "c1")
	assert.Contains(t, output, "topic")

	// Parent logger is unchanged
	buf.Reset()
	logger.Info("plain", nil)
	assert.False(t, strings.Contains(buf.String(), "client_id"))
}

func TestStdLoggerSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLogger(&buf, LogLevelError)

	logger.SetLevel(LogLevelDebug)
	assert.Equal(t, LogLevelDebug, logger.Level())

	logger.Debug("now visible", nil)
	assert.Contains(t, buf.String(), "now visible")
}

func TestNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()

	logger.Debug("x", nil)
	logger.Error("x", nil)
	assert.Equal(t, logger, logger.WithFields(LogFields{"k": "v"}))
	assert.Equal(t, LogLevelNone, logger.Level())

	logger.SetLevel(LogLevelDebug)
	assert.Equal(t, LogLevelDebug, logger.Level())
}
