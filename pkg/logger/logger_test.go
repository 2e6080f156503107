package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferLogger(level LogLevel) (*bytes.Buffer, Logger) {
	buf := &bytes.Buffer{}
	return buf, NewStandardLogger(log.New(buf, "", 0), level, "[test]")
}

func TestLevelFiltering(t *testing.T) {
	buf, l := newBufferLogger(Warn)

	l.Debug("debug msg")
	l.Info("info msg")
	assert.Empty(t, buf.String())

	l.Warn("warn msg")
	l.Error("error msg")
	out := buf.String()
	assert.Contains(t, out, "[WARN] warn msg")
	assert.Contains(t, out, "[ERROR] error msg")
}

func TestStructuredFields(t *testing.T) {
	buf, l := newBufferLogger(Debug)

	l.Info("job done", "jobId", "j-1", "attempts", 3)
	assert.Contains(t, buf.String(), "jobId=j-1")
	assert.Contains(t, buf.String(), "attempts=3")
}

func TestDanglingKeyGetsPlaceholder(t *testing.T) {
	buf, l := newBufferLogger(Debug)

	l.Info("msg", "orphan")
	assert.Contains(t, buf.String(), "orphan=(no value)")
}

func TestLogModeReturnsNewInstance(t *testing.T) {
	buf, l := newBufferLogger(Silent)

	l.Error("hidden")
	assert.Empty(t, buf.String())

	verbose := l.LogMode(Debug)
	verbose.Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	// The original keeps its level.
	l.Error("still hidden")
	assert.NotContains(t, buf.String(), "still hidden")
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard.Info("ignored", "k", "v")
		Discard.LogMode(Debug).Error("still ignored")
	})
}
