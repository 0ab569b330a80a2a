package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStringer string

func (s testStringer) String() string { return string(s) }

type countingStringer struct{ calls int }

func (c *countingStringer) String() string {
	c.calls++
	return "payload"
}

func TestInitAndLoggingToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "llmpanel.log")

	require.NoError(t, Init(logPath))
	t.Cleanup(func() { _ = Close() })

	LogEvent("hello %s", "world")
	require.NoError(t, Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello world")
}

func TestLogRequestOnlyAtDebug(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(func() {
		SetDebug(false)
		_ = Close()
	})

	SetDebug(false)
	LogRequest("out", "openai", "gpt-4o", "quiet")
	assert.NotContains(t, buf.String(), "quiet")

	SetDebug(true)
	LogRequest("out", "openai", "gpt-4o", "loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestLogRequestSkipsFormattingBelowDebug(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(func() {
		SetDebug(false)
		_ = Close()
	})

	payload := &countingStringer{}
	SetDebug(false)
	LogRequest("out", "openai", "gpt-4o", payload)
	assert.Zero(t, payload.calls)

	SetDebug(true)
	LogRequest("out", "openai", "gpt-4o", payload)
	assert.Equal(t, 1, payload.calls)
}

func TestBuildRequestMessageDefaults(t *testing.T) {
	msg := buildRequestMessage(" in ", " ", "", map[string]any{"ok": true})
	assert.Contains(t, msg, "[IN]")
	assert.Contains(t, msg, "provider=unknown")
	assert.Contains(t, msg, "model=unknown")
	assert.Contains(t, msg, `payload={"ok":true}`)
}

func TestBuildRequestMessageTruncatesPayload(t *testing.T) {
	msg := buildRequestMessage("out", "p", "m", strings.Repeat("x", maxPayloadRunes+10))
	assert.True(t, strings.HasSuffix(msg, "…"))
}

func TestFormatPayloadVariants(t *testing.T) {
	assert.Equal(t, "null", formatPayload(nil))
	assert.Equal(t, `""`, formatPayload(" "))
	assert.Equal(t, "hi", formatPayload([]byte("hi")))
	assert.Equal(t, "[]", formatPayload([]byte{}))
	assert.Equal(t, "ok", formatPayload(testStringer("ok")))
}
