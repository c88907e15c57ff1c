package logx

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPretty_ZHLabels(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug", "pretty", "zh-CN", "never")
	Infof("hello %s", "world")
	Debugf("dbg")
	out := buf.String()
	assert.Contains(t, out, "[信息] hello world")
	assert.Contains(t, out, "[调试] dbg")
}

func TestPretty_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", "pretty", "zh-CN", "never")
	Infof("should not print")
	Warnf("warn on")
	assert.NotContains(t, buf.String(), "should not print")
	assert.Contains(t, buf.String(), "[警告]")
}

func TestPretty_Locales(t *testing.T) {
	for locale, want := range map[string]string{"en": "[INFO]", "vi-VN": "[THÔNG TIN]", "fr": "[信息]"} {
		var buf bytes.Buffer
		InitWriter(&buf, "info", "pretty", locale, "never")
		Infof("ok")
		assert.Contains(t, buf.String(), want, locale)
	}
}

func TestPretty_Off(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "off", "pretty", "en", "never")
	Errorf("nope")
	assert.Empty(t, buf.String())
}

func TestPretty_AttrsAndColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, slog.LevelInfo, "en", "always")
	l := slog.New(h).WithGroup("book").With("id", "42")
	l.Warn("retry", "n", 3)
	out := buf.String()
	assert.Contains(t, out, "\x1b[33m[WARN]\x1b[0m")
	assert.Contains(t, out, "book.id=42 book.n=3")
}

func TestNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, slog.LevelInfo, "en", "always")
	slog.New(h).Info("x")
	assert.False(t, strings.Contains(buf.String(), "\x1b["))
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "info", "json", "", "")
	Infof("structured")
	var m map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m))
	assert.Equal(t, "structured", m["msg"])
}
