package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestNewWithWriter(t *testing.T) {
	t.Run("json by default", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter(&buf, "info", "").Info("issued", "certificate_id", 1)

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "issued", line["msg"])
	})

	t.Run("text format and level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWithWriter(&buf, "warn", "text")
		l.Info("hidden")
		l.Warn("shown")
		assert.False(t, strings.Contains(buf.String(), "hidden"))
		assert.True(t, strings.Contains(buf.String(), "msg=shown"))
	})
}
