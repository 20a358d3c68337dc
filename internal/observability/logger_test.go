package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	t.Run("text lines carry sorted fields", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLoggerTo(&buf, "test", LevelInfo)

		l.WithFields(map[string]interface{}{"b": 2, "a": 1}).Info("hello")

		line := strings.TrimSpace(buf.String())
		assert.Contains(t, line, "[INFO] logger_test.go:")
		assert.True(t, strings.HasSuffix(line, "hello a=1 b=2"), line)
	})

	t.Run("levels below the minimum are dropped", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLoggerTo(&buf, "test", LevelWarn)

		l.Info("quiet")
		l.Debugf("quiet %d", 1)
		l.Warn("loud")

		assert.NotContains(t, buf.String(), "quiet")
		assert.Contains(t, buf.String(), "loud")
	})

	t.Run("json lines decode", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLoggerTo(&buf, "host", LevelDebug).WithFormat(FormatJSON)

		l.WithField("photo_id", "abc").WithError(errors.New("boom")).Error("failed")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "ERROR", entry["level"])
		assert.Equal(t, "host", entry["service"])
		assert.Equal(t, "failed", entry["msg"])
		assert.Equal(t, "abc", entry["photo_id"])
		assert.Equal(t, "boom", entry["error"])
	})

	t.Run("derived loggers keep the parent untouched", func(t *testing.T) {
		var buf bytes.Buffer
		parent := NewLoggerTo(&buf, "test", LevelInfo)
		_ = parent.WithField("child", true).WithFormat(FormatJSON)

		parent.Info("plain")
		assert.NotContains(t, buf.String(), "child")
		assert.NotContains(t, buf.String(), "{")
	})

	t.Run("context without a span adds nothing", func(t *testing.T) {
		l := Discard()
		assert.Same(t, l, l.WithContext(context.Background()))
		assert.Same(t, l, l.WithError(nil))
	})
}

func TestParse(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat(""))
}
