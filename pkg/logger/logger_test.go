package logger

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

func newBufferLogger(level Level) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	opts := DefaultOptions()
	opts.Output = buf
	opts.Level = level
	return New(opts), buf
}

func TestLogger_JSONFields(t *testing.T) {
	log, buf := newBufferLogger(LevelInfo)

	log.With(Component("award")).WithRequestID("req-1").Info("xp awarded",
		UserID("u-1"), XPAmount(10), UserLevel(2), Err(errors.New("boom")))
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "xp awarded", entry["message"])
	assert.Equal(t, "award", entry["component"])
	assert.Equal(t, "req-1", entry[RequestIDKey])
	assert.Equal(t, "u-1", entry["user_id"])
	assert.EqualValues(t, 10, entry["xp_amount"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_LevelFilter(t *testing.T) {
	log, buf := newBufferLogger(LevelWarn)
	log.Info("hidden")
	log.Warn("shown")
	_ = log.Sync()

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestContextPropagation(t *testing.T) {
	log, buf := newBufferLogger(LevelInfo)
	ctx := WithContext(context.Background(), log)

	FromContext(ctx).Info("from ctx")
	_ = log.Sync()
	assert.True(t, strings.Contains(buf.String(), "from ctx"))

	assert.NotNil(t, FromContext(context.Background()))
}
