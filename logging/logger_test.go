package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONOutputAndLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(func(o *Options) {
		o.Level = "warn"
		o.Output = &buf
	})

	logger.Info("suppressed")
	logger.Warn("session evicted", "session_id", "s1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "session evicted", record["msg"])
	assert.Equal(t, "s1", record["session_id"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(func(o *Options) {
		o.Format = "text"
		o.Output = &buf
	})

	logger.Info("listening", "addr", ":8000")
	assert.Contains(t, buf.String(), "msg=listening")
	assert.Contains(t, buf.String(), "addr=:8000")
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(func(o *Options) {
		o.Level = "verbose"
		o.Output = &buf
	})

	logger.Debug("hidden")
	logger.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
