package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{" warn ", log.WarnLevel},
		{"warning", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"unknown", log.InfoLevel},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, parseLevel(tc.in), "level %q", tc.in)
	}
}

func TestNew_WritesOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "debug", Output: &buf, Prefix: "test"})

	logger.Debug("issue added", "id", 7)
	assert.Contains(t, buf.String(), "issue added")
	assert.Contains(t, buf.String(), "id=7")
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "warn", Output: &buf})

	logger.Info("quiet")
	assert.Empty(t, buf.String())
}

func TestNewFile_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "civic.log")

	logger, f, err := NewFile(path, Options{Level: "info"})
	require.NoError(t, err)
	logger.Info("first")
	require.NoError(t, f.Close())

	logger, f, err = NewFile(path, Options{Level: "info"})
	require.NoError(t, err)
	logger.Info("second")
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")
}
