package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuild_WritesFileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mailsheet.log")
	var console bytes.Buffer

	log, cleanup, err := build(Config{File: path, Level: "info"}, &console)
	require.NoError(t, err)

	log.Info("run finished", zap.Int("processed", 2))
	log.Debug("hidden at info level")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "run finished", entry["msg"])
	assert.Equal(t, float64(2), entry["processed"])
	assert.NotEmpty(t, entry["ts"])

	assert.Contains(t, console.String(), "run finished")
	assert.NotContains(t, console.String(), "hidden at info level")
}

func TestBuild_ConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	log, cleanup, err := build(Config{Level: "debug", Dev: true}, &console)
	require.NoError(t, err)

	log.Debug("visible")
	cleanup()

	assert.Contains(t, console.String(), "visible")
	assert.Contains(t, console.String(), "DEBUG")
}

func TestBuild_InvalidLevel(t *testing.T) {
	_, _, err := build(Config{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}
