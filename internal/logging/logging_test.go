// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jeranaias/linuxassist/internal/config"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "linuxassist.log")
	cfg := config.Default().Logging
	cfg.File = path

	logger, closeFn, err := New(cfg, Options{})
	require.NoError(t, err)

	logger.Named("registry").Info("conversation deleted", zap.String("conversation_id", "c1"))
	logger.Debug("filtered at info level")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "conversation deleted", entry["message"])
	assert.Equal(t, "registry", entry["logger"])
	assert.Equal(t, "c1", entry["conversation_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	cfg := config.Default().Logging
	cfg.File = filepath.Join(t.TempDir(), "x.log")
	cfg.Level = "loud"

	_, _, err := New(cfg, Options{})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"":        zap.InfoLevel,
		"DEBUG":   zap.DebugLevel,
		"warning": zap.WarnLevel,
		"error":   zap.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
