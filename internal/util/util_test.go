// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	require.NoError(t, AtomicWriteFile(path, []byte("hello"), 0600))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "state.toml")
	require.NoError(t, AtomicWriteFile(path, []byte("x"), 0600))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestAtomicWriteFile_OverwritesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), 0600))
	require.NoError(t, AtomicWriteFile(path, []byte("second"), 0600))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateWidth(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"fits", "ls -la", 10, "ls -la"},
		{"exact", "abcdef", 6, "abcdef"},
		{"ascii cut", "How do I list files", 10, "How do ..."},
		{"wide runes", "日本語のタイトル", 7, "日本..."},
		{"tiny width", "abcdef", 2, "ab"},
		{"zero", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateWidth(tt.in, tt.width))
		})
	}
}

func TestPadWidth(t *testing.T) {
	assert.Equal(t, "ab   ", PadWidth("ab", 5))
	assert.Equal(t, "ab...", PadWidth("abcdefgh", 5))
}

func TestTruncateBytes_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", TruncateBytes("short", 100))
	// "é" is two bytes; cutting at 2 must not split it.
	assert.Equal(t, "a", TruncateBytes("aé", 2))
	assert.Equal(t, "", TruncateBytes("abc", 0))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Use ls", FirstLine("\n  Use ls  \nmore"))
	assert.Equal(t, "", FirstLine("   \n\t"))
}
