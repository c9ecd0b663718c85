package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileSink_CreatesLogDirAndWritesLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	sink, err := NewFileSink(dir, "api")
	require.NoError(t, err)
	defer sink.Close()

	n, err := sink.Write([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "api_")
}

func TestPruneOldLogs_KeepsOnlyNewestMaxLogFiles(t *testing.T) {
	dir := t.TempDir()

	names := []string{
		"api_20260101_000000.log",
		"api_20260102_000000.log",
		"api_20260103_000000.log",
		"api_20260104_000000.log",
		"api_20260105_000000.log",
		"api_20260106_000000.log",
		"api_20260107_000000.log",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}

	pruneOldLogs(dir, "api")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, maxLogFiles)

	remaining := map[string]bool{}
	for _, e := range entries {
		remaining[e.Name()] = true
	}
	assert.False(t, remaining["api_20260101_000000.log"])
	assert.False(t, remaining["api_20260102_000000.log"])
	assert.True(t, remaining["api_20260107_000000.log"])
}

func TestPruneOldLogs_IgnoresOtherServicesFiles(t *testing.T) {
	dir := t.TempDir()

	for i := 0; i < 6; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "instagram-scraper_2026010"+string(rune('1'+i))+"_000000.log"), []byte("x"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "api_20260101_000000.log"), []byte("x"), 0o644))

	pruneOldLogs(dir, "api")

	_, err := os.Stat(filepath.Join(dir, "api_20260101_000000.log"))
	assert.NoError(t, err, "pruning one service must not touch another service's files")
}

func TestNewFileSink_PrunesBeforeOpeningNewFile(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < maxLogFiles; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "api_2026010"+string(rune('1'+i))+"_000000.log"), []byte("x"), 0o644))
	}

	sink, err := NewFileSink(dir, "api")
	require.NoError(t, err)
	defer sink.Close()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, maxLogFiles+1, "pruning should cap prior files at maxLogFiles, plus the freshly opened one")
}
