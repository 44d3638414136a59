package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogger_WritesPerLevelFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	l, err := NewLogger(dir)
	require.NoError(t, err)
	defer l.Close()

	l.Info("occupancy %d", 4)
	l.Warning("capacity exceeded (%d/%d)", 6, 5)
	l.Error("detector failed: %v", "boom")

	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		return string(data)
	}

	require.Contains(t, read(InfoFile), "occupancy 4")
	require.Contains(t, read(WarningFile), "capacity exceeded (6/5)")
	require.Contains(t, read(ErrorFile), "detector failed: boom")
	require.False(t, strings.Contains(read(InfoFile), "boom"))
}

func TestLogger_CleanLogs(t *testing.T) {
	dir := t.TempDir()

	l, err := NewLogger(dir)
	require.NoError(t, err)
	defer l.Close()

	l.Info("something")
	require.NoError(t, l.CleanLogs(InfoFile))

	info, err := os.Stat(filepath.Join(dir, InfoFile))
	require.NoError(t, err)
	require.Zero(t, info.Size())

	require.Error(t, l.CleanLogs("missing.log"))
}

func TestNewDiscard(t *testing.T) {
	l := NewDiscard()
	l.Info("ignored")
	l.Warning("ignored")
	l.Error("ignored")
	l.Close()
}
