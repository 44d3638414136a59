package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 5*time.Second, cfg.SamplingInterval)
	require.Equal(t, 3, cfg.WindowSize)
	require.Equal(t, 5, cfg.HallCapacity)
	require.Equal(t, 50*time.Millisecond, cfg.FrameInterval)
	require.Equal(t, DefaultSources(), cfg.Sources)
	require.Empty(t, cfg.MQTTBroker)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SAMPLING_INTERVAL", "2.5")
	t.Setenv("WINDOW_SIZE", "5")
	t.Setenv("HALL_CAPACITY", "120")
	t.Setenv("FRAME_INTERVAL_MS", "100")
	t.Setenv("DETECTION_THRESHOLD", "0.7")
	t.Setenv("MQTT_BROKER", "localhost:1883")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 2500*time.Millisecond, cfg.SamplingInterval)
	require.Equal(t, 100*time.Millisecond, cfg.FrameInterval)
	require.Equal(t, 0.7, cfg.DetectionThreshold)
	require.Equal(t, "localhost:1883", cfg.MQTTBroker)

	tr := cfg.Tracker()
	require.Equal(t, 5, tr.WindowSize)
	require.Equal(t, 120, tr.HallCapacity)
}

func TestLoad_InvalidValueFallsBackToDefault(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
}

func TestLoad_RejectsInvalidTrackerSettings(t *testing.T) {
	t.Setenv("WINDOW_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsNonPositiveFrameInterval(t *testing.T) {
	for _, value := range []string{"0", "-20"} {
		t.Setenv("FRAME_INTERVAL_MS", value)

		_, err := Load()
		require.Error(t, err, "FRAME_INTERVAL_MS=%s", value)
		require.Contains(t, err.Error(), "frame interval")
	}
}

func TestLoad_SourcesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  - id: 0
    name: Main hall
    device: 0
  - id: 4
    name: Kitchen door
    device: 2
`), 0644))

	t.Setenv("SOURCES_FILE", path)
	t.Setenv("CAMERA_INDEX", "4")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 2)

	src, ok := cfg.Source(4)
	require.True(t, ok)
	require.Equal(t, "Kitchen door", src.Name)
	require.Equal(t, 2, src.Device)

	_, ok = cfg.Source(1)
	require.False(t, ok)
}

func TestLoad_SourcesFileErrors(t *testing.T) {
	dir := t.TempDir()

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("sources:\n  - id: 1\n  - id: 1\n"), 0644))
	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("sources: []\n"), 0644))

	for _, path := range []string{dup, empty, filepath.Join(dir, "missing.yaml")} {
		t.Setenv("SOURCES_FILE", path)
		_, err := Load()
		require.Error(t, err, path)
	}
}

func TestLoad_UnknownCameraIndex(t *testing.T) {
	t.Setenv("CAMERA_INDEX", "7")

	_, err := Load()
	require.Error(t, err)
}
