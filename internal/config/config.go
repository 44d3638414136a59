package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"langarhall/internal/occupancy"
)

// Source is one selectable camera.
type Source struct {
	ID     int    `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Device int    `yaml:"device" json:"device"`
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

type Config struct {
	Port               int
	Password           string
	ModelPath          string
	ConfigPath         string
	DetectionThreshold float64
	DBPath             string
	LogDirectory       string
	ReportDirectory    string
	SamplingInterval   time.Duration // Odstęp między kolejnymi próbkami do okna
	WindowSize         int           // Ile ostatnich próbek uśredniać
	HallCapacity       int
	FrameInterval      time.Duration // Jak często czytać klatkę z kamery (~20 fps)
	CameraIndex        int           // Startowe źródło (ID z listy Sources)
	Sources            []Source
	HistoryLimit       int
	CamerasPort        int    // port UDP dla kamer sieciowych, 0 = wyłączony
	MQTTBroker         string // puste = bez MQTT
	MQTTTopic          string
	MQTTClientID       string
}

// Load reads .env (if present) and the environment, falling back to defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Port:               getEnvAsInt("PORT", 8080),
		Password:           getEnv("PASSWORD", "langar"),
		ModelPath:          getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:         getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		DetectionThreshold: getEnvAsFloat("DETECTION_THRESHOLD", 0.5),
		DBPath:             getEnv("DB_PATH", filepath.Join(".", "data", "occupancy.db")),
		LogDirectory:       getEnv("LOG_DIR", filepath.Join(".", "logs")),
		ReportDirectory:    getEnv("REPORT_DIR", filepath.Join(".", "reports")),
		SamplingInterval:   getEnvAsDuration("SAMPLING_INTERVAL", occupancy.DefaultSamplingInterval, time.Second),
		WindowSize:         getEnvAsInt("WINDOW_SIZE", occupancy.DefaultWindowSize),
		HallCapacity:       getEnvAsInt("HALL_CAPACITY", occupancy.DefaultHallCapacity),
		FrameInterval:      getEnvAsDuration("FRAME_INTERVAL_MS", 50*time.Millisecond, time.Millisecond),
		CameraIndex:        getEnvAsInt("CAMERA_INDEX", 0),
		HistoryLimit:       getEnvAsInt("HISTORY_LIMIT", 100),
		CamerasPort:        getEnvAsInt("CAMERAS_PORT", 0),
		MQTTBroker:         getEnv("MQTT_BROKER", ""),
		MQTTTopic:          getEnv("MQTT_TOPIC", "langarhall/occupancy"),
		MQTTClientID:       getEnv("MQTT_CLIENT_ID", "langarhall"),
	}

	sources, err := loadSources(getEnv("SOURCES_FILE", ""))
	if err != nil {
		return nil, err
	}
	cfg.Sources = sources

	if err := cfg.Tracker().Validate(); err != nil {
		return nil, err
	}
	if cfg.FrameInterval <= 0 {
		return nil, fmt.Errorf("frame interval must be positive, got %s", cfg.FrameInterval)
	}
	if _, ok := cfg.Source(cfg.CameraIndex); !ok {
		return nil, fmt.Errorf("camera index %d is not a configured source", cfg.CameraIndex)
	}
	return cfg, nil
}

// Tracker returns the occupancy tracker settings.
func (c *Config) Tracker() occupancy.Config {
	return occupancy.Config{
		SamplingInterval: c.SamplingInterval,
		WindowSize:       c.WindowSize,
		HallCapacity:     c.HallCapacity,
	}
}

// Source looks up a camera source by ID.
func (c *Config) Source(id int) (Source, bool) {
	for _, s := range c.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// DefaultSources are used when no sources file is configured.
func DefaultSources() []Source {
	return []Source{
		{ID: 0, Name: "Camera 0", Device: 0},
		{ID: 1, Name: "Camera 1", Device: 1},
		{ID: 2, Name: "Camera 2", Device: 2},
	}
}

func loadSources(path string) ([]Source, error) {
	if path == "" {
		return DefaultSources(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}
	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s lists no sources", path)
	}

	seen := make(map[int]bool)
	for _, s := range file.Sources {
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate source id %d in %s", s.ID, path)
		}
		seen[s.ID] = true
	}
	return file.Sources, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration reads a number of units (e.g. seconds) from the environment.
func getEnvAsDuration(key string, defaultValue, unit time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(floatValue * float64(unit))
		}
	}
	return defaultValue
}
