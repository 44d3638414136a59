package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"langarhall/internal/config"
	"langarhall/internal/handler"
	"langarhall/internal/logger"
	"langarhall/internal/repository/sqlite"
	"langarhall/internal/routes"
	"langarhall/internal/service/ai"
	"langarhall/internal/service/capture"
	"langarhall/internal/service/emitter"
	"langarhall/internal/service/metrics"
	"langarhall/internal/service/monitor"
	"langarhall/internal/service/websocket"
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	detector   *ai.DetectorService
	camera     *capture.Camera
	emitter    *emitter.MQTTEmitter
	hubService *websocket.HubService
	monitor    *monitor.Monitor
	metrics    *metrics.Metrics
	snapshots  *sqlite.SnapshotRepository
}

func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = db
	a.snapshots = sqlite.NewSnapshotRepository(db)
	if stored, err := a.snapshots.Count(); err == nil {
		log.Info("🗄️  %d snapshots in history", stored)
	}

	a.detector = ai.NewDetectorService(cfg, log)
	a.hubService = websocket.NewHubService(log)
	a.metrics = metrics.New()

	deps := monitor.Dependencies{
		Detector:    a.detector,
		Broadcaster: a.hubService,
		Recorder:    a.snapshots,
		Metrics:     a.metrics,
	}

	source, _ := cfg.Source(cfg.CameraIndex)
	camera, err := capture.Open(source.Device, log)
	if err != nil {
		// kamery sieciowe nadal mogą wysyłać klatki (UDP / upload)
		log.Warning("Local camera unavailable, waiting for pushed frames: %v", err)
	} else {
		a.camera = camera
		deps.Source = camera
	}

	if cfg.MQTTBroker != "" {
		a.emitter = emitter.NewMQTTEmitter(cfg.MQTTBroker, cfg.MQTTTopic, cfg.MQTTClientID, log)
		deps.Publisher = a.emitter
	}

	mon, err := monitor.NewMonitor(cfg, deps, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.monitor = mon

	return a, nil
}

// Run starts background services and the HTTP server, and blocks until
// SIGINT/SIGTERM or a fatal server error.
func (a *App) Run() error {
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.emitter != nil {
		if err := a.emitter.Connect(ctx); err != nil {
			a.logger.Warning("MQTT broker not reachable yet, will retry on publish: %v", err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.hubService.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.monitor.Run(ctx)
	}()

	if a.config.CamerasPort > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := handler.UDPCameraHandler(ctx, a.monitor, a.logger, a.config.CamerasPort); err != nil {
				a.logger.Error("UDP camera handler stopped: %v", err)
			}
		}()
	}

	router := routes.SetupRoutes(routes.Services{
		Monitor:   a.monitor,
		Hub:       a.hubService,
		Snapshots: a.snapshots,
		Metrics:   a.metrics,
	}, a.config, a.logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: router,
	}

	fmt.Printf("🚀 Langar Hall Occupancy Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🔑 Password: %s\n", a.config.Password)
	fmt.Printf("👥 Hall capacity: %d\n", a.config.HallCapacity)
	fmt.Printf("🗄️  History: %s\n", a.config.DBPath)
	fmt.Printf("🤖 AI Model: %s\n", a.config.ModelPath)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down...")
	case runErr = <-serverErr:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP shutdown: %v", err)
	}

	wg.Wait()
	return runErr
}

// Close releases the devices, connections and files held by the app.
func (a *App) Close() {
	if a.camera != nil {
		a.camera.Close()
		a.camera = nil
	}
	if a.detector != nil {
		a.detector.Close()
		a.detector = nil
	}
	if a.emitter != nil {
		if a.logger != nil {
			stats := a.emitter.Stats()
			a.logger.Info("MQTT: published %d snapshots, %d errors", stats.Published, stats.Errors)
		}
		a.emitter.Disconnect()
		a.emitter = nil
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
	if a.logger != nil {
		a.logger.Close()
		a.logger = nil
	}
}
