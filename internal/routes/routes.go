package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"langarhall/internal/config"
	"langarhall/internal/handler"
	"langarhall/internal/logger"
	"langarhall/internal/middleware"
	"langarhall/internal/repository"
	"langarhall/internal/service/metrics"
	"langarhall/internal/service/monitor"
	"langarhall/internal/service/websocket"
)

// Services groups what the HTTP surface needs.
type Services struct {
	Monitor   *monitor.Monitor
	Hub       *websocket.HubService
	Snapshots repository.SnapshotRepository
	Metrics   *metrics.Metrics
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(svc Services, cfg *config.Config, appLogger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Camera push
	mux.HandleFunc("/camera/upload", handler.CameraUploadHandler(svc.Monitor, appLogger))

	// API endpoints
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(svc.Monitor, svc.Hub, appLogger))
	mux.HandleFunc("/api/occupancy", handler.OccupancyHandler(svc.Monitor))
	mux.HandleFunc("/api/reset", handler.ResetHandler(svc.Monitor, appLogger))
	mux.HandleFunc("/api/source", handler.SourceHandler(svc.Monitor, appLogger))
	mux.HandleFunc("/api/report.csv", handler.ReportHandler(svc.Monitor, cfg, appLogger))
	mux.HandleFunc("/api/chart.svg", handler.ChartHandler(svc.Monitor))
	if svc.Snapshots != nil {
		mux.HandleFunc("/api/history", handler.HistoryHandler(svc.Snapshots, cfg, appLogger))
		mux.HandleFunc("/api/history/clear", handler.ClearHistoryHandler(svc.Snapshots, appLogger))
	}

	// Log endpoints
	mux.HandleFunc("/logs/info", handler.ShowLogsHandler(cfg.LogDirectory, logger.InfoFile))
	mux.HandleFunc("/logs/warning", handler.ShowLogsHandler(cfg.LogDirectory, logger.WarningFile))
	mux.HandleFunc("/logs/error", handler.ShowLogsHandler(cfg.LogDirectory, logger.ErrorFile))

	mux.HandleFunc("/logs/info/clear", handler.ClearLogsHandler(appLogger, logger.InfoFile))
	mux.HandleFunc("/logs/warning/clear", handler.ClearLogsHandler(appLogger, logger.WarningFile))
	mux.HandleFunc("/logs/error/clear", handler.ClearLogsHandler(appLogger, logger.ErrorFile))

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	if svc.Metrics != nil {
		mux.Handle("/metrics", svc.Metrics.Handler())
	}

	// Automatic HTML handler mapping for example: /history -> /static/history.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	// Apply middleware
	return middleware.AuthMiddleware(mux)
}
