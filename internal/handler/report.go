package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"langarhall/internal/config"
	"langarhall/internal/logger"
	"langarhall/internal/model"
	"langarhall/internal/provisioning"
	"langarhall/internal/report"
	"langarhall/internal/repository"
	"langarhall/internal/service/monitor"
)

func currentTable(mon *monitor.Monitor, r *http.Request) (provisioning.Table, error) {
	current, err := mon.Current(r.Context())
	if err != nil {
		return provisioning.Table{}, err
	}
	return provisioning.Compute(current.Occupancy)
}

// ReportHandler handles GET /api/report.csv. With ?save=1 the report is also
// written into the report directory and its path returned.
func ReportHandler(mon *monitor.Monitor, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		table, err := currentTable(mon, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		now := time.Now()
		if r.URL.Query().Get("save") == "1" {
			path, err := report.SaveCSV(cfg.ReportDirectory, table, now)
			if err != nil {
				logger.Error("Failed to save report: %v", err)
				http.Error(w, "Failed to save report", http.StatusInternalServerError)
				return
			}
			logger.Info("✅ Report saved at %s", path)
			writeJSON(w, http.StatusOK, map[string]string{"path": path})
			return
		}

		var buf bytes.Buffer
		if err := report.WriteCSV(&buf, table); err != nil {
			logger.Error("Failed to build report: %v", err)
			http.Error(w, "Failed to build report", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(now)))
		w.Write(buf.Bytes())
	}
}

// ChartHandler handles GET /api/chart.svg with a bar chart of the current requirements.
func ChartHandler(mon *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table, err := currentTable(mon, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(report.BarChartSVG(table))
	}
}

// HistoryHandler handles GET /api/history?limit=N&session=ID&exceeded=1.
func HistoryHandler(repo repository.SnapshotRepository, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		query := r.URL.Query()
		filter := &model.OccupancyFilter{
			SessionID:    query.Get("session"),
			Source:       query.Get("source"),
			ExceededOnly: query.Get("exceeded") == "1",
			Limit:        cfg.HistoryLimit,
		}
		if limit := query.Get("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil || n <= 0 {
				http.Error(w, "Invalid limit", http.StatusBadRequest)
				return
			}
			filter.Limit = n
		}

		records, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Failed to load history: %v", err)
			http.Error(w, "Failed to load history", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []model.OccupancyRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

// ClearHistoryHandler handles POST /api/history/clear.
func ClearHistoryHandler(repo repository.SnapshotRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := repo.DeleteAll(); err != nil {
			logger.Error("Failed to clear history: %v", err)
			http.Error(w, "Failed to clear history", http.StatusInternalServerError)
			return
		}
		logger.Info("History cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}
