package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"langarhall/internal/config"
	"langarhall/internal/logger"
	"langarhall/internal/service/monitor"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// OccupancyHandler handles GET /api/occupancy with the current snapshot.
func OccupancyHandler(mon *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		current, err := mon.Current(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, current)
	}
}

// ResetHandler handles POST /api/reset by clearing the tracker.
func ResetHandler(mon *monitor.Monitor, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := mon.Reset(r.Context()); err != nil {
			logger.Error("Failed to reset counts: %v", err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type sourcesResponse struct {
	Current config.Source   `json:"current"`
	Sources []config.Source `json:"sources"`
}

// SourceHandler lists sources on GET and switches the active one on POST (form field "id").
func SourceHandler(mon *monitor.Monitor, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
		case http.MethodPost:
			id, err := strconv.Atoi(r.FormValue("id"))
			if err != nil {
				http.Error(w, "Invalid source id", http.StatusBadRequest)
				return
			}
			if err := mon.SwitchSource(r.Context(), id); err != nil {
				if errors.Is(err, monitor.ErrUnknownSource) {
					http.Error(w, err.Error(), http.StatusNotFound)
					return
				}
				logger.Error("Failed to switch source: %v", err)
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		current, err := mon.CurrentSource(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, sourcesResponse{Current: current, Sources: mon.Sources()})
	}
}
