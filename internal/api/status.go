package api

import (
	"net/http"

	"tailcast/internal/logging"
	"tailcast/internal/tail"
	"tailcast/internal/version"
	"tailcast/internal/watcher"
)

type fileStatus struct {
	Name        string  `json:"name"`
	Subscribers int     `json:"subscribers"`
	Cursors     []int64 `json:"cursors,omitempty"`
}

type statusResponse struct {
	Version    string           `json:"version"`
	Root       string           `json:"root"`
	Files      []fileStatus     `json:"files"`
	Passes     uint64           `json:"passes"`
	ReadErrors uint64           `json:"read_errors"`
	Watcher    *watcher.Metrics `json:"watcher,omitempty"`
}

type statusHandler struct {
	engine         *tail.Engine
	root           string
	logger         *logging.Logger
	watcherMetrics func() watcher.Metrics
}

func (h *statusHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	response := statusResponse{
		Version: version.Version,
		Root:    h.root,
		Files:   []fileStatus{},
	}
	if h.engine != nil {
		registry := h.engine.Registry()
		for _, name := range registry.Files() {
			subs := registry.ListSubscribers(name)
			status := fileStatus{Name: name, Subscribers: len(subs)}
			for _, sub := range subs {
				status.Cursors = append(status.Cursors, sub.Cursor())
			}
			response.Files = append(response.Files, status)
		}
		response.Passes = h.engine.Passes()
		response.ReadErrors = h.engine.ReadErrors()
	}
	if h.watcherMetrics != nil {
		metrics := h.watcherMetrics()
		response.Watcher = &metrics
	}
	writeJSON(w, http.StatusOK, response)
}

// handleLogs returns buffered log entries, optionally only those at or above ?level=.
func (h *statusHandler) handleLogs(w http.ResponseWriter, r *http.Request) {
	minLevel := logging.LevelDebug
	if raw := r.URL.Query().Get("level"); raw != "" {
		level, ok := logging.ParseLevel(raw)
		if !ok {
			writeJSONError(w, http.StatusBadRequest, "invalid level")
			return
		}
		minLevel = level
	}
	entries := []logging.Entry{}
	for _, entry := range h.logger.Buffer().List() {
		if logging.AtLeast(entry.Level, minLevel) {
			entries = append(entries, entry)
		}
	}
	writeJSON(w, http.StatusOK, entries)
}
