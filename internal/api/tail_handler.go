package api

import (
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"tailcast/internal/logging"
	"tailcast/internal/tail"

	"github.com/gorilla/websocket"
)

const tailSocketPath = "/ws/tail"

// TailHandler upgrades viewers to a websocket and subscribes them to a file.
type TailHandler struct {
	Engine         *tail.Engine
	Root           string
	AllowedOrigins []string
	Logger         *logging.Logger
	ConnOptions    wsConnOptions
}

func (h *TailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil {
		writeWSError(w, r, nil, h.Logger, wsError{
			Status:  http.StatusServiceUnavailable,
			Message: "tail engine unavailable",
		})
		return
	}

	query := r.URL.Query()
	name := query.Get("file")
	path, err := resolveFileName(h.Root, name)
	if err != nil {
		writeWSError(w, r, nil, h.Logger, wsError{
			Status:  http.StatusBadRequest,
			Message: "invalid file name",
			Err:     err,
		})
		return
	}
	if _, err := statRegularFile(path); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, errNotRegularFile) {
			status = http.StatusNotFound
		}
		writeWSError(w, r, nil, h.Logger, wsError{
			Status:  status,
			Message: "file not found",
			Err:     err,
		})
		return
	}
	cursor, err := parseCursor(query.Get("contentLength"))
	if err != nil {
		writeWSError(w, r, nil, h.Logger, wsError{
			Status:  http.StatusBadRequest,
			Message: "invalid contentLength",
			Err:     err,
		})
		return
	}

	conn, err := upgradeWebSocket(w, r, h.AllowedOrigins)
	if err != nil {
		logWSError(h.Logger, r, http.StatusBadRequest, websocket.CloseProtocolError, "websocket upgrade failed", err)
		return
	}

	viewer := newWSConn(conn, h.ConnOptions)
	viewer.startWriteLoop()

	sub, err := h.Engine.Subscribe(r.Context(), name, viewer, cursor)
	if err != nil {
		viewer.close()
		logWSError(h.Logger, r, http.StatusServiceUnavailable, websocket.CloseTryAgainLater, "subscribe failed", err)
		return
	}
	h.Logger.Info("viewer connected", map[string]string{
		"tailcast.category": "api",
		"file":              name,
		"subscription":      sub.ID,
		"cursor":            strconv.FormatInt(cursor, 10),
		"remote_addr":       r.RemoteAddr,
	})

	viewer.readUntilClosed()

	h.Engine.Unsubscribe(name, sub)
	h.Logger.Info("viewer disconnected", map[string]string{
		"tailcast.category": "api",
		"file":              name,
		"subscription":      sub.ID,
	})
}

// parseCursor reads the client-declared starting offset; empty means zero.
func parseCursor(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, errors.New("cursor must not be negative")
	}
	return value, nil
}
