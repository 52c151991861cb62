package api

import (
	"net/http"
	"time"

	"tailcast/internal/logging"
	"tailcast/internal/tail"
	"tailcast/internal/watcher"
)

// RouteOptions wires the HTTP surface to the tail engine.
type RouteOptions struct {
	Engine         *tail.Engine
	Root           string
	Logger         *logging.Logger
	AllowedOrigins []string
	WatcherMetrics func() watcher.Metrics
	WriteTimeout   time.Duration
	PingInterval   time.Duration
}

// RegisterRoutes mounts the listing, detail, websocket and status endpoints.
func RegisterRoutes(mux *http.ServeMux, options RouteOptions) {
	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	pages := &pageHandler{root: options.Root, logger: logger}
	status := &statusHandler{
		engine:         options.Engine,
		root:           options.Root,
		logger:         logger,
		watcherMetrics: options.WatcherMetrics,
	}
	tailHandler := &TailHandler{
		Engine:         options.Engine,
		Root:           options.Root,
		AllowedOrigins: options.AllowedOrigins,
		Logger:         logger,
		ConnOptions: wsConnOptions{
			WriteTimeout: options.WriteTimeout,
			PingInterval: options.PingInterval,
		},
	}

	mux.Handle("GET /{$}", wrap(logger, securityHeadersHandler(cacheControlNoCache, pages.handleListing)))
	mux.Handle("GET /{file}", wrap(logger, securityHeadersHandler(cacheControlNoCache, pages.handleDetail)))
	mux.Handle("GET "+tailSocketPath, wrap(logger, tailHandler))
	mux.Handle("GET /api/status", wrap(logger, securityHeadersHandler(cacheControlNoStore, status.handleStatus)))
	mux.Handle("GET /api/logs", wrap(logger, securityHeadersHandler(cacheControlNoStore, status.handleLogs)))
}

func wrap(logger *logging.Logger, handler http.Handler) http.Handler {
	return recoverMiddleware(logger, loggingMiddleware(logger, handler))
}
