package api

import (
	"fmt"
	"net/http"

	"tailcast/internal/logging"
)

const (
	cacheControlNoStore = "no-store, must-revalidate"
	cacheControlNoCache = "no-cache"
)

func setSecurityHeaders(w http.ResponseWriter, cacheControl string) {
	headers := w.Header()
	headers.Set("X-Content-Type-Options", "nosniff")
	if cacheControl != "" {
		headers.Set("Cache-Control", cacheControl)
	}
}

func securityHeadersHandler(cacheControl string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, cacheControl)
		next(w, r)
	}
}

func loggingMiddleware(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("http request", map[string]string{
			"tailcast.category": "api",
			"method":            r.Method,
			"path":              r.URL.Path,
		})
		next.ServeHTTP(w, r)
	})
}

// recoverMiddleware keeps the process alive when a handler panics.
func recoverMiddleware(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil || recovered == http.ErrAbortHandler {
				return
			}
			logger.Error("http handler panicked", map[string]string{
				"tailcast.category": "api",
				"path":              r.URL.Path,
				"panic":             fmt.Sprint(recovered),
			})
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}
