package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"tailcast/internal/logging"
)

var cursorPattern = regexp.MustCompile(`var cursor =\s*11\s*;`)

func newTestMux(t *testing.T, root string) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	RegisterRoutes(mux, RouteOptions{Root: root, Logger: logging.Discard()})
	return mux
}

func TestListingPageShowsFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "app.log"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rec := httptest.NewRecorder()
	newTestMux(t, root).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `href="/app.log"`) {
		t.Fatalf("expected link to app.log, got %s", body)
	}
	if !strings.Contains(body, "5 B") {
		t.Fatalf("expected formatted size, got %s", body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers")
	}
}

func TestDetailPageRendersContentAndCursor(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "app.log"), []byte("line <one>\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rec := httptest.NewRecorder()
	newTestMux(t, root).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.log", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "line &lt;one&gt;") {
		t.Fatalf("expected escaped content, got %s", body)
	}
	if !cursorPattern.MatchString(body) {
		t.Fatalf("expected initial cursor 11, got %s", body)
	}
	if !strings.Contains(body, tailSocketPath) {
		t.Fatalf("expected websocket path in page")
	}
}

func TestDetailPageMissingFile(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestMux(t, t.TempDir()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing.log", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDetailPageRejectsTraversal(t *testing.T) {
	handler := &pageHandler{root: t.TempDir(), logger: logging.Discard()}
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.SetPathValue("file", "../secret")
	rec := httptest.NewRecorder()

	handler.handleDetail(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDetailPageRejectsDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "logs"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	rec := httptest.NewRecorder()
	newTestMux(t, root).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
