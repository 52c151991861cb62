package api

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"os"

	"tailcast/internal/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.New("pages").Funcs(template.FuncMap{
	"pathescape": url.PathEscape,
}).ParseFS(templateFS, "templates/*.html"))

type listingPage struct {
	Root  string
	Files []fileEntry
}

type detailPage struct {
	File          string
	Content       string
	ContentLength int
	SocketPath    string
}

type pageHandler struct {
	root   string
	logger *logging.Logger
}

func (h *pageHandler) handleListing(w http.ResponseWriter, r *http.Request) {
	files, err := listFiles(h.root)
	if err != nil {
		h.logger.Error("list files failed", map[string]string{
			"root":  h.root,
			"error": err.Error(),
		})
		http.Error(w, "unable to list files", http.StatusInternalServerError)
		return
	}
	h.render(w, "listing.html", listingPage{Root: h.root, Files: files})
}

func (h *pageHandler) handleDetail(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	path, err := resolveFileName(h.root, name)
	if err != nil {
		http.Error(w, "files outside the served directory cannot be accessed", http.StatusBadRequest)
		return
	}
	if _, err := statRegularFile(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, errNotRegularFile) {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		http.Error(w, "unable to read file", http.StatusInternalServerError)
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		h.logger.Warn("read file failed", map[string]string{
			"file":  name,
			"error": err.Error(),
		})
		http.Error(w, "unable to read file", http.StatusInternalServerError)
		return
	}
	h.render(w, "detail.html", detailPage{
		File:          name,
		Content:       string(content),
		ContentLength: len(content),
		SocketPath:    tailSocketPath,
	})
}

func (h *pageHandler) render(w http.ResponseWriter, name string, data any) {
	var out bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&out, name, data); err != nil {
		h.logger.Error("render page failed", map[string]string{
			"template": name,
			"error":    err.Error(),
		})
		http.Error(w, "unable to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = out.WriteTo(w)
}
