package ui

import (
	"bytes"
	"html"
	"io"
	"io/fs"
	"log"
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

const titleNeedle = "<title>mdc</title>"

// Handler serves the playground assets. Unknown paths fall back to
// index.html, and index.html gets the configured title.
type Handler struct {
	root  fs.FS
	title string
}

// NewHandler returns a Handler over root without a title override.
func NewHandler(root fs.FS) *Handler {
	return NewHandlerWithTitle(root, "")
}

// NewHandlerWithTitle returns a Handler that injects title into index.html.
func NewHandlerWithTitle(root fs.FS, title string) *Handler {
	return &Handler{root: root, title: strings.TrimSpace(title)}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reqPath := path.Clean("/" + r.URL.Path)
	if reqPath == "/" {
		reqPath = "/index.html"
	}

	if h.serveIfExists(w, strings.TrimPrefix(reqPath, "/")) {
		return
	}
	if path.Ext(reqPath) == "" && h.serveIfExists(w, "index.html") {
		return
	}
	http.NotFound(w, r)
}

func (h *Handler) serveIfExists(w http.ResponseWriter, rel string) bool {
	f, err := h.root.Open(rel)
	if err != nil {
		return false
	}
	defer f.Close()
	if info, err := f.Stat(); err != nil || info.IsDir() {
		return false
	}

	switch ext := strings.ToLower(filepath.Ext(rel)); ext {
	case ".js":
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	case ".css":
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
	case ".html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case ".svg":
		w.Header().Set("Content-Type", "image/svg+xml; charset=utf-8")
	}
	w.Header().Set("Cache-Control", "no-store")

	if rel == "index.html" {
		data, err := io.ReadAll(f)
		if err != nil {
			log.Printf("event=ui.read_error path=%s error=%q", rel, err.Error())
			return false
		}
		if h.title != "" {
			data = injectTitle(data, h.title)
		}
		if _, err := w.Write(data); err != nil {
			log.Printf("event=ui.write_error path=%s error=%q", rel, err.Error())
		}
		return true
	}

	if _, err := io.Copy(w, f); err != nil {
		log.Printf("event=ui.write_error path=%s error=%q", rel, err.Error())
	}
	return true
}

// injectTitle replaces the placeholder title, or prepends one to <head>.
func injectTitle(data []byte, title string) []byte {
	tag := []byte("<title>" + html.EscapeString(title) + "</title>")
	if bytes.Contains(data, []byte(titleNeedle)) {
		return bytes.Replace(data, []byte(titleNeedle), tag, 1)
	}
	if idx := bytes.Index(data, []byte("<head")); idx != -1 {
		if end := bytes.IndexByte(data[idx:], '>'); end != -1 {
			end += idx + 1
			buf := make([]byte, 0, len(data)+len(tag))
			buf = append(buf, data[:end]...)
			buf = append(buf, tag...)
			return append(buf, data[end:]...)
		}
	}
	return append(tag, data...)
}
