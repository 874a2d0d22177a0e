// Package content serves static files for a resolved route: document-root
// lookup, index files, generated directory listings, and block-return
// redirects.
package content

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bastion-web/bastion/pkg/router"
)

// Handler turns resolved routes into HTTP responses. It holds no per-request
// state and is safe for concurrent use.
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a content handler.
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger.With("component", "content")}
}

// Serve handles one request under the given route. The route comes from the
// router; by the time we are here the virtual server and location are fixed.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, route router.Route) {
	if route.Redirect != nil {
		h.redirect(w, r, route)
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		h.error(w, r, http.StatusMethodNotAllowed)
		return
	}

	relPath, ok := cleanPath(r.URL.Path)
	if !ok {
		// Traversal attempts get the same 404 as a missing file so probing
		// reveals nothing about the layout outside the root.
		h.error(w, r, http.StatusNotFound)
		return
	}

	full := filepath.Join(route.Root, filepath.FromSlash(relPath))
	info, err := os.Stat(full)
	if err != nil {
		if os.IsPermission(err) {
			h.error(w, r, http.StatusForbidden)
			return
		}
		h.error(w, r, http.StatusNotFound)
		return
	}

	if info.IsDir() {
		h.serveDir(w, r, route, full, relPath)
		return
	}
	h.serveFile(w, r, full, info)
}

func (h *Handler) serveDir(w http.ResponseWriter, r *http.Request, route router.Route, dir, relPath string) {
	// Directory URLs are canonical with a trailing slash; relative links in
	// index pages break without it.
	if !strings.HasSuffix(r.URL.Path, "/") {
		u := *r.URL
		u.Path += "/"
		http.Redirect(w, r, u.String(), http.StatusMovedPermanently)
		return
	}

	if route.DirIndex != "" {
		index := filepath.Join(dir, route.DirIndex)
		if info, err := os.Stat(index); err == nil && !info.IsDir() {
			h.serveFile(w, r, index, info)
			return
		}
	}

	if route.AutoIndex {
		h.autoIndex(w, r, dir, relPath)
		return
	}
	// No index file and listings off: the directory is not served, and the
	// response is indistinguishable from a missing path.
	h.error(w, r, http.StatusNotFound)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, full string, info os.FileInfo) {
	f, err := os.Open(full)
	if err != nil {
		if os.IsPermission(err) {
			h.error(w, r, http.StatusForbidden)
			return
		}
		h.error(w, r, http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", TypeByName(info.Name()))
	// ServeContent handles ranges, If-Modified-Since and HEAD for free.
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, route router.Route) {
	target := ExpandTarget(route.Redirect.Target, r, route.Server.Name)
	http.Redirect(w, r, target, route.Redirect.Status)
}

func (h *Handler) error(w http.ResponseWriter, r *http.Request, status int) {
	ServeError(w, status)
}

// cleanPath canonicalizes a request path into a root-relative form and
// reports whether it is safe to resolve under a document root. Any dot-dot
// segment in the raw path is rejected outright.
func cleanPath(p string) (string, bool) {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", false
		}
	}
	cleaned := path.Clean("/" + p)
	return strings.TrimPrefix(cleaned, "/"), true
}
