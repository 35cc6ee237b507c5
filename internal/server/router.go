// Package server implements the HTTP server and routing logic.
package server

import (
	"io"
	"io/fs"
	"net/http"
	"strings"

	"github.com/maruel/entrystore/internal/server/handlers"
	"github.com/maruel/entrystore/internal/server/ipgeo"
	"github.com/maruel/entrystore/internal/server/ratelimit"
	"github.com/maruel/entrystore/internal/storage"
)

// Options configures NewRouter.
type Options struct {
	Store   *storage.Store
	Config  *storage.ServerConfig
	Version string

	// Optional.
	Committer Committer
	Geo       *ipgeo.Checker
	UI        fs.FS // Root of the static UI, served at /.
}

// Router serves the entry API and the UI.
type Router struct {
	mux    *http.ServeMux
	limits *ratelimit.Config
}

// NewRouter creates and configures the HTTP router.
//
// The entry endpoint is served at both /entries and /api/entries. Only GET and
// POST are accepted there, other methods get 405 with an Allow header.
func NewRouter(opts *Options) *Router {
	cfg := opts.Config
	if cfg == nil {
		cfg = storage.DefaultServerConfig()
	}
	wc := &wrapConfig{
		maxBodyBytes: cfg.Quotas.MaxRequestBodyBytes,
		limits:       ratelimit.NewConfig(cfg.RateLimits),
		geo:          opts.Geo,
		committer:    opts.Committer,
		files:        opts.Store.Files(),
	}
	eh := handlers.NewEntryHandler(opts.Store, cfg.Quotas)
	hh := handlers.NewHealthHandler(opts.Version)
	sh := handlers.NewSchemaHandler()

	mux := &http.ServeMux{}
	for _, p := range []string{"/entries", "/api/entries"} {
		mux.Handle("GET "+p, Wrap(eh.ListEntries, wc))
		mux.Handle("POST "+p, Wrap(eh.SaveEntry, wc))
		// A GET pattern also matches HEAD.
		mux.Handle("HEAD "+p, methodNotAllowed("GET, POST"))
		mux.Handle(p, methodNotAllowed("GET, POST"))
	}
	mux.Handle("GET /api/health", Wrap(hh.Health, wc))
	mux.Handle("GET /api/schema", Wrap(sh.Schema, wc))
	if opts.UI != nil {
		mux.Handle("/", NewStaticHandler(opts.UI))
	}
	return &Router{mux: mux, limits: wc.limits}
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// Close releases the rate limiters.
func (rt *Router) Close() {
	rt.limits.Close()
}

// StaticHandler serves an embedded static site, falling back to index.html
// for unknown paths without an extension.
type StaticHandler struct {
	fsys fs.FS
	srv  http.Handler
}

// NewStaticHandler creates a handler for the embedded UI.
func NewStaticHandler(fsys fs.FS) *StaticHandler {
	return &StaticHandler{fsys: fsys, srv: http.FileServer(http.FS(fsys))}
}

// ServeHTTP implements http.Handler.
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name != "" {
		if f, err := h.fsys.Open(name); err == nil {
			_ = f.Close()
			if hasExt(name) {
				w.Header().Set("Cache-Control", "public, max-age=3600")
			}
			h.srv.ServeHTTP(w, r)
			return
		}
		if hasExt(name) {
			http.NotFound(w, r)
			return
		}
	}
	index, err := h.fsys.Open("index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer func() { _ = index.Close() }()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = io.Copy(w, index)
}

// hasExt reports whether the last path element has a file extension.
func hasExt(path string) bool {
	i := strings.LastIndexAny(path, "/.")
	return i >= 0 && path[i] == '.'
}
