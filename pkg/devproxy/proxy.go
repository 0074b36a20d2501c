// Package devproxy serves the built front-end and forwards API calls to the
// backend, the way the bundler's dev server does during development.
package devproxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/kintai-hq/kintai-client/pkg/sheets"
)

const (
	defaultListen    = "0.0.0.0:3001"
	defaultAPIPrefix = "/api"
	shutdownTimeout  = 5 * time.Second
)

// Logger defines the logging surface the proxy relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

// Options configures the dev server.
type Options struct {
	Listen    string
	Backend   string
	StaticDir string
	APIPrefix string
	Loader    sheets.Loader
	Logger    Logger
}

// Server proxies APIPrefix to Backend and serves StaticDir for everything else.
type Server struct {
	opts    Options
	backend *url.URL
	router  *mux.Router
	log     Logger
}

// New validates opts and builds the routing table.
func New(opts Options) (*Server, error) {
	if strings.TrimSpace(opts.Listen) == "" {
		opts.Listen = defaultListen
	}
	if strings.TrimSpace(opts.APIPrefix) == "" {
		opts.APIPrefix = defaultAPIPrefix
	}
	opts.APIPrefix = "/" + strings.Trim(opts.APIPrefix, "/")

	backend, err := url.Parse(strings.TrimSpace(opts.Backend))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if backend.Scheme == "" || backend.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", opts.Backend)
	}

	log := opts.Logger
	if log == nil {
		log = noopLogger{}
	}
	if opts.Loader == nil {
		opts.Loader = sheets.StaticLoader{}
	}

	s := &Server{opts: opts, backend: backend, log: log}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			// SetURL also rewrites Host to the backend's (changeOrigin).
			pr.SetURL(s.backend)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.log.WarnObj("api proxy failed", "proxy_error", map[string]any{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			http.Error(w, "backend unavailable", http.StatusBadGateway)
		},
	}
	r.PathPrefix(s.opts.APIPrefix).Handler(proxy)

	if s.opts.StaticDir != "" {
		r.PathPrefix("/").Handler(spaHandler{dir: s.opts.StaticDir})
	}
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run ensures the spreadsheet bundle is vendored, then serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.opts.Loader.EnsureLoaded(ctx); err != nil {
		s.log.WarnObj("spreadsheet library unavailable; imports in the browser will fail", "sheets_loader_error", err.Error())
	}

	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoObj("dev proxy listening", "proxy_config", map[string]any{
			"listen":     s.opts.Listen,
			"backend":    s.backend.String(),
			"api_prefix": s.opts.APIPrefix,
			"static_dir": s.opts.StaticDir,
		})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dev proxy serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("dev proxy shutdown: %w", err)
		}
		return nil
	}
}

// spaHandler serves files from dir and falls back to index.html for client-side routes.
type spaHandler struct {
	dir string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel := filepath.FromSlash(filepath.Clean("/" + r.URL.Path))
	full := filepath.Join(h.dir, rel)

	if info, err := os.Stat(full); err == nil && !info.IsDir() {
		http.ServeFile(w, r, full)
		return
	}
	index := filepath.Join(h.dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, index)
}
