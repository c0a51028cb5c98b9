// Package server exposes the pipeline over HTTP: a JSON API for runs and
// posts, a server-sent event stream of run progress and HTML post pages.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/TobiSchelling/articleforge/internal/database"
	"github.com/TobiSchelling/articleforge/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Runner starts and tracks pipeline runs.
type Runner interface {
	Start(req pipeline.Request) (string, error)
	Get(id string) (pipeline.Run, bool)
	Runs() []pipeline.Run
	Cancel(id string) bool
	Events(id string) (*pipeline.Stream, bool)
}

// PostStore reads stored posts.
type PostStore interface {
	ListPosts(ctx context.Context, f database.PostFilter) ([]database.PostSummary, error)
	GetPost(ctx context.Context, id int64) (*database.Post, error)
}

// Options configure a Server.
type Options struct {
	Host        string
	Port        int
	CORSOrigins []string
	// Heartbeat is the idle interval after which an SSE comment is sent.
	Heartbeat time.Duration
	Logger    *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	runs       Runner
	posts      PostStore
	pages      map[string]*template.Template
	router     *chi.Mux
	httpServer *http.Server
	heartbeat  time.Duration
	log        *slog.Logger
}

// New creates a Server.
func New(runs Runner, posts PostStore, opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		runs:      runs,
		posts:     posts,
		pages:     pages,
		router:    chi.NewRouter(),
		heartbeat: opts.Heartbeat,
		log:       log.With("component", "server"),
	}
	s.setupMiddleware(opts.CORSOrigins)
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func parsePages() (map[string]*template.Template, error) {
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so its "title" and "content"
	// blocks do not collide with another page's.
	pageNames := []string{"index.html", "post.html", "notfound.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}
	return pages, nil
}

func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	if len(origins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}
}

func (s *Server) setupRoutes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Post("/", s.handleStartRun)
			r.Get("/{id}", s.handleGetRun)
			r.Post("/{id}/cancel", s.handleCancelRun)
			r.Get("/{id}/events", s.handleRunEvents)
		})
		r.Route("/posts", func(r chi.Router) {
			r.Get("/", s.handleListPosts)
			r.Get("/{id}", s.handleGetPost)
		})
	})

	s.router.Get("/", s.handleIndexPage)
	s.router.Get("/posts/{id}", s.handlePostPage)
	s.router.NotFound(s.handleNotFound)
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", "http://"+s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
