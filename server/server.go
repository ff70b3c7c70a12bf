package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"pressbrief/pkg/domain"
)

// Server exposes the operational HTTP surface: status, issue lookups,
// manual story queueing and pipeline triggers.
type Server struct {
	cfg       Config
	issues    IssueReader
	queue     StoryQueue
	scheduler Scheduler

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Config holds the HTTP server settings
type Config struct {
	Listen  string
	Timeout time.Duration
	Version string
	Debug   bool
}

// IssueReader resolves issues for the read endpoints
type IssueReader interface {
	GetLatestIssue(ctx context.Context) (*domain.Issue, error)
	GetIssueByDate(ctx context.Context, issueDate string) (*domain.Issue, error)
}

// StoryQueue accepts manually queued stories
type StoryQueue interface {
	QueueStory(ctx context.Context, q *domain.QueuedStory) error
}

// Scheduler exposes on-demand runs of the periodic workers
type Scheduler interface {
	TriggerIngest(ctx context.Context)
	TriggerScore(ctx context.Context)
	TriggerPipeline(ctx context.Context)
	TriggerSend(ctx context.Context)
}

// New initializes a server instance with routes and middleware set up
func New(cfg Config, issues IssueReader, queue StoryQueue, scheduler Scheduler) *Server {
	s := &Server{
		cfg:       cfg,
		issues:    issues,
		queue:     queue,
		scheduler: scheduler,
		router:    routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	lgr.Printf("[INFO] starting server on %s", s.cfg.Listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Timeout,
		WriteTimeout: s.cfg.Timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("pressbrief", "pressbrief", s.cfg.Version))
	s.router.Use(rest.Ping)

	if s.cfg.Debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("GET /issues/latest", s.latestIssueHandler)
		r.HandleFunc("GET /issues/{date}", s.issueByDateHandler)
		r.HandleFunc("GET /issues/{date}/preview", s.issuePreviewHandler)
		r.HandleFunc("POST /queue", s.queueStoryHandler)

		r.HandleFunc("POST /trigger/ingest", s.triggerHandler("ingest", s.scheduler.TriggerIngest))
		r.HandleFunc("POST /trigger/score", s.triggerHandler("score", s.scheduler.TriggerScore))
		r.HandleFunc("POST /trigger/pipeline", s.triggerHandler("pipeline", s.scheduler.TriggerPipeline))
		r.HandleFunc("POST /trigger/send", s.triggerHandler("send", s.scheduler.TriggerSend))
	})
}

// RenderJSON sends a JSON response with the given status code
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends an error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
