package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/counsel/internal/cache"
	"github.com/MikeSquared-Agency/counsel/internal/orchestrator"
)

// Runner is the pipeline as seen by the HTTP surface.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request, sink orchestrator.Sink) (*orchestrator.PipelineState, error)
}

// CacheAdmin is satisfied by *cache.Cache.
type CacheAdmin interface {
	Stats(ctx context.Context) cache.Stats
	ClearNamespace(ctx context.Context, ns cache.Namespace) int
}

type Options struct {
	Port   int
	Runner Runner
	Cache  CacheAdmin
	// History and Archive back the run lookup routes; either may be nil.
	History RunHistory
	Archive RunArchive
	// Secret signs API tokens. Empty disables authentication.
	Secret string
	// Progress, if set, also receives the events of every run.
	Progress orchestrator.Sink
	Logger   *slog.Logger
}

type Server struct {
	router   *chi.Mux
	port     int
	runner   Runner
	cache    CacheAdmin
	history  RunHistory
	archive  RunArchive
	auth     *Auth
	progress orchestrator.Sink
	logger   *slog.Logger
}

func NewServer(opts Options) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     opts.Port,
		runner:   opts.Runner,
		cache:    opts.Cache,
		history:  opts.History,
		archive:  opts.Archive,
		progress: opts.Progress,
		logger:   opts.Logger,
	}
	if opts.Secret != "" {
		s.auth = NewAuth(opts.Secret)
	} else {
		opts.Logger.Warn("COUNSEL_API_TOKEN not set, API is unauthenticated")
	}

	router.Get("/health", s.health)
	router.Route("/v1", func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth.Middleware)
		}
		r.Post("/ask", s.ask)
		r.Get("/ask/stream", s.askStream)
		r.Get("/cache/stats", s.cacheStats)
		r.Delete("/cache/{namespace}", s.clearCache)
		if s.history != nil {
			r.Get("/runs", s.listRuns)
		}
		if s.archive != nil {
			r.Get("/runs/{runID}", s.getRun)
		}
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ask runs one question and returns the whole package once it is final.
func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	applyClaims(r.Context(), &req)

	state, err := s.runner.Run(r.Context(), req, s.progress)
	if err != nil {
		status, body := errorResponse(err, state)
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats(r.Context()))
}

func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	ns := cache.Namespace(chi.URLParam(r, "namespace"))
	if !cache.Known(ns) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown namespace %q", ns))
		return
	}
	deleted := s.cache.ClearNamespace(r.Context(), ns)
	s.logger.Info("cache namespace cleared", "namespace", ns, "deleted", deleted)
	writeJSON(w, http.StatusOK, map[string]any{"namespace": ns, "deleted": deleted})
}

// errorResponse maps a pipeline error onto a status code and body.
func errorResponse(err error, state *orchestrator.PipelineState) (int, map[string]any) {
	body := map[string]any{"error": err.Error()}
	if errors.Is(err, orchestrator.ErrQuestionRequired) || errors.Is(err, orchestrator.ErrQuestionTooLong) ||
		errors.Is(err, orchestrator.ErrInvalidRunID) {
		return http.StatusBadRequest, body
	}
	var se *orchestrator.StageError
	if errors.As(err, &se) {
		body["stage"] = se.Stage
	}
	if state != nil {
		body["run_id"] = state.RunID
	}
	return http.StatusInternalServerError, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
