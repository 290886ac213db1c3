// Package server exposes the synthesis service over HTTP: a small JSON
// API plus an embedded web form that posts to it.
package server

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"ttsgate/internal/config"
	"ttsgate/internal/store"
	"ttsgate/internal/tts"
)

//go:embed web
var webFS embed.FS

// Server wires the TTS service and clip store into an HTTP API.
type Server struct {
	svc     *tts.Service
	store   *store.Store
	cfg     *config.Config
	version string
	limiter *rate.Limiter
	logger  *log.Logger
	httpSrv *http.Server
}

// New creates the API server. version is reported by /api/health.
func New(cfg *config.Config, svc *tts.Service, st *store.Store, version string) *Server {
	s := &Server{
		svc:     svc,
		store:   st,
		cfg:     cfg,
		version: version,
		logger:  log.WithPrefix("api"),
	}
	if rpm := cfg.Server.RequestsPerMin; rpm > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm/6+1)
	}
	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tts", s.handleTTS).Methods(http.MethodPost, http.MethodGet)
	api.HandleFunc("/audio/{filename}", s.handleAudio).Methods(http.MethodGet)
	api.HandleFunc("/voices", s.handleVoices).Methods(http.MethodGet)
	api.HandleFunc("/clips", s.handleClips).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	web, err := fs.Sub(webFS, "web")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}
	r.PathPrefix("/").Handler(http.FileServer(http.FS(web)))

	var h http.Handler = r
	h = s.rateLimitMiddleware(h)
	h = authMiddleware(s.cfg.Server.APIKey, []string{"/api/health"}, h)
	h = s.loggingMiddleware(h)
	return h
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.httpSrv.Addr, "engine", s.svc.EngineName())
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
