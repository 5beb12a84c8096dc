// Package server exposes the published projection and market files, plus a
// small JSON API, over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"

	"github.com/MaxiNavarro97/proyectAR/pkg/config"
	"github.com/MaxiNavarro97/proyectAR/pkg/market"
	"github.com/MaxiNavarro97/proyectAR/pkg/projection"
	"github.com/MaxiNavarro97/proyectAR/pkg/sink"
	"github.com/MaxiNavarro97/proyectAR/pkg/survey"
)

const maxUploadSize = 10 << 20

// Server serves the files written by the data engine.
type Server struct {
	config  *config.Config
	logger  *log.Logger
	router  chi.Router
	survey  *survey.Reader
	builder *projection.Builder
	metrics *metrics
}

// New creates a new HTTP server
func New(cfg *config.Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{
		config: cfg,
		logger: logger,
		router: chi.NewRouter(),
		survey: survey.New(logger, survey.Options{
			Sheet:   cfg.REM.Sheet,
			MaxRows: cfg.REM.MaxRows,
		}),
		builder: projection.New(logger),
		metrics: newMetrics(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.metrics.instrument)

	// the paths the front end fetches
	processed := s.config.ProcessedPath()
	r.Get(publicPath(s.config.REM.ProcessedPath), s.withLogging(s.serveFile(processed, sink.ContentType(sink.FormatFromPath(processed, sink.CSV)))))
	r.Get(publicPath(s.config.Market.Path), s.withLogging(s.serveFile(s.config.MarketPath(), "application/json")))

	r.Get("/healthz", s.withLogging(s.handleHealth))
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/projection", s.withLogging(s.handleProjection))
		r.Get("/market", s.withLogging(s.handleMarket))
		r.Post("/project", s.withLogging(s.handleProject))
	})

	r.NotFound(s.withLogging(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, http.StatusNotFound, "not found", nil)
	}))
	r.MethodNotAllowed(s.withLogging(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
	}))
}

// publicPath maps a data directory relative path onto its URL. Absolute paths
// are published under their base name.
func publicPath(p string) string {
	if filepath.IsAbs(p) {
		return "/" + filepath.Base(p)
	}
	return "/" + filepath.ToSlash(filepath.Clean(p))
}

func (s *Server) serveFile(path, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			s.respondError(w, r, http.StatusNotFound, "not generated yet", nil)
			return
		}
		if err != nil {
			s.respondError(w, r, http.StatusInternalServerError, "failed to read file", err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(data); err != nil {
			s.logger.Warn("failed to write file response", "err", err)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	filter, err := sink.Range{From: r.URL.Query().Get("from"), To: r.URL.Query().Get("to")}.Filter()
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	series, err := sink.Load(s.config.ProcessedPath())
	if errors.Is(err, os.ErrNotExist) {
		s.respondError(w, r, http.StatusNotFound, "projection not generated yet", nil)
		return
	}
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to load projection", err)
		return
	}

	var buf bytes.Buffer
	if err := sink.Write(&buf, series, sink.JSON, filter); err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to encode projection", err)
		return
	}
	s.writeRaw(w, "application/json", buf.Bytes())
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	status, err := market.Load(s.config.MarketPath())
	if errors.Is(err, os.ErrNotExist) {
		s.respondError(w, r, http.StatusNotFound, "market status not generated yet", nil)
		return
	}
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to load market status", err)
		return
	}
	data, err := market.Encode(status)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to encode market status", err)
		return
	}
	s.writeRaw(w, "application/json", data)
}

// handleProject builds a projection from an uploaded survey without touching
// the published files.
func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("survey")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "survey file required", err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "failed to read file", err)
		return
	}

	rows, err := s.survey.ProcessBytes(data, header.Filename)
	if err != nil {
		s.metrics.uploads.WithLabelValues("rejected").Inc()
		s.respondError(w, r, http.StatusBadRequest, "failed to process survey", err)
		return
	}
	series := s.builder.Build(rows)
	if len(series) == 0 {
		s.metrics.uploads.WithLabelValues("empty").Inc()
	} else {
		s.metrics.uploads.WithLabelValues("built").Inc()
	}
	s.logger.Info("projection built", "file", header.Filename, "rows", len(rows), "months", len(series))

	var buf bytes.Buffer
	if err := sink.Write(&buf, series, sink.JSON, nil); err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to encode projection", err)
		return
	}
	s.writeRaw(w, "application/json", buf.Bytes())
}

// --- helpers ---

func (s *Server) writeRaw(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("failed to write response", "err", err)
	}
}

// writeJSON encodes v as JSON with the given status and writes headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// respondError logs the error and returns a minimal JSON error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		s.logger.Warn("request error", "status", status, "msg", message, "err", err, "method", r.Method, "path", r.URL.Path)
	} else {
		s.logger.Warn("request error", "status", status, "msg", message, "method", r.Method, "path", r.URL.Path)
	}
	_ = s.writeJSON(w, status, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// withLogging wraps a handler to log the request and recover panics.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "request_id", middleware.GetReqID(r.Context()))
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "panic", rec, "method", r.Method, "path", r.URL.Path)
				s.respondError(w, r, http.StatusInternalServerError, "internal server error", fmt.Errorf("panic: %v", rec))
			}
		}()
		next(w, r)
	}
}
