package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/vbonduro/mapnote/internal/elevation"
	"github.com/vbonduro/mapnote/internal/geocode"
	"github.com/vbonduro/mapnote/internal/heatmap"
	"github.com/vbonduro/mapnote/internal/routing"
	"github.com/vbonduro/mapnote/internal/service"
	"github.com/vbonduro/mapnote/internal/weather"
)

// Providers are the optional external lookups. A nil provider disables its
// endpoint, which then answers 503.
type Providers struct {
	Router    routing.Router
	Geocoder  geocode.Geocoder
	Elevation elevation.Lookup
	Weather   *weather.Proxy
}

type Server struct {
	service   *service.MapService
	providers Providers
	heatmap   heatmap.Settings
	weather   weather.Settings
	mux       *http.ServeMux
	logger    *slog.Logger
}

func NewServer(
	svc *service.MapService,
	providers Providers,
	heatmapDefaults heatmap.Settings,
	weatherSettings weather.Settings,
	logger *slog.Logger,
) *Server {
	s := &Server{
		service:   svc,
		providers: providers,
		heatmap:   heatmapDefaults,
		weather:   weatherSettings,
		mux:       http.NewServeMux(),
		logger:    logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /api/state", s.handleGetState)
	s.mux.HandleFunc("PUT /api/viewport", s.handleSaveViewport)

	s.mux.HandleFunc("GET /api/markers", s.handleListMarkers)
	s.mux.HandleFunc("POST /api/markers", s.handleCreateMarker)
	s.mux.HandleFunc("DELETE /api/markers/{id}", s.handleDeleteMarker)
	s.mux.HandleFunc("GET /api/shapes", s.handleListShapes)
	s.mux.HandleFunc("POST /api/shapes", s.handleCreateShape)
	s.mux.HandleFunc("DELETE /api/shapes/{id}", s.handleDeleteShape)

	s.mux.HandleFunc("GET /api/heatmap", s.handleHeatmap)
	s.mux.HandleFunc("GET /api/stats", s.handleStatistics)

	s.mux.HandleFunc("GET /api/export", s.handleExport)
	s.mux.HandleFunc("POST /api/import", s.handleImport)
	s.mux.HandleFunc("GET /api/snapshots", s.handleListSnapshots)
	s.mux.HandleFunc("POST /api/snapshots", s.handleArchiveSnapshot)
	s.mux.HandleFunc("GET /api/snapshots/{key}", s.handleGetSnapshot)
	s.mux.HandleFunc("DELETE /api/snapshots/{key}", s.handleDeleteSnapshot)
	s.mux.HandleFunc("POST /api/snapshots/{key}/restore", s.handleRestoreSnapshot)

	s.mux.HandleFunc("GET /api/distance", s.handleDistance)
	s.mux.HandleFunc("GET /api/geocode", s.handleGeocode)
	s.mux.HandleFunc("GET /api/elevation", s.handleElevation)
	s.mux.HandleFunc("GET /api/weather", s.handleWeatherSettings)
	s.mux.HandleFunc("GET /api/weather/{kind}/{z}/{x}/{y}", s.handleWeatherTile)
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
