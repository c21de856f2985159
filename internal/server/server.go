// Package server serves the lookup table built from the active consular units.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/andreiashu/geoselect"
	"github.com/andreiashu/geoselect/internal/metrics"
	"github.com/andreiashu/geoselect/internal/units"
)

// maxUploadMemory is how much of a multipart body is held in memory
// before spilling to temporary files.
const maxUploadMemory = 32 << 20

// multipartOverhead is the room allowed on top of the total upload limit
// for multipart boundaries, part headers and plain form fields.
const multipartOverhead = 1 << 20

// snapshot is a table and a locator built from the same read of the store.
type snapshot struct {
	table   geoselect.LookupTable
	locator *units.Locator
	builtAt time.Time
}

// Server answers lookup requests. Safe for concurrent use.
type Server struct {
	store    units.Store
	logger   *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	ttl      time.Duration
	limits   geoselect.UploadLimits
	now      func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	snap  *snapshot
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithTTL sets how long a built table is served before the store is read
// again. Zero rebuilds on every request.
func WithTTL(ttl time.Duration) Option {
	return func(s *Server) { s.ttl = ttl }
}

// WithUploadLimits sets the limits of the upload check endpoint.
func WithUploadLimits(limits geoselect.UploadLimits) Option {
	return func(s *Server) { s.limits = limits }
}

// WithRegistry registers the service metrics on reg and exposes reg on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = metrics.New(reg)
		s.gatherer = reg
	}
}

// New creates a Server reading units from store.
func New(store units.Store, opts ...Option) *Server {
	s := &Server{
		store:  store,
		logger: zap.NewNop(),
		ttl:    5 * time.Minute,
		limits: geoselect.DefaultUploadLimits(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	return s
}

// Router mounts the service endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Get(geoselect.DefaultEndpoint, s.handleCountriesCities)
	r.Get("/api/units/nearest", s.handleNearest)
	r.Post("/api/uploads/check", s.handleUploadCheck)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Invalidate drops the cached table so the next request rebuilds it.
func (s *Server) Invalidate() {
	s.mu.Lock()
	s.snap = nil
	s.mu.Unlock()
}

// Table returns the lookup table, rebuilding it from the store when the
// cached one is older than the TTL. Concurrent rebuilds share one store read.
func (s *Server) Table(ctx context.Context) (geoselect.LookupTable, error) {
	snap, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return snap.table, nil
}

func (s *Server) current(ctx context.Context) (*snapshot, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	if snap != nil && s.now().Sub(snap.builtAt) < s.ttl {
		return snap, nil
	}

	v, err, _ := s.group.Do("snapshot", func() (any, error) {
		active, err := s.store.Active(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing active units: %w", err)
		}
		built := &snapshot{
			table:   units.BuildTable(active),
			locator: units.NewLocator(active),
			builtAt: s.now(),
		}
		s.mu.Lock()
		s.snap = built
		s.mu.Unlock()

		s.metrics.TableRebuilds.Inc()
		s.metrics.TableSize.Set(float64(len(built.table)))
		s.logger.Debug("lookup table rebuilt",
			zap.Int("countries", len(built.table)),
			zap.Int("located_units", built.locator.Len()))
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCountriesCities(w http.ResponseWriter, r *http.Request) {
	table, err := s.Table(r.Context())
	if err != nil {
		s.logger.Error("building lookup table failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates")
		return
	}

	snap, err := s.current(r.Context())
	if err != nil {
		s.logger.Error("building unit index failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	match, ok := snap.locator.Nearest(lat, lng)
	if !ok {
		writeError(w, http.StatusNotFound, "no_unit")
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (s *Server) handleUploadCheck(w http.ResponseWriter, r *http.Request) {
	if s.limits.MaxTotalSize > 0 {
		limit := s.limits.MaxTotalSize + multipartOverhead
		if r.ContentLength > limit {
			s.writeBodyTooLarge(w, r.ContentLength, limit)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeBodyTooLarge(w, -1, tooLarge.Limit)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_multipart")
		return
	}
	defer r.MultipartForm.RemoveAll()

	err := s.limits.ValidateMultipart(r.MultipartForm)
	var uploadErr *geoselect.UploadError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.As(err, &uploadErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":   uploadCode(uploadErr),
			"message": uploadErr.Error(),
		})
	default:
		s.logger.Warn("reading upload failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, "unreadable_file")
	}
}

// writeBodyTooLarge rejects a request body over limit. size is -1 when the
// body was cut off while reading.
func (s *Server) writeBodyTooLarge(w http.ResponseWriter, size, limit int64) {
	msg := fmt.Sprintf("%v: request body exceeds the %s limit", geoselect.ErrTotalTooLarge, geoselect.FormatFileSize(limit))
	if size >= 0 {
		msg = fmt.Sprintf("%v: %s exceeds the %s limit", geoselect.ErrTotalTooLarge, geoselect.FormatFileSize(size), geoselect.FormatFileSize(limit))
	}
	s.logger.Warn("upload body too large", zap.Int64("size", size), zap.Int64("limit", limit))
	writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
		"error":   "total_too_large",
		"message": msg,
	})
}

func uploadCode(err *geoselect.UploadError) string {
	switch {
	case errors.Is(err, geoselect.ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, geoselect.ErrTotalTooLarge):
		return "total_too_large"
	case errors.Is(err, geoselect.ErrFileType):
		return "file_type"
	}
	return "invalid_upload"
}

// observe logs and counts every request under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(route, strconv.Itoa(status), elapsed.Seconds())
		s.logger.Debug("request served",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the JSON error envelope.
func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
