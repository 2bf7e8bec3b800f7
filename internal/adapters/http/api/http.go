// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/okian/csvmerge/internal/adapters/codec"
	"github.com/okian/csvmerge/internal/adapters/repository"
	service "github.com/okian/csvmerge/internal/app"
	"github.com/okian/csvmerge/internal/domain/merge"
	"github.com/okian/csvmerge/internal/domain/model"
	"github.com/okian/csvmerge/pkg/logger"
)

// BasePath prefixes the file merge routes.
const BasePath = "/csvmerge/api/1.0.0"

// MergeService runs merges and serves stored records.
type MergeService interface {
	CreateMerge(ctx context.Context, req service.Request) (service.Outcome, error)
	GetRecord(ctx context.Context, id int64) (model.Record, error)
	DeleteRecord(ctx context.Context, id int64) (model.Record, error)
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	MergeService
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	filesHandler  *FilesHandler
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	maxUploadBytes int64
}

// WithMaxUploadBytes caps the size of a merge upload.
func WithMaxUploadBytes(n int64) ServerOption {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxUploadBytes = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	cfg := serverConfig{maxUploadBytes: defaultMaxUploadBytes}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
		filesHandler:  NewFilesHandler(deps, cfg.maxUploadBytes),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST "+BasePath+"/files", MetricsMiddleware(s.filesHandler.HandleCreate, "files"))
	mux.HandleFunc("GET "+BasePath+"/files/{id}", MetricsMiddleware(s.filesHandler.HandleGet, "files_id"))
	mux.HandleFunc("POST "+BasePath+"/files/{id}", MetricsMiddleware(s.filesHandler.HandleGet, "files_id"))
	mux.HandleFunc("DELETE "+BasePath+"/files/{id}", MetricsMiddleware(s.filesHandler.HandleDelete, "files_id"))
}

// Handler returns mux wrapped with the request id middleware.
func Handler(mux http.Handler) http.Handler {
	return RequestIDMiddleware(mux)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps an error to a status code and error code.
func classify(err error) (int, string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr), errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, merge.ErrInvalidInput),
		errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrMissingFile),
		errors.Is(err, ErrInvalidRecord),
		errors.Is(err, codec.ErrDecode),
		errors.Is(err, codec.ErrUnknownFormat):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// fail logs err with the sender address and writes the mapped error response.
// Server errors are reported without their details.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	fields := []logger.Field{
		logger.String("sender", senderIP(r)),
		logger.String("path", r.URL.Path),
		logger.Int("status", status),
		logger.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Get().Error(r.Context(), "request failed", fields...)
		writeError(w, status, code, nil)
		return
	}
	logger.Get().Warn(r.Context(), "request rejected", fields...)
	writeJSON(w, status, errorResponse{Code: code, Message: publicMessage(err)})
}

func senderIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
