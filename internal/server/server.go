// Package server exposes the service workflows over http.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cpstats-backend/internal/components/assert"
	"cpstats-backend/internal/components/telemetry"
	"cpstats-backend/internal/profiles"
	"cpstats-backend/internal/service"
	"cpstats-backend/internal/stats"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultCacheMaxAge = 3600

const (
	report_server_internal_error = "server.internal-error"
	report_server_write_response = "server.write-response"
)

// request bodies are tiny, anything bigger than this is rejected
const maxBodyBytes = 1 << 20

var errBadBody = errors.New("invalid request body")

type Options struct {
	// seconds a lookup may be cached for, defaults to DefaultCacheMaxAge
	CacheMaxAge int
}

type Server struct {
	service     service.Service
	tel         telemetry.API
	cacheMaxAge int
}

func New(svc service.Service, tel telemetry.API, options Options) Server {
	assert.NotNil(tel, "telemetry")
	if options.CacheMaxAge <= 0 {
		options.CacheMaxAge = DefaultCacheMaxAge
	}
	return Server{
		service:     svc,
		tel:         telemetry.NewScopedAPI("server", tel),
		cacheMaxAge: options.CacheMaxAge,
	}
}

// Handler returns the routes of the api wrapped in tracing, logging and
// request id middleware.
func (s Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/stats", s.handleLookup)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/profile", s.handleGetProfile)
	mux.HandleFunc("PUT /api/profile", s.handleSetProfile)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	var handler http.Handler = mux
	handler = Recovery(s.tel, handler)
	handler = otelhttp.NewHandler(handler, "cpstats", otelhttp.WithSpanNameFormatter(
		func(_ string, r *http.Request) string {
			return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		},
	))
	handler = Logger(handler)
	handler = RequestID(handler)
	return handler
}

type errorResponse struct {
	Error string `json:"error"`
}

type refreshResponse struct {
	Message string `json:"message"`
	service.RefreshResult
}

type profileRequest struct {
	Usernames map[string]string `json:"usernames"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrMissingParameter),
		errors.Is(err, service.ErrDuplicatePlatform),
		errors.Is(err, stats.ErrUnsupportedPlatform),
		errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case errors.Is(err, profiles.ErrMissingCredential):
		return http.StatusUnauthorized
	case errors.Is(err, profiles.ErrInvalidCredential):
		return http.StatusForbidden
	case errors.Is(err, profiles.ErrProfileNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.tel.ReportWarning(report_server_internal_error, r.Method, r.URL.Path, GetRequestID(r.Context()), err)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	err = writeJSON(w, status, errorResponse{Error: err.Error()})
	if err != nil {
		s.tel.ReportDebug(report_server_write_response, err)
	}
}

func (s Server) writeOk(w http.ResponseWriter, body any) {
	err := writeJSON(w, http.StatusOK, body)
	if err != nil {
		s.tel.ReportDebug(report_server_write_response, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) error {
	serialized, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		serialized = []byte(`{"error":"failed to serialize response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, writeErr := w.Write(serialized)
	return errors.Join(err, writeErr)
}

// handleLookup writes the record itself, not keyed by platform since the
// caller named the platform.
func (s Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	record, err := s.service.Lookup(r.Context(), query.Get("platform"), query.Get("username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.cacheMaxAge))
	s.writeOk(w, record)
}

func (s Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, err := profiles.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.service.Refresh(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOk(w, refreshResponse{
		Message:       "stats refreshed",
		RefreshResult: result,
	})
}

func (s Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	token, err := profiles.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	profile, err := s.service.GetProfile(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOk(w, profile)
}

func (s Server) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	token, err := profiles.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body profileRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	err = decoder.Decode(&body)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %w", errBadBody, err))
		return
	}
	if decoder.Decode(&struct{}{}) != io.EOF {
		s.writeError(w, r, fmt.Errorf("%w: trailing data", errBadBody))
		return
	}
	if body.Usernames == nil {
		s.writeError(w, r, fmt.Errorf("%w: usernames is required", errBadBody))
		return
	}

	profile, err := s.service.SetUsernames(r.Context(), token, body.Usernames)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOk(w, profile)
}

func (s Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeOk(w, map[string]string{"status": "ok"})
}
