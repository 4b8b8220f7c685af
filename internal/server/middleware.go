package server

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"cpstats-backend/internal/components/telemetry"

	"github.com/google/uuid"
)

type contextKey string

const requestIdKey contextKey = "request_id"

const RequestIdHeader = "X-Request-ID"

// RequestID reuses the caller's request id or generates one, the id is
// echoed back in the response headers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := r.Header.Get(RequestIdHeader)
		if requestId == "" {
			requestId = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIdKey, requestId)
		w.Header().Set(RequestIdHeader, requestId)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIdKey).(string); ok {
		return id
	}
	return ""
}

// Logger writes one structured log line per request.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", GetRequestID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Recovery turns a panicking handler into a 500, unless the handler had
// already started its response.
func Recovery(tel telemetry.API, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}
			slog.Error("panic recovered",
				"error", recovered,
				"stack", string(debug.Stack()),
				"request_id", GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)
			if wrapped.wroteHeader {
				tel.ReportWarning(report_server_write_response, "panic after response started", r.URL.Path)
				return
			}
			err := writeJSON(wrapped, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			if err != nil {
				tel.ReportDebug(report_server_write_response, err)
			}
		}()

		next.ServeHTTP(wrapped, r)
	})
}
