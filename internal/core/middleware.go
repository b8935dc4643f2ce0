package core

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"fieldscout/internal/types"
)

// statusRecorder wraps an http.ResponseWriter so the logging middleware can
// observe the status code after the handler chain completes.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.status = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write records the implicit 200 when WriteHeader was never called.
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.status = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// Recoverer converts panics anywhere in the handler chain into a logged
// stack trace and an opaque 500. Must be the outermost middleware.
func (s *Server) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}

			s.Logger.Error("panic recovered",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", fmt.Sprintf("%v", rvr),
				"stack", string(debug.Stack()),
			)

			// Hand-formatted body: the encoder must not get a chance to
			// panic inside panic recovery.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = fmt.Fprintf(w,
				`{"error":{"code":%q,"message":"an unexpected error occurred","request_id":%q}}`,
				types.ErrCodeInternalUnexpected,
				types.GetRequestID(r.Context()),
			)
		}()

		next.ServeHTTP(w, r)
	})
}

// RequestLogger emits one structured log line per request, with the named
// headers masked so device tokens never reach log output. Severity follows
// the response status.
func RequestLogger(logger *slog.Logger, redactedHeaders []string) func(http.Handler) http.Handler {
	masked := make(map[string]bool, len(redactedHeaders))
	for _, name := range redactedHeaders {
		masked[strings.ToLower(name)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sr, r)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", sr.status,
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
			}
			if requestID := types.GetRequestID(r.Context()); requestID != "" {
				args = append(args, "request_id", requestID)
			}
			if headers := loggableHeaders(r.Header, masked); len(headers) > 0 {
				args = append(args, slog.Group("headers", headers...))
			}

			level := slog.LevelInfo
			switch {
			case sr.status >= 500:
				level = slog.LevelError
			case sr.status >= 400:
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "request completed", args...)
		})
	}
}

// loggableHeaders flattens request headers into slog args, replacing masked
// values with a placeholder.
func loggableHeaders(header http.Header, masked map[string]bool) []any {
	args := make([]any, 0, len(header)*2)
	for name, values := range header {
		value := strings.Join(values, ", ")
		if masked[strings.ToLower(name)] {
			value = "[REDACTED]"
		}
		args = append(args, name, value)
	}
	return args
}

// SecurityHeadersMiddleware sets the standard browser hardening headers on
// every response, before any handler or error path runs.
func (s *Server) SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		next.ServeHTTP(w, r)
	})
}

// NewCORSMiddleware builds the CORS policy for the field-device and web
// clients. A "*" entry allows every origin; otherwise only listed origins
// receive CORS headers. Preflight OPTIONS requests short-circuit with 204.
func NewCORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
			break
		}
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if grant := grantedOrigin(r, allowAll, allowed); grant != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", grant)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
				h.Set("Access-Control-Expose-Headers", "X-Request-ID")
				h.Set("Access-Control-Max-Age", "86400")
				if grant != "*" {
					h.Set("Vary", "Origin")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func grantedOrigin(r *http.Request, allowAll bool, allowed map[string]bool) string {
	if allowAll {
		return "*"
	}
	if origin := r.Header.Get("Origin"); origin != "" && allowed[origin] {
		return origin
	}
	return ""
}
