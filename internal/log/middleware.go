package log

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries the request id in and out of the server.
const RequestIDHeader = "X-Request-Id"

// NewHandler injects a copy of the logger into the request context.
func NewHandler(getLogger func() *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Copy so UpdateContext in later handlers does not race.
			l := getLogger().With().Logger()
			r = r.WithContext(l.WithContext(r.Context()))
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDHandler reuses the inbound request id or mints one, echoes it on the
// response, and adds it to the context logger under fieldKey.
func RequestIDHandler(fieldKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			l := zerolog.Ctx(r.Context())
			l.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str(fieldKey, id)
			})
			next.ServeHTTP(w, r)
		})
	}
}

// AccessHandler returns a handler that calls f after each request.
func AccessHandler(f func(r *http.Request, status, size int, duration time.Duration)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lw := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(lw, r)
			status := lw.Status()
			if status == 0 {
				status = http.StatusOK
			}
			f(r, status, lw.BytesWritten(), time.Since(start))
		})
	}
}

// AccessLog writes one info line per request to the request's logger.
func AccessLog(r *http.Request, status, size int, duration time.Duration) {
	Info(r.Context()).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("http request")
}
