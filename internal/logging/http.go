package logging

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("logging: response writer does not support hijacking")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Middleware attaches a request id (taken from X-Request-ID when present) and
// a request-scoped logger to every request, echoes the id in the response and
// logs completion at debug level.
func Middleware(base Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = Noop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := r.Header.Get(RequestIDHeader); id != "" {
				ctx = ContextWithRequestID(ctx, id)
			}
			ctx, id := EnsureRequestID(ctx)
			reqLog := base.With(String("method", r.Method), String("path", r.URL.Path))
			ctx = ContextWithLogger(ctx, reqLog)
			w.Header().Set(RequestIDHeader, id)

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r.WithContext(ctx))

			reqLog.Debug(ctx, "http request completed",
				Int("status", sw.status),
				Duration("duration", time.Since(start)),
			)
		})
	}
}
