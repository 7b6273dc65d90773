package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/metrics"
)

// Metrics returns middleware that records Prometheus metrics. It wraps the
// response writer with chi's wrapper, which keeps Hijack available for the
// WebSocket upgrade further down the chain.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, path, strconv.Itoa(ww.Status()),
		).Inc()

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method, path,
		).Observe(duration)
	})
}

// normalizePath normalizes paths to avoid high cardinality in metrics.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/chats/") && len(path) > len("/chats/") {
		if strings.HasSuffix(path, "/messages") {
			return "/chats/:id/messages"
		}
		return "/chats/:id"
	}
	if strings.HasPrefix(path, "/users/") && len(path) > len("/users/") {
		if strings.HasSuffix(path, "/lastseen") {
			return "/users/:id/lastseen"
		}
		return "/users/:id"
	}
	return path
}
