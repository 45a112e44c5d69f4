package middleware

import (
	"log/slog"
	"net/http"
)

// NewRequestLogger logs each upgrade request before it reaches the
// WebSocket handler. The transport logs the established connection at
// Info, so the raw HTTP hit stays at Debug.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attrs := []any{
				slog.String("path", r.URL.Path),
				slog.String("origin", r.Header.Get("Origin")),
			}
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				attrs = append(attrs, slog.String("ip", reqMeta.IP))
			}
			logger.Debug("upgrade request", attrs...)
			next.ServeHTTP(w, r)
		})
	}
}
