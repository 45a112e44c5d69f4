package middleware

import (
	"log/slog"
	"net/http"
	"sync"
)

// NewConnectionLimiter bounds concurrent connections per client IP. The
// upgrade handler blocks for the lifetime of the websocket, so the slot is
// held until the connection ends. A maxPerIP of zero disables the limiter.
func NewConnectionLimiter(logger *slog.Logger, maxPerIP int) Middleware {
	var mu sync.Mutex
	counts := make(map[string]int)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxPerIP <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			ip := reqMeta.IP

			mu.Lock()
			if counts[ip] >= maxPerIP {
				mu.Unlock()
				logger.Warn("connection limit reached, rejecting", slog.String("ip", ip), slog.Int("limit", maxPerIP))
				http.Error(w, "Too Many Connections", http.StatusTooManyRequests)
				return
			}
			counts[ip]++
			mu.Unlock()

			defer func() {
				mu.Lock()
				counts[ip]--
				if counts[ip] <= 0 {
					delete(counts, ip)
				}
				mu.Unlock()
			}()

			next.ServeHTTP(w, r)
		})
	}
}
