package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/logging"
)

// Recover turns panics into a consistent JSON 500. The stack goes to the
// server log only, never to the client.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.L.Errorw("[panic] recovered",
					"request_id", r.Header.Get("X-Request-ID"),
					"path", r.URL.Path,
					"error", rec,
					"stack", string(debug.Stack()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":      "internal",
					"request_id": r.Header.Get("X-Request-ID"),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
