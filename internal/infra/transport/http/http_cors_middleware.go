package http

import (
	"net/http"
)

// CORSMiddleware creates middleware that applies a permissive CORS policy.
// The media endpoints are a public, unauthenticated surface consumed from
// arbitrary origins, so every response carries Access-Control-Allow-Origin: *.
// Preflight OPTIONS requests are answered with 204 and never reach the
// wrapped handler.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)

			return
		}

		next.ServeHTTP(w, r)
	})
}
