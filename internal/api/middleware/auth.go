package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/empire-labs/chad/internal/api"
)

type contextKey string

// APIKeyHeader carries the widget's shared key.
const APIKeyHeader = "x-api-key"

// APIKeyAuth rejects requests whose x-api-key header does not match the
// configured key. An empty configured key disables the check, which is
// the local-development default.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
