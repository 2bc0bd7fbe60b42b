package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuthMiddleware protects admin routes with a static bearer token.
// An empty configured token locks the routes rather than opening them.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				respondJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
