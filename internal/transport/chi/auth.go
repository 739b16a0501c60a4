package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader is accepted as an alternative to a bearer token.
const APIKeyHeader = "X-API-Key"

// publicPaths are served without credentials.
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// BearerAuthMiddleware admits requests whose "Authorization: Bearer <key>"
// or X-API-Key header carries one of apiKeys. Without non-empty keys it is a
// no-op. CORS preflights must be answered before it runs.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	var keys [][]byte
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			token, problem := credentials(r)
			if problem == "" && !matchesAny(keys, token) {
				problem = "invalid api key"
			}
			if problem != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="discovery"`)
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, problem)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// credentials extracts the presented key, or describes why none was usable.
func credentials(r *http.Request) (token []byte, problem string) {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return []byte(key), ""
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, "missing credentials"
	}
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(value) == "" {
		return nil, "authorization header must use the Bearer scheme"
	}
	return []byte(strings.TrimSpace(value)), ""
}

// matchesAny compares token with every key in constant time.
func matchesAny(keys [][]byte, token []byte) bool {
	var hit int
	for _, k := range keys {
		hit |= subtle.ConstantTimeCompare(k, token)
	}
	return hit == 1
}
