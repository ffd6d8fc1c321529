package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// NewCORSMiddleware はカンマ区切りで指定されたオリジンに対するCORSミドルウェアを返す。
// オリジンが1つの場合は常にそのオリジンを返し、複数の場合はリクエストのOriginが一致したときのみ返す。
// 認証はAuthorizationヘッダーで行うため、credentialsは許可しない。
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	origins := parseOrigins(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")
			if origin := matchOrigin(origins, r.Header.Get("Origin")); origin != "" {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				h.Set("Access-Control-Expose-Headers", "Location, Retry-After")
				h.Set("Access-Control-Max-Age", "86400")
			}

			// プリフライト
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func parseOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func matchOrigin(origins []string, requested string) string {
	switch {
	case len(origins) == 0:
		return ""
	case len(origins) == 1:
		return origins[0]
	case slices.Contains(origins, requested):
		return requested
	}
	return ""
}
