package api

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/handlers"
)

var (
	corsMethods = []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	corsHeaders = []string{"Accept", "Authorization", "Content-Type", "Origin", "X-CSRFToken", "X-Requested-With", "X-Request-ID"}
)

// corsMiddleware only answers for the configured origins. An empty list
// disables cross-origin access entirely.
func corsMiddleware(origins []string, allowCredentials bool, next http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		allowed = append(allowed, strings.TrimSuffix(o, "/"))
	}

	opts := []handlers.CORSOption{
		handlers.AllowedOriginValidator(func(origin string) bool {
			return slices.Contains(allowed, origin)
		}),
		handlers.AllowedMethods(corsMethods),
		handlers.AllowedHeaders(corsHeaders),
		handlers.ExposedHeaders([]string{"X-Request-ID"}),
		handlers.MaxAge(600),
	}
	if allowCredentials {
		opts = append(opts, handlers.AllowCredentials())
	}
	return handlers.CORS(opts...)(next)
}
