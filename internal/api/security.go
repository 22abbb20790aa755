package api

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/lms-platform/lms-backend/internal/config"
)

// debugHosts are accepted when debug is on and no hosts are configured.
var debugHosts = []string{".localhost", "127.0.0.1", "[::1]"}

// SecurityPolicy is the slice of the settings the middleware chain enforces.
type SecurityPolicy struct {
	Debug                bool
	AllowedHosts         []string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CSRFTrustedOrigins   []string
}

// PolicyFromConfig extracts the request policy from the settings snapshot.
func PolicyFromConfig(cfg config.Config) SecurityPolicy {
	return SecurityPolicy{
		Debug:                cfg.Debug,
		AllowedHosts:         cfg.AllowedHosts,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		CORSAllowCredentials: cfg.CORSAllowCredentials,
		CSRFTrustedOrigins:   cfg.CSRFTrustedOrigins,
	}
}

func (p SecurityPolicy) effectiveHosts() []string {
	if p.Debug && len(p.AllowedHosts) == 0 {
		return debugHosts
	}
	return p.AllowedHosts
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "same-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

func allowedHostsMiddleware(hosts []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hostAllowed(requestHost(r.Host), hosts) {
			writeError(w, http.StatusBadRequest, "Bad request", "invalid Host header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestHost strips the port and lowercases, keeping IPv6 brackets.
func requestHost(hostport string) string {
	host := strings.ToLower(strings.TrimSpace(hostport))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return host
}

// hostAllowed matches host against patterns: "*" matches anything and a
// leading dot matches the domain and all of its subdomains.
func hostAllowed(host string, patterns []string) bool {
	if host == "" {
		return false
	}
	for _, pattern := range patterns {
		pattern = strings.ToLower(pattern)
		switch {
		case pattern == "*":
			return true
		case strings.HasPrefix(pattern, "."):
			if host == pattern[1:] || strings.HasSuffix(host, pattern) {
				return true
			}
		case host == pattern:
			return true
		}
	}
	return false
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// csrfOriginMiddleware rejects state-changing requests whose Origin (or, over
// HTTPS, Referer) is neither the request's own origin nor trusted.
func csrfOriginMiddleware(trusted []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		if origin := r.Header.Get("Origin"); origin != "" {
			if !originAllowed(r, origin, trusted) {
				writeError(w, http.StatusForbidden, "CSRF verification failed", "origin "+origin+" is not trusted")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if isSecureRequest(r) {
			if reason := refererProblem(r, trusted); reason != "" {
				writeError(w, http.StatusForbidden, "CSRF verification failed", reason)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func requestOrigin(r *http.Request) string {
	scheme := "http"
	if isSecureRequest(r) {
		scheme = "https"
	}
	return scheme + "://" + strings.ToLower(r.Host)
}

func originAllowed(r *http.Request, origin string, trusted []string) bool {
	origin = strings.ToLower(origin)
	if origin == requestOrigin(r) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	for _, t := range trusted {
		if trustedOriginMatches(strings.ToLower(t), u) {
			return true
		}
	}
	return false
}

// trustedOriginMatches supports exact origins and "scheme://*.domain"
// wildcard entries.
func trustedOriginMatches(trusted string, origin *url.URL) bool {
	scheme, host, ok := strings.Cut(trusted, "://")
	if !ok || scheme != origin.Scheme {
		return false
	}
	if strings.HasPrefix(host, "*.") {
		suffix := host[1:]
		return strings.HasSuffix(origin.Host, suffix) || origin.Host == host[2:]
	}
	return host == origin.Host
}

func refererProblem(r *http.Request, trusted []string) string {
	referer := r.Header.Get("Referer")
	if referer == "" {
		return "referer checking failed - no Referer"
	}
	u, err := url.Parse(referer)
	if err != nil || u.Host == "" {
		return "referer checking failed - malformed Referer"
	}
	if u.Scheme != "https" {
		return "referer checking failed - Referer is insecure while host is secure"
	}
	if strings.EqualFold(u.Host, r.Host) {
		return ""
	}
	for _, t := range trusted {
		if trustedOriginMatches(strings.ToLower(t), &url.URL{Scheme: u.Scheme, Host: strings.ToLower(u.Host)}) {
			return ""
		}
	}
	return "referer checking failed - " + u.Host + " does not match any trusted origins"
}
