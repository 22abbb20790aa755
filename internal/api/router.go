package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RouterOption configures the behaviour of NewRouter.
type RouterOption func(*routerConfig)

// WithLogging controls whether access logs are emitted.
func WithLogging(enabled bool) RouterOption {
	return func(cfg *routerConfig) {
		cfg.enableLogging = enabled
	}
}

// WithRateLimiter overrides the default request rate limiter (primarily for tests).
func WithRateLimiter(limiter rateLimiter) RouterOption {
	return func(cfg *routerConfig) {
		cfg.rateLimiter = limiter
	}
}

// WithRateLimit builds a token bucket limiter; zero for either value disables limiting.
func WithRateLimit(ratePerSecond float64, burst int) RouterOption {
	return func(cfg *routerConfig) {
		cfg.rateLimiter = newTokenBucketLimiter(ratePerSecond, burst)
	}
}

// WithSecurityPolicy sets the host, CORS and CSRF rules.
func WithSecurityPolicy(policy SecurityPolicy) RouterOption {
	return func(cfg *routerConfig) {
		cfg.policy = policy
	}
}

// Instrumenter wraps a handler to record request metrics.
type Instrumenter interface {
	Middleware(next http.Handler) http.Handler
}

// WithMetrics records every request, including rate limited ones.
func WithMetrics(m Instrumenter) RouterOption {
	return func(cfg *routerConfig) {
		cfg.metrics = m
	}
}

type routerConfig struct {
	metrics       Instrumenter
	enableLogging bool
	logger        *zap.Logger
	rateLimiter   rateLimiter
	policy        SecurityPolicy
}

// NewRouter creates the API routes wrapped in the request middleware chain.
func NewRouter(handler *Handler, logger *zap.Logger, opts ...RouterOption) http.Handler {
	return Wrap(Routes(handler), logger, opts...)
}

// Routes registers the service endpoints on a fresh mux.
func Routes(handler *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /api/health", http.HandlerFunc(handler.handleHealth))
	mux.Handle("GET /api/settings", http.HandlerFunc(handler.handleSettings))
	return mux
}

// Wrap applies the middleware chain to next. Requests pass through, in
// order: request ID, metrics, rate limit, access log, recovery, security
// headers, allowed hosts, CORS, CSRF.
func Wrap(next http.Handler, logger *zap.Logger, opts ...RouterOption) http.Handler {
	cfg := routerConfig{
		enableLogging: true,
		logger:        logger,
		rateLimiter:   newTokenBucketLimiter(25, 50),
		policy:        SecurityPolicy{Debug: true, CORSAllowCredentials: true},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	root := next
	root = csrfOriginMiddleware(cfg.policy.CSRFTrustedOrigins, root)
	root = corsMiddleware(cfg.policy.CORSAllowedOrigins, cfg.policy.CORSAllowCredentials, root)
	root = allowedHostsMiddleware(cfg.policy.effectiveHosts(), root)
	root = securityHeadersMiddleware(root)
	root = recoveryMiddleware(cfg.logger, root)
	if cfg.enableLogging {
		root = loggingMiddleware(cfg.logger, root)
	}
	root = rateLimitMiddleware(cfg.rateLimiter, root)
	if cfg.metrics != nil {
		root = cfg.metrics.Middleware(root)
	}
	root = requestIDMiddleware(root)

	return root
}

func loggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		requestID := requestIDFromContext(r.Context())
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("host", r.Host),
			zap.Int("status", rec.status),
			zap.Duration("duration", duration),
			zap.String("request_id", requestID),
		}
		if rec.status >= http.StatusInternalServerError {
			logger.Error("request completed", fields...)
			return
		}
		if rec.status >= http.StatusBadRequest {
			logger.Warn("request completed", fields...)
			return
		}
		logger.Info("request completed", fields...)
	})
}

func recoveryMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "Internal error", "unexpected server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = generateRequestID()
		}
		ctx := r.Context()
		ctx = contextWithRequestID(ctx, requestID)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func generateRequestID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return id.String()
}

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
