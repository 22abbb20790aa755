package application

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"github.com/lms-platform/lms-backend/internal/api"
	"github.com/lms-platform/lms-backend/internal/config"
	"github.com/lms-platform/lms-backend/internal/database"
	"github.com/lms-platform/lms-backend/internal/metrics"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	db      database.Handle
	handler *api.Handler
	metrics *metrics.Metrics
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New wires the HTTP surface from the settings snapshot. db may be nil when
// no database should be checked.
func New(cfg config.Config, logger *zap.Logger, db database.Handle) (*App, error) {
	var handlerOpts []api.HandlerOption
	if db != nil {
		handlerOpts = append(handlerOpts, api.WithDatabase(db))
	}
	handler := api.NewHandler(cfg, handlerOpts...)

	m := metrics.New()
	m.ObserveConfig(cfg)

	rootHandler := BuildRootHandler(cfg, api.Routes(handler))
	rootHandler.Handle("GET /metrics", m.Handler())
	router := api.Wrap(rootHandler, logger,
		api.WithMetrics(m),
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithSecurityPolicy(api.PolicyFromConfig(cfg)),
	)

	return &App{
		db:      db,
		handler: handler,
		metrics: m,
		router:  router,
		logger:  logger,
		server:  NewServer(cfg, router),
	}, nil
}

// BuildRootHandler mounts static files, uploaded media and the API routes.
func BuildRootHandler(cfg config.Config, apiHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	staticDirs := append([]string{cfg.StaticRoot}, cfg.StaticDirs...)
	static := http.StripPrefix(config.StaticURL, http.FileServer(layeredDir(staticDirs)))
	mux.Handle(config.StaticURL, handlers.CompressHandler(static))
	mux.Handle(config.MediaURL, http.StripPrefix(config.MediaURL, http.FileServer(layeredDir{cfg.MediaRoot})))
	mux.Handle("/api/", apiHandler)

	return mux
}

// layeredDir serves the first directory that has the requested file, so
// collected assets in the static root shadow the source directories.
// Directories are reported as missing, which keeps listings private.
type layeredDir []string

func (d layeredDir) Open(name string) (http.File, error) {
	for _, dir := range d {
		if dir == "" {
			continue
		}
		f, err := http.Dir(dir).Open(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			_ = f.Close()
			continue
		}
		return f, nil
	}
	return nil, fs.ErrNotExist
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Handler returns the fully wrapped root handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
