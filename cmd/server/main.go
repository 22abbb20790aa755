package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/lms-platform/lms-backend/internal/application"
	"github.com/lms-platform/lms-backend/internal/config"
	"github.com/lms-platform/lms-backend/internal/database"
	"github.com/lms-platform/lms-backend/internal/logging"
)

var signalNotify = signal.Notify

type cliFlags struct {
	configFile     string
	envFile        string
	port           string
	rateLimitRPS   float64
	rateLimitBurst int
}

func main() {
	var flags cliFlags

	kingpinApp := kingpin.New("lms-backend", "LMS backend - resolves settings from the environment and serves the API")
	kingpinApp.Flag("config", "Path to YAML configuration file").StringVar(&flags.configFile)
	kingpinApp.Flag("env-file", "Dotenv file layered beneath the process environment").Default(".env").StringVar(&flags.envFile)
	kingpinApp.Flag("port", "HTTP port exposed by the service").StringVar(&flags.port)
	kingpinApp.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64Var(&flags.rateLimitRPS)
	kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").IntVar(&flags.rateLimitBurst)

	serveCmd := kingpinApp.Command("serve", "Run the HTTP server").Default()
	configCmd := kingpinApp.Command("config", "Inspect resolved settings")
	showCmd := configCmd.Command("show", "Print every resolved setting with its source")
	format := showCmd.Flag("format", "Output format").Default("text").Enum("text", "json")

	command := kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	cfg, err := loadSettings(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	switch command {
	case showCmd.FullCommand():
		if err := showConfig(os.Stdout, cfg, *format); err != nil {
			fmt.Fprintf(os.Stderr, "failed to render configuration: %v\n", err)
			os.Exit(1)
		}
	case serveCmd.FullCommand():
		serve(cfg)
	}
}

// loadSettings layers the dotfile under the process environment and applies
// only the flags that were actually given.
func loadSettings(flags cliFlags) (config.Config, error) {
	env, err := config.OSEnvironment(flags.envFile)
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(env, buildOverrides(flags))
}

func buildOverrides(flags cliFlags) *config.CLIOverrides {
	overrides := &config.CLIOverrides{
		ConfigFile: flags.configFile,
	}

	if flags.port != "" {
		overrides.Port = &flags.port
	}

	if flags.rateLimitRPS >= 0 {
		overrides.RateLimitRPS = &flags.rateLimitRPS
	}

	if flags.rateLimitBurst >= 0 {
		overrides.RateLimitBurst = &flags.rateLimitBurst
	}

	return overrides
}

func showConfig(w io.Writer, cfg config.Config, format string) error {
	if format == "json" {
		out, err := cfg.FormatJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, out)
		return err
	}
	_, err := io.WriteString(w, cfg.FormatText())
	return err
}

func serve(cfg config.Config) {
	logs, err := logging.NewRegistry(cfg.LogLevels, cfg.Debug)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logs.Sync()

	logger := logs.Logger(config.LoggerFramework)
	announceLoggers(logs, cfg)
	logWarnings(logger, cfg.Warnings)

	db, err := database.Open(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to configure database", zap.Error(err))
	}

	app, err := application.New(cfg, logger, db)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer app.Close()

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

type namedLoggers interface {
	Names() []string
	Logger(name string) *zap.Logger
}

// announceLoggers reports each configured logger through itself, so a
// logger set above INFO stays quiet.
func announceLoggers(logs namedLoggers, cfg config.Config) {
	for _, name := range logs.Names() {
		logs.Logger(name).Info("logger configured", zap.String("level", cfg.LogLevel(name).String()))
	}
}

func logWarnings(logger *zap.Logger, warnings []string) {
	for _, w := range warnings {
		logger.Warn("configuration warning", zap.String("detail", w))
	}
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
