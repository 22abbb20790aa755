package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = "8000"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50

	StaticURL = "/static/"
	MediaURL  = "/media/"
)

// Config is the settings snapshot resolved once at startup. It is never
// mutated after Load returns; consumers receive it by value.
// Precedence: CLI flags > environment (process, then dotfile) > YAML config > Defaults
type Config struct {
	SecretKey    string
	Debug        bool
	AllowedHosts []string
	Database     DatabaseConfig

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CSRFTrustedOrigins   []string

	LogLevels map[string]LogLevel

	BaseDir    string
	StaticRoot string
	StaticDirs []string
	MediaRoot  string

	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int

	// Warnings lists recovered problems, for logging once the logger exists.
	Warnings []string

	sources map[string]string
}

// yamlConfig represents the YAML configuration file structure. It only
// covers the HTTP server; application settings come from the environment.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load resolves the settings snapshot from env, an optional YAML file and CLI
// overrides. A nil env means the process environment without a dotfile.
func Load(env *Environment, overrides *CLIOverrides) (Config, error) {
	if env == nil {
		env = NewEnvironment(os.LookupEnv, nil)
	}
	cfg := defaultConfig()

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	if err := applyEnvConfig(&cfg, env); err != nil {
		return Config{}, err
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	cfg := Config{
		SecretKey:            FallbackSecretKey,
		Debug:                true,
		AllowedHosts:         []string{},
		CORSAllowedOrigins:   []string{},
		CORSAllowCredentials: true,
		CSRFTrustedOrigins:   []string{},
		LogLevels:            map[string]LogLevel{LoggerFramework: LevelInfo, LoggerPayments: LevelInfo},
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		sources:              make(map[string]string),
	}
	for _, name := range attributeNames() {
		cfg.sources[name] = SourceDefault
	}
	return cfg
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
		cfg.sources["port"] = SourceFile
	}

	durations := []struct {
		raw    string
		target *time.Duration
	}{
		{yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		if parsed, err := time.ParseDuration(d.raw); err == nil {
			*d.target = parsed
		}
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	if rps := yamlCfg.RateLimit.RPS; rps != nil && *rps >= 0 {
		cfg.RateLimitRPS = *rps
		cfg.sources["rate_limit_rps"] = SourceFile
	}

	if burst := yamlCfg.RateLimit.Burst; burst != nil && *burst >= 0 {
		cfg.RateLimitBurst = *burst
		cfg.sources["rate_limit_burst"] = SourceFile
	}
}

// applyEnvConfig resolves every environment-driven setting.
func applyEnvConfig(cfg *Config, env *Environment) error {
	cfg.SecretKey, cfg.sources["secret_key"] = resolveSecret(env)
	cfg.Debug, cfg.sources["debug"] = resolveDebug(env)
	cfg.AllowedHosts, cfg.sources["allowed_hosts"] = resolveAllowedHosts(env)

	db, dbSources, err := resolveDatabase(env)
	if err != nil {
		return err
	}
	cfg.Database = db
	for name, src := range dbSources {
		cfg.sources[name] = src
	}

	// Malformed origin lists degrade to empty instead of aborting startup.
	for _, list := range []struct {
		key    string
		attr   string
		target *[]string
	}{
		{"CORS_ALLOWED_ORIGINS", "cors_allowed_origins", &cfg.CORSAllowedOrigins},
		{"CSRF_TRUSTED_ORIGINS", "csrf_trusted_origins", &cfg.CSRFTrustedOrigins},
	} {
		values, src, err := resolveList(env, list.key, "[]")
		if err != nil {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("%v; using an empty list", err))
			values = []string{}
		}
		*list.target = values
		cfg.sources[list.attr] = src
	}

	levels, levelSources, warnings := resolveLogLevels(env)
	cfg.LogLevels = levels
	for logger, src := range levelSources {
		cfg.sources["log_level_"+logger] = src
	}
	cfg.Warnings = append(cfg.Warnings, warnings...)

	baseDir, src := lookupDefault(env, "BASE_DIR", ".")
	if abs, err := filepath.Abs(baseDir); err == nil {
		baseDir = abs
	}
	cfg.BaseDir = baseDir
	cfg.sources["base_dir"] = src
	cfg.StaticRoot = filepath.Join(baseDir, "staticfiles")
	cfg.StaticDirs = []string{filepath.Join(baseDir, "static")}
	cfg.MediaRoot = filepath.Join(baseDir, "media")

	if port, src, ok := env.Lookup("PORT"); ok && strings.TrimSpace(port) != "" {
		cfg.Port = strings.TrimSpace(port)
		cfg.sources["port"] = src
	}

	if rps, src, ok := env.Lookup("RATE_LIMIT_RPS"); ok && strings.TrimSpace(rps) != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(rps), 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
			cfg.sources["rate_limit_rps"] = src
		}
	}

	if burst, src, ok := env.Lookup("RATE_LIMIT_BURST"); ok && strings.TrimSpace(burst) != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(burst)); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
			cfg.sources["rate_limit_burst"] = src
		}
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
		cfg.sources["port"] = SourceFlag
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
		cfg.sources["rate_limit_rps"] = SourceFlag
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
		cfg.sources["rate_limit_burst"] = SourceFlag
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if !cfg.Debug && cfg.SecretKey == FallbackSecretKey {
		return ErrInsecureSecretKey
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	return nil
}

// Source reports where an attribute's value came from.
func (c Config) Source(name string) string {
	if s, ok := c.sources[name]; ok {
		return s
	}
	return SourceDefault
}

// LogLevel returns the configured level for logger, INFO when unknown.
func (c Config) LogLevel(logger string) LogLevel {
	if level, ok := c.LogLevels[logger]; ok {
		return level
	}
	return LevelInfo
}
