package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xo/dburl"
)

// Supported database engines.
const (
	EnginePostgres = "postgresql"
	EngineMySQL    = "mysql"
	EngineSQLite   = "sqlite3"
)

const (
	defaultDBName     = "db_lms"
	defaultDBUser     = "postgres"
	defaultDBHost     = "localhost"
	defaultDBPort     = 5432
	defaultMySQLPort  = 3306
	urlConnMaxAge     = 600 * time.Second
	sslModeOption     = "sslmode"
	sslModeRequire    = "require"
	defaultDBSSLValue = "True"
)

// driverEngines maps dburl driver names onto engines. dburl resolves the
// scheme aliases (postgresql, pgsql, pg, maria, sqlite, file, ...).
var driverEngines = map[string]string{
	"postgres":      EnginePostgres,
	"pgx":           EnginePostgres,
	"mysql":         EngineMySQL,
	"sqlite3":       EngineSQLite,
	"moderncsqlite": EngineSQLite,
}

const sqliteMemory = ":memory:"

// DatabaseConfig describes how to reach the backing database. URL is set only
// when the descriptor was parsed from DATABASE_URL.
type DatabaseConfig struct {
	Engine     string
	Name       string
	User       string
	Password   string
	Host       string
	Port       int
	URL        string
	ConnMaxAge time.Duration
	SSLRequire bool
	Options    map[string]string
}

// Address returns host:port, bracketing IPv6 hosts.
func (d DatabaseConfig) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// Masked returns a printable description with the password hidden.
func (d DatabaseConfig) Masked() string {
	if d.URL != "" {
		if u, err := url.Parse(d.URL); err == nil {
			return u.Redacted()
		}
	}
	if d.Engine == EngineSQLite {
		return d.Engine + ":" + d.Name
	}
	user := d.User
	if d.Password != "" {
		user += ":xxxxx"
	}
	return fmt.Sprintf("%s://%s@%s/%s", d.Engine, user, d.Address(), d.Name)
}

func resolveDatabase(env *Environment) (DatabaseConfig, map[string]string, error) {
	sources := make(map[string]string)

	if raw, src, ok := env.Lookup("DATABASE_URL"); ok && raw != "" {
		sslRaw, sslSrc, sslSet := env.Lookup("DB_SSL")
		if !sslSet {
			sslRaw = defaultDBSSLValue
		}
		cfg, err := parseDatabaseURL(raw, parseTruthy(sslRaw))
		if err != nil {
			return DatabaseConfig{}, nil, err
		}
		for _, name := range []string{"database_engine", "database_name", "database_user", "database_host", "database_port"} {
			sources[name] = src
		}
		sources["database_ssl_require"] = sslSrc
		return cfg, sources, nil
	}

	cfg := DatabaseConfig{Engine: EnginePostgres, Options: map[string]string{}}
	sources["database_engine"] = SourceDefault
	cfg.Name, sources["database_name"] = lookupDefault(env, "DB_NAME", defaultDBName)
	cfg.User, sources["database_user"] = lookupDefault(env, "DB_USER", defaultDBUser)
	cfg.Password, _ = lookupDefault(env, "DB_PASSWORD", "")
	cfg.Host, sources["database_host"] = lookupDefault(env, "DB_HOST", defaultDBHost)

	port, src := lookupDefault(env, "DB_PORT", strconv.Itoa(defaultDBPort))
	sources["database_port"] = src
	if strings.TrimSpace(port) == "" {
		port, sources["database_port"] = strconv.Itoa(defaultDBPort), SourceDefault
	}
	p, err := parsePort(port)
	if err != nil {
		return DatabaseConfig{}, nil, fmt.Errorf("DB_PORT: %w", err)
	}
	cfg.Port = p
	sources["database_ssl_require"] = SourceDefault

	return cfg, sources, nil
}

// parseDatabaseURL turns a connection URL into a descriptor. Query parameters
// are carried through as driver options.
func parseDatabaseURL(raw string, sslRequire bool) (DatabaseConfig, error) {
	u, err := dburl.Parse(unaliasPostGIS(raw))
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("%w: %v", ErrInvalidDatabaseURL, err)
	}

	engine, ok := driverEngines[u.Driver]
	if !ok {
		return DatabaseConfig{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidDatabaseURL, u.OriginalScheme)
	}

	cfg := DatabaseConfig{
		Engine:     engine,
		URL:        raw,
		ConnMaxAge: urlConnMaxAge,
		SSLRequire: sslRequire,
		Options:    make(map[string]string),
	}
	for key, values := range u.Query() {
		if len(values) > 0 {
			cfg.Options[key] = values[len(values)-1]
		}
	}

	if engine == EngineSQLite {
		cfg.Name = sqlitePath(raw)
		return cfg, nil
	}

	cfg.Name = strings.TrimPrefix(u.Path, "/")
	cfg.Host = u.Hostname()
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}

	switch {
	case u.Port() != "":
		port, err := parsePort(u.Port())
		if err != nil {
			return DatabaseConfig{}, fmt.Errorf("%w: %v", ErrInvalidDatabaseURL, err)
		}
		cfg.Port = port
	case engine == EngineMySQL:
		cfg.Port = defaultMySQLPort
	default:
		cfg.Port = defaultDBPort
	}

	if sslRequire && engine == EnginePostgres {
		cfg.Options[sslModeOption] = sslModeRequire
	}

	return cfg, nil
}

// unaliasPostGIS rewrites the postgis scheme, which dburl does not know, to
// plain postgres. The spatial extension lives in the database itself.
func unaliasPostGIS(raw string) string {
	scheme, rest, ok := strings.Cut(raw, ":")
	if ok && strings.EqualFold(scheme, "postgis") {
		return "postgres:" + rest
	}
	return raw
}

// sqlitePath drops the scheme and one leading slash, so sqlite:///db.sqlite3
// is relative and sqlite:////var/db.sqlite3 is absolute. An empty path means
// an in-memory database.
func sqlitePath(raw string) string {
	_, rest, _ := strings.Cut(raw, ":")
	rest = strings.TrimPrefix(rest, "//")
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return sqliteMemory
	}
	return rest
}

func parsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", raw)
	}
	return port, nil
}

func lookupDefault(env *Environment, key, fallback string) (string, string) {
	if v, src, ok := env.Lookup(key); ok {
		return v, src
	}
	return fallback, SourceDefault
}
