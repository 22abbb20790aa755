package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/lms-platform/lms-backend/internal/config"
)

// ErrUnsupportedEngine is returned for descriptors naming an unknown engine.
var ErrUnsupportedEngine = errors.New("unsupported database engine")

// Handle is the subset of a connection pool the service needs.
type Handle interface {
	Ping(ctx context.Context) error
	Close()
}

// DSN renders the driver connection string for cfg.
func DSN(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Engine {
	case config.EnginePostgres:
		return postgresDSN(cfg), nil
	case config.EngineMySQL:
		return mysqlConfig(cfg).FormatDSN(), nil
	case config.EngineSQLite:
		return cfg.Name, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEngine, cfg.Engine)
	}
}

func postgresDSN(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   cfg.Address(),
		Path:   "/" + cfg.Name,
	}
	switch {
	case cfg.Password != "":
		u.User = url.UserPassword(cfg.User, cfg.Password)
	case cfg.User != "":
		u.User = url.User(cfg.User)
	}

	query := url.Values{}
	for k, v := range cfg.Options {
		query.Set(k, v)
	}
	if cfg.SSLRequire {
		query.Set("sslmode", "require")
	}
	u.RawQuery = query.Encode()
	return u.String()
}

func mysqlConfig(cfg config.DatabaseConfig) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Address()
	mc.DBName = cfg.Name
	mc.ParseTime = true
	if len(cfg.Options) > 0 {
		mc.Params = make(map[string]string, len(cfg.Options))
		for k, v := range cfg.Options {
			mc.Params[k] = v
		}
	}
	if cfg.SSLRequire {
		mc.TLSConfig = "true"
	}
	return mc
}

// PoolConfig parses the postgres pool configuration for cfg and applies the
// connection age bound.
func PoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.ConnMaxAge > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxAge
		pc.MaxConnIdleTime = cfg.ConnMaxAge
	}
	return pc, nil
}

// Open builds a lazily connecting pool for cfg. No connection is made until
// the first query or Ping.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Handle, error) {
	var (
		handle Handle
		err    error
	)

	switch cfg.Engine {
	case config.EnginePostgres:
		handle, err = openPostgres(ctx, cfg)
	case config.EngineMySQL:
		handle, err = openMySQL(cfg)
	case config.EngineSQLite:
		handle, err = openSQLite(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEngine, cfg.Engine)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("database pool configured",
		zap.String("engine", cfg.Engine),
		zap.String("dsn", cfg.Masked()),
		zap.Duration("conn_max_age", cfg.ConnMaxAge),
		zap.Bool("ssl_require", cfg.SSLRequire),
	)
	return handle, nil
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (Handle, error) {
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	return pool, nil
}

func openMySQL(cfg config.DatabaseConfig) (Handle, error) {
	connector, err := mysql.NewConnector(mysqlConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if cfg.ConnMaxAge > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxAge)
		db.SetConnMaxIdleTime(cfg.ConnMaxAge)
	}
	return NewSQLHandle(db), nil
}

func openSQLite(cfg config.DatabaseConfig) (Handle, error) {
	db, err := sql.Open(config.EngineSQLite, cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if cfg.ConnMaxAge > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxAge)
	}
	return NewSQLHandle(db), nil
}

// NewSQLHandle adapts a database/sql pool to Handle.
func NewSQLHandle(db *sql.DB) Handle {
	return &sqlHandle{db: db}
}

type sqlHandle struct {
	db *sql.DB
}

func (h *sqlHandle) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

func (h *sqlHandle) Close() {
	_ = h.db.Close()
}
