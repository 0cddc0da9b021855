package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"assesy/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultMaxOpenConnections = 25
	defaultMaxIdleConnections = 5
	defaultConnMaxLifetime    = 5 * time.Minute
	defaultConnMaxIdleTime    = 10 * time.Minute
	defaultConnectRetries     = 5
	defaultConnectRetryDelay  = 5 * time.Second
	pingTimeout               = 5 * time.Second
)

// Config holds connection and pool settings shared by every driver.
type Config struct {
	// Driver is one of postgres, mysql, sqlite.
	Driver string `yaml:"driver"`

	// DSN is the data source name in the driver's own format.
	//   postgres: "user=postgres password=password host=localhost port=5432 dbname=assesy sslmode=disable"
	//   mysql:    "user:password@tcp(host:port)/assesy?parseTime=true&loc=UTC"
	//   sqlite:   "file:/var/lib/assesy/assesy.db?_pragma=busy_timeout(5000)"
	DSN string `yaml:"dsn"`

	MaxOpenConnections int           `yaml:"maxOpenConnections"`
	MaxIdleConnections int           `yaml:"maxIdleConnections"`
	ConnMaxLifetime    time.Duration `yaml:"connMaxLifetime"`
	ConnMaxIdleTime    time.Duration `yaml:"connMaxIdleTime"`

	// ConnectRetries bounds how many times the first ping is attempted.
	ConnectRetries    int           `yaml:"connectRetries"`
	ConnectRetryDelay time.Duration `yaml:"connectRetryDelay"`
}

func (c *Config) applyDefaults() {
	if c.MaxOpenConnections == 0 {
		c.MaxOpenConnections = defaultMaxOpenConnections
	}
	if c.MaxIdleConnections == 0 {
		c.MaxIdleConnections = defaultMaxIdleConnections
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = defaultConnMaxIdleTime
	}
	if c.ConnectRetries <= 0 {
		c.ConnectRetries = defaultConnectRetries
	}
	if c.ConnectRetryDelay <= 0 {
		c.ConnectRetryDelay = defaultConnectRetryDelay
	}
}

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Database, error) {
	switch cfg.Driver {
	case "", "postgres", "postgresql":
		return NewPostgreSQL(ctx, cfg)
	case "mysql":
		return NewMySQL(ctx, cfg)
	case "sqlite", "sqlite3":
		return NewSQLite(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// sqlDatabase implements Database over database/sql for any registered driver.
type sqlDatabase struct {
	db      *sql.DB
	dialect Dialect
}

func openSQL(ctx context.Context, driverName string, dialect Dialect, cfg Config) (*sqlDatabase, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("DSN cannot be empty")
	}
	cfg.applyDefaults()

	conn, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	conn.SetMaxOpenConns(cfg.MaxOpenConnections)
	conn.SetMaxIdleConns(cfg.MaxIdleConnections)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := pingWithRetry(ctx, conn, cfg.ConnectRetries, cfg.ConnectRetryDelay); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &sqlDatabase{db: conn, dialect: dialect}, nil
}

// pingWithRetry waits for the backend to accept connections. Database
// containers usually start alongside the service and need a few seconds.
func pingWithRetry(ctx context.Context, conn *sql.DB, attempts int, delay time.Duration) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = conn.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		logger.Warn(ctx, "database not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to ping database: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("failed to ping database after %d attempts: %w", attempts, lastErr)
}

func (d *sqlDatabase) Dialect() Dialect {
	return d.dialect
}

func (d *sqlDatabase) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	rows, err := d.db.QueryContext(ctx, d.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return rows, nil
}

func (d *sqlDatabase) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	return d.db.QueryRowContext(ctx, d.dialect.Rebind(query), args...)
}

func (d *sqlDatabase) Exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	result, err := d.db.ExecContext(ctx, d.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("exec failed: %w", err)
	}
	return result, nil
}

func (d *sqlDatabase) Transaction(ctx context.Context, fn func(tx Transaction) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}
	wrapped := &sqlTransaction{tx: tx, dialect: d.dialect}
	if err := fn(wrapped); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

func (d *sqlDatabase) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (d *sqlDatabase) Close() error {
	return d.db.Close()
}

type sqlTransaction struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *sqlTransaction) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	rows, err := t.tx.QueryContext(ctx, t.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("transaction query failed: %w", err)
	}
	return rows, nil
}

func (t *sqlTransaction) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	return t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *sqlTransaction) Exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	result, err := t.tx.ExecContext(ctx, t.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("transaction exec failed: %w", err)
	}
	return result, nil
}

func (t *sqlTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTransaction) Rollback() error {
	return t.tx.Rollback()
}
