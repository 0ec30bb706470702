package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/csvingest/internal/retry"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// Connection pool configuration. Tables are ingested one at a time, each on a
// single acquired connection, so the pool stays small.
const (
	DefaultMaxConns        = 4
	DefaultMinConns        = 1
	DefaultMaxConnIdleTime = 30 * time.Minute
)

func configurePool(poolConfig *pgxpool.Config, logger csvingest.Logger) {
	poolConfig.MaxConns = DefaultMaxConns
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		logger.Debug("postgres notice", "severity", notice.Severity, "message", notice.Message)
	}
}

// openPool parses connStr, opens a pool and pings it.
func openPool(ctx context.Context, cfg *csvingest.ConnectionConfig, connStr string, logger csvingest.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	configurePool(poolConfig, logger)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapConnectionError(err, cfg.Host, cfg.Port, cfg.Database)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapConnectionError(err, cfg.Host, cfg.Port, cfg.Database)
	}
	return pool, nil
}

func newRetryExecutor(logger csvingest.Logger) *retry.Executor {
	return retry.NewDefaultExecutor().WithOnRetry(func(attempt int, err error, delay time.Duration) {
		logger.Warn("connection attempt failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	})
}

// StandardConnector connects with username and password, retrying transient failures.
type StandardConnector struct {
	config        *csvingest.ConnectionConfig
	logger        csvingest.Logger
	retryExecutor *retry.Executor
}

// NewStandardConnector creates a StandardConnector.
// Retries use DefaultRetryMaxAttempts attempts with exponential backoff starting at
// DefaultRetryInitialDelay, capped at DefaultRetryMaxDelay.
func NewStandardConnector(config *csvingest.ConnectionConfig, logger csvingest.Logger) *StandardConnector {
	return &StandardConnector{
		config:        config,
		logger:        logger,
		retryExecutor: newRetryExecutor(logger),
	}
}

// Connect opens a pool and verifies it with a ping.
func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	connStr := BuildConnectionString(c.config)

	err := c.retryExecutor.Execute(ctx, func(ctx context.Context) error {
		p, err := openPool(ctx, c.config, connStr, c.logger)
		if err != nil {
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", csvingest.ErrConnectionFailed, err)
	}
	return pool, nil
}

// NewConnector returns the Connector for the configured authentication method.
func NewConnector(config *csvingest.ConnectionConfig, logger csvingest.Logger) (csvingest.Connector, error) {
	switch config.AuthMethod {
	case csvingest.AuthMethodStandard:
		return NewStandardConnector(config, logger), nil
	case csvingest.AuthMethodAWSIAM:
		return newAWSConnector(config, logger)
	case csvingest.AuthMethodGoogleIAM:
		return newGoogleConnector(config, logger)
	case csvingest.AuthMethodAzureEntraID:
		return newAzureConnector(config, logger)
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, csvingest.ErrUnsupportedAuthMethod)
	}
}

// wrapConnectionError adds guidance to the raw pgx error. The original error stays wrapped.
func wrapConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		return fmt.Errorf(`connection refused to %s

Possible causes:
  - PostgreSQL is not running (check: pg_isready -h %s -p %d)
  - Wrong POSTGRES_HOST or POSTGRES_PORT

Original error: %w`, addr, host, port, err)

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		return fmt.Errorf(`cannot resolve host "%s"

Possible causes:
  - POSTGRES_HOST is misspelled
  - DNS is not configured or reachable

Original error: %w`, host, err)

	case strings.Contains(errStr, "password authentication failed"):
		return fmt.Errorf(`password authentication failed for database "%s"

Check POSTGRES_USER and POSTGRES_PASSWORD.

Original error: %w`, database, err)

	case strings.Contains(errStr, "does not exist"):
		return fmt.Errorf(`database "%s" does not exist

To create it:
  createdb %s

Original error: %w`, database, database, err)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return fmt.Errorf(`connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Firewall silently dropping packets

Original error: %w`, addr, err)

	case strings.Contains(errStr, "ssl") || strings.Contains(errStr, "tls"):
		return fmt.Errorf(`SSL/TLS connection error

Check POSTGRES_SSLMODE (disable, prefer, require, verify-full).

Original error: %w`, err)

	case strings.Contains(errStr, "too many connections"):
		return fmt.Errorf(`too many connections to database "%s"

Original error: %w`, database, err)

	default:
		return fmt.Errorf("failed to connect to database: %w", err)
	}
}

func newAWSConnector(config *csvingest.ConnectionConfig, logger csvingest.Logger) (csvingest.Connector, error) {
	endpoint := fmt.Sprintf("%s:%d", config.Host, config.Port)

	tokenProvider, err := NewAWSIAMTokenProvider(endpoint, config.AWSRegion, config.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS IAM token provider: %w", err)
	}
	return NewTokenBasedConnector(config, tokenProvider, "AWS IAM", logger), nil
}

func newGoogleConnector(config *csvingest.ConnectionConfig, logger csvingest.Logger) (csvingest.Connector, error) {
	if config.GoogleInstance == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires GOOGLE_CLOUDSQL_INSTANCE (project:region:instance): %w", csvingest.ErrInvalidConfig)
	}
	if config.Username == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires POSTGRES_USER: %w", csvingest.ErrInvalidConfig)
	}
	return NewGoogleCloudSQLConnector(config, config.GoogleInstance, logger), nil
}

// newAzureConnector uses Service Principal auth when tenant, client and secret
// are all set, and the DefaultAzureCredential chain otherwise.
func newAzureConnector(config *csvingest.ConnectionConfig, logger csvingest.Logger) (csvingest.Connector, error) {
	var tokenProvider TokenProvider
	var err error

	if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
		tokenProvider, err = NewAzureServicePrincipalProvider(
			config.AzureTenantID,
			config.AzureClientID,
			config.AzureClientSecret,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Service Principal provider: %w", err)
		}
	} else {
		tokenProvider, err = NewAzureDefaultCredentialProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Default Credential provider: %w", err)
		}
	}

	return NewTokenBasedConnector(config, tokenProvider, "Azure", logger), nil
}
