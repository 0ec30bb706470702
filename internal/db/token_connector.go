package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/csvingest/internal/retry"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// tokenExpiryWarning is how close to expiry a fresh token has to be before it is logged.
const tokenExpiryWarning = 5 * time.Minute

// TokenBasedConnector authenticates with a short-lived token (AWS IAM, Azure
// Entra ID) used as the PostgreSQL password. A fresh token is requested on
// every connection attempt.
type TokenBasedConnector struct {
	config        *csvingest.ConnectionConfig
	tokenProvider TokenProvider
	providerName  string
	logger        csvingest.Logger
	retryExecutor *retry.Executor
}

// NewTokenBasedConnector creates a connector around tokenProvider.
// providerName appears in log lines and errors.
func NewTokenBasedConnector(config *csvingest.ConnectionConfig, tokenProvider TokenProvider, providerName string, logger csvingest.Logger) *TokenBasedConnector {
	return &TokenBasedConnector{
		config:        config,
		tokenProvider: tokenProvider,
		providerName:  providerName,
		logger:        logger,
		retryExecutor: newRetryExecutor(logger),
	}
}

func (c *TokenBasedConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool

	err := c.retryExecutor.Execute(ctx, func(ctx context.Context) error {
		token, expiresOn, err := c.tokenProvider.GetToken(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire %s token: %w", c.providerName, err)
		}
		if remaining := time.Until(expiresOn); remaining < tokenExpiryWarning {
			c.logger.Warn("token expires soon", "provider", c.providerName, "remaining", remaining.Round(time.Second))
		}

		configWithToken := *c.config
		configWithToken.Password = token

		p, err := openPool(ctx, c.config, BuildConnectionString(&configWithToken), c.logger)
		if err != nil {
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", csvingest.ErrConnectionFailed, err)
	}

	c.logger.Debug("connected with token authentication", "provider", c.tokenProvider.String())
	return pool, nil
}
