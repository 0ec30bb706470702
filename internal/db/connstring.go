package db

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/vvka-141/csvingest/internal/config"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// ApplicationName is reported to the server as application_name.
const ApplicationName = "csvingest"

// ConfigFromSettings maps environment settings to connection parameters.
func ConfigFromSettings(s config.PostgresSettings) (*csvingest.ConnectionConfig, error) {
	method, err := csvingest.ParseAuthMethod(s.Auth)
	if err != nil {
		return nil, err
	}
	if s.Port <= 0 || s.Port > 65535 {
		return nil, fmt.Errorf("POSTGRES_PORT %d out of range: %w", s.Port, csvingest.ErrInvalidConfig)
	}
	return &csvingest.ConnectionConfig{
		Host:              s.Host,
		Port:              s.Port,
		Database:          s.Database,
		Username:          s.User,
		Password:          s.Password,
		SSLMode:           s.SSLMode,
		AuthMethod:        method,
		AppName:           ApplicationName,
		AzureTenantID:     s.AzureTenantID,
		AzureClientID:     s.AzureClientID,
		AzureClientSecret: s.AzureClientSecret,
		AWSRegion:         s.AWSRegion,
		GoogleInstance:    s.GoogleInstance,
	}, nil
}

// BuildConnectionString renders cfg as a postgresql:// URI for pgx.
func BuildConnectionString(cfg *csvingest.ConnectionConfig) string {
	u := &url.URL{
		Scheme: "postgresql",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}

	if cfg.Username != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.Username, cfg.Password)
		} else {
			u.User = url.User(cfg.Username)
		}
	}

	query := url.Values{}
	if cfg.SSLMode != "" {
		query.Set("sslmode", cfg.SSLMode)
	}
	if cfg.AppName != "" {
		query.Set("application_name", cfg.AppName)
	}
	if cfg.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	for key, value := range cfg.AdditionalParams {
		query.Set(key, value)
	}

	u.RawQuery = query.Encode()
	return u.String()
}
