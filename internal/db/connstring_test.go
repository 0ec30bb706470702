package db

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/csvingest/internal/config"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

func TestBuildConnectionString(t *testing.T) {
	tests := []struct {
		name   string
		config *csvingest.ConnectionConfig
		check  func(t *testing.T, u *url.URL)
	}{
		{
			name: "user and password",
			config: &csvingest.ConnectionConfig{
				Host: "localhost", Port: 5432, Database: "warehouse",
				Username: "loader", Password: "p@ss:word", SSLMode: "disable",
			},
			check: func(t *testing.T, u *url.URL) {
				pass, _ := u.User.Password()
				assert.Equal(t, "loader", u.User.Username())
				assert.Equal(t, "p@ss:word", pass)
				assert.Equal(t, "localhost:5432", u.Host)
				assert.Equal(t, "/warehouse", u.Path)
				assert.Equal(t, "disable", u.Query().Get("sslmode"))
			},
		},
		{
			name: "no password",
			config: &csvingest.ConnectionConfig{
				Host: "db", Port: 6543, Database: "postgres", Username: "iam_user",
			},
			check: func(t *testing.T, u *url.URL) {
				_, hasPass := u.User.Password()
				assert.False(t, hasPass)
				assert.Equal(t, "db:6543", u.Host)
			},
		},
		{
			name: "application name and timeout",
			config: &csvingest.ConnectionConfig{
				Host: "db", Port: 5432, Database: "postgres",
				AppName: "csvingest", ConnectTimeout: 7 * time.Second,
				AdditionalParams: map[string]string{"search_path": "raw"},
			},
			check: func(t *testing.T, u *url.URL) {
				q := u.Query()
				assert.Equal(t, "csvingest", q.Get("application_name"))
				assert.Equal(t, "7", q.Get("connect_timeout"))
				assert.Equal(t, "raw", q.Get("search_path"))
				assert.Nil(t, u.User)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(BuildConnectionString(tt.config))
			require.NoError(t, err)
			assert.Equal(t, "postgresql", u.Scheme)
			tt.check(t, u)
		})
	}
}

func TestConfigFromSettings(t *testing.T) {
	cfg, err := ConfigFromSettings(config.PostgresSettings{
		Host: "db", Port: 5433, User: "u", Password: "p", Database: "d",
		SSLMode: "require", Auth: "aws-iam", AWSRegion: "eu-west-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.Host)
	assert.Equal(t, 5433, cfg.Port)
	assert.Equal(t, "u", cfg.Username)
	assert.Equal(t, "require", cfg.SSLMode)
	assert.Equal(t, csvingest.AuthMethodAWSIAM, cfg.AuthMethod)
	assert.Equal(t, "eu-west-1", cfg.AWSRegion)
	assert.Equal(t, ApplicationName, cfg.AppName)
}

func TestConfigFromSettings_Errors(t *testing.T) {
	_, err := ConfigFromSettings(config.PostgresSettings{Port: 5432, Auth: "kerberos"})
	if !errors.Is(err, csvingest.ErrUnsupportedAuthMethod) {
		t.Errorf("expected ErrUnsupportedAuthMethod, got %v", err)
	}

	_, err = ConfigFromSettings(config.PostgresSettings{Port: 70000})
	if !errors.Is(err, csvingest.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
