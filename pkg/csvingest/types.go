package csvingest

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConnectionConfig represents resolved connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// Azure Entra ID parameters. With all three set, Service Principal auth is used;
	// otherwise the DefaultAzureCredential chain.
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	// AWSRegion is required for AWS RDS IAM authentication.
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance connection name (project:region:instance).
	GoogleInstance string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// ParseAuthMethod maps the POSTGRES_AUTH setting to an AuthMethod.
// An empty value selects standard authentication.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "password":
		return AuthMethodStandard, nil
	case "aws", "aws-iam":
		return AuthMethodAWSIAM, nil
	case "google", "google-iam", "gcp":
		return AuthMethodGoogleIAM, nil
	case "azure", "azure-entra-id", "entra":
		return AuthMethodAzureEntraID, nil
	default:
		return AuthMethodStandard, fmt.Errorf("auth method %q: %w", s, ErrUnsupportedAuthMethod)
	}
}

// LoadMode selects how staging rows reach the target table.
type LoadMode string

const (
	// ModeUpsert inserts new keys and overwrites non-key columns of existing keys.
	ModeUpsert LoadMode = "upsert"
	// ModeAppend inserts every staging row without conflict handling.
	ModeAppend LoadMode = "append"
)

// IngestOptions are per-invocation switches for table ingestion.
type IngestOptions struct {
	// AutoAddColumns adds CSV columns missing from the target as nullable TEXT.
	AutoAddColumns bool

	// ChunkSize applies to tables that do not configure their own chunksize.
	// Zero selects DefaultChunkSize.
	ChunkSize int
}

// Validate checks the options for impossible values.
func (o IngestOptions) Validate() error {
	var errs []error
	if o.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("chunk size cannot be negative: %w", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// FileResult summarizes one source file's trip through staging.
type FileResult struct {
	Path        string
	RowsRead    int64
	RowsLoaded  int64
	RowsSkipped int64 // rows without a usable primary key
}

// TableResult summarizes one table-ingestion unit.
type TableResult struct {
	Table          string
	Target         string // schema-qualified target table
	Files          []FileResult
	Columns        []string
	AddedColumns   []string
	IgnoredColumns []string
	Duplicates     int64
	RowsMerged     int64
	Skipped        bool // no source files were found
	Failed         bool // the table was rolled back or never reached the database
	Duration       time.Duration
}

// RowsLoaded totals the rows copied into staging across all files.
func (r TableResult) RowsLoaded() int64 {
	var n int64
	for _, f := range r.Files {
		n += f.RowsLoaded
	}
	return n
}
