package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// PostgresSettings are the database connection settings from POSTGRES_* and
// the cloud provider variables.
type PostgresSettings struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Auth     string

	AWSRegion         string
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
	GoogleInstance    string
}

// Paths are the directory roots of the data layout.
type Paths struct {
	DataDir        string
	CSVRoot        string
	ParquetRoot    string
	ArchiveRoot    string
	LandingRoot    string
	ManualDropRoot string
}

// RetentionSettings hold the age thresholds used by clean and landing-clean.
type RetentionSettings struct {
	Days                     int
	LandingDays              int
	LandingCompressAfterDays int
	LandingKeepPerTable      int
}

// SinkSettings configure the optional outputs. Empty values disable a sink.
type SinkSettings struct {
	SnapshotS3URI   string
	KafkaBrokers    []string
	KafkaTopic      string
	MetricsTextfile string
}

// Settings is the process-wide configuration read from the environment.
type Settings struct {
	Postgres     PostgresSettings
	Paths        Paths
	TargetSchema string
	TablesConfig string
	Retention    RetentionSettings
	Sinks        SinkSettings
}

// DefaultKafkaTopic receives ingestion events when KAFKA_TOPIC is unset.
const DefaultKafkaTopic = "csvingest.events"

// LoadSettings reads Settings from the process environment.
func LoadSettings() (Settings, error) {
	return loadSettings(os.LookupEnv)
}

func loadSettings(lookup func(string) (string, bool)) (Settings, error) {
	env := envReader{lookup: lookup}

	var s Settings
	s.Postgres = PostgresSettings{
		Host:              env.str("POSTGRES_HOST", "localhost"),
		Port:              env.num("POSTGRES_PORT", 5432),
		User:              env.str("POSTGRES_USER", "postgres"),
		Password:          env.str("POSTGRES_PASSWORD", ""),
		Database:          env.str("POSTGRES_DB", "postgres"),
		SSLMode:           env.str("POSTGRES_SSLMODE", "prefer"),
		Auth:              env.str("POSTGRES_AUTH", "standard"),
		AWSRegion:         env.str("AWS_REGION", ""),
		AzureTenantID:     env.str("AZURE_TENANT_ID", ""),
		AzureClientID:     env.str("AZURE_CLIENT_ID", ""),
		AzureClientSecret: env.str("AZURE_CLIENT_SECRET", ""),
		GoogleInstance:    env.str("GOOGLE_CLOUDSQL_INSTANCE", ""),
	}

	dataDir := env.str("DATA_DIR", "./data")
	landing := env.str("LANDING_ROOT", filepath.Join(dataDir, "landing"))
	s.Paths = Paths{
		DataDir:        dataDir,
		CSVRoot:        env.str("CSV_ROOT", filepath.Join(dataDir, "db_ingestion")),
		ParquetRoot:    env.str("PARQUET_ROOT", filepath.Join(dataDir, "parquet")),
		ArchiveRoot:    env.str("ARCHIVE_ROOT", filepath.Join(dataDir, "archive")),
		LandingRoot:    landing,
		ManualDropRoot: env.str("MANUAL_DROP_ROOT", filepath.Join(filepath.Dir(filepath.Clean(landing)), "manual_drop")),
	}

	s.TargetSchema = env.str("TARGET_SCHEMA", csvingest.DefaultTargetSchema)
	s.TablesConfig = env.str("TABLES_CONFIG", filepath.Join("config", "tables.yml"))

	s.Retention = RetentionSettings{
		Days:                     env.num("RETENTION_DAYS", csvingest.DefaultRetentionDays),
		LandingDays:              env.num("LANDING_RETENTION_DAYS", csvingest.DefaultLandingRetentionDays),
		LandingCompressAfterDays: env.num("LANDING_COMPRESS_AFTER_DAYS", csvingest.DefaultLandingCompressAfterDays),
		LandingKeepPerTable:      env.num("LANDING_KEEP_PER_NAMESPACE", csvingest.DefaultLandingKeepPerTable),
	}

	s.Sinks = SinkSettings{
		SnapshotS3URI:   env.str("SNAPSHOT_S3_URI", ""),
		KafkaBrokers:    splitList(env.str("KAFKA_BROKERS", "")),
		KafkaTopic:      env.str("KAFKA_TOPIC", DefaultKafkaTopic),
		MetricsTextfile: env.str("METRICS_TEXTFILE", ""),
	}

	if err := errors.Join(env.errs...); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", csvingest.ErrInvalidConfig, err)
	}
	return s, nil
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) str(name, def string) string {
	if v, ok := e.lookup(name); ok && v != "" {
		return v
	}
	return def
}

func (e *envReader) num(name string, def int) int {
	v, ok := e.lookup(name)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q is not an integer", name, v))
		return def
	}
	if n < 0 {
		e.errs = append(e.errs, fmt.Errorf("%s=%d cannot be negative", name, n))
		return def
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
