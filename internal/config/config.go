// Package config provides centralized configuration management for the ingester.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Ingest   IngestConfig
	Download DownloadConfig
	Spatial  SpatialConfig
	Mirror   MirrorConfig
	Metrics  MetricsConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// When empty it is assembled from the discrete DB_* variables below.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	Host     string `env:"DB_HOST" default:"localhost"`
	Port     int    `env:"DB_PORT" default:"5432"`
	Name     string `env:"DB_NAME" default:"mastr"`
	User     string `env:"DB_USER" default:"postgres"`
	Password string `env:"DB_PASSWORD"`

	// Schema is the destination schema for all entity tables (default: public)
	Schema string `env:"DB_SCHEMA" default:"public"`

	// MaxConns is the maximum number of connections in the pool (default: 10).
	// Raised at startup to at least workers+1.
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 3m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"3m"`

	// ConnectTimeout bounds the startup ping (default: 5m)
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"5m"`
}

// IngestConfig holds transform and load settings.
type IngestConfig struct {
	// Processes is the explicit worker count. Zero means "not set".
	Processes int `env:"NUMBER_OF_PROCESSES"`

	// UseRecommendedProcesses selects min(NumCPU-1, 4) workers when Processes is not set.
	UseRecommendedProcesses bool `env:"USE_RECOMMENDED_NUMBER_OF_PROCESSES" default:"false"`

	// Data is the list of categories or entity-type keys to load (default: all)
	Data []string `env:"INGEST_DATA"`

	// Cleansing enables catalog replacement and value normalization (default: true)
	Cleansing bool `env:"INGEST_BULK_CLEANSING" default:"true"`

	// ChunkRows is the number of rows per INSERT statement (default: 1000)
	ChunkRows int `env:"INGEST_INSERT_CHUNK_ROWS" default:"1000"`

	// MaxInsertAttempts bounds the per-partition insert retry loop (default: 10000)
	MaxInsertAttempts int `env:"INGEST_MAX_INSERT_ATTEMPTS" default:"10000"`

	// MaxRepairAttempts bounds the per-partition XML repair loop (default: 100)
	MaxRepairAttempts int `env:"INGEST_MAX_XML_REPAIRS" default:"100"`

	// SourceTag is written to the DatenQuelle provenance column (default: bulk)
	SourceTag string `env:"INGEST_SOURCE_TAG" default:"bulk"`
}

// DownloadConfig holds archive acquisition settings.
type DownloadConfig struct {
	// PageURL is the download page listing the export archives
	PageURL string `env:"MASTR_DOWNLOAD_PAGE" default:"https://www.marktstammdatenregister.de/MaStR/Datendownload"`

	// BaseURL is used to resolve relative archive links
	BaseURL string `env:"MASTR_DOWNLOAD_BASE_URL" default:"https://download.marktstammdatenregister.de"`

	// Dir is where archives are stored and looked up for reuse
	Dir string `env:"MASTR_DOWNLOAD_DIR" default:".MaStr/xml_downloads"`

	// ReuseArchive permits reusing the newest local archive (default: true)
	ReuseArchive bool `env:"MASTR_REUSE_ARCHIVE" default:"true"`

	// ArchivePath pins a specific archive and skips acquisition
	ArchivePath string `env:"MASTR_ARCHIVE_PATH"`

	// PageTimeout bounds the index page request (default: 20s)
	PageTimeout time.Duration `env:"DOWNLOAD_PAGE_TIMEOUT" default:"20s"`

	// RetryMax is the number of HTTP retries for page and archive requests (default: 3)
	RetryMax int `env:"DOWNLOAD_RETRY_MAX" default:"3"`

	// ProgressInterval is how often download progress is logged (default: 10s)
	ProgressInterval time.Duration `env:"DOWNLOAD_PROGRESS_INTERVAL" default:"10s"`
}

// SpatialConfig holds PostGIS settings.
type SpatialConfig struct {
	Enabled bool `env:"SPATIAL_ENABLED" default:"true"`
	SRID    int  `env:"SPATIAL_SRID" default:"4326"`
}

// MirrorConfig holds the optional S3 archive mirror settings.
// The mirror is disabled when Bucket is empty.
type MirrorConfig struct {
	Bucket    string `env:"ARCHIVE_S3_BUCKET"`
	Prefix    string `env:"ARCHIVE_S3_PREFIX" default:"mastr/"`
	Region    string `env:"ARCHIVE_S3_REGION" default:"eu-central-1"`
	Endpoint  string `env:"ARCHIVE_S3_ENDPOINT"`
	PathStyle bool   `env:"ARCHIVE_S3_PATH_STYLE" default:"false"`
}

// Enabled reports whether a mirror bucket is configured.
func (c *MirrorConfig) Enabled() bool { return c.Bucket != "" }

// MetricsConfig holds prometheus settings.
type MetricsConfig struct {
	// Addr is the listen address of the status server; empty disables it
	Addr string `env:"METRICS_ADDR"`

	// PushgatewayURL receives the final metrics of a run; empty disables pushing
	PushgatewayURL string `env:"METRICS_PUSHGATEWAY_URL"`

	Job string `env:"METRICS_JOB" default:"mastr_ingest"`

	// APIKeys protect the /api routes of the status server (comma-separated)
	APIKeys []string `env:"STATUS_API_KEYS"`

	// TrustedProxies may set X-Real-IP / X-Forwarded-For (comma-separated CIDRs)
	TrustedProxies []string `env:"STATUS_TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ConnString returns URL when set, otherwise a postgres URL built from the
// discrete connection settings.
func (c *DatabaseConfig) ConnString() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.String()
}
