package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads every section of Config from the environment, fills in the
// `default` tag for unset variables and validates the result. A .env file
// must already have been applied to the process environment.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadSection(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// loadSection fills the tagged fields of one section (Database, Ingest,
// Download, ...) and descends into nested sections.
func loadSection(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadSection(fv); err != nil {
				return err
			}
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}

		value, ok := lookupEnv(name, field.Tag.Get("envAlt"))
		if !ok {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", name)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fv, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, value, err)
		}
	}
	return nil
}

// lookupEnv returns the first non-empty of name and alt (DATABASE_URL / DB_URL).
func lookupEnv(name, alt string) (string, bool) {
	if v := os.Getenv(name); v != "" {
		return v, true
	}
	if alt != "" {
		if v := os.Getenv(alt); v != "" {
			return v, true
		}
	}
	return "", false
}

// setField parses value into the kind of field. Durations use Go syntax
// ("20s", "1h"); string lists such as INGEST_DATA are comma-separated.
func setField(field reflect.Value, value string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))

	case field.Kind() == reflect.String:
		field.SetString(value)

	case field.Kind() == reflect.Int:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(int64(n))

	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		var list []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
		field.Set(reflect.ValueOf(list))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}
	return nil
}

// httpURL reports whether s is an absolute http(s) URL with a host.
// url.ParseRequestURI accepts "gateway:9091" as scheme "gateway".
func httpURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.URL == "" && c.Database.Host == "" {
		errs = append(errs, "DATABASE_URL or DB_HOST is required")
	}
	if c.Database.URL == "" && (c.Database.Port <= 0 || c.Database.Port > 65535) {
		errs = append(errs, fmt.Sprintf("DB_PORT (%d) must be 1-65535", c.Database.Port))
	}
	if c.Database.Schema == "" {
		errs = append(errs, "DB_SCHEMA must not be empty")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	// Ingest validation
	if c.Ingest.Processes < 0 {
		errs = append(errs, fmt.Sprintf("NUMBER_OF_PROCESSES (%d) must be non-negative", c.Ingest.Processes))
	}
	if c.Ingest.ChunkRows <= 0 {
		errs = append(errs, "INGEST_INSERT_CHUNK_ROWS must be positive")
	}
	if c.Ingest.MaxInsertAttempts <= 0 {
		errs = append(errs, "INGEST_MAX_INSERT_ATTEMPTS must be positive")
	}
	if c.Ingest.MaxRepairAttempts < 0 {
		errs = append(errs, "INGEST_MAX_XML_REPAIRS must be non-negative")
	}

	// Download validation
	if c.Download.ArchivePath == "" {
		if !httpURL(c.Download.PageURL) {
			errs = append(errs, fmt.Sprintf("MASTR_DOWNLOAD_PAGE (%q) must be an absolute http(s) URL", c.Download.PageURL))
		}
		if !httpURL(c.Download.BaseURL) {
			errs = append(errs, fmt.Sprintf("MASTR_DOWNLOAD_BASE_URL (%q) must be an absolute http(s) URL", c.Download.BaseURL))
		}
	}
	if c.Download.Dir == "" {
		errs = append(errs, "MASTR_DOWNLOAD_DIR must not be empty")
	}
	if c.Download.PageTimeout <= 0 {
		errs = append(errs, "DOWNLOAD_PAGE_TIMEOUT must be positive")
	}
	if c.Download.RetryMax < 0 {
		errs = append(errs, "DOWNLOAD_RETRY_MAX must be non-negative")
	}

	// Spatial validation
	if c.Spatial.SRID <= 0 {
		errs = append(errs, fmt.Sprintf("SPATIAL_SRID (%d) must be positive", c.Spatial.SRID))
	}

	// Metrics validation
	if c.Metrics.PushgatewayURL != "" {
		if !httpURL(c.Metrics.PushgatewayURL) {
			errs = append(errs, fmt.Sprintf("METRICS_PUSHGATEWAY_URL (%q) must be an absolute http(s) URL", c.Metrics.PushgatewayURL))
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Workers resolves the worker count for a machine with numCPU cores.
// An explicit NUMBER_OF_PROCESSES wins; otherwise the recommended count
// min(numCPU-1, 4) is used when enabled. Zero means sequential execution.
func (c *IngestConfig) Workers(numCPU int) int {
	if c.Processes > 0 {
		return c.Processes
	}
	if c.UseRecommendedProcesses {
		return max(1, min(numCPU-1, 4))
	}
	return 0
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], Schema: %q, MaxConns: %d, MinConns: %d}, ",
		c.Database.Schema, c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Ingest: {Processes: %d, Recommended: %v, Data: %v, Cleansing: %v, ChunkRows: %d}, ",
		c.Ingest.Processes, c.Ingest.UseRecommendedProcesses, c.Ingest.Data, c.Ingest.Cleansing, c.Ingest.ChunkRows))
	b.WriteString(fmt.Sprintf("Download: {Dir: %q, Reuse: %v, ArchivePath: %q}, ",
		c.Download.Dir, c.Download.ReuseArchive, c.Download.ArchivePath))
	b.WriteString(fmt.Sprintf("Spatial: {Enabled: %v, SRID: %d}, ", c.Spatial.Enabled, c.Spatial.SRID))
	b.WriteString(fmt.Sprintf("Mirror: {Bucket: %q}, ", c.Mirror.Bucket))
	b.WriteString(fmt.Sprintf("Metrics: {Addr: %q, Pushgateway: %q, APIKeys: [%d MASKED]}, ",
		c.Metrics.Addr, c.Metrics.PushgatewayURL, len(c.Metrics.APIKeys)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
