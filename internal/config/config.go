// Package config loads and validates the TOML configuration that
// drives the CLI entrypoint, in the same shape the teacher project
// used for its generator configuration: a struct decoded with
// BurntSushi/toml, human-readable sizes resolved through
// docker/go-units, and an aggregated Validate error.
package config

import (
	"fmt"
	"strings"

	units "github.com/docker/go-units"
)

const defaultPageSizeBytes = units.MiB

// ConnectionConfig describes how to reach the SQL Server instance.
type ConnectionConfig struct {
	Server   string `toml:"server"`
	Database string `toml:"database,omitempty"`
	User     string `toml:"user,omitempty"`
	Password string `toml:"password,omitempty"`
	Integrated bool `toml:"integrated,omitempty"`
	TrustCert  bool `toml:"trust_cert,omitempty"`
}

// QueryConfig describes the ad-hoc query to run.
type QueryConfig struct {
	Text     string   `toml:"text,omitempty"`
	File     string   `toml:"file,omitempty"`
	Params   []string `toml:"params,omitempty"`
}

// S3Config configures the pingcap/tidb/br/pkg/storage S3 backend for
// the output sink, mirroring the teacher's config.S3Config.
type S3Config struct {
	Region          string `toml:"region,omitempty"`
	AccessKey       string `toml:"access_key,omitempty"`
	SecretAccessKey string `toml:"secret_key,omitempty"`
	Provider        string `toml:"provider,omitempty"`
	Endpoint        string `toml:"endpoint,omitempty"`
	RoleArn         string `toml:"role_arn,omitempty"`
}

// GCSConfig configures the GCS backend, mirroring the teacher's
// config.GCSConfig.
type GCSConfig struct {
	Credential string `toml:"credential,omitempty"`
}

// OutputConfig describes the Parquet file to produce.
type OutputConfig struct {
	Path        string `toml:"path"`
	PageSize    string `toml:"page_size,omitempty"`
	Compression string `toml:"compression,omitempty"`
	// ParallelEncode enables the Writer Driver's concurrent
	// post-ingestion validation of every column (Driver.ParallelValidate);
	// the column writes themselves stay sequential.
	ParallelEncode bool `toml:"parallel_encode,omitempty"`

	S3  *S3Config  `toml:"s3,omitempty"`
	GCS *GCSConfig `toml:"gcs,omitempty"`

	// PageSizeBytes is derived at runtime and not read from the file.
	PageSizeBytes int64 `toml:"-"`
}

// Config is the top-level TOML document.
type Config struct {
	Connection ConnectionConfig `toml:"connection"`
	Query      QueryConfig      `toml:"query"`
	Output     OutputConfig     `toml:"output"`
}

// Normalize resolves derived config values after loading, mirroring
// the teacher's config.Normalize (chunk/page size resolution).
func Normalize(cfg *Config) error {
	pageBytes, err := cfg.Output.resolvePageSizeBytes()
	if err != nil {
		return err
	}
	cfg.Output.PageSizeBytes = pageBytes
	return nil
}

// Validate returns a user-friendly, aggregated error describing every
// configuration problem at once, in the teacher's style.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Connection.Server == "" {
		errs = append(errs, "connection.server is required")
	}
	if !cfg.Connection.Integrated && cfg.Connection.User == "" {
		errs = append(errs, "connection.user is required unless connection.integrated is set")
	}

	if cfg.Query.Text == "" && cfg.Query.File == "" {
		errs = append(errs, "query.text or query.file is required")
	}
	if cfg.Query.Text != "" && cfg.Query.File != "" {
		errs = append(errs, "only one of query.text or query.file may be set")
	}

	if cfg.Output.Path == "" {
		errs = append(errs, "output.path is required")
	}

	if cfg.Output.PageSizeBytes <= 0 {
		errs = append(errs, "output.page_size must be greater than 0")
	}

	compression := strings.ToLower(strings.TrimSpace(cfg.Output.Compression))
	switch compression {
	case "", "snappy", "zstd", "gzip", "brotli", "lz4", "lz4_raw", "uncompressed", "none":
	default:
		errs = append(errs, fmt.Sprintf("output.compression %q is not a recognized codec", cfg.Output.Compression))
	}

	if cfg.Output.S3 != nil && cfg.Output.GCS != nil {
		errs = append(errs, "only one of output.s3 or output.gcs may be set")
	}

	if len(errs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("invalid config:\n")
	for _, e := range errs {
		sb.WriteString(" - ")
		sb.WriteString(e)
		sb.WriteString("\n")
	}
	return fmt.Errorf("%s", strings.TrimRight(sb.String(), "\n"))
}

func (c *OutputConfig) resolvePageSizeBytes() (int64, error) {
	if c.PageSize != "" {
		bytes, err := units.RAMInBytes(c.PageSize)
		if err != nil {
			return 0, fmt.Errorf("invalid output.page_size %q: %w", c.PageSize, err)
		}
		if bytes <= 0 {
			return 0, fmt.Errorf("invalid output.page_size %q: must be greater than 0", c.PageSize)
		}
		return bytes, nil
	}
	return defaultPageSizeBytes, nil
}
