// Package config holds the pipeline configuration.
//
// Configuration is loaded once at process start and handed to components
// as a value. Nothing in this package is mutated after Load returns.
package config

import (
	"sort"
	"strings"
	"time"

	"github.com/teranos/govpipe/errors"
)

// Config represents the complete pipeline configuration
type Config struct {
	Environments map[string]Environment       `mapstructure:"environments" toml:"environments"`
	Mappings     map[string]map[string]string `mapstructure:"mappings" toml:"mappings"`
	HTTP         HTTPConfig                   `mapstructure:"http" toml:"http"`
	Import       ImportConfig                 `mapstructure:"import" toml:"import"`
	Artifacts    ArtifactsConfig              `mapstructure:"artifacts" toml:"artifacts"`
	Ledger       LedgerConfig                 `mapstructure:"ledger" toml:"ledger"`
	API          APIConfig                    `mapstructure:"api" toml:"api"`
}

// Environment is a named target API deployment (e.g. "staging")
type Environment struct {
	Name          string `mapstructure:"-" toml:"-"`
	BaseURL       string `mapstructure:"base_url" toml:"base_url"`
	APIPrefix     string `mapstructure:"api_prefix" toml:"api_prefix,omitempty"`           // prepended to every resource path (e.g. "/api/v1")
	MinAPIVersion string `mapstructure:"min_api_version" toml:"min_api_version,omitempty"` // semver constraint checked against /readyz
	AllowPrivate  bool   `mapstructure:"allow_private" toml:"allow_private,omitempty"`     // permit localhost and private networks
}

// HTTPConfig configures outbound HTTP calls
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
}

// ImportConfig configures import-mode create calls
type ImportConfig struct {
	MaxRetries        int     `mapstructure:"max_retries" toml:"max_retries"`                 // 0 = no retries
	RetryInitialMS    int     `mapstructure:"retry_initial_ms" toml:"retry_initial_ms"`       // first backoff interval
	RequestsPerSecond float64 `mapstructure:"requests_per_second" toml:"requests_per_second"` // 0 = unlimited
}

// ArtifactsConfig selects where run artifacts are written
type ArtifactsConfig struct {
	Backend string            `mapstructure:"backend" toml:"backend"` // fs or s3
	Dir     string            `mapstructure:"dir" toml:"dir"`
	S3      ArtifactsS3Config `mapstructure:"s3" toml:"s3"`
}

// ArtifactsS3Config configures the S3 artifact backend
type ArtifactsS3Config struct {
	Bucket   string `mapstructure:"bucket" toml:"bucket,omitempty"`
	Region   string `mapstructure:"region" toml:"region,omitempty"`
	Endpoint string `mapstructure:"endpoint" toml:"endpoint,omitempty"` // MinIO, LocalStack
	Prefix   string `mapstructure:"prefix" toml:"prefix,omitempty"`
}

// LedgerConfig configures the optional local run history
type LedgerConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Path    string `mapstructure:"path" toml:"path"`
}

// APIConfig holds credentials for the target API
type APIConfig struct {
	Token string `mapstructure:"token" toml:"token,omitempty"`
}

// Artifact backends
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// ErrUnknownEnvironment is returned when an environment name is not configured
var ErrUnknownEnvironment = errors.New("unknown environment")

// Environment resolves a named environment.
func (c *Config) Environment(name string) (Environment, error) {
	env, ok := c.Environments[strings.ToLower(name)]
	if !ok {
		return Environment{}, errors.WithHintf(
			errors.Wrapf(ErrUnknownEnvironment, "%q", name),
			"configured environments: %s", strings.Join(c.EnvironmentNames(), ", "))
	}
	env.Name = strings.ToLower(name)
	return env, nil
}

// EnvironmentNames returns the configured environment names, sorted
func (c *Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldMapping returns a copy of the source → canonical field renames
// configured for an entity type. Keys are lowercased.
func (c *Config) FieldMapping(entityType string) map[string]string {
	out := make(map[string]string)
	for src, dst := range c.Mappings[strings.ToLower(entityType)] {
		out[strings.ToLower(strings.TrimSpace(src))] = dst
	}
	return out
}

// Timeout returns the per-request HTTP timeout
func (c *Config) Timeout() time.Duration {
	if c.HTTP.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// URL joins the environment base URL, API prefix and a resource path
func (e Environment) URL(path string) string {
	base := strings.TrimRight(e.BaseURL, "/")
	prefix := strings.Trim(e.APIPrefix, "/")
	if prefix != "" {
		base += "/" + prefix
	}
	return base + "/" + strings.TrimLeft(path, "/")
}
