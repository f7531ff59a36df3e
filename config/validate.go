package config

import (
	"net/url"
	"slices"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/govpipe/entity"
	"github.com/teranos/govpipe/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if len(c.Environments) == 0 {
		return errors.WithHint(errors.New("no environments configured"),
			"add an [environments.<name>] table with base_url to pipeline.toml")
	}

	for _, name := range c.EnvironmentNames() {
		env := c.Environments[name]
		if env.BaseURL == "" {
			return errors.Newf("environments.%s.base_url cannot be empty", name)
		}
		u, err := url.Parse(env.BaseURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return errors.Newf("environments.%s.base_url must be an absolute http(s) URL, got %q", name, env.BaseURL)
		}
		if env.MinAPIVersion != "" {
			if _, err := semver.NewConstraint(env.MinAPIVersion); err != nil {
				return errors.Wrapf(err, "environments.%s.min_api_version %q is not a valid constraint", name, env.MinAPIVersion)
			}
		}
	}

	// 0 = use default timeout; negative is invalid
	if c.HTTP.TimeoutSeconds < 0 {
		return errors.Newf("http.timeout_seconds must be >= 0, got %d", c.HTTP.TimeoutSeconds)
	}

	if c.Import.MaxRetries < 0 {
		return errors.Newf("import.max_retries must be >= 0, got %d", c.Import.MaxRetries)
	}
	if c.Import.RetryInitialMS < 0 {
		return errors.Newf("import.retry_initial_ms must be >= 0, got %d", c.Import.RetryInitialMS)
	}
	if c.Import.RequestsPerSecond < 0 {
		return errors.Newf("import.requests_per_second must be >= 0, got %f", c.Import.RequestsPerSecond)
	}

	switch c.Artifacts.Backend {
	case "", BackendFS:
	case BackendS3:
		if c.Artifacts.S3.Bucket == "" {
			return errors.New("artifacts.s3.bucket cannot be empty when artifacts.backend = \"s3\"")
		}
	default:
		return errors.Newf("artifacts.backend must be %q or %q, got %q", BackendFS, BackendS3, c.Artifacts.Backend)
	}

	if c.Ledger.Enabled && c.Ledger.Path == "" {
		return errors.New("ledger.path cannot be empty when ledger is enabled")
	}

	return c.validateMappings()
}

// validateMappings checks that every mapping names an importable entity
// type and targets one of its canonical fields
func (c *Config) validateMappings() error {
	types := make([]string, 0, len(c.Mappings))
	for name := range c.Mappings {
		types = append(types, name)
	}
	sort.Strings(types)

	for _, name := range types {
		et, err := entity.ParseImportable(name)
		if err != nil {
			return errors.Wrapf(err, "mappings.%s", name)
		}
		known := entity.FieldNames(et)

		sources := make([]string, 0, len(c.Mappings[name]))
		for src := range c.Mappings[name] {
			sources = append(sources, src)
		}
		sort.Strings(sources)

		for _, src := range sources {
			dst := c.Mappings[name][src]
			if !slices.Contains(known, entity.NormalizeToken(dst)) {
				return errors.WithHintf(
					errors.Newf("mappings.%s: %q maps to unknown field %q", name, src, dst),
					"%s fields are: %s", name, strings.Join(known, ", "))
			}
		}
	}
	return nil
}
