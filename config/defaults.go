package config

import (
	"github.com/spf13/viper"
)

// Default values
const (
	DefaultTimeoutSeconds    = 10
	DefaultMaxRetries        = 2
	DefaultRetryInitialMS    = 200
	DefaultArtifactsDir      = "artifacts"
	DefaultLedgerPath        = "pipeline.db"
	DefaultLocalBaseURL      = "http://localhost:8000"
	DefaultLocalEnvironment  = "local"
	DefaultRequestsPerSecond = 0
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("environments.local.base_url", DefaultLocalBaseURL)
	v.SetDefault("environments.local.allow_private", true)

	v.SetDefault("http.timeout_seconds", DefaultTimeoutSeconds)

	v.SetDefault("import.max_retries", DefaultMaxRetries)
	v.SetDefault("import.retry_initial_ms", DefaultRetryInitialMS)
	v.SetDefault("import.requests_per_second", DefaultRequestsPerSecond)

	v.SetDefault("artifacts.backend", BackendFS)
	v.SetDefault("artifacts.dir", DefaultArtifactsDir)

	// Ledger is opt-in; idempotency does not depend on it
	v.SetDefault("ledger.enabled", false)
	v.SetDefault("ledger.path", DefaultLedgerPath)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	_ = v.BindEnv("api.token", "PIPELINE_API_TOKEN")
	_ = v.BindEnv("artifacts.s3.bucket", "PIPELINE_ARTIFACTS_S3_BUCKET")
	_ = v.BindEnv("artifacts.s3.endpoint", "PIPELINE_ARTIFACTS_S3_ENDPOINT")
}
