package config

import (
	"os"
	"path/filepath"
	"sort"

	burnt "github.com/BurntSushi/toml"
	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/govpipe/errors"
)

// StarterConfig returns the configuration written by `pipeline config init`
func StarterConfig() *Config {
	return &Config{
		Environments: map[string]Environment{
			DefaultLocalEnvironment: {BaseURL: DefaultLocalBaseURL, AllowPrivate: true},
			"staging":               {BaseURL: "https://staging.example.com", APIPrefix: "/api/v1", MinAPIVersion: ">= 1.0.0"},
		},
		Mappings: map[string]map[string]string{
			"incident": {"incident_title": "title", "date": "occurred_at", "ref": "external_ref"},
		},
		HTTP:      HTTPConfig{TimeoutSeconds: DefaultTimeoutSeconds},
		Import:    ImportConfig{MaxRetries: DefaultMaxRetries, RetryInitialMS: DefaultRetryInitialMS},
		Artifacts: ArtifactsConfig{Backend: BackendFS, Dir: DefaultArtifactsDir},
		Ledger:    LedgerConfig{Path: DefaultLedgerPath},
	}
}

// WriteFile marshals cfg to TOML at path. An existing file is rotated to
// .back1 (keeping up to three backups) before it is replaced.
func WriteFile(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := createBackup(path); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}
	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// CheckResult describes a strict decode of a config file
type CheckResult struct {
	Path        string   `json:"path"`
	UnknownKeys []string `json:"unknown_keys,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// OK reports whether the file decoded cleanly with no unknown keys
func (r CheckResult) OK() bool {
	return r.Error == "" && len(r.UnknownKeys) == 0
}

// CheckFile strictly decodes a config file and reports keys that do not
// correspond to any configuration option. Viper silently ignores those,
// so a typo like `timout_seconds` would otherwise go unnoticed.
func CheckFile(path string) CheckResult {
	result := CheckResult{Path: path}

	var cfg Config
	md, err := burnt.DecodeFile(path, &cfg)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	for _, key := range md.Undecoded() {
		result.UnknownKeys = append(result.UnknownKeys, key.String())
	}
	sort.Strings(result.UnknownKeys)

	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		result.Error = err.Error()
	}
	return result
}

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to delete old backup %s", back3)
	}
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}
