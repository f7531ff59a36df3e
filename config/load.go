package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/govpipe/errors"
)

// ProjectConfigName is the file searched for from the working directory upward
const ProjectConfigName = "pipeline.toml"

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the pipeline configuration using Viper.
// Precedence (lowest to highest): defaults < system < user < project < env vars.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	cfg, err := LoadWithViper(initViper())
	if err != nil {
		return nil, err
	}

	globalConfig = cfg
	return globalConfig, nil
}

// LoadWithViper loads and validates configuration from a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path.
// Environment variables still override file values.
func LoadFromFile(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	return LoadWithViper(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix("PIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)
	SetDefaults(v)
	return v
}

func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := newViper()
	mergeConfigFiles(v, configSearchPaths())

	viperInstance = v
	return v
}

// normalize lowercases map keys so lookups by CLI flag are case-insensitive
func normalize(cfg *Config) {
	envs := make(map[string]Environment, len(cfg.Environments))
	for name, env := range cfg.Environments {
		envs[strings.ToLower(name)] = env
	}
	cfg.Environments = envs

	mappings := make(map[string]map[string]string, len(cfg.Mappings))
	for entity, m := range cfg.Mappings {
		mappings[strings.ToLower(entity)] = m
	}
	cfg.Mappings = mappings
}

// findProjectConfig searches for pipeline.toml by walking up the directory tree
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func configSearchPaths() []string {
	paths := []string{"/etc/pipeline/" + ProjectConfigName}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".pipeline", ProjectConfigName))
	}
	if projectConfig := findProjectConfig(); projectConfig != "" {
		paths = append(paths, projectConfig)
	}
	return paths
}

// mergeConfigFiles merges existing configuration files in order; later files win
func mergeConfigFiles(v *viper.Viper, configPaths []string) {
	for _, configPath := range configPaths {
		if _, err := os.Stat(configPath); err != nil {
			continue
		}

		tempViper := viper.New()
		tempViper.SetConfigFile(configPath)
		tempViper.SetConfigType("toml")

		if err := tempViper.ReadInConfig(); err == nil {
			for key, value := range tempViper.AllSettings() {
				v.Set(key, value)
			}
		}
	}
}
