package commands

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/govpipe/config"
	"github.com/teranos/govpipe/display"
	"github.com/teranos/govpipe/errors"
)

// ConfigCmd groups configuration subcommands
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Create, check and show configuration",
	Long: `Create, check and show the pipeline configuration.

Configuration sources (later overrides earlier):
1. Built-in defaults
2. System config (/etc/pipeline/pipeline.toml)
3. User config (~/.pipeline/pipeline.toml)
4. Project config (pipeline.toml, searched upward from the working directory)
5. Environment variables (PIPELINE_* prefix, e.g. PIPELINE_API_TOKEN)

Examples:
  pipeline config init              # Write a starter pipeline.toml
  pipeline config check             # Report unknown keys and invalid values
  pipeline config show --format json`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configCheckCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Strictly check a configuration file",
	Long:  "Decode a configuration file strictly, reporting keys that match no option and values that fail validation.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigCheck,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var (
	configForce  bool
	configFormat string
)

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file (a backup is kept)")
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configCheckCmd)
	ConfigCmd.AddCommand(configShowCmd)
}

func configPathArg(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return config.ProjectConfigName
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPathArg(args)
	if _, err := os.Stat(path); err == nil && !configForce {
		return errors.WithHint(errors.Newf("%s already exists", path), "pass --force to replace it")
	}
	if err := config.WriteFile(path, config.StarterConfig()); err != nil {
		return err
	}
	pterm.Success.Printf("Wrote %s\n", path)
	return nil
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	result := config.CheckFile(configPathArg(args))

	if display.ShouldOutputJSON(cmd) {
		if err := display.OutputJSON(result); err != nil {
			return err
		}
	} else {
		for _, key := range result.UnknownKeys {
			pterm.Warning.Printf("unknown key: %s\n", key)
		}
		if result.Error != "" {
			pterm.Error.Println(result.Error)
		}
		if result.OK() {
			pterm.Success.Printf("%s is valid\n", result.Path)
		}
	}

	if !result.OK() {
		return errors.Newf("%s has configuration problems", result.Path)
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	shown := *cfg
	if shown.API.Token != "" {
		shown.API.Token = "********"
	}

	format := configFormat
	if display.ShouldOutputJSON(cmd) {
		format = "json"
	}

	switch format {
	case "json":
		return display.OutputJSON(shown)
	case "yaml":
		data, err := yaml.Marshal(shown)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Printf("# pipeline configuration\n%s", data)
	case "toml":
		data, err := toml.Marshal(shown)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Printf("# pipeline configuration\n%s", data)
	default:
		return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", format)
	}
	return nil
}
