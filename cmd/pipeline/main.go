package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/govpipe/cmd/pipeline/commands"
	"github.com/teranos/govpipe/errors"
	"github.com/teranos/govpipe/logger"
)

var rootCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Contract-checked ingestion and governance analysis",
	Long: `pipeline - Contract-checked batch ingestion and governance analysis.

Loads incidents, complaints and collisions from CSV, JSON, JSON Lines or
YAML, validates and normalizes them, and imports them idempotently into a
target API after probing its contract. Every run writes validation, stats
and audit artifacts.

Available commands:
  run     - Validate, dry-run or import a batch
  probe   - Check an environment's API contract
  analyze - Classify, risk-score and compliance-check entities
  history - List recorded runs
  config  - Create, check and show configuration

Examples:
  pipeline run -e staging -s incidents.csv -t incident --validate-only
  pipeline run -e staging -s incidents.csv -t incident --dry-run
  pipeline run -e staging -s https://example.com/export.json -t complaint
  pipeline probe -e staging
  pipeline analyze -t incident -i incident.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		logJSON, _ := cmd.Flags().GetBool("log-json")
		if err := logger.Initialize(logJSON, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON on stderr")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: pipeline.toml cascade)")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ProbeCmd)
	rootCmd.AddCommand(commands.AnalyzeCmd)
	rootCmd.AddCommand(commands.HistoryCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprint(os.Stderr, pterm.Error.Sprintln(err.Error()))
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprint(os.Stderr, pterm.Info.Sprintln(hint))
		}
		os.Exit(1)
	}
}
