// Package commands implements the pipeline CLI subcommands.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/govpipe/config"
	"github.com/teranos/govpipe/errors"
	"github.com/teranos/govpipe/ledger"
	"github.com/teranos/govpipe/logger"
)

// loadConfig loads the file named by --config, or the default cascade
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFromFile(path)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.WithHint(err, "run 'pipeline config check' to locate the problem")
	}
	return cfg, nil
}

// openLedger opens the run ledger when it is enabled. A ledger that
// cannot be opened is reported and skipped.
func openLedger(cfg *config.Config) *ledger.Store {
	if !cfg.Ledger.Enabled {
		return nil
	}
	store, err := ledger.Open(cfg.Ledger.Path, logger.ComponentLogger("ledger"))
	if err != nil {
		logger.Warnw("Run ledger unavailable, continuing without it",
			logger.FieldPath, cfg.Ledger.Path,
			logger.FieldError, err,
		)
		return nil
	}
	return store
}

// verbosity returns the -v count from the root command, 0 when absent
func verbosity(cmd *cobra.Command) int {
	v, err := cmd.Flags().GetCount("verbose")
	if err != nil {
		return 0
	}
	return v
}
