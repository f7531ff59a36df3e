package commands

import (
	"os"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/govpipe/display"
	"github.com/teranos/govpipe/errors"
	"github.com/teranos/govpipe/ledger"
	"github.com/teranos/govpipe/logger"
)

// HistoryCmd lists runs recorded in the local ledger
var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Long: `List pipeline runs recorded in the local SQLite ledger, newest first.

The ledger is an index of audit artifacts. Enable it with:

  [ledger]
  enabled = true
  path = "pipeline.db"

Examples:
  pipeline history
  pipeline history -t incident -e staging --limit 10
  pipeline history --totals --since 168h`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyEntityType  string
	historyEnvironment string
	historyMode        string
	historyLimit       int
	historyTotals      bool
	historySince       time.Duration
)

func init() {
	HistoryCmd.Flags().StringVarP(&historyEntityType, "entity-type", "t", "", "Only runs of this entity type")
	HistoryCmd.Flags().StringVarP(&historyEnvironment, "environment", "e", "", "Only runs against this environment")
	HistoryCmd.Flags().StringVar(&historyMode, "mode", "", "Only runs in this mode (validate-only, dry-run, import)")
	HistoryCmd.Flags().IntVar(&historyLimit, "limit", ledger.DefaultListLimit, "Maximum runs to list")
	HistoryCmd.Flags().BoolVar(&historyTotals, "totals", false, "Show record totals instead of individual runs")
	HistoryCmd.Flags().DurationVar(&historySince, "since", 30*24*time.Hour, "Window for --totals")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.Ledger.Path); err != nil {
		return errors.WithHint(errors.Wrapf(errors.ErrNotFound, "ledger %s", cfg.Ledger.Path),
			"enable [ledger] in pipeline.toml and run an import first")
	}

	store, err := ledger.Open(cfg.Ledger.Path, logger.ComponentLogger("ledger"))
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if historyTotals {
		since := time.Now().Add(-historySince)
		stats, err := store.Stats(ctx, since)
		if err != nil {
			return err
		}
		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(stats)
		}
		pterm.Info.Printf("Runs since %s\n", since.UTC().Format(time.RFC3339))
		return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{"Runs", "Records", "Imported", "Skipped", "Failed"},
			{strconv.Itoa(stats.Runs), strconv.Itoa(stats.Records), strconv.Itoa(stats.Imported), strconv.Itoa(stats.Skipped), strconv.Itoa(stats.Failed)},
		}).Render()
	}

	runs, err := store.List(ctx, ledger.Filter{
		EntityType:  historyEntityType,
		Environment: historyEnvironment,
		Mode:        historyMode,
		Limit:       historyLimit,
	})
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(runs)
	}
	if len(runs) == 0 {
		pterm.Info.Println("No runs recorded")
		return nil
	}

	data := pterm.TableData{{"Started", "Run", "Entity", "Env", "Mode", "Records", "Imported", "Skipped", "Failed"}}
	for _, r := range runs {
		data = append(data, []string{
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.RunID,
			r.EntityType,
			r.Environment,
			r.Mode,
			strconv.Itoa(r.RecordCount),
			strconv.Itoa(r.Imported),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
