package commands

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/govpipe/artifacts"
	"github.com/teranos/govpipe/display"
	"github.com/teranos/govpipe/entity"
	"github.com/teranos/govpipe/ixgest/pipeline"
	"github.com/teranos/govpipe/logger"
)

// RunCmd runs one batch through the pipeline
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Validate, dry-run or import a batch",
	Long: `Run one batch from a source file through validation, transformation and,
unless --validate-only or --dry-run is given, import into the target API.

Import mode probes the environment's contract first and imports nothing if
any check fails. Records that already exist in the target (same
external_ref) are skipped, so re-running an import is safe.

Artifacts are written under <artifacts dir>/<entity type>/<run id>/:
  probe.json       contract probe report (import only)
  validation.json  per-record validation outcomes
  stats.json       imported / skipped / failed counts with reasons
  audit.json       run audit event with the source hash

Examples:
  pipeline run -e staging -s incidents.csv -t incident --validate-only
  pipeline run -e staging -s complaints.jsonl -t complaint --dry-run
  pipeline run -e prod -s s3::https://s3.amazonaws.com/bucket/collisions.json -t collision`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

var (
	runEnvironment  string
	runSource       string
	runEntityType   string
	runValidateOnly bool
	runDryRun       bool
)

func init() {
	RunCmd.Flags().StringVarP(&runEnvironment, "environment", "e", "", "Target environment (from config)")
	RunCmd.Flags().StringVarP(&runSource, "source", "s", "", "Source file path or URL")
	RunCmd.Flags().StringVarP(&runEntityType, "entity-type", "t", "", "Entity type: incident, complaint or collision")
	RunCmd.Flags().BoolVar(&runValidateOnly, "validate-only", false, "Only validate; write validation and audit artifacts")
	RunCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Validate and transform without calling the API")

	_ = RunCmd.MarkFlagRequired("environment")
	_ = RunCmd.MarkFlagRequired("source")
	_ = RunCmd.MarkFlagRequired("entity-type")
	RunCmd.MarkFlagsMutuallyExclusive("validate-only", "dry-run")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	et, err := entity.ParseImportable(runEntityType)
	if err != nil {
		return err
	}

	mode := pipeline.ModeImport
	switch {
	case runValidateOnly:
		mode = pipeline.ModeValidateOnly
	case runDryRun:
		mode = pipeline.ModeDryRun
	}

	ctx := cmd.Context()
	sink, err := artifacts.NewSinkFromConfig(ctx, cfg.Artifacts)
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		Config: cfg,
		Sink:   sink,
		Logger: logger.ComponentLogger("pipeline"),
	}
	// Only assign a live store; a nil *ledger.Store in the interface would not compare nil
	if store := openLedger(cfg); store != nil {
		defer store.Close()
		deps.Ledger = store
	}

	result, runErr := pipeline.New(deps).Run(ctx, pipeline.RunRequest{
		Source:      runSource,
		EntityType:  et,
		Environment: runEnvironment,
		Mode:        mode,
	})

	if result != nil {
		if display.ShouldOutputJSON(cmd) {
			if err := display.OutputJSON(result); err != nil {
				return err
			}
		} else {
			printRunResult(result, verbosity(cmd))
		}
	}
	return runErr
}

func printRunResult(r *pipeline.RunResult, verbosity int) {
	pterm.DefaultHeader.WithFullWidth().Printf("Run %s", r.RunID)
	pterm.Println()

	if r.Mode == pipeline.ModeDryRun {
		pterm.Warning.Println("DRY RUN: nothing was sent to the API")
	}
	pterm.Info.Printf("Mode: %s  Entity: %s  Environment: %s\n", r.Mode, r.EntityType, r.Environment)
	pterm.Info.Printf("Source hash: %s\n", r.SourceHash)

	if r.Probe != nil && !r.Probe.AllPassed {
		printProbeReport(r.Probe)
		pterm.Info.Printf("Artifacts: %s\n", r.ArtifactDir)
		return
	}
	if r.Probe != nil && logger.ShouldOutput(verbosity, logger.OutputProbeDetail) {
		printProbeReport(r.Probe)
	}

	v := r.Validation
	_ = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Records", "Valid", "Warnings", "Invalid"},
		{strconv.Itoa(v.Total), strconv.Itoa(v.Valid), strconv.Itoa(v.Warnings), strconv.Itoa(v.Invalid)},
	}).Render()
	pterm.Println()

	if s := r.Stats; s != nil {
		verb := "Imported"
		if r.Mode == pipeline.ModeDryRun {
			verb = "Would import"
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{verb, "Skipped", "Failed"},
			{strconv.Itoa(s.Imported), strconv.Itoa(s.Skipped), strconv.Itoa(s.Failed)},
		}).Render()
		pterm.Println()
		printNotes("Failures", s.Failures, verbosity)
		printNotes("Skipped", s.Skips, verbosity)
	}

	pterm.Success.Printf("Artifacts written to %s\n", r.ArtifactDir)
}

// maxNotes limits how many per-record reasons are printed below -vv;
// the artifacts have all of them
const maxNotes = 10

// visibleNotes returns the notes to print and how many were held back
func visibleNotes(notes []pipeline.RecordNote, verbosity int) ([]pipeline.RecordNote, int) {
	if len(notes) <= maxNotes || logger.ShouldOutput(verbosity, logger.OutputRecordDetail) {
		return notes, 0
	}
	return notes[:maxNotes], len(notes) - maxNotes
}

func printNotes(title string, notes []pipeline.RecordNote, verbosity int) {
	if len(notes) == 0 {
		return
	}
	shown, hidden := visibleNotes(notes, verbosity)
	pterm.Info.Printf("%s:\n", title)
	for _, n := range shown {
		ref := ""
		if n.ExternalRef != "" {
			ref = fmt.Sprintf(" [%s]", n.ExternalRef)
		}
		pterm.Printf("  record %d%s: %s\n", n.Index, ref, n.Reason)
	}
	if hidden > 0 {
		pterm.Printf("  ... and %d more (-vv shows all)\n", hidden)
	}
	pterm.Println()
}
