package commands

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/govpipe/artifacts"
	"github.com/teranos/govpipe/display"
	"github.com/teranos/govpipe/errors"
	"github.com/teranos/govpipe/internal/httpclient"
	"github.com/teranos/govpipe/ixgest/audit"
	"github.com/teranos/govpipe/ixgest/pipeline"
	"github.com/teranos/govpipe/ixgest/probe"
	"github.com/teranos/govpipe/logger"
)

// probeArtifactGroup is the artifact directory for standalone probes
const probeArtifactGroup = "probe"

// ProbeCmd checks an environment's contract without importing anything
var ProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check an environment's API contract",
	Long: `Probe the health, readiness and list endpoints of an environment and
report each check. The report is written to <artifacts dir>/probe/<run id>/probe.json.

Exits non-zero when any check fails.

Examples:
  pipeline probe -e staging
  pipeline probe -e staging --json`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

var probeEnvironment string

func init() {
	ProbeCmd.Flags().StringVarP(&probeEnvironment, "environment", "e", "", "Target environment (from config)")
	_ = ProbeCmd.MarkFlagRequired("environment")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	env, err := cfg.Environment(probeEnvironment)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sink, err := artifacts.NewSinkFromConfig(ctx, cfg.Artifacts)
	if err != nil {
		return err
	}

	report := probe.New(httpclient.ForEnvironment(cfg, env), logger.ComponentLogger("probe")).Probe(ctx, env)

	key := artifacts.Key(probeArtifactGroup, audit.NewRunID(), artifacts.ProbeFile)
	if err := artifacts.PutJSON(ctx, sink, key, report); err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		if err := display.OutputJSON(report); err != nil {
			return err
		}
	} else {
		printProbeReport(report)
		pterm.Info.Printf("Report: %s\n", sink.Location(key))
	}

	if !report.AllPassed {
		return errors.Wrapf(pipeline.ErrProbeFailed, "environment %s", env.Name)
	}
	return nil
}

func printProbeReport(r *probe.Report) {
	data := pterm.TableData{{"Endpoint", "Method", "Expected", "Status", "Latency", "Result"}}
	for _, res := range r.Results {
		result := pterm.Green("ok")
		if !res.Success {
			result = pterm.Red(res.Error)
		}
		data = append(data, []string{
			res.Endpoint,
			res.Method,
			strconv.Itoa(res.ExpectedStatus),
			strconv.Itoa(res.StatusCode),
			strconv.FormatInt(res.LatencyMS, 10) + "ms",
			result,
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	pterm.Println()

	if r.APIVersion != "" {
		pterm.Info.Printf("API version: %s\n", r.APIVersion)
	}
	if r.AllPassed {
		pterm.Success.Printf("Contract probe passed for %s (%s)\n", r.Environment, r.BaseURL)
	} else {
		pterm.Error.Printf("Contract probe failed for %s: %d of %d checks failed\n", r.Environment, len(r.Failed()), len(r.Results))
	}
}
