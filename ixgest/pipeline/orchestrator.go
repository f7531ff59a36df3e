// Package pipeline runs one batch through load, validate, transform and
// import, and writes the run's artifacts.
//
// A run is synchronous and single-threaded. Per-record problems are
// counted and reported; only source, probe, configuration and artifact
// failures abort a run.
package pipeline

import (
	"context"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/govpipe/artifacts"
	"github.com/teranos/govpipe/config"
	"github.com/teranos/govpipe/db"
	"github.com/teranos/govpipe/entity"
	"github.com/teranos/govpipe/errors"
	"github.com/teranos/govpipe/internal/httpclient"
	"github.com/teranos/govpipe/ixgest/apiclient"
	"github.com/teranos/govpipe/ixgest/audit"
	"github.com/teranos/govpipe/ixgest/probe"
	"github.com/teranos/govpipe/ixgest/source"
	"github.com/teranos/govpipe/ixgest/transform"
	"github.com/teranos/govpipe/ixgest/validate"
	"github.com/teranos/govpipe/ledger"
	"github.com/teranos/govpipe/logger"
)

// Mode selects how far a run goes
type Mode string

const (
	ModeValidateOnly Mode = "validate-only"
	ModeDryRun       Mode = "dry-run"
	ModeImport       Mode = "import"
)

// Fatal run errors
var (
	ErrProbeFailed = errors.New("contract probe failed")
	ErrUnknownMode = errors.New("unknown run mode")
)

// ParseMode resolves a mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeValidateOnly, ModeDryRun, ModeImport:
		return m, nil
	}
	return "", errors.WithHint(errors.Wrapf(ErrUnknownMode, "%q", s), "use validate-only, dry-run or import")
}

// Prober checks an environment's contract before import
type Prober interface {
	Probe(ctx context.Context, env config.Environment) *probe.Report
}

// Importer creates one record in the target API. A conflict on
// external_ref is reported as errors.ErrConflict.
type Importer interface {
	Create(ctx context.Context, rec *entity.Record) error
}

// SourceLoader reads a batch
type SourceLoader interface {
	Load(ctx context.Context, location string, entityType entity.Type) (*source.Source, error)
}

// Ledger indexes completed runs
type Ledger interface {
	Record(ctx context.Context, run ledger.Run) error
	LastImport(ctx context.Context, sourceHash, environment, entityType string) (*ledger.Run, error)
}

// Deps are the collaborators of an Orchestrator. Config and Sink are
// required; everything else has a default built from Config.
type Deps struct {
	Config      *config.Config
	Sink        artifacts.Sink
	Loader      SourceLoader
	NewProber   func(env config.Environment) Prober
	NewImporter func(env config.Environment) Importer
	Ledger      Ledger // optional
	Clock       func() time.Time
	NewRunID    func() string
	Logger      *zap.SugaredLogger
}

// RunRequest describes one batch
type RunRequest struct {
	Source      string
	EntityType  entity.Type
	Environment string
	Mode        Mode
}

// RunResult is everything a run produced
type RunResult struct {
	RunID       string           `json:"run_id"`
	Mode        Mode             `json:"mode"`
	EntityType  entity.Type      `json:"entity_type"`
	Environment string           `json:"environment"`
	SourceHash  string           `json:"source_hash"`
	ArtifactDir string           `json:"artifact_dir"`
	Probe       *probe.Report    `json:"probe,omitempty"`
	Validation  validate.Summary `json:"validation"`
	Stats       *Stats           `json:"stats,omitempty"`
	Audit       *audit.Event     `json:"audit,omitempty"`
}

// Orchestrator runs batches
type Orchestrator struct {
	cfg         *config.Config
	sink        artifacts.Sink
	loader      SourceLoader
	newProber   func(env config.Environment) Prober
	newImporter func(env config.Environment) Importer
	ledger      Ledger
	clock       func() time.Time
	newRunID    func() string
	logger      *zap.SugaredLogger
}

// New creates an Orchestrator
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		cfg:         deps.Config,
		sink:        deps.Sink,
		loader:      deps.Loader,
		newProber:   deps.NewProber,
		newImporter: deps.NewImporter,
		ledger:      deps.Ledger,
		clock:       deps.Clock,
		newRunID:    deps.NewRunID,
		logger:      logger.OrNop(deps.Logger),
	}
	if o.loader == nil {
		o.loader = source.NewLoader(o.logger.Named("source"))
	}
	if o.newProber == nil {
		o.newProber = func(env config.Environment) Prober {
			return probe.New(httpclient.ForEnvironment(o.cfg, env), o.logger.Named("probe"))
		}
	}
	if o.newImporter == nil {
		o.newImporter = func(env config.Environment) Importer {
			return apiclient.New(httpclient.ForEnvironment(o.cfg, env), env,
				apiclient.OptionsFromConfig(o.cfg), o.logger.Named("api"))
		}
	}
	if o.clock == nil {
		o.clock = func() time.Time { return time.Now().UTC() }
	}
	if o.newRunID == nil {
		o.newRunID = audit.NewRunID
	}
	return o
}

// Run executes one batch. The returned result is non-nil whenever any
// artifact was written, including when ErrProbeFailed is returned.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if !req.EntityType.Importable() {
		return nil, errors.Wrapf(entity.ErrNotImportable, "%q", req.EntityType)
	}
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}
	req.Mode = mode
	env, err := o.cfg.Environment(req.Environment)
	if err != nil {
		return nil, err
	}
	started := o.clock()

	src, err := o.loader.Load(ctx, req.Source, req.EntityType)
	if err != nil {
		return nil, err
	}
	sourceHash, err := audit.SourceHash(src.Records)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash source")
	}

	runID := o.newRunID()
	if req.Mode != ModeImport {
		runID = audit.DeterministicRunID(sourceHash, string(req.EntityType), env.Name, string(req.Mode))
	}
	ctx = logger.WithRunID(ctx, runID)
	log := o.logger.With(
		logger.FieldRunID, runID,
		logger.FieldEntityType, req.EntityType,
		logger.FieldEnvironment, env.Name,
		logger.FieldMode, req.Mode,
	)
	log.Infow("Run started",
		logger.FieldSource, req.Source,
		logger.FieldSourceHash, sourceHash,
		logger.FieldCount, len(src.Records),
	)

	result := &RunResult{
		RunID:       runID,
		Mode:        req.Mode,
		EntityType:  req.EntityType,
		Environment: env.Name,
		SourceHash:  sourceHash,
		ArtifactDir: o.sink.Location(path.Join(string(req.EntityType), runID)),
	}
	put := func(name string, v any) error {
		return artifacts.PutJSON(ctx, o.sink, artifacts.Key(string(req.EntityType), runID, name), v)
	}

	if req.Mode == ModeImport {
		report := o.newProber(env).Probe(ctx, env)
		result.Probe = report
		if err := put(artifacts.ProbeFile, report); err != nil {
			return result, err
		}
		if !report.AllPassed {
			log.Warnw("Probe failed, nothing imported", logger.FieldCount, len(report.Failed()))
			return result, errors.WithHintf(
				errors.Wrapf(ErrProbeFailed, "environment %s", env.Name),
				"see %s for the failing endpoints", o.sink.Location(artifacts.Key(string(req.EntityType), runID, artifacts.ProbeFile)))
		}
		o.notePreviousImport(ctx, log, sourceHash, env.Name, req.EntityType)
	}

	mapping := entity.NewFieldMapping(req.EntityType, o.cfg.FieldMapping(string(req.EntityType)))
	outcomes := validate.New(req.EntityType, mapping).ValidateAll(src.Records)
	result.Validation = validate.Summarize(outcomes)
	if err := put(artifacts.ValidationFile, newValidationReport(string(req.EntityType), runID, outcomes)); err != nil {
		return result, err
	}

	ev := &audit.Event{
		RunID:       runID,
		Environment: env.Name,
		EntityType:  string(req.EntityType),
		Mode:        string(req.Mode),
		Source:      req.Source,
		SourceHash:  sourceHash,
		RecordCount: len(src.Records),
		Timestamp:   started,
	}

	if req.Mode == ModeValidateOnly {
		ev.Failed = result.Validation.Invalid
	} else {
		var importer Importer
		if req.Mode == ModeImport {
			importer = o.newImporter(env)
		}
		stats, err := o.process(ctx, log, runID, req, mapping, src.Records, outcomes, importer)
		if err != nil {
			return result, err
		}
		result.Stats = stats
		if err := put(artifacts.StatsFile, stats); err != nil {
			return result, err
		}
		ev.Imported, ev.Skipped, ev.Failed = stats.Imported, stats.Skipped, stats.Failed
	}

	if err := put(artifacts.AuditFile, ev); err != nil {
		return result, err
	}
	result.Audit = ev
	o.recordLedger(ctx, log, *ev, result.ArtifactDir)

	log.Infow("Run finished",
		logger.FieldImported, ev.Imported,
		logger.FieldSkipped, ev.Skipped,
		logger.FieldFailed, ev.Failed,
		logger.FieldDurationMS, o.clock().Sub(started).Milliseconds(),
	)
	return result, nil
}

// process transforms importable records and, with an importer, creates
// them. A nil importer counts would-be imports without any network call.
func (o *Orchestrator) process(
	ctx context.Context,
	log *zap.SugaredLogger,
	runID string,
	req RunRequest,
	mapping entity.FieldMapping,
	records []entity.SourceRecord,
	outcomes []validate.Outcome,
	importer Importer,
) (*Stats, error) {
	stats := &Stats{
		EntityType: string(req.EntityType),
		RunID:      runID,
		Mode:       req.Mode,
		Failures:   []RecordNote{},
		Skips:      []RecordNote{},
	}
	tr := transform.New(req.EntityType, mapping)
	firstSeen := make(map[string]int)

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "run interrupted at record %d", rec.Index)
		}
		rlog := log.With(logger.FieldRecordIndex, rec.Index)

		if !outcomes[i].Importable() {
			ref := entity.ExternalRefOf(mapping.Resolve(rec.Fields))
			stats.fail(rec.Index, ref, "validation failed: "+strings.Join(outcomes[i].Reasons, "; "))
			continue
		}

		out, err := tr.Transform(rec)
		if err != nil {
			var terr *transform.TransformError
			if errors.As(err, &terr) {
				stats.fail(rec.Index, terr.ExternalRef, "transform failed: "+terr.Field+": "+terr.Reason)
			} else {
				stats.fail(rec.Index, "", "transform failed: "+err.Error())
			}
			rlog.Debugw("Transform failed", logger.FieldError, err)
			continue
		}

		if out.ExternalRef != "" {
			if first, dup := firstSeen[out.ExternalRef]; dup {
				stats.skip(rec.Index, out.ExternalRef, "duplicate external_ref in source (first at record "+strconv.Itoa(first)+")")
				continue
			}
			firstSeen[out.ExternalRef] = rec.Index
		}

		if importer == nil {
			stats.Imported++
			continue
		}

		err = importer.Create(ctx, out)
		switch {
		case err == nil:
			stats.Imported++
		case errors.Is(err, errors.ErrConflict):
			stats.skip(rec.Index, out.ExternalRef, "already exists in target")
		default:
			stats.fail(rec.Index, out.ExternalRef, "create failed: "+err.Error())
			rlog.Warnw("Create failed",
				logger.FieldExternalRef, out.ExternalRef,
				logger.FieldError, err,
			)
		}
	}
	return stats, nil
}

// notePreviousImport logs when the ledger has seen this exact source
// imported before. The API remains the authority on duplicates.
func (o *Orchestrator) notePreviousImport(ctx context.Context, log *zap.SugaredLogger, sourceHash, env string, et entity.Type) {
	if o.ledger == nil {
		return
	}
	prev, err := o.ledger.LastImport(ctx, sourceHash, env, string(et))
	if err != nil {
		log.Warnw("Ledger lookup failed", logger.FieldError, err)
		return
	}
	if prev != nil {
		log.Infow("Source was imported before; existing records will be skipped",
			"previous_run_id", prev.RunID,
			"previous_imported", prev.Imported,
		)
	}
}

// recordLedger indexes the run; the audit artifact is already written,
// so a ledger failure is only logged
func (o *Orchestrator) recordLedger(ctx context.Context, log *zap.SugaredLogger, ev audit.Event, artifactDir string) {
	if o.ledger == nil {
		return
	}
	err := o.ledger.Record(ctx, ledger.FromEvent(ev, artifactDir))
	switch {
	case err == nil:
	case db.IsDatabaseClosed(err):
		log.Warnw("Run ledger closed before the run was recorded", logger.FieldError, err)
	default:
		log.Warnw("Failed to record run in ledger", logger.FieldError, err)
	}
}
