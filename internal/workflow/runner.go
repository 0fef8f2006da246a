package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/catalog"
	"github.com/tiangong-ai/greenlit/internal/evidence"
	"github.com/tiangong-ai/greenlit/internal/log"
	"github.com/tiangong-ai/greenlit/internal/pubsub"
	"github.com/tiangong-ai/greenlit/internal/research"
	"github.com/tiangong-ai/greenlit/internal/tracing"
)

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunPlanned            RunStatus = "planned"
	RunRunning            RunStatus = "running"
	RunCompleted          RunStatus = "completed"
	RunPartiallyCompleted RunStatus = "partially_completed"
	RunAborted            RunStatus = "aborted"
)

// StageResult is the recorded outcome of one stage.
type StageResult struct {
	Name        string          `json:"name"`
	Capability  string          `json:"capability"`
	Status      StageStatus     `json:"status"`
	SourceID    string          `json:"source_id,omitempty"`
	Cached      bool            `json:"cached,omitempty"`
	Error       string          `json:"error,omitempty"`
	ErrorKind   string          `json:"error_kind,omitempty"`
	Remediation string          `json:"remediation,omitempty"`
	Payload     json.RawMessage `json:"-"`
}

// Artifacts summarizes a finished run and where its outputs landed.
type Artifacts struct {
	RunID          string        `json:"run_id"`
	Profile        string        `json:"profile"`
	Topic          string        `json:"topic"`
	Status         RunStatus     `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Stages         []StageResult `json:"stages"`
	RunDir         string        `json:"run_dir,omitempty"`
	CheckpointPath string        `json:"checkpoint_path,omitempty"`
	ReportPath     string        `json:"report_path,omitempty"`
}

// Request describes one run.
type Request struct {
	Profile *Profile
	Topic   string
	// Vars seeds extra template variables (location, custom bindings).
	Vars map[string]string
}

// Runner executes profiles against the research services. Stages run
// strictly in order; there is no parallelism to reason about, which keeps
// checkpoint ordering equal to stage ordering.
type Runner struct {
	services *research.Services
	runsDir  string
	broker   *pubsub.Broker[CheckpointRecord]
	tracer   trace.Tracer
}

// NewRunner builds a runner writing run directories under runsDir.
func NewRunner(services *research.Services, runsDir string, tp *tracing.Provider) *Runner {
	return &Runner{
		services: services,
		runsDir:  runsDir,
		broker:   pubsub.NewBroker[CheckpointRecord](),
		tracer:   tp.Tracer(),
	}
}

// Events exposes the progress broker for subscribers (CLI progress output).
func (r *Runner) Events() *pubsub.Broker[CheckpointRecord] { return r.broker }

// Close shuts the progress broker down.
func (r *Runner) Close() { r.broker.Close() }

// Run executes the profile. The returned Artifacts always reflect how far
// the run got, including aborted runs; the error is non-nil only for aborts
// and pre-flight configuration failures.
func (r *Runner) Run(ctx context.Context, req Request) (*Artifacts, error) {
	if req.Profile == nil {
		return nil, &ConfigError{Reason: "no profile"}
	}
	if err := req.Profile.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Topic) == "" {
		return nil, &ConfigError{Profile: req.Profile.Slug, Reason: "topic is required"}
	}

	runID := uuid.NewString()
	art := &Artifacts{
		RunID:     runID,
		Profile:   req.Profile.Slug,
		Topic:     req.Topic,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}

	ctx, span := r.tracer.Start(ctx, tracing.SpanWorkflowRun, trace.WithAttributes(
		attribute.String(tracing.AttrRunID, runID),
		attribute.String(tracing.AttrProfile, req.Profile.Slug),
		attribute.String(tracing.AttrTopic, req.Topic),
	))
	defer span.End()

	dryRun := r.services.Context().DryRun

	var cp *CheckpointWriter
	if !dryRun {
		runDir := filepath.Join(r.runsDir, fmt.Sprintf("%s-%s", req.Profile.Slug, runID[:8]))
		for _, sub := range []string{"acquisition", "processed", "logs"} {
			if err := os.MkdirAll(filepath.Join(runDir, sub), 0750); err != nil {
				return nil, fmt.Errorf("creating run directory: %w", err)
			}
		}
		art.RunDir = runDir
		art.CheckpointPath = filepath.Join(runDir, "logs", "checkpoints.jsonl")

		var err error
		cp, err = NewCheckpointWriter(art.CheckpointPath)
		if err != nil {
			return nil, err
		}
		defer cp.Close()
	}

	vars := r.seedVars(req)
	ev := &runEvidence{}
	aborted := false
	var abortErr error

	for _, stage := range req.Profile.Stages {
		result, err := r.runStage(ctx, req.Profile, stage, vars, ev, dryRun)
		art.Stages = append(art.Stages, result)
		r.record(cp, runID, stage, result)
		if !dryRun && len(result.Payload) > 0 {
			writeStagePayload(art.RunDir, stage.Name, result.Payload)
		}

		if err != nil {
			aborted = true
			abortErr = err
			break
		}
		publishBindings(vars, stage.Name, result, ev, dryRun)
	}

	art.FinishedAt = time.Now().UTC()
	art.Status = terminalStatus(art.Stages, aborted, dryRun)
	log.Info(log.CatWorkflow, "run finished",
		"run_id", runID, "profile", req.Profile.Slug, "status", art.Status)
	r.broker.Publish(pubsub.RunFinished, CheckpointRecord{RunID: runID, Status: StageStatus(art.Status)})

	if !dryRun && !aborted {
		reportPath := filepath.Join(art.RunDir, "report.md")
		if err := os.WriteFile(reportPath, []byte(RenderReport(art, ev)), 0600); err != nil {
			log.ErrorErr(log.CatWorkflow, "writing report", err, "run_id", runID)
		} else {
			art.ReportPath = reportPath
		}
	}
	if !dryRun {
		writeRunFiles(art, ev)
	}
	if aborted {
		return art, abortErr
	}
	return art, nil
}

func (r *Runner) seedVars(req Request) map[string]string {
	vars := map[string]string{
		"topic":      req.Topic,
		"topic_slug": Slugify(req.Topic),
	}
	if _, ok := req.Vars["location"]; !ok {
		vars["location"] = "DE"
	}
	for k, v := range req.Vars {
		vars[k] = v
	}
	// Pre-acquisition defaults so early chart or synthesis stages still
	// template cleanly.
	vars["evidence.series"] = "[]"
	vars["evidence.digest"] = "no evidence collected yet"
	return vars
}

// runStage executes one stage. The returned error is non-nil only when the
// run must abort; degraded outcomes are folded into the StageResult.
func (r *Runner) runStage(ctx context.Context, profile *Profile, stage Stage, vars map[string]string, ev *runEvidence, dryRun bool) (StageResult, error) {
	result := StageResult{Name: stage.Name, Capability: stage.Capability}

	ctx, span := r.tracer.Start(ctx, tracing.SpanStage, trace.WithAttributes(
		attribute.String(tracing.AttrStage, stage.Name),
		attribute.String(tracing.AttrCapability, stage.Capability),
	))
	defer span.End()

	r.broker.Publish(pubsub.StageStarted, CheckpointRecord{Stage: stage.Name, Capability: stage.Capability})
	log.Info(log.CatWorkflow, "stage starting", "stage", stage.Name, "capability", stage.Capability)

	params, err := ExpandParams(profile.Slug, stage.Name, stage.Params, vars)
	if err != nil {
		// Unresolved placeholders are configuration failures and always
		// abort, regardless of the stage's fallback policy.
		result.Status = StageFailed
		result.Error = err.Error()
		return result, err
	}

	services := r.services
	if len(stage.Sources) > 0 {
		services = r.services.WithContext(r.services.Context().WithSources(stage.Sources...))
	}

	out, callErr := services.Call(ctx, catalog.Capability(stage.Capability), adapter.Params(params))

	switch {
	case callErr == nil && out.Planned:
		result.Status = StagePlanned
		result.SourceID = out.SourceID
		result.Payload = out.Payload
		return result, nil

	case callErr == nil && !out.NoSource:
		result.Status = StageCompleted
		result.SourceID = out.SourceID
		result.Cached = out.Cached
		result.Payload = out.Payload
		ev.absorb(catalog.Capability(stage.Capability), out.Payload)
		return result, nil

	case callErr == nil && out.NoSource:
		cause := fmt.Errorf("no enabled source for %s", stage.Capability)
		result.Remediation = out.Remediation
		return r.degrade(ctx, stage, params, result, ev, cause, "no_enabled_source")

	default:
		result.Remediation = adapter.RemediationOf(callErr)
		return r.degrade(ctx, stage, params, result, ev,
			callErr, string(adapter.KindOf(callErr)))
	}
}

// degrade applies the stage's fallback policy to a failure or a no-source
// outcome.
func (r *Runner) degrade(ctx context.Context, stage Stage, params map[string]string, result StageResult, ev *runEvidence, cause error, kind string) (StageResult, error) {
	result.Error = cause.Error()
	result.ErrorKind = kind

	switch stage.Fallback {
	case FallbackUseCached:
		if out, ok := r.services.StalePayload(ctx, catalog.Capability(stage.Capability), adapter.Params(params)); ok {
			result.Status = StageCached
			result.SourceID = out.SourceID
			result.Cached = true
			result.Payload = out.Payload
			ev.absorb(catalog.Capability(stage.Capability), out.Payload)
			log.Warn(log.CatWorkflow, "stage degraded to cached payload",
				"stage", stage.Name, "source", out.SourceID, "cause", kind)
			return result, nil
		}
		fallthrough
	case FallbackSkip:
		result.Status = StageSkipped
		log.Warn(log.CatWorkflow, "stage skipped",
			"stage", stage.Name, "cause", kind, "error", cause)
		return result, nil
	default:
		result.Status = StageFailed
		log.ErrorErr(log.CatWorkflow, "stage aborted run", cause,
			"stage", stage.Name, "kind", kind)
		return result, cause
	}
}

func (r *Runner) record(cp *CheckpointWriter, runID string, stage Stage, result StageResult) {
	rec := CheckpointRecord{
		RunID:       runID,
		Stage:       stage.Name,
		Capability:  stage.Capability,
		Status:      result.Status,
		SourceID:    result.SourceID,
		Cached:      result.Cached,
		Error:       result.Error,
		ErrorKind:   result.ErrorKind,
		Remediation: result.Remediation,
		Payload:     result.Payload,
	}
	if cp != nil {
		if err := cp.Append(rec); err != nil {
			log.ErrorErr(log.CatWorkflow, "checkpoint write failed", err, "stage", stage.Name)
		}
	}
	r.broker.Publish(pubsub.StageFinished, rec)
}

// writeStagePayload persists a stage's raw payload under acquisition/.
// Failures are logged, not fatal; the payload is still in the checkpoint.
func writeStagePayload(runDir, stageName string, payload json.RawMessage) {
	path := filepath.Join(runDir, "acquisition", stageName+".json")
	if err := os.WriteFile(path, payload, 0600); err != nil {
		log.ErrorErr(log.CatWorkflow, "writing stage payload", err, "stage", stageName)
	}
}

// writeRunFiles serializes the consolidated evidence and the run artifacts
// into the run directory.
func writeRunFiles(art *Artifacts, ev *runEvidence) {
	if data, err := json.MarshalIndent(ev, "", "  "); err == nil {
		evPath := filepath.Join(art.RunDir, "processed", "evidence.json")
		if err := os.WriteFile(evPath, data, 0600); err != nil {
			log.ErrorErr(log.CatWorkflow, "writing evidence", err, "run_id", art.RunID)
		}
	}
	if data, err := json.MarshalIndent(art, "", "  "); err == nil {
		artPath := filepath.Join(art.RunDir, "artifacts.json")
		if err := os.WriteFile(artPath, data, 0600); err != nil {
			log.ErrorErr(log.CatWorkflow, "writing artifacts", err, "run_id", art.RunID)
		}
	}
}

// publishBindings refreshes template variables after a stage so later stages
// can reference its output.
func publishBindings(vars map[string]string, stageName string, result StageResult, ev *runEvidence, dryRun bool) {
	if dryRun {
		vars[stageName+".output"] = "[]"
		return
	}
	if len(result.Payload) > 0 {
		vars[stageName+".output"] = string(result.Payload)
	}
	vars["evidence.series"] = ev.seriesJSON()
	vars["evidence.digest"] = ev.digest()
}

func terminalStatus(stages []StageResult, aborted, dryRun bool) RunStatus {
	if aborted {
		return RunAborted
	}
	if dryRun {
		return RunPlanned
	}
	degraded := false
	for _, st := range stages {
		if st.Status == StageSkipped || st.Status == StageCached {
			degraded = true
		}
	}
	if degraded {
		return RunPartiallyCompleted
	}
	return RunCompleted
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a topic and collapses runs of non-alphanumerics into
// single hyphens, matching the topic form code search expects.
func Slugify(s string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}

// runEvidence accumulates typed payloads across stages for consolidation,
// the chart series, and the report.
type runEvidence struct {
	Goals     []evidence.GoalMatch     `json:"goals,omitempty"`
	Repos     []evidence.Repository    `json:"repositories,omitempty"`
	Papers    []evidence.Paper         `json:"papers,omitempty"`
	Carbon    *evidence.CarbonSnapshot `json:"carbon,omitempty"`
	Chart     *evidence.ChartRef       `json:"chart,omitempty"`
	Synthesis *evidence.Synthesis      `json:"synthesis,omitempty"`
}

func (ev *runEvidence) absorb(capability catalog.Capability, payload json.RawMessage) {
	if len(payload) == 0 {
		return
	}
	switch capability {
	case catalog.CapTaxonomyMap:
		_ = json.Unmarshal(payload, &ev.Goals)
	case catalog.CapCodeSearch:
		_ = json.Unmarshal(payload, &ev.Repos)
	case catalog.CapLiteratureSearch:
		_ = json.Unmarshal(payload, &ev.Papers)
	case catalog.CapCarbonIntensity:
		var snap evidence.CarbonSnapshot
		if json.Unmarshal(payload, &snap) == nil {
			ev.Carbon = &snap
		}
	case catalog.CapChartRender:
		var chart evidence.ChartRef
		if json.Unmarshal(payload, &chart) == nil {
			ev.Chart = &chart
		}
	case catalog.CapSynthesis:
		var syn evidence.Synthesis
		if json.Unmarshal(payload, &syn) == nil {
			ev.Synthesis = &syn
		}
	}
}

// seriesJSON renders the evidence volume as a chart series.
func (ev *runEvidence) seriesJSON() string {
	series := []evidence.SeriesPoint{
		{Category: "goals", Value: float64(len(ev.Goals))},
		{Category: "repositories", Value: float64(len(ev.Repos))},
		{Category: "papers", Value: float64(len(ev.Papers))},
	}
	data, _ := json.Marshal(series)
	return string(data)
}

// digest renders a compact text summary of the evidence for synthesis
// prompts.
func (ev *runEvidence) digest() string {
	var sb strings.Builder
	if len(ev.Goals) > 0 {
		sb.WriteString("Goals: ")
		for i, g := range ev.Goals {
			if i > 0 {
				sb.WriteString("; ")
			}
			fmt.Fprintf(&sb, "SDG %s %s", g.Code, g.Title)
		}
		sb.WriteString(". ")
	}
	if len(ev.Repos) > 0 {
		fmt.Fprintf(&sb, "%d repositories, top: %s (%d stars). ",
			len(ev.Repos), ev.Repos[0].FullName, ev.Repos[0].Stars)
	}
	if len(ev.Papers) > 0 {
		fmt.Fprintf(&sb, "%d papers, e.g. %q", len(ev.Papers), ev.Papers[0].Title)
		if ev.Papers[0].Year > 0 {
			fmt.Fprintf(&sb, " (%d)", ev.Papers[0].Year)
		}
		sb.WriteString(". ")
	}
	if ev.Carbon != nil {
		fmt.Fprintf(&sb, "Grid intensity in %s: %.0f %s. ",
			ev.Carbon.Location, ev.Carbon.Intensity, ev.Carbon.Units)
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "no evidence collected yet"
	}
	return out
}
