package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/c0ld-w4ter/you-fm/internal/aggregator"
	"github.com/c0ld-w4ter/you-fm/internal/briefing"
	"github.com/c0ld-w4ter/you-fm/internal/consolidation"
	"github.com/c0ld-w4ter/you-fm/internal/delivery"
	"github.com/c0ld-w4ter/you-fm/internal/observability"
)

// Aggregator produces the content bundle of a run
type Aggregator interface {
	Aggregate(ctx context.Context, cfg briefing.Config) *briefing.ContentBundle
}

// Consolidator turns a bundle into a script
type Consolidator interface {
	Consolidate(ctx context.Context, bundle *briefing.ContentBundle, cfg briefing.Config) consolidation.Outcome
}

// Synthesizer turns a script into audio
type Synthesizer interface {
	Synthesize(ctx context.Context, script briefing.Script, cfg briefing.Config) (*briefing.AudioArtifact, error)
}

// Deliverer persists audio and returns a reference
type Deliverer interface {
	Deliver(ctx context.Context, artifact *briefing.AudioArtifact, script briefing.Script, dest briefing.Destination) delivery.Outcome
}

// Deps are the stage implementations of an orchestrator
type Deps struct {
	Aggregator   Aggregator
	Consolidator Consolidator
	Synthesizer  Synthesizer
	Deliverer    Deliverer
	Logger       zerolog.Logger
	Clock        func() time.Time
	NewRunID     func() string
}

// Orchestrator runs the briefing pipeline. It holds no per-run state, so one
// orchestrator serves concurrent runs.
type Orchestrator struct {
	deps Deps
}

// New creates an orchestrator
func New(deps Deps) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewRunID == nil {
		deps.NewRunID = observability.NewRunID
	}
	return &Orchestrator{deps: deps}
}

// run is the state of one pipeline execution
type run struct {
	ctx     context.Context
	cfg     briefing.Config
	state   State
	result  *briefing.PipelineResult
	bundle  *briefing.ContentBundle
	metrics *observability.RunMetrics
	observe Observer
	logger  zerolog.Logger
	clock   func() time.Time
	started time.Time // of the current stage
}

// Run executes one briefing. The returned error is non-nil only for an
// invalid config; every other failure is reported in the result.
func (o *Orchestrator) Run(ctx context.Context, cfg briefing.Config) (*briefing.PipelineResult, error) {
	return o.RunObserved(ctx, cfg, nil)
}

// RunObserved executes one briefing and reports every transition to observe
func (o *Orchestrator) RunObserved(ctx context.Context, cfg briefing.Config, observe Observer) (*briefing.PipelineResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid briefing config: %w", err)
	}

	runID := o.deps.NewRunID()
	r := &run{
		ctx:     ctx,
		cfg:     cfg,
		state:   StateAggregating,
		result:  briefing.NewPipelineResult(runID, o.deps.Clock()),
		metrics: observability.NewRunMetrics(runID),
		observe: observe,
		logger:  observability.WithRunID(o.deps.Logger, runID).With().Str("component", "pipeline").Logger(),
		clock:   o.deps.Clock,
	}
	if r.observe == nil {
		r.observe = func(StageEvent) {}
	}

	r.metrics.RecordRunStart()
	r.logger.Info().
		Int("duration_minutes", cfg.DurationMinutes).
		Str("destination", string(cfg.Destination)).
		Msg("Briefing run started")

	for !r.state.Terminal() {
		if err := ctx.Err(); err != nil {
			r.cancel(err)
			break
		}
		switch r.state {
		case StateAggregating:
			r.state = o.aggregate(r)
		case StateConsolidating:
			r.state = o.consolidate(r)
		case StateSynthesizing:
			r.state = o.synthesize(r)
		case StateDelivering:
			r.state = o.deliver(r)
		}
	}

	r.result.Finalize(r.clock())
	r.metrics.RecordRunEnd(string(r.result.Status))
	r.observe(StageEvent{
		RunID:  runID,
		State:  r.state,
		Detail: string(r.result.Status),
		At:     r.clock(),
	})
	r.logger.Info().
		Str("status", string(r.result.Status)).
		Int("errors", len(r.result.Errors)).
		Dur("elapsed", r.result.FinishedAt.Sub(r.result.StartedAt)).
		Msg("Briefing run finished")
	return r.result, nil
}

func (o *Orchestrator) aggregate(r *run) State {
	r.begin(briefing.StageFetch)

	r.bundle = o.deps.Aggregator.Aggregate(r.ctx, r.cfg)
	r.result.Sources = r.bundle.Statuses
	for _, st := range r.bundle.Statuses {
		if st.State == briefing.FetchOK {
			continue
		}
		r.record(briefing.ErrorRecord{
			Stage:   briefing.StageFetch,
			Kind:    st.ErrorKind,
			Source:  st.Source,
			Message: st.Detail,
		})
	}

	status := briefing.StatusOK
	if r.bundle.IsEmpty() {
		status = briefing.StatusDegraded
	}
	r.end(briefing.StageFetch, status, aggregator.Summary(r.bundle.Statuses))
	return StateConsolidating
}

func (o *Orchestrator) consolidate(r *run) State {
	r.begin(briefing.StageConsolidation)

	out := o.deps.Consolidator.Consolidate(r.ctx, r.bundle, r.cfg)
	for _, rec := range out.Errors {
		r.record(rec)
	}
	r.result.Warnings = append(r.result.Warnings, out.Warnings...)

	if strings.TrimSpace(out.Script.Text) == "" {
		r.record(briefing.ErrorRecord{
			Stage:   briefing.StageConsolidation,
			Kind:    briefing.KindAIBackend,
			Message: "consolidation produced no script",
		})
		r.end(briefing.StageConsolidation, briefing.StatusFailed, "no script")
		return StateFailed
	}

	script := out.Script
	r.result.Script = &script
	r.end(briefing.StageConsolidation, out.Status, string(script.Origin))
	return StateSynthesizing
}

func (o *Orchestrator) synthesize(r *run) State {
	r.begin(briefing.StageSynthesis)

	artifact, err := o.deps.Synthesizer.Synthesize(r.ctx, *r.result.Script, r.cfg)
	if err != nil {
		r.record(briefing.RecordFor(briefing.StageSynthesis, "", err, briefing.KindTTSBackend))
		r.end(briefing.StageSynthesis, briefing.StatusFailed, err.Error())
		return StateFailed
	}

	r.result.Audio = artifact
	r.end(briefing.StageSynthesis, briefing.StatusOK, fmt.Sprintf("%.1fs", artifact.DurationSeconds))
	return StateDelivering
}

func (o *Orchestrator) deliver(r *run) State {
	r.begin(briefing.StageDelivery)

	out := o.deps.Deliverer.Deliver(r.ctx, r.result.Audio, *r.result.Script, r.cfg.Destination)
	for _, rec := range out.Errors {
		r.record(rec)
	}
	if out.Status == briefing.StatusFailed || out.Reference == nil {
		r.end(briefing.StageDelivery, briefing.StatusFailed, "no destination could be written")
		return StateFailed
	}

	r.result.AudioReference = out.Reference
	r.end(briefing.StageDelivery, out.Status, out.Reference.Location)
	return StateDone
}

// cancel fails the stage that was about to run
func (r *run) cancel(err error) {
	stage := stageOf[r.state]
	r.record(briefing.ErrorRecord{
		Stage:   stage,
		Kind:    briefing.KindNetwork,
		Message: fmt.Sprintf("run cancelled before %s: %v", stage, err),
	})
	r.result.StageStatus[stage] = briefing.StatusFailed
	r.observe(StageEvent{
		RunID:  r.result.RunID,
		State:  StateFailed,
		Stage:  stage,
		Status: briefing.StatusFailed,
		Detail: "cancelled",
		At:     r.clock(),
	})
	r.logger.Warn().Err(err).Str("stage", string(stage)).Msg("Briefing run cancelled")
	r.state = StateFailed
}

func (r *run) begin(stage briefing.Stage) {
	r.started = r.clock()
	r.metrics.RecordStageStart(string(stage))
	r.observe(StageEvent{
		RunID: r.result.RunID,
		State: r.state,
		Stage: stage,
		At:    r.started,
	})
	r.logger.Debug().Str("stage", string(stage)).Msg("Stage started")
}

func (r *run) end(stage briefing.Stage, status briefing.StageStatus, detail string) {
	now := r.clock()
	elapsed := now.Sub(r.started)
	r.metrics.RecordStageEnd(string(stage), string(status))
	r.result.StageStatus[stage] = status
	r.result.Timings[stage] = elapsed

	r.observe(StageEvent{
		RunID:   r.result.RunID,
		State:   r.state,
		Stage:   stage,
		Status:  status,
		Detail:  detail,
		Elapsed: elapsed,
		At:      now,
	})

	event := r.logger.Info()
	if status != briefing.StatusOK {
		event = r.logger.Warn()
	}
	event.Str("stage", string(stage)).
		Str("status", string(status)).
		Dur("elapsed", elapsed).
		Str("detail", detail).
		Msg("Stage finished")
}

func (r *run) record(rec briefing.ErrorRecord) {
	r.result.Errors = append(r.result.Errors, rec)
	observability.RecordError(string(rec.Stage), string(rec.Kind))
}
