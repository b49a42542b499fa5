package briefing

import (
	"encoding/json"
	"time"
)

// ScriptOrigin records which path produced a script
type ScriptOrigin string

const (
	OriginAI       ScriptOrigin = "ai"
	OriginFallback ScriptOrigin = "fallback"
	OriginEmpty    ScriptOrigin = "empty"
)

// Script is the finished spoken-word text of a briefing
type Script struct {
	Text                   string       `json:"text"`
	Words                  int          `json:"words"`
	EstimatedSpokenSeconds float64      `json:"estimated_spoken_seconds"`
	TargetSeconds          float64      `json:"target_seconds"`
	Origin                 ScriptOrigin `json:"origin"`
}

// AudioFormat describes the audio produced by the synthesis stage
type AudioFormat struct {
	Codec      string `json:"codec"`
	Container  string `json:"container"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
	Bitrate    int    `json:"bitrate"`
}

// BriefingFormat is the one format every run produces
var BriefingFormat = AudioFormat{
	Codec:      "pcm_s16le",
	Container:  "wav",
	SampleRate: 24000,
	Channels:   1,
	BitDepth:   16,
	Bitrate:    24000 * 16,
}

// AudioArtifact is the output of the synthesis stage. Data holds raw PCM in
// Format; the delivery stage wraps it in the container.
type AudioArtifact struct {
	Data            []byte      `json:"-"`
	Format          AudioFormat `json:"format"`
	DurationSeconds float64     `json:"duration_seconds"`
	SegmentSeconds  []float64   `json:"segment_seconds,omitempty"`
}

// AudioReference points at a delivered artifact
type AudioReference struct {
	Destination    Destination `json:"destination"`
	Location       string      `json:"location"`
	ScriptLocation string      `json:"script_location,omitempty"`
	Filename       string      `json:"filename"`
}

// Stage names a pipeline stage
type Stage string

const (
	StageFetch         Stage = "fetch"
	StageConsolidation Stage = "consolidation"
	StageSynthesis     Stage = "synthesis"
	StageDelivery      Stage = "delivery"
)

// Stages lists the stages in execution order
var Stages = []Stage{StageFetch, StageConsolidation, StageSynthesis, StageDelivery}

// StageStatus is the typed outcome of one stage
type StageStatus string

const (
	StatusOK       StageStatus = "ok"
	StatusDegraded StageStatus = "degraded"
	StatusFailed   StageStatus = "failed"
	StatusSkipped  StageStatus = "skipped"
)

// RunStatus is the overall outcome of a run
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// ErrorRecord is a stage-tagged structured error kept in the result
type ErrorRecord struct {
	Stage   Stage     `json:"stage"`
	Kind    ErrorKind `json:"kind"`
	Source  string    `json:"source,omitempty"`
	Message string    `json:"message"`
}

// RecordFor converts err into a record for stage, classifying unknown
// errors as fallback
func RecordFor(stage Stage, source string, err error, fallback ErrorKind) ErrorRecord {
	return ErrorRecord{
		Stage:   stage,
		Kind:    KindOf(err, fallback),
		Source:  source,
		Message: err.Error(),
	}
}

// StageTimings holds the wall time spent in each stage
type StageTimings map[Stage]time.Duration

// MarshalJSON encodes timings as milliseconds
func (t StageTimings) MarshalJSON() ([]byte, error) {
	out := make(map[Stage]float64, len(t))
	for stage, d := range t {
		out[stage] = float64(d.Microseconds()) / 1000.0
	}
	return json.Marshal(out)
}

// PipelineResult is the terminal record of a run
type PipelineResult struct {
	RunID          string                `json:"run_id"`
	Status         RunStatus             `json:"status"`
	Script         *Script               `json:"script"`
	AudioReference *AudioReference       `json:"audio_reference"`
	Audio          *AudioArtifact        `json:"audio,omitempty"`
	StageStatus    map[Stage]StageStatus `json:"per_stage_status"`
	Errors         []ErrorRecord         `json:"errors"`
	Warnings       []string              `json:"warnings,omitempty"`
	Timings        StageTimings          `json:"timings_ms"`
	Sources        []FetchStatus         `json:"sources"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
}

// NewPipelineResult creates an empty result with every stage pending
func NewPipelineResult(runID string, started time.Time) *PipelineResult {
	r := &PipelineResult{
		RunID:       runID,
		StageStatus: make(map[Stage]StageStatus, len(Stages)),
		Errors:      []ErrorRecord{},
		Timings:     make(StageTimings, len(Stages)),
		StartedAt:   started,
	}
	for _, stage := range Stages {
		r.StageStatus[stage] = StatusSkipped
	}
	return r
}

// ErrorsFor returns the records of one stage
func (r *PipelineResult) ErrorsFor(stage Stage) []ErrorRecord {
	var out []ErrorRecord
	for _, rec := range r.Errors {
		if rec.Stage == stage {
			out = append(out, rec)
		}
	}
	return out
}

// Finalize derives the overall status from the stage statuses: failed when
// synthesis or delivery produced nothing, partial when anything degraded
func (r *PipelineResult) Finalize(finished time.Time) {
	r.FinishedAt = finished

	if r.StageStatus[StageSynthesis] != StatusOK || r.StageStatus[StageDelivery] == StatusFailed ||
		r.StageStatus[StageDelivery] == StatusSkipped {
		r.Status = RunFailed
		r.AudioReference = nil
		return
	}

	r.Status = RunSuccess
	for _, st := range r.StageStatus {
		if st == StatusDegraded {
			r.Status = RunPartial
			return
		}
	}
}
