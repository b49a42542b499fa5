package pipeline

import (
	"time"

	"github.com/c0ld-w4ter/you-fm/internal/briefing"
)

// State is a state of the run state machine
type State string

const (
	StateAggregating   State = "aggregating"
	StateConsolidating State = "consolidating"
	StateSynthesizing  State = "synthesizing"
	StateDelivering    State = "delivering"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// stageOf maps a working state to the stage it runs
var stageOf = map[State]briefing.Stage{
	StateAggregating:   briefing.StageFetch,
	StateConsolidating: briefing.StageConsolidation,
	StateSynthesizing:  briefing.StageSynthesis,
	StateDelivering:    briefing.StageDelivery,
}

// Terminal reports whether the run has finished
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// StageEvent is emitted when a stage starts, when it ends and once more when
// the run reaches a terminal state. Status is empty for start events.
type StageEvent struct {
	RunID   string               `json:"run_id"`
	State   State                `json:"state"`
	Stage   briefing.Stage       `json:"stage,omitempty"`
	Status  briefing.StageStatus `json:"status,omitempty"`
	Detail  string               `json:"detail,omitempty"`
	Elapsed time.Duration        `json:"elapsed_ns,omitempty"`
	At      time.Time            `json:"at"`
}

// Observer receives stage events in order. It runs on the pipeline goroutine
// and must not block.
type Observer func(StageEvent)

// Observers fans one event out to several observers, skipping nil ones
func Observers(obs ...Observer) Observer {
	return func(ev StageEvent) {
		for _, o := range obs {
			if o != nil {
				o(ev)
			}
		}
	}
}
