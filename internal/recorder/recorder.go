package recorder

import (
	"time"

	"CascadeBandit/internal/model"
)

// Run describes one simulation run.
type Run struct {
	ID         string
	Seed       uint64
	Iterations int
	Steps      string // e.g. "repeated,primary"
	Failure    bool
	StartedAt  time.Time
}

// IterationEvent holds data for one bandit frame.
type IterationEvent struct {
	RunID        string
	Iteration    int
	Cascade      model.CascadeKey // empty when the frame was skipped
	Reward       int
	ConvertedArm int
	StepsVisited int
	Skipped      bool
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordRun(run *Run) error
	FinishRun(runID string, counters model.Counters) error
	RecordIteration(evt *IterationEvent) error
	RecordSnapshot(runID string, iteration int, snap *model.Snapshot) error
	RecordFailure(runID string, evt *model.FailureEvent) error
	Close() error
}
