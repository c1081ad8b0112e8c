package recorder

import "CascadeBandit/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *Run) error                                  { return nil }
func (n *NoopRecorder) FinishRun(_ string, _ model.Counters) error              { return nil }
func (n *NoopRecorder) RecordIteration(_ *IterationEvent) error                 { return nil }
func (n *NoopRecorder) RecordSnapshot(_ string, _ int, _ *model.Snapshot) error { return nil }
func (n *NoopRecorder) RecordFailure(_ string, _ *model.FailureEvent) error     { return nil }
func (n *NoopRecorder) Close() error                                            { return nil }
