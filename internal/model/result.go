package model

import "time"

// StageResult is the executor-facing record of one stage attempt chain:
// the identity fields mirrored from the stage spec plus the outcome.
type StageResult struct {
	StageID  string
	Kind     string
	Critical bool
	Status   TraceStatus
	Duration time.Duration
	Output   map[string]any
	Err      error
}
