package config

import (
	"time"
)

// Kind distinguishes the two ways a stage's handler is resolved.
type Kind string

const (
	// KindPlugin resolves the handler through the plugin registry, keyed by
	// the stage's plugin identifier.
	KindPlugin Kind = "plugin"
	// KindInternal resolves a statically registered handler keyed by the
	// stage's own id.
	KindInternal Kind = "internal"
)

// Pipeline holds run-level settings declared alongside the stages.
type Pipeline struct {
	// Name is the human-readable pipeline name.
	Name string
	// HistorySize bounds the state manager's snapshot history. Zero means
	// the default capacity.
	HistorySize int
	// StrictCollisions turns a key collision between join parents into a
	// hard failure instead of a logged last-writer-wins overwrite.
	StrictCollisions bool
}

// Stage is one declared unit of processing: an id, a handler kind, and the
// set of stages whose outputs it consumes.
type Stage struct {
	// ID is the unique stage identifier within the pipeline.
	ID string
	// Kind selects plugin or internal handler resolution.
	Kind Kind
	// Plugin is the plugin registry key. Required when Kind is plugin,
	// forbidden otherwise.
	Plugin string
	// DependsOn lists predecessor stage ids in declared order. The order is
	// semantic: it fixes the merge order at joins.
	DependsOn []string
	// Critical marks a stage whose failure aborts the whole run.
	Critical bool
	// Timeout is an advisory soft deadline per attempt. Zero means no deadline.
	Timeout time.Duration
	// MaxRetries is the number of additional attempts after the first.
	// Zero means no retry.
	MaxRetries int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	// Group and Tags are advisory metadata with no effect on execution.
	Group string
	Tags  []string
	// Arguments is the opaque argument body for the handler, decoded from
	// the config file.
	Arguments map[string]any
}

// Model is the format-agnostic result of loading a pipeline definition.
// Stages preserve declaration order; loaders must not reorder them.
type Model struct {
	Pipeline *Pipeline
	Stages   []*Stage
}

// StageByID returns the declared stage with the given id, or nil.
func (m *Model) StageByID(id string) *Stage {
	for _, s := range m.Stages {
		if s.ID == id {
			return s
		}
	}
	return nil
}
