package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

// argumentsBlock represents the content of the 'arguments' block within a
// stage. Its attributes are free-form and evaluated lazily.
type argumentsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// pipelineBlock represents a `pipeline` block from a user's pipeline file.
type pipelineBlock struct {
	Name             string `hcl:"pipeline_name,label"`
	HistorySize      *int   `hcl:"history_size,optional"`
	StrictCollisions *bool  `hcl:"strict_collisions,optional"`
}

// stageBlock represents a `stage` block from a user's pipeline file. It is a
// runnable instance of a registered handler.
type stageBlock struct {
	ID         string          `hcl:"stage_id,label"`
	Kind       string          `hcl:"kind"`
	Plugin     string          `hcl:"plugin,optional"`
	DependsOn  []string        `hcl:"depends_on,optional"`
	Critical   bool            `hcl:"critical,optional"`
	Timeout    string          `hcl:"timeout,optional"`
	MaxRetries int             `hcl:"max_retries,optional"`
	RetryDelay string          `hcl:"retry_delay,optional"`
	Group      string          `hcl:"group,optional"`
	Tags       []string        `hcl:"tags,optional"`
	Arguments  *argumentsBlock `hcl:"arguments,block"`
}

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Pipelines []*pipelineBlock `hcl:"pipeline,block"`
	Stages    []*stageBlock    `hcl:"stage,block"`
	Remain    hcl.Body         `hcl:",remain"`
}
