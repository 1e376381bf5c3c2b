// Package hcl implements the HCL-specific configuration loader. It parses
// pipeline files into the format-agnostic model defined in the config package.
package hcl

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/signalgridgo/internal/config"
	"github.com/vk/signalgridgo/internal/ctxlog"
	"github.com/vk/signalgridgo/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load orchestrates the HCL configuration loading process. It is agnostic to
// the origin of the paths and parses any valid block from any file. Directory
// paths are expanded to every .hcl file beneath them, in sorted order, so
// stage declaration order is stable.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := &config.Model{}

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, p := range root.Pipelines {
			if model.Pipeline != nil {
				return nil, config.NewConfigurationError("duplicate pipeline block '%s' in %s: a run takes exactly one pipeline definition", p.Name, file)
			}
			model.Pipeline = l.translatePipeline(p)
		}
		for _, s := range root.Stages {
			stage, err := l.translateStage(s)
			if err != nil {
				return nil, fmt.Errorf("in file %s: %w", file, err)
			}
			model.Stages = append(model.Stages, stage)
		}
	}

	pipelineName := ""
	if model.Pipeline != nil {
		pipelineName = model.Pipeline.Name
	}
	logger.Debug("HCL loading complete.", "pipeline", pipelineName, "stages", len(model.Stages))
	return model, nil
}

// findAllHCLFiles resolves the given paths into a flat list of .hcl files.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var hclFiles []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to access path %s: %w", path, err)
		}
		if info.IsDir() {
			found, err := fsutil.FindFilesByExtension(path, ".hcl")
			if err != nil {
				return nil, fmt.Errorf("failed to scan directory %s: %w", path, err)
			}
			hclFiles = append(hclFiles, found...)
		} else {
			hclFiles = append(hclFiles, path)
		}
	}
	return hclFiles, nil
}

// translatePipeline converts the HCL-specific pipeline schema into the agnostic model.
func (l *Loader) translatePipeline(p *pipelineBlock) *config.Pipeline {
	out := &config.Pipeline{Name: p.Name}
	if p.HistorySize != nil {
		out.HistorySize = *p.HistorySize
	}
	if p.StrictCollisions != nil {
		out.StrictCollisions = *p.StrictCollisions
	}
	return out
}

// translateStage converts the HCL-specific stage schema into the agnostic model.
func (l *Loader) translateStage(s *stageBlock) (*config.Stage, error) {
	timeout, err := parseOptionalDuration("timeout", s.ID, s.Timeout)
	if err != nil {
		return nil, err
	}
	retryDelay, err := parseOptionalDuration("retry_delay", s.ID, s.RetryDelay)
	if err != nil {
		return nil, err
	}
	args, err := l.extractArguments(s.Arguments)
	if err != nil {
		return nil, fmt.Errorf("in stage '%s': %w", s.ID, err)
	}

	return &config.Stage{
		ID:         s.ID,
		Kind:       config.Kind(s.Kind),
		Plugin:     s.Plugin,
		DependsOn:  s.DependsOn,
		Critical:   s.Critical,
		Timeout:    timeout,
		MaxRetries: s.MaxRetries,
		RetryDelay: retryDelay,
		Group:      s.Group,
		Tags:       s.Tags,
		Arguments:  args,
	}, nil
}

// extractArguments evaluates every attribute of the arguments block into a
// plain Go value. Argument expressions take no variables, so evaluation
// happens eagerly at load time.
func (l *Loader) extractArguments(block *argumentsBlock) (map[string]any, error) {
	if block == nil || block.Body == nil {
		return nil, nil
	}
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid arguments block: %w", diags)
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	args := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate argument '%s': %w", name, diags)
		}
		goVal, err := ctyValueToInterface(val)
		if err != nil {
			return nil, fmt.Errorf("argument '%s': %w", name, err)
		}
		args[name] = goVal
	}
	return args, nil
}

func parseOptionalDuration(attr, stageID, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, config.NewConfigurationError("stage '%s' has an invalid %s %q: %v", stageID, attr, raw, err)
	}
	return d, nil
}
