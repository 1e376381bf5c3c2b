// Package yamlcfg implements the YAML-specific configuration loader. It is an
// alternative front end to the HCL loader and produces the same agnostic model.
package yamlcfg

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vk/signalgridgo/internal/config"
	"github.com/vk/signalgridgo/internal/ctxlog"
	"github.com/vk/signalgridgo/internal/fsutil"
)

// Duration is a time.Duration that unmarshals from YAML strings (e.g. "60s", "5m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the standard time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// pipelineDoc is the root structure of a YAML pipeline file.
type pipelineDoc struct {
	Pipeline *pipelineEntry `yaml:"pipeline"`
	Stages   []stageEntry   `yaml:"stages"`
}

type pipelineEntry struct {
	Name             string `yaml:"name"`
	HistorySize      int    `yaml:"history_size"`
	StrictCollisions bool   `yaml:"strict_collisions"`
}

type stageEntry struct {
	ID         string         `yaml:"id"`
	Kind       string         `yaml:"kind"`
	Plugin     string         `yaml:"plugin"`
	DependsOn  []string       `yaml:"depends_on"`
	Critical   bool           `yaml:"critical"`
	Timeout    Duration       `yaml:"timeout"`
	MaxRetries int            `yaml:"max_retries"`
	RetryDelay Duration       `yaml:"retry_delay"`
	Group      string         `yaml:"group"`
	Tags       []string       `yaml:"tags"`
	Arguments  map[string]any `yaml:"arguments"`
}

// Loader is the YAML-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new YAML configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses the given paths into the agnostic configuration model.
// Directory paths are expanded to every .yaml file beneath them, sorted so
// stage declaration order is stable across platforms.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path_count", len(paths))

	files, err := l.findAllYAMLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered YAML files.", "count", len(files))

	model := &config.Model{}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read YAML file %s: %w", file, err)
		}

		var doc pipelineDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode YAML file %s: %w", file, err)
		}

		if doc.Pipeline != nil {
			if model.Pipeline != nil {
				return nil, config.NewConfigurationError("duplicate pipeline entry '%s' in %s: a run takes exactly one pipeline definition", doc.Pipeline.Name, file)
			}
			model.Pipeline = &config.Pipeline{
				Name:             doc.Pipeline.Name,
				HistorySize:      doc.Pipeline.HistorySize,
				StrictCollisions: doc.Pipeline.StrictCollisions,
			}
		}
		for i := range doc.Stages {
			model.Stages = append(model.Stages, translateStage(&doc.Stages[i]))
		}
	}

	logger.Debug("YAML loading complete.", "stages", len(model.Stages))
	return model, nil
}

func (l *Loader) findAllYAMLFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to access path %s: %w", path, err)
		}
		if info.IsDir() {
			found, err := fsutil.FindFilesByExtension(path, ".yaml")
			if err != nil {
				return nil, fmt.Errorf("failed to scan directory %s: %w", path, err)
			}
			files = append(files, found...)
		} else {
			files = append(files, path)
		}
	}
	return files, nil
}

func translateStage(s *stageEntry) *config.Stage {
	return &config.Stage{
		ID:         s.ID,
		Kind:       config.Kind(s.Kind),
		Plugin:     s.Plugin,
		DependsOn:  s.DependsOn,
		Critical:   s.Critical,
		Timeout:    s.Timeout.Duration(),
		MaxRetries: s.MaxRetries,
		RetryDelay: s.RetryDelay.Duration(),
		Group:      s.Group,
		Tags:       s.Tags,
		Arguments:  s.Arguments,
	}
}
