package config

import (
	"context"

	"github.com/vk/signalgridgo/internal/ctxlog"
)

// Validate performs the field-level checks every loader output must pass
// before a graph is built from it. Structural checks (cycles, layering) live
// in the graph package; this catches everything visible stage-by-stage.
func (m *Model) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	if len(m.Stages) == 0 {
		return NewConfigurationError("pipeline declares no stages")
	}

	seen := make(map[string]struct{}, len(m.Stages))
	for _, s := range m.Stages {
		if s.ID == "" {
			return NewConfigurationError("stage with empty id")
		}
		if _, dup := seen[s.ID]; dup {
			return NewConfigurationError("duplicate stage id %q", s.ID)
		}
		seen[s.ID] = struct{}{}

		switch s.Kind {
		case KindPlugin:
			if s.Plugin == "" {
				return NewConfigurationError("stage %q: kind is plugin but no plugin key is set", s.ID)
			}
		case KindInternal:
			if s.Plugin != "" {
				return NewConfigurationError("stage %q: plugin key is only valid for kind = plugin", s.ID)
			}
		default:
			return NewConfigurationError("stage %q: unknown kind %q", s.ID, s.Kind)
		}

		if s.MaxRetries < 0 {
			return NewConfigurationError("stage %q: max_retries must not be negative", s.ID)
		}
		if s.Timeout < 0 || s.RetryDelay < 0 {
			return NewConfigurationError("stage %q: durations must not be negative", s.ID)
		}
	}

	// Dangling references are checked here so the error surfaces before the
	// graph build; the graph re-indexes but never re-validates.
	for _, s := range m.Stages {
		for _, dep := range s.DependsOn {
			if dep == s.ID {
				return NewConfigurationError("stage %q depends on itself", s.ID)
			}
			if _, ok := seen[dep]; !ok {
				return NewConfigurationError("stage %q depends on undeclared stage %q", s.ID, dep)
			}
		}
	}

	logger.Debug("Config model validated.", "stages", len(m.Stages))
	return nil
}
