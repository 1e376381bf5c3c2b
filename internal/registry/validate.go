package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/signalgridgo/internal/config"
	"github.com/vk/signalgridgo/internal/ctxlog"
)

// ValidateAgainst checks that every declared stage resolves to a registered
// handler. Unknown ids are rejected here, during startup validation, never
// at invocation time. All problems are collected and reported together.
func (r *Registry) ValidateAgainst(ctx context.Context, stages []*config.Stage) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	for _, s := range stages {
		switch s.Kind {
		case config.KindPlugin:
			if _, ok := r.plugins[s.Plugin]; !ok {
				errs = append(errs, fmt.Sprintf("stage '%s': plugin '%s' is not registered", s.ID, s.Plugin))
			}
		case config.KindInternal:
			if _, ok := r.internals[s.ID]; !ok {
				errs = append(errs, fmt.Sprintf("stage '%s': no internal handler registered for this id", s.ID))
			}
		}
	}

	if len(errs) > 0 {
		return config.NewConfigurationError("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	logger.Debug("Registry validation passed.", "plugins", len(r.plugins), "internals", len(r.internals))
	return nil
}
