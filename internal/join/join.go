// Package join merges the partial outputs of a stage's parents into the
// single payload the stage receives. The merge is deterministic: parents
// apply in declared order, never completion order.
package join

import (
	"context"

	"github.com/vk/signalgridgo/internal/config"
	"github.com/vk/signalgridgo/internal/ctxlog"
	"github.com/vk/signalgridgo/internal/model"
)

// Partial is one parent's contribution to a join, tagged with its stage id
// for collision reporting.
type Partial struct {
	StageID string
	Output  map[string]any
}

// Merge folds the parents' outputs onto a deep copy of the base payload,
// shallow-merging each in the given (declared) order. On a key collision
// between parents the later-declared parent wins; stages are expected to
// namespace their output keys so this stays theoretical. With strict set,
// a collision is a hard error instead.
//
// Failed parents are simply absent from parents: the caller omits them, so
// their contribution never appears in the merged payload.
func Merge(ctx context.Context, base map[string]any, parents []Partial, strict bool) (map[string]any, error) {
	logger := ctxlog.FromContext(ctx)

	merged := model.CopyPayload(base)
	if merged == nil {
		merged = make(map[string]any)
	}

	// writtenBy tracks which parent last wrote each key, so a collision
	// warning can name both writers. Keys present in the base payload are
	// not collisions; parents routinely echo the full payload back.
	writtenBy := make(map[string]string)
	for _, p := range parents {
		for k, v := range p.Output {
			if prev, clash := writtenBy[k]; clash && prev != p.StageID {
				if baseVal, inBase := base[k]; !inBase || !shallowEqual(baseVal, v) {
					if strict {
						return nil, config.NewConfigurationError(
							"join key collision: '%s' written by both '%s' and '%s'", k, prev, p.StageID)
					}
					logger.Warn("Join key collision, later parent wins.",
						"key", k, "earlier", prev, "later", p.StageID)
				}
			}
			merged[k] = model.CopyValue(v)
			writtenBy[k] = p.StageID
		}
	}
	return merged, nil
}

// shallowEqual is a cheap identity check used only to suppress collision
// warnings for values that are unchanged echoes of the base payload.
func shallowEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return false
	}
}
