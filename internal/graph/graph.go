// Package graph validates and indexes the declared stage set, producing the
// topological execution layers the executor walks. The graph is immutable
// after Build; all run-time state lives elsewhere.
package graph

import (
	"context"

	"github.com/vk/signalgridgo/internal/config"
	"github.com/vk/signalgridgo/internal/ctxlog"
)

// StageGraph is the validated, indexed form of a pipeline definition.
type StageGraph struct {
	// stages preserves declaration order.
	stages []*config.Stage
	byID   map[string]*config.Stage
	// declIndex maps a stage id to its declaration position, the tie-break
	// for ordering stages within a layer.
	declIndex map[string]int
	// successors holds direct dependents per stage id, declaration-ordered.
	successors map[string][]string
	layers     [][]*config.Stage
}

// Build constructs a validated graph from an ordered stage sequence.
// It fails with a ConfigurationError on an empty or duplicate id, a
// dangling depends_on reference, or a dependency cycle.
func Build(ctx context.Context, m *config.Model) (*StageGraph, error) {
	logger := ctxlog.FromContext(ctx)

	if err := m.Validate(ctx); err != nil {
		return nil, err
	}

	g := &StageGraph{
		stages:     m.Stages,
		byID:       make(map[string]*config.Stage, len(m.Stages)),
		declIndex:  make(map[string]int, len(m.Stages)),
		successors: make(map[string][]string),
	}
	for i, s := range m.Stages {
		g.byID[s.ID] = s
		g.declIndex[s.ID] = i
	}
	for _, s := range m.Stages {
		for _, dep := range s.DependsOn {
			g.successors[dep] = append(g.successors[dep], s.ID)
		}
	}

	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	g.buildLayers()

	logger.Debug("Stage graph built.", "stages", len(g.stages), "layers", len(g.layers))
	return g, nil
}

// Stage returns the declared stage with the given id, or nil.
func (g *StageGraph) Stage(id string) *config.Stage {
	return g.byID[id]
}

// Stages returns every stage in declaration order.
func (g *StageGraph) Stages() []*config.Stage {
	return g.stages
}

// Layers returns the topological execution layers. Layer 0 holds the stages
// with no dependencies; every stage in layer k has all of its dependencies
// in layers < k. Stages within one layer share no transitive relationship
// and may run concurrently.
func (g *StageGraph) Layers() [][]*config.Stage {
	return g.layers
}

// PredecessorsOf returns a stage's direct dependencies in the order they
// were declared in depends_on. That order is semantic: it fixes join merge
// order.
func (g *StageGraph) PredecessorsOf(id string) []*config.Stage {
	s := g.byID[id]
	if s == nil {
		return nil
	}
	preds := make([]*config.Stage, 0, len(s.DependsOn))
	for _, dep := range s.DependsOn {
		preds = append(preds, g.byID[dep])
	}
	return preds
}

// SuccessorsOf returns the direct dependents of a stage, declaration-ordered.
func (g *StageGraph) SuccessorsOf(id string) []*config.Stage {
	succs := make([]*config.Stage, 0, len(g.successors[id]))
	for _, sid := range g.successors[id] {
		succs = append(succs, g.byID[sid])
	}
	return succs
}

// Leaves returns the stages with no dependents, in declaration order.
// These are the run's sink stages; their outputs form the run result.
func (g *StageGraph) Leaves() []*config.Stage {
	var leaves []*config.Stage
	for _, s := range g.stages {
		if len(g.successors[s.ID]) == 0 {
			leaves = append(leaves, s)
		}
	}
	return leaves
}

// LayerIndexOf returns the layer a stage was placed in, or -1 if unknown.
func (g *StageGraph) LayerIndexOf(id string) int {
	for i, layer := range g.layers {
		for _, s := range layer {
			if s.ID == id {
				return i
			}
		}
	}
	return -1
}
