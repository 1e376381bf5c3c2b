package graph

import (
	"sort"

	"github.com/vk/signalgridgo/internal/config"
)

// buildLayers assigns every stage the smallest layer index strictly greater
// than all of its dependencies' indices, then orders each layer by
// declaration position so trace ordering is deterministic when timings tie.
// Called after cycle detection, so the fixpoint always terminates.
func (g *StageGraph) buildLayers() {
	level := make(map[string]int, len(g.stages))

	var levelOf func(s *config.Stage) int
	levelOf = func(s *config.Stage) int {
		if l, ok := level[s.ID]; ok {
			return l
		}
		l := 0
		for _, dep := range s.DependsOn {
			if dl := levelOf(g.byID[dep]); dl >= l {
				l = dl + 1
			}
		}
		level[s.ID] = l
		return l
	}

	maxLevel := 0
	for _, s := range g.stages {
		if l := levelOf(s); l > maxLevel {
			maxLevel = l
		}
	}

	layers := make([][]*config.Stage, maxLevel+1)
	for _, s := range g.stages {
		l := level[s.ID]
		layers[l] = append(layers[l], s)
	}
	for _, layer := range layers {
		sort.SliceStable(layer, func(i, j int) bool {
			return g.declIndex[layer[i].ID] < g.declIndex[layer[j].ID]
		})
	}
	g.layers = layers
}
