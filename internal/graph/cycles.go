package graph

import "github.com/vk/signalgridgo/internal/config"

// detectCycles checks the dependency relation for cycles using a classic
// depth-first search with three node sets:
// permanent: fully visited, known safe; temporary: currently on the
// recursion stack; everything else: unvisited.
func (g *StageGraph) detectCycles() error {
	permanent := make(map[string]bool, len(g.stages))
	temporary := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			// A node already on the recursion stack means we walked back
			// into our own ancestry.
			return config.NewConfigurationError("dependency cycle involving stage %q", id)
		}
		temporary[id] = true
		for _, succ := range g.successors[id] {
			if err := visit(succ); err != nil {
				return err
			}
		}
		delete(temporary, id)
		permanent[id] = true
		return nil
	}

	for _, s := range g.stages {
		if !permanent[s.ID] {
			if err := visit(s.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
