package graph

// waves runs a layered Kahn sort. Each wave holds the steps whose
// predecessors all sit in earlier waves, sorted by name. Steps left over
// once no wave can be formed lie on or behind a cycle.
func (g *Graph) waves() ([][]int, error) {
	indeg := make([]int, len(g.steps))
	for i := range g.pred {
		indeg[i] = len(g.pred[i])
	}

	var out [][]int
	wave := g.sources()
	done := 0
	for len(wave) > 0 {
		out = append(out, wave)
		done += len(wave)
		var next []int
		for _, v := range wave {
			for _, s := range g.succ[v] {
				indeg[s]--
				if indeg[s] == 0 {
					next = append(next, s)
				}
			}
		}
		g.sortByName(next)
		wave = next
	}

	if done != len(g.steps) {
		var stuck []int
		for i, d := range indeg {
			if d > 0 {
				stuck = append(stuck, i)
			}
		}
		g.sortByName(stuck)
		return nil, structural(ErrCycle, g.names(stuck), "steps never become ready")
	}
	return out, nil
}

// Levels returns the step names grouped by wave.
func (g *Graph) Levels() ([][]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	waves, err := g.waves()
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(waves))
	for i, w := range waves {
		out[i] = g.names(w)
	}
	return out, nil
}

// Order returns the steps in canonical order, wave by wave.
func (g *Graph) Order() ([]string, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, level := range levels {
		out = append(out, level...)
	}
	return out, nil
}

// Canonical returns the edge list used as the group's structural identity:
// a [START, source] edge per source, then each wave's outgoing edges sorted
// by (from, to). The result depends only on the set of steps and edges.
func (g *Graph) Canonical() ([]Edge, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	waves, err := g.waves()
	if err != nil {
		return nil, err
	}

	var out []Edge
	for _, s := range waves[0] {
		out = append(out, Edge{Start, g.steps[s].Name})
	}
	for _, wave := range waves {
		var batch []Edge
		for _, v := range wave {
			for _, s := range g.succ[v] {
				batch = append(batch, Edge{g.steps[v].Name, g.steps[s].Name})
			}
		}
		sortEdges(batch)
		out = append(out, batch...)
	}
	return out, nil
}
