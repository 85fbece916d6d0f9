package graph

import "strings"

// MaxPaths bounds enumeration. Path counts grow exponentially with stacked
// diamonds.
const MaxPaths = 4096

// PathSeparator joins step names in a path key.
const PathSeparator = ">"

// PathKey identifies a path by its step names.
func PathKey(path []string) string {
	return strings.Join(path, PathSeparator)
}

// Paths enumerates every maximal path from a source to a sink, depth
// first, visiting sources and successors in name order. A step reached by
// several routes appears once per route.
func (g *Graph) Paths() ([][]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	var (
		out   [][]string
		stack []int
		err   error
	)
	var visit func(v int)
	visit = func(v int) {
		if err != nil {
			return
		}
		stack = append(stack, v)
		defer func() { stack = stack[:len(stack)-1] }()

		if len(g.succ[v]) == 0 {
			if len(out) == MaxPaths {
				err = structural(ErrTooManyPaths, nil, "more than %d paths", MaxPaths)
				return
			}
			out = append(out, g.names(stack))
			return
		}
		for _, s := range g.succ[v] {
			visit(s)
		}
	}
	for _, s := range g.sources() {
		visit(s)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
