// Package graph models the step graph authored in the funnel editor. Steps
// are kept in an index-based adjacency list; the canonical edge order and
// the root-to-sink paths are derived from it deterministically, whatever
// order the editor emitted nodes and connections in.
package graph

import (
	"encoding/json"
	"sort"
	"strings"
)

// Start is the virtual root. It connects to every true source and is never
// a real step.
const Start = "START"

// Step is one node of the graph. Data is the editor's payload for the
// step, carried through untouched.
type Step struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Edge is an ordered (from, to) pair. It serializes as a two-element array.
type Edge [2]string

func (e Edge) From() string { return e[0] }
func (e Edge) To() string   { return e[1] }

// Graph is immutable once built.
type Graph struct {
	steps  []Step
	index  map[string]int
	succ   [][]int
	pred   [][]int
	starts map[int]bool
}

// New builds a graph from steps and edges. Edges from Start mark explicit
// sources. Names must be unique, non-empty and not Start; edges must join
// known steps. Duplicate edges are ignored. Structural checks (cycles,
// reachability, sinks) happen in Validate.
func New(steps []Step, edges []Edge) (*Graph, error) {
	g := &Graph{
		steps:  make([]Step, 0, len(steps)),
		index:  make(map[string]int, len(steps)),
		starts: make(map[int]bool),
	}
	for _, s := range steps {
		name := strings.TrimSpace(s.Name)
		switch {
		case name == "":
			return nil, structural(ErrMalformedTopology, nil, "step %d has no name", len(g.steps))
		case name == Start:
			return nil, structural(ErrMalformedTopology, []string{name}, "%s is reserved", Start)
		}
		if _, dup := g.index[name]; dup {
			return nil, structural(ErrDuplicateStep, []string{name}, "step names must be unique")
		}
		g.index[name] = len(g.steps)
		g.steps = append(g.steps, Step{Name: name, Data: s.Data})
	}
	g.succ = make([][]int, len(g.steps))
	g.pred = make([][]int, len(g.steps))

	seen := make(map[[2]int]bool, len(edges))
	for _, e := range edges {
		to, ok := g.index[e.To()]
		if !ok {
			return nil, structural(ErrUnknownStep, []string{e.To()}, "edge %s -> %s", e.From(), e.To())
		}
		if e.From() == Start {
			g.starts[to] = true
			continue
		}
		from, ok := g.index[e.From()]
		if !ok {
			return nil, structural(ErrUnknownStep, []string{e.From()}, "edge %s -> %s", e.From(), e.To())
		}
		if from == to {
			return nil, structural(ErrCycle, []string{e.From()}, "step connects to itself")
		}
		if seen[[2]int{from, to}] {
			continue
		}
		seen[[2]int{from, to}] = true
		g.succ[from] = append(g.succ[from], to)
		g.pred[to] = append(g.pred[to], from)
	}
	for i := range g.succ {
		g.sortByName(g.succ[i])
	}
	return g, nil
}

// Len is the number of steps.
func (g *Graph) Len() int { return len(g.steps) }

// Steps returns the steps in input order.
func (g *Graph) Steps() []Step {
	return append([]Step(nil), g.steps...)
}

func (g *Graph) Step(name string) (Step, bool) {
	i, ok := g.index[name]
	if !ok {
		return Step{}, false
	}
	return g.steps[i], true
}

// Successors returns the direct successors of name, sorted.
func (g *Graph) Successors(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return g.names(g.succ[i])
}

// Sources returns the steps without predecessors, sorted.
func (g *Graph) Sources() []string {
	return g.names(g.sources())
}

// Sinks returns the steps without successors, sorted.
func (g *Graph) Sinks() []string {
	var out []int
	for i := range g.steps {
		if len(g.succ[i]) == 0 {
			out = append(out, i)
		}
	}
	g.sortByName(out)
	return g.names(out)
}

// Edges returns every real edge sorted by (from, to). Start edges are not
// included; Canonical adds them.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for from, succ := range g.succ {
		for _, to := range succ {
			out = append(out, Edge{g.steps[from].Name, g.steps[to].Name})
		}
	}
	sortEdges(out)
	return out
}

// Validate rejects graphs that cannot be decomposed into pipelines: empty
// graphs, START edges into steps that have predecessors, sources missing a
// START edge when explicit ones were given, cycles and graphs without a
// sink.
func (g *Graph) Validate() error {
	if len(g.steps) == 0 {
		return structural(ErrNoSink, nil, "graph has no steps")
	}

	if len(g.starts) > 0 {
		var bad []int
		for i := range g.starts {
			if len(g.pred[i]) > 0 {
				bad = append(bad, i)
			}
		}
		if len(bad) > 0 {
			g.sortByName(bad)
			return structural(ErrMalformedTopology, g.names(bad), "%s edge into a step that has predecessors", Start)
		}
		var orphans []int
		for _, i := range g.sources() {
			if !g.starts[i] {
				orphans = append(orphans, i)
			}
		}
		if len(orphans) > 0 {
			return structural(ErrUnreachable, g.names(orphans), "no %s edge leads here", Start)
		}
	}

	if _, err := g.waves(); err != nil {
		return err
	}
	if len(g.Sinks()) == 0 {
		return structural(ErrNoSink, nil, "every step has a successor")
	}
	return nil
}

func (g *Graph) sources() []int {
	var out []int
	for i := range g.steps {
		if len(g.pred[i]) == 0 {
			out = append(out, i)
		}
	}
	g.sortByName(out)
	return out
}

func (g *Graph) names(idx []int) []string {
	out := make([]string, len(idx))
	for i, v := range idx {
		out[i] = g.steps[v].Name
	}
	return out
}

func (g *Graph) sortByName(idx []int) {
	sort.Slice(idx, func(a, b int) bool {
		return g.steps[idx[a]].Name < g.steps[idx[b]].Name
	})
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(a, b int) bool {
		if edges[a][0] != edges[b][0] {
			return edges[a][0] < edges[b][0]
		}
		return edges[a][1] < edges[b][1]
	})
}
