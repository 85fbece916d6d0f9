package graph

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steps(names ...string) []Step {
	out := make([]Step, len(names))
	for i, n := range names {
		out[i] = Step{Name: n}
	}
	return out
}

func diamond(t *testing.T) *Graph {
	t.Helper()
	g, err := New(steps("1", "2", "3", "4", "5"), []Edge{
		{"1", "2"}, {"2", "3"}, {"4", "2"}, {"2", "5"},
	})
	require.NoError(t, err)
	return g
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
		edges []Edge
		kind  error
	}{
		{"duplicate step", steps("a", "a"), nil, ErrDuplicateStep},
		{"reserved name", steps("START"), nil, ErrMalformedTopology},
		{"blank name", steps(" "), nil, ErrMalformedTopology},
		{"unknown target", steps("a"), []Edge{{"a", "b"}}, ErrUnknownStep},
		{"unknown source", steps("a"), []Edge{{"b", "a"}}, ErrUnknownStep},
		{"self loop", steps("a"), []Edge{{"a", "a"}}, ErrCycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.steps, tt.edges)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
		edges []Edge
		kind  error
		stuck []string
	}{
		{"empty", nil, nil, ErrNoSink, nil},
		{"cycle", steps("a", "b", "c", "d"), []Edge{{"a", "b"}, {"b", "c"}, {"c", "b"}, {"c", "d"}}, ErrCycle, []string{"b", "c", "d"}},
		{"start into middle", steps("a", "b"), []Edge{{Start, "a"}, {Start, "b"}, {"a", "b"}}, ErrMalformedTopology, []string{"b"}},
		{"orphan source", steps("a", "b", "x", "y"), []Edge{{Start, "a"}, {"a", "b"}, {"x", "y"}}, ErrUnreachable, []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.steps, tt.edges)
			require.NoError(t, err)
			err = g.Validate()
			require.ErrorIs(t, err, tt.kind)
			var sErr *StructureError
			require.ErrorAs(t, err, &sErr)
			assert.Equal(t, tt.stuck, sErr.Steps)
		})
	}

	assert.NoError(t, diamond(t).Validate())
}

func TestSourcesAndSinks(t *testing.T) {
	g := diamond(t)
	assert.Equal(t, []string{"1", "4"}, g.Sources())
	assert.Equal(t, []string{"3", "5"}, g.Sinks())
	assert.Equal(t, []string{"3", "5"}, g.Successors("2"))
	assert.Nil(t, g.Successors("nope"))
	assert.Equal(t, []Edge{{"1", "2"}, {"2", "3"}, {"2", "5"}, {"4", "2"}}, g.Edges())
}

func TestLevels(t *testing.T) {
	levels, err := diamond(t).Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "4"}, {"2"}, {"3", "5"}}, levels)

	order, err := diamond(t).Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "4", "2", "3", "5"}, order)
}

func TestCanonical_Diamond(t *testing.T) {
	edges, err := diamond(t).Canonical()
	require.NoError(t, err)

	want := []Edge{
		{Start, "1"}, {Start, "4"},
		{"1", "2"}, {"4", "2"},
		{"2", "3"}, {"2", "5"},
	}
	if diff := cmp.Diff(want, edges); diff != "" {
		t.Errorf("Canonical() mismatch (-want +got):\n%s", diff)
	}
}

func TestCanonical_DeterministicUnderPermutation(t *testing.T) {
	names := []string{"view", "search", "cart", "checkout", "pay", "abandon", "promo"}
	edges := []Edge{
		{"view", "search"}, {"view", "cart"}, {"promo", "cart"},
		{"search", "cart"}, {"cart", "checkout"}, {"cart", "abandon"},
		{"checkout", "pay"},
	}

	base, err := New(steps(names...), edges)
	require.NoError(t, err)
	want, err := base.Canonical()
	require.NoError(t, err)
	wantPaths, err := base.Paths()
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffledEdges := append([]Edge(nil), edges...)
		rng.Shuffle(len(shuffledEdges), func(a, b int) {
			shuffledEdges[a], shuffledEdges[b] = shuffledEdges[b], shuffledEdges[a]
		})
		shuffledNames := append([]string(nil), names...)
		rng.Shuffle(len(shuffledNames), func(a, b int) {
			shuffledNames[a], shuffledNames[b] = shuffledNames[b], shuffledNames[a]
		})

		g, err := New(steps(shuffledNames...), shuffledEdges)
		require.NoError(t, err)
		got, err := g.Canonical()
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("permutation %d changed canonical order (-want +got):\n%s", i, diff)
		}
		gotPaths, err := g.Paths()
		require.NoError(t, err)
		assert.Equal(t, wantPaths, gotPaths)
	}
}

func TestCanonical_WaitsForAllPredecessors(t *testing.T) {
	// c is two hops from a but one hop from b; it must not appear before
	// both predecessors have been emitted.
	g, err := New(steps("a", "b", "c", "d"), []Edge{{"a", "b"}, {"b", "c"}, {"a", "c"}, {"c", "d"}})
	require.NoError(t, err)

	edges, err := g.Canonical()
	require.NoError(t, err)
	assert.Equal(t, []Edge{
		{Start, "a"},
		{"a", "b"}, {"a", "c"},
		{"b", "c"},
		{"c", "d"},
	}, edges)
}

func TestPaths_Diamond(t *testing.T) {
	paths, err := diamond(t).Paths()
	require.NoError(t, err)
	assert.ElementsMatch(t, [][]string{
		{"1", "2", "3"}, {"1", "2", "5"}, {"4", "2", "3"}, {"4", "2", "5"},
	}, paths)
	assert.Equal(t, []string{"1", "2", "3"}, paths[0])
}

func TestPaths_SingleStep(t *testing.T) {
	g, err := New(steps("only"), nil)
	require.NoError(t, err)
	paths, err := g.Paths()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"only"}}, paths)
}

func TestPaths_Limit(t *testing.T) {
	// 13 stacked diamonds give 2^13 paths.
	var names []string
	var edges []Edge
	prev := "n0"
	names = append(names, prev)
	for i := 1; i <= 13; i++ {
		left, right, join := name("l", i), name("r", i), name("n", i)
		names = append(names, left, right, join)
		edges = append(edges, Edge{prev, left}, Edge{prev, right}, Edge{left, join}, Edge{right, join})
		prev = join
	}
	g, err := New(steps(names...), edges)
	require.NoError(t, err)
	_, err = g.Paths()
	assert.ErrorIs(t, err, ErrTooManyPaths)
}

func name(prefix string, i int) string {
	return prefix + string(rune('a'+i))
}

func TestPathKey(t *testing.T) {
	assert.Equal(t, "view>cart>pay", PathKey([]string{"view", "cart", "pay"}))
}

func TestParseTopology(t *testing.T) {
	doc := `{
		"nodes": [
			{"id": 1, "name": "1", "pos_x": 10},
			{"id": 2, "name": "2", "data": {"event": "cart"}},
			{"id": 3, "name": "3"},
			{"id": "4", "name": "4"},
			{"id": 5, "name": "5"}
		],
		"connections": {"START": [1, 4], "1": [2], "4": ["2"], "2": [3, 5]}
	}`
	topo, err := ParseTopology([]byte(doc))
	require.NoError(t, err)
	g, err := topo.Graph()
	require.NoError(t, err)

	step, ok := g.Step("2")
	require.True(t, ok)
	assert.JSONEq(t, `{"event":"cart"}`, string(step.Data))

	edges, err := g.Canonical()
	require.NoError(t, err)
	assert.Equal(t, []Edge{{Start, "1"}, {Start, "4"}, {"1", "2"}, {"4", "2"}, {"2", "3"}, {"2", "5"}}, edges)
}

func TestParseTopology_Malformed(t *testing.T) {
	tests := map[string]string{
		"empty":          ``,
		"not json":       `{"nodes": [`,
		"missing id":     `{"nodes":[{"name":"a"}]}`,
		"missing name":   `{"nodes":[{"id":1}]}`,
		"duplicate id":   `{"nodes":[{"id":1,"name":"a"},{"id":"1","name":"b"}]}`,
		"reserved id":    `{"nodes":[{"id":"START","name":"a"}]}`,
		"bad id type":    `{"nodes":[{"id":true,"name":"a"}]}`,
		"unknown source": `{"nodes":[{"id":1,"name":"a"}],"connections":{"9":[1]}}`,
		"unknown target": `{"nodes":[{"id":1,"name":"a"}],"connections":{"1":[9]}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTopology([]byte(doc))
			require.Error(t, err)
			var sErr *StructureError
			assert.ErrorAs(t, err, &sErr)
		})
	}
}
