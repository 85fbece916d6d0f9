package funnel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/asaidimu/go-funnel/core/bullet"
	"github.com/asaidimu/go-funnel/core/filter"
	"github.com/asaidimu/go-funnel/core/graph"
	"github.com/asaidimu/go-funnel/core/schema"
	"go.uber.org/zap"
)

// Assembler compiles GroupRequests. It holds no per-request state and may
// be shared.
type Assembler struct {
	provider schema.MetadataProvider
	logger   *zap.Logger
}

func NewAssembler(provider schema.MetadataProvider, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{provider: provider, logger: logger}
}

type compiledGraph struct {
	graph  *graph.Graph
	edges  []graph.Edge
	levels [][]string
	paths  [][]string
}

func (a *Assembler) compileGraph(topology []byte) (*compiledGraph, error) {
	topo, err := graph.ParseTopology(topology)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	g, err := topo.Graph()
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	edges, err := g.Canonical()
	if err != nil {
		return nil, fmt.Errorf("step graph: %w", err)
	}
	levels, err := g.Levels()
	if err != nil {
		return nil, fmt.Errorf("step graph: %w", err)
	}
	paths, err := g.Paths()
	if err != nil {
		return nil, fmt.Errorf("step graph: %w", err)
	}
	return &compiledGraph{graph: g, edges: edges, levels: levels, paths: paths}, nil
}

// Preview compiles only the graph and reports the paths with the names
// they would get.
func (a *Assembler) Preview(ctx context.Context, req *GroupRequest) (*Preview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &RequestError{Field: "request", Reason: "is empty"}
	}
	cg, err := a.compileGraph(req.Topology)
	if err != nil {
		return nil, err
	}
	p := &Preview{Edges: cg.edges, Levels: cg.levels, Paths: make([]PathPreview, 0, len(cg.paths))}
	for _, path := range cg.paths {
		key := graph.PathKey(path)
		name := req.PipelineNames[key]
		if name == "" && len(cg.paths) == 1 {
			name = req.Name
		}
		p.Paths = append(p.Paths, PathPreview{Key: key, Steps: path, Name: name})
	}
	return p, nil
}

// Assemble compiles req into a group spec. It stops at the first error and
// returns nothing partial.
func (a *Assembler) Assemble(ctx context.Context, req *GroupRequest) (*GroupSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &RequestError{Field: "request", Reason: "is empty"}
	}
	if strings.TrimSpace(req.Schema) == "" {
		return nil, &RequestError{Field: "schema", Reason: "is required"}
	}

	cg, err := a.compileGraph(req.Topology)
	if err != nil {
		return nil, err
	}
	for _, path := range cg.paths {
		if len(path) < 2 {
			return nil, &graph.StructureError{Kind: graph.ErrPathTooShort, Steps: path, Detail: "a funnel needs at least two steps"}
		}
	}

	model, query, err := a.compileFilter(req.Filter, req.Schema)
	if err != nil {
		return nil, err
	}

	projections, err := validateProjections(a.provider, req.Schema, req.Projections)
	if err != nil {
		return nil, err
	}

	names, err := namePipelines(req.Name, req.PipelineNames, cg.paths)
	if err != nil {
		return nil, err
	}

	spec := &GroupSpec{
		Name:        strings.TrimSpace(req.Name),
		Schema:      req.Schema,
		Description: req.Description,
		Steps:       cg.graph.Steps(),
		Edges:       cg.edges,
		Levels:      cg.levels,
		Topology:    req.Topology,
		Pipelines:   make([]PipelineSpec, 0, len(cg.paths)),
	}
	if model != nil {
		spec.Filter = req.Filter
	}
	for i, path := range cg.paths {
		spec.Pipelines = append(spec.Pipelines, PipelineSpec{
			Name:        names[i],
			Index:       i,
			Path:        graph.PathKey(path),
			Steps:       path,
			StepData:    stepData(cg.graph, path),
			Filter:      model,
			QueryFilter: query,
			Projections: projections,
		})
	}

	a.logger.Info("Assembled funnel group",
		zap.String("group", spec.Name),
		zap.String("schema", spec.Schema),
		zap.Int("steps", cg.graph.Len()),
		zap.Int("pipelines", len(spec.Pipelines)),
		zap.Bool("filtered", model != nil))
	return spec, nil
}

// CompileFilter lowers a filter document against schemaName without
// building a group. Both results are nil for an empty filter.
func (a *Assembler) CompileFilter(ctx context.Context, schemaName string, raw []byte) (filter.Expr, bullet.Filter, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(schemaName) == "" {
		return nil, nil, &RequestError{Field: "schema", Reason: "is required"}
	}
	return a.compileFilter(raw, schemaName)
}

// Projections checks projections against schemaName and fills in aliases.
func (a *Assembler) Projections(schemaName string, in []Projection) ([]Projection, error) {
	return validateProjections(a.provider, schemaName, in)
}

// compileFilter validates the shared filter and lowers it both ways. An
// absent filter, or a root group with no rules, yields nil results.
func (a *Assembler) compileFilter(raw []byte, schemaName string) (filter.Expr, bullet.Filter, error) {
	node, err := filter.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("filter: %w", err)
	}
	if filter.IsEmpty(node) {
		if root, ok := node.(*filter.Logical); ok && root != nil {
			if err := filter.ValidateCondition(root); err != nil {
				return nil, nil, fmt.Errorf("filter: %w", err)
			}
		}
		return nil, nil, nil
	}
	if err := filter.Validate(node); err != nil {
		return nil, nil, fmt.Errorf("filter: %w", err)
	}
	model, err := filter.ToModel(node, schemaName, a.provider)
	if err != nil {
		return nil, nil, fmt.Errorf("filter: %w", err)
	}
	query, err := bullet.Compile(node)
	if err != nil {
		return nil, nil, fmt.Errorf("filter: %w", err)
	}
	return model, query, nil
}

func stepData(g *graph.Graph, path []string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)
	for _, name := range path {
		if step, ok := g.Step(name); ok && len(step.Data) > 0 {
			out[name] = step.Data
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
