// Package funnel assembles funnel groups: it canonicalizes the step graph,
// splits it into one linear pipeline per root-to-sink path and attaches the
// group's shared filter and projections to each pipeline.
package funnel

import (
	"encoding/json"

	"github.com/asaidimu/go-funnel/core/bullet"
	"github.com/asaidimu/go-funnel/core/filter"
	"github.com/asaidimu/go-funnel/core/graph"
)

// Projection selects an output column. Key narrows a map field to one
// entry; Aggregation is passed to the engine as is.
type Projection struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Key         string `json:"key,omitempty"`
	Alias       string `json:"alias,omitempty"`
	Aggregation string `json:"aggregation,omitempty"`
}

// Path returns the engine field path of the projection.
func (p Projection) Path() string {
	return bullet.FieldPath(p.Name, p.Key)
}

// GroupRequest is the document the editor submits.
type GroupRequest struct {
	Name        string          `json:"name"`
	Schema      string          `json:"schema"`
	Description string          `json:"description,omitempty"`
	Topology    json.RawMessage `json:"topology"`
	Filter      json.RawMessage `json:"filter,omitempty"`
	Projections []Projection    `json:"projections,omitempty"`
	// PipelineNames maps a path key (graph.PathKey) to the pipeline name.
	PipelineNames map[string]string `json:"pipelineNames,omitempty"`
}

// PipelineSpec is one linear funnel.
type PipelineSpec struct {
	Name        string                     `json:"name"`
	Index       int                        `json:"index"`
	Path        string                     `json:"path"`
	Steps       []string                   `json:"steps"`
	StepData    map[string]json.RawMessage `json:"stepData,omitempty"`
	Filter      filter.Expr                `json:"filter,omitempty"`
	QueryFilter bullet.Filter              `json:"queryFilter,omitempty"`
	Projections []Projection               `json:"projections,omitempty"`
}

// Query builds the engine request body for this pipeline.
func (p *PipelineSpec) Query(opts ...bullet.QueryOption) *bullet.Query {
	if len(p.Projections) > 0 {
		fields := make(map[string]string, len(p.Projections))
		for _, proj := range p.Projections {
			fields[proj.Path()] = proj.Alias
		}
		opts = append([]bullet.QueryOption{bullet.WithProjection(fields)}, opts...)
	}
	return bullet.NewQuery(p.QueryFilter, opts...)
}

// GroupSpec is the compiled group.
type GroupSpec struct {
	Name        string          `json:"name"`
	Schema      string          `json:"schema"`
	Description string          `json:"description,omitempty"`
	Steps       []graph.Step    `json:"steps"`
	Edges       []graph.Edge    `json:"edges"`
	Levels      [][]string      `json:"levels"`
	Topology    json.RawMessage `json:"topology"`
	Filter      json.RawMessage `json:"filter,omitempty"`
	Pipelines   []PipelineSpec  `json:"pipelines"`
}

// PathPreview describes one path before names are assigned.
type PathPreview struct {
	Key   string   `json:"key"`
	Steps []string `json:"steps"`
	Name  string   `json:"name,omitempty"`
}

// Preview is what the editor needs to ask for pipeline names.
type Preview struct {
	Edges  []graph.Edge  `json:"edges"`
	Levels [][]string    `json:"levels"`
	Paths  []PathPreview `json:"paths"`
}
