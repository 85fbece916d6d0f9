package bullet

import (
	"time"

	"github.com/asaidimu/go-funnel/core/filter"
)

// Aggregation types understood by the engine.
const (
	AggregationRaw           = "RAW"
	AggregationGroup         = "GROUP"
	AggregationCountDistinct = "COUNT DISTINCT"
	AggregationDistribution  = "DISTRIBUTION"
	AggregationTopK          = "TOP K"
)

const (
	DefaultAggregationSize = 500
	DefaultDuration        = 20 * time.Second
)

type Aggregation struct {
	Fields     map[string]string `json:"fields,omitempty"`
	Type       string            `json:"type"`
	Size       int               `json:"size"`
	Attributes map[string]any    `json:"attributes,omitempty"`
}

type Projection struct {
	Fields map[string]string `json:"fields"`
}

// Query is the request body posted to the engine. Duration is in
// milliseconds.
type Query struct {
	Aggregation Aggregation `json:"aggregation"`
	Projection  *Projection `json:"projection,omitempty"`
	Filters     []Filter    `json:"filters"`
	Duration    int64       `json:"duration"`
}

// QueryOption adjusts a Query built by NewQuery.
type QueryOption func(*Query)

// WithAggregation replaces the default RAW aggregation.
func WithAggregation(a Aggregation) QueryOption {
	return func(q *Query) {
		if a.Type == "" {
			a.Type = AggregationRaw
		}
		if a.Size <= 0 {
			a.Size = DefaultAggregationSize
		}
		q.Aggregation = a
	}
}

// WithProjection selects output fields, keyed by field path with the alias
// as value.
func WithProjection(fields map[string]string) QueryOption {
	return func(q *Query) {
		if len(fields) > 0 {
			q.Projection = &Projection{Fields: fields}
		}
	}
}

func WithDuration(d time.Duration) QueryOption {
	return func(q *Query) {
		if d > 0 {
			q.Duration = d.Milliseconds()
		}
	}
}

// NewQuery wraps f in a request body. A nil f sends an empty filter list.
func NewQuery(f Filter, opts ...QueryOption) *Query {
	q := &Query{
		Aggregation: Aggregation{Type: AggregationRaw, Size: DefaultAggregationSize},
		Filters:     []Filter{},
		Duration:    DefaultDuration.Milliseconds(),
	}
	if f != nil {
		q.Filters = append(q.Filters, f)
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// BuildQuery compiles n and wraps it in a request body.
func BuildQuery(n filter.Node, opts ...QueryOption) (*Query, error) {
	f, err := Compile(n)
	if err != nil {
		return nil, err
	}
	return NewQuery(f, opts...), nil
}
