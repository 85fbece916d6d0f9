// Package bullet lowers filter trees into the clause form the streaming
// query engine accepts, rewrites the result and wraps it in a query
// request body.
package bullet

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/asaidimu/go-funnel/core/filter"
)

// Filter is a *Relational or a *Logical clause.
type Filter interface {
	clause()
}

// Relational compares Field against Values with Operation, an engine symbol.
type Relational struct {
	Operation string   `json:"operation"`
	Field     string   `json:"field"`
	Values    []string `json:"values"`
}

// Logical joins Clauses with AND or OR.
type Logical struct {
	Operation string   `json:"operation"`
	Clauses   []Filter `json:"clauses"`
}

func (*Relational) clause() {}
func (*Logical) clause()    {}

// Logical operations.
const (
	And = "AND"
	Or  = "OR"
)

var symbols = map[string]string{
	filter.OpEqual:          "==",
	filter.OpNotEqual:       "!=",
	filter.OpLess:           "<",
	filter.OpGreater:        ">",
	filter.OpLessOrEqual:    "<=",
	filter.OpGreaterOrEqual: ">=",
	filter.OpIsNull:         "==",
	filter.OpIsNotNull:      "!=",
	filter.OpLike:           "LIKE",
	filter.OpNotLike:        "NOT LIKE",
	filter.OpRLike:          "RLIKE",
	filter.OpNotRLike:       "NOT RLIKE",
}

// Symbol maps an operator name to the engine's operation symbol.
func Symbol(op string) (string, bool) {
	s, ok := symbols[filter.NormalizeOperator(op)]
	return s, ok
}

// FieldPath renders a field reference: `name`, or `name."key"` for a map key.
func FieldPath(name, key string) string {
	if key == "" {
		return name
	}
	return name + `."` + key + `"`
}

// String renders a clause for logs and error messages.
func String(f Filter) string {
	switch f := f.(type) {
	case *Relational:
		return fmt.Sprintf("%s %s %v", f.Field, f.Operation, f.Values)
	case *Logical:
		parts := make([]string, len(f.Clauses))
		for i, c := range f.Clauses {
			parts[i] = String(c)
		}
		return "(" + strings.Join(parts, " "+f.Operation+" ") + ")"
	}
	return "<none>"
}

// UnmarshalFilter decodes a clause previously produced by json.Marshal.
// A `clauses` member marks a logical clause.
func UnmarshalFilter(data []byte) (Filter, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding clause: %w", err)
	}
	if probe == nil {
		return nil, nil
	}
	if raw, ok := probe["clauses"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decoding clauses: %w", err)
		}
		l := &Logical{Clauses: make([]Filter, 0, len(items))}
		if err := json.Unmarshal(probe["operation"], &l.Operation); err != nil {
			return nil, fmt.Errorf("decoding operation: %w", err)
		}
		for _, item := range items {
			c, err := UnmarshalFilter(item)
			if err != nil {
				return nil, err
			}
			l.Clauses = append(l.Clauses, c)
		}
		return l, nil
	}
	var r Relational
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding relational clause: %w", err)
	}
	return &r, nil
}
