// Package query is the storage-side query language: filters, sorting,
// pagination and projection over persisted documents. Dialect packages
// (see sqlite) turn a QueryDSL into SQL.
//
// It is unrelated to the engine filters built by package bullet; this one
// only ever runs against the service's own database.
package query

import (
	"github.com/asaidimu/go-funnel/core/schema"
)

// Logical operators for combining filter conditions.
const (
	LogicalOperatorAnd = schema.LogicalAnd
	LogicalOperatorOr  = schema.LogicalOr
)

// ComparisonOperator defines the set of operators that can be used in a filter condition.
type ComparisonOperator string

const (
	ComparisonOperatorEq          ComparisonOperator = "eq"
	ComparisonOperatorNeq         ComparisonOperator = "neq"
	ComparisonOperatorLt          ComparisonOperator = "lt"
	ComparisonOperatorLte         ComparisonOperator = "lte"
	ComparisonOperatorGt          ComparisonOperator = "gt"
	ComparisonOperatorGte         ComparisonOperator = "gte"
	ComparisonOperatorIn          ComparisonOperator = "in"
	ComparisonOperatorNin         ComparisonOperator = "nin"
	ComparisonOperatorContains    ComparisonOperator = "contains"
	ComparisonOperatorNotContains ComparisonOperator = "ncontains"
	ComparisonOperatorStartsWith  ComparisonOperator = "startswith"
	ComparisonOperatorEndsWith    ComparisonOperator = "endswith"
	ComparisonOperatorExists      ComparisonOperator = "exists"
	ComparisonOperatorNotExists   ComparisonOperator = "nexists"
)

// FilterValue is the right-hand side of a condition.
type FilterValue any

// FilterCondition compares one field with a value.
type FilterCondition struct {
	Field    string
	Operator ComparisonOperator
	Value    FilterValue
}

// FilterGroup joins conditions or nested groups with AND or OR.
type FilterGroup struct {
	Operator   schema.LogicalOperator
	Conditions []QueryFilter
}

// QueryFilter holds exactly one of Condition or Group.
type QueryFilter struct {
	Condition *FilterCondition `json:",omitempty"`
	Group     *FilterGroup     `json:",omitempty"`
}

type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

type SortConfiguration struct {
	Field     string
	Direction SortDirection
}

// PaginationOptions limits a result set. Only offset pagination is
// supported by the SQLite generator.
type PaginationOptions struct {
	Limit  int
	Offset *int `json:",omitempty"`
}

type ProjectionField struct {
	Name string
}

// ProjectionConfiguration selects the returned columns. Exclude is applied
// after Include by the executor.
type ProjectionConfiguration struct {
	Include []ProjectionField `json:",omitempty"`
	Exclude []ProjectionField `json:",omitempty"`
}

// QueryDSL is a complete read query.
type QueryDSL struct {
	Filters    *QueryFilter             `json:",omitempty"`
	Sort       []SortConfiguration      `json:",omitempty"`
	Pagination *PaginationOptions       `json:",omitempty"`
	Projection *ProjectionConfiguration `json:",omitempty"`
}

// QueryResult carries the rows of a read, or the rows touched by a write.
type QueryResult struct {
	Data  []schema.Document `json:"data"`
	Count int               `json:"count"`
}

// First returns the first row, or nil.
func (r *QueryResult) First() schema.Document {
	if r == nil || len(r.Data) == 0 {
		return nil
	}
	return r.Data[0]
}

var standardComparisonOperators = map[ComparisonOperator]struct{}{
	ComparisonOperatorEq:          {},
	ComparisonOperatorNeq:         {},
	ComparisonOperatorLt:          {},
	ComparisonOperatorLte:         {},
	ComparisonOperatorGt:          {},
	ComparisonOperatorGte:         {},
	ComparisonOperatorIn:          {},
	ComparisonOperatorNin:         {},
	ComparisonOperatorContains:    {},
	ComparisonOperatorNotContains: {},
	ComparisonOperatorStartsWith:  {},
	ComparisonOperatorEndsWith:    {},
	ComparisonOperatorExists:      {},
	ComparisonOperatorNotExists:   {},
}

// IsStandard reports whether the SQL generators know the operator.
func (c ComparisonOperator) IsStandard() bool {
	_, ok := standardComparisonOperators[c]
	return ok
}
