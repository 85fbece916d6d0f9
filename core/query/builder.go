package query

import (
	"github.com/asaidimu/go-funnel/core/schema"
)

// QueryBuilder builds a QueryDSL fluently:
//
//	dsl := NewQueryBuilder().Where("group_id").Eq(id).OrderByAsc("position").Build()
type QueryBuilder struct {
	query QueryDSL
}

func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// Build returns the constructed QueryDSL.
func (qb *QueryBuilder) Build() QueryDSL {
	return qb.query
}

// Reset clears the builder.
func (qb *QueryBuilder) Reset() *QueryBuilder {
	qb.query = QueryDSL{}
	return qb
}

// Where starts a single-condition filter. It replaces any filter set before.
func (qb *QueryBuilder) Where(field string) *ConditionBuilder[*QueryBuilder] {
	return &ConditionBuilder[*QueryBuilder]{field: field, add: func(f QueryFilter) *QueryBuilder {
		qb.query.Filters = &f
		return qb
	}}
}

// WhereGroup starts a grouped filter; End attaches it to the query.
func (qb *QueryBuilder) WhereGroup(operator schema.LogicalOperator) *GroupBuilder {
	return &GroupBuilder{operator: operator, done: func(f QueryFilter) *QueryBuilder {
		qb.query.Filters = &f
		return qb
	}}
}

// ConditionBuilder completes a condition on one field and hands control
// back to whatever started it.
type ConditionBuilder[T any] struct {
	field string
	add   func(QueryFilter) T
}

func (cb *ConditionBuilder[T]) op(operator ComparisonOperator, value FilterValue) T {
	return cb.add(QueryFilter{Condition: &FilterCondition{Field: cb.field, Operator: operator, Value: value}})
}

func (cb *ConditionBuilder[T]) Eq(value FilterValue) T  { return cb.op(ComparisonOperatorEq, value) }
func (cb *ConditionBuilder[T]) Neq(value FilterValue) T { return cb.op(ComparisonOperatorNeq, value) }
func (cb *ConditionBuilder[T]) Lt(value FilterValue) T  { return cb.op(ComparisonOperatorLt, value) }
func (cb *ConditionBuilder[T]) Lte(value FilterValue) T { return cb.op(ComparisonOperatorLte, value) }
func (cb *ConditionBuilder[T]) Gt(value FilterValue) T  { return cb.op(ComparisonOperatorGt, value) }
func (cb *ConditionBuilder[T]) Gte(value FilterValue) T { return cb.op(ComparisonOperatorGte, value) }

func (cb *ConditionBuilder[T]) In(values ...FilterValue) T {
	return cb.op(ComparisonOperatorIn, toAnySlice(values))
}

func (cb *ConditionBuilder[T]) Nin(values ...FilterValue) T {
	return cb.op(ComparisonOperatorNin, toAnySlice(values))
}

func (cb *ConditionBuilder[T]) Contains(value FilterValue) T {
	return cb.op(ComparisonOperatorContains, value)
}

func (cb *ConditionBuilder[T]) StartsWith(value FilterValue) T {
	return cb.op(ComparisonOperatorStartsWith, value)
}

func (cb *ConditionBuilder[T]) Exists() T    { return cb.op(ComparisonOperatorExists, true) }
func (cb *ConditionBuilder[T]) NotExists() T { return cb.op(ComparisonOperatorNotExists, true) }

// GroupBuilder collects conditions and nested groups.
type GroupBuilder struct {
	operator   schema.LogicalOperator
	conditions []QueryFilter
	done       func(QueryFilter) *QueryBuilder
}

// Where adds a condition to the group.
func (gb *GroupBuilder) Where(field string) *ConditionBuilder[*GroupBuilder] {
	return &ConditionBuilder[*GroupBuilder]{field: field, add: func(f QueryFilter) *GroupBuilder {
		gb.conditions = append(gb.conditions, f)
		return gb
	}}
}

// Group adds a nested group built by fn.
func (gb *GroupBuilder) Group(operator schema.LogicalOperator, fn func(*GroupBuilder)) *GroupBuilder {
	nested := &GroupBuilder{operator: operator}
	fn(nested)
	gb.conditions = append(gb.conditions, nested.filter())
	return gb
}

// End attaches the group to the query.
func (gb *GroupBuilder) End() *QueryBuilder {
	return gb.done(gb.filter())
}

func (gb *GroupBuilder) filter() QueryFilter {
	return QueryFilter{Group: &FilterGroup{Operator: gb.operator, Conditions: gb.conditions}}
}

func (qb *QueryBuilder) OrderBy(field string, direction SortDirection) *QueryBuilder {
	qb.query.Sort = append(qb.query.Sort, SortConfiguration{Field: field, Direction: direction})
	return qb
}

func (qb *QueryBuilder) OrderByAsc(field string) *QueryBuilder {
	return qb.OrderBy(field, SortDirectionAsc)
}

func (qb *QueryBuilder) OrderByDesc(field string) *QueryBuilder {
	return qb.OrderBy(field, SortDirectionDesc)
}

func (qb *QueryBuilder) Limit(limit int) *QueryBuilder {
	if qb.query.Pagination == nil {
		qb.query.Pagination = &PaginationOptions{}
	}
	qb.query.Pagination.Limit = limit
	return qb
}

func (qb *QueryBuilder) Offset(offset int) *QueryBuilder {
	if qb.query.Pagination == nil {
		qb.query.Pagination = &PaginationOptions{Limit: -1}
	}
	qb.query.Pagination.Offset = &offset
	return qb
}

// Select restricts the returned columns.
func (qb *QueryBuilder) Select(fields ...string) *QueryBuilder {
	if qb.query.Projection == nil {
		qb.query.Projection = &ProjectionConfiguration{}
	}
	for _, f := range fields {
		qb.query.Projection.Include = append(qb.query.Projection.Include, ProjectionField{Name: f})
	}
	return qb
}

// Omit drops columns from the result.
func (qb *QueryBuilder) Omit(fields ...string) *QueryBuilder {
	if qb.query.Projection == nil {
		qb.query.Projection = &ProjectionConfiguration{}
	}
	for _, f := range fields {
		qb.query.Projection.Exclude = append(qb.query.Projection.Exclude, ProjectionField{Name: f})
	}
	return qb
}

func toAnySlice(values []FilterValue) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
