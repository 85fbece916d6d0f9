package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueryBuilder(t *testing.T) {
	qb := NewQueryBuilder()
	require.NotNil(t, qb)
	assert.Equal(t, QueryDSL{}, qb.Build())
}

func TestQueryBuilder_Reset(t *testing.T) {
	qb := NewQueryBuilder().Limit(10).OrderByAsc("name").Where("a").Eq(1)
	assert.NotNil(t, qb.Build().Pagination)

	qb.Reset()
	assert.Equal(t, QueryDSL{}, qb.Build())
}

func TestQueryBuilder_Where(t *testing.T) {
	tests := []struct {
		name     string
		buildFn  func(*QueryBuilder) *QueryBuilder
		operator ComparisonOperator
		value    any
	}{
		{"eq", func(qb *QueryBuilder) *QueryBuilder { return qb.Where("f").Eq("v") }, ComparisonOperatorEq, "v"},
		{"neq", func(qb *QueryBuilder) *QueryBuilder { return qb.Where("f").Neq("v") }, ComparisonOperatorNeq, "v"},
		{"lt", func(qb *QueryBuilder) *QueryBuilder { return qb.Where("f").Lt(10) }, ComparisonOperatorLt, 10},
		{"lte", func(qb *QueryBuilder) *QueryBuilder { return qb.Where("f").Lte(10) }, ComparisonOperatorLte, 10},
		{"gt", func(qb *QueryBuilder) *QueryBuilder { return qb.Where("f").Gt(10) }, ComparisonOperatorGt, 10},
		{"gte", func(qb *QueryBuilder) *QueryBuilder { return qb.Where("f").Gte(10) }, ComparisonOperatorGte, 10},
		{"in", func(qb *QueryBuilder) *QueryBuilder { return qb.Where("f").In("a", "b") }, ComparisonOperatorIn, []any{"a", "b"}},
		{"nin", func(qb *QueryBuilder) *QueryBuilder { return qb.Where("f").Nin("a") }, ComparisonOperatorNin, []any{"a"}},
		{"contains", func(qb *QueryBuilder) *QueryBuilder { return qb.Where("f").Contains("x") }, ComparisonOperatorContains, "x"},
		{"startswith", func(qb *QueryBuilder) *QueryBuilder { return qb.Where("f").StartsWith("x") }, ComparisonOperatorStartsWith, "x"},
		{"exists", func(qb *QueryBuilder) *QueryBuilder { return qb.Where("f").Exists() }, ComparisonOperatorExists, true},
		{"nexists", func(qb *QueryBuilder) *QueryBuilder { return qb.Where("f").NotExists() }, ComparisonOperatorNotExists, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsl := tt.buildFn(NewQueryBuilder()).Build()
			require.NotNil(t, dsl.Filters)
			require.NotNil(t, dsl.Filters.Condition)
			assert.Nil(t, dsl.Filters.Group)
			assert.Equal(t, "f", dsl.Filters.Condition.Field)
			assert.Equal(t, tt.operator, dsl.Filters.Condition.Operator)
			assert.EqualValues(t, tt.value, dsl.Filters.Condition.Value)
		})
	}
}

func TestQueryBuilder_WhereReplacesFilter(t *testing.T) {
	dsl := NewQueryBuilder().Where("a").Eq(1).Where("b").Eq(2).Build()
	require.NotNil(t, dsl.Filters.Condition)
	assert.Equal(t, "b", dsl.Filters.Condition.Field)
}

func TestQueryBuilder_WhereGroup(t *testing.T) {
	dsl := NewQueryBuilder().
		WhereGroup(LogicalOperatorAnd).
		Where("group_id").Eq("g1").
		Group(LogicalOperatorOr, func(g *GroupBuilder) {
			g.Where("name").Eq("a").Where("name").Eq("b")
		}).
		End().
		Build()

	require.NotNil(t, dsl.Filters)
	group := dsl.Filters.Group
	require.NotNil(t, group)
	assert.Equal(t, LogicalOperatorAnd, group.Operator)
	require.Len(t, group.Conditions, 2)

	assert.Equal(t, "group_id", group.Conditions[0].Condition.Field)

	nested := group.Conditions[1].Group
	require.NotNil(t, nested)
	assert.Equal(t, LogicalOperatorOr, nested.Operator)
	require.Len(t, nested.Conditions, 2)
	assert.Equal(t, "b", nested.Conditions[1].Condition.Value)
}

func TestQueryBuilder_SortAndPagination(t *testing.T) {
	dsl := NewQueryBuilder().
		OrderByAsc("position").
		OrderByDesc("created_at").
		Limit(25).
		Offset(50).
		Build()

	assert.Equal(t, []SortConfiguration{
		{Field: "position", Direction: SortDirectionAsc},
		{Field: "created_at", Direction: SortDirectionDesc},
	}, dsl.Sort)
	require.NotNil(t, dsl.Pagination)
	assert.Equal(t, 25, dsl.Pagination.Limit)
	require.NotNil(t, dsl.Pagination.Offset)
	assert.Equal(t, 50, *dsl.Pagination.Offset)
}

func TestQueryBuilder_OffsetWithoutLimit(t *testing.T) {
	dsl := NewQueryBuilder().Offset(5).Build()
	require.NotNil(t, dsl.Pagination)
	assert.Equal(t, -1, dsl.Pagination.Limit)
	assert.Equal(t, 5, *dsl.Pagination.Offset)
}

func TestQueryBuilder_Projection(t *testing.T) {
	dsl := NewQueryBuilder().Select("id", "name").Omit("spec").Build()
	require.NotNil(t, dsl.Projection)
	assert.Equal(t, []ProjectionField{{Name: "id"}, {Name: "name"}}, dsl.Projection.Include)
	assert.Equal(t, []ProjectionField{{Name: "spec"}}, dsl.Projection.Exclude)
}
