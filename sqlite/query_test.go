package sqlite

import (
	"testing"

	"github.com/asaidimu/go-funnel/core/query"
	"github.com/asaidimu/go-funnel/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *schema.SchemaDefinition {
	return &schema.SchemaDefinition{
		Name:    "pipelines",
		Version: "1.0.0",
		Fields: map[string]*schema.FieldDefinition{
			"id":       {Name: "id", Type: schema.FieldTypeString},
			"name":     {Name: "name", Type: schema.FieldTypeString},
			"position": {Name: "position", Type: schema.FieldTypeInteger},
			"active":   {Name: "active", Type: schema.FieldTypeBoolean},
			"steps":    {Name: "steps", Type: schema.FieldTypeArray},
			"spec":     {Name: "spec", Type: schema.FieldTypeRecord},
			"status":   {Name: "status", Type: schema.FieldTypeEnum, Values: []any{"draft", "live"}},
		},
	}
}

func newTestQuery(t *testing.T, prefix string) *SqliteQuery {
	t.Helper()
	q, err := NewSqliteQuery(testSchema(), prefix)
	require.NoError(t, err)
	return q
}

func TestNewSqliteQuery_Rejects(t *testing.T) {
	_, err := NewSqliteQuery(nil, "")
	assert.Error(t, err)

	_, err = NewSqliteQuery(&schema.SchemaDefinition{}, "")
	assert.Error(t, err)
}

func TestGenerateSelectSQL(t *testing.T) {
	tests := []struct {
		name   string
		dsl    query.QueryDSL
		sql    string
		params []any
	}{
		{
			name: "all rows",
			dsl:  query.QueryDSL{},
			sql:  `SELECT * FROM "fn_pipelines";`,
		},
		{
			name:   "single condition",
			dsl:    query.NewQueryBuilder().Where("name").Eq("checkout").Build(),
			sql:    `SELECT * FROM "fn_pipelines" WHERE "name" = ?;`,
			params: []any{"checkout"},
		},
		{
			name: "group with nested path and sort",
			dsl: query.NewQueryBuilder().
				WhereGroup(query.LogicalOperatorAnd).
				Where("spec.name").Eq("a").
				Where("active").Eq(true).
				End().
				OrderByAsc("position").
				Build(),
			sql:    `SELECT * FROM "fn_pipelines" WHERE (json_extract("spec", '$.name') = ? AND "active" = ?) ORDER BY "position" ASC;`,
			params: []any{"a", 1},
		},
		{
			name:   "membership",
			dsl:    query.NewQueryBuilder().Where("status").In("draft", "live").Build(),
			sql:    `SELECT * FROM "fn_pipelines" WHERE "status" IN (?, ?);`,
			params: []any{"draft", "live"},
		},
		{
			name: "empty membership",
			dsl:  query.NewQueryBuilder().Where("status").In().Build(),
			sql:  `SELECT * FROM "fn_pipelines" WHERE 1=0;`,
		},
		{
			name:   "prefix match",
			dsl:    query.NewQueryBuilder().Where("name").StartsWith("check").Build(),
			sql:    `SELECT * FROM "fn_pipelines" WHERE "name" LIKE ?;`,
			params: []any{"check%"},
		},
		{
			name: "existence",
			dsl:  query.NewQueryBuilder().Where("spec").NotExists().Build(),
			sql:  `SELECT * FROM "fn_pipelines" WHERE "spec" IS NULL;`,
		},
		{
			name: "projection and pagination",
			dsl:  query.NewQueryBuilder().Select("id", "name").OrderByDesc("name").Limit(10).Offset(20).Build(),
			sql:  `SELECT "id" AS "id", "name" AS "name" FROM "fn_pipelines" ORDER BY "name" DESC LIMIT 10 OFFSET 20;`,
		},
		{
			name: "offset without limit",
			dsl:  query.NewQueryBuilder().Offset(5).Build(),
			sql:  `SELECT * FROM "fn_pipelines" LIMIT -1 OFFSET 5;`,
		},
	}

	q := newTestQuery(t, "fn_")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := q.GenerateSelectSQL(&tt.dsl)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestGenerateSelectSQL_Errors(t *testing.T) {
	q := newTestQuery(t, "")

	_, _, err := q.GenerateSelectSQL(nil)
	assert.Error(t, err)

	dsl := query.NewQueryBuilder().Where("missing").Eq(1).Build()
	_, _, err = q.GenerateSelectSQL(&dsl)
	assert.ErrorContains(t, err, "missing")

	dsl = query.NewQueryBuilder().Where("name.inner").Eq(1).Build()
	_, _, err = q.GenerateSelectSQL(&dsl)
	assert.ErrorContains(t, err, "does not support nested querying")

	dsl = query.QueryDSL{Filters: &query.QueryFilter{Condition: &query.FilterCondition{Field: "name", Operator: "rlike", Value: "x"}}}
	_, _, err = q.GenerateSelectSQL(&dsl)
	assert.ErrorContains(t, err, "unsupported comparison operator")

	dsl = query.QueryDSL{Filters: &query.QueryFilter{}}
	_, _, err = q.GenerateSelectSQL(&dsl)
	assert.Error(t, err)
}

func TestGenerateInsertSQL(t *testing.T) {
	q := newTestQuery(t, "")

	sql, params, err := q.GenerateInsertSQL([]map[string]any{
		{"id": "a", "steps": []string{"s1", "s2"}, "active": false},
		{"id": "b", "name": "second"},
	})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "pipelines" ("active", "id", "name", "steps") VALUES (?, ?, ?, ?), (?, ?, ?, ?) RETURNING *;`, sql)
	assert.Equal(t, []any{0, "a", nil, `["s1","s2"]`, nil, "b", "second", nil}, params)

	_, _, err = q.GenerateInsertSQL(nil)
	assert.Error(t, err)

	_, _, err = q.GenerateInsertSQL([]map[string]any{{"unknown": 1}})
	assert.ErrorContains(t, err, "unknown")
}

func TestGenerateUpdateSQL(t *testing.T) {
	q := newTestQuery(t, "")
	filter := query.NewQueryBuilder().Where("id").Eq("a").Build().Filters

	sql, params, err := q.GenerateUpdateSQL(map[string]any{"position": 2, "name": "x"}, filter)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "pipelines" SET "name" = ?, "position" = ? WHERE "id" = ?;`, sql)
	assert.Equal(t, []any{"x", 2, "a"}, params)

	_, _, err = q.GenerateUpdateSQL(nil, filter)
	assert.Error(t, err)
}

func TestGenerateDeleteSQL(t *testing.T) {
	q := newTestQuery(t, "")

	_, _, err := q.GenerateDeleteSQL(nil, false)
	assert.Error(t, err)

	sql, params, err := q.GenerateDeleteSQL(nil, true)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "pipelines";`, sql)
	assert.Empty(t, params)

	filter := query.NewQueryBuilder().Where("id").Neq("a").Build().Filters
	sql, params, err = q.GenerateDeleteSQL(filter, false)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "pipelines" WHERE "id" != ?;`, sql)
	assert.Equal(t, []any{"a"}, params)
}

func TestPrepareValueForQuery(t *testing.T) {
	q := newTestQuery(t, "")

	tests := []struct {
		field string
		in    any
		out   any
	}{
		{"active", true, 1},
		{"active", "false", 0},
		{"active", float64(1), 1},
		{"spec", map[string]any{"a": 1}, `{"a":1}`},
		{"spec", `{"a":1}`, `{"a":1}`},
		{"status", "live", "live"},
		{"position", 3, 3},
		{"name", nil, nil},
		{"spec.a", 1, 1},
	}
	for _, tt := range tests {
		got, err := q.prepareValueForQuery(tt.field, tt.in)
		require.NoError(t, err, tt.field)
		assert.Equal(t, tt.out, got, tt.field)
	}

	_, err := q.prepareValueForQuery("active", "maybe")
	assert.Error(t, err)
}
