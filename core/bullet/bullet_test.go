package bullet

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/asaidimu/go-funnel/core/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, doc string) filter.Node {
	t.Helper()
	n, err := filter.Parse([]byte(doc))
	require.NoError(t, err)
	return n
}

func TestHappyPath(t *testing.T) {
	n := parse(t, `{
		"condition": "AND",
		"rules": [
			{"id": "price", "field": "price", "operator": "less", "value": 10.25},
			{"condition": "OR", "rules": [
				{"id": "category", "field": "category", "operator": "equal", "value": 2},
				{"id": "category[\"_A\"]", "field": "category", "operator": "equal", "value": 1},
				{"id": "filter", "field": "filter", "operator": "is_not_null", "value": "x"}
			]}
		]
	}`)

	f, err := Compile(n)
	require.NoError(t, err)

	want := &Logical{Operation: And, Clauses: []Filter{
		&Relational{Operation: "<", Field: "price", Values: []string{"10.25"}},
		&Logical{Operation: Or, Clauses: []Filter{
			&Relational{Operation: "==", Field: "category", Values: []string{"2"}},
			&Relational{Operation: "==", Field: `category."_A"`, Values: []string{"1"}},
			&Relational{Operation: "!=", Field: "filter", Values: []string{"NULL"}},
		}},
	}}
	assert.Equal(t, want, f)
}

func TestFilterTagIsNull(t *testing.T) {
	n := parse(t, `{
		"condition": "AND",
		"rules": [
			{"id": "price", "field": "price", "operator": "less", "value": 10.25},
			{"id": "filter_tag", "field": "filter_tag", "operator": "is_null"}
		]
	}`)

	lowered, err := ToQueryFilter(n)
	require.NoError(t, err)
	require.Len(t, lowered.(*Logical).Clauses, 2)

	f := Rewrite(lowered, DefaultRules()...)
	want := &Logical{Operation: And, Clauses: []Filter{
		&Relational{Operation: "<", Field: "price", Values: []string{"10.25"}},
	}}
	assert.Equal(t, want, f)
	assert.Len(t, lowered.(*Logical).Clauses, 2, "rewrite must not modify its input")
}

func TestFilterTagNullRule_Idempotent(t *testing.T) {
	docs := []string{
		`{"condition":"AND","rules":[{"id":"filter_tag","operator":"is_null"},{"id":"a","operator":"equal","value":1}]}`,
		`{"condition":"OR","rules":[{"condition":"AND","rules":[{"id":"filter_tag","operator":"equal","value":"NULL"}]},{"id":"b","operator":"like","value":"%x%"}]}`,
		`{"id":"filter_tag","operator":"is_null"}`,
		`{"id":"filter_tag","operator":"is_not_null"}`,
	}
	rule := FilterTagNullRule{}
	for _, doc := range docs {
		f, err := ToQueryFilter(parse(t, doc))
		require.NoError(t, err)
		once := rule.Apply(f)
		twice := Rewrite(once, rule)
		assert.Equal(t, once, twice, doc)
	}
}

func TestRewrite_CollapsesToNil(t *testing.T) {
	f, err := Compile(parse(t, `{"condition":"AND","rules":[{"condition":"OR","rules":[{"id":"filter_tag","operator":"is_null"}]}]}`))
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = Compile(parse(t, `{"id":"filter_tag","operator":"is_not_null"}`))
	require.NoError(t, err)
	assert.Equal(t, &Relational{Operation: "!=", Field: "filter_tag", Values: []string{"NULL"}}, f)
}

func TestOperatorTable(t *testing.T) {
	want := map[string]string{
		"equal": "==", "not_equal": "!=", "less": "<", "greater": ">",
		"less_or_equal": "<=", "greater_or_equal": ">=", "is_null": "==",
		"is_not_null": "!=", "like": "LIKE", "not_like": "NOT LIKE",
		"rlike": "RLIKE", "not_rlike": "NOT RLIKE",
	}
	for op, symbol := range want {
		got, ok := Symbol(op)
		require.True(t, ok, op)
		assert.Equal(t, symbol, got, op)

		upper, ok := Symbol(" " + strings.ToUpper(op) + " ")
		require.True(t, ok, op)
		assert.Equal(t, symbol, upper)

		f, err := ToQueryFilter(&filter.Relational{ID: "a", Operator: op, Value: "v"})
		require.NoError(t, err)
		r := f.(*Relational)
		assert.Equal(t, symbol, r.Operation)
		if op == "is_null" || op == "is_not_null" {
			assert.Equal(t, []string{"NULL"}, r.Values)
		} else {
			assert.Equal(t, []string{"v"}, r.Values)
		}
	}

	_, err := ToQueryFilter(&filter.Relational{ID: "a", Operator: "between"})
	var opErr *UnknownOperatorError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "between", opErr.Operator)
}

func TestValues(t *testing.T) {
	assert.Equal(t, []string{}, Values(nil))
	assert.Equal(t, []string{"a"}, Values("a"))
	assert.Equal(t, []string{"1", "2.5", "true"}, Values([]any{json.Number("1"), 2.5, true}))
	assert.Equal(t, []string{"7"}, Values(7))
	assert.Equal(t, []string{"x", "y"}, Values([]string{"x", "y"}))
}

func TestLowering_EmptyGroups(t *testing.T) {
	f, err := ToQueryFilter(parse(t, `{"condition":"AND","rules":[{"condition":"OR","rules":[]},{"id":"a","operator":"equal","value":1}]}`))
	require.NoError(t, err)
	assert.Equal(t, &Logical{Operation: And, Clauses: []Filter{
		&Relational{Operation: "==", Field: "a", Values: []string{"1"}},
	}}, f)

	f, err = ToQueryFilter(nil)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestUnmarshalFilter(t *testing.T) {
	f, err := Compile(parse(t, `{"condition":"and","rules":[{"id":"a","operator":"equal","value":[1,2]},{"condition":"or","rules":[{"id":"b","operator":"rlike","value":"^x"}]}]}`))
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"operation":"AND","clauses":[{"operation":"==","field":"a","values":["1","2"]},{"operation":"OR","clauses":[{"operation":"RLIKE","field":"b","values":["^x"]}]}]}`, string(data))

	back, err := UnmarshalFilter(data)
	require.NoError(t, err)
	assert.Equal(t, f, back)
	assert.Equal(t, "(a == [1 2] AND (b RLIKE [^x]))", String(back))
}

func TestNewQuery(t *testing.T) {
	q := NewQuery(nil)
	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, `{"aggregation":{"type":"RAW","size":500},"filters":[],"duration":20000}`, string(data))

	f := &Relational{Operation: "==", Field: "a", Values: []string{"1"}}
	q = NewQuery(f,
		WithAggregation(Aggregation{Type: AggregationGroup, Fields: map[string]string{"a": "A"}}),
		WithProjection(map[string]string{"b": "B"}),
		WithDuration(time.Minute))
	assert.Equal(t, AggregationGroup, q.Aggregation.Type)
	assert.Equal(t, DefaultAggregationSize, q.Aggregation.Size)
	assert.Equal(t, map[string]string{"b": "B"}, q.Projection.Fields)
	assert.Equal(t, int64(60000), q.Duration)
	assert.Equal(t, []Filter{f}, q.Filters)
}
