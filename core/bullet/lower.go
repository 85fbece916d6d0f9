package bullet

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/asaidimu/go-funnel/core/filter"
)

// UnknownOperatorError is returned for an operator outside the table.
type UnknownOperatorError struct {
	Operator string
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown filter operator %q", e.Operator)
}

// ToQueryFilter lowers a filter tree. Groups left without clauses collapse
// to nil, so a nil Filter with a nil error means "no filter".
func ToQueryFilter(n filter.Node) (Filter, error) {
	switch n := n.(type) {
	case nil:
		return nil, nil
	case *filter.Relational:
		return lowerRelational(n)
	case *filter.Logical:
		return lowerLogical(n)
	}
	return nil, fmt.Errorf("%w: unexpected node %T", filter.ErrMalformedFilter, n)
}

func lowerRelational(r *filter.Relational) (Filter, error) {
	symbol, ok := Symbol(r.Operator)
	if !ok {
		return nil, &UnknownOperatorError{Operator: r.Operator}
	}
	name, key := r.Ref()
	values := []string{filter.NullSentinel}
	if !filter.IsNullCheck(r.Operator) {
		values = Values(r.Value)
	}
	return &Relational{
		Operation: symbol,
		Field:     FieldPath(name, key),
		Values:    values,
	}, nil
}

func lowerLogical(l *filter.Logical) (Filter, error) {
	clauses := make([]Filter, 0, len(l.Rules))
	for _, rule := range l.Rules {
		c, err := ToQueryFilter(rule)
		if err != nil {
			return nil, err
		}
		if c != nil {
			clauses = append(clauses, c)
		}
	}
	if len(clauses) == 0 {
		return nil, nil
	}
	return &Logical{
		Operation: strings.ToUpper(strings.TrimSpace(l.Condition)),
		Clauses:   clauses,
	}, nil
}

// Values stringifies a rule value. Arrays yield one string per element.
func Values(v any) []string {
	switch v := v.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, stringify(item))
		}
		return out
	case []string:
		return append([]string(nil), v...)
	}
	return []string{stringify(v)}
}

func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprint(v)
}
