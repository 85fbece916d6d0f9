// Package filter holds the filter expression tree authored in the funnel
// editor: relational clauses combined by AND/OR groups. It decodes the
// editor's JSON, validates it and lowers it to the domain model that is
// stored with each pipeline.
package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Operators accepted on relational nodes. Matching is case-insensitive.
const (
	OpEqual          = "equal"
	OpNotEqual       = "not_equal"
	OpLess           = "less"
	OpGreater        = "greater"
	OpLessOrEqual    = "less_or_equal"
	OpGreaterOrEqual = "greater_or_equal"
	OpIsNull         = "is_null"
	OpIsNotNull      = "is_not_null"
	OpLike           = "like"
	OpNotLike        = "not_like"
	OpRLike          = "rlike"
	OpNotRLike       = "not_rlike"
)

// Reserved identifiers.
const (
	NullSentinel   = "NULL"
	FilterTagField = "filter_tag"
)

var operators = map[string]bool{
	OpEqual: true, OpNotEqual: true, OpLess: true, OpGreater: true,
	OpLessOrEqual: true, OpGreaterOrEqual: true, OpIsNull: true,
	OpIsNotNull: true, OpLike: true, OpNotLike: true, OpRLike: true,
	OpNotRLike: true,
}

// NormalizeOperator lower-cases and trims an operator name.
func NormalizeOperator(op string) string {
	return strings.ToLower(strings.TrimSpace(op))
}

// KnownOperator reports whether op names one of the supported operators.
func KnownOperator(op string) bool {
	return operators[NormalizeOperator(op)]
}

// IsNullCheck reports whether op is is_null or is_not_null.
func IsNullCheck(op string) bool {
	op = NormalizeOperator(op)
	return op == OpIsNull || op == OpIsNotNull
}

// Node is either a *Relational or a *Logical.
type Node interface {
	node()
}

// Relational is a single comparison. ID and Field both name the field;
// either may carry a map key as name[key].
type Relational struct {
	ID       string   `json:"id,omitempty"`
	Field    string   `json:"field,omitempty"`
	Type     string   `json:"type,omitempty"`
	Input    string   `json:"input,omitempty"`
	Operator string   `json:"operator"`
	Value    any      `json:"value,omitempty"`
	Subfield []string `json:"subfield,omitempty"`
}

// Logical combines child nodes with AND or OR.
type Logical struct {
	Name      string `json:"name,omitempty"`
	Condition string `json:"condition"`
	Rules     []Node `json:"rules"`
}

func (*Relational) node() {}
func (*Logical) node()    {}

// Ref returns the referenced field name and optional map key. The key in
// Subfield wins over one written in the identifier.
func (r *Relational) Ref() (name, key string) {
	ident := r.ID
	if ident == "" {
		ident = r.Field
	}
	name, key = SplitIdentifier(ident)
	if len(r.Subfield) > 0 && r.Subfield[0] != "" {
		key = r.Subfield[0]
	}
	return name, key
}

// SplitIdentifier splits `name[key]` into its parts. Quotes around the key
// are dropped. An identifier without brackets has no key.
func SplitIdentifier(ident string) (name, key string) {
	ident = strings.TrimSpace(ident)
	open := strings.IndexByte(ident, '[')
	if open <= 0 || !strings.HasSuffix(ident, "]") {
		return ident, ""
	}
	key = ident[open+1 : len(ident)-1]
	if len(key) >= 2 && (key[0] == '"' || key[0] == '\'') && key[len(key)-1] == key[0] {
		key = key[1 : len(key)-1]
	}
	return ident[:open], key
}

// IsEmpty reports whether n filters nothing: nil, or a group without rules.
func IsEmpty(n Node) bool {
	switch n := n.(type) {
	case nil:
		return true
	case *Logical:
		return n == nil || len(n.Rules) == 0
	case *Relational:
		return n == nil
	}
	return false
}

// Parse decodes a filter document. Numbers keep their textual form so that
// values such as 10.25 lower without float formatting noise.
func Parse(data []byte) (Node, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &MalformedFilterError{Path: "$", Reason: err.Error()}
	}
	return Decode(raw)
}

// Decode builds a tree from generic JSON values. An object with a
// `condition` key is a Logical node; anything else must carry `id` or
// `field` to be a Relational node.
func Decode(v any) (Node, error) {
	return decode(v, "$")
}

func decode(v any, path string) (Node, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, malformed(path, "expected an object, got %s", kindOf(v))
	}
	if _, ok := obj["condition"]; ok {
		return decodeLogical(obj, path)
	}
	return decodeRelational(obj, path)
}

func decodeLogical(obj map[string]any, path string) (Node, error) {
	condition, err := stringAt(obj, "condition", path)
	if err != nil {
		return nil, err
	}
	name, err := stringAt(obj, "name", path)
	if err != nil {
		return nil, err
	}
	rawRules, present := obj["rules"]
	if !present || rawRules == nil {
		return nil, malformed(path, "group has no rules array")
	}
	items, ok := rawRules.([]any)
	if !ok {
		return nil, malformed(path+".rules", "expected an array, got %s", kindOf(rawRules))
	}

	l := &Logical{Name: name, Condition: condition, Rules: make([]Node, 0, len(items))}
	for i, item := range items {
		child, err := decode(item, fmt.Sprintf("%s.rules[%d]", path, i))
		if err != nil {
			return nil, err
		}
		l.Rules = append(l.Rules, child)
	}
	return l, nil
}

func decodeRelational(obj map[string]any, path string) (Node, error) {
	r := &Relational{}
	var err error
	for key, dst := range map[string]*string{
		"id": &r.ID, "field": &r.Field, "type": &r.Type,
		"input": &r.Input, "operator": &r.Operator,
	} {
		if *dst, err = stringAt(obj, key, path); err != nil {
			return nil, err
		}
	}
	if r.ID == "" && r.Field == "" {
		return nil, malformed(path, "object is neither a group nor a rule")
	}
	r.Value = obj["value"]

	switch sub := obj["subfield"].(type) {
	case nil:
	case string:
		if sub != "" {
			r.Subfield = []string{sub}
		}
	case []any:
		for i, item := range sub {
			s, ok := item.(string)
			if !ok {
				return nil, malformed(fmt.Sprintf("%s.subfield[%d]", path, i), "expected a string, got %s", kindOf(item))
			}
			r.Subfield = append(r.Subfield, s)
		}
	default:
		return nil, malformed(path+".subfield", "expected a string or array, got %s", kindOf(sub))
	}
	return r, nil
}

// stringAt reads an optional string member. Numbers are accepted for ids
// since some editors emit numeric identifiers.
func stringAt(obj map[string]any, key, path string) (string, error) {
	switch v := obj[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		if key == "id" || key == "field" {
			return v.String(), nil
		}
	}
	return "", malformed(path+"."+key, "expected a string, got %s", kindOf(obj[key]))
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	}
	return fmt.Sprintf("%T", v)
}
