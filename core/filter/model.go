package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-funnel/core/schema"
)

// Expr is a filter lowered against a schema: a *Condition or a *Group.
type Expr interface {
	expr()
}

// FieldRef identifies a schema field, optionally narrowed to one map key.
type FieldRef struct {
	Schema  string `json:"schema"`
	FieldID int64  `json:"fieldId"`
	Name    string `json:"name"`
	Key     string `json:"key,omitempty"`
}

// Condition is a relational clause whose field has been resolved.
type Condition struct {
	Field    FieldRef                `json:"field"`
	Operator string                  `json:"operator"`
	Value    any                     `json:"value"`
	Def      *schema.FieldDefinition `json:"-"`
}

// Group is a lowered logical node whose rules are all resolved.
type Group struct {
	Name      string `json:"name,omitempty"`
	Condition string `json:"condition"`
	Rules     []Expr `json:"rules"`
}

func (*Condition) expr() {}
func (*Group) expr()     {}

// MarshalJSON tags each rule with its kind so stored models stay readable.
func (g *Group) MarshalJSON() ([]byte, error) {
	type tagged struct {
		Kind string `json:"kind"`
		Expr Expr   `json:"expr"`
	}
	rules := make([]tagged, 0, len(g.Rules))
	for _, r := range g.Rules {
		kind := "condition"
		if _, ok := r.(*Group); ok {
			kind = "group"
		}
		rules = append(rules, tagged{Kind: kind, Expr: r})
	}
	return json.Marshal(struct {
		Name      string   `json:"name,omitempty"`
		Condition string   `json:"condition"`
		Rules     []tagged `json:"rules"`
	}{g.Name, g.Condition, rules})
}

// ToModel lowers n against schemaName. Every field is resolved through the
// provider; an unknown field or a display name that disagrees with the
// stored one fails the whole conversion.
func ToModel(n Node, schemaName string, provider schema.MetadataProvider) (Expr, error) {
	return toModel(n, schemaName, provider, "$")
}

func toModel(n Node, schemaName string, provider schema.MetadataProvider, path string) (Expr, error) {
	switch n := n.(type) {
	case *Relational:
		return toCondition(n, schemaName, provider, path)
	case *Logical:
		g := &Group{
			Name:      n.Name,
			Condition: strings.ToUpper(strings.TrimSpace(n.Condition)),
			Rules:     make([]Expr, 0, len(n.Rules)),
		}
		for i, child := range n.Rules {
			e, err := toModel(child, schemaName, provider, fmt.Sprintf("%s.rules[%d]", path, i))
			if err != nil {
				return nil, err
			}
			g.Rules = append(g.Rules, e)
		}
		return g, nil
	}
	return nil, malformed(path, "unexpected node %T", n)
}

func toCondition(r *Relational, schemaName string, provider schema.MetadataProvider, path string) (*Condition, error) {
	name, key := r.Ref()
	if name == "" {
		return nil, invalid(CodeMissingField, path, "rule names no field")
	}
	op := NormalizeOperator(r.Operator)
	if op == "" {
		return nil, invalid(CodeMissingOperator, path, "rule on %q has no operator", name)
	}
	if !operators[op] {
		return nil, invalid(CodeUnknownOperator, path, "operator %q is not supported", r.Operator)
	}

	def, err := provider.FieldByName(schemaName, name)
	if err != nil {
		if errors.Is(err, schema.ErrFieldNotFound) || errors.Is(err, schema.ErrSchemaNotFound) {
			return nil, &FieldNotFoundError{Schema: schemaName, Field: name, Err: err}
		}
		return nil, fmt.Errorf("resolving field %q: %w", name, err)
	}
	if r.Field != "" {
		if given, _ := SplitIdentifier(r.Field); given != def.Name {
			return nil, &FieldMismatchError{Schema: schemaName, ID: name, Given: given, Stored: def.Name}
		}
	}

	var value any
	if IsNullCheck(op) {
		value = NullSentinel
	} else {
		if isBlank(r.Value) {
			return nil, invalid(CodeMissingValue, path, "rule on %q has no value", name)
		}
		value = r.Value
	}

	return &Condition{
		Field:    FieldRef{Schema: schemaName, FieldID: def.ID, Name: def.Name, Key: key},
		Operator: op,
		Value:    value,
		Def:      def,
	}, nil
}

func isBlank(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	}
	return false
}
