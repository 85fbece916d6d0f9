package filter

import (
	"fmt"
	"strings"
)

// Validate checks the structure of a tree without consulting any schema:
// groups must be AND or OR with at least one rule, and every rule needs a
// field and a known operator. Values are checked during ToModel.
func Validate(n Node) error {
	return validate(n, "$")
}

func validate(n Node, path string) error {
	switch n := n.(type) {
	case *Logical:
		if err := validCondition(n, path); err != nil {
			return err
		}
		if len(n.Rules) == 0 {
			return invalid(CodeEmptyGroup, path, "group has no rules")
		}
		for i, child := range n.Rules {
			if err := validate(child, fmt.Sprintf("%s.rules[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case *Relational:
		if name, _ := n.Ref(); name == "" {
			return invalid(CodeMissingField, path, "rule names no field")
		}
		if strings.TrimSpace(n.Operator) == "" {
			return invalid(CodeMissingOperator, path, "rule has no operator")
		}
		if !KnownOperator(n.Operator) {
			return invalid(CodeUnknownOperator, path, "operator %q is not supported", n.Operator)
		}
		return nil
	}
	return malformed(path, "unexpected node %T", n)
}

// ValidateCondition checks only the condition of a logical node. It is the
// check left for a root group with no rules, which filters nothing but must
// still name AND or OR.
func ValidateCondition(n *Logical) error {
	return validCondition(n, "$")
}

func validCondition(n *Logical, path string) error {
	switch strings.ToUpper(strings.TrimSpace(n.Condition)) {
	case "AND", "OR":
		return nil
	}
	return invalid(CodeInvalidCondition, path, "condition %q is not AND or OR", n.Condition)
}

// Fields lists every field name referenced by the tree, in order of first
// appearance.
func Fields(n Node) []string {
	var names []string
	seen := make(map[string]bool)
	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case *Logical:
			for _, child := range n.Rules {
				walk(child)
			}
		case *Relational:
			if name, _ := n.Ref(); name != "" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	walk(n)
	return names
}
