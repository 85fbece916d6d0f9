package bullet

import "github.com/asaidimu/go-funnel/core/filter"

// Rule transforms a lowered filter. Apply must not modify its input and
// may return nil to drop the filter entirely.
type Rule interface {
	Name() string
	Apply(f Filter) Filter
}

// FilterTagNullRule drops `filter_tag == NULL` clauses. The editor adds
// them as placeholders and the engine has no such column.
type FilterTagNullRule struct{}

func (FilterTagNullRule) Name() string { return "filter-tag-null" }

func (FilterTagNullRule) Apply(f Filter) Filter {
	return Prune(f, func(r *Relational) bool {
		return r.Field == filter.FilterTagField &&
			r.Operation == "==" &&
			len(r.Values) == 1 &&
			r.Values[0] == filter.NullSentinel
	})
}

// DefaultRules is the rule set applied by Compile.
func DefaultRules() []Rule {
	return []Rule{FilterTagNullRule{}}
}

// Prune removes every relational clause matching drop and collapses
// logical clauses left empty. The input is not modified.
func Prune(f Filter, drop func(*Relational) bool) Filter {
	switch f := f.(type) {
	case *Relational:
		if drop(f) {
			return nil
		}
		return f
	case *Logical:
		clauses := make([]Filter, 0, len(f.Clauses))
		for _, c := range f.Clauses {
			if kept := Prune(c, drop); kept != nil {
				clauses = append(clauses, kept)
			}
		}
		if len(clauses) == 0 {
			return nil
		}
		return &Logical{Operation: f.Operation, Clauses: clauses}
	}
	return nil
}

// Rewrite applies rules in order.
func Rewrite(f Filter, rules ...Rule) Filter {
	for _, rule := range rules {
		if f == nil {
			return nil
		}
		f = rule.Apply(f)
	}
	return f
}

// Compile lowers n and applies the default rules.
func Compile(n filter.Node) (Filter, error) {
	f, err := ToQueryFilter(n)
	if err != nil {
		return nil, err
	}
	return Rewrite(f, DefaultRules()...), nil
}
