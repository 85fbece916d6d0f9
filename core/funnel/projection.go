package funnel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-funnel/core/schema"
)

// validateProjections checks every projection against the schema and
// returns copies with aliases filled in.
func validateProjections(provider schema.MetadataProvider, schemaName string, in []Projection) ([]Projection, error) {
	out := make([]Projection, 0, len(in))
	seen := make(map[string]int, len(in))
	for i, p := range in {
		if p.ID <= 0 {
			return nil, &ProjectionError{Index: i, ID: p.ID, Reason: "field id must be positive"}
		}
		def, err := provider.FieldByID(schemaName, p.ID)
		if err != nil {
			if errors.Is(err, schema.ErrFieldNotFound) || errors.Is(err, schema.ErrSchemaNotFound) {
				return nil, &ProjectionError{Index: i, ID: p.ID, Reason: "field does not exist", Err: err}
			}
			return nil, fmt.Errorf("resolving projection %d: %w", i, err)
		}
		name := strings.TrimSpace(p.Name)
		if name != def.Name {
			return nil, &ProjectionError{Index: i, ID: p.ID, Reason: fmt.Sprintf("name %q does not match stored name %q", name, def.Name)}
		}
		if p.Key != "" && !def.IsKeyed() {
			return nil, &ProjectionError{Index: i, ID: p.ID, Reason: fmt.Sprintf("field %q of type %s has no keys", def.Name, def.Type)}
		}

		p.Name = name
		if p.Alias == "" {
			p.Alias = name
			if p.Key != "" {
				p.Alias = name + "_" + p.Key
			}
		}
		if prev, dup := seen[p.Path()]; dup {
			return nil, &ProjectionError{Index: i, ID: p.ID, Reason: fmt.Sprintf("duplicates projection %d", prev)}
		}
		seen[p.Path()] = i
		out = append(out, p)
	}
	return out, nil
}
