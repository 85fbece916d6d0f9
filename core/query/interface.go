package query

import (
	"github.com/asaidimu/go-funnel/core/schema"
)

// QueryGeneratorFactory creates a QueryGenerator bound to one collection schema.
type QueryGeneratorFactory interface {
	CreateGenerator(schema *schema.SchemaDefinition) (QueryGenerator, error)
}

// QueryGenerator translates the DSL into one SQL dialect. Every method
// returns the statement and its positional parameters.
type QueryGenerator interface {
	GenerateSelectSQL(dsl *QueryDSL) (string, []any, error)

	GenerateUpdateSQL(updates map[string]any, filters *QueryFilter) (string, []any, error)

	// GenerateInsertSQL supports batch inserts and returns the stored rows.
	GenerateInsertSQL(records []map[string]any) (string, []any, error)

	// GenerateDeleteSQL refuses a nil filter unless unsafeDelete is set.
	GenerateDeleteSQL(filters *QueryFilter, unsafeDelete bool) (string, []any, error)
}
