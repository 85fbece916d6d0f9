package persistence

import (
	"context"

	"github.com/asaidimu/go-funnel/core/query"
	"github.com/asaidimu/go-funnel/core/schema"
	"go.uber.org/zap"
)

// Executor runs collection operations against a DatabaseInteractor and
// shapes the rows into a QueryResult.
type Executor struct {
	interactor DatabaseInteractor
	logger     *zap.Logger
}

func NewExecutor(interactor DatabaseInteractor, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		interactor: interactor,
		logger:     logger,
	}
}

// Query runs a read. Excluded projection fields are dropped after the rows
// come back, since SQL has no way to express them.
func (e *Executor) Query(ctx context.Context, schema *schema.SchemaDefinition, dsl *query.QueryDSL) (*query.QueryResult, error) {
	rows, err := e.interactor.SelectDocuments(ctx, schema, dsl)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Fetched rows", zap.String("collection", schema.Name), zap.Int("count", len(rows)))

	if dsl != nil && dsl.Projection != nil && len(dsl.Projection.Exclude) > 0 {
		for _, row := range rows {
			for _, f := range dsl.Projection.Exclude {
				delete(row, f.Name)
			}
		}
	}
	return result(rows), nil
}

// Update performs an update operation on the database.
func (e *Executor) Update(ctx context.Context, schema *schema.SchemaDefinition, updates map[string]any, filters *query.QueryFilter) (int64, error) {
	return e.interactor.UpdateDocuments(ctx, schema, updates, filters)
}

// Insert performs an insert operation and atomically returns the inserted records.
func (e *Executor) Insert(ctx context.Context, schema *schema.SchemaDefinition, records []map[string]any) (*query.QueryResult, error) {
	rows, err := e.interactor.InsertDocuments(ctx, schema, records)
	if err != nil {
		return nil, err
	}
	return result(rows), nil
}

// Delete performs a delete operation with optional filters for safety.
func (e *Executor) Delete(ctx context.Context, schema *schema.SchemaDefinition, filters *query.QueryFilter, unsafeDelete bool) (int64, error) {
	return e.interactor.DeleteDocuments(ctx, schema, filters, unsafeDelete)
}

func result(rows []schema.Document) *query.QueryResult {
	if rows == nil {
		rows = []schema.Document{}
	}
	return &query.QueryResult{Data: rows, Count: len(rows)}
}
