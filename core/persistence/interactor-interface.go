package persistence

import (
	"context"

	"github.com/asaidimu/go-funnel/core/query"
	"github.com/asaidimu/go-funnel/core/schema"
)

// InteractorOptions provides configuration for the interactor.
type InteractorOptions struct {
	// IfNotExists adds IF NOT EXISTS to CREATE TABLE statements.
	IfNotExists bool

	// CreateIndexes creates the schema's indexes along with the table.
	CreateIndexes bool

	// TablePrefix is prepended to every collection name.
	TablePrefix string
}

// DatabaseInteractor defines the interface for interacting with the database.
// It can operate in either a non-transactional (default) or transactional mode.
type DatabaseInteractor interface {
	SelectDocuments(ctx context.Context, schema *schema.SchemaDefinition, dsl *query.QueryDSL) ([]schema.Document, error)
	UpdateDocuments(ctx context.Context, schema *schema.SchemaDefinition, updates map[string]any, filters *query.QueryFilter) (int64, error)
	InsertDocuments(ctx context.Context, schema *schema.SchemaDefinition, records []map[string]any) ([]schema.Document, error)
	DeleteDocuments(ctx context.Context, schema *schema.SchemaDefinition, filters *query.QueryFilter, unsafeDelete bool) (int64, error)

	// CreateCollection generates and executes DDL statements to create a table from a schema definition.
	CreateCollection(schema schema.SchemaDefinition) error

	// DropCollection drops a table if it exists.
	DropCollection(name string) error

	// CollectionExists checks if a table exists in the database.
	CollectionExists(name string) (bool, error)

	// StartTransaction returns a new interactor bound to a fresh
	// transaction. The receiver stays non-transactional.
	StartTransaction(ctx context.Context) (DatabaseInteractor, error)

	// Commit and Rollback are only meaningful on an interactor returned by
	// StartTransaction; elsewhere they return an error.
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
