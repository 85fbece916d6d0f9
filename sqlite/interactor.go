// Package sqlite implements persistence.DatabaseInteractor on SQLite
// (github.com/mattn/go-sqlite3): DDL from schema definitions, SQL from the
// query DSL, and transactions.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/asaidimu/go-funnel/core/persistence"
	"github.com/asaidimu/go-funnel/core/query"
	"github.com/asaidimu/go-funnel/core/schema"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DriverName is the database/sql driver registered by go-sqlite3.
const DriverName = "sqlite3"

// Open opens a SQLite database. An in-memory database is limited to a
// single connection so that every statement sees the same data.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}
	return db, nil
}

// dbRunner abstracts *sql.DB and *sql.Tx so the same code serves both
// transactional and non-transactional operations.
type dbRunner interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteInteractor manages the database connection, generates SQL and
// executes it. An instance returned by StartTransaction runs every
// statement in that transaction.
type SQLiteInteractor struct {
	db                    *sql.DB
	tx                    *sql.Tx
	queryGeneratorFactory query.QueryGeneratorFactory
	logger                *zap.Logger
	options               *persistence.InteractorOptions
}

var _ persistence.DatabaseInteractor = (*SQLiteInteractor)(nil)

// NewSQLiteInteractor creates a new instance of the SQLiteInteractor. A
// non-nil tx makes it transactional.
func NewSQLiteInteractor(db *sql.DB, logger *zap.Logger, options *persistence.InteractorOptions, tx *sql.Tx) *SQLiteInteractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultInteractorOptions()
	}
	return &SQLiteInteractor{
		db:                    db,
		tx:                    tx,
		options:               options,
		queryGeneratorFactory: NewSqliteQueryGeneratorFactory(options.TablePrefix),
		logger:                logger,
	}
}

func (i *SQLiteInteractor) runner() dbRunner {
	if i.tx != nil {
		return i.tx
	}
	return i.db
}

// readRows converts rows into documents, decoding each column by its field
// type: INTEGER booleans become bool and JSON text becomes Go values.
func readRows(logger *zap.Logger, sc *schema.SchemaDefinition, rows *sql.Rows) ([]schema.Document, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	results := make([]schema.Document, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(schema.Document, len(columns))
		for i, col := range columns {
			fieldDef, ok := sc.Fields[col]
			if !ok {
				logger.Warn("Column not found in schema, using raw value", zap.String("column", col))
				row[col] = values[i]
				continue
			}
			row[col] = decodeColumn(values[i], fieldDef.Type)
		}
		results = append(results, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return results, nil
}

func decodeColumn(val any, fieldType schema.FieldType) any {
	if val == nil {
		return nil
	}
	if b, ok := val.([]byte); ok {
		val = string(b)
	}

	switch fieldType {
	case schema.FieldTypeBoolean:
		if n, ok := val.(int64); ok {
			return n != 0
		}
	case schema.FieldTypeInteger:
		if f, ok := val.(float64); ok {
			return int64(f)
		}
	case schema.FieldTypeNumber, schema.FieldTypeDecimal:
		if n, ok := val.(int64); ok {
			return float64(n)
		}
	}
	if isJSONType(fieldType) {
		if s, ok := val.(string); ok {
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				return decoded
			}
		}
	}
	return val
}

func (i *SQLiteInteractor) generator(sc *schema.SchemaDefinition) (query.QueryGenerator, error) {
	g, err := i.queryGeneratorFactory.CreateGenerator(sc)
	if err != nil {
		return nil, fmt.Errorf("could not get a query generator instance: %w", err)
	}
	return g, nil
}

// SelectDocuments executes a SELECT query against the database.
func (i *SQLiteInteractor) SelectDocuments(ctx context.Context, sc *schema.SchemaDefinition, dsl *query.QueryDSL) ([]schema.Document, error) {
	g, err := i.generator(sc)
	if err != nil {
		return nil, err
	}
	sqlQuery, queryParams, err := g.GenerateSelectSQL(dsl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL query: %w", err)
	}

	i.logger.Debug("Executing SQL SELECT", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	rows, err := i.runner().QueryContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute SELECT query", zap.Error(err), zap.String("sql", sqlQuery))
		return nil, fmt.Errorf("failed to execute SELECT query: %w", err)
	}
	defer rows.Close()
	return readRows(i.logger, sc, rows)
}

// UpdateDocuments executes an UPDATE query against the database.
func (i *SQLiteInteractor) UpdateDocuments(ctx context.Context, sc *schema.SchemaDefinition, updates map[string]any, filters *query.QueryFilter) (int64, error) {
	g, err := i.generator(sc)
	if err != nil {
		return 0, err
	}
	sqlQuery, queryParams, err := g.GenerateUpdateSQL(updates, filters)
	if err != nil {
		return 0, fmt.Errorf("failed to generate SQL UPDATE query: %w", err)
	}

	i.logger.Debug("Executing SQL UPDATE", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	result, err := i.runner().ExecContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute UPDATE query", zap.Error(err), zap.String("sql", sqlQuery))
		return 0, fmt.Errorf("failed to execute UPDATE query: %w", err)
	}
	return result.RowsAffected()
}

// InsertDocuments inserts records and returns the stored rows.
func (i *SQLiteInteractor) InsertDocuments(ctx context.Context, sc *schema.SchemaDefinition, records []map[string]any) ([]schema.Document, error) {
	if len(records) == 0 {
		return []schema.Document{}, nil
	}
	g, err := i.generator(sc)
	if err != nil {
		return nil, err
	}
	sqlQuery, queryParams, err := g.GenerateInsertSQL(records)
	if err != nil {
		return nil, fmt.Errorf("failed to generate INSERT SQL: %w", err)
	}

	i.logger.Debug("Executing SQL INSERT with RETURNING clause", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	rows, err := i.runner().QueryContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute INSERT ... RETURNING query", zap.Error(err), zap.String("sql", sqlQuery))
		return nil, fmt.Errorf("failed to execute INSERT ... RETURNING query: %w", err)
	}
	defer rows.Close()
	return readRows(i.logger, sc, rows)
}

// DeleteDocuments executes a DELETE query against the database.
func (i *SQLiteInteractor) DeleteDocuments(ctx context.Context, sc *schema.SchemaDefinition, filters *query.QueryFilter, unsafeDelete bool) (int64, error) {
	g, err := i.generator(sc)
	if err != nil {
		return 0, err
	}
	sqlQuery, queryParams, err := g.GenerateDeleteSQL(filters, unsafeDelete)
	if err != nil {
		return 0, fmt.Errorf("failed to generate DELETE SQL: %w", err)
	}

	i.logger.Debug("Executing SQL DELETE", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	result, err := i.runner().ExecContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute DELETE query", zap.Error(err), zap.String("sql", sqlQuery))
		return 0, fmt.Errorf("failed to execute DELETE query: %w", err)
	}
	return result.RowsAffected()
}

// StartTransaction begins a transaction and returns an interactor scoped to it.
func (i *SQLiteInteractor) StartTransaction(ctx context.Context) (persistence.DatabaseInteractor, error) {
	if i.tx != nil {
		return nil, fmt.Errorf("cannot start a new transaction from an existing transactional interactor")
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	i.logger.Debug("Transaction initiated, returning new transactional interactor")
	return NewSQLiteInteractor(i.db, i.logger, i.options, tx), nil
}

// Commit commits the current transaction.
func (i *SQLiteInteractor) Commit(ctx context.Context) error {
	if i.tx == nil {
		return fmt.Errorf("commit not applicable: not in a transactional context")
	}
	i.logger.Debug("Committing transaction")
	return i.tx.Commit()
}

// Rollback rolls back the current transaction.
func (i *SQLiteInteractor) Rollback(ctx context.Context) error {
	if i.tx == nil {
		return fmt.Errorf("rollback not applicable: not in a transactional context")
	}
	i.logger.Debug("Rolling back transaction")
	return i.tx.Rollback()
}
