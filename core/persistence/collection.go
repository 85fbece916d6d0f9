package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/asaidimu/go-funnel/core/query"
	"github.com/asaidimu/go-funnel/core/schema"
	"github.com/asaidimu/go-events"
)

// ErrInvalidDocument is returned when a document does not conform to the
// collection's schema.
var ErrInvalidDocument = errors.New("document does not conform to the collection schema")

// DocumentError lists the validation issues of a rejected document.
type DocumentError struct {
	Collection string
	Issues     []schema.Issue
}

func (e *DocumentError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("collection %s: %v", e.Collection, ErrInvalidDocument)
	}
	return fmt.Sprintf("collection %s: %v: %s (%s)", e.Collection, ErrInvalidDocument, e.Issues[0].Message, e.Issues[0].Code)
}

func (e *DocumentError) Unwrap() error { return ErrInvalidDocument }

// CollectionBase implements the document operations of one collection.
type CollectionBase struct {
	schema   *schema.SchemaDefinition
	executor *Executor
}

// NewCollection returns a collection that reports its operations on bus.
func NewCollection(bus *events.TypedEventBus[PersistenceEvent], schema *schema.SchemaDefinition, executor *Executor) (PersistenceCollectionInterface, error) {
	if schema == nil {
		return nil, fmt.Errorf("collection schema cannot be nil")
	}
	if executor == nil {
		return nil, fmt.Errorf("collection %s: executor cannot be nil", schema.Name)
	}
	return NewEventEmittingCollection(bus, &CollectionBase{
		schema:   schema,
		executor: executor,
	}), nil
}

func (ci *CollectionBase) Create(data any) (*query.QueryResult, error) {
	var records []map[string]any
	switch v := data.(type) {
	case map[string]any:
		records = []map[string]any{v}
	case schema.Document:
		records = []map[string]any{v}
	case []map[string]any:
		records = v
	default:
		return nil, fmt.Errorf("invalid data type for Create: expected map[string]any or []map[string]any, got %T", data)
	}

	for _, record := range records {
		validation, err := ci.Validate(record, false)
		if err != nil {
			return nil, err
		}
		if !validation.Valid {
			return nil, &DocumentError{Collection: ci.schema.Name, Issues: validation.Issues}
		}
	}

	result, err := ci.executor.Insert(context.Background(), ci.schema, records)
	if err != nil {
		return nil, fmt.Errorf("failed to insert data into collection '%s': %w", ci.schema.Name, err)
	}
	return result, nil
}

func (ci *CollectionBase) Read(q *query.QueryDSL) (*query.QueryResult, error) {
	if q == nil {
		q = &query.QueryDSL{}
	}
	result, err := ci.executor.Query(context.Background(), ci.schema, q)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from collection '%s': %w", ci.schema.Name, err)
	}
	return result, nil
}

// Update applies a partial document to every row matching the filter. The
// partial document is validated loosely.
func (ci *CollectionBase) Update(params *CollectionUpdate) (int, error) {
	if params == nil || len(params.Data) == 0 {
		return 0, fmt.Errorf("collection '%s': no fields provided for update", ci.schema.Name)
	}
	validation, err := ci.Validate(params.Data, true)
	if err != nil {
		return 0, err
	}
	if !validation.Valid {
		return 0, &DocumentError{Collection: ci.schema.Name, Issues: validation.Issues}
	}

	affected, err := ci.executor.Update(context.Background(), ci.schema, params.Data, params.Filter)
	if err != nil {
		return 0, fmt.Errorf("failed to update data in collection '%s': %w", ci.schema.Name, err)
	}
	return int(affected), nil
}

func (ci *CollectionBase) Delete(filter *query.QueryFilter, unsafe bool) (int, error) {
	affected, err := ci.executor.Delete(context.Background(), ci.schema, filter, unsafe)
	if err != nil {
		return 0, fmt.Errorf("failed to delete data from collection '%s': %w", ci.schema.Name, err)
	}
	return int(affected), nil
}

// Validate validates data against the collection's schema.
func (ci *CollectionBase) Validate(data any, loose bool) (*schema.ValidationResult, error) {
	var values map[string]any
	switch v := data.(type) {
	case map[string]any:
		values = v
	case schema.Document:
		values = v
	default:
		return nil, fmt.Errorf("cannot validate %T: expected a document", data)
	}

	// Validators keep per-run state, so each call gets its own.
	valid, issues := schema.NewValidator(ci.schema).Validate(values, loose)
	return &schema.ValidationResult{
		Valid:  valid,
		Issues: issues,
	}, nil
}
