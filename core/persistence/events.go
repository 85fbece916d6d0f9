package persistence

import (
	"errors"
	"time"

	"github.com/asaidimu/go-funnel/core/query"
	"github.com/asaidimu/go-funnel/core/schema"
	"github.com/asaidimu/go-events"
)

// Collection wraps a CollectionBase and reports every operation on the bus.
type Collection struct {
	collection *CollectionBase
	bus        *events.TypedEventBus[PersistenceEvent]
	schema     *schema.SchemaDefinition
}

// NewEventEmittingCollection creates a new event-emitting collection wrapper
func NewEventEmittingCollection(bus *events.TypedEventBus[PersistenceEvent], collection *CollectionBase) *Collection {
	return &Collection{
		collection: collection,
		bus:        bus,
		schema:     collection.schema,
	}
}

func emitEvent(bus *events.TypedEventBus[PersistenceEvent], event PersistenceEvent) {
	if bus != nil {
		bus.Emit(string(event.Type), event)
	}
}

func createEvent(
	eventType PersistenceEventType,
	operation string,
	collectionName string,
	input any,
	output any,
	query any,
	err error,
	startTime time.Time,
) PersistenceEvent {
	event := PersistenceEvent{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Operation: operation,
		Input:     input,
		Output:    output,
		Query:     query,
	}
	if collectionName != "" {
		event.Collection = &collectionName
	}
	if !startTime.IsZero() {
		d := time.Since(startTime).Milliseconds()
		event.Duration = &d
	}
	if err != nil {
		msg := err.Error()
		event.Error = &msg
		var docErr *DocumentError
		if errors.As(err, &docErr) {
			event.Issues = docErr.Issues
		}
	}
	return event
}

// eventTypes is the start/success/failed triple of one operation.
type eventTypes struct {
	start, success, failed PersistenceEventType
}

var (
	createEvents = eventTypes{DocumentCreateStart, DocumentCreateSuccess, DocumentCreateFailed}
	readEvents   = eventTypes{DocumentReadStart, DocumentReadSuccess, DocumentReadFailed}
	updateEvents = eventTypes{DocumentUpdateStart, DocumentUpdateSuccess, DocumentUpdateFailed}
	deleteEvents = eventTypes{DocumentDeleteStart, DocumentDeleteSuccess, DocumentDeleteFailed}

	collectionCreateEvents = eventTypes{CollectionCreateStart, CollectionCreateSuccess, CollectionCreateFailed}
	collectionDeleteEvents = eventTypes{CollectionDeleteStart, CollectionDeleteSuccess, CollectionDeleteFailed}
	transactionEvents      = eventTypes{TransactionStart, TransactionSuccess, TransactionFailed}
)

// withEventEmission wraps an operation with start, success, and failure events
func withEventEmission[T any](
	bus *events.TypedEventBus[PersistenceEvent],
	types eventTypes,
	operation string,
	collection string,
	input any,
	queryParam any,
	fn func() (T, error),
) (T, error) {
	startTime := time.Now()
	emitEvent(bus, createEvent(types.start, operation, collection, input, nil, queryParam, nil, startTime))

	result, err := fn()
	if err != nil {
		emitEvent(bus, createEvent(types.failed, operation, collection, input, nil, queryParam, err, startTime))
		var zero T
		return zero, err
	}

	emitEvent(bus, createEvent(types.success, operation, collection, input, result, queryParam, nil, startTime))
	return result, nil
}

func (e *Collection) Create(data any) (*query.QueryResult, error) {
	return withEventEmission(e.bus, createEvents, "create", e.schema.Name, data, nil, func() (*query.QueryResult, error) {
		return e.collection.Create(data)
	})
}

func (e *Collection) Read(q *query.QueryDSL) (*query.QueryResult, error) {
	return withEventEmission(e.bus, readEvents, "read", e.schema.Name, nil, q, func() (*query.QueryResult, error) {
		return e.collection.Read(q)
	})
}

func (e *Collection) Update(params *CollectionUpdate) (int, error) {
	var filter *query.QueryFilter
	if params != nil {
		filter = params.Filter
	}
	return withEventEmission(e.bus, updateEvents, "update", e.schema.Name, params, filter, func() (int, error) {
		return e.collection.Update(params)
	})
}

func (e *Collection) Delete(filter *query.QueryFilter, unsafe bool) (int, error) {
	return withEventEmission(e.bus, deleteEvents, "delete", e.schema.Name, nil, filter, func() (int, error) {
		return e.collection.Delete(filter, unsafe)
	})
}

// Validate delegates to the underlying collection (no events needed for validation)
func (e *Collection) Validate(data any, loose bool) (*schema.ValidationResult, error) {
	return e.collection.Validate(data, loose)
}
