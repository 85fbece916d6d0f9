// Package persistence stores schema-described documents through a
// DatabaseInteractor. It keeps a registry of its collections in the
// `_schemas` collection and reports every operation on an event bus.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/asaidimu/go-funnel/core/query"
	"github.com/asaidimu/go-funnel/core/schema"
	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrCollectionExists   = errors.New("collection already exists")
	ErrCollectionNotFound = errors.New("collection does not exist")
)

// Persistence is the main implementation of PersistenceInterface.
type Persistence struct {
	interactor    DatabaseInteractor
	collection    PersistenceCollectionInterface
	schema        *schema.SchemaDefinition
	executor      *Executor
	logger        *zap.Logger
	inTx          bool
	subscriptions map[string]*SubscriptionInfo
	subMu         sync.RWMutex
	bus           *events.TypedEventBus[PersistenceEvent]
}

var _ PersistenceInterface = (*Persistence)(nil)

// NewPersistence creates the persistence service. The internal schemas
// collection is created on first use.
func NewPersistence(interactor DatabaseInteractor, logger *zap.Logger) (*Persistence, error) {
	bus, err := events.NewTypedEventBus[PersistenceEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}
	return newPersistence(interactor, logger, bus, false)
}

func newPersistence(interactor DatabaseInteractor, logger *zap.Logger, bus *events.TypedEventBus[PersistenceEvent], inTx bool) (*Persistence, error) {
	if interactor == nil {
		return nil, fmt.Errorf("database interactor cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var s schema.SchemaDefinition
	if err := json.Unmarshal(schemasCollectionSchema, &s); err != nil {
		return nil, fmt.Errorf("error unmarshaling schemas collection schema: %w", err)
	}

	exists, err := interactor.CollectionExists(s.Name)
	if err != nil {
		return nil, fmt.Errorf("error looking up schema collection: %w", err)
	}
	if !exists {
		if err := interactor.CreateCollection(s); err != nil {
			return nil, fmt.Errorf("failed to create table for collections %s: %w", s.Name, err)
		}
		logger.Debug("Created schemas collection", zap.String("collection", s.Name))
	}

	executor := NewExecutor(interactor, logger)
	collection, err := NewCollection(bus, &s, executor)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize schemas collection: %w", err)
	}

	return &Persistence{
		interactor:    interactor,
		executor:      executor,
		collection:    collection,
		schema:        &s,
		bus:           bus,
		logger:        logger,
		inTx:          inTx,
		subscriptions: make(map[string]*SubscriptionInfo),
	}, nil
}

// Collection returns the document API of an existing collection.
func (p *Persistence) Collection(name string) (PersistenceCollectionInterface, error) {
	s, err := p.Schema(name)
	if err != nil {
		return nil, err
	}
	return NewCollection(p.bus, s, p.executor)
}

// Transact executes callback within a database transaction. The transaction
// shares this instance's event bus, so subscribers see its events too.
func (p *Persistence) Transact(callback func(tx PersistenceTransactionInterface) (any, error)) (any, error) {
	if p.inTx {
		return callback(p)
	}
	return withEventEmission(p.bus, transactionEvents, "transaction", "", nil, nil, func() (any, error) {
		ctx := context.Background()
		tx, err := p.interactor.StartTransaction(ctx)
		if err != nil {
			return nil, err
		}

		txp, err := newPersistence(tx, p.logger, p.bus, true)
		if err != nil {
			p.rollback(ctx, tx)
			return nil, err
		}

		result, err := callback(txp)
		if err != nil {
			p.rollback(ctx, tx)
			return result, err
		}

		if err := tx.Commit(ctx); err != nil {
			return result, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return result, nil
	})
}

func (p *Persistence) rollback(ctx context.Context, tx DatabaseInteractor) {
	if err := tx.Rollback(ctx); err != nil {
		p.logger.Error("Failed to roll back transaction", zap.Error(err))
	}
}

// Collections returns the names of all managed collections, sorted.
func (p *Persistence) Collections() ([]string, error) {
	q := query.NewQueryBuilder().Select("name").Build()
	result, err := p.collection.Read(&q)
	if err != nil {
		return nil, fmt.Errorf("error reading schemas to get collection names: %w", err)
	}

	names := make([]string, 0, result.Count)
	for _, doc := range result.Data {
		if name, ok := doc["name"].(string); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Create creates a new collection based on the provided schema definition.
func (p *Persistence) Create(s schema.SchemaDefinition) (PersistenceCollectionInterface, error) {
	if s.Name == SCHEMA_COLLECTION_NAME {
		return nil, fmt.Errorf("%s: %w", s.Name, ErrCollectionExists)
	}
	if issues := s.Check(); len(issues) > 0 {
		return nil, &schema.DefinitionError{Schema: s.Name, Issues: issues}
	}

	return withEventEmission(p.bus, collectionCreateEvents, "create_collection", s.Name, s, nil, func() (PersistenceCollectionInterface, error) {
		_, err := p.Transact(func(tx PersistenceTransactionInterface) (any, error) {
			txp := tx.(*Persistence)
			exists, err := txp.interactor.CollectionExists(s.Name)
			if err != nil {
				return nil, fmt.Errorf("error accessing database: %w", err)
			}
			if exists {
				return nil, fmt.Errorf("%s: %w", s.Name, ErrCollectionExists)
			}
			if err := txp.interactor.CreateCollection(s); err != nil {
				return nil, fmt.Errorf("failed to create collection %s: %w", s.Name, err)
			}

			data, err := schemaRecordToMap(&s)
			if err != nil {
				return nil, err
			}
			return txp.collection.Create(data)
		})
		if err != nil {
			return nil, err
		}
		return NewCollection(p.bus, &s, p.executor)
	})
}

// Delete removes a collection and its schema record atomically.
func (p *Persistence) Delete(name string) (bool, error) {
	return withEventEmission(p.bus, collectionDeleteEvents, "delete_collection", name, nil, nil, func() (bool, error) {
		_, err := p.Transact(func(tx PersistenceTransactionInterface) (any, error) {
			txp := tx.(*Persistence)
			q := query.NewQueryBuilder().Where("name").Eq(name).Build()
			n, err := txp.collection.Delete(q.Filters, false)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, fmt.Errorf("%s: %w", name, ErrCollectionNotFound)
			}
			return nil, txp.interactor.DropCollection(name)
		})
		return err == nil, err
	})
}

// Schema retrieves the schema definition for a given collection name.
func (p *Persistence) Schema(name string) (*schema.SchemaDefinition, error) {
	if name == SCHEMA_COLLECTION_NAME {
		return p.schema, nil
	}

	q := query.NewQueryBuilder().Where("name").Eq(name).Build()
	result, err := p.collection.Read(&q)
	if err != nil {
		return nil, fmt.Errorf("error reading schema collection: %w", err)
	}
	if result.Count == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrCollectionNotFound)
	}
	if result.Count != 1 {
		return nil, fmt.Errorf("unexpected count for schema name %s: %d", name, result.Count)
	}

	record, err := mapToSchemaRecord(result.First())
	if err != nil {
		return nil, fmt.Errorf("error converting map to SchemaRecord: %w", err)
	}

	var s schema.SchemaDefinition
	if err := json.Unmarshal(record.Schema, &s); err != nil {
		return nil, fmt.Errorf("error unmarshaling schema %s: %w", name, err)
	}
	return &s, nil
}

// Ensure returns the collection for s, creating it on first use. A stored
// schema with a different version is reported as an error rather than
// migrated.
func (p *Persistence) Ensure(s schema.SchemaDefinition) (PersistenceCollectionInterface, error) {
	stored, err := p.Schema(s.Name)
	switch {
	case errors.Is(err, ErrCollectionNotFound):
		return p.Create(s)
	case err != nil:
		return nil, err
	case stored.Version != s.Version:
		return nil, fmt.Errorf("collection %s is at version %q, want %q", s.Name, stored.Version, s.Version)
	}
	return NewCollection(p.bus, stored, p.executor)
}

// RegisterSubscription registers a callback for a persistence event and
// returns an id for UnregisterSubscription.
func (p *Persistence) RegisterSubscription(options RegisterSubscriptionOptions) string {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	unsubscribe := p.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()

	p.subscriptions[id] = &SubscriptionInfo{
		Id:          &id,
		Event:       options.Event,
		Unsubscribe: unsubscribe,
		Label:       options.Label,
		Description: options.Description,
	}

	emitEvent(p.bus, createEvent(SubscriptionRegister, "register_subscription", "", options.Event, id, nil, nil, time.Time{}))
	return id
}

// UnregisterSubscription removes a subscription by its ID.
func (p *Persistence) UnregisterSubscription(id string) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	if info, ok := p.subscriptions[id]; ok {
		info.Unsubscribe()
		delete(p.subscriptions, id)
		emitEvent(p.bus, createEvent(SubscriptionUnregister, "unregister_subscription", "", id, nil, nil, nil, time.Time{}))
	}
}

// Subscriptions returns the active subscriptions ordered by event type.
func (p *Persistence) Subscriptions() ([]SubscriptionInfo, error) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(p.subscriptions))
	for _, sub := range p.subscriptions {
		subs = append(subs, *sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Event != subs[j].Event {
			return subs[i].Event < subs[j].Event
		}
		return *subs[i].Id < *subs[j].Id
	})
	return subs, nil
}
