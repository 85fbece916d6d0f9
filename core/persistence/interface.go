package persistence

import (
	"context"

	"github.com/asaidimu/go-funnel/core/query"
	"github.com/asaidimu/go-funnel/core/schema"
)

// PersistenceEventType defines the possible event types for persistence operations.
type PersistenceEventType string

const (
	DocumentCreateStart     PersistenceEventType = "document:create:start"
	DocumentCreateSuccess   PersistenceEventType = "document:create:success"
	DocumentCreateFailed    PersistenceEventType = "document:create:failed"
	DocumentReadStart       PersistenceEventType = "document:read:start"
	DocumentReadSuccess     PersistenceEventType = "document:read:success"
	DocumentReadFailed      PersistenceEventType = "document:read:failed"
	DocumentUpdateStart     PersistenceEventType = "document:update:start"
	DocumentUpdateSuccess   PersistenceEventType = "document:update:success"
	DocumentUpdateFailed    PersistenceEventType = "document:update:failed"
	DocumentDeleteStart     PersistenceEventType = "document:delete:start"
	DocumentDeleteSuccess   PersistenceEventType = "document:delete:success"
	DocumentDeleteFailed    PersistenceEventType = "document:delete:failed"
	TransactionStart        PersistenceEventType = "transaction:start"
	TransactionSuccess      PersistenceEventType = "transaction:success"
	TransactionFailed       PersistenceEventType = "transaction:failed"
	CollectionCreateStart   PersistenceEventType = "collection:create:start"
	CollectionCreateSuccess PersistenceEventType = "collection:create:success"
	CollectionCreateFailed  PersistenceEventType = "collection:create:failed"
	CollectionDeleteStart   PersistenceEventType = "collection:delete:start"
	CollectionDeleteSuccess PersistenceEventType = "collection:delete:success"
	CollectionDeleteFailed  PersistenceEventType = "collection:delete:failed"
	SubscriptionRegister    PersistenceEventType = "subscription:register"
	SubscriptionUnregister  PersistenceEventType = "subscription:unregister"
)

// PersistenceEvent is emitted on the bus around every persistence operation.
type PersistenceEvent struct {
	Type       PersistenceEventType `json:"type"`
	Timestamp  int64                `json:"timestamp"` // Unix milliseconds
	Operation  string               `json:"operation"`
	Collection *string              `json:"collection,omitempty"`
	Input      any                  `json:"input,omitempty"`
	Output     any                  `json:"output,omitempty"`
	Error      *string              `json:"error,omitempty"`
	Issues     []schema.Issue       `json:"issues,omitempty"`
	Query      any                  `json:"query,omitempty"`
	Duration   *int64               `json:"duration,omitempty"` // milliseconds
}

type EventCallbackFunction func(ctx context.Context, event PersistenceEvent) error

// SubscriptionInfo describes a registered subscription.
type SubscriptionInfo struct {
	Id          *string              `json:"id,omitempty"`
	Event       PersistenceEventType `json:"event"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	Unsubscribe func()               `json:"-"`
}

type RegisterSubscriptionOptions struct {
	Event       PersistenceEventType `json:"event"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	Callback    EventCallbackFunction
}

// PersistenceInterface manages collections and the event bus they report to.
type PersistenceInterface interface {
	PersistenceTransactionInterface

	// Transact runs callback inside one database transaction. The
	// transaction is rolled back when callback returns an error.
	Transact(callback func(tx PersistenceTransactionInterface) (any, error)) (any, error)

	// Ensure returns the collection for a schema, creating it if missing.
	Ensure(s schema.SchemaDefinition) (PersistenceCollectionInterface, error)

	RegisterSubscription(options RegisterSubscriptionOptions) string
	UnregisterSubscription(id string)
	Subscriptions() ([]SubscriptionInfo, error)
}

// PersistenceTransactionInterface is the part of the persistence layer that
// is available inside a transaction.
type PersistenceTransactionInterface interface {
	Collections() ([]string, error)
	Create(schema schema.SchemaDefinition) (PersistenceCollectionInterface, error)
	Delete(name string) (bool, error)
	Schema(name string) (*schema.SchemaDefinition, error)
	Collection(name string) (PersistenceCollectionInterface, error)
}

type CollectionUpdate struct {
	Data   map[string]any     `json:"data,omitempty"`
	Filter *query.QueryFilter `json:"filter"`
}

// PersistenceCollectionInterface is the document API of one collection.
type PersistenceCollectionInterface interface {
	// Create accepts a map[string]any or a []map[string]any and returns
	// the stored rows.
	Create(data any) (*query.QueryResult, error)
	Read(query *query.QueryDSL) (*query.QueryResult, error)
	Update(params *CollectionUpdate) (int, error)
	Delete(filter *query.QueryFilter, unsafe bool) (int, error)
	Validate(data any, loose bool) (*schema.ValidationResult, error)
}
