package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrSchemaNotFound = errors.New("schema not found")
	ErrFieldNotFound  = errors.New("field not found")
	ErrInvalidSchema  = errors.New("invalid schema definition")
)

// MetadataProvider resolves field references against the known event
// schemas. Lookups must be safe for concurrent use.
type MetadataProvider interface {
	FieldByName(schemaName, fieldName string) (*FieldDefinition, error)
	FieldByID(schemaName string, id int64) (*FieldDefinition, error)
}

// Registry is the in-memory MetadataProvider. Schemas are registered once
// at startup and read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*SchemaDefinition
	logger  *zap.Logger
}

// NewRegistry returns an empty registry. A nil logger is replaced by a no-op one.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		schemas: make(map[string]*SchemaDefinition),
		logger:  logger,
	}
}

// Register adds or replaces a schema after checking its definition.
func (r *Registry) Register(s *SchemaDefinition) error {
	if s == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidSchema)
	}
	if issues := s.Check(); len(issues) > 0 {
		return &DefinitionError{Schema: s.Name, Issues: issues}
	}

	r.mu.Lock()
	_, replaced := r.schemas[s.Name]
	r.schemas[s.Name] = s
	r.mu.Unlock()

	r.logger.Debug("Registered schema",
		zap.String("schema", s.Name),
		zap.String("version", s.Version),
		zap.Int("fields", len(s.Fields)),
		zap.Bool("replaced", replaced))
	return nil
}

// Schema returns the named definition.
func (r *Registry) Schema(name string) (*SchemaDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSchemaNotFound, name)
	}
	return s, nil
}

// Names lists the registered schemas in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldByName returns the field stored under fieldName in schemaName.
func (r *Registry) FieldByName(schemaName, fieldName string) (*FieldDefinition, error) {
	s, err := r.Schema(schemaName)
	if err != nil {
		return nil, err
	}
	field := s.FindField(fieldName)
	if field == nil {
		return nil, fmt.Errorf("%w: %q in schema %q", ErrFieldNotFound, fieldName, schemaName)
	}
	return field, nil
}

// FieldByID returns the field of schemaName whose numeric id is id.
func (r *Registry) FieldByID(schemaName string, id int64) (*FieldDefinition, error) {
	s, err := r.Schema(schemaName)
	if err != nil {
		return nil, err
	}
	field := s.FieldByID(id)
	if field == nil {
		return nil, fmt.Errorf("%w: id %d in schema %q", ErrFieldNotFound, id, schemaName)
	}
	return field, nil
}

// DefinitionError lists what is wrong with a schema definition.
type DefinitionError struct {
	Schema string
	Issues []Issue
}

func (e *DefinitionError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("schema %q: %s", e.Schema, e.Issues[0].Message)
	}
	return fmt.Sprintf("schema %q: %d issues, first: %s", e.Schema, len(e.Issues), e.Issues[0].Message)
}

func (e *DefinitionError) Unwrap() error { return ErrInvalidSchema }
