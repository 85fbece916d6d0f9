package schema

// LogicalOperator for combining conditions.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and" // All conditions must be true
	LogicalOr  LogicalOperator = "or"  // At least one condition must be true
)

// FieldType represents the basic field types supported by the schema system.
type FieldType string

const (
	FieldTypeString  FieldType = "string"  // Text data
	FieldTypeNumber  FieldType = "number"  // Numeric data
	FieldTypeInteger FieldType = "integer" // Numeric data
	FieldTypeDecimal FieldType = "decimal" // Numeric data
	FieldTypeBoolean FieldType = "boolean" // True/false values
	FieldTypeArray   FieldType = "array"   // Ordered list of items
	FieldTypeSet     FieldType = "set"     // Unordered list with unique items
	FieldTypeEnum    FieldType = "enum"    // One out of a set of pre-defined items
	FieldTypeObject  FieldType = "object"  // Structured data, stored as JSON
	FieldTypeRecord  FieldType = "record"  // Key-value map, resolves to map[string]any
)

// IndexType represents index types for optimizing different query patterns.
type IndexType string

const (
	IndexTypeNormal  IndexType = "normal"  // General-purpose index
	IndexTypeUnique  IndexType = "unique"  // Unique index
	IndexTypePrimary IndexType = "primary" // Primary key index (implies unique)
)

// FieldDefinition defines a field within a schema.
//
// ID is the numeric identifier the funnel editor uses when it refers to a
// field by number (projections). It must be unique within a schema; zero
// means the field cannot be projected.
type FieldDefinition struct {
	ID   int64     `json:"id,omitempty" yaml:"id,omitempty"`
	Name string    `json:"name" yaml:"name"`
	Type FieldType `json:"type" yaml:"type"`
	// Required indicates if the field is mandatory.
	Required *bool `json:"required,omitempty" yaml:"required,omitempty"`
	// Default provides a default value for the field.
	Default any `json:"default,omitempty" yaml:"default,omitempty"`
	// Values specifies the allowed values for an 'enum' type field.
	Values []any `json:"values,omitempty" yaml:"values,omitempty"`
	// ItemsType specifies the type of items in 'array' or 'set' fields.
	ItemsType *FieldType `json:"itemsType,omitempty" yaml:"itemsType,omitempty"`
	// Keys lists the known keys of a 'record' field. Empty means any key.
	Keys        []string `json:"keys,omitempty" yaml:"keys,omitempty"`
	Deprecated  *bool    `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	Description *string  `json:"description,omitempty" yaml:"description,omitempty"`
	// Unique indicates if the field must have unique values.
	Unique *bool `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// IsKeyed reports whether the field holds a map and can be addressed as name[key].
func (f *FieldDefinition) IsKeyed() bool {
	return f.Type == FieldTypeRecord || f.Type == FieldTypeObject
}

// IndexDefinition defines an index for optimizing queries or enforcing uniqueness.
type IndexDefinition struct {
	Fields      []string  `json:"fields" yaml:"fields"`
	Type        IndexType `json:"type" yaml:"type"`
	Unique      *bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
	Description *string   `json:"description,omitempty" yaml:"description,omitempty"`
	Order       *string   `json:"order,omitempty" yaml:"order,omitempty"` // "asc" | "desc"
	Name        string    `json:"name" yaml:"name"`
}

// SchemaDefinition describes one collection of documents: the event
// schemas the filter compiler resolves fields against, and the storage
// collections of the persistence layer.
type SchemaDefinition struct {
	Name        string                      `json:"name" yaml:"name"`
	Version     string                      `json:"version" yaml:"version"`
	Description *string                     `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      map[string]*FieldDefinition `json:"fields" yaml:"fields"` // Map of field names to FieldDefinition
	Indexes     []IndexDefinition           `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	Metadata    map[string]any              `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Issue represents a validation or operational issue.
type Issue struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Path        string `json:"path,omitempty"`
	Severity    string `json:"severity,omitempty"` // e.g., "error", "warning"
	Description string `json:"description,omitempty"`
}

type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

type Document map[string]any
