package schema

import (
	"fmt"
	"sort"
)

// FindField looks a field up by its declared name. The map key is tried
// first, then every definition's Name.
func (s *SchemaDefinition) FindField(name string) *FieldDefinition {
	if field, ok := s.Fields[name]; ok {
		return field
	}
	for _, field := range s.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

// FieldByID looks a field up by its numeric identifier.
func (s *SchemaDefinition) FieldByID(id int64) *FieldDefinition {
	if id <= 0 {
		return nil
	}
	for _, field := range s.Fields {
		if field.ID == id {
			return field
		}
	}
	return nil
}

// FieldNames returns the declared field names in sorted order.
func (s *SchemaDefinition) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for key := range s.Fields {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}

var knownTypes = map[FieldType]bool{
	FieldTypeString: true, FieldTypeNumber: true, FieldTypeInteger: true,
	FieldTypeDecimal: true, FieldTypeBoolean: true, FieldTypeArray: true,
	FieldTypeSet: true, FieldTypeEnum: true, FieldTypeObject: true,
	FieldTypeRecord: true,
}

// Check reports problems with the definition itself: a missing name,
// fields whose map key and name disagree, unknown types and duplicate
// field ids. An empty result means the definition is usable. Fields
// declared without a name take their map key.
func (s *SchemaDefinition) Check() []Issue {
	var issues []Issue
	add := func(code, path, format string, args ...any) {
		issues = append(issues, Issue{Code: code, Path: path, Message: fmt.Sprintf(format, args...), Severity: "error"})
	}

	if s.Name == "" {
		add("MISSING_NAME", "name", "schema name is required")
	}
	if len(s.Fields) == 0 {
		add("NO_FIELDS", "fields", "schema %q declares no fields", s.Name)
	}

	ids := make(map[int64]string)
	for _, key := range s.FieldNames() {
		field := s.Fields[key]
		path := "fields." + key
		if field == nil {
			add("NULL_FIELD", path, "field %q has no definition", key)
			continue
		}
		if field.Name == "" {
			field.Name = key
		} else if field.Name != key {
			add("NAME_MISMATCH", path, "field key %q does not match its name %q", key, field.Name)
		}
		if !knownTypes[field.Type] {
			add("UNKNOWN_TYPE", path, "field %q has unknown type %q", key, field.Type)
		}
		if field.ID < 0 {
			add("INVALID_ID", path, "field %q has negative id %d", key, field.ID)
		}
		if field.ID > 0 {
			if other, dup := ids[field.ID]; dup {
				add("DUPLICATE_ID", path, "field %q reuses id %d of field %q", key, field.ID, other)
			}
			ids[field.ID] = key
		}
	}
	return issues
}
