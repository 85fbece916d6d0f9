// Package schema describes documents: the event schemas that filter
// expressions are resolved against, and the storage collections the
// persistence layer writes to. It also carries the Validator that checks a
// document against its schema before it is stored.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Validator checks documents against a schema. It reports type mismatches,
// missing required fields, unexpected fields and enum, set and record key
// violations as a list of issues.
type Validator struct {
	schema *SchemaDefinition
	issues []Issue
}

// NewValidator creates a new Validator instance for a given schema.
// The returned validator can be reused for multiple validation operations.
func NewValidator(schema *SchemaDefinition) *Validator {
	return &Validator{
		schema: schema,
		issues: make([]Issue, 0),
	}
}

// Validate checks if a given data map conforms to the validator's schema.
// The `loose` parameter ignores missing required fields, which is what a
// partial update needs.
func (v *Validator) Validate(data map[string]any, loose bool) (bool, []Issue) {
	v.issues = make([]Issue, 0)

	v.validateData(data, "")

	finalIssues := v.issues
	if loose {
		filteredIssues := make([]Issue, 0, len(v.issues))
		for _, issue := range v.issues {
			if issue.Code != "REQUIRED_FIELD_MISSING" {
				filteredIssues = append(filteredIssues, issue)
			}
		}
		finalIssues = filteredIssues
	}

	return len(finalIssues) == 0, finalIssues
}

// coerceValue attempts to convert a string value to the expected type.
func (v *Validator) coerceValue(value any, expectedType FieldType) (any, bool) {
	str, ok := value.(string)
	if !ok {
		return value, false
	}

	switch expectedType {
	case FieldTypeBoolean:
		switch strings.ToLower(str) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	case FieldTypeInteger:
		if intVal, err := strconv.ParseInt(str, 10, 64); err == nil {
			return intVal, true
		}
	case FieldTypeNumber, FieldTypeDecimal:
		if floatVal, err := strconv.ParseFloat(str, 64); err == nil {
			return floatVal, true
		}
	}
	return value, false
}

func (v *Validator) validateData(data map[string]any, path string) {
	for fieldName, fieldDef := range v.schema.Fields {
		fieldPath := v.buildPath(path, fieldName)
		value, exists := data[fieldName]

		if fieldDef.Required != nil && *fieldDef.Required && !exists {
			v.addIssue("REQUIRED_FIELD_MISSING", fmt.Sprintf("Required field '%s' is missing", fieldName), fieldPath)
			continue
		}

		if !exists {
			continue
		}

		v.validateFieldValue(value, fieldDef, fieldPath)
	}

	for dataKey := range data {
		if _, exists := v.schema.Fields[dataKey]; !exists {
			v.addIssue("UNEXPECTED_FIELD", fmt.Sprintf("Unexpected field '%s' not defined in schema", dataKey), v.buildPath(path, dataKey))
		}
	}
}

func (v *Validator) validateFieldValue(value any, fieldDef *FieldDefinition, path string) {
	if value == nil {
		if fieldDef.Required != nil && *fieldDef.Required {
			v.addIssue("NULL_VALUE", "Field cannot be null", path)
		}
		return
	}

	if coerced, ok := v.coerceValue(value, fieldDef.Type); ok {
		value = coerced
	}
	if !v.validateFieldType(value, fieldDef.Type, path) {
		return
	}

	switch fieldDef.Type {
	case FieldTypeEnum:
		if len(fieldDef.Values) > 0 {
			v.validateEnumValue(value, fieldDef.Values, path)
		}
	case FieldTypeArray, FieldTypeSet:
		v.validateArrayField(value, fieldDef, path)
	case FieldTypeRecord:
		v.validateRecordKeys(value, fieldDef, path)
	}
}

func (v *Validator) validateFieldType(value any, expectedType FieldType, path string) bool {
	switch expectedType {
	case FieldTypeString:
		if _, ok := value.(string); !ok {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected string, got %T", value), path)
			return false
		}
	case FieldTypeNumber, FieldTypeDecimal:
		if !v.isNumericType(value) {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected number, got %T", value), path)
			return false
		}
	case FieldTypeInteger:
		if !v.isIntegerType(value) {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected integer, got %T", value), path)
			return false
		}
	case FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected boolean, got %T", value), path)
			return false
		}
	case FieldTypeArray, FieldTypeSet:
		if !v.isArrayType(value) {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected array, got %T", value), path)
			return false
		}
	case FieldTypeObject, FieldTypeRecord:
		if !v.isObjectType(value) {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected object, got %T", value), path)
			return false
		}
	}
	return true
}

func (v *Validator) validateEnumValue(value any, allowedValues []any, path string) {
	for _, allowedValue := range allowedValues {
		if reflect.DeepEqual(value, allowedValue) || fmt.Sprint(value) == fmt.Sprint(allowedValue) {
			return
		}
	}
	v.addIssue("ENUM_VIOLATION", fmt.Sprintf("Value must be one of: %v", allowedValues), path)
}

func (v *Validator) validateArrayField(value any, fieldDef *FieldDefinition, path string) {
	arrayValue, ok := value.([]any)
	if !ok {
		// Typed slices are accepted as they are; item checks need []any.
		return
	}

	if fieldDef.ItemsType != nil {
		for i, item := range arrayValue {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			itemFieldDef := &FieldDefinition{Type: *fieldDef.ItemsType}
			v.validateFieldValue(item, itemFieldDef, itemPath)
		}
	}

	if fieldDef.Type == FieldTypeSet {
		v.validateSetUniqueness(arrayValue, path)
	}
}

func (v *Validator) validateSetUniqueness(items []any, path string) {
	seen := make(map[string]bool)
	for i, item := range items {
		key := fmt.Sprintf("%v", item)
		if seen[key] {
			v.addIssue("SET_DUPLICATE", fmt.Sprintf("Duplicate value found in set at index %d", i), path)
		}
		seen[key] = true
	}
}

func (v *Validator) validateRecordKeys(value any, fieldDef *FieldDefinition, path string) {
	if len(fieldDef.Keys) == 0 {
		return
	}
	record, _ := value.(map[string]any)
	for key := range record {
		if !slices.Contains(fieldDef.Keys, key) {
			v.addIssue("UNKNOWN_KEY", fmt.Sprintf("Key '%s' is not one of: %v", key, fieldDef.Keys), fmt.Sprintf("%s[%s]", path, key))
		}
	}
}

func (v *Validator) isNumericType(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return true
	}
	return false
}

// isIntegerType accepts whole floats too, since JSON decoding yields float64.
func (v *Validator) isIntegerType(value any) bool {
	switch n := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return n == math.Trunc(n)
	case json.Number:
		_, err := n.Int64()
		return err == nil
	}
	return false
}

func (v *Validator) isArrayType(value any) bool {
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
}

func (v *Validator) isObjectType(value any) bool {
	_, ok := value.(map[string]any)
	return ok
}

// buildPath constructs a dot-separated path string for error reporting.
func (v *Validator) buildPath(basePath, fieldName string) string {
	if basePath == "" {
		return fieldName
	}
	return basePath + "." + fieldName
}

func (v *Validator) addIssue(code, message, path string) {
	v.issues = append(v.issues, Issue{
		Code:     code,
		Message:  message,
		Path:     path,
		Severity: "error",
	})
}
