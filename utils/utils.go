// Package utils converts between typed records and the schemaless
// documents the persistence layer stores.
package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// StructToMap converts a struct into a document by way of its JSON form, so
// `json` tags and `omitempty` apply. Nested structs become map[string]any,
// slices become []any, and null members are dropped because the schema
// validator rejects explicit nulls.
//
// The input must be a struct or a non-nil pointer to one.
//
//	type Row struct {
//		ID   string         `json:"id"`
//		Spec map[string]int `json:"spec"`
//	}
//	doc, err := StructToMap(Row{ID: "a", Spec: map[string]int{"x": 1}})
//	// doc == map[string]any{"id": "a", "spec": map[string]any{"x": 1.0}}
func StructToMap[T any](record T) (map[string]any, error) {
	val := reflect.ValueOf(record)
	if !val.IsValid() {
		return nil, fmt.Errorf("input record cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, fmt.Errorf("input record cannot be a nil pointer to a struct")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input record must be a struct or a pointer to a struct, got %s", val.Kind())
	}

	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("StructToMap: failed to marshal input record to JSON: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(jsonBytes, &doc); err != nil {
		return nil, fmt.Errorf("StructToMap: failed to unmarshal JSON to map[string]any: %w", err)
	}
	for key, v := range doc {
		if v == nil {
			delete(doc, key)
		}
	}
	return doc, nil
}

// MapToStruct is the inverse of StructToMap. T must be a struct type or a
// pointer to one. Members holding JSON text are not decoded; store
// structured values, not strings, in fields T declares as objects.
func MapToStruct[T any](input map[string]any) (T, error) {
	var zero T
	if input == nil {
		return zero, fmt.Errorf("MapToStruct: input map cannot be nil")
	}

	typ := reflect.TypeOf(zero)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("MapToStruct: generic type T must be a struct type (or pointer to struct), got %s", typ.Kind())
	}

	jsonBytes, err := json.Marshal(input)
	if err != nil {
		return zero, fmt.Errorf("MapToStruct: failed to marshal input map to JSON: %w", err)
	}

	var result T
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return zero, fmt.Errorf("MapToStruct: failed to unmarshal JSON to target struct: %w", err)
	}
	return result, nil
}

// ToObject decodes a JSON document into a map for storage in an object or
// record field. Empty input yields nil.
func ToObject(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("ToObject: %w", err)
	}
	return obj, nil
}
