package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventsSchema() *SchemaDefinition {
	return &SchemaDefinition{
		Name:    "events",
		Version: "1",
		Fields: map[string]*FieldDefinition{
			"price":    {ID: 1, Name: "price", Type: FieldTypeDecimal},
			"category": {ID: 2, Name: "category", Type: FieldTypeRecord, Keys: []string{"_A", "_B"}},
			"filter":   {ID: 3, Name: "filter", Type: FieldTypeString},
			"country":  {ID: 4, Name: "country", Type: FieldTypeEnum, Values: []any{"KE", "UG"}},
		},
	}
}

func TestSchemaDefinition_FindField(t *testing.T) {
	s := eventsSchema()
	assert.Equal(t, int64(1), s.FindField("price").ID)
	assert.Nil(t, s.FindField("missing"))

	s.Fields["alias"] = &FieldDefinition{ID: 9, Name: "aliased", Type: FieldTypeString}
	assert.Equal(t, int64(9), s.FindField("aliased").ID)
}

func TestSchemaDefinition_FieldByID(t *testing.T) {
	s := eventsSchema()
	assert.Equal(t, "category", s.FieldByID(2).Name)
	assert.Nil(t, s.FieldByID(0))
	assert.Nil(t, s.FieldByID(-1))
	assert.Nil(t, s.FieldByID(42))
}

func TestSchemaDefinition_Check(t *testing.T) {
	assert.Empty(t, eventsSchema().Check())

	s := eventsSchema()
	s.Fields["dup"] = &FieldDefinition{ID: 1, Name: "dup", Type: FieldTypeString}
	s.Fields["odd"] = &FieldDefinition{Name: "other", Type: "tuple"}
	issues := s.Check()

	codes := make([]string, 0, len(issues))
	for _, issue := range issues {
		codes = append(codes, issue.Code)
	}
	assert.ElementsMatch(t, []string{"DUPLICATE_ID", "NAME_MISMATCH", "UNKNOWN_TYPE"}, codes)

	unnamed := &SchemaDefinition{Name: "x", Fields: map[string]*FieldDefinition{"a": {Type: FieldTypeString}}}
	assert.Empty(t, unnamed.Check())
	assert.Equal(t, "a", unnamed.Fields["a"].Name)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(eventsSchema()))
	require.NoError(t, r.Register(&SchemaDefinition{Name: "clicks", Fields: map[string]*FieldDefinition{"url": {Type: FieldTypeString}}}))

	assert.Equal(t, []string{"clicks", "events"}, r.Names())

	field, err := r.FieldByName("events", "price")
	require.NoError(t, err)
	assert.Equal(t, FieldTypeDecimal, field.Type)

	field, err = r.FieldByID("events", 3)
	require.NoError(t, err)
	assert.Equal(t, "filter", field.Name)

	_, err = r.FieldByName("events", "nope")
	assert.ErrorIs(t, err, ErrFieldNotFound)

	_, err = r.FieldByID("events", 99)
	assert.ErrorIs(t, err, ErrFieldNotFound)

	_, err = r.FieldByName("nope", "price")
	assert.ErrorIs(t, err, ErrSchemaNotFound)

	err = r.Register(&SchemaDefinition{Name: ""})
	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestValidator(t *testing.T) {
	required := true
	s := eventsSchema()
	s.Fields["price"].Required = &required
	v := NewValidator(s)

	valid, issues := v.Validate(map[string]any{
		"price":    10.25,
		"category": map[string]any{"_A": 1},
		"country":  "KE",
	}, false)
	assert.True(t, valid)
	assert.Empty(t, issues)

	valid, issues = v.Validate(map[string]any{
		"category": map[string]any{"_Z": 1},
		"country":  "TZ",
		"extra":    true,
	}, false)
	assert.False(t, valid)
	codes := make([]string, 0, len(issues))
	for _, issue := range issues {
		codes = append(codes, issue.Code)
	}
	assert.ElementsMatch(t, []string{"REQUIRED_FIELD_MISSING", "UNKNOWN_KEY", "ENUM_VIOLATION", "UNEXPECTED_FIELD"}, codes)

	valid, _ = v.Validate(map[string]any{"filter": "x"}, true)
	assert.True(t, valid)

	valid, issues = v.Validate(map[string]any{"price": "cheap"}, true)
	assert.False(t, valid)
	assert.Equal(t, "TYPE_MISMATCH", issues[0].Code)

	valid, _ = v.Validate(map[string]any{"price": "10.5"}, true)
	assert.True(t, valid)
}

func TestValidator_IntegerFromJSON(t *testing.T) {
	s := &SchemaDefinition{Name: "n", Fields: map[string]*FieldDefinition{"count": {Type: FieldTypeInteger}}}
	v := NewValidator(s)

	valid, _ := v.Validate(map[string]any{"count": float64(3)}, false)
	assert.True(t, valid)

	valid, _ = v.Validate(map[string]any{"count": 3.5}, false)
	assert.False(t, valid)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	yamlDoc := `
name: events
version: "2"
fields:
  price:
    id: 1
    name: price
    type: decimal
  category:
    id: 2
    name: category
    type: record
    keys: [_A, _B]
`
	jsonDoc := `{"name":"clicks","version":"1","fields":{"url":{"id":1,"name":"url","type":"string"}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.yaml"), []byte(yamlDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clicks.json"), []byte(jsonDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	defs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "clicks", defs[0].Name)
	assert.Equal(t, "events", defs[1].Name)
	assert.Equal(t, []string{"_A", "_B"}, defs[1].Fields["category"].Keys)

	r := NewRegistry(nil)
	require.NoError(t, LoadInto(r, dir))
	field, err := r.FieldByID("events", 2)
	require.NoError(t, err)
	assert.Equal(t, FieldTypeRecord, field.Type)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`{"name":"x","fields":{},"bogus":1}`), "json")
	assert.Error(t, err)

	_, err = Parse([]byte("name: x\nbogus: 1\n"), "yaml")
	assert.Error(t, err)

	_, err = Parse([]byte("{}"), "toml")
	assert.Error(t, err)
}
