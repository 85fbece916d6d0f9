package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/asaidimu/go-funnel/core/schema"
	"github.com/asaidimu/go-funnel/utils"
)

// SCHEMA_COLLECTION_NAME is the internal collection that stores the schema
// of every other collection.
const SCHEMA_COLLECTION_NAME = "_schemas"

// SchemaRecord is one document of the `_schemas` collection.
type SchemaRecord struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Version     string          `json:"version"`
	Schema      json.RawMessage `json:"schema"`
}

var schemasCollectionSchema = []byte(`
{
  "name": "_schemas",
  "version": "1.0.0",
  "description": "Stores schema definitions for all collections in the database.",
  "fields": {
    "name": {
      "name": "name",
      "type": "string",
      "required": true,
      "description": "The name of the collection this schema defines."
    },
    "version": {
      "name": "version",
      "type": "string",
      "required": true
    },
    "description": {
      "name": "description",
      "type": "string"
    },
    "schema": {
      "name": "schema",
      "type": "record",
      "required": true,
      "description": "The full schema definition as a JSON object."
    }
  },
  "indexes": [
    {
      "name": "schemas_primary_key",
      "fields": ["name"],
      "type": "primary"
    }
  ]
}`)

func mapToSchemaRecord(data schema.Document) (*SchemaRecord, error) {
	return utils.MapToStruct[*SchemaRecord](data)
}

func schemaRecordToMap(s *schema.SchemaDefinition) (map[string]any, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SchemaDefinition to JSON: %w", err)
	}
	decoded, err := utils.ToObject(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode schema %s: %w", s.Name, err)
	}

	data := map[string]any{
		"name":    s.Name,
		"version": s.Version,
		"schema":  decoded,
	}
	if s.Description != nil {
		data["description"] = *s.Description
	}
	return data, nil
}
