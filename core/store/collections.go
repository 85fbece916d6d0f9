package store

import (
	"github.com/asaidimu/go-funnel/core/query"
	"github.com/asaidimu/go-funnel/core/schema"
)

const (
	GroupsCollection    = "funnel_groups"
	PipelinesCollection = "funnel_pipelines"

	collectionsVersion = "1.0.0"
)

func field(name string, t schema.FieldType, required bool) *schema.FieldDefinition {
	return &schema.FieldDefinition{Name: name, Type: t, Required: query.BoolPtr(required)}
}

func list(name string, items schema.FieldType) *schema.FieldDefinition {
	f := field(name, schema.FieldTypeArray, true)
	f.ItemsType = query.FieldTypePtr(items)
	return f
}

func groupsSchema() schema.SchemaDefinition {
	return schema.SchemaDefinition{
		Name:        GroupsCollection,
		Version:     collectionsVersion,
		Description: query.StringPtr("Compiled funnel groups."),
		Fields: map[string]*schema.FieldDefinition{
			"id":          field("id", schema.FieldTypeString, true),
			"name":        field("name", schema.FieldTypeString, true),
			"schema":      field("schema", schema.FieldTypeString, true),
			"description": field("description", schema.FieldTypeString, false),
			"edges":       list("edges", schema.FieldTypeArray),
			"topology":    field("topology", schema.FieldTypeObject, true),
			"spec":        field("spec", schema.FieldTypeRecord, true),
			"created_at":  field("created_at", schema.FieldTypeInteger, true),
		},
		Indexes: []schema.IndexDefinition{
			{Name: "funnel_groups_pk", Fields: []string{"id"}, Type: schema.IndexTypePrimary},
			{Name: "funnel_groups_name", Fields: []string{"name"}, Type: schema.IndexTypeUnique},
		},
	}
}

func pipelinesSchema() schema.SchemaDefinition {
	return schema.SchemaDefinition{
		Name:        PipelinesCollection,
		Version:     collectionsVersion,
		Description: query.StringPtr("One row per linear pipeline of a funnel group."),
		Fields: map[string]*schema.FieldDefinition{
			"id":       field("id", schema.FieldTypeString, true),
			"group_id": field("group_id", schema.FieldTypeString, true),
			"name":     field("name", schema.FieldTypeString, true),
			"position": field("position", schema.FieldTypeInteger, true),
			"path":     field("path", schema.FieldTypeString, true),
			"steps":    list("steps", schema.FieldTypeString),
			"spec":     field("spec", schema.FieldTypeRecord, true),
		},
		Indexes: []schema.IndexDefinition{
			{Name: "funnel_pipelines_pk", Fields: []string{"id"}, Type: schema.IndexTypePrimary},
			{Name: "funnel_pipelines_group", Fields: []string{"group_id", "position"}, Type: schema.IndexTypeNormal},
		},
	}
}

func collections() []schema.SchemaDefinition {
	return []schema.SchemaDefinition{groupsSchema(), pipelinesSchema()}
}
